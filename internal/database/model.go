package database

import "time"

// UserRole represents the role of a user
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleNormal UserRole = "normal"
)

// User is an account allowed to log in over basic auth
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Username  string    `json:"username" gorm:"type:varchar(100);uniqueIndex"`
	Password  string    `json:"-" gorm:"not null"` // bcrypt hash
	Name      string    `json:"name" gorm:"type:varchar(255)"`
	Role      UserRole  `json:"role" gorm:"not null;default:'normal'"`
	IsActive  bool      `json:"isActive" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MessageKind tells broadcast traffic from private traffic
type MessageKind string

const (
	KindBroadcast MessageKind = "broadcast"
	KindPrivate   MessageKind = "private"
	KindPublish   MessageKind = "publish"
)

// Message is one archived message
type Message struct {
	ID        string      `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Kind      MessageKind `json:"kind" gorm:"type:varchar(20);index"`
	Channel   string      `json:"channel" gorm:"type:varchar(255);index"`
	Sender    string      `json:"sender" gorm:"type:varchar(100);index"`
	Receiver  string      `json:"receiver,omitempty" gorm:"type:varchar(100);index"`
	Content   string      `json:"content" gorm:"type:text"`
	Timestamp time.Time   `json:"timestamp" gorm:"index"`
}
