package database

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormDB implements Database on any gorm dialector. The queries used here are
// dialect-agnostic, so sqlite, mysql and postgres share one implementation.
type gormDB struct {
	db *gorm.DB
}

func open(dialector gorm.Dialector) (*gormDB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&User{}, &Message{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &gormDB{db: db}, nil
}

// Close closes the database connection
func (g *gormDB) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *gormDB) CreateUser(ctx context.Context, user *User) error {
	err := g.db.WithContext(ctx).Create(user).Error
	if err != nil && isDuplicate(err) {
		return fmt.Errorf("%w: %s", ErrUserExists, user.Username)
	}
	return err
}

func (g *gormDB) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := g.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (g *gormDB) UpdateUserPassword(ctx context.Context, username, hash string) error {
	return g.updateUser(ctx, username, "password", hash)
}

func (g *gormDB) SetUserActive(ctx context.Context, username string, active bool) error {
	return g.updateUser(ctx, username, "is_active", active)
}

func (g *gormDB) updateUser(ctx context.Context, username, column string, value any) error {
	res := g.db.WithContext(ctx).
		Model(&User{}).
		Where("username = ?", username).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	return nil
}

func (g *gormDB) ListUsers(ctx context.Context) ([]*User, error) {
	var users []*User
	err := g.db.WithContext(ctx).Order("username asc").Find(&users).Error
	return users, err
}

func (g *gormDB) SaveMessage(ctx context.Context, message *Message) error {
	return g.db.WithContext(ctx).Create(message).Error
}

func (g *gormDB) GetMessages(ctx context.Context, channel string, limit int) ([]*Message, error) {
	q := g.db.WithContext(ctx).Where("channel = ?", channel)
	return latest(q, limit)
}

func (g *gormDB) GetConversation(ctx context.Context, a, b string, limit int) ([]*Message, error) {
	q := g.db.WithContext(ctx).
		Where("kind = ?", KindPrivate).
		Where("(sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)", a, b, b, a)
	return latest(q, limit)
}

// latest fetches the newest rows then flips them to chronological order
func latest(q *gorm.DB, limit int) ([]*Message, error) {
	var messages []*Message
	q = q.Order("timestamp desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}
