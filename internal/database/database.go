package database

import (
	"context"
	"errors"
)

var (
	// ErrUserNotFound is returned when no account matches the username
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when creating a duplicate username
	ErrUserExists = errors.New("user already exists")
)

// Database defines the methods for database operations.
type Database interface {
	// Close closes the database connection.
	Close() error

	// CreateUser stores a new account. The password must already be hashed.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByUsername returns the account with the given username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// UpdateUserPassword replaces the stored password hash.
	UpdateUserPassword(ctx context.Context, username, hash string) error

	// SetUserActive enables or disables an account.
	SetUserActive(ctx context.Context, username string, active bool) error

	// ListUsers returns every account ordered by username.
	ListUsers(ctx context.Context) ([]*User, error)

	// SaveMessage archives a relayed message.
	SaveMessage(ctx context.Context, message *Message) error

	// GetMessages returns up to limit most recent messages of a channel,
	// oldest first. A limit of zero or less returns all of them.
	GetMessages(ctx context.Context, channel string, limit int) ([]*Message, error)

	// GetConversation returns the private messages exchanged by two users,
	// oldest first.
	GetConversation(ctx context.Context, a, b string, limit int) ([]*Message, error)
}
