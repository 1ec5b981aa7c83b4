// Package auth turns a WebSocket handshake into a user identity.
//
// Two strategies exist: HTTP basic credentials checked against the user
// accounts, and the shared session written by the external web process.
// auth.mode decides which one is tried first; the other is the fallback.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/kamshory/wsbridge/internal/common/cnst"
	"github.com/kamshory/wsbridge/internal/common/config"
	"github.com/kamshory/wsbridge/internal/database"
	"github.com/kamshory/wsbridge/internal/handshake"

	"go.uber.org/zap"
)

var (
	// ErrNoCredentials means the strategy found nothing to check
	ErrNoCredentials = errors.New("no credentials")
	// ErrInvalidCredentials means credentials were present but wrong
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInactiveUser means the account exists but is disabled
	ErrInactiveUser = errors.New("user is inactive")
)

// Peer is the view of a connecting client the strategies need
type Peer interface {
	Request() *handshake.Request
	Session() map[string]any
}

// UserStore looks up accounts
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*database.User, error)
}

// Identity is a logged in user
type Identity struct {
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	// Method is the strategy that accepted the login
	Method string `json:"method"`
}

// Strategy is one way of logging a peer in
type Strategy interface {
	Name() string
	// Authenticate returns ErrNoCredentials when the peer carries nothing
	// this strategy understands.
	Authenticate(ctx context.Context, peer Peer) (*Identity, error)
}

// Authenticator tries its strategies in order
type Authenticator struct {
	logger     *zap.Logger
	strategies []Strategy
}

// NewAuthenticator orders the basic and session strategies according to
// cfg.Mode. users may be nil, which disables basic auth.
func NewAuthenticator(logger *zap.Logger, cfg *config.AuthConfig, users UserStore) (*Authenticator, error) {
	session := NewSessionStrategy(cfg.UsernameKey, cfg.PasswordKey, users)
	var strategies []Strategy
	switch cnst.AuthMode(cfg.Mode) {
	case cnst.AuthModeBasic:
		if users != nil {
			strategies = append(strategies, NewBasicStrategy(users))
		}
		strategies = append(strategies, session)
	case cnst.AuthModeSession, "":
		strategies = append(strategies, session)
		if users != nil {
			strategies = append(strategies, NewBasicStrategy(users))
		}
	default:
		return nil, fmt.Errorf("%w: %q", cnst.ErrInvalidAuthMode, cfg.Mode)
	}
	return New(logger, strategies...), nil
}

// New builds an Authenticator from explicit strategies
func New(logger *zap.Logger, strategies ...Strategy) *Authenticator {
	return &Authenticator{logger: logger.Named("auth"), strategies: strategies}
}

// Strategies returns the strategy names in the order they are tried
func (a *Authenticator) Strategies() []string {
	names := make([]string, 0, len(a.strategies))
	for _, s := range a.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Login returns the identity from the first strategy that accepts the peer.
// When none does the error wraps ErrInvalidCredentials if any strategy saw
// bad credentials, otherwise ErrNoCredentials.
func (a *Authenticator) Login(ctx context.Context, peer Peer) (*Identity, error) {
	var errs []error
	for _, s := range a.strategies {
		id, err := s.Authenticate(ctx, peer)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrNoCredentials) {
			a.logger.Debug("login strategy failed", zap.String("strategy", s.Name()), zap.Error(err))
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	if len(errs) == 0 {
		return nil, ErrNoCredentials
	}
	return nil, errors.Join(errs...)
}
