package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"

	"github.com/kamshory/wsbridge/internal/common/cnst"
	"github.com/kamshory/wsbridge/internal/database"
)

// SessionStrategy trusts the username the external web process stored in
// the shared session. With a password key configured, the session must also
// carry the account's current password hash, so changing a password ends
// existing WebSocket logins.
type SessionStrategy struct {
	usernameKey string
	passwordKey string
	users       UserStore
}

var _ Strategy = (*SessionStrategy)(nil)

// NewSessionStrategy reads usernameKey (default "username") from the session.
// users may be nil unless passwordKey is set.
func NewSessionStrategy(usernameKey, passwordKey string, users UserStore) *SessionStrategy {
	if usernameKey == "" {
		usernameKey = "username"
	}
	return &SessionStrategy{usernameKey: usernameKey, passwordKey: passwordKey, users: users}
}

func (s *SessionStrategy) Name() string { return cnst.AuthModeSession.String() }

func (s *SessionStrategy) Authenticate(ctx context.Context, peer Peer) (*Identity, error) {
	sess := peer.Session()
	username := scalarString(sess[s.usernameKey])
	if username == "" {
		return nil, ErrNoCredentials
	}

	if s.passwordKey == "" {
		id := &Identity{Username: username, Method: s.Name()}
		if s.users != nil {
			if u, err := s.users.GetUserByUsername(ctx, username); err == nil {
				if !u.IsActive {
					return nil, fmt.Errorf("%w: %q", ErrInactiveUser, username)
				}
				id = identityFromUser(u, s.Name())
			}
		}
		return id, nil
	}

	if s.users == nil {
		return nil, errors.New("session password check needs a user store")
	}
	stored := scalarString(sess[s.passwordKey])
	if stored == "" {
		return nil, fmt.Errorf("%w: session has no %q", ErrInvalidCredentials, s.passwordKey)
	}
	u, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, database.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: unknown user %q", ErrInvalidCredentials, username)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user %q: %w", username, err)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("%w: %q", ErrInactiveUser, username)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(u.Password)) != 1 {
		return nil, fmt.Errorf("%w: stale session for %q", ErrInvalidCredentials, username)
	}
	return identityFromUser(u, s.Name()), nil
}

// scalarString renders session scalars; maps and lists yield ""
func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}
