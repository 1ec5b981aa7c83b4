package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/kamshory/wsbridge/internal/common/cnst"
	"github.com/kamshory/wsbridge/internal/database"
	"github.com/kamshory/wsbridge/internal/handshake"
)

// BasicStrategy checks Authorization: Basic credentials against user accounts
type BasicStrategy struct {
	users UserStore
}

var _ Strategy = (*BasicStrategy)(nil)

func NewBasicStrategy(users UserStore) *BasicStrategy {
	return &BasicStrategy{users: users}
}

func (s *BasicStrategy) Name() string { return cnst.AuthModeBasic.String() }

func (s *BasicStrategy) Authenticate(ctx context.Context, peer Peer) (*Identity, error) {
	req := peer.Request()
	if req == nil {
		return nil, ErrNoCredentials
	}
	username, password, ok := handshake.BasicAuth(req)
	if !ok || username == "" {
		return nil, ErrNoCredentials
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, database.ErrUserNotFound) {
		// compare anyway so unknown users cost the same as wrong passwords
		_ = CheckPassword(dummyHash(), password)
		return nil, fmt.Errorf("%w: unknown user %q", ErrInvalidCredentials, username)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user %q: %w", username, err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: %q", ErrInactiveUser, username)
	}
	if err := CheckPassword(user.Password, password); err != nil {
		return nil, fmt.Errorf("%w: wrong password for %q", ErrInvalidCredentials, username)
	}
	return identityFromUser(user, s.Name()), nil
}

func identityFromUser(u *database.User, method string) *Identity {
	return &Identity{Username: u.Username, Name: u.Name, Role: string(u.Role), Method: method}
}
