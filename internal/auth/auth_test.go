package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/kamshory/wsbridge/internal/common/cnst"
	"github.com/kamshory/wsbridge/internal/common/config"
	"github.com/kamshory/wsbridge/internal/database"
	"github.com/kamshory/wsbridge/internal/handshake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePeer struct {
	req  *handshake.Request
	sess map[string]any
}

func (p fakePeer) Request() *handshake.Request { return p.req }
func (p fakePeer) Session() map[string]any     { return p.sess }

func newPeer(t *testing.T, user, pass string, sess map[string]any) fakePeer {
	t.Helper()
	raw := "GET / HTTP/1.1\r\nHost: x\r\n"
	if user != "" {
		raw += "Authorization: Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass)) + "\r\n"
	}
	req, err := handshake.Parse([]byte(raw + "\r\n"))
	require.NoError(t, err)
	return fakePeer{req: req, sess: sess}
}

type fakeUsers map[string]*database.User

func (f fakeUsers) GetUserByUsername(_ context.Context, username string) (*database.User, error) {
	u, ok := f[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrUserNotFound, username)
	}
	return u, nil
}

func testUsers(t *testing.T) fakeUsers {
	t.Helper()
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	return fakeUsers{
		"alice": {Username: "alice", Name: "Alice", Password: hash, Role: database.RoleAdmin, IsActive: true},
		"dave":  {Username: "dave", Password: hash, IsActive: false},
	}
}

func TestBasicStrategy(t *testing.T) {
	s := NewBasicStrategy(testUsers(t))
	ctx := context.Background()

	id, err := s.Authenticate(ctx, newPeer(t, "alice", "s3cret", nil))
	require.NoError(t, err)
	assert.Equal(t, &Identity{Username: "alice", Name: "Alice", Role: "admin", Method: "basic"}, id)

	_, err = s.Authenticate(ctx, newPeer(t, "alice", "wrong", nil))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Authenticate(ctx, newPeer(t, "mallory", "s3cret", nil))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Authenticate(ctx, newPeer(t, "dave", "s3cret", nil))
	assert.ErrorIs(t, err, ErrInactiveUser)
	_, err = s.Authenticate(ctx, newPeer(t, "", "", nil))
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestSessionStrategy(t *testing.T) {
	users := testUsers(t)
	ctx := context.Background()

	s := NewSessionStrategy("", "", nil)
	id, err := s.Authenticate(ctx, newPeer(t, "", "", map[string]any{"username": "zed"}))
	require.NoError(t, err)
	assert.Equal(t, "zed", id.Username)
	assert.Equal(t, "session", id.Method)

	_, err = s.Authenticate(ctx, newPeer(t, "", "", map[string]any{}))
	assert.ErrorIs(t, err, ErrNoCredentials)
	_, err = s.Authenticate(ctx, newPeer(t, "", "", map[string]any{"username": map[string]any{"x": 1}}))
	assert.ErrorIs(t, err, ErrNoCredentials)

	// numeric ids are accepted as usernames
	id, err = NewSessionStrategy("uid", "", nil).Authenticate(ctx, newPeer(t, "", "", map[string]any{"uid": int64(42)}))
	require.NoError(t, err)
	assert.Equal(t, "42", id.Username)

	// known users are enriched
	id, err = NewSessionStrategy("", "", users).Authenticate(ctx, newPeer(t, "", "", map[string]any{"username": "alice"}))
	require.NoError(t, err)
	assert.Equal(t, "Alice", id.Name)

	withPassword := NewSessionStrategy("username", "password", users)
	id, err = withPassword.Authenticate(ctx, newPeer(t, "", "", map[string]any{
		"username": "alice", "password": users["alice"].Password,
	}))
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)

	_, err = withPassword.Authenticate(ctx, newPeer(t, "", "", map[string]any{"username": "alice", "password": "old-hash"}))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = withPassword.Authenticate(ctx, newPeer(t, "", "", map[string]any{"username": "alice"}))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = withPassword.Authenticate(ctx, newPeer(t, "", "", map[string]any{"username": "dave", "password": users["dave"].Password}))
	assert.ErrorIs(t, err, ErrInactiveUser)
}

func TestNewAuthenticator_Order(t *testing.T) {
	users := testUsers(t)

	a, err := NewAuthenticator(zap.NewNop(), &config.AuthConfig{Mode: "basic"}, users)
	require.NoError(t, err)
	assert.Equal(t, []string{"basic", "session"}, a.Strategies())

	a, err = NewAuthenticator(zap.NewNop(), &config.AuthConfig{Mode: "session"}, users)
	require.NoError(t, err)
	assert.Equal(t, []string{"session", "basic"}, a.Strategies())

	a, err = NewAuthenticator(zap.NewNop(), &config.AuthConfig{Mode: "basic"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"session"}, a.Strategies())

	_, err = NewAuthenticator(zap.NewNop(), &config.AuthConfig{Mode: "oauth"}, users)
	assert.ErrorIs(t, err, cnst.ErrInvalidAuthMode)
}

func TestAuthenticator_Login(t *testing.T) {
	a, err := NewAuthenticator(zap.NewNop(), &config.AuthConfig{Mode: "basic"}, testUsers(t))
	require.NoError(t, err)
	ctx := context.Background()

	// basic wins when both are present
	id, err := a.Login(ctx, newPeer(t, "alice", "s3cret", map[string]any{"username": "bob"}))
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)

	// wrong password falls back to the session
	id, err = a.Login(ctx, newPeer(t, "alice", "nope", map[string]any{"username": "bob"}))
	require.NoError(t, err)
	assert.Equal(t, "bob", id.Username)
	assert.Equal(t, "session", id.Method)

	_, err = a.Login(ctx, newPeer(t, "", "", nil))
	assert.ErrorIs(t, err, ErrNoCredentials)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.Login(ctx, newPeer(t, "alice", "nope", nil))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "pw"))
	assert.Error(t, CheckPassword(hash, "other"))
	assert.Error(t, CheckPassword(dummyHash(), "pw"))
}
