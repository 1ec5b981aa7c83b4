package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(Config{Duration: time.Hour})
	assert.ErrorIs(t, err, ErrEmptySecretKey)
	_, err = NewService(Config{SecretKey: "short", Duration: time.Hour})
	assert.ErrorIs(t, err, ErrWeakSecretKey)
	_, err = NewService(Config{SecretKey: secret})
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestGenerateAndValidate(t *testing.T) {
	s, err := NewService(Config{SecretKey: secret, Duration: time.Hour, Issuer: "wsbridge"})
	require.NoError(t, err)

	tok, issued, err := s.GenerateToken("alice", "news", []byte("hello"))
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := s.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "news", claims.Channel)
	assert.Equal(t, "wsbridge", claims.Issuer)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, Digest([]byte("hello")), claims.Digest)

	_, err = s.VerifyPayload(tok, []byte("hello"))
	assert.NoError(t, err)
	_, err = s.VerifyPayload(tok, []byte("tampered"))
	assert.ErrorIs(t, err, ErrDigestMismatch)

	// two tokens never share an id
	_, other, err := s.GenerateToken("alice", "news", nil)
	require.NoError(t, err)
	assert.NotEqual(t, issued.ID, other.ID)
	assert.Empty(t, other.Digest)
}

func TestExpiredAndInvalid(t *testing.T) {
	s, err := NewService(Config{SecretKey: secret, Duration: time.Minute})
	require.NoError(t, err)
	s.now = func() time.Time { return time.Now().Add(-time.Hour) }
	tok, _, err := s.GenerateToken("bob", "", nil)
	require.NoError(t, err)

	s.now = time.Now
	claims, err := s.ValidateToken(tok)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = s.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewService(Config{SecretKey: strings.Repeat("z", 32), Duration: time.Minute})
	require.NoError(t, err)
	tok, _, err = other.GenerateToken("bob", "", nil)
	require.NoError(t, err)
	_, err = s.ValidateToken(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
