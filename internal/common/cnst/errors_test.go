package cnst

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorConstants(t *testing.T) {
	assert.Equal(t, "invalid auth mode", ErrInvalidAuthMode.Error())
	assert.Equal(t, "invalid session format", ErrInvalidSessionFormat.Error())
	assert.Equal(t, "invalid session backend", ErrInvalidSessionBackend.Error())
	assert.Equal(t, "invalid app mode", ErrInvalidAppMode.Error())
	assert.NotEqual(t, ErrInvalidPort, ErrMissingSecret)
}
