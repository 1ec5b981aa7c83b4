package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"command":"private-message","data":{"receivers":["a","b",""],"message":"hi"},"receiver":"c"}`))
	require.NoError(t, err)
	assert.Equal(t, CmdPrivateMessage, cmd.Kind)
	assert.Equal(t, "private-message", cmd.Name)
	assert.Equal(t, "hi", cmd.String("message"))
	assert.Equal(t, []string{"a", "b"}, cmd.Strings("receivers"))
	assert.Equal(t, []string{"c"}, cmd.Strings("receiver"))
	assert.Nil(t, cmd.Strings("missing"))
	assert.Equal(t, map[string]any{"receivers": []any{"a", "b", ""}, "message": "hi"}, cmd.Data())

	cmd, err = ParseCommand([]byte(`{"command":"dance"}`))
	require.NoError(t, err)
	assert.Equal(t, CmdUnknown, cmd.Kind)
	assert.Empty(t, cmd.Data())

	_, err = ParseCommand([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidCommand)
	_, err = ParseCommand([]byte(`["command"]`))
	assert.ErrorIs(t, err, ErrInvalidCommand)
	_, err = ParseCommand([]byte(`{"data":{}}`))
	assert.ErrorIs(t, err, ErrMissingCommand)
}

func TestCommandKindNames(t *testing.T) {
	for name, kind := range commandNames {
		assert.Equal(t, name, kind.String())
		assert.Equal(t, kind, ParseCommandKind(name))
	}
	assert.Equal(t, "unknown", CmdUnknown.String())
}

func TestEncode(t *testing.T) {
	b, err := Encode("who", map[string]any{"users": []string{"a"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"who","data":{"users":["a"]}}`, string(b))

	b, err = Encode("ping", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"ping"}`, string(b))
}
