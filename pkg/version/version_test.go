package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	s := Get()
	assert.NotEmpty(t, s)
	assert.Equal(t, byte('v'), s[0])
	assert.NotContains(t, s, "\n")
}

func TestString(t *testing.T) {
	old := Commit
	t.Cleanup(func() { Commit = old })

	Commit = ""
	assert.Contains(t, String(), Get()+" ("+runtime.Version())

	Commit = "abc123"
	assert.Contains(t, String(), Get()+"+abc123 (")
}
