package utils

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDManager(t *testing.T) {
	tmpDir := t.TempDir()
	pidFile := filepath.Join(tmpDir, "test.pid")

	t.Run("WriteAndRead", func(t *testing.T) {
		manager := NewPIDManager(pidFile)
		assert.Equal(t, pidFile, manager.GetPIDFile())
		require.NoError(t, manager.WritePID())

		pid, err := manager.ReadPID()
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
	})

	t.Run("SignalSelf", func(t *testing.T) {
		manager := NewPIDManager(pidFile)
		require.NoError(t, manager.WritePID())
		// signal 0 only checks that the process exists
		assert.NoError(t, manager.Signal(syscall.Signal(0)))
	})

	t.Run("RemovePID", func(t *testing.T) {
		manager := NewPIDManager(pidFile)
		require.NoError(t, manager.WritePID())
		require.NoError(t, manager.RemovePID())

		_, err := os.Stat(pidFile)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("NestedDirectory", func(t *testing.T) {
		manager := NewPIDManager(filepath.Join(tmpDir, "subdir", "test.pid"))
		require.NoError(t, manager.WritePID())

		_, err := os.Stat(manager.GetPIDFile())
		require.NoError(t, err)
	})

	t.Run("InvalidContent", func(t *testing.T) {
		bad := filepath.Join(tmpDir, "bad.pid")
		require.NoError(t, os.WriteFile(bad, []byte("abc"), 0o644))
		_, err := NewPIDManager(bad).ReadPID()
		assert.Error(t, err)

		require.NoError(t, os.WriteFile(bad, []byte("-4\n"), 0o644))
		_, err = NewPIDManager(bad).ReadPID()
		assert.Error(t, err)
	})

	t.Run("EmptyPath", func(t *testing.T) {
		manager := NewPIDManager("")
		assert.ErrorIs(t, manager.WritePID(), ErrNoPIDFile)
		_, err := manager.ReadPID()
		assert.ErrorIs(t, err, ErrNoPIDFile)
		assert.NoError(t, manager.RemovePID())
	})
}
