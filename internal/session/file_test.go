package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileBackend_ReadsExternalRecord(t *testing.T) {
	dir := t.TempDir()
	backend := NewFileBackend(dir, "sess_")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sess_k81hq2"), []byte(`username|s:4:"carl";`), 0o600))

	store := New(zap.NewNop(), backend, DelimitedCodec{})
	assert.Equal(t, map[string]any{"username": "carl"}, store.Load(context.Background(), "k81hq2"))
}

func TestFileBackend_MissingFile(t *testing.T) {
	backend := NewFileBackend(t.TempDir(), "sess_")
	_, err := backend.Read(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFileBackend_RejectsTraversal(t *testing.T) {
	backend := NewFileBackend(t.TempDir(), "sess_")
	_, err := backend.Read(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidSessionID)
	assert.ErrorIs(t, backend.Write(context.Background(), "a/b", nil), ErrInvalidSessionID)
}

func TestFileBackend_WriteReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	backend := NewFileBackend(dir, "sess_")
	ctx := context.Background()

	require.NoError(t, backend.Write(ctx, "abc", []byte("first")))
	require.NoError(t, backend.Write(ctx, "abc", []byte("second")))

	data, err := backend.Read(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(backend.Path("abc"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestFileBackend_MergeBinaryFormat(t *testing.T) {
	dir := t.TempDir()
	store := New(zap.NewNop(), NewFileBackend(dir, "sess_"), BinaryCodec{})
	ctx := context.Background()

	require.NoError(t, store.Merge(ctx, "bin1", map[string]any{"a": int64(1)}))
	require.NoError(t, store.Merge(ctx, "bin1", map[string]any{"b": "two"}))
	assert.Equal(t, map[string]any{"a": int64(1), "b": "two"}, store.Load(ctx, "bin1"))
}
