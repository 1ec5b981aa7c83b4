package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStore_MergeThenLoad_RoundTrip(t *testing.T) {
	for _, codec := range []Codec{DelimitedCodec{}, BinaryCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			store := New(zap.NewNop(), NewMemoryBackend(), codec)
			ctx := context.Background()

			require.NoError(t, store.Merge(ctx, "abc123", sampleValues()))
			assert.Equal(t, sampleValues(), store.Load(ctx, "abc123"))
		})
	}
}

func TestStore_MergePreservesUntouchedKeys(t *testing.T) {
	backend := NewMemoryBackend()
	store := New(zap.NewNop(), backend, DelimitedCodec{})
	ctx := context.Background()

	// written by the external process
	require.NoError(t, backend.Write(ctx, "s1", []byte(`username|s:5:"alice";cart|a:1:{i:0;s:3:"tea";}`)))

	require.NoError(t, store.Merge(ctx, "s1", map[string]any{"ws_seen": int64(1), "username": "alice2"}))

	got := store.Load(ctx, "s1")
	assert.Equal(t, "alice2", got["username"])
	assert.Equal(t, int64(1), got["ws_seen"])
	assert.Equal(t, []any{"tea"}, got["cart"])
}

func TestStore_LoadIsLenient(t *testing.T) {
	backend := NewMemoryBackend()
	store := New(zap.NewNop(), backend, DelimitedCodec{})
	ctx := context.Background()

	assert.Empty(t, store.Load(ctx, "missing"))
	assert.NotNil(t, store.Load(ctx, "missing"))
	assert.Empty(t, store.Load(ctx, "../etc/passwd"))
	assert.Empty(t, store.Load(ctx, ""))

	require.NoError(t, backend.Write(ctx, "broken", []byte(`a|i:1;b|zzz`)))
	assert.Equal(t, map[string]any{"a": int64(1)}, store.Load(ctx, "broken"))
}

func TestStore_MergeRefusesCorruptRecord(t *testing.T) {
	backend := NewMemoryBackend()
	store := New(zap.NewNop(), backend, DelimitedCodec{})
	ctx := context.Background()

	blob := []byte(`a|i:1;b|zzz;csrf|s:3:"tok";`)
	require.NoError(t, backend.Write(ctx, "s2", blob))

	err := store.Merge(ctx, "s2", map[string]any{"c": "x"})
	assert.ErrorIs(t, err, ErrCorruptRecord)

	raw, err := backend.Read(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, string(blob), string(raw))
}

func TestStore_MergeKeepsForeignValues(t *testing.T) {
	backend := NewMemoryBackend()
	store := New(zap.NewNop(), backend, DelimitedCodec{})
	ctx := context.Background()

	require.NoError(t, backend.Write(ctx, "s4",
		[]byte(`a|i:1;cart|C:11:"ArrayObject":21:{x:i:0;a:0:{};m:a:0:{}}csrf|s:3:"tok";`)))
	require.NoError(t, store.Merge(ctx, "s4", map[string]any{"c": "x"}))

	raw, err := backend.Read(ctx, "s4")
	require.NoError(t, err)
	assert.Equal(t,
		`a|i:1;c|s:1:"x";cart|C:11:"ArrayObject":21:{x:i:0;a:0:{};m:a:0:{}}csrf|s:3:"tok";`,
		string(raw))
}

type failingBackend struct{ *MemoryBackend }

func (failingBackend) Read(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func TestStore_MergeRefusesUnreadableRecord(t *testing.T) {
	store := New(zap.NewNop(), failingBackend{NewMemoryBackend()}, DelimitedCodec{})
	ctx := context.Background()

	err := store.Merge(ctx, "s3", map[string]any{"a": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
	assert.Empty(t, store.Load(ctx, "s3"))
}

func TestStore_MergeRejectsInvalidID(t *testing.T) {
	store := New(zap.NewNop(), NewMemoryBackend(), BinaryCodec{})
	err := store.Merge(context.Background(), "a/b", map[string]any{"x": 1})
	assert.ErrorIs(t, err, ErrInvalidSessionID)
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("k3j4h5g6,-abc"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID(".."))
	assert.False(t, ValidID("a b"))
}
