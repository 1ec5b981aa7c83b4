package session

import (
	"context"
	"sync"

	"github.com/kamshory/wsbridge/internal/common/cnst"
)

// MemoryBackend keeps session blobs in process memory
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (b *MemoryBackend) Name() string { return cnst.SessionBackendMemory.String() }

func (b *MemoryBackend) Read(_ context.Context, id string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return append([]byte(nil), v...), nil
}

func (b *MemoryBackend) Write(_ context.Context, id string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[id] = append([]byte(nil), data...)
	return nil
}

func (b *MemoryBackend) Close() error { return nil }
