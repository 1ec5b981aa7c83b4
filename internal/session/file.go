package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kamshory/wsbridge/internal/common/cnst"
)

// FileBackend keeps one file per session at dir/prefix+id, the layout used by
// the external web process.
type FileBackend struct {
	dir    string
	prefix string
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend creates a FileBackend rooted at dir
func NewFileBackend(dir, prefix string) *FileBackend {
	return &FileBackend{dir: dir, prefix: prefix}
}

func (b *FileBackend) Name() string { return cnst.SessionBackendFile.String() }

// Path returns the file holding session id
func (b *FileBackend) Path(id string) string {
	return filepath.Join(b.dir, b.prefix+id)
}

func (b *FileBackend) Read(_ context.Context, id string) ([]byte, error) {
	if !ValidID(id) {
		return nil, ErrInvalidSessionID
	}
	data, err := os.ReadFile(b.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSessionNotFound
	}
	return data, err
}

// Write replaces the session file through a temporary file and a rename, so a
// concurrent reader never sees a half written record.
func (b *FileBackend) Write(_ context.Context, id string, data []byte) error {
	if !ValidID(id) {
		return ErrInvalidSessionID
	}
	tmp, err := os.CreateTemp(b.dir, "."+b.prefix+id+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, b.Path(id))
}

func (b *FileBackend) Close() error { return nil }
