package session

import (
	"context"
	"fmt"

	"github.com/kamshory/wsbridge/internal/common/cnst"
	"github.com/kamshory/wsbridge/internal/common/config"

	"go.uber.org/zap"
)

// NewStore creates a session store based on configuration
func NewStore(ctx context.Context, logger *zap.Logger, cfg *config.SessionConfig, opts ...Option) (*Store, error) {
	codec, err := NewCodec(cfg.Format)
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing session store",
		zap.String("backend", cfg.Backend),
		zap.String("format", codec.Name()))

	var backend Backend
	switch cnst.SessionBackend(cfg.Backend) {
	case cnst.SessionBackendFile, "":
		backend = NewFileBackend(cfg.File.Dir, cfg.File.Prefix)
	case cnst.SessionBackendRedis:
		backend, err = NewRedisBackend(ctx, logger, cfg.Redis)
		if err != nil {
			return nil, err
		}
	case cnst.SessionBackendMemory:
		backend = NewMemoryBackend()
	default:
		return nil, fmt.Errorf("%w: %s", cnst.ErrInvalidSessionBackend, cfg.Backend)
	}
	return New(logger, backend, codec, opts...), nil
}
