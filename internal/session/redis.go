package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kamshory/wsbridge/internal/common/cnst"
	"github.com/kamshory/wsbridge/internal/common/config"
	"github.com/kamshory/wsbridge/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBackend keeps each session blob under prefix+id
type RedisBackend struct {
	logger *zap.Logger
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend connects to a single node, sentinel or cluster deployment
func NewRedisBackend(ctx context.Context, logger *zap.Logger, cfg config.SessionRedisConfig) (*RedisBackend, error) {
	opts := &redis.UniversalOptions{
		Addrs:    utils.SplitList(cfg.Addr, ";", ","),
		Username: cfg.Username,
		Password: cfg.Password,
	}
	if cfg.ClusterType == cnst.RedisClusterTypeSentinel {
		opts.MasterName = cfg.MasterName
	}
	if cfg.ClusterType != cnst.RedisClusterTypeCluster {
		// can not set db in cluster mode
		opts.DB = cfg.DB
	}
	client := redis.NewUniversalClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisBackendWithClient(logger, client, cfg.Prefix, cfg.TTL), nil
}

// NewRedisBackendWithClient wraps an existing client
func NewRedisBackendWithClient(logger *zap.Logger, client redis.UniversalClient, prefix string, ttl time.Duration) *RedisBackend {
	return &RedisBackend{
		logger: logger.Named("session.redis"),
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (b *RedisBackend) Name() string { return cnst.SessionBackendRedis.String() }

func (b *RedisBackend) key(id string) string { return b.prefix + id }

func (b *RedisBackend) Read(ctx context.Context, id string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Write stores data. With no TTL configured the key keeps the expiry the
// external process gave it.
func (b *RedisBackend) Write(ctx context.Context, id string, data []byte) error {
	ttl := b.ttl
	if ttl <= 0 {
		ttl = redis.KeepTTL
	}
	if err := b.client.Set(ctx, b.key(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
