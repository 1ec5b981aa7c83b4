package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/kamshory/wsbridge/pkg/metrics"
	"go.uber.org/zap"
)

var (
	// ErrSessionNotFound is returned by a Backend when no record exists for the id
	ErrSessionNotFound = errors.New("session not found")
	// ErrCorruptRecord is returned together with the records decoded before the damage
	ErrCorruptRecord = errors.New("corrupt session record")
	// ErrInvalidSessionID is returned for ids outside the allowed character set
	ErrInvalidSessionID = errors.New("invalid session id")
	// ErrKeyTooLong is returned when a key does not fit the binary length byte
	ErrKeyTooLong = errors.New("session key too long")
	// ErrInvalidKey is returned when a key contains the record delimiter
	ErrInvalidKey = errors.New("session key contains delimiter")
)

// Session ids are generated by the external web process from this alphabet.
var validID = regexp.MustCompile(`^[A-Za-z0-9,-]{1,128}$`)

// ValidID reports whether id may be used to address a session record.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

// Codec flattens a session map into a single blob and back.
type Codec interface {
	Name() string
	Encode(values map[string]any) ([]byte, error)
	// Decode returns every record read before the first malformed one. The
	// map is never nil, even when err is non-nil.
	Decode(data []byte) (map[string]any, error)
}

// Backend stores raw session blobs.
type Backend interface {
	Name() string
	// Read returns ErrSessionNotFound when no record exists.
	Read(ctx context.Context, id string) ([]byte, error)
	Write(ctx context.Context, id string, data []byte) error
	Close() error
}

// Store reads and writes session records shared with an external process.
// The underlying record is never locked; concurrent writers may race.
type Store struct {
	logger  *zap.Logger
	backend Backend
	codec   Codec
	metrics *metrics.Metrics
}

// Option configures a Store
type Option func(*Store)

// WithMetrics records load and merge outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New creates a Store over backend using codec
func New(logger *zap.Logger, backend Backend, codec Codec, opts ...Option) *Store {
	s := &Store{
		logger:  logger.Named("session"),
		backend: backend,
		codec:   codec,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the session snapshot for id. Missing, unreadable or invalid
// sessions yield an empty map; a corrupt record yields what was readable.
func (s *Store) Load(ctx context.Context, id string) map[string]any {
	values, err := s.load(ctx, id)
	s.metrics.SessionOp("load", err)
	switch {
	case err == nil:
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrInvalidSessionID):
		s.logger.Debug("session unavailable", zap.String("id", id), zap.Error(err))
	default:
		s.logger.Warn("session read failed", zap.String("id", id), zap.Error(err), zap.Int("recovered", len(values)))
	}
	return values
}

func (s *Store) load(ctx context.Context, id string) (map[string]any, error) {
	if !ValidID(id) {
		return map[string]any{}, ErrInvalidSessionID
	}
	raw, err := s.backend.Read(ctx, id)
	if err != nil {
		return map[string]any{}, err
	}
	return s.codec.Decode(raw)
}

// Merge writes values into the session record for id, keeping every stored
// key that values does not mention. A record that does not decode completely
// is left untouched and ErrCorruptRecord is returned.
func (s *Store) Merge(ctx context.Context, id string, values map[string]any) error {
	err := s.merge(ctx, id, values)
	s.metrics.SessionOp("merge", err)
	return err
}

func (s *Store) merge(ctx context.Context, id string, values map[string]any) error {
	current, err := s.load(ctx, id)
	switch {
	case err == nil, errors.Is(err, ErrSessionNotFound):
	case errors.Is(err, ErrCorruptRecord):
		// rewriting would drop every record after the damage
		s.logger.Warn("refusing to merge into corrupt session record", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("merge session %s: %w", id, err)
	default:
		return fmt.Errorf("read session %s: %w", id, err)
	}

	for k, v := range values {
		current[k] = v
	}
	raw, err := s.codec.Encode(current)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}
	if err := s.backend.Write(ctx, id, raw); err != nil {
		return fmt.Errorf("write session %s: %w", id, err)
	}
	return nil
}

// Codec returns the codec used by the store
func (s *Store) Codec() Codec { return s.codec }

// Backend returns the backend used by the store
func (s *Store) Backend() Backend { return s.backend }

func (s *Store) Close() error {
	return s.backend.Close()
}
