package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kamshory/wsbridge/internal/handshake"
	"github.com/kamshory/wsbridge/internal/session"
	"github.com/kamshory/wsbridge/pkg/metrics"
	"github.com/kamshory/wsbridge/pkg/wsframe"

	"go.uber.org/zap"
)

var (
	// ErrConnectionClosed is returned when writing to or closing a closed connection
	ErrConnectionClosed = errors.New("connection closed")
	// ErrNotOpen is returned when writing before the handshake completed
	ErrNotOpen = errors.New("connection not open")
	// ErrIdentityAlreadySet is returned by a second SetIdentity call
	ErrIdentityAlreadySet = errors.New("identity already set")
)

// State is the lifecycle position of a connection
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Connection is one accepted client. Request data is immutable once the
// connection is handed to the application.
type Connection struct {
	id         uint64
	conn       net.Conn
	remoteAddr string
	remotePort int
	req        *handshake.Request
	host       string
	sessionID  string
	acceptedAt time.Time

	store        *session.Store
	logger       *zap.Logger
	metrics      *metrics.Metrics
	writeTimeout time.Duration

	state   atomic.Int32
	writeMu sync.Mutex

	mu          sync.RWMutex
	sessionData map[string]any
	identity    string
	identitySet bool
	clientData  any
}

type connOptions struct {
	store        *session.Store
	logger       *zap.Logger
	metrics      *metrics.Metrics
	writeTimeout time.Duration
	cookieName   string
}

func newConnection(id uint64, conn net.Conn, opts connOptions) *Connection {
	c := &Connection{
		id:           id,
		conn:         conn,
		acceptedAt:   time.Now(),
		store:        opts.store,
		metrics:      opts.metrics,
		writeTimeout: opts.writeTimeout,
		sessionData:  map[string]any{},
	}
	c.remoteAddr = conn.RemoteAddr().String()
	if host, port, err := net.SplitHostPort(c.remoteAddr); err == nil {
		c.remoteAddr = host
		c.remotePort, _ = strconv.Atoi(port)
	}
	c.logger = opts.logger.With(zap.Uint64("conn_id", id), zap.String("remote_addr", c.remoteAddr))
	return c
}

// prepare parses and validates the upgrade request, then loads the session
// named by the cookie. It runs before the connection is visible to anyone.
func (c *Connection) prepare(ctx context.Context, raw []byte, opts connOptions) error {
	req, err := handshake.Parse(raw)
	if err != nil {
		return err
	}
	if err := handshake.Validate(req); err != nil {
		return err
	}
	c.req = req
	c.host = handshake.ResolveHost(req, c.conn.LocalAddr().String())
	c.sessionID = req.Cookies[opts.cookieName]
	if c.sessionID != "" && c.store != nil {
		c.sessionData = c.store.Load(ctx, c.sessionID)
	}
	return nil
}

func (c *Connection) ID() uint64            { return c.id }
func (c *Connection) RemoteAddr() string    { return c.remoteAddr }
func (c *Connection) RemotePort() int       { return c.remotePort }
func (c *Connection) AcceptedAt() time.Time { return c.acceptedAt }
func (c *Connection) Host() string          { return c.host }
func (c *Connection) SessionID() string     { return c.sessionID }

func (c *Connection) State() State {
	return State(c.state.Load())
}

func (c *Connection) RequestLine() string {
	if c.req == nil {
		return ""
	}
	return c.req.RequestLine
}

func (c *Connection) Path() string {
	if c.req == nil {
		return ""
	}
	return c.req.Path
}

// Header returns a request header, matched case-insensitively
func (c *Connection) Header(name string) string {
	if c.req == nil {
		return ""
	}
	return c.req.Header(name)
}

// Request exposes the parsed upgrade request
func (c *Connection) Request() *handshake.Request { return c.req }

func (c *Connection) Cookie(name string) string {
	if c.req == nil {
		return ""
	}
	return c.req.Cookies[name]
}

func (c *Connection) QueryParam(name string) string {
	if c.req == nil {
		return ""
	}
	return c.req.Query[name]
}

// Session returns a copy of the session snapshot taken at connect time
func (c *Connection) Session() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.sessionData)
}

func (c *Connection) SessionValue(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.sessionData[key]
	return v, ok
}

// RefreshSession replaces the snapshot with the current stored record
func (c *Connection) RefreshSession(ctx context.Context) map[string]any {
	if c.store == nil || c.sessionID == "" {
		return c.Session()
	}
	fresh := c.store.Load(ctx, c.sessionID)
	c.mu.Lock()
	c.sessionData = fresh
	c.mu.Unlock()
	return maps.Clone(fresh)
}

// MergeSession writes values through to the shared session record and into
// the local snapshot.
func (c *Connection) MergeSession(ctx context.Context, values map[string]any) error {
	if c.store == nil {
		return errors.New("no session store configured")
	}
	if c.sessionID == "" {
		return session.ErrInvalidSessionID
	}
	if err := c.store.Merge(ctx, c.sessionID, values); err != nil {
		return err
	}
	c.mu.Lock()
	maps.Copy(c.sessionData, values)
	c.mu.Unlock()
	return nil
}

func (c *Connection) Identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// SetIdentity records who the client is. It can be called once.
func (c *Connection) SetIdentity(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identitySet {
		return ErrIdentityAlreadySet
	}
	c.identity = id
	c.identitySet = true
	return nil
}

func (c *Connection) ClientData() any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientData
}

func (c *Connection) SetClientData(v any) {
	c.mu.Lock()
	c.clientData = v
	c.mu.Unlock()
}

// Send writes a text message
func (c *Connection) Send(msg []byte) error {
	return c.write(wsframe.OpText, msg)
}

// SendString writes a text message
func (c *Connection) SendString(msg string) error {
	return c.write(wsframe.OpText, []byte(msg))
}

// SendBinary writes a binary message
func (c *Connection) SendBinary(msg []byte) error {
	return c.write(wsframe.OpBinary, msg)
}

// Ping sends a ping control frame
func (c *Connection) Ping(payload []byte) error {
	return c.write(wsframe.OpPing, payload)
}

func (c *Connection) write(op wsframe.Opcode, payload []byte) error {
	switch c.State() {
	case StateClosed:
		return fmt.Errorf("%w: conn %d", ErrConnectionClosed, c.id)
	case StateConnecting:
		return fmt.Errorf("%w: conn %d", ErrNotOpen, c.id)
	}
	frame, err := wsframe.Encode(payload, op, false)
	if err != nil {
		return err
	}
	if err := c.writeRaw(frame); err != nil {
		// a broken socket is an implicit close; the reader reports the disconnect
		c.state.Store(int32(StateClosed))
		_ = c.conn.Close()
		return fmt.Errorf("write to conn %d: %w", c.id, err)
	}
	c.metrics.Frame(metrics.DirectionOut, op.String(), len(payload))
	return nil
}

func (c *Connection) writeRaw(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.conn.Write(b)
	return err
}

// writeControl answers control frames from the reader goroutine
func (c *Connection) writeControl(op wsframe.Opcode, payload []byte) error {
	if c.State() != StateOpen {
		return ErrConnectionClosed
	}
	frame, err := wsframe.Encode(payload, op, false)
	if err != nil {
		return err
	}
	return c.writeRaw(frame)
}

// Close sends a normal close frame and closes the socket. Closing twice
// returns ErrConnectionClosed.
func (c *Connection) Close() error {
	return c.CloseWithStatus(wsframe.CloseNormal, "")
}

// CloseWithStatus closes the connection with the given close code
func (c *Connection) CloseWithStatus(code uint16, reason string) error {
	prev := State(c.state.Swap(int32(StateClosed)))
	if prev == StateClosed {
		return ErrConnectionClosed
	}
	if prev == StateOpen {
		if frame, err := wsframe.Encode(wsframe.ClosePayload(code, reason), wsframe.OpClose, false); err == nil {
			_ = c.writeRaw(frame)
		}
	}
	return c.conn.Close()
}

// abort drops the socket without any close handshake
func (c *Connection) abort() {
	c.state.Store(int32(StateClosed))
	_ = c.conn.Close()
}
