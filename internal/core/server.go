package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kamshory/wsbridge/internal/common/cnst"
	"github.com/kamshory/wsbridge/internal/common/config"
	"github.com/kamshory/wsbridge/internal/handshake"
	"github.com/kamshory/wsbridge/internal/session"
	"github.com/kamshory/wsbridge/pkg/metrics"
	"github.com/kamshory/wsbridge/pkg/trace"
	"github.com/kamshory/wsbridge/pkg/wsframe"

	"github.com/eapache/queue"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	DefaultSessionCookie  = "SESSID"
	defaultMaxHeaderBytes = 8 << 10
	defaultReadBuffer     = 4 << 10
	defaultPollInterval   = 50 * time.Millisecond
	defaultEventBuffer    = 256
)

var (
	// ErrServerStarted is returned when Serve is called twice
	ErrServerStarted = errors.New("server already started")
	// ErrUnknownConnection is returned by SendTo for ids not in the registry
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrServerStopped is returned by calls that need a running loop
	ErrServerStopped = errors.New("server stopped")
)

type eventKind int

const (
	evHandshake eventKind = iota + 1
	evMessage
	evDisconnect
)

type event struct {
	kind    eventKind
	conn    *Connection
	mt      MessageType
	payload []byte
	reason  string
	at      time.Time
}

type job struct {
	interval time.Duration
	next     time.Time
	fn       func(now time.Time)
}

// Stats is a point-in-time view of the server
type Stats struct {
	Connections int       `json:"connections"`
	Identities  []string  `json:"identities"`
	Accepted    uint64    `json:"accepted"`
	StartedAt   time.Time `json:"started_at"`
}

// Server accepts WebSocket clients and multiplexes them onto one loop
// goroutine. Readers decode frames concurrently; everything that touches the
// Registry or calls the Handler happens on the loop.
type Server struct {
	logger     *zap.Logger
	cfg        config.WebSocketConfig
	store      *session.Store
	handler    Handler
	metrics    *metrics.Metrics
	tracer     *trace.Builder
	cookieName string

	nextID   atomic.Uint64
	registry *Registry
	jobs     []*job

	events chan event
	wake   chan struct{}
	postMu sync.Mutex
	posted *queue.Queue

	mu        sync.Mutex
	ln        net.Listener
	cancel    context.CancelFunc
	started   bool
	closing   bool
	pending   map[*Connection]struct{}
	startedAt time.Time

	done    chan struct{}
	stopped chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Server
type Option func(*Server)

// WithMetrics records connection and frame metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithSessionCookie names the cookie that carries the session id
func WithSessionCookie(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.cookieName = name
		}
	}
}

// NewServer creates a server. store may be nil when sessions are not used.
func NewServer(logger *zap.Logger, cfg config.WebSocketConfig, store *session.Store, handler Handler, opts ...Option) *Server {
	if handler == nil {
		handler = NopHandler{}
	}
	if cfg.MaxHeaderBytes <= 0 {
		cfg.MaxHeaderBytes = defaultMaxHeaderBytes
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = defaultReadBuffer
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = wsframe.DefaultMaxPayload
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	s := &Server{
		logger:     logger.Named("server"),
		cfg:        cfg,
		store:      store,
		handler:    handler,
		tracer:     trace.Tracer(cnst.TraceCore),
		cookieName: DefaultSessionCookie,
		registry:   newRegistry(),
		events:     make(chan event, cfg.EventBuffer),
		wake:       make(chan struct{}, 1),
		posted:     queue.New(),
		pending:    make(map[*Connection]struct{}),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) connOptions() connOptions {
	return connOptions{
		store:        s.store,
		logger:       s.logger,
		metrics:      s.metrics,
		writeTimeout: s.cfg.WriteTimeout,
		cookieName:   s.cookieName,
	}
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled or Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := listenConfig(s.cfg.ReusePort)
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop and the event loop on ln. It blocks until ctx is
// cancelled or Shutdown is called; every registered connection is then closed
// and sees OnClose before Serve returns.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrServerStarted
	}
	s.started = true
	s.ln = ln
	s.cancel = cancel
	s.startedAt = time.Now()
	s.mu.Unlock()
	defer close(s.stopped)

	s.logger.Info("websocket server listening", zap.String("addr", ln.Addr().String()))

	acceptErr := make(chan error, 1)
	go func() {
		acceptErr <- s.acceptLoop(ctx, ln)
	}()

	s.loop(ctx)

	close(s.done)
	_ = ln.Close()
	err := <-acceptErr
	s.teardown()
	s.logger.Info("websocket server stopped")
	return err
}

// Shutdown stops a running server and waits for Serve to return
func (s *Server) Shutdown() {
	s.mu.Lock()
	cancel, started := s.cancel, s.started
	s.mu.Unlock()
	if !started {
		return
	}
	if cancel != nil {
		cancel()
	}
	<-s.stopped
}

// Addr returns the listener address, or nil before Serve
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// StartedAt returns when Serve began
func (s *Server) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Registry returns the connection registry. Loop goroutine only.
func (s *Server) Registry() *Registry {
	return s.registry
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
				s.logger.Warn("accept failed, retrying", zap.Error(err), zap.Duration("backoff", backoff))
				time.Sleep(backoff)
				continue
			}
			s.logger.Error("accept failed", zap.Error(err))
			s.cancel()
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0
		s.metrics.ConnAccepted()
		s.wg.Add(1)
		go s.prepare(ctx, conn)
	}
}

// prepare reads and validates the upgrade request off the loop, then hands
// the connection to the loop for login.
func (s *Server) prepare(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	start := time.Now()
	c := newConnection(s.nextID.Add(1), conn, s.connOptions())
	if !s.track(c) {
		c.abort()
		return
	}

	if s.cfg.HandshakeTimeout > 0 {
		_ = conn.SetReadDeadline(start.Add(s.cfg.HandshakeTimeout))
	}
	header, rest, err := handshake.ReadRequest(conn, s.cfg.MaxHeaderBytes)
	if err != nil {
		s.dropHandshake(c, metrics.HandshakeError, start, err)
		return
	}
	if !handshake.IsUpgrade(header) {
		s.dropHandshake(c, metrics.HandshakeBadRequest, start, handshake.ErrNotUpgrade)
		return
	}
	if err := c.prepare(ctx, header, s.connOptions()); err != nil {
		s.dropHandshake(c, metrics.HandshakeBadRequest, start, err)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	if !s.emit(event{kind: evHandshake, conn: c, payload: rest, at: start}) {
		s.untrack(c)
		c.abort()
	}
}

func (s *Server) dropHandshake(c *Connection, result string, start time.Time, err error) {
	s.untrack(c)
	c.abort()
	s.metrics.HandshakeDone(result, start)
	c.logger.Debug("dropping connection during handshake", zap.String("result", result), zap.Error(err))
}

func (s *Server) track(c *Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.pending[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *Connection) {
	s.mu.Lock()
	delete(s.pending, c)
	s.mu.Unlock()
}

// emit hands an event to the loop. It fails once the loop has stopped.
func (s *Server) emit(ev event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Server) loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.dispatch(ctx, ev)
		case <-s.wake:
			s.runPosted()
		case now := <-ticker.C:
			s.runJobs(now)
		}
	}
}

func (s *Server) dispatch(ctx context.Context, ev event) {
	switch ev.kind {
	case evHandshake:
		s.open(ctx, ev)
	case evMessage:
		s.message(ctx, ev)
	case evDisconnect:
		s.disconnect(ctx, ev.conn, ev.reason)
	}
}

func (s *Server) open(ctx context.Context, ev event) {
	c := ev.conn
	defer s.untrack(c)

	scope := s.tracer.Start(ctx, cnst.SpanHandshake).WithAttrs(
		attribute.Int64(cnst.AttrConnID, int64(c.ID())),
		attribute.String(cnst.AttrClientAddr, c.RemoteAddr()),
		attribute.String(cnst.AttrPath, c.Path()),
	)
	defer scope.End()

	if err := s.login(ctx, c); err != nil {
		scope.Fail(err)
		c.abort()
		s.metrics.HandshakeDone(metrics.HandshakeRejected, ev.at)
		if errors.Is(err, ErrLoginRejected) {
			c.logger.Debug("login rejected")
		} else {
			c.logger.Info("login rejected", zap.Error(err))
		}
		return
	}
	if c.State() != StateConnecting {
		c.abort()
		s.metrics.HandshakeDone(metrics.HandshakeRejected, ev.at)
		return
	}

	if err := c.writeRaw(handshake.Response(c.req, s.cfg.ServerName, c.Host(), time.Now())); err != nil {
		scope.Fail(err)
		c.abort()
		s.metrics.HandshakeDone(metrics.HandshakeError, ev.at)
		c.logger.Debug("writing handshake response failed", zap.Error(err))
		return
	}
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		c.abort()
		return
	}
	s.registry.add(c)
	s.metrics.HandshakeDone(metrics.HandshakeOK, ev.at)
	s.metrics.ConnOpened()
	scope.WithAttrs(attribute.String(cnst.AttrIdentity, c.Identity()))
	c.logger.Debug("connection open", zap.String("path", c.Path()), zap.String("identity", c.Identity()))

	s.wg.Add(1)
	go s.readLoop(c, ev.payload)

	s.safeCall("OnOpen", c, func() { s.handler.OnOpen(c) })
}

func (s *Server) login(ctx context.Context, c *Connection) (err error) {
	scope := s.tracer.Start(ctx, cnst.SpanLogin).WithAttrs(attribute.Int64(cnst.AttrConnID, int64(c.ID())))
	defer scope.End()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in OnLogin", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("%w: panic in OnLogin", ErrLoginRejected)
		}
		scope.Fail(err)
	}()
	return s.handler.OnLogin(c)
}

func (s *Server) message(ctx context.Context, ev event) {
	c := ev.conn
	if _, ok := s.registry.Get(c.ID()); !ok {
		return
	}
	start := time.Now()
	scope := s.tracer.Start(ctx, cnst.SpanMessage).WithAttrs(
		attribute.Int64(cnst.AttrConnID, int64(c.ID())),
		attribute.String(cnst.AttrMessageType, ev.mt.String()),
		attribute.Int(cnst.AttrPayloadSize, len(ev.payload)),
	)
	defer scope.End()
	s.safeCall("OnMessage", c, func() { s.handler.OnMessage(c, ev.mt, ev.payload) })
	s.metrics.MessageHandled(ev.mt.String(), start)
}

// disconnect deregisters c and fires OnClose once
func (s *Server) disconnect(ctx context.Context, c *Connection, reason string) {
	if _, ok := s.registry.remove(c.ID()); !ok {
		return
	}
	c.abort()
	s.metrics.ConnClosed()

	scope := s.tracer.Start(ctx, cnst.SpanClose).WithAttrs(
		attribute.Int64(cnst.AttrConnID, int64(c.ID())),
		attribute.String(cnst.AttrErrorReason, reason),
	)
	defer scope.End()
	c.logger.Debug("connection closed", zap.String("reason", reason))
	s.safeCall("OnClose", c, func() { s.handler.OnClose(c) })
}

func (s *Server) safeCall(name string, c *Connection, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			fields := []zap.Field{zap.String("callback", name), zap.Any("panic", r), zap.Stack("stack")}
			if c != nil {
				fields = append(fields, zap.Uint64("conn_id", c.ID()))
			}
			s.logger.Error("panic in callback", fields...)
		}
	}()
	fn()
}

// readLoop decodes frames for one connection until it closes. initial holds
// bytes that arrived together with the handshake.
func (s *Server) readLoop(c *Connection, initial []byte) {
	defer s.wg.Done()

	dec := wsframe.NewDecoder(uint64(s.cfg.MaxFrameSize))
	chunk := make([]byte, s.cfg.ReadBufferSize)
	buf := append(make([]byte, 0, s.cfg.ReadBufferSize), initial...)
	var readErr error

	for {
		off := 0
		for off < len(buf) {
			f, n, err := dec.Decode(buf[off:])
			if errors.Is(err, wsframe.ErrIncomplete) {
				break
			}
			if err != nil {
				code := wsframe.CloseProtocolError
				var de *wsframe.DecodeError
				if errors.As(err, &de) {
					code = de.Code
				}
				c.logger.Debug("frame decode failed", zap.Error(err))
				_ = c.CloseWithStatus(code, "")
				s.emit(event{kind: evDisconnect, conn: c, reason: err.Error()})
				return
			}
			off += n
			if !s.handleFrame(c, f) {
				return
			}
		}
		buf = buf[:copy(buf, buf[off:])]

		if readErr != nil {
			s.emit(event{kind: evDisconnect, conn: c, reason: readErr.Error()})
			return
		}
		n, err := c.conn.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			readErr = err
		}
	}
}

// handleFrame reports whether the reader should keep going
func (s *Server) handleFrame(c *Connection, f *wsframe.Frame) bool {
	s.metrics.Frame(metrics.DirectionIn, f.Opcode.String(), len(f.Payload))
	switch f.Opcode {
	case wsframe.OpPing:
		if err := c.writeControl(wsframe.OpPong, f.Payload); err != nil {
			c.logger.Debug("pong failed", zap.Error(err))
		}
		return true
	case wsframe.OpPong:
		return true
	case wsframe.OpClose:
		code, _ := wsframe.CloseStatus(f.Payload)
		_ = c.CloseWithStatus(code, "")
		s.emit(event{kind: evDisconnect, conn: c, reason: fmt.Sprintf("close frame %d", code)})
		return false
	case wsframe.OpText:
		return s.emit(event{kind: evMessage, conn: c, mt: TextMessage, payload: f.Payload})
	case wsframe.OpBinary:
		return s.emit(event{kind: evMessage, conn: c, mt: BinaryMessage, payload: f.Payload})
	}
	return true
}

// Post runs fn on the loop goroutine. It is safe to call from anywhere,
// including before Serve.
func (s *Server) Post(fn func()) {
	s.postMu.Lock()
	s.posted.Add(fn)
	s.postMu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Server) runPosted() {
	for {
		s.postMu.Lock()
		if s.posted.Length() == 0 {
			s.postMu.Unlock()
			return
		}
		fn := s.posted.Remove().(func())
		s.postMu.Unlock()
		s.safeCall("Post", nil, fn)
	}
}

// Every runs fn on the loop goroutine roughly every interval. The resolution
// is bounded by the poll interval.
func (s *Server) Every(interval time.Duration, fn func(now time.Time)) {
	if interval <= 0 || fn == nil {
		return
	}
	s.Post(func() {
		s.jobs = append(s.jobs, &job{interval: interval, next: time.Now().Add(interval), fn: fn})
	})
}

func (s *Server) runJobs(now time.Time) {
	for _, j := range s.jobs {
		if now.Before(j.next) {
			continue
		}
		j.next = now.Add(j.interval)
		s.safeCall("Every", nil, func() { j.fn(now) })
	}
}

// Broadcast sends a text message to every open connection except the listed
// ids and returns how many sends succeeded. Loop goroutine only.
func (s *Server) Broadcast(msg []byte, except ...uint64) int {
	sent := 0
	s.registry.Each(func(c *Connection) bool {
		if slices.Contains(except, c.ID()) {
			return true
		}
		if err := c.Send(msg); err != nil {
			c.logger.Error("broadcast send failed", zap.Error(err))
			return true
		}
		sent++
		return true
	})
	return sent
}

// SendTo sends a text message to one connection. Loop goroutine only.
func (s *Server) SendTo(id uint64, msg []byte) error {
	c, ok := s.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownConnection, id)
	}
	if err := c.Send(msg); err != nil {
		c.logger.Error("send failed", zap.Error(err))
		return err
	}
	return nil
}

// Stats collects a snapshot on the loop goroutine
func (s *Server) Stats(ctx context.Context) (Stats, error) {
	ch := make(chan Stats, 1)
	s.Post(func() {
		ch <- Stats{
			Connections: s.registry.Len(),
			Identities:  s.registry.Identities(),
			StartedAt:   s.StartedAt(),
			Accepted:    s.nextID.Load(),
		}
	})
	select {
	case st := <-ch:
		return st, nil
	case <-s.stopped:
		return Stats{}, ErrServerStopped
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// teardown runs after the loop exits: close registered connections with
// OnClose, drop handshakes in flight, wait for readers.
func (s *Server) teardown() {
	ctx := context.Background()
	for _, id := range slices.Sorted(maps.Keys(s.registry.conns)) {
		c := s.registry.conns[id]
		_ = c.CloseWithStatus(wsframe.CloseGoingAway, "server shutdown")
		s.disconnect(ctx, c, "server shutdown")
	}

	s.mu.Lock()
	s.closing = true
	for c := range s.pending {
		c.abort()
	}
	s.mu.Unlock()

	s.wg.Wait()
	for {
		select {
		case ev := <-s.events:
			if ev.kind == evHandshake {
				ev.conn.abort()
			}
		default:
			return
		}
	}
}
