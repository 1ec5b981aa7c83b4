package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/kamshory/wsbridge/internal/auth"
	"github.com/kamshory/wsbridge/internal/common/config"
	"github.com/kamshory/wsbridge/internal/core"
	"github.com/kamshory/wsbridge/internal/handshake"
	"github.com/kamshory/wsbridge/internal/session"
	"github.com/kamshory/wsbridge/pkg/wsframe"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const waitFor = 2 * time.Second

// sessionAuth logs users in from a memory session store where session id
// "s-<name>" belongs to <name>.
func sessionAuth(t *testing.T, users ...string) (*session.Store, *auth.Authenticator) {
	t.Helper()
	backend := session.NewMemoryBackend()
	for _, u := range users {
		require.NoError(t, backend.Write(context.Background(), "s-"+u, []byte(fmt.Sprintf(`username|s:%d:"%s";`, len(u), u))))
	}
	store := session.New(zap.NewNop(), backend, session.DelimitedCodec{})
	return store, auth.New(zap.NewNop(), auth.NewSessionStrategy("username", "", nil))
}

func serve(t *testing.T, a Application, store *session.Store) *core.Server {
	t.Helper()
	srv := core.NewServer(zap.NewNop(), config.WebSocketConfig{
		ServerName:       "wsbridge-test",
		HandshakeTimeout: time.Second,
		WriteTimeout:     time.Second,
		PollInterval:     10 * time.Millisecond,
	}, store, a)
	a.Bind(srv)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(context.Background(), ln) }()
	t.Cleanup(func() {
		srv.Shutdown()
		require.NoError(t, <-errCh)
	})
	require.Eventually(t, func() bool { return srv.Addr() != nil }, waitFor, 5*time.Millisecond)
	return srv
}

type wsClient struct {
	t    *testing.T
	conn net.Conn
	buf  []byte
}

// connect logs in as user and consumes the messages sent on open whose
// command is listed in skip.
func connect(t *testing.T, srv *core.Server, user string, skip ...string) *wsClient {
	t.Helper()
	return connectWith(t, srv, user, "", skip...)
}

// connectWith is connect with extra raw header lines
func connectWith(t *testing.T, srv *core.Server, user, headers string, skip ...string) *wsClient {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(waitFor))

	req := "GET /ws HTTP/1.1\r\nHost: localhost\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\nSec-WebSocket-Version: 13\r\n"
	if user != "" {
		req += "Cookie: " + core.DefaultSessionCookie + "=s-" + user + "\r\n"
	}
	_, err = conn.Write([]byte(req + headers + "\r\n"))
	require.NoError(t, err)

	header, rest, err := handshake.ReadRequest(conn, 8192)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(header), handshake.StatusLine))

	c := &wsClient{t: t, conn: conn, buf: rest}
	for _, cmd := range skip {
		c.expect(cmd)
	}
	return c
}

func (c *wsClient) send(msg string) {
	c.t.Helper()
	frame, err := wsframe.Encode([]byte(msg), wsframe.OpText, true)
	require.NoError(c.t, err)
	_, err = c.conn.Write(frame)
	require.NoError(c.t, err)
}

func (c *wsClient) read() (gjson.Result, error) {
	chunk := make([]byte, 4096)
	for {
		f, n, err := wsframe.Decode(c.buf)
		if err == nil {
			c.buf = c.buf[n:]
			if f.Opcode != wsframe.OpText {
				continue
			}
			return gjson.ParseBytes(f.Payload), nil
		}
		if !errors.Is(err, wsframe.ErrIncomplete) {
			return gjson.Result{}, err
		}
		n, err = c.conn.Read(chunk)
		c.buf = append(c.buf, chunk[:n]...)
		if err != nil {
			return gjson.Result{}, err
		}
	}
}

// expect reads the next message and checks its command
func (c *wsClient) expect(command string) gjson.Result {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(waitFor))
	msg, err := c.read()
	require.NoError(c.t, err)
	require.Equal(c.t, command, msg.Get("command").String(), msg.Raw)
	return msg
}

// expectNothing checks no message arrives within d
func (c *wsClient) expectNothing(d time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(d))
	msg, err := c.read()
	var ne net.Error
	require.True(c.t, errors.As(err, &ne) && ne.Timeout(), "unexpected message %s", msg.Raw)
	_ = c.conn.SetReadDeadline(time.Now().Add(waitFor))
}
