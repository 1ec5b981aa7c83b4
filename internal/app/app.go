// Package app holds the applications that run on top of the WebSocket
// server: a chat room with private messages and call signaling, a JWT
// signing message broker, and a periodic dashboard push.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kamshory/wsbridge/internal/auth"
	"github.com/kamshory/wsbridge/internal/common/cnst"
	"github.com/kamshory/wsbridge/internal/core"
	"github.com/kamshory/wsbridge/internal/database"
	"github.com/kamshory/wsbridge/internal/i18n"
	"github.com/kamshory/wsbridge/pkg/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const loginTimeout = 5 * time.Second

// Hub is the part of the server the applications drive. Except for Post and
// Every, its methods must be called from the loop goroutine.
type Hub interface {
	Registry() *core.Registry
	Broadcast(msg []byte, except ...uint64) int
	SendTo(id uint64, msg []byte) error
	Post(fn func())
	Every(interval time.Duration, fn func(now time.Time))
	StartedAt() time.Time
}

var _ Hub = (*core.Server)(nil)

// Application is a connection handler that needs the server it runs on
type Application interface {
	core.Handler
	// Bind attaches the server. It is called once, before Serve.
	Bind(hub Hub)
}

// Envelope is the shape of every message the server sends
type Envelope struct {
	Command string `json:"command"`
	Data    any    `json:"data,omitempty"`
}

// Encode marshals an envelope
func Encode(command string, data any) ([]byte, error) {
	return json.Marshal(Envelope{Command: command, Data: data})
}

type handlerFunc func(c *core.Connection, cmd *Command)

// base carries what every application shares: login, the command table and
// replies.
type base struct {
	logger   *zap.Logger
	authn    *auth.Authenticator
	db       database.Database
	hub      Hub
	tracer   *trace.Builder
	tr       *i18n.Translator
	handlers map[CommandKind]handlerFunc
}

func newBase(logger *zap.Logger, authn *auth.Authenticator, db database.Database) base {
	return base{
		logger:   logger,
		authn:    authn,
		db:       db,
		tracer:   trace.Tracer(cnst.TraceApp),
		tr:       i18n.Default(),
		handlers: make(map[CommandKind]handlerFunc),
	}
}

func (b *base) Bind(hub Hub) {
	b.hub = hub
}

// OnLogin resolves the identity. Without an authenticator every client is
// accepted anonymously.
func (b *base) OnLogin(c *core.Connection) error {
	if b.authn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
	defer cancel()
	id, err := b.authn.Login(ctx, c)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrLoginRejected, err)
	}
	c.SetClientData(id)
	return c.SetIdentity(id.Username)
}

func (b *base) OnOpen(*core.Connection)  {}
func (b *base) OnClose(*core.Connection) {}

func (b *base) OnMessage(c *core.Connection, mt core.MessageType, payload []byte) {
	if mt != core.TextMessage {
		b.logger.Debug("ignoring non-text message", zap.Uint64("conn_id", c.ID()), zap.Int("size", len(payload)))
		return
	}
	b.dispatch(c, payload)
}

func (b *base) dispatch(c *core.Connection, payload []byte) {
	cmd, err := ParseCommand(payload)
	if err != nil {
		b.logger.Debug("unparseable command", zap.Uint64("conn_id", c.ID()), zap.Error(err))
		msgID := i18n.MsgInvalidCommand
		if errors.Is(err, ErrMissingCommand) {
			msgID = i18n.MsgMissingCommand
		}
		b.replyError(c, msgID, nil)
		return
	}
	h, ok := b.handlers[cmd.Kind]
	if !ok {
		b.logger.Info("unknown command", zap.Uint64("conn_id", c.ID()), zap.String("command", cmd.Name))
		return
	}

	scope := b.tracer.Start(context.Background(), "app."+cmd.Name).WithAttrs(
		attribute.Int64(cnst.AttrConnID, int64(c.ID())),
		attribute.String(cnst.AttrIdentity, c.Identity()),
	)
	defer scope.End()
	h(c, cmd)
}

func (b *base) reply(c *core.Connection, command string, data any) {
	msg, err := Encode(command, data)
	if err != nil {
		b.logger.Error("encode reply", zap.String("command", command), zap.Error(err))
		return
	}
	if err := c.Send(msg); err != nil {
		b.logger.Error("send reply", zap.Uint64("conn_id", c.ID()), zap.Error(err))
	}
}

// replyError sends an error in the language the client asked for during the
// handshake. The code field carries the untranslated message ID.
func (b *base) replyError(c *core.Connection, msgID string, data map[string]any) {
	b.reply(c, "error", map[string]any{
		"code":    msgID,
		"message": b.tr.Translate(msgID, data, i18n.Preferences(c)...),
	})
}

// sendToUser delivers msg to every connection of identity and returns how
// many received it.
func (b *base) sendToUser(identity string, msg []byte) int {
	n := 0
	for _, conn := range b.hub.Registry().ByIdentity(identity) {
		if err := conn.Send(msg); err != nil {
			b.logger.Error("send to user", zap.String("identity", identity), zap.Error(err))
			continue
		}
		n++
	}
	return n
}

// archive stores a message when a database is attached
func (b *base) archive(m *database.Message) {
	if b.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.db.SaveMessage(ctx, m); err != nil {
		b.logger.Warn("archive message", zap.String("id", m.ID), zap.Error(err))
	}
}
