package app

import (
	"context"
	"slices"
	"time"

	"github.com/kamshory/wsbridge/internal/auth"
	"github.com/kamshory/wsbridge/internal/core"
	"github.com/kamshory/wsbridge/internal/database"
	"github.com/kamshory/wsbridge/internal/i18n"

	"github.com/google/uuid"
	"github.com/ifuryst/lol"
	"go.uber.org/zap"
)

const (
	chatChannel         = "chat"
	privateChannel      = "private"
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Chat is a single room. Messages go to everyone but the sender; private
// messages and call signaling go to the named users only.
type Chat struct {
	base
	archiveEnabled bool
	now            func() time.Time
}

var _ Application = (*Chat)(nil)

// NewChat builds the chat application. db may be nil; archive only has an
// effect with a database.
func NewChat(logger *zap.Logger, authn *auth.Authenticator, db database.Database, archive bool) *Chat {
	c := &Chat{
		base:           newBase(logger.Named("chat"), authn, db),
		archiveEnabled: archive && db != nil,
		now:            time.Now,
	}
	c.handlers[CmdSendMessage] = c.sendMessage
	c.handlers[CmdPrivateMessage] = c.privateMessage
	c.handlers[CmdWho] = c.who
	c.handlers[CmdHistory] = c.history
	for _, k := range []CommandKind{CmdCall, CmdAnswer, CmdReject, CmdHangup} {
		c.handlers[k] = c.signal
	}
	return c
}

func (ch *Chat) OnOpen(c *core.Connection) {
	ch.reply(c, "welcome", map[string]any{
		"id":       c.ID(),
		"username": c.Identity(),
		"users":    ch.hub.Registry().Identities(),
	})
	// announce only the first connection of a user
	if c.Identity() != "" && len(ch.hub.Registry().ByIdentity(c.Identity())) == 1 {
		ch.broadcast("user-online", map[string]any{"username": c.Identity()}, c.ID())
	}
}

func (ch *Chat) OnClose(c *core.Connection) {
	if c.Identity() != "" && len(ch.hub.Registry().ByIdentity(c.Identity())) == 0 {
		ch.broadcast("user-offline", map[string]any{"username": c.Identity()})
	}
}

func (ch *Chat) broadcast(command string, data any, except ...uint64) {
	msg, err := Encode(command, data)
	if err != nil {
		ch.logger.Error("encode broadcast", zap.String("command", command), zap.Error(err))
		return
	}
	ch.hub.Broadcast(msg, except...)
}

func (ch *Chat) sendMessage(c *core.Connection, cmd *Command) {
	text := cmd.String("message")
	if text == "" {
		ch.replyError(c, i18n.MsgMessageRequired, nil)
		return
	}
	now := ch.now()
	id := uuid.NewString()
	ch.broadcast("send-message", map[string]any{
		"id":        id,
		"sender":    c.Identity(),
		"message":   text,
		"timestamp": now.UnixMilli(),
	}, c.ID())

	if ch.archiveEnabled {
		ch.archive(&database.Message{
			ID: id, Kind: database.KindBroadcast, Channel: chatChannel,
			Sender: c.Identity(), Content: text, Timestamp: now,
		})
	}
}

func (ch *Chat) privateMessage(c *core.Connection, cmd *Command) {
	text := cmd.String("message")
	receivers := lol.UniqSlice(append(cmd.Strings("receivers"), cmd.Strings("receiver")...))
	if text == "" || len(receivers) == 0 {
		ch.replyError(c, i18n.MsgMessageAndReceiversRequired, nil)
		return
	}
	slices.Sort(receivers)

	now := ch.now()
	id := uuid.NewString()
	delivered, offline := []string{}, []string{}
	for _, r := range receivers {
		msg, err := Encode("private-message", map[string]any{
			"id":        id,
			"sender":    c.Identity(),
			"receiver":  r,
			"message":   text,
			"timestamp": now.UnixMilli(),
		})
		if err != nil {
			ch.logger.Error("encode private message", zap.Error(err))
			return
		}
		if ch.sendToUser(r, msg) > 0 {
			delivered = append(delivered, r)
		} else {
			offline = append(offline, r)
		}
		if ch.archiveEnabled {
			ch.archive(&database.Message{
				ID: id + ":" + r, Kind: database.KindPrivate, Channel: privateChannel,
				Sender: c.Identity(), Receiver: r, Content: text, Timestamp: now,
			})
		}
	}
	ch.reply(c, "message-status", map[string]any{"id": id, "delivered": delivered, "offline": offline})
}

// signal forwards call setup messages, annotated with who sent them
func (ch *Chat) signal(c *core.Connection, cmd *Command) {
	receiver := cmd.String("receiver")
	if receiver == "" {
		ch.replyError(c, i18n.MsgReceiverRequired, map[string]any{"Command": cmd.Name})
		return
	}
	data := cmd.Data()
	data["sender"] = c.Identity()
	data["receiver"] = receiver
	msg, err := Encode(cmd.Name, data)
	if err != nil {
		ch.logger.Error("encode signal", zap.Error(err))
		return
	}
	if ch.sendToUser(receiver, msg) == 0 {
		ch.reply(c, "user-offline", map[string]any{"username": receiver, "command": cmd.Name})
	}
}

func (ch *Chat) who(c *core.Connection, _ *Command) {
	ch.reply(c, "who", map[string]any{"users": ch.hub.Registry().Identities()})
}

func (ch *Chat) history(c *core.Connection, cmd *Command) {
	if ch.db == nil {
		ch.replyError(c, i18n.MsgHistoryUnavailable, nil)
		return
	}
	limit := int(cmd.Arg("limit").Int())
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var (
		msgs []*database.Message
		err  error
	)
	if with := cmd.String("with"); with != "" {
		msgs, err = ch.db.GetConversation(ctx, c.Identity(), with, limit)
	} else {
		msgs, err = ch.db.GetMessages(ctx, chatChannel, limit)
	}
	if err != nil {
		ch.logger.Warn("load history", zap.Error(err))
		ch.replyError(c, i18n.MsgHistoryFailed, nil)
		return
	}
	ch.reply(c, "history", map[string]any{"messages": msgs})
}
