package app

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/kamshory/wsbridge/internal/auth"
	"github.com/kamshory/wsbridge/internal/auth/jwt"
	"github.com/kamshory/wsbridge/internal/core"
	"github.com/kamshory/wsbridge/internal/database"
	"github.com/kamshory/wsbridge/internal/i18n"

	"go.uber.org/zap"
)

// Broker relays messages between channel subscribers. Every relayed message
// carries a JWT signed by the server that names the sender and channel and
// binds the message body through its digest.
type Broker struct {
	base
	jwt            *jwt.Service
	requireToken   bool
	archiveEnabled bool
	now            func() time.Time

	// channel -> subscribers; loop goroutine only
	channels map[string]map[uint64]*core.Connection
}

var _ Application = (*Broker)(nil)

// NewBroker builds the broker. With requireToken set, publish requests must
// carry a token previously obtained with the sign command.
func NewBroker(logger *zap.Logger, authn *auth.Authenticator, db database.Database, signer *jwt.Service, requireToken, archive bool) *Broker {
	b := &Broker{
		base:           newBase(logger.Named("broker"), authn, db),
		jwt:            signer,
		requireToken:   requireToken,
		archiveEnabled: archive && db != nil,
		now:            time.Now,
		channels:       make(map[string]map[uint64]*core.Connection),
	}
	b.handlers[CmdSubscribe] = b.subscribe
	b.handlers[CmdUnsubscribe] = b.unsubscribe
	b.handlers[CmdPublish] = b.publish
	b.handlers[CmdSign] = b.sign
	return b
}

func (b *Broker) OnClose(c *core.Connection) {
	for name, subs := range b.channels {
		delete(subs, c.ID())
		if len(subs) == 0 {
			delete(b.channels, name)
		}
	}
}

// Subscribers returns the connection ids subscribed to channel, sorted
func (b *Broker) Subscribers(channel string) []uint64 {
	return slices.Sorted(maps.Keys(b.channels[channel]))
}

func (b *Broker) subscribe(c *core.Connection, cmd *Command) {
	names := cmd.Strings("channel")
	if len(names) == 0 {
		b.replyError(c, i18n.MsgChannelRequired, nil)
		return
	}
	for _, name := range names {
		subs, ok := b.channels[name]
		if !ok {
			subs = make(map[uint64]*core.Connection)
			b.channels[name] = subs
		}
		subs[c.ID()] = c
	}
	b.reply(c, "subscribed", map[string]any{"channels": names})
}

func (b *Broker) unsubscribe(c *core.Connection, cmd *Command) {
	names := cmd.Strings("channel")
	for _, name := range names {
		if subs, ok := b.channels[name]; ok {
			delete(subs, c.ID())
			if len(subs) == 0 {
				delete(b.channels, name)
			}
		}
	}
	b.reply(c, "unsubscribed", map[string]any{"channels": names})
}

// sign issues a token for a message the client intends to publish
func (b *Broker) sign(c *core.Connection, cmd *Command) {
	channel, message := cmd.String("channel"), cmd.String("message")
	if channel == "" {
		b.replyError(c, i18n.MsgChannelRequired, nil)
		return
	}
	token, claims, err := b.jwt.GenerateToken(c.Identity(), channel, []byte(message))
	if err != nil {
		b.logger.Error("sign token", zap.Error(err))
		b.replyError(c, i18n.MsgTokenNotIssued, nil)
		return
	}
	b.reply(c, "token", map[string]any{"id": claims.ID, "channel": channel, "token": token})
}

func (b *Broker) publish(c *core.Connection, cmd *Command) {
	channel, message := cmd.String("channel"), cmd.String("message")
	if channel == "" {
		b.replyError(c, i18n.MsgChannelRequired, nil)
		return
	}

	if token := cmd.String("token"); token != "" {
		claims, err := b.jwt.VerifyPayload(token, []byte(message))
		if err == nil && claims.Username != c.Identity() {
			err = errors.New("token issued to another user")
		}
		if err == nil && claims.Channel != "" && claims.Channel != channel {
			err = errors.New("token issued for another channel")
		}
		if err != nil {
			b.logger.Info("rejected publish token", zap.Uint64("conn_id", c.ID()), zap.Error(err))
			b.replyError(c, i18n.MsgInvalidToken, map[string]any{"Reason": err.Error()})
			return
		}
	} else if b.requireToken {
		b.replyError(c, i18n.MsgTokenRequired, nil)
		return
	}

	token, claims, err := b.jwt.GenerateToken(c.Identity(), channel, []byte(message))
	if err != nil {
		b.logger.Error("sign relayed message", zap.Error(err))
		b.replyError(c, i18n.MsgSignFailed, nil)
		return
	}
	now := b.now()
	msg, err := Encode("message", map[string]any{
		"id":        claims.ID,
		"channel":   channel,
		"sender":    c.Identity(),
		"message":   message,
		"token":     token,
		"timestamp": now.UnixMilli(),
	})
	if err != nil {
		b.logger.Error("encode relayed message", zap.Error(err))
		return
	}

	sent := 0
	for _, id := range b.Subscribers(channel) {
		if id == c.ID() {
			continue
		}
		if err := b.channels[channel][id].Send(msg); err != nil {
			b.logger.Error("relay message", zap.Uint64("conn_id", id), zap.Error(err))
			continue
		}
		sent++
	}
	b.reply(c, "published", map[string]any{"id": claims.ID, "channel": channel, "receivers": sent})

	if b.archiveEnabled {
		b.archive(&database.Message{
			ID: claims.ID, Kind: database.KindPublish, Channel: channel,
			Sender: c.Identity(), Content: message, Timestamp: now,
		})
	}
}
