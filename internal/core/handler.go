package core

import (
	"errors"
)

// ErrLoginRejected is the conventional error for OnLogin to refuse a client.
// Any non-nil error rejects; this one is logged at debug level only.
var ErrLoginRejected = errors.New("login rejected")

// MessageType tags the payload of a data frame
type MessageType int

const (
	TextMessage MessageType = iota + 1
	BinaryMessage
)

func (t MessageType) String() string {
	switch t {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	}
	return "unknown"
}

// Handler receives connection events. Every method runs on the server loop
// goroutine, one call at a time, so implementations need no locking for state
// they only touch from these callbacks.
type Handler interface {
	// OnLogin runs before the upgrade response is written. Returning an error
	// closes the socket without a response and the connection is never
	// registered.
	OnLogin(c *Connection) error
	OnOpen(c *Connection)
	OnMessage(c *Connection, mt MessageType, payload []byte)
	// OnClose fires exactly once for every connection that reached OnOpen.
	OnClose(c *Connection)
}

// NopHandler accepts every login and ignores all events. Embed it to
// implement only the callbacks you need.
type NopHandler struct{}

func (NopHandler) OnLogin(*Connection) error                  { return nil }
func (NopHandler) OnOpen(*Connection)                         {}
func (NopHandler) OnMessage(*Connection, MessageType, []byte) {}
func (NopHandler) OnClose(*Connection)                        {}
