// Package wsframe encodes and decodes RFC 6455 data frames.
//
// Only single-frame messages are supported: every encoded frame carries the
// FIN bit and continuation frames are rejected on decode.
package wsframe

import (
	"errors"
	"fmt"
)

// Opcode is the 4-bit frame type.
type Opcode byte

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

// IsControl reports whether the opcode is a control opcode (close, ping, pong).
func (o Opcode) IsControl() bool {
	return o&0x8 != 0
}

// IsData reports whether the opcode carries an application message.
func (o Opcode) IsData() bool {
	return o == OpText || o == OpBinary
}

func (o Opcode) String() string {
	switch o {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return fmt.Sprintf("opcode(0x%x)", byte(o))
	}
}

const (
	finBit   = 0x80
	rsvBits  = 0x70
	maskBit  = 0x80
	opMask   = 0x0F
	len7Mask = 0x7F

	len16Marker = 126
	len64Marker = 127

	// MaxControlPayload is the largest payload a control frame may carry.
	MaxControlPayload = 125

	// DefaultMaxPayload bounds the declared payload length accepted by Decode.
	DefaultMaxPayload = 1 << 20

	// MaxHeaderLen is the size of the largest possible frame header.
	MaxHeaderLen = 14
)

// Close status codes used by the server.
const (
	CloseNormal          uint16 = 1000
	CloseGoingAway       uint16 = 1001
	CloseProtocolError   uint16 = 1002
	CloseUnsupportedData uint16 = 1003
	CloseNoStatus        uint16 = 1005
	CloseMessageTooBig   uint16 = 1009
	CloseInternalError   uint16 = 1011
)

// Frame is one decoded WebSocket frame. Payload is already unmasked.
type Frame struct {
	Fin     bool
	Opcode  Opcode
	Masked  bool
	MaskKey [4]byte
	Payload []byte
}

var (
	// ErrIncomplete is returned by Decode when the buffer does not yet hold a
	// whole frame. It is not a protocol error: buffer more bytes and retry.
	ErrIncomplete = errors.New("incomplete frame")
	// ErrLengthOverflow is returned when a payload length does not fit in 63 bits.
	ErrLengthOverflow = errors.New("payload length overflows 63 bits")
	// ErrControlTooLarge is returned when encoding a control frame above 125 bytes.
	ErrControlTooLarge = errors.New("control frame payload exceeds 125 bytes")
)

// DecodeError reports a malformed frame. The byte stream cannot be resynchronised
// after a DecodeError, so the connection should be closed.
type DecodeError struct {
	Reason string
	// Code is the close status the peer should be told about.
	Code uint16
}

func (e *DecodeError) Error() string {
	return "wsframe: " + e.Reason
}

func decodeErr(code uint16, format string, args ...any) *DecodeError {
	return &DecodeError{Reason: fmt.Sprintf(format, args...), Code: code}
}

// IsDecodeError reports whether err is (or wraps) a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
