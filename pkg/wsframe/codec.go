package wsframe

import (
	"encoding/binary"
)

// Encode builds a single final frame carrying payload. Server-to-client frames
// are sent unmasked; mask is set when acting as a client.
func Encode(payload []byte, op Opcode, mask bool) ([]byte, error) {
	return AppendFrame(make([]byte, 0, MaxHeaderLen+len(payload)), payload, op, mask)
}

// AppendFrame appends the encoded frame to dst and returns the extended slice.
func AppendFrame(dst, payload []byte, op Opcode, mask bool) ([]byte, error) {
	if op.IsControl() && len(payload) > MaxControlPayload {
		return nil, ErrControlTooLarge
	}

	var key [4]byte
	if mask {
		key = newMaskKey()
	}
	dst, err := AppendHeader(dst, op, uint64(len(payload)), mask, key)
	if err != nil {
		return nil, err
	}

	start := len(dst)
	dst = append(dst, payload...)
	if mask {
		maskBytes(key, 0, dst[start:])
	}
	return dst, nil
}

// AppendHeader appends a frame header for a payload of the given length.
func AppendHeader(dst []byte, op Opcode, length uint64, mask bool, key [4]byte) ([]byte, error) {
	if length>>63 != 0 {
		return nil, ErrLengthOverflow
	}

	var b1 byte
	if mask {
		b1 = maskBit
	}

	dst = append(dst, finBit|byte(op)&opMask)
	switch {
	case length <= MaxControlPayload:
		dst = append(dst, b1|byte(length))
	case length <= 0xFFFF:
		dst = append(dst, b1|len16Marker)
		dst = binary.BigEndian.AppendUint16(dst, uint16(length))
	default:
		dst = append(dst, b1|len64Marker)
		dst = binary.BigEndian.AppendUint64(dst, length)
	}

	if mask {
		dst = append(dst, key[:]...)
	}
	return dst, nil
}

// Decoder decodes frames with a bounded payload size.
type Decoder struct {
	// MaxPayload is the largest declared payload length accepted; zero means
	// DefaultMaxPayload.
	MaxPayload uint64
}

// NewDecoder returns a Decoder accepting payloads up to maxPayload bytes.
func NewDecoder(maxPayload uint64) *Decoder {
	return &Decoder{MaxPayload: maxPayload}
}

var defaultDecoder = &Decoder{}

// Decode decodes one frame from buf using DefaultMaxPayload.
func Decode(buf []byte) (*Frame, int, error) {
	return defaultDecoder.Decode(buf)
}

// Decode decodes the first frame in buf and returns it with the number of bytes
// it occupied. When buf holds only part of a frame it returns ErrIncomplete and
// consumes nothing. Malformed frames yield a *DecodeError.
func (d *Decoder) Decode(buf []byte) (*Frame, int, error) {
	if len(buf) < 2 {
		return nil, 0, ErrIncomplete
	}

	b0, b1 := buf[0], buf[1]
	f := &Frame{
		Fin:    b0&finBit != 0,
		Opcode: Opcode(b0 & opMask),
		Masked: b1&maskBit != 0,
	}

	if b0&rsvBits != 0 {
		return nil, 0, decodeErr(CloseProtocolError, "reserved bits set (0x%x)", b0&rsvBits)
	}
	switch f.Opcode {
	case OpText, OpBinary, OpClose, OpPing, OpPong:
	case OpContinuation:
		return nil, 0, decodeErr(CloseUnsupportedData, "continuation frames are not supported")
	default:
		return nil, 0, decodeErr(CloseProtocolError, "unknown opcode 0x%x", byte(f.Opcode))
	}
	if !f.Fin {
		return nil, 0, decodeErr(CloseUnsupportedData, "fragmented %s frame", f.Opcode)
	}

	offset := 2
	length := uint64(b1 & len7Mask)
	switch length {
	case len16Marker:
		if len(buf) < offset+2 {
			return nil, 0, ErrIncomplete
		}
		length = uint64(binary.BigEndian.Uint16(buf[offset:]))
		offset += 2
	case len64Marker:
		if len(buf) < offset+8 {
			return nil, 0, ErrIncomplete
		}
		length = binary.BigEndian.Uint64(buf[offset:])
		if length>>63 != 0 {
			return nil, 0, decodeErr(CloseProtocolError, "64-bit length has the most significant bit set")
		}
		offset += 8
	}

	if f.Opcode.IsControl() && length > MaxControlPayload {
		return nil, 0, decodeErr(CloseProtocolError, "%s frame payload of %d bytes", f.Opcode, length)
	}
	if length > d.maxPayload() {
		return nil, 0, decodeErr(CloseMessageTooBig, "declared payload of %d bytes exceeds limit of %d", length, d.maxPayload())
	}

	if f.Masked {
		if len(buf) < offset+4 {
			return nil, 0, ErrIncomplete
		}
		copy(f.MaskKey[:], buf[offset:offset+4])
		offset += 4
	}

	total := offset + int(length)
	if len(buf) < total {
		return nil, 0, ErrIncomplete
	}

	f.Payload = make([]byte, length)
	copy(f.Payload, buf[offset:total])
	if f.Masked {
		maskBytes(f.MaskKey, 0, f.Payload)
	}
	return f, total, nil
}

func (d *Decoder) maxPayload() uint64 {
	if d == nil || d.MaxPayload == 0 {
		return DefaultMaxPayload
	}
	return d.MaxPayload
}

// ClosePayload builds the body of a close frame.
func ClosePayload(code uint16, reason string) []byte {
	if code == CloseNoStatus {
		return nil
	}
	if len(reason) > MaxControlPayload-2 {
		reason = reason[:MaxControlPayload-2]
	}
	b := binary.BigEndian.AppendUint16(make([]byte, 0, 2+len(reason)), code)
	return append(b, reason...)
}

// CloseStatus extracts the status code and reason from a close frame body.
// An empty body yields CloseNoStatus.
func CloseStatus(payload []byte) (uint16, string) {
	if len(payload) < 2 {
		return CloseNoStatus, ""
	}
	return binary.BigEndian.Uint16(payload), string(payload[2:])
}
