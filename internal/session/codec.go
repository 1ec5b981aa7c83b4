package session

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/kamshory/wsbridge/internal/common/cnst"
	"github.com/kamshory/wsbridge/pkg/serial"
)

const (
	recordDelimiter = '|'
	binaryUnsetFlag = 0x80
	maxBinaryKeyLen = 0x7F
)

// NewCodec returns the codec for a configured session format
func NewCodec(format string) (Codec, error) {
	switch cnst.SessionFormat(format) {
	case cnst.SessionFormatDelimited, "":
		return DelimitedCodec{}, nil
	case cnst.SessionFormatBinary:
		return BinaryCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", cnst.ErrInvalidSessionFormat, format)
	}
}

// DelimitedCodec encodes records as <key>|<value> with no separator between
// records. Values are self-delimiting so the next key starts right after.
type DelimitedCodec struct{}

func (DelimitedCodec) Name() string { return cnst.SessionFormatDelimited.String() }

func (DelimitedCodec) Encode(values map[string]any) ([]byte, error) {
	var out []byte
	var err error
	for _, k := range sortedKeys(values) {
		if strings.IndexByte(k, recordDelimiter) >= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, k)
		}
		out = append(out, k...)
		out = append(out, recordDelimiter)
		if out, err = serial.AppendValue(out, values[k]); err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
	}
	return out, nil
}

func (DelimitedCodec) Decode(data []byte) (map[string]any, error) {
	values := make(map[string]any)
	for pos := 0; pos < len(data); {
		i := bytes.IndexByte(data[pos:], recordDelimiter)
		if i < 0 {
			return values, fmt.Errorf("%w: trailing bytes at offset %d", ErrCorruptRecord, pos)
		}
		key := string(data[pos : pos+i])
		pos += i + 1

		v, n, err := serial.Unmarshal(data[pos:])
		if err != nil {
			return values, fmt.Errorf("%w: key %q: %v", ErrCorruptRecord, key, err)
		}
		values[key] = v
		pos += n
	}
	return values, nil
}

// BinaryCodec encodes records as <key length byte><key><value>. A length byte
// with the high bit set marks a key without a value, which is skipped.
type BinaryCodec struct{}

func (BinaryCodec) Name() string { return cnst.SessionFormatBinary.String() }

func (BinaryCodec) Encode(values map[string]any) ([]byte, error) {
	var out []byte
	var err error
	for _, k := range sortedKeys(values) {
		if len(k) > maxBinaryKeyLen {
			return nil, fmt.Errorf("%w: %d bytes", ErrKeyTooLong, len(k))
		}
		out = append(out, byte(len(k)))
		out = append(out, k...)
		if out, err = serial.AppendValue(out, values[k]); err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
	}
	return out, nil
}

func (BinaryCodec) Decode(data []byte) (map[string]any, error) {
	values := make(map[string]any)
	for pos := 0; pos < len(data); {
		b := data[pos]
		keyLen := int(b &^ binaryUnsetFlag)
		pos++
		if pos+keyLen > len(data) {
			return values, fmt.Errorf("%w: key of %d bytes runs past end of data", ErrCorruptRecord, keyLen)
		}
		key := string(data[pos : pos+keyLen])
		pos += keyLen
		if b&binaryUnsetFlag != 0 {
			continue
		}

		v, n, err := serial.Unmarshal(data[pos:])
		if err != nil {
			return values, fmt.Errorf("%w: key %q: %v", ErrCorruptRecord, key, err)
		}
		values[key] = v
		pos += n
	}
	return values, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
