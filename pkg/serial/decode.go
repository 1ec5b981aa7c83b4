package serial

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
)

const maxDepth = 64

// ErrSyntax is wrapped by every decoding failure.
var ErrSyntax = errors.New("serial: syntax error")

// SyntaxError describes where decoding failed.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("serial: %s at offset %d", e.Msg, e.Offset)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// Reference is a back-reference to an earlier value of the same stream,
// written r:<n>; or R:<n>; for a shared (by-reference) slot. It is not
// resolved; the index counts values in the stream it was read from.
type Reference struct {
	Index   int64
	Pointer bool
}

// Custom is an object that serialized itself (C:). Data is its payload,
// kept verbatim so it re-encodes byte for byte.
type Custom struct {
	Class string
	Data  []byte
}

// Enum is an enum case (E:), in "Class:Case" form.
type Enum string

// Unmarshal decodes the first value in data and returns it together with the
// number of bytes it occupied.
//
// Decoded types: nil, bool, int64, float64, string, []any, map[string]any,
// Reference, Custom and Enum. Objects (O:) decode to map[string]any; their
// class name is dropped.
//
// Arrays are ambiguous on the wire: one whose keys are exactly 0..n-1 in
// order, including the empty array, decodes to []any, and every other array
// to map[string]any. An empty map or a map keyed "0".."n-1" therefore comes
// back as []any, so callers reading nested values should accept both.
func Unmarshal(data []byte) (any, int, error) {
	d := &decoder{data: data}
	v, err := d.value(0)
	if err != nil {
		return nil, 0, err
	}
	return v, d.pos, nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: d.pos, Msg: fmt.Sprintf(format, args...)}
}

func (d *decoder) value(depth int) (any, error) {
	if depth > maxDepth {
		return nil, d.errorf("nesting deeper than %d", maxDepth)
	}
	if d.pos >= len(d.data) {
		return nil, d.errorf("unexpected end of input")
	}

	tag := d.data[d.pos]
	d.pos++
	switch tag {
	case 'N':
		return nil, d.expect(';')
	case 'b':
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		n, err := d.integer(';')
		if err != nil {
			return nil, err
		}
		if n != 0 && n != 1 {
			return nil, d.errorf("invalid bool %d", n)
		}
		return n == 1, nil
	case 'i':
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		return d.integer(';')
	case 'd':
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		return d.float()
	case 's':
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		s, err := d.str()
		if err != nil {
			return nil, err
		}
		return s, d.expect(';')
	case 'a':
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		return d.array(depth)
	case 'O':
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		if _, err := d.str(); err != nil {
			return nil, err
		}
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		v, err := d.array(depth)
		if err != nil {
			return nil, err
		}
		if list, ok := v.([]any); ok {
			m := make(map[string]any, len(list))
			for i, e := range list {
				m[strconv.Itoa(i)] = e
			}
			return m, nil
		}
		return v, nil
	case 'r', 'R':
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		n, err := d.integer(';')
		if err != nil {
			return nil, err
		}
		return Reference{Index: n, Pointer: tag == 'R'}, nil
	case 'C':
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		return d.custom()
	case 'E':
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		s, err := d.str()
		if err != nil {
			return nil, err
		}
		return Enum(s), d.expect(';')
	}
	d.pos--
	return nil, d.errorf("unknown type tag %q", tag)
}

func (d *decoder) expect(c byte) error {
	if d.pos >= len(d.data) {
		return d.errorf("expected %q, got end of input", c)
	}
	if d.data[d.pos] != c {
		return d.errorf("expected %q, got %q", c, d.data[d.pos])
	}
	d.pos++
	return nil
}

// until returns the bytes up to the next c and moves past c.
func (d *decoder) until(c byte) ([]byte, error) {
	i := bytes.IndexByte(d.data[d.pos:], c)
	if i < 0 {
		return nil, d.errorf("missing %q", c)
	}
	tok := d.data[d.pos : d.pos+i]
	d.pos += i + 1
	return tok, nil
}

func (d *decoder) integer(term byte) (int64, error) {
	start := d.pos
	tok, err := d.until(term)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(tok), 10, 64)
	if err != nil {
		d.pos = start
		return 0, d.errorf("invalid integer %q", tok)
	}
	return n, nil
}

func (d *decoder) float() (float64, error) {
	start := d.pos
	tok, err := d.until(';')
	if err != nil {
		return 0, err
	}
	switch string(tok) {
	case "NAN":
		return math.NaN(), nil
	case "INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	}
	f, err := strconv.ParseFloat(string(tok), 64)
	if err != nil {
		d.pos = start
		return 0, d.errorf("invalid float %q", tok)
	}
	return f, nil
}

// str parses <len>:"<bytes>" without the trailing terminator.
func (d *decoder) str() (string, error) {
	n, err := d.integer(':')
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", d.errorf("negative string length %d", n)
	}
	if err := d.expect('"'); err != nil {
		return "", err
	}
	if int64(len(d.data)-d.pos) < n+1 {
		return "", d.errorf("string of %d bytes runs past end of input", n)
	}
	s := string(d.data[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, d.expect('"')
}

// custom parses <len>:"<class>":<n>:{<n bytes>}.
func (d *decoder) custom() (Custom, error) {
	class, err := d.str()
	if err != nil {
		return Custom{}, err
	}
	if err := d.expect(':'); err != nil {
		return Custom{}, err
	}
	n, err := d.integer(':')
	if err != nil {
		return Custom{}, err
	}
	if n < 0 {
		return Custom{}, d.errorf("negative payload length %d", n)
	}
	if err := d.expect('{'); err != nil {
		return Custom{}, err
	}
	if int64(len(d.data)-d.pos) < n+1 {
		return Custom{}, d.errorf("payload of %d bytes runs past end of input", n)
	}
	data := append([]byte(nil), d.data[d.pos:d.pos+int(n)]...)
	d.pos += int(n)
	return Custom{Class: class, Data: data}, d.expect('}')
}

// array parses <count>:{<key><value>...}.
func (d *decoder) array(depth int) (any, error) {
	n, err := d.integer(':')
	if err != nil {
		return nil, err
	}
	if n < 0 || n > int64(len(d.data)) {
		return nil, d.errorf("invalid element count %d", n)
	}
	if err := d.expect('{'); err != nil {
		return nil, err
	}

	keys := make([]string, 0, n)
	vals := make([]any, 0, n)
	sequential := true
	for i := int64(0); i < n; i++ {
		k, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		var key string
		switch kv := k.(type) {
		case int64:
			key = strconv.FormatInt(kv, 10)
			if kv != i {
				sequential = false
			}
		case string:
			key = kv
			sequential = false
		default:
			return nil, d.errorf("array key of type %T", k)
		}
		v, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
		vals = append(vals, v)
	}
	if err := d.expect('}'); err != nil {
		return nil, err
	}

	if sequential {
		return vals, nil
	}
	m := make(map[string]any, len(keys))
	for i, k := range keys {
		m[k] = vals[i]
	}
	return m, nil
}
