// Package serial implements the self-delimiting value encoding used inside
// shared session blobs:
//
//	N;                      null
//	b:0; b:1;               bool
//	i:42;                   integer
//	d:1.5;                  float
//	s:5:"hello";            byte string, length-prefixed
//	a:2:{i:0;s:1:"x";...}   ordered array or string-keyed map
//	r:3; R:3;               back-reference to an earlier value
//	C:3:"Foo":2:{..}        object with its own payload format
//	E:8:"Suit:Red";         enum case
//
// Every encoded value announces its own extent, so values can be concatenated
// without separators and parsed back one at a time.
package serial

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// Marshal encodes v. Supported inputs are nil, bool, the integer and float
// kinds, string, []byte, slices and arrays, maps with string keys, and the
// Reference, Custom and Enum values Unmarshal produces.
func Marshal(v any) ([]byte, error) {
	return AppendValue(nil, v)
}

// AppendValue appends the encoding of v to dst.
func AppendValue(dst []byte, v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return append(dst, 'N', ';'), nil
	case bool:
		if x {
			return append(dst, "b:1;"...), nil
		}
		return append(dst, "b:0;"...), nil
	case int:
		return appendInt(dst, int64(x)), nil
	case int64:
		return appendInt(dst, x), nil
	case int32:
		return appendInt(dst, int64(x)), nil
	case float64:
		return appendFloat(dst, x), nil
	case float32:
		return appendFloat(dst, float64(x)), nil
	case string:
		return appendString(dst, x), nil
	case []byte:
		return appendString(dst, string(x)), nil
	case []any:
		dst = appendArrayHeader(dst, len(x))
		var err error
		for i, e := range x {
			dst = appendInt(dst, int64(i))
			if dst, err = AppendValue(dst, e); err != nil {
				return nil, err
			}
		}
		return append(dst, '}'), nil
	case map[string]any:
		return appendMap(dst, x)
	case Reference:
		tag := byte('r')
		if x.Pointer {
			tag = 'R'
		}
		dst = append(dst, tag, ':')
		dst = strconv.AppendInt(dst, x.Index, 10)
		return append(dst, ';'), nil
	case Custom:
		dst = append(dst, 'C', ':')
		dst = appendQuoted(dst, x.Class)
		dst = append(dst, ':')
		dst = strconv.AppendInt(dst, int64(len(x.Data)), 10)
		dst = append(dst, ':', '{')
		dst = append(dst, x.Data...)
		return append(dst, '}'), nil
	case Enum:
		dst = append(dst, 'E', ':')
		dst = appendQuoted(dst, string(x))
		return append(dst, ';'), nil
	}
	return appendReflect(dst, reflect.ValueOf(v))
}

func appendReflect(dst []byte, rv reflect.Value) ([]byte, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return append(dst, 'N', ';'), nil
		}
		return AppendValue(dst, rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return appendInt(dst, rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("serial: unsigned value %d overflows int64", u)
		}
		return appendInt(dst, int64(u)), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return append(dst, 'N', ';'), nil
		}
		dst = appendArrayHeader(dst, rv.Len())
		var err error
		for i := 0; i < rv.Len(); i++ {
			dst = appendInt(dst, int64(i))
			if dst, err = AppendValue(dst, rv.Index(i).Interface()); err != nil {
				return nil, err
			}
		}
		return append(dst, '}'), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("serial: unsupported map key type %s", rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return appendMap(dst, m)
	}
	return nil, fmt.Errorf("serial: unsupported type %T", rv.Interface())
}

func appendMap(dst []byte, m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dst = appendArrayHeader(dst, len(keys))
	var err error
	for _, k := range keys {
		// Canonical decimal keys are integer keys on the wire.
		if n, ok := integerKey(k); ok {
			dst = appendInt(dst, n)
		} else {
			dst = appendString(dst, k)
		}
		if dst, err = AppendValue(dst, m[k]); err != nil {
			return nil, err
		}
	}
	return append(dst, '}'), nil
}

func appendInt(dst []byte, n int64) []byte {
	dst = append(dst, 'i', ':')
	dst = strconv.AppendInt(dst, n, 10)
	return append(dst, ';')
}

func appendFloat(dst []byte, f float64) []byte {
	dst = append(dst, 'd', ':')
	switch {
	case math.IsNaN(f):
		dst = append(dst, "NAN"...)
	case math.IsInf(f, 1):
		dst = append(dst, "INF"...)
	case math.IsInf(f, -1):
		dst = append(dst, "-INF"...)
	default:
		dst = strconv.AppendFloat(dst, f, 'g', -1, 64)
	}
	return append(dst, ';')
}

func appendString(dst []byte, s string) []byte {
	dst = append(dst, 's', ':')
	dst = appendQuoted(dst, s)
	return append(dst, ';')
}

// appendQuoted appends <len>:"<s>"
func appendQuoted(dst []byte, s string) []byte {
	dst = strconv.AppendInt(dst, int64(len(s)), 10)
	dst = append(dst, ':', '"')
	dst = append(dst, s...)
	return append(dst, '"')
}

func appendArrayHeader(dst []byte, n int) []byte {
	dst = append(dst, 'a', ':')
	dst = strconv.AppendInt(dst, int64(n), 10)
	return append(dst, ':', '{')
}

// integerKey reports whether k is the canonical decimal form of an integer.
func integerKey(k string) (int64, bool) {
	if k == "" || len(k) > 19 {
		return 0, false
	}
	n, err := strconv.ParseInt(k, 10, 64)
	if err != nil || strconv.FormatInt(n, 10) != k {
		return 0, false
	}
	return n, true
}
