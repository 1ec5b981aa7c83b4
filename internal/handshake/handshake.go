// Package handshake parses the opening HTTP upgrade request of a WebSocket
// connection and builds the switching-protocols response.
package handshake

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// GUID is appended to the client key before hashing
const GUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Version is the only protocol version accepted
const Version = "13"

var (
	ErrMalformedRequest   = errors.New("malformed upgrade request")
	ErrHeaderTooLarge     = errors.New("upgrade request header too large")
	ErrNotUpgrade         = errors.New("not a websocket upgrade request")
	ErrBadMethod          = errors.New("upgrade request method must be GET")
	ErrMissingKey         = errors.New("missing Sec-WebSocket-Key header")
	ErrInvalidKey         = errors.New("invalid Sec-WebSocket-Key header")
	ErrUnsupportedVersion = errors.New("unsupported Sec-WebSocket-Version")
)

// Request is a parsed upgrade request. Header names are stored lower case.
type Request struct {
	RequestLine string
	Method      string
	Target      string
	Path        string
	RawQuery    string
	Proto       string

	Query   map[string]string
	Cookies map[string]string
	headers map[string]string
}

// Header returns the value of a header, matched case-insensitively
func (r *Request) Header(name string) string {
	return r.headers[strings.ToLower(name)]
}

// Headers returns a copy of all headers keyed by lower case name
func (r *Request) Headers() map[string]string {
	out := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		out[k] = v
	}
	return out
}

// ReadRequest reads from r until the end of the request header, reading at
// most max bytes. It returns the header block and any bytes that arrived after
// it, which belong to the first frames of the connection.
func ReadRequest(r io.Reader, max int) (header, rest []byte, err error) {
	buf := make([]byte, 0, 1024)
	chunk := make([]byte, 1024)
	for {
		if end, n := headerEnd(buf); end >= 0 {
			return buf[:end], buf[end+n:], nil
		}
		if len(buf) >= max {
			return nil, nil, ErrHeaderTooLarge
		}
		want := min(len(chunk), max-len(buf))
		n, err := r.Read(chunk[:want])
		buf = append(buf, chunk[:n]...)
		if err != nil {
			if end, n := headerEnd(buf); end >= 0 {
				return buf[:end], buf[end+n:], nil
			}
			if errors.Is(err, io.EOF) {
				return nil, nil, fmt.Errorf("%w: connection closed before end of header", ErrMalformedRequest)
			}
			return nil, nil, err
		}
	}
}

// headerEnd returns the offset of the blank line ending the header and the
// length of that terminator, or -1.
func headerEnd(b []byte) (int, int) {
	if i := bytes.Index(b, []byte("\r\n\r\n")); i >= 0 {
		return i, 4
	}
	if i := bytes.Index(b, []byte("\n\n")); i >= 0 {
		return i, 2
	}
	return -1, 0
}

// Parse parses the request line and headers. Bare LF line endings are
// tolerated. Anything after the blank line is ignored.
func Parse(raw []byte) (*Request, error) {
	if end, _ := headerEnd(raw); end >= 0 {
		raw = raw[:end]
	}
	lines := strings.Split(string(raw), "\n")

	req := &Request{
		RequestLine: strings.TrimRight(lines[0], "\r"),
		Query:       map[string]string{},
		Cookies:     map[string]string{},
		headers:     map[string]string{},
	}

	parts := strings.Fields(req.RequestLine)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: request line %q", ErrMalformedRequest, req.RequestLine)
	}
	req.Method, req.Target, req.Proto = parts[0], parts[1], parts[2]
	req.Path, req.RawQuery, _ = strings.Cut(req.Target, "?")

	var cookieLines []string
	for _, line := range lines[1:] {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: header line %q", ErrMalformedRequest, line)
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if name == "cookie" {
			cookieLines = append(cookieLines, value)
		}
		if prev, exists := req.headers[name]; exists {
			sep := ", "
			if name == "cookie" {
				sep = "; "
			}
			value = prev + sep + value
		}
		req.headers[name] = value
	}

	// ParseQuery keeps every pair it could decode even when it reports an error
	values, _ := url.ParseQuery(req.RawQuery)
	for k, v := range values {
		if len(v) > 0 {
			req.Query[k] = v[0]
		}
	}
	for _, line := range cookieLines {
		parseCookies(line, req.Cookies)
	}
	return req, nil
}

func parseCookies(line string, into map[string]string) {
	for _, part := range strings.Split(line, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if unescaped, err := url.QueryUnescape(value); err == nil {
			value = unescaped
		}
		if _, seen := into[name]; !seen {
			into[name] = value
		}
	}
}

// IsUpgrade reports whether raw carries the websocket upgrade signature
func IsUpgrade(raw []byte) bool {
	req, err := Parse(raw)
	if err != nil {
		return false
	}
	return headerHasToken(req.Header("upgrade"), "websocket")
}

// Validate checks the fields a server needs to accept the upgrade
func Validate(req *Request) error {
	if req.Method != "GET" {
		return ErrBadMethod
	}
	if !headerHasToken(req.Header("upgrade"), "websocket") {
		return ErrNotUpgrade
	}
	key := req.Header("sec-websocket-key")
	if key == "" {
		return ErrMissingKey
	}
	if decoded, err := base64.StdEncoding.DecodeString(key); err != nil || len(decoded) != 16 {
		return ErrInvalidKey
	}
	if v := req.Header("sec-websocket-version"); v != Version {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, v)
	}
	return nil
}

// ComputeAccept returns the Sec-WebSocket-Accept value for a client key
func ComputeAccept(key string) string {
	sum := sha1.Sum([]byte(key + GUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func headerHasToken(value, token string) bool {
	for _, p := range strings.Split(value, ",") {
		if strings.EqualFold(strings.TrimSpace(p), token) {
			return true
		}
	}
	return false
}
