package handshake

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

// StatusLine opens every successful upgrade response
const StatusLine = "HTTP/1.1 101 Web Socket Protocol Handshake"

// Response builds the upgrade response for a validated request. host is the
// address the client reached, as resolved by ResolveHost.
func Response(req *Request, serverName, host string, now time.Time) []byte {
	var b bytes.Buffer
	b.WriteString(StatusLine + "\r\n")
	writeHeader(&b, "Upgrade", "websocket")
	writeHeader(&b, "Connection", "Upgrade")
	writeHeader(&b, "Sec-WebSocket-Accept", ComputeAccept(req.Header("sec-websocket-key")))
	if serverName != "" {
		writeHeader(&b, "Server", serverName)
	}
	writeHeader(&b, "Date", now.UTC().Format(http.TimeFormat))
	if origin := req.Header("origin"); origin != "" {
		writeHeader(&b, "WebSocket-Origin", origin)
	}
	if host != "" {
		writeHeader(&b, "WebSocket-Location", "ws://"+host+req.Target)
	}
	b.WriteString("\r\n")
	return b.Bytes()
}

func writeHeader(b *bytes.Buffer, name, value string) {
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}

// ResolveHost returns the host the client addressed, preferring headers set
// by a reverse proxy. fallback, normally the listener address the request
// arrived on, is used when the request names no host.
func ResolveHost(req *Request, fallback string) string {
	for _, name := range []string{"x-forwarded-host", "x-forwarded-server", "host"} {
		if v := req.Header(name); v != "" {
			first, _, _ := strings.Cut(v, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	return fallback
}

// BasicAuth returns the credentials of an Authorization: Basic header
func BasicAuth(req *Request) (username, password string, ok bool) {
	auth := req.Header("authorization")
	const prefix = "basic "
	if len(auth) < len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(auth[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	username, password, ok = strings.Cut(string(decoded), ":")
	return username, password, ok
}
