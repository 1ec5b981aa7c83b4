package cnst

// Tracer names used across the services
const (
	// TraceCore is the tracer name for the connection server
	TraceCore = "wsbridge/core"
	// TraceApp is the tracer name for the application handlers
	TraceApp = "wsbridge/app"
)

// Span names
const (
	SpanHandshake = "ws.handshake"
	SpanLogin     = "ws.login"
	SpanMessage   = "ws.message"
	SpanClose     = "ws.close"
)

// Attribute keys
const (
	AttrConnID      = "ws.conn_id"
	AttrClientAddr  = "client.remote_addr"
	AttrPath        = "ws.path"
	AttrIdentity    = "ws.identity"
	AttrMessageType = "ws.message_type"
	AttrPayloadSize = "ws.payload_size"
	AttrErrorReason = "error.reason"
)
