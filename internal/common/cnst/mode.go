package cnst

// AuthMode selects which login strategy is tried first
type AuthMode string

const (
	// AuthModeBasic tries HTTP basic credentials first, then the shared session
	AuthModeBasic AuthMode = "basic"
	// AuthModeSession tries the shared session first, then HTTP basic credentials
	AuthModeSession AuthMode = "session"
)

// SessionFormat is the flat encoding of a shared session blob
type SessionFormat string

const (
	// SessionFormatDelimited encodes records as <key>|<value>
	SessionFormatDelimited SessionFormat = "delimited"
	// SessionFormatBinary encodes records as <1-byte key length><key><value>
	SessionFormatBinary SessionFormat = "binary"
)

// SessionBackend is where shared session blobs are stored
type SessionBackend string

const (
	SessionBackendFile   SessionBackend = "file"
	SessionBackendRedis  SessionBackend = "redis"
	SessionBackendMemory SessionBackend = "memory"
)

// AppMode selects the application variant running on top of the server
type AppMode string

const (
	// AppModeChat relays chat messages and call signaling between users
	AppModeChat AppMode = "chat"
	// AppModeBroker relays channel messages wrapped in signed tokens
	AppModeBroker AppMode = "broker"
	// AppModeDashboard periodically pushes a status snapshot to every client
	AppModeDashboard AppMode = "dashboard"
)

func (m AuthMode) String() string       { return string(m) }
func (f SessionFormat) String() string  { return string(f) }
func (b SessionBackend) String() string { return string(b) }
func (m AppMode) String() string        { return string(m) }
