package cnst

const (
	// AppName is the application name
	AppName = "wsbridge"
	// CommandName is the name of the launcher binary
	CommandName = "wsbridge"
	// ConfigYaml is the default configuration file name
	ConfigYaml = "wsbridge.yaml"
	// ServerName is advertised in the handshake response
	ServerName = "wsbridge"
)

// Redis deployment types
const (
	RedisClusterTypeSingle   = "single"
	RedisClusterTypeSentinel = "sentinel"
	RedisClusterTypeCluster  = "cluster"
)

// Database types
const (
	DatabaseSQLite   = "sqlite"
	DatabaseMySQL    = "mysql"
	DatabasePostgres = "postgres"
)

// Languages of the error messages sent to clients
const (
	LangEN      = "en"
	LangID      = "id"
	LangZH      = "zh"
	LangDefault = LangEN

	// XLang is the header a client may use to pick its language
	XLang = "X-Lang"
)
