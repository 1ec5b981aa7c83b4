package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kamshory/wsbridge/internal/common/cnst"
	"github.com/kamshory/wsbridge/pkg/helper"
	"github.com/kamshory/wsbridge/pkg/trace"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// Config is the top level configuration of the bridge
	Config struct {
		PID       string          `yaml:"pid" toml:"pid"`
		WebSocket WebSocketConfig `yaml:"websocket" toml:"websocket"`
		Session   SessionConfig   `yaml:"session" toml:"session"`
		Auth      AuthConfig      `yaml:"auth" toml:"auth"`
		App       AppConfig       `yaml:"app" toml:"app"`
		JWT       JWTConfig       `yaml:"jwt" toml:"jwt"`
		Database  DatabaseConfig  `yaml:"database" toml:"database"`
		Logger    LoggerConfig    `yaml:"logger" toml:"logger"`
		Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
		Admin     AdminConfig     `yaml:"admin" toml:"admin"`
		Tracing   trace.Config    `yaml:"tracing" toml:"tracing"`
	}

	// WebSocketConfig controls the listener and the per-connection limits
	WebSocketConfig struct {
		Host             string        `yaml:"host" toml:"host"`
		Port             int           `yaml:"port" toml:"port"`
		ServerName       string        `yaml:"server_name" toml:"server_name"` // sent in the Server response header
		ReusePort        bool          `yaml:"reuse_port" toml:"reuse_port"`
		MaxHeaderBytes   int           `yaml:"max_header_bytes" toml:"max_header_bytes"`
		ReadBufferSize   int           `yaml:"read_buffer_size" toml:"read_buffer_size"`
		MaxFrameSize     int64         `yaml:"max_frame_size" toml:"max_frame_size"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout" toml:"handshake_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout" toml:"write_timeout"`
		PollInterval     time.Duration `yaml:"poll_interval" toml:"poll_interval"`
		EventBuffer      int           `yaml:"event_buffer" toml:"event_buffer"`
	}

	// SessionConfig describes where shared session records live and how they are encoded
	SessionConfig struct {
		CookieName string             `yaml:"cookie_name" toml:"cookie_name"`
		Format     string             `yaml:"format" toml:"format"`   // delimited or binary
		Backend    string             `yaml:"backend" toml:"backend"` // file, redis or memory
		File       SessionFileConfig  `yaml:"file" toml:"file"`
		Redis      SessionRedisConfig `yaml:"redis" toml:"redis"`
	}

	// SessionFileConfig locates session records on disk
	SessionFileConfig struct {
		Dir    string `yaml:"dir" toml:"dir"`
		Prefix string `yaml:"prefix" toml:"prefix"`
	}

	// SessionRedisConfig represents the Redis configuration for session storage
	SessionRedisConfig struct {
		ClusterType string        `yaml:"cluster_type" toml:"cluster_type"` // single, sentinel or cluster
		Addr        string        `yaml:"addr" toml:"addr"`                 // comma separated for sentinel/cluster
		MasterName  string        `yaml:"master_name" toml:"master_name"`
		Username    string        `yaml:"username" toml:"username"`
		Password    string        `yaml:"password" toml:"password"`
		DB          int           `yaml:"db" toml:"db"`
		Prefix      string        `yaml:"prefix" toml:"prefix"`
		TTL         time.Duration `yaml:"ttl" toml:"ttl"` // zero keeps the TTL already on the key
	}

	// AuthConfig selects how a handshake is turned into a user identity
	AuthConfig struct {
		Mode        string `yaml:"mode" toml:"mode"` // basic or session
		UsernameKey string `yaml:"username_key" toml:"username_key"`
		PasswordKey string `yaml:"password_key" toml:"password_key"` // when set, the session password must match the stored user
	}

	// AppConfig selects the application running on top of the server
	AppConfig struct {
		Mode      string          `yaml:"mode" toml:"mode"` // chat, broker or dashboard
		Archive   bool            `yaml:"archive" toml:"archive"`
		Dashboard DashboardConfig `yaml:"dashboard" toml:"dashboard"`
		Broker    BrokerConfig    `yaml:"broker" toml:"broker"`
	}

	DashboardConfig struct {
		Interval time.Duration `yaml:"interval" toml:"interval"`
		Template string        `yaml:"template" toml:"template"`
	}

	BrokerConfig struct {
		RequireToken bool `yaml:"require_token" toml:"require_token"`
	}

	// JWTConfig represents the JWT configuration
	JWTConfig struct {
		SecretKey string        `yaml:"secret_key" toml:"secret_key"`
		Duration  time.Duration `yaml:"duration" toml:"duration"`
	}

	// DatabaseConfig represents the database configuration
	DatabaseConfig struct {
		Type     string `yaml:"type" toml:"type"` // sqlite, mysql or postgres
		Host     string `yaml:"host" toml:"host"`
		Port     int    `yaml:"port" toml:"port"`
		User     string `yaml:"user" toml:"user"`
		Password string `yaml:"password" toml:"password"`
		DBName   string `yaml:"dbname" toml:"dbname"`
		SSLMode  string `yaml:"sslmode" toml:"sslmode"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level" toml:"level"`             // debug, info, warn, error
		Format     string `yaml:"format" toml:"format"`           // json, console
		Output     string `yaml:"output" toml:"output"`           // stdout, file
		FilePath   string `yaml:"file_path" toml:"file_path"`     // path to log file when output is file
		MaxSize    int    `yaml:"max_size" toml:"max_size"`       // max size of log file in MB
		MaxBackups int    `yaml:"max_backups" toml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age" toml:"max_age"`         // max age of backup files in days
		Compress   bool   `yaml:"compress" toml:"compress"`
		Color      bool   `yaml:"color" toml:"color"`
		Stacktrace bool   `yaml:"stacktrace" toml:"stacktrace"`
		TimeZone   string `yaml:"time_zone" toml:"time_zone"`     // e.g. "UTC", default is local
		TimeFormat string `yaml:"time_format" toml:"time_format"` // default is "2006-01-02 15:04:05"
	}

	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled" toml:"enabled"`
		Namespace string    `yaml:"namespace" toml:"namespace"`
		Buckets   []float64 `yaml:"buckets" toml:"buckets"`
	}

	// AdminConfig exposes health and metrics endpoints on a separate HTTP port
	AdminConfig struct {
		Enabled bool   `yaml:"enabled" toml:"enabled"`
		Host    string `yaml:"host" toml:"host"`
		Port    int    `yaml:"port" toml:"port"`
	}
)

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case cnst.DatabasePostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	case cnst.DatabaseMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	default:
		return c.DBName
	}
}

// Address returns the host:port the WebSocket listener binds to
func (c *WebSocketConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoadConfig loads configuration from a YAML or TOML file with environment variable support
func LoadConfig(filename string) (*Config, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	data = resolveEnv(data)
	var cfg Config
	switch strings.ToLower(filepath.Ext(cfgPath)) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, cfgPath, err
	}

	cfg.SetDefaults()
	return &cfg, cfgPath, nil
}

// SetDefaults fills every unset field with its default value
func (c *Config) SetDefaults() {
	ws := &c.WebSocket
	if ws.Host == "" {
		ws.Host = "0.0.0.0"
	}
	if ws.Port == 0 {
		ws.Port = 8888
	}
	if ws.ServerName == "" {
		ws.ServerName = cnst.ServerName
	}
	if ws.MaxHeaderBytes <= 0 {
		ws.MaxHeaderBytes = 8 << 10
	}
	if ws.ReadBufferSize <= 0 {
		ws.ReadBufferSize = 4 << 10
	}
	if ws.MaxFrameSize <= 0 {
		ws.MaxFrameSize = 1 << 20
	}
	if ws.HandshakeTimeout <= 0 {
		ws.HandshakeTimeout = 10 * time.Second
	}
	if ws.WriteTimeout <= 0 {
		ws.WriteTimeout = 10 * time.Second
	}
	if ws.PollInterval <= 0 {
		ws.PollInterval = 50 * time.Millisecond
	}
	if ws.EventBuffer <= 0 {
		ws.EventBuffer = 256
	}

	s := &c.Session
	if s.CookieName == "" {
		s.CookieName = "SESSID"
	}
	if s.Format == "" {
		s.Format = cnst.SessionFormatDelimited.String()
	}
	if s.Backend == "" {
		s.Backend = cnst.SessionBackendFile.String()
	}
	if s.File.Dir == "" {
		s.File.Dir = os.TempDir()
	}
	if s.File.Prefix == "" {
		s.File.Prefix = "sess_"
	}
	if s.Redis.ClusterType == "" {
		s.Redis.ClusterType = cnst.RedisClusterTypeSingle
	}
	if s.Redis.Prefix == "" {
		s.Redis.Prefix = "session:"
	}

	if c.Auth.Mode == "" {
		c.Auth.Mode = cnst.AuthModeSession.String()
	}
	if c.Auth.UsernameKey == "" {
		c.Auth.UsernameKey = "username"
	}

	if c.App.Mode == "" {
		c.App.Mode = cnst.AppModeChat.String()
	}
	if c.App.Dashboard.Interval <= 0 {
		c.App.Dashboard.Interval = 5 * time.Second
	}

	if c.JWT.Duration <= 0 {
		c.JWT.Duration = time.Hour
	}

	if c.Database.Type == "" {
		c.Database.Type = cnst.DatabaseSQLite
	}
	if c.Database.Type == cnst.DatabaseSQLite && c.Database.DBName == "" {
		c.Database.DBName = "./data/wsbridge.db"
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = cnst.AppName
	}

	if c.Admin.Host == "" {
		c.Admin.Host = "127.0.0.1"
	}
	if c.Admin.Port == 0 {
		c.Admin.Port = 9100
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = cnst.AppName
	}
}

// resolveEnv replaces environment variable placeholders in the config content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
