package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kamshory/wsbridge/internal/common/cnst"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnv(t *testing.T) {
	t.Setenv("X_A", "va")
	in := []byte("a: ${X_A:da}\nb: ${X_B_UNSET:db}\nc: ${X_C_UNSET}")
	out := resolveEnv(in)
	assert.Equal(t, "a: va\nb: db\nc: ", string(out))
}

func chdirTemp(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	old, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(old) })
	require.NoError(t, os.Chdir(tmp))
	return tmp
}

func TestLoadConfig_YAML(t *testing.T) {
	tmp := chdirTemp(t)
	t.Setenv("X_WS_PORT", "9001")

	yaml := `
pid: ${X_PID:/tmp/wsbridge.pid}
websocket:
  port: ${X_WS_PORT:8888}
  poll_interval: 20ms
session:
  format: binary
  backend: redis
  redis:
    addr: 127.0.0.1:6379
    ttl: 30m
auth:
  mode: basic
app:
  mode: chat
  archive: true
`
	file := filepath.Join(tmp, "wsbridge.yaml")
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0o644))

	cfg, path, err := LoadConfig("wsbridge.yaml")
	require.NoError(t, err)
	realFile, _ := filepath.EvalSymlinks(file)
	realPath, _ := filepath.EvalSymlinks(path)
	assert.Equal(t, realFile, realPath)

	assert.Equal(t, "/tmp/wsbridge.pid", cfg.PID)
	assert.Equal(t, 9001, cfg.WebSocket.Port)
	assert.Equal(t, 20*time.Millisecond, cfg.WebSocket.PollInterval)
	assert.Equal(t, "binary", cfg.Session.Format)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Session.Redis.TTL)
	assert.Equal(t, "basic", cfg.Auth.Mode)
	assert.True(t, cfg.App.Archive)

	// defaults fill what the file left out
	assert.Equal(t, "0.0.0.0", cfg.WebSocket.Host)
	assert.Equal(t, "SESSID", cfg.Session.CookieName)
	assert.Equal(t, "session:", cfg.Session.Redis.Prefix)
	assert.Equal(t, cnst.RedisClusterTypeSingle, cfg.Session.Redis.ClusterType)
	assert.Equal(t, "username", cfg.Auth.UsernameKey)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_TOML(t *testing.T) {
	tmp := chdirTemp(t)

	content := `
pid = "/run/wsbridge.pid"

[websocket]
host = "127.0.0.1"
port = 7000
handshake_timeout = "3s"

[session]
cookie_name = "SID"
backend = "memory"

[app]
mode = "dashboard"

[app.dashboard]
interval = "2s"
`
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "configs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "configs", "wsbridge.toml"), []byte(content), 0o644))

	cfg, _, err := LoadConfig("wsbridge.toml")
	require.NoError(t, err)
	assert.Equal(t, "/run/wsbridge.pid", cfg.PID)
	assert.Equal(t, "127.0.0.1:7000", cfg.WebSocket.Address())
	assert.Equal(t, 3*time.Second, cfg.WebSocket.HandshakeTimeout)
	assert.Equal(t, "SID", cfg.Session.CookieName)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, "dashboard", cfg.App.Mode)
	assert.Equal(t, 2*time.Second, cfg.App.Dashboard.Interval)
}

func TestLoadConfig_Missing(t *testing.T) {
	chdirTemp(t)
	_, _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	assert.Equal(t, 8888, cfg.WebSocket.Port)
	assert.Equal(t, 50*time.Millisecond, cfg.WebSocket.PollInterval)
	assert.Equal(t, int64(1<<20), cfg.WebSocket.MaxFrameSize)
	assert.Equal(t, cnst.ServerName, cfg.WebSocket.ServerName)
	assert.Equal(t, "delimited", cfg.Session.Format)
	assert.Equal(t, "file", cfg.Session.Backend)
	assert.Equal(t, "sess_", cfg.Session.File.Prefix)
	assert.Equal(t, "session", cfg.Auth.Mode)
	assert.Equal(t, "chat", cfg.App.Mode)
	assert.Equal(t, time.Hour, cfg.JWT.Duration)
	assert.Equal(t, cnst.DatabaseSQLite, cfg.Database.Type)
	assert.Equal(t, "./data/wsbridge.db", cfg.Database.GetDSN())
	assert.Equal(t, cnst.AppName, cfg.Metrics.Namespace)
	assert.Equal(t, cnst.AppName, cfg.Tracing.ServiceName)
}

func TestValidate(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	cfg.Auth.Mode = "digest"
	cfg.Session.Format = "json"
	cfg.Session.Backend = "s3"
	cfg.WebSocket.Port = 70000
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, cnst.ErrInvalidAuthMode)
	assert.ErrorIs(t, err, cnst.ErrInvalidSessionFormat)
	assert.ErrorIs(t, err, cnst.ErrInvalidSessionBackend)
	assert.ErrorIs(t, err, cnst.ErrInvalidPort)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "websocket.port", ve.Field)
	assert.Contains(t, ve.Error(), "70000")
}

func TestValidate_BrokerNeedsSecret(t *testing.T) {
	var cfg Config
	cfg.App.Mode = "broker"
	cfg.SetDefaults()
	assert.ErrorIs(t, cfg.Validate(), cnst.ErrMissingSecret)

	cfg.JWT.SecretKey = "a-secret-long-enough-for-signing-tokens"
	assert.NoError(t, cfg.Validate())
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	pg := DatabaseConfig{Type: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", DBName: "ws", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=ws sslmode=disable", pg.GetDSN())

	my := DatabaseConfig{Type: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", DBName: "ws"}
	assert.Equal(t, "u:p@tcp(db:3306)/ws?charset=utf8mb4&parseTime=True&loc=Local", my.GetDSN())
}
