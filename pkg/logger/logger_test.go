package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kamshory/wsbridge/internal/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestGetLogLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
		"unknown": zapcore.InfoLevel,
	}
	for in, exp := range cases {
		assert.Equal(t, exp, getLogLevel(in), in)
	}
}

func TestSetLoggerDefaults(t *testing.T) {
	cfg := &config.LoggerConfig{Output: OutputFile}
	setLoggerDefaults(cfg)
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "./logs/wsbridge.log", cfg.FilePath)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, 3, cfg.MaxBackups)
	assert.Equal(t, 7, cfg.MaxAge)
	assert.Equal(t, time.DateTime, cfg.TimeFormat)
}

func TestNewLogger_Stdout(t *testing.T) {
	lg, err := NewLogger(&config.LoggerConfig{Format: "console", Color: true, Stacktrace: true})
	require.NoError(t, err)
	require.NotNil(t, lg)
	lg.Debug("not emitted at info")
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bridge.log")
	lg, err := NewLogger(&config.LoggerConfig{Output: OutputFile, FilePath: path, TimeZone: "UTC"})
	require.NoError(t, err)

	lg.Info("hello file")
	_ = lg.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello file"`)
}

func TestNewWriterLogger(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWriterLogger(&buf, "debug")
	lg.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestResolveTimeZone(t *testing.T) {
	assert.Equal(t, time.Local, resolveTimeZone(""))
	assert.Equal(t, time.Local, resolveTimeZone("Nowhere/Invalid"))
	assert.Equal(t, "UTC", resolveTimeZone("UTC").String())
}
