package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kamshory/wsbridge/internal/common/cnst"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field string
	Value any
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v (got %q)", e.Field, e.Err, fmt.Sprint(e.Value))
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks the loaded configuration and reports every problem found
func (c *Config) Validate() error {
	var errs []error
	add := func(field string, value any, err error) {
		errs = append(errs, &ValidationError{Field: field, Value: value, Err: err})
	}

	if !validPort(c.WebSocket.Port) {
		add("websocket.port", c.WebSocket.Port, cnst.ErrInvalidPort)
	}
	if c.Admin.Enabled && !validPort(c.Admin.Port) {
		add("admin.port", c.Admin.Port, cnst.ErrInvalidPort)
	}

	switch cnst.AuthMode(strings.ToLower(c.Auth.Mode)) {
	case cnst.AuthModeBasic, cnst.AuthModeSession:
	default:
		add("auth.mode", c.Auth.Mode, cnst.ErrInvalidAuthMode)
	}

	switch cnst.SessionFormat(strings.ToLower(c.Session.Format)) {
	case cnst.SessionFormatDelimited, cnst.SessionFormatBinary:
	default:
		add("session.format", c.Session.Format, cnst.ErrInvalidSessionFormat)
	}

	switch cnst.SessionBackend(strings.ToLower(c.Session.Backend)) {
	case cnst.SessionBackendFile, cnst.SessionBackendRedis, cnst.SessionBackendMemory:
	default:
		add("session.backend", c.Session.Backend, cnst.ErrInvalidSessionBackend)
	}

	switch cnst.AppMode(strings.ToLower(c.App.Mode)) {
	case cnst.AppModeChat, cnst.AppModeDashboard:
	case cnst.AppModeBroker:
		if c.JWT.SecretKey == "" {
			add("jwt.secret_key", "", cnst.ErrMissingSecret)
		}
	default:
		add("app.mode", c.App.Mode, cnst.ErrInvalidAppMode)
	}

	return errors.Join(errs...)
}

func validPort(p int) bool {
	return p > 0 && p < 1<<16
}
