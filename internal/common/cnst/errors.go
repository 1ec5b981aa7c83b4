package cnst

import "errors"

var (
	// ErrInvalidAuthMode is returned when auth.mode is not basic or session
	ErrInvalidAuthMode = errors.New("invalid auth mode")
	// ErrInvalidSessionFormat is returned when session.format is unknown
	ErrInvalidSessionFormat = errors.New("invalid session format")
	// ErrInvalidSessionBackend is returned when session.backend is unknown
	ErrInvalidSessionBackend = errors.New("invalid session backend")
	// ErrInvalidAppMode is returned when app.mode is unknown
	ErrInvalidAppMode = errors.New("invalid app mode")
	// ErrInvalidPort is returned when a listen port is out of range
	ErrInvalidPort = errors.New("invalid port")
	// ErrMissingSecret is returned when the broker runs without a signing secret
	ErrMissingSecret = errors.New("jwt secret key is required")
)
