package app

import (
	"fmt"

	"github.com/kamshory/wsbridge/internal/auth"
	"github.com/kamshory/wsbridge/internal/auth/jwt"
	"github.com/kamshory/wsbridge/internal/common/cnst"
	"github.com/kamshory/wsbridge/internal/common/config"
	"github.com/kamshory/wsbridge/internal/database"

	"go.uber.org/zap"
)

// New builds the application selected by cfg.App.Mode. db may be nil.
func New(logger *zap.Logger, cfg *config.Config, authn *auth.Authenticator, db database.Database) (Application, error) {
	switch cnst.AppMode(cfg.App.Mode) {
	case cnst.AppModeChat, "":
		return NewChat(logger, authn, db, cfg.App.Archive), nil
	case cnst.AppModeBroker:
		signer, err := jwt.NewService(jwt.Config{
			SecretKey: cfg.JWT.SecretKey,
			Duration:  cfg.JWT.Duration,
			Issuer:    cfg.WebSocket.ServerName,
		})
		if err != nil {
			return nil, fmt.Errorf("broker signer: %w", err)
		}
		return NewBroker(logger, authn, db, signer, cfg.App.Broker.RequireToken, cfg.App.Archive), nil
	case cnst.AppModeDashboard:
		d, err := NewDashboard(logger, authn, cfg.App.Dashboard.Interval, cfg.App.Dashboard.Template)
		if err != nil {
			return nil, fmt.Errorf("dashboard template: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %q", cnst.ErrInvalidAppMode, cfg.App.Mode)
	}
}
