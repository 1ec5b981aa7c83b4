package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/kamshory/wsbridge/internal/app"
	"github.com/kamshory/wsbridge/internal/auth"
	"github.com/kamshory/wsbridge/internal/common/config"
	"github.com/kamshory/wsbridge/internal/core"
	"github.com/kamshory/wsbridge/internal/database"
	"github.com/kamshory/wsbridge/internal/session"
	"github.com/kamshory/wsbridge/pkg/logger"
	"github.com/kamshory/wsbridge/pkg/metrics"
	"github.com/kamshory/wsbridge/pkg/trace"
	"github.com/kamshory/wsbridge/pkg/utils"
	"github.com/kamshory/wsbridge/pkg/version"

	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, cfgPath, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration %s: %w", cfgPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration %s: %w", cfgPath, err)
	}

	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = lg.Sync() }()
	lg.Info("Loaded configuration", zap.String("path", cfgPath), zap.String("version", version.Get()))

	shutdownTracing, err := trace.InitTracing(ctx, &cfg.Tracing, lg)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			lg.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
	}

	store, err := session.NewStore(ctx, lg, &cfg.Session, session.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	defer store.Close()

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	authn, err := auth.NewAuthenticator(lg, &cfg.Auth, db)
	if err != nil {
		return fmt.Errorf("failed to initialize authenticator: %w", err)
	}

	application, err := app.New(lg, cfg, authn, db)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	srv := core.NewServer(lg, cfg.WebSocket, store, application,
		core.WithMetrics(m),
		core.WithSessionCookie(cfg.Session.CookieName),
	)
	application.Bind(srv)

	pm := utils.NewPIDManager(resolvePIDFile(cfg))
	if err := pm.WritePID(); err != nil {
		lg.Warn("Failed to write PID file", zap.String("path", pm.GetPIDFile()), zap.Error(err))
	} else {
		defer func() { _ = pm.RemovePID() }()
	}

	if cfg.Admin.Enabled {
		admin := core.NewAdminServer(lg, cfg.Admin, srv, m)
		go func() {
			if err := admin.Start(); err != nil {
				lg.Error("Admin server failed", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := admin.Shutdown(sctx); err != nil {
				lg.Warn("Failed to stop admin server", zap.Error(err))
			}
		}()
	}

	lg.Info("Starting wsbridge",
		zap.String("addr", cfg.WebSocket.Address()),
		zap.String("app", cfg.App.Mode),
		zap.String("auth", cfg.Auth.Mode),
		zap.String("session_backend", cfg.Session.Backend),
	)
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("websocket server: %w", err)
	}
	lg.Info("Shutdown complete")
	return nil
}
