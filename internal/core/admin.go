package core

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/kamshory/wsbridge/internal/common/cnst"
	"github.com/kamshory/wsbridge/internal/common/config"
	"github.com/kamshory/wsbridge/pkg/metrics"
	"github.com/kamshory/wsbridge/pkg/version"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// AdminServer serves health, metrics and stats over plain HTTP on a port
// separate from the WebSocket listener.
type AdminServer struct {
	logger  *zap.Logger
	router  *gin.Engine
	server  *http.Server
	ws      *Server
	metrics *metrics.Metrics
}

// NewAdminServer builds the admin router. m may be nil, which disables /metrics.
func NewAdminServer(logger *zap.Logger, cfg config.AdminConfig, ws *Server, m *metrics.Metrics) *AdminServer {
	gin.SetMode(gin.ReleaseMode)
	a := &AdminServer{
		logger:  logger.Named("admin"),
		router:  gin.New(),
		ws:      ws,
		metrics: m,
	}
	a.router.Use(otelgin.Middleware(cnst.AppName+"-admin"), a.loggerMiddleware(), a.recoveryMiddleware())
	if m != nil {
		a.router.Use(m.Middleware())
	}
	a.registerRoutes()
	a.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a
}

// Handler exposes the router, mainly for tests
func (a *AdminServer) Handler() http.Handler {
	return a.router
}

func (a *AdminServer) registerRoutes() {
	a.router.GET("/health_check", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Health check passed.",
		})
	})

	if a.metrics != nil {
		a.router.GET("/metrics", gin.WrapH(a.metrics.Handler()))
	}

	a.router.GET("/stats", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		st, err := a.ws.Stats(ctx)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"version":     version.Get(),
			"connections": st.Connections,
			"identities":  st.Identities,
			"accepted":    st.Accepted,
			"started_at":  st.StartedAt,
			"uptime":      time.Since(st.StartedAt).Round(time.Second).String(),
		})
	})
}

// Start serves until Shutdown. It returns nil on a clean shutdown.
func (a *AdminServer) Start() error {
	a.logger.Info("admin server listening", zap.String("addr", a.server.Addr))
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *AdminServer) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

func (a *AdminServer) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger.Debug("admin request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("remote_addr", c.Request.RemoteAddr),
		)
	}
}

func (a *AdminServer) recoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				a.logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()
		c.Next()
	}
}
