package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kamshory/wsbridge/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnAccepted()
		m.ConnOpened()
		m.ConnClosed()
		m.HandshakeDone(HandshakeOK, time.Now())
		m.Frame(DirectionIn, "text", 3)
		m.MessageHandled("chat", time.Now())
		m.SessionOp("load", nil)
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New(config.MetricsConfig{Namespace: "test"})

	m.ConnAccepted()
	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed()
	m.HandshakeDone(HandshakeRejected, time.Now())
	m.Frame(DirectionOut, "text", 10)
	m.Frame(DirectionOut, "binary", 5)
	m.SessionOp("merge", errors.New("boom"))

	body := scrape(t, m)
	assert.Contains(t, body, "test_connections_active 1\n")
	assert.Contains(t, body, "test_connections_accepted_total 1\n")
	assert.Contains(t, body, `test_handshakes_total{result="rejected"} 1`)
	assert.Contains(t, body, `test_frame_payload_bytes_total{direction="out"} 15`)
	assert.Contains(t, body, `test_session_operations_total{op="merge",result="error"} 1`)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestHandlerAndMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(config.MetricsConfig{Namespace: "test"})

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_admin_http_requests_total{method="GET",route="/ping",status="200"} 1`)
}
