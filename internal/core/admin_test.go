package core

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kamshory/wsbridge/internal/common/config"
	"github.com/kamshory/wsbridge/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAdminServer_Routes(t *testing.T) {
	m := metrics.New(config.MetricsConfig{Namespace: "wsadmin"})
	rec := newRecorder()
	srv := startServer(t, rec, nil, WithMetrics(m))
	dial(t, srv, "")
	recv(t, rec.opened)

	admin := NewAdminServer(zap.NewNop(), config.AdminConfig{Host: "127.0.0.1", Port: 0}, srv, m)

	w := httptest.NewRecorder()
	admin.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health_check", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","message":"Health check passed."}`, w.Body.String())

	w = httptest.NewRecorder()
	admin.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["connections"])
	assert.NotEmpty(t, body["version"])

	w = httptest.NewRecorder()
	admin.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "wsadmin_connections_active 1")
	assert.Contains(t, w.Body.String(), `wsadmin_handshakes_total{result="ok"} 1`)
}
