package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kamshory/wsbridge/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handshake outcomes
const (
	HandshakeOK         = "ok"
	HandshakeBadRequest = "bad_request"
	HandshakeRejected   = "rejected"
	HandshakeError      = "error"
)

// Frame directions
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Metrics collects server counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec

	connActive   prometheus.Gauge
	connTotal    prometheus.Counter
	handshakeCnt *prometheus.CounterVec
	handshakeDur prometheus.Histogram
	frameCnt     *prometheus.CounterVec
	frameBytes   *prometheus.CounterVec
	messageDur   *prometheus.HistogramVec
	sessionCnt   *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry:   r,
		httpReqCnt: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "admin_http_requests_total"}, []string{"method", "route", "status"}),
		httpDur:    prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "admin_http_request_duration_seconds", Buckets: buckets}, []string{"method", "route"}),

		connActive:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "connections_active", Help: "Connections that completed the handshake and are still open."}),
		connTotal:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "connections_accepted_total", Help: "TCP connections accepted."}),
		handshakeCnt: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "handshakes_total"}, []string{"result"}),
		handshakeDur: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: ns, Name: "handshake_duration_seconds", Buckets: buckets}),
		frameCnt:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "frames_total"}, []string{"direction", "opcode"}),
		frameBytes:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "frame_payload_bytes_total"}, []string{"direction"}),
		messageDur:   prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "message_handle_duration_seconds", Buckets: buckets}, []string{"type"}),
		sessionCnt:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "session_operations_total"}, []string{"op", "result"}),
	}
	r.MustRegister(m.httpReqCnt, m.httpDur)
	r.MustRegister(m.connActive, m.connTotal, m.handshakeCnt, m.handshakeDur)
	r.MustRegister(m.frameCnt, m.frameBytes, m.messageDur, m.sessionCnt)
	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ConnAccepted() {
	if m == nil {
		return
	}
	m.connTotal.Inc()
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.connActive.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connActive.Dec()
}

func (m *Metrics) HandshakeDone(result string, since time.Time) {
	if m == nil {
		return
	}
	m.handshakeCnt.WithLabelValues(result).Inc()
	m.handshakeDur.Observe(time.Since(since).Seconds())
}

func (m *Metrics) Frame(direction, opcode string, size int) {
	if m == nil {
		return
	}
	m.frameCnt.WithLabelValues(direction, opcode).Inc()
	m.frameBytes.WithLabelValues(direction).Add(float64(size))
}

func (m *Metrics) MessageHandled(kind string, since time.Time) {
	if m == nil {
		return
	}
	m.messageDur.WithLabelValues(kind).Observe(time.Since(since).Seconds())
}

func (m *Metrics) SessionOp(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sessionCnt.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		start := time.Now()
		c.Next()
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
