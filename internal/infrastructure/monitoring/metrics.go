package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Routing metrics
	MessagesTotal   *prometheus.CounterVec
	MessagesDropped *prometheus.CounterVec
	DispatchTime    prometheus.Histogram

	// Session metrics
	SessionsActive prometheus.Gauge

	// Window metrics
	WindowsOpened  prometheus.Counter
	WindowsClosed  prometheus.Counter
	LoadFailures   *prometheus.CounterVec
	LoadDuration   prometheus.Histogram
	BreakerRejects prometheus.Counter

	// Bridge metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON API
type Snapshot struct {
	Messages          int64   `json:"messages"`
	Dropped           int64   `json:"dropped"`
	ActiveSessions    int64   `json:"activeSessions"`
	ActiveConnections int64   `json:"activeConnections"`
	WindowsOpened     int64   `json:"windowsOpened"`
	WindowsClosed     int64   `json:"windowsClosed"`
	LoadFailures      int64   `json:"loadFailures"`
	UptimeSeconds     float64 `json:"uptimeSeconds"`
}

// NewMetrics creates a new metrics collector on its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "windowsync_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "windowsync_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Routing metrics
		MessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "windowsync_messages_total",
				Help: "Total number of routed messages by inbound channel",
			},
			[]string{"channel"},
		),
		MessagesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "windowsync_messages_dropped_total",
				Help: "Messages that were dropped without delivery",
			},
			[]string{"channel", "reason"},
		),
		DispatchTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "windowsync_dispatch_duration_seconds",
				Help:    "Time spent handling a message on the event loop",
				Buckets: []float64{.00001, .0001, .0005, .001, .005, .01, .05, .1},
			},
		),

		// Session metrics
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "windowsync_sessions_active",
				Help: "Number of registered sessions",
			},
		),

		// Window metrics
		WindowsOpened: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "windowsync_windows_opened_total",
				Help: "Total number of windows created",
			},
		),
		WindowsClosed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "windowsync_windows_closed_total",
				Help: "Total number of windows closed",
			},
		),
		LoadFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "windowsync_load_failures_total",
				Help: "Content loads that failed",
			},
			[]string{"kind"},
		),
		LoadDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "windowsync_load_duration_seconds",
				Help:    "Content load duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		BreakerRejects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "windowsync_load_breaker_rejections_total",
				Help: "Loads rejected while the content circuit breaker was open",
			},
		),

		// Bridge metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "windowsync_ws_connections",
				Help: "Number of attached renderer connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "windowsync_ws_messages_total",
				Help: "Total number of bridge frames",
			},
			[]string{"direction"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "windowsync_uptime_seconds",
			Help: "Host uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordMessage records a message accepted by the router
func (m *Metrics) RecordMessage(channel string, duration time.Duration) {
	m.MessagesTotal.WithLabelValues(channel).Inc()
	m.DispatchTime.Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Messages++
	m.mu.Unlock()
}

// RecordDrop records a message that had nowhere to go
func (m *Metrics) RecordDrop(channel, reason string) {
	m.MessagesDropped.WithLabelValues(channel, reason).Inc()

	m.mu.Lock()
	m.snapshot.Dropped++
	m.mu.Unlock()
}

// SetSessionsActive sets the number of registered sessions
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))

	m.mu.Lock()
	m.snapshot.ActiveSessions = int64(count)
	m.mu.Unlock()
}

// IncWindowsOpened increments the windows opened counter
func (m *Metrics) IncWindowsOpened() {
	m.WindowsOpened.Inc()

	m.mu.Lock()
	m.snapshot.WindowsOpened++
	m.mu.Unlock()
}

// IncWindowsClosed increments the windows closed counter
func (m *Metrics) IncWindowsClosed() {
	m.WindowsClosed.Inc()

	m.mu.Lock()
	m.snapshot.WindowsClosed++
	m.mu.Unlock()
}

// RecordLoad records a finished content load
func (m *Metrics) RecordLoad(kind string, duration time.Duration, err error) {
	m.LoadDuration.Observe(duration.Seconds())
	if err == nil {
		return
	}
	m.LoadFailures.WithLabelValues(kind).Inc()

	m.mu.Lock()
	m.snapshot.LoadFailures++
	m.mu.Unlock()
}

// IncBreakerRejects increments the breaker rejection counter
func (m *Metrics) IncBreakerRejects() {
	m.BreakerRejects.Inc()
}

// IncWSConnections increments bridge connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()

	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements bridge connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()

	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// RecordWSMessage records a bridge frame ("in" or "out")
func (m *Metrics) RecordWSMessage(direction string) {
	m.WSMessages.WithLabelValues(direction).Inc()
}

// Snapshot returns current values for the JSON API
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
