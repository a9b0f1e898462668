package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/alchemorsel/kitchen/internal/domain/shared"
	"github.com/alchemorsel/kitchen/internal/domain/theme"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "kitchen"

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	logger   *zap.Logger
	registry *prometheus.Registry
	factory  promauto.Factory

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Theme metrics
	selectionsTotal    *prometheus.CounterVec
	appliedTotal       *prometheus.CounterVec
	systemChangesTotal *prometheus.CounterVec
	storeFailuresTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a collector backed by its own registry.
// Process and Go runtime collectors are registered alongside.
func NewMetricsCollector(logger *zap.Logger) *MetricsCollector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newMetricsCollector(registry, logger)
}

func newMetricsCollector(registry *prometheus.Registry, logger *zap.Logger) *MetricsCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(registry)

	return &MetricsCollector{
		logger:   logger,
		registry: registry,
		factory:  factory,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status_code"},
		),

		selectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "theme",
				Name:      "selections_total",
				Help:      "Explicit theme choices made through the selector",
			},
			[]string{"theme"},
		),
		appliedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "theme",
				Name:      "applied_total",
				Help:      "Theme attribute writes by effective theme and trigger",
			},
			[]string{"effective", "trigger"},
		),
		systemChangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "theme",
				Name:      "system_changes_total",
				Help:      "System colour-scheme notifications by outcome",
			},
			[]string{"outcome"},
		),
		storeFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "theme",
				Name:      "store_failures_total",
				Help:      "Preference storage operations that failed",
			},
			[]string{"op"},
		),
	}
}

// Registry returns the registry all metrics are registered on
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// StoreFailures is the counter the fallback store reports into
func (m *MetricsCollector) StoreFailures() *prometheus.CounterVec {
	return m.storeFailuresTotal
}

// TrackActiveSessions exports the number of open theme sessions
func (m *MetricsCollector) TrackActiveSessions(count func() int) {
	m.factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "theme",
			Name:      "sessions_active",
			Help:      "Number of open theme sessions",
		},
		func() float64 { return float64(count()) },
	)
}

// Register subscribes the theme counters to domain events
func (m *MetricsCollector) Register(dispatcher shared.EventDispatcher) {
	dispatcher.Register("theme.applied", m.HandleEvent)
	dispatcher.Register("theme.selected", m.HandleEvent)
	dispatcher.Register("theme.system.changed", m.HandleEvent)
}

// HandleEvent updates counters for a theme event; other events are ignored
func (m *MetricsCollector) HandleEvent(event shared.DomainEvent) error {
	switch e := event.(type) {
	case theme.ThemeAppliedEvent:
		m.appliedTotal.WithLabelValues(string(e.Effective), string(e.Trigger)).Inc()
	case theme.ThemeSelectedEvent:
		m.selectionsTotal.WithLabelValues(string(e.Preference)).Inc()
	case theme.SystemPreferenceChangedEvent:
		m.systemChangesTotal.WithLabelValues(string(e.Outcome)).Inc()
	}
	return nil
}

// ObserveHTTP records a finished request
func (m *MetricsCollector) ObserveHTTP(method, path string, status int, duration time.Duration) {
	if path == "" {
		path = "unmatched"
	}
	code := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(method, path, code).Inc()
	m.httpRequestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}

// GinMiddleware creates a Gin middleware for HTTP metrics collection
func (m *MetricsCollector) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// HTTPMiddleware records metrics for a chi router, labelled by route pattern
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		var pattern string
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			pattern = rctx.RoutePattern()
		}
		m.ObserveHTTP(r.Method, pattern, status, time.Since(start))
	})
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
