package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alchemorsel/kitchen/internal/domain/shared"
	"github.com/alchemorsel/kitchen/internal/domain/theme"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestCollector() *MetricsCollector {
	return newMetricsCollector(prometheus.NewRegistry(), zap.NewNop())
}

func TestMetricsCollector_ThemeEvents(t *testing.T) {
	m := newTestCollector()
	dispatcher := shared.NewDispatcher()
	m.Register(dispatcher)

	now := time.Now()
	require.NoError(t, dispatcher.Dispatch(theme.ThemeSelectedEvent{DocumentID: "d", Preference: theme.PreferenceDark, SelectedAt: now}))
	require.NoError(t, dispatcher.Dispatch(theme.ThemeAppliedEvent{DocumentID: "d", Effective: theme.EffectiveDark, Trigger: theme.TriggerSelect, AppliedAt: now}))
	require.NoError(t, dispatcher.Dispatch(theme.ThemeAppliedEvent{DocumentID: "d", Effective: theme.EffectiveDark, Trigger: theme.TriggerSelect, AppliedAt: now}))
	require.NoError(t, dispatcher.Dispatch(theme.SystemPreferenceChangedEvent{DocumentID: "d", Outcome: theme.SystemOutcomeIgnored, ChangedAt: now}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.selectionsTotal.WithLabelValues("dark")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.appliedTotal.WithLabelValues("dark", "select")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.systemChangesTotal.WithLabelValues("ignored")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.systemChangesTotal.WithLabelValues("applied")))
}

func TestMetricsCollector_ActiveSessions(t *testing.T) {
	m := newTestCollector()
	active := 3
	m.TrackActiveSessions(func() int { return active })

	expected := `
# HELP kitchen_theme_sessions_active Number of open theme sessions
# TYPE kitchen_theme_sessions_active gauge
kitchen_theme_sessions_active 3
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "kitchen_theme_sessions_active"))

	active = 1
	expected = strings.Replace(expected, "active 3", "active 1", 1)
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "kitchen_theme_sessions_active"))
}

func TestMetricsCollector_HTTPMiddleware(t *testing.T) {
	m := newTestCollector()

	r := chi.NewRouter()
	r.Use(m.HTTPMiddleware)
	r.Get("/theme/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/theme/a", "/theme/b", "/"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/theme/{id}", "418")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/", "200")))
}

func TestMetricsCollector_GinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestCollector()

	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/api/v1/theme", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/theme", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/v1/theme", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestMetricsCollector_Handler(t *testing.T) {
	m := newTestCollector()
	m.StoreFailures().WithLabelValues("set").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `kitchen_theme_store_failures_total{op="set"} 1`)
}

func TestTelemetry_MetricsOnly(t *testing.T) {
	registry := prometheus.NewRegistry()
	telemetry, err := NewTelemetry(TelemetryConfig{
		ServiceName:    "kitchen-test",
		ServiceVersion: "test",
		Environment:    "test",
		MetricsEnabled: true,
	}, registry, zap.NewNop())
	require.NoError(t, err)
	defer telemetry.Shutdown(context.Background())

	counter, err := otel.GetMeterProvider().Meter("kitchen-test").Int64Counter("theme_exported")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	handler := telemetry.InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), "kitchen-test")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	families, err := registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "theme_exported_total")

	ctx, span := telemetry.StartSpan(context.Background(), "select", "doc-1")
	span.End()
	assert.False(t, trace.SpanContextFromContext(ctx).IsSampled())
}

func TestTelemetry_ThemeSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	telemetry, err := NewTelemetry(TelemetryConfig{
		ServiceName:    "kitchen-test",
		TracingEnabled: true,
		SamplingRate:   1,
		SpanProcessor:  recorder,
	}, prometheus.NewRegistry(), zap.NewNop())
	require.NoError(t, err)
	defer telemetry.Shutdown(context.Background())

	ctx, span := telemetry.StartSpan(context.Background(), "select", "doc-1")
	RecordError(ctx, errors.New("store unavailable"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "theme.select", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.String("theme.document_id", "doc-1"))
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, ended[0].SpanContext().TraceID().String(), TraceIDFromContext(ctx))
}

func TestTelemetry_NilHandsOutNonRecordingSpans(t *testing.T) {
	var telemetry *Telemetry
	ctx, span := telemetry.StartSpan(context.Background(), "load", "doc-1")
	defer span.End()

	assert.False(t, span.IsRecording())
	assert.Empty(t, TraceIDFromContext(ctx))
	RecordError(ctx, errors.New("ignored"))
}

func TestLoggerWithTrace(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	LoggerWithTrace(context.Background(), logger).Info("plain")

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))
	LoggerWithTrace(ctx, logger).Info("traced")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].ContextMap())
	assert.Equal(t, traceID.String(), entries[1].ContextMap()["trace_id"])
	assert.Equal(t, traceID.String(), TraceIDFromContext(ctx))
	assert.Empty(t, TraceIDFromContext(context.Background()))
}
