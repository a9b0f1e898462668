package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

var noopTracer = noop.NewTracerProvider().Tracer("kitchen")

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	TracingEnabled    bool
	OTLPTraceEndpoint string
	SamplingRate      float64
	// SpanProcessor replaces the OTLP exporter when set
	SpanProcessor sdktrace.SpanProcessor

	MetricsEnabled bool
}

// Telemetry owns the tracer and meter providers
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	logger         *zap.Logger
	config         TelemetryConfig
}

// NewTelemetry sets up tracing over OTLP/HTTP and OpenTelemetry metrics
// exported through registerer. Disabled halves fall back to no-op providers.
func NewTelemetry(config TelemetryConfig, registerer prometheus.Registerer, logger *zap.Logger) (*Telemetry, error) {
	t := &Telemetry{
		logger: logger,
		config: config,
		tracer: noopTracer,
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if config.TracingEnabled {
		if err := t.initializeTracing(res); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if config.MetricsEnabled {
		if err := t.initializeMetrics(res, registerer); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	logger.Info("OpenTelemetry initialized",
		zap.String("service", config.ServiceName),
		zap.Bool("tracing_enabled", config.TracingEnabled),
		zap.Bool("metrics_enabled", config.MetricsEnabled),
	)
	return t, nil
}

func (t *Telemetry) initializeTracing(res *resource.Resource) error {
	processor := t.config.SpanProcessor
	if processor == nil {
		exporter, err := otlptracehttp.New(
			context.Background(),
			otlptracehttp.WithEndpoint(t.config.OTLPTraceEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		processor = sdktrace.NewBatchSpanProcessor(exporter)
		t.logger.Info("OTLP trace exporter configured", zap.String("endpoint", t.config.OTLPTraceEndpoint))
	}

	t.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(t.config.SamplingRate))),
	)

	otel.SetTracerProvider(t.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t.tracer = t.tracerProvider.Tracer(t.config.ServiceName,
		trace.WithInstrumentationVersion(t.config.ServiceVersion),
	)
	return nil
}

func (t *Telemetry) initializeMetrics(res *resource.Resource, registerer prometheus.Registerer) error {
	exporter, err := otelprom.New(otelprom.WithRegisterer(registerer))
	if err != nil {
		return fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	t.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(t.meterProvider)
	return nil
}

// StartSpan starts a span for a theme operation on a document.
// A nil Telemetry hands out non-recording spans.
func (t *Telemetry) StartSpan(ctx context.Context, operation, documentID string) (context.Context, trace.Span) {
	tracer := noopTracer
	if t != nil {
		tracer = t.tracer
	}
	return tracer.Start(ctx, "theme."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("theme.document_id", documentID)),
	)
}

// InstrumentHandler wraps handler with otelhttp
func (t *Telemetry) InstrumentHandler(handler http.Handler, operation string) http.Handler {
	var opts []otelhttp.Option
	if t.tracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(t.tracerProvider))
	}
	if t.meterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(t.meterProvider))
	}
	return otelhttp.NewHandler(handler, operation, opts...)
}

// Shutdown flushes and stops both providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.tracerProvider != nil {
		errs = append(errs, t.tracerProvider.Shutdown(ctx))
	}
	if t.meterProvider != nil {
		errs = append(errs, t.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// RecordError marks the span carried by ctx as failed
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// LoggerWithTrace adds trace and span ids to logger when ctx carries a span
func LoggerWithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}
