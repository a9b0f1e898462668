// Package container provides dependency injection using Uber FX
// This implements the Dependency Inversion Principle from SOLID
package container

import (
	"context"
	"fmt"

	apptheme "github.com/alchemorsel/kitchen/internal/application/theme"
	"github.com/alchemorsel/kitchen/internal/domain/shared"
	"github.com/alchemorsel/kitchen/internal/infrastructure/config"
	"github.com/alchemorsel/kitchen/internal/infrastructure/monitoring"
	"github.com/alchemorsel/kitchen/internal/ports/inbound"
	"github.com/alchemorsel/kitchen/internal/ports/outbound"
	"github.com/alchemorsel/kitchen/pkg/healthcheck"
	"github.com/alchemorsel/kitchen/pkg/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ConfigPath is the config file given on the command line; empty searches the defaults
type ConfigPath string

// CoreModule provides everything both binaries share
var CoreModule = fx.Options(
	ConfigModule,
	LoggerModule,
	MonitoringModule,
	HealthModule,
	StoreModule,
	ThemeModule,
)

// ConfigModule provides configuration
var ConfigModule = fx.Provide(
	func(path ConfigPath) (*config.Config, error) {
		return config.Load(string(path))
	},
)

// LoggerModule provides logging
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*zap.Logger, error) {
		return logger.New(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
		})
	},
)

// MonitoringModule provides Prometheus metrics and OpenTelemetry
var MonitoringModule = fx.Options(
	fx.Provide(
		monitoring.NewMetricsCollector,
		newTelemetry,
	),
)

// HealthModule provides the health check registry
var HealthModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) *healthcheck.HealthCheck {
		hc := healthcheck.New(cfg.App.Version, log)
		if cfg.Monitoring.HealthCacheTTL > 0 {
			hc.SetCacheTTL(cfg.Monitoring.HealthCacheTTL)
		}
		return hc
	},
)

// ThemeModule provides the event dispatcher and the theme service
var ThemeModule = fx.Options(
	fx.Provide(
		newDispatcher,
		newThemeService,
		func(s *apptheme.Service) inbound.ThemeService { return s },
	),
	fx.Invoke(registerThemeHooks),
)

func newTelemetry(lc fx.Lifecycle, cfg *config.Config, metrics *monitoring.MetricsCollector, log *zap.Logger) (*monitoring.Telemetry, error) {
	telemetry, err := monitoring.NewTelemetry(monitoring.TelemetryConfig{
		ServiceName:       cfg.App.Name,
		ServiceVersion:    cfg.App.Version,
		Environment:       cfg.App.Environment,
		TracingEnabled:    cfg.Monitoring.EnableTracing,
		OTLPTraceEndpoint: cfg.Monitoring.TracingEndpoint,
		SamplingRate:      cfg.Monitoring.SamplingRate,
		MetricsEnabled:    cfg.Monitoring.EnableMetrics,
	}, metrics.Registry(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return telemetry.Shutdown(ctx)
		},
	})
	return telemetry, nil
}

// newDispatcher wires the in-process event handlers every binary needs
func newDispatcher(metrics *monitoring.MetricsCollector, log *zap.Logger) *shared.Dispatcher {
	dispatcher := shared.NewDispatcher()
	metrics.Register(dispatcher)

	events := log.With(zap.String("component", "theme_events"))
	dispatcher.Register(shared.WildcardEvent, func(event shared.DomainEvent) error {
		events.Debug("Theme event", zap.String("event", event.EventName()))
		return nil
	})
	return dispatcher
}

func newThemeService(
	cfg *config.Config,
	store outbound.PreferenceStore,
	dispatcher *shared.Dispatcher,
	metrics *monitoring.MetricsCollector,
	hc *healthcheck.HealthCheck,
	log *zap.Logger,
) *apptheme.Service {
	service := apptheme.NewService(store, dispatcher, apptheme.ServiceConfig{
		KeyPrefix:       cfg.Theme.KeyPrefix,
		SessionTTL:      cfg.Theme.SessionTTL,
		QueueSize:       cfg.Theme.QueueSize,
		CleanupInterval: cfg.RateLimit.CleanupInterval,
	}, log)

	metrics.TrackActiveSessions(service.ActiveSessions)
	hc.Register("theme_sessions", healthcheck.NewCustomChecker("theme_sessions",
		func(ctx context.Context) (healthcheck.Status, string, interface{}) {
			return healthcheck.StatusHealthy, "Theme service running", map[string]interface{}{
				"active_sessions": service.ActiveSessions(),
			}
		}))
	return service
}

func registerThemeHooks(lc fx.Lifecycle, service *apptheme.Service) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return service.Shutdown(ctx)
		},
	})
}
