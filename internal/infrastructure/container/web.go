package container

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alchemorsel/kitchen/internal/domain/shared"
	"github.com/alchemorsel/kitchen/internal/infrastructure/appearance"
	"github.com/alchemorsel/kitchen/internal/infrastructure/config"
	"github.com/alchemorsel/kitchen/internal/infrastructure/http/webserver"
	"github.com/alchemorsel/kitchen/internal/infrastructure/monitoring"
	"github.com/alchemorsel/kitchen/internal/ports/inbound"
	"github.com/alchemorsel/kitchen/pkg/healthcheck"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// WebModule runs the HTML frontend
var WebModule = fx.Options(
	CoreModule,
	fx.Provide(
		webserver.NewSessionStore,
		newHub,
		newWebServer,
	),
	fx.Invoke(registerWebHooks),
)

func newHub(cfg *config.Config, dispatcher *shared.Dispatcher, log *zap.Logger) *webserver.Hub {
	var checkOrigin func(r *http.Request) bool
	if cfg.IsDevelopment() {
		checkOrigin = func(*http.Request) bool { return true }
	}
	hub := webserver.NewHub(checkOrigin, log)
	hub.Register(dispatcher)
	return hub
}

func newWebServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	themes inbound.ThemeService,
	sessions *webserver.SessionStore,
	hub *webserver.Hub,
	hc *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
	telemetry *monitoring.Telemetry,
) (*webserver.WebServer, error) {
	if !cfg.Monitoring.EnableMetrics {
		metrics = nil
	}
	if !cfg.Monitoring.EnableTracing {
		telemetry = nil
	}
	server, err := webserver.NewWebServer(cfg, log, themes, sessions, hub, hc, metrics, telemetry)
	if err != nil {
		return nil, err
	}

	if cfg.Theme.SystemSource == "file" {
		signal, err := appearance.NewFileSignal(cfg.Theme.AppearanceFile, appearance.DefaultDebounce, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error { return signal.Close() },
		})
		server.UseSystemSignal(signal)
		log.Info("Following host appearance file", zap.String("path", cfg.Theme.AppearanceFile))
	}
	return server, nil
}

func registerWebHooks(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	server *webserver.WebServer,
	sessions *webserver.SessionStore,
	themes inbound.ThemeService,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting Kitchen web frontend",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
				zap.String("theme_store", cfg.Theme.Store),
			)

			cfg.Watch(func(next *config.Config, event fsnotify.Event) {
				log.Info("Configuration changed", zap.String("file", event.Name))
				server.SetShowSelector(next.Theme.ShowSelector)
			}, func(err error) {
				log.Warn("Ignoring invalid configuration change", zap.Error(err))
			})

			// an expired browser session takes its theme session with it
			go sessions.Run(sweepInterval(cfg), themes.Close)

			go func() {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("Web server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sessions.Close()
			return server.Shutdown(ctx)
		},
	})
}

func sweepInterval(cfg *config.Config) time.Duration {
	if cfg.RateLimit.CleanupInterval > 0 {
		return cfg.RateLimit.CleanupInterval
	}
	return time.Minute
}
