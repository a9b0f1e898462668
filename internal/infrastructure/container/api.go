package container

import (
	"context"
	"errors"
	"net/http"

	"github.com/alchemorsel/kitchen/internal/infrastructure/config"
	"github.com/alchemorsel/kitchen/internal/infrastructure/http/apiserver"
	"github.com/alchemorsel/kitchen/internal/infrastructure/monitoring"
	"github.com/alchemorsel/kitchen/internal/ports/inbound"
	"github.com/alchemorsel/kitchen/pkg/healthcheck"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// APIModule runs the JSON API
var APIModule = fx.Options(
	CoreModule,
	fx.Provide(newAPIServer),
	fx.Invoke(registerAPIHooks),
)

func newAPIServer(
	cfg *config.Config,
	log *zap.Logger,
	themes inbound.ThemeService,
	hc *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
	telemetry *monitoring.Telemetry,
) *apiserver.Server {
	if !cfg.Monitoring.EnableMetrics {
		metrics = nil
	}
	if !cfg.Monitoring.EnableTracing {
		telemetry = nil
	}
	return apiserver.NewServer(cfg, log, themes, hc, metrics, telemetry)
}

func registerAPIHooks(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, server *apiserver.Server) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("Starting Kitchen JSON API",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
				zap.String("theme_store", cfg.Theme.Store),
			)

			go server.Run(ctx, sweepInterval(cfg))
			go func() {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("API server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			return server.Shutdown(stopCtx)
		},
	})
}
