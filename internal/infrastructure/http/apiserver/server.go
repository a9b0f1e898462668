// Package apiserver provides the JSON theme API for clients without the web frontend
package apiserver

import (
	"context"
	"net/http"
	"time"

	"github.com/alchemorsel/kitchen/internal/infrastructure/config"
	"github.com/alchemorsel/kitchen/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/kitchen/internal/infrastructure/monitoring"
	"github.com/alchemorsel/kitchen/internal/ports/inbound"
	apperrors "github.com/alchemorsel/kitchen/pkg/errors"
	"github.com/alchemorsel/kitchen/pkg/healthcheck"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server is the JSON API HTTP server
type Server struct {
	config      *config.Config
	logger      *zap.Logger
	engine      *gin.Engine
	server      *http.Server
	middleware  *middleware.Middleware
	handlers    *ThemeHandlers
	healthCheck *healthcheck.HealthCheck
	metrics     *monitoring.MetricsCollector
}

// NewServer creates the API server. metrics and telemetry may be nil.
func NewServer(
	cfg *config.Config,
	log *zap.Logger,
	themes inbound.ThemeService,
	healthCheck *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
	telemetry *monitoring.Telemetry,
) *Server {
	if cfg.App.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:      cfg,
		logger:      log.With(zap.String("component", "apiserver")),
		middleware:  middleware.New(cfg, log),
		handlers:    NewThemeHandlers(themes, telemetry, log),
		healthCheck: healthCheck,
		metrics:     metrics,
	}
	s.engine = s.setupRoutes()

	var handler http.Handler = s.engine
	if telemetry != nil {
		handler = telemetry.InstrumentHandler(handler, "kitchen-api")
	}
	s.server = &http.Server{
		Addr:           cfg.APIListenAddr(),
		Handler:        handler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}
	return s
}

func (s *Server) setupRoutes() *gin.Engine {
	m := s.middleware
	r := gin.New()
	if len(s.config.Server.TrustedProxies) > 0 {
		if err := r.SetTrustedProxies(s.config.Server.TrustedProxies); err != nil {
			s.logger.Warn("Invalid trusted proxies", zap.Error(err))
		}
	}

	r.Use(m.RequestID(), m.Logger(), m.Recovery(), m.Security(), m.CORS())
	if s.metrics != nil {
		r.Use(s.metrics.GinMiddleware())
	}
	r.Use(m.ErrorHandler())

	r.GET(pathOr(s.config.Monitoring.HealthCheckPath, "/health"), s.healthCheck.Handler())
	r.GET(pathOr(s.config.Monitoring.ReadinessPath, "/ready"), s.healthCheck.ReadinessHandler())
	r.GET("/live", s.healthCheck.LivenessHandler())
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/themes", s.handlers.ListThemes)

	t := v1.Group("/theme", m.RateLimit(), m.DocumentID())
	t.GET("", s.handlers.GetTheme)
	t.PUT("", s.handlers.SelectTheme)
	t.DELETE("", s.handlers.ResetTheme)
	t.POST("/system", s.handlers.ReportSystem)
	t.DELETE("/session", s.handlers.CloseSession)

	r.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperrors.NewNotFoundError("route"))
	})

	return r
}

// Handler returns the root HTTP handler, instrumented when telemetry is on
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run sweeps idle rate limiters and orphaned API documents every interval
// until ctx is done.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiters := s.middleware.Limiters().Cleanup(10 * interval)
			pages := s.handlers.Prune()
			if limiters > 0 || pages > 0 {
				s.logger.Debug("Swept idle API state",
					zap.Int("limiters", limiters),
					zap.Int("documents", pages),
				)
			}
		}
	}
}

// Start starts the API HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting JSON API server", zap.String("address", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the API server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down JSON API server...")
	return s.server.Shutdown(ctx)
}

func pathOr(path, fallback string) string {
	if path == "" {
		return fallback
	}
	return path
}
