// Package webserver provides the web frontend HTTP server implementation
package webserver

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/alchemorsel/kitchen/internal/domain/theme"
	"github.com/alchemorsel/kitchen/internal/infrastructure/config"
	"github.com/alchemorsel/kitchen/internal/infrastructure/monitoring"
	"github.com/alchemorsel/kitchen/internal/ports/inbound"
	"github.com/alchemorsel/kitchen/internal/ports/outbound"
	apperrors "github.com/alchemorsel/kitchen/pkg/errors"
	"github.com/alchemorsel/kitchen/pkg/healthcheck"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

//go:embed templates/*
var templatesFS embed.FS

type contextKey string

const sessionContextKey contextKey = "session"

// WebServer represents the web frontend HTTP server
type WebServer struct {
	config       *config.Config
	logger       *zap.Logger
	server       *http.Server
	router       *chi.Mux
	themes       inbound.ThemeService
	sessions     *SessionStore
	hub          *Hub
	templates    *template.Template
	healthCheck  *healthcheck.HealthCheck
	metrics      *monitoring.MetricsCollector
	telemetry    *monitoring.Telemetry
	showSelector atomic.Bool
	// systemSignal replaces the per-page client hints when set
	systemSignal outbound.SystemSignal
}

// NewWebServer creates a new web frontend server instance.
// metrics and telemetry may be nil.
func NewWebServer(
	cfg *config.Config,
	log *zap.Logger,
	themes inbound.ThemeService,
	sessions *SessionStore,
	hub *Hub,
	healthCheck *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
	telemetry *monitoring.Telemetry,
) (*WebServer, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	server := &WebServer{
		config:      cfg,
		logger:      log.With(zap.String("component", "webserver")),
		themes:      themes,
		sessions:    sessions,
		hub:         hub,
		templates:   templates,
		healthCheck: healthCheck,
		metrics:     metrics,
		telemetry:   telemetry,
	}
	server.showSelector.Store(cfg.Theme.ShowSelector)

	server.router = server.setupRoutes()

	var handler http.Handler = server.router
	if telemetry != nil {
		handler = telemetry.InstrumentHandler(handler, "kitchen-web")
	}
	server.server = &http.Server{
		Addr:           cfg.ListenAddr(),
		Handler:        handler,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return server, nil
}

// setupRoutes configures the web frontend routes
func (s *WebServer) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(s.securityHeaders)
	if s.metrics != nil {
		r.Use(s.metrics.HTTPMiddleware)
	}

	// Health check endpoints
	r.Get("/health", s.healthCheck.HTTPHandler())
	r.Get("/ready", s.healthCheck.HTTPReadinessHandler())
	r.Get("/live", s.healthCheck.HTTPLivenessHandler())
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(ClientHints)
		r.Use(s.sessionMiddleware)

		r.Get("/", s.handleHome)
		r.Route("/theme", func(r chi.Router) {
			r.Post("/", s.handleSelect)
			r.Post("/system", s.handleSystem)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// Handler returns the root handler, instrumented when telemetry is on
func (s *WebServer) Handler() http.Handler {
	return s.server.Handler
}

// SetShowSelector toggles the picker for pages rendered from now on
func (s *WebServer) SetShowSelector(show bool) {
	if s.showSelector.Swap(show) != show {
		s.logger.Info("Theme selector visibility changed", zap.Bool("show_selector", show))
	}
}

// UseSystemSignal makes every page follow signal instead of its browser's
// client hints. It must be called before Start.
func (s *WebServer) UseSystemSignal(signal outbound.SystemSignal) {
	s.systemSignal = signal
}

// Start starts the web frontend HTTP server
func (s *WebServer) Start() error {
	s.logger.Info("Starting Web Frontend server", zap.String("address", s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the web server
func (s *WebServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down Web Frontend server...")
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

// parseTemplates parses all HTML templates from the embedded filesystem.
// Templates are named by their path below templates/ without the extension.
func parseTemplates() (*template.Template, error) {
	tmpl := template.New("")

	err := fs.WalkDir(templatesFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}

		content, err := templatesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", path, err)
		}

		name := strings.TrimSuffix(strings.TrimPrefix(path, "templates/"), ".html")
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk templates: %w", err)
	}
	return tmpl, nil
}

// Middleware

func (s *WebServer) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessions.Get(r)
		if err != nil {
			session = s.sessions.New()
			s.logger.Debug("Created web session", zap.String("session_id", session.ID))
		}
		s.sessions.Save(w, session)

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *Session {
	session, _ := r.Context().Value(sessionContextKey).(*Session)
	return session
}

// securityHeaders adds security headers to all responses
func (s *WebServer) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; "+
			"script-src 'self' 'unsafe-inline' https://unpkg.com https://cdn.jsdelivr.net; "+
			"style-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net; "+
			"img-src 'self' data:; "+
			"connect-src 'self'; "+
			"frame-ancestors 'none'")
		if s.config.IsProduction() {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// Handler functions

// handleHome is a page load: a new document replaces whatever the browser
// showed before, then the theme is applied and the selector synchronised.
func (s *WebServer) handleHome(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	ctx, span := s.telemetry.StartSpan(r.Context(), "load", session.ID)
	defer span.End()
	r = r.WithContext(ctx)

	session.Reload(NewDocument(s.showSelector.Load()), SignalFromRequest(r))
	ts, err := s.themes.Open(ctx, session.ID, s.ports(session))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := ts.Load(ctx); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := ts.Ready(ctx); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.render(w, "index", map[string]interface{}{
		"Title":      "Kitchen",
		"DocumentID": session.ID,
		"Document":   session.Document().View(),
	})
}

// handleSelect applies an explicit choice from the picker
func (s *WebServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	ctx, span := s.telemetry.StartSpan(r.Context(), "select", session.ID)
	defer span.End()
	r = r.WithContext(ctx)

	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, apperrors.NewBadRequestError("Invalid form"))
		return
	}
	raw := r.FormValue("theme")
	pref, err := theme.ParsePreference(raw)
	if err != nil {
		s.writeError(w, r, apperrors.NewInvalidThemeError(raw))
		return
	}

	ts, err := s.themeSession(ctx, session)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	effective, err := ts.Select(ctx, pref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") != "true" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	trigger, _ := json.Marshal(map[string]interface{}{
		"themeChanged": map[string]string{"theme": string(effective)},
	})
	w.Header().Set("HX-Trigger", string(trigger))

	view := session.Document().View()
	if view.Selector == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.render(w, "partials/selector", view.Selector)
}

// handleSystem records a colour-scheme report from the page's matchMedia listener
func (s *WebServer) handleSystem(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	ctx, span := s.telemetry.StartSpan(r.Context(), "system", session.ID)
	defer span.End()
	r = r.WithContext(ctx)

	if !session.Allow() {
		w.Header().Set("Retry-After", "60")
		s.writeError(w, r, apperrors.NewAppError(apperrors.CodeTooManyRequests, "Rate limit exceeded", ""))
		return
	}

	raw := r.FormValue("scheme")
	pref, err := theme.ParseSystemPreferenceStrict(raw)
	if err != nil {
		s.writeError(w, r, apperrors.NewInvalidColorSchemeError(raw))
		return
	}

	ts, err := s.themeSession(ctx, session)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.reportSystem(session, pref)
	if err := ts.Sync(ctx); err != nil {
		s.writeError(w, r, err)
		return
	}
	snapshot, err := ts.Snapshot(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleWebSocket streams applied themes and accepts system reports
func (s *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := sessionFrom(r)

	if _, err := s.themeSession(ctx, session); err != nil {
		s.writeError(w, r, err)
		return
	}

	err := s.hub.Serve(w, r, session.ID, func(pref theme.SystemPreference) error {
		if !session.Allow() {
			return errors.New("rate limit exceeded")
		}
		ctx, span := s.telemetry.StartSpan(context.Background(), "system", session.ID)
		defer span.End()

		// an open page outlives idle sweeps of both sessions
		s.sessions.Keep(session)
		if _, err := s.themeSession(ctx, session); err != nil {
			monitoring.RecordError(ctx, err)
			return err
		}
		s.reportSystem(session, pref)
		return nil
	})
	if err != nil {
		// Upgrade has already answered the request
		s.logger.Debug("Websocket upgrade failed", zap.Error(err))
	}
}

// themeSession returns the document's theme session, reopening it over the
// current page when the service no longer has one (restart or expiry).
func (s *WebServer) themeSession(ctx context.Context, session *Session) (inbound.ThemeSession, error) {
	ts, created, err := s.themes.OpenOrGet(ctx, session.ID, func() outbound.DocumentPorts {
		return s.ports(session)
	})
	if err != nil {
		return nil, err
	}
	if created {
		if _, err := ts.Load(ctx); err != nil {
			return nil, err
		}
	}
	return ts, nil
}

func (s *WebServer) ports(session *Session) outbound.DocumentPorts {
	ports := session.Ports()
	if s.systemSignal != nil {
		ports.Signal = s.systemSignal
	}
	return ports
}

// reportSystem records a browser report unless a host-wide signal is in charge
func (s *WebServer) reportSystem(session *Session, pref theme.SystemPreference) {
	if s.systemSignal != nil {
		return
	}
	session.Signal().Set(pref)
}

// Helper methods

func (s *WebServer) render(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("Failed to execute template", zap.String("template", name), zap.Error(err))
	}
}

func (s *WebServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
	case errors.Is(err, theme.ErrSessionClosed):
		appErr = apperrors.NewSessionClosedError(sessionID(r))
	case errors.Is(err, theme.ErrSessionNotFound):
		appErr = apperrors.NewSessionNotFoundError(sessionID(r))
	case errors.Is(err, theme.ErrInvalidPreference):
		appErr = apperrors.NewInvalidThemeError("")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		appErr = apperrors.NewAppError(apperrors.CodeServiceUnavailable, "Request cancelled", "")
	default:
		appErr = apperrors.Wrap(err, "An unexpected error occurred")
	}

	monitoring.RecordError(r.Context(), appErr)
	if appErr.StatusCode() >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, appErr.StatusCode(), apperrors.ToErrorResponse(appErr, middleware.GetReqID(r.Context())))
}

func sessionID(r *http.Request) string {
	if session := sessionFrom(r); session != nil {
		return session.ID
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
