package apiserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/alchemorsel/kitchen/internal/domain/theme"
	"github.com/alchemorsel/kitchen/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/kitchen/internal/infrastructure/monitoring"
	"github.com/alchemorsel/kitchen/internal/ports/inbound"
	"github.com/alchemorsel/kitchen/internal/ports/outbound"
	apperrors "github.com/alchemorsel/kitchen/pkg/errors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ThemeState is a document's theme state as returned by the API
type ThemeState struct {
	DocumentID string `json:"document_id"`
	theme.Snapshot
}

// SelectThemeRequest is the body of PUT /api/v1/theme
type SelectThemeRequest struct {
	Theme string `json:"theme" binding:"required,theme_preference"`
}

// SystemSchemeRequest is the body of POST /api/v1/theme/system
type SystemSchemeRequest struct {
	Scheme string `json:"scheme" binding:"required,color_scheme"`
}

// ThemeOption describes one selectable preference
type ThemeOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ThemeHandlers serves the theme endpoints
type ThemeHandlers struct {
	themes    inbound.ThemeService
	docs      *documents
	telemetry *monitoring.Telemetry
	logger    *zap.Logger
}

// NewThemeHandlers creates the theme endpoint handlers. telemetry may be nil.
func NewThemeHandlers(themes inbound.ThemeService, telemetry *monitoring.Telemetry, logger *zap.Logger) *ThemeHandlers {
	registerValidators()
	return &ThemeHandlers{
		themes:    themes,
		docs:      newDocuments(),
		telemetry: telemetry,
		logger:    logger.With(zap.String("component", "theme_api")),
	}
}

// ListThemes handles GET /api/v1/themes
func (h *ThemeHandlers) ListThemes(c *gin.Context) {
	prefs := theme.Preferences()
	options := make([]ThemeOption, 0, len(prefs))
	for _, p := range prefs {
		options = append(options, ThemeOption{Value: p.String(), Label: optionLabel(p)})
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: options})
}

// GetTheme handles GET /api/v1/theme
func (h *ThemeHandlers) GetTheme(c *gin.Context) {
	ctx, span := h.begin(c, "get")
	defer span.End()

	ts, err := h.session(ctx, c)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, ts, "")
}

// SelectTheme handles PUT /api/v1/theme
func (h *ThemeHandlers) SelectTheme(c *gin.Context) {
	ctx, span := h.begin(c, "select")
	defer span.End()

	var req SelectThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindingError(err))
		return
	}
	pref, err := theme.ParsePreference(req.Theme)
	if err != nil {
		h.fail(c, apperrors.NewInvalidThemeError(req.Theme))
		return
	}

	ts, err := h.session(ctx, c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if _, err := ts.Select(ctx, pref); err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, ts, "Theme selected")
}

// ReportSystem handles POST /api/v1/theme/system
func (h *ThemeHandlers) ReportSystem(c *gin.Context) {
	ctx, span := h.begin(c, "system")
	defer span.End()

	var req SystemSchemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindingError(err))
		return
	}
	pref, err := theme.ParseSystemPreferenceStrict(req.Scheme)
	if err != nil {
		h.fail(c, apperrors.NewInvalidColorSchemeError(req.Scheme))
		return
	}

	documentID := middleware.DocumentIDFrom(c)
	ts, err := h.session(ctx, c)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.docs.get(documentID).signal.Set(pref)
	// the change is handled on the document's loop; wait for it
	if err := ts.Sync(ctx); err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, ts, "")
}

// ResetTheme handles DELETE /api/v1/theme
func (h *ThemeHandlers) ResetTheme(c *gin.Context) {
	ctx, span := h.begin(c, "reset")
	defer span.End()

	ts, err := h.session(ctx, c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if _, err := ts.Reset(ctx); err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, ts, "Theme preference cleared")
}

// CloseSession handles DELETE /api/v1/theme/session. The stored preference
// is kept; only the live document state is released.
func (h *ThemeHandlers) CloseSession(c *gin.Context) {
	_, span := h.begin(c, "close")
	defer span.End()

	documentID := middleware.DocumentIDFrom(c)
	h.themes.Close(documentID)
	h.docs.forget(documentID)
	c.Status(http.StatusNoContent)
}

// Prune releases the pages of documents whose theme session has expired
func (h *ThemeHandlers) Prune() int {
	return h.docs.prune(func(id string) bool {
		_, err := h.themes.Session(id)
		return err == nil
	})
}

// begin starts the span of one theme operation and carries it on the request
func (h *ThemeHandlers) begin(c *gin.Context, operation string) (context.Context, trace.Span) {
	ctx, span := h.telemetry.StartSpan(c.Request.Context(), operation, middleware.DocumentIDFrom(c))
	c.Request = c.Request.WithContext(ctx)
	return ctx, span
}

// session returns the caller's theme session, opening and loading it on first use
func (h *ThemeHandlers) session(ctx context.Context, c *gin.Context) (inbound.ThemeSession, error) {
	documentID := middleware.DocumentIDFrom(c)
	ts, created, err := h.themes.OpenOrGet(ctx, documentID, func() outbound.DocumentPorts {
		return h.docs.ports(documentID)
	})
	if err != nil {
		return nil, err
	}
	if created {
		if _, err := ts.Load(ctx); err != nil {
			return nil, err
		}
		if err := ts.Ready(ctx); err != nil {
			return nil, err
		}
		h.logger.Debug("Opened API document", zap.String("document_id", documentID))
	}
	return ts, nil
}

func (h *ThemeHandlers) respond(c *gin.Context, ts inbound.ThemeSession, message string) {
	snapshot, err := ts.Snapshot(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    ThemeState{DocumentID: ts.ID(), Snapshot: snapshot},
		Message: message,
	})
}

// fail maps domain errors onto API errors for ErrorHandler to render
func (h *ThemeHandlers) fail(c *gin.Context, err error) {
	documentID := middleware.DocumentIDFrom(c)
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
	case errors.Is(err, theme.ErrSessionClosed):
		appErr = apperrors.NewSessionClosedError(documentID)
	case errors.Is(err, theme.ErrSessionNotFound):
		appErr = apperrors.NewSessionNotFoundError(documentID)
	case errors.Is(err, theme.ErrInvalidPreference):
		appErr = apperrors.NewInvalidThemeError("")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		appErr = apperrors.NewAppError(apperrors.CodeServiceUnavailable, "Request cancelled", "")
	default:
		appErr = apperrors.Wrap(err, "An unexpected error occurred")
	}
	monitoring.RecordError(c.Request.Context(), appErr)
	_ = c.Error(appErr)
}

func optionLabel(p theme.Preference) string {
	switch p {
	case theme.PreferenceLight:
		return "Light"
	case theme.PreferenceDark:
		return "Dark"
	}
	return "Auto"
}
