// Package middleware provides HTTP middleware components
// following the Chain of Responsibility pattern
package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/alchemorsel/kitchen/internal/infrastructure/config"
	"github.com/alchemorsel/kitchen/internal/infrastructure/monitoring"
	apperrors "github.com/alchemorsel/kitchen/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// RequestIDHeader carries the request id in and out
	RequestIDHeader = "X-Request-ID"
	// DocumentIDHeader names the document an API call acts on
	DocumentIDHeader = "X-Document-ID"

	requestIDKey  = "request_id"
	documentIDKey = "document_id"
)

// Middleware provides all middleware functions
type Middleware struct {
	config   *config.Config
	logger   *zap.Logger
	limiters *ClientLimiters
}

// New creates a new middleware instance
func New(cfg *config.Config, logger *zap.Logger) *Middleware {
	return &Middleware{
		config:   cfg,
		logger:   logger.With(zap.String("component", "http_middleware")),
		limiters: NewClientLimiters(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstSize),
	}
}

// Limiters exposes the per-client rate limiters so callers can sweep them
func (m *Middleware) Limiters() *ClientLimiters {
	return m.limiters
}

// RequestID adds a unique request ID to the context
func (m *Middleware) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// Logger provides structured logging for requests
func (m *Middleware) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		// Skip logging for health checks
		if path == m.config.Monitoring.HealthCheckPath || path == m.config.Monitoring.ReadinessPath {
			return
		}

		statusCode := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Int("status", statusCode),
			zap.Duration("latency", time.Since(start)),
		}
		if documentID := c.GetString(documentIDKey); documentID != "" {
			fields = append(fields, zap.String("document_id", documentID))
		}
		if traceID := monitoring.TraceIDFromContext(c.Request.Context()); traceID != "" {
			fields = append(fields, zap.String("trace_id", traceID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}

		switch {
		case statusCode >= 500:
			m.logger.Error("Server error", fields...)
		case statusCode >= 400:
			m.logger.Warn("Client error", fields...)
		default:
			m.logger.Info("Request completed", fields...)
		}
	}
}

// Recovery recovers from panics and returns 500 error
func (m *Middleware) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				m.logger.Error("Panic recovered",
					zap.String("request_id", c.GetString(requestIDKey)),
					zap.Any("error", err),
					zap.String("stack", string(debug.Stack())),
				)

				appErr := apperrors.NewInternalError("An unexpected error occurred")
				c.AbortWithStatusJSON(appErr.StatusCode(), apperrors.ToErrorResponse(appErr, c.GetString(requestIDKey)))
			}
		}()

		c.Next()
	}
}

// CORS handles Cross-Origin Resource Sharing
func (m *Middleware) CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.config.Server.EnableCORS {
			c.Next()
			return
		}

		origin := c.Request.Header.Get("Origin")
		if m.isOriginAllowed(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, X-Document-ID")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Max-Age", "86400")
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RateLimit limits each client IP to the configured request rate
func (m *Middleware) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.config.RateLimit.Enable {
			c.Next()
			return
		}

		if !m.limiters.Allow(c.ClientIP()) {
			c.Header("Retry-After", "60")
			appErr := apperrors.NewAppError(apperrors.CodeTooManyRequests, "Rate limit exceeded", "")
			c.AbortWithStatusJSON(appErr.StatusCode(), apperrors.ToErrorResponse(appErr, c.GetString(requestIDKey)))
			return
		}

		c.Next()
	}
}

// Security adds security headers
func (m *Middleware) Security() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if m.config.IsProduction() {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// DocumentID requires the X-Document-ID header and stores it on the context
func (m *Middleware) DocumentID() gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.GetHeader(DocumentIDHeader)
		if documentID == "" {
			appErr := apperrors.NewDocumentRequiredError(DocumentIDHeader)
			c.AbortWithStatusJSON(appErr.StatusCode(), apperrors.ToErrorResponse(appErr, c.GetString(requestIDKey)))
			return
		}
		c.Set(documentIDKey, documentID)
		c.Next()
	}
}

// ErrorHandler renders the last handler error as an AppError response
func (m *Middleware) ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			appErr = apperrors.Wrap(err, "An unexpected error occurred")
		}

		if appErr.StatusCode() >= http.StatusInternalServerError {
			m.logger.Error("Request error",
				zap.String("request_id", c.GetString(requestIDKey)),
				zap.String("code", string(appErr.Code)),
				zap.Error(err),
			)
		}

		c.JSON(appErr.StatusCode(), apperrors.ToErrorResponse(appErr, c.GetString(requestIDKey)))
	}
}

// RequestIDFrom returns the request id set by RequestID
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// DocumentIDFrom returns the document id set by DocumentID
func DocumentIDFrom(c *gin.Context) string {
	return c.GetString(documentIDKey)
}

func (m *Middleware) isOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if m.config.IsDevelopment() {
		return true
	}
	for _, allowed := range m.config.Server.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ClientLimiters keeps one token bucket per client key
type ClientLimiters struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientLimiters allows requestsPerMin per key with the given burst
func NewClientLimiters(requestsPerMin, burst int) *ClientLimiters {
	return &ClientLimiters{
		limit:    rate.Limit(float64(requestsPerMin) / 60),
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
	}
}

// Allow reports whether key may make a request now
func (l *ClientLimiters) Allow(key string) bool {
	l.mu.Lock()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()

	return entry.limiter.Allow()
}

// Cleanup drops limiters idle for longer than maxIdle
func (l *ClientLimiters) Cleanup(maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, entry := range l.limiters {
		if time.Since(entry.lastSeen) > maxIdle {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients
func (l *ClientLimiters) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
