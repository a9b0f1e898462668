package webserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/alchemorsel/kitchen/internal/infrastructure/config"
	"github.com/alchemorsel/kitchen/internal/ports/outbound"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultSessionLifetime = 24 * time.Hour

// Session is one browser's cookie session. Its id doubles as the theme
// document id, so each browser keeps its own stored preference.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	expiresAt time.Time
	document  *Document
	signal    *ClientHintSignal
	limiter   *rate.Limiter
}

// Reload installs the models of a freshly rendered page
func (s *Session) Reload(document *Document, signal *ClientHintSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.document = document
	s.signal = signal
}

// Document returns the current page model
func (s *Session) Document() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document
}

// Signal returns the current page's colour-scheme signal
func (s *Session) Signal() *ClientHintSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signal
}

// Ports returns the document-side collaborators of the current page
func (s *Session) Ports() outbound.DocumentPorts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return outbound.DocumentPorts{
		Presentation: s.document,
		Selectors:    s.document,
		Signal:       s.signal,
	}
}

// Allow reports whether the session may send another system report now
func (s *Session) Allow() bool {
	return s.limiter.Allow()
}

// ExpiresAt returns when the session lapses
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

func (s *Session) expired(now time.Time) bool {
	return now.After(s.ExpiresAt())
}

func (s *Session) extend(lifetime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiresAt = time.Now().Add(lifetime)
}

// SessionStore manages browser sessions
type SessionStore struct {
	sessions   map[string]*Session
	mu         sync.RWMutex
	cookieName string
	lifetime   time.Duration
	secure     bool
	limit      rate.Limit
	burst      int
	logger     *zap.Logger
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewSessionStore creates a new session store
func NewSessionStore(cfg *config.Config, logger *zap.Logger) *SessionStore {
	lifetime := cfg.Theme.SessionTTL
	if lifetime <= 0 {
		lifetime = defaultSessionLifetime
	}
	burst := cfg.RateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.RateLimit.Enable {
		limit = rate.Limit(float64(cfg.RateLimit.RequestsPerMin) / 60)
	}

	return &SessionStore{
		sessions:   make(map[string]*Session),
		cookieName: cfg.Theme.CookieName,
		lifetime:   lifetime,
		secure:     cfg.IsProduction(),
		limit:      limit,
		burst:      burst,
		logger:     logger.With(zap.String("component", "web_sessions")),
		stop:       make(chan struct{}),
	}
}

// Get retrieves a live session from the request cookie
func (s *SessionStore) Get(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	session, exists := s.sessions[cookie.Value]
	s.mu.RUnlock()

	if !exists {
		return nil, http.ErrNoCookie
	}

	if session.expired(time.Now()) {
		s.Delete(cookie.Value)
		return nil, http.ErrNoCookie
	}

	return session, nil
}

// New creates a new session with an empty page
func (s *SessionStore) New() *Session {
	now := time.Now()
	session := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		expiresAt: now.Add(s.lifetime),
		document:  NewDocument(false),
		signal:    NewClientHintSignal(""),
		limiter:   rate.NewLimiter(s.limit, s.burst),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session
}

// Save extends the session and sets the cookie
func (s *SessionStore) Save(w http.ResponseWriter, session *Session) {
	session.extend(s.lifetime)
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  session.ExpiresAt(),
		MaxAge:   int(s.lifetime.Seconds()),
	})
}

// Keep extends a session without a response to carry the cookie, as for
// websocket traffic. A session already swept is put back.
func (s *SessionStore) Keep(session *Session) {
	session.extend(s.lifetime)
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
}

// Delete removes a session
func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// Len returns the number of sessions held
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Cleanup removes sessions expired at now and returns their ids
func (s *SessionStore) Cleanup(now time.Time) []string {
	var removed []string

	s.mu.Lock()
	for id, session := range s.sessions {
		if session.expired(now) {
			delete(s.sessions, id)
			removed = append(removed, id)
		}
	}
	s.mu.Unlock()

	for _, id := range removed {
		s.logger.Debug("Cleaned up expired session", zap.String("session_id", id))
	}
	return removed
}

// Run removes expired sessions every interval until Close.
// onExpire is called with each removed session id.
func (s *SessionStore) Run(interval time.Duration, onExpire func(id string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			for _, id := range s.Cleanup(now) {
				if onExpire != nil {
					onExpire(id)
				}
			}
		}
	}
}

// Close stops Run
func (s *SessionStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}
