package theme

import (
	"context"
	"sync"
	"time"

	"github.com/alchemorsel/kitchen/internal/domain/theme"
	"github.com/alchemorsel/kitchen/internal/ports/inbound"
	"github.com/alchemorsel/kitchen/internal/ports/outbound"
	"go.uber.org/zap"
)

// ServiceConfig tunes the session registry
type ServiceConfig struct {
	// KeyPrefix namespaces every document's storage keys
	KeyPrefix string
	// SessionTTL closes sessions idle for longer; zero disables expiry
	SessionTTL time.Duration
	// QueueSize bounds each session's event loop
	QueueSize int
	// CleanupInterval is how often idle sessions are swept
	CleanupInterval time.Duration
}

// Service keeps one Session per open document
type Service struct {
	store    outbound.PreferenceStore
	events   outbound.EventPublisher
	config   ServiceConfig
	logger   *zap.Logger
	mu       sync.RWMutex
	sessions map[string]*Session
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ inbound.ThemeService = (*Service)(nil)

// NewService creates the registry and starts the idle-session sweeper
func NewService(
	store outbound.PreferenceStore,
	events outbound.EventPublisher,
	cfg ServiceConfig,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	s := &Service{
		store:    store,
		events:   events,
		config:   cfg,
		logger:   logger.With(zap.String("component", "theme_service")),
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}

	if cfg.SessionTTL > 0 {
		s.wg.Add(1)
		go s.cleanupExpired()
	}
	return s
}

// Open starts a fresh session for documentID, closing any previous one.
// A new page load is a new document even when the id is reused.
func (s *Service) Open(ctx context.Context, documentID string, collab Collaborators) (inbound.ThemeSession, error) {
	store := newScopedStore(s.store, s.config.KeyPrefix, documentID)
	session := newSession(documentID, store, collab, s.events, s.config.QueueSize, s.logger)

	s.mu.Lock()
	previous := s.sessions[documentID]
	s.sessions[documentID] = session
	s.mu.Unlock()

	if previous != nil {
		previous.Close()
	}

	s.logger.Debug("Opened theme session", zap.String("document_id", documentID))
	return session, nil
}

// Session looks up an open session
func (s *Service) Session(documentID string) (inbound.ThemeSession, error) {
	s.mu.RLock()
	session, ok := s.sessions[documentID]
	s.mu.RUnlock()
	if !ok {
		return nil, theme.ErrSessionNotFound
	}
	return session, nil
}

// OpenOrGet returns the open session for documentID, opening one if needed.
// newCollab is only called when a session has to be created.
func (s *Service) OpenOrGet(ctx context.Context, documentID string, newCollab func() Collaborators) (inbound.ThemeSession, bool, error) {
	if session, err := s.Session(documentID); err == nil {
		return session, false, nil
	}
	session, err := s.Open(ctx, documentID, newCollab())
	return session, true, err
}

// Close ends the session for documentID if it is open
func (s *Service) Close(documentID string) {
	s.mu.Lock()
	session, ok := s.sessions[documentID]
	delete(s.sessions, documentID)
	s.mu.Unlock()

	if ok {
		session.Close()
	}
}

// ActiveSessions returns the number of open sessions
func (s *Service) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Shutdown stops the sweeper and closes every session
func (s *Service) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()

	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
	s.logger.Info("Theme sessions closed", zap.Int("count", len(sessions)))
	return nil
}

// cleanupExpired removes idle sessions periodically
func (s *Service) cleanupExpired() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *Service) sweep(now time.Time) {
	var expired []*Session

	s.mu.Lock()
	for id, session := range s.sessions {
		if now.Sub(session.LastSeen()) > s.config.SessionTTL {
			expired = append(expired, session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, session := range expired {
		session.Close()
		s.logger.Debug("Cleaned up expired theme session", zap.String("document_id", session.ID()))
	}
}
