package theme

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alchemorsel/kitchen/internal/domain/theme"
	"github.com/alchemorsel/kitchen/internal/ports/inbound"
	"github.com/alchemorsel/kitchen/internal/ports/outbound"
	"go.uber.org/zap"
)

// Session binds a document's controller to its own event loop and to the
// document's system signal subscription.
type Session struct {
	id          string
	controller  *Controller
	loop        *Loop
	unsubscribe func()
	lastSeen    atomic.Int64
	closeOnce   sync.Once
}

var _ inbound.ThemeSession = (*Session)(nil)

func newSession(
	id string,
	store outbound.PreferenceStore,
	collab Collaborators,
	events outbound.EventPublisher,
	queueSize int,
	logger *zap.Logger,
) *Session {
	s := &Session{
		id:         id,
		controller: NewController(id, store, collab, events, logger),
		loop:       NewLoop(queueSize, logger.With(zap.String("document_id", id))),
	}
	s.touch()

	// Notifications may arrive from any goroutine; they are queued behind
	// whatever the document is already doing.
	s.unsubscribe = collab.Signal.Subscribe(func(theme.SystemPreference) {
		s.touch()
		if err := s.loop.Post(func() { s.controller.SystemChanged(context.Background()) }); err != nil {
			logger.Debug("Dropped system change for closed session", zap.String("document_id", id))
		}
	})
	return s
}

// ID returns the document id
func (s *Session) ID() string {
	return s.id
}

// Load applies the preferred theme before the page is interactive
func (s *Session) Load(ctx context.Context) (theme.Effective, error) {
	var effective theme.Effective
	err := s.do(ctx, func() { effective = s.controller.Load(ctx) })
	return effective, err
}

// Ready synchronises the selector after the page has rendered it
func (s *Session) Ready(ctx context.Context) error {
	return s.do(ctx, func() { s.controller.Ready(ctx) })
}

// Select persists, applies and displays an explicit choice
func (s *Session) Select(ctx context.Context, pref theme.Preference) (theme.Effective, error) {
	var (
		effective theme.Effective
		selectErr error
	)
	if err := s.do(ctx, func() { effective, selectErr = s.controller.Select(ctx, pref) }); err != nil {
		return "", err
	}
	return effective, selectErr
}

// SystemChanged processes a system notification and waits for the result
func (s *Session) SystemChanged(ctx context.Context) (theme.SystemOutcome, error) {
	var outcome theme.SystemOutcome
	err := s.do(ctx, func() { outcome = s.controller.SystemChanged(ctx) })
	return outcome, err
}

// Reset clears the stored preference
func (s *Session) Reset(ctx context.Context) (theme.Effective, error) {
	var effective theme.Effective
	err := s.do(ctx, func() { effective = s.controller.Reset(ctx) })
	return effective, err
}

// Snapshot reads the current state on the loop
func (s *Session) Snapshot(ctx context.Context) (theme.Snapshot, error) {
	var snapshot theme.Snapshot
	err := s.do(ctx, func() { snapshot = s.controller.Snapshot(ctx) })
	return snapshot, err
}

// Sync waits until every task queued before it has run
func (s *Session) Sync(ctx context.Context) error {
	return s.do(ctx, func() {})
}

// LastSeen returns the time of the last operation or system notification
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Close cancels the signal subscription and stops the loop
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		s.loop.Close()
	})
}

func (s *Session) do(ctx context.Context, fn func()) error {
	s.touch()
	if err := s.loop.Do(ctx, fn); err != nil {
		if err == ErrLoopClosed {
			return theme.ErrSessionClosed
		}
		return err
	}
	return nil
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}
