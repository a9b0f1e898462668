// Package fallback keeps preference storage best-effort: when the backing
// store fails, reads and writes are served from process memory instead.
package fallback

import (
	"context"
	"sync"
	"time"

	"github.com/alchemorsel/kitchen/internal/ports/outbound"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type entry struct {
	value   string
	present bool
	// dirty entries were written locally while the backing store was failing
	dirty bool
}

// Store wraps a PreferenceStore and never returns an error.
// Values written during an outage shadow the backing store until Flush
// manages to write them through.
type Store struct {
	inner    outbound.PreferenceStore
	logger   *zap.Logger
	failures *prometheus.CounterVec

	mu    sync.Mutex
	local map[string]entry
}

var _ outbound.PreferenceStore = (*Store)(nil)

// New wraps inner. failures may be nil; when set it is incremented with an
// "op" label of get, set or delete.
func New(inner outbound.PreferenceStore, failures *prometheus.CounterVec, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		inner:    inner,
		logger:   logger.With(zap.String("component", "fallback_store")),
		failures: failures,
		local:    make(map[string]entry),
	}
}

// Get prefers locally written values, then the backing store, then the last value seen
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	cached, ok := s.local[key]
	s.mu.Unlock()
	if ok && cached.dirty {
		return cached.value, cached.present, nil
	}

	value, found, err := s.inner.Get(ctx, key)
	if err != nil {
		s.fail("get", key, err)
		if ok {
			return cached.value, cached.present, nil
		}
		return "", false, nil
	}

	s.mu.Lock()
	if current, ok := s.local[key]; !ok || !current.dirty {
		s.local[key] = entry{value: value, present: found}
	}
	s.mu.Unlock()
	return value, found, nil
}

// Set writes through, keeping the value locally if the backing store refuses it
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.inner.Set(ctx, key, value); err != nil {
		s.fail("set", key, err)
		s.remember(key, entry{value: value, present: true, dirty: true})
		return nil
	}
	s.remember(key, entry{value: value, present: true})
	return nil
}

// Delete removes key, recording the removal locally if the backing store refuses it
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.inner.Delete(ctx, key); err != nil {
		s.fail("delete", key, err)
		s.remember(key, entry{dirty: true})
		return nil
	}
	s.remember(key, entry{})
	return nil
}

// Pending returns the number of local changes not yet written through
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.local {
		if e.dirty {
			n++
		}
	}
	return n
}

// Flush retries every pending change and returns how many were written through
func (s *Store) Flush(ctx context.Context) int {
	s.mu.Lock()
	pending := make(map[string]entry)
	for key, e := range s.local {
		if e.dirty {
			pending[key] = e
		}
	}
	s.mu.Unlock()

	flushed := 0
	for key, e := range pending {
		var err error
		if e.present {
			err = s.inner.Set(ctx, key, e.value)
		} else {
			err = s.inner.Delete(ctx, key)
		}
		if err != nil {
			s.logger.Debug("Pending preference still not writable", zap.String("key", key), zap.Error(err))
			continue
		}

		s.mu.Lock()
		// a newer local write may have replaced the entry meanwhile
		if current, ok := s.local[key]; ok && current == e {
			current.dirty = false
			s.local[key] = current
		}
		s.mu.Unlock()
		flushed++
	}

	if flushed > 0 {
		s.logger.Info("Flushed pending theme preferences", zap.Int("count", flushed))
	}
	return flushed
}

// Run flushes pending changes every interval until ctx is done
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Pending() > 0 {
				s.Flush(ctx)
			}
		}
	}
}

func (s *Store) remember(key string, e entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[key] = e
}

func (s *Store) fail(op, key string, err error) {
	s.logger.Warn("Preference store unavailable, using local copy",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
	if s.failures != nil {
		s.failures.WithLabelValues(op).Inc()
	}
}
