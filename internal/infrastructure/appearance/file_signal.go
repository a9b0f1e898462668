// Package appearance reads the host's colour-scheme preference from a file,
// for kiosk displays where no browser reports one.
package appearance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/alchemorsel/kitchen/internal/domain/theme"
	"github.com/alchemorsel/kitchen/internal/ports/outbound"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses the burst of events an editor save produces
const DefaultDebounce = 100 * time.Millisecond

// FileSignal reports the system preference written in a file such as
// /run/kitchen/appearance containing "dark" or "light". A missing or
// unreadable file reports unknown.
type FileSignal struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	debounce time.Duration

	mu          sync.Mutex
	current     theme.SystemPreference
	subscribers map[int]func(theme.SystemPreference)
	nextID      int
	timer       *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

var _ outbound.SystemSignal = (*FileSignal)(nil)

// NewFileSignal reads path once and starts watching its directory
func NewFileSignal(path string, debounce time.Duration, logger *zap.Logger) (*FileSignal, error) {
	if path == "" {
		return nil, errors.New("appearance file path is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory: editors and config managers replace the file rather than write it
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &FileSignal{
		path:        filepath.Clean(path),
		watcher:     watcher,
		logger:      logger.With(zap.String("component", "appearance_file"), zap.String("path", path)),
		debounce:    debounce,
		subscribers: make(map[int]func(theme.SystemPreference)),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	s.current = s.read()

	go s.watchLoop()

	s.logger.Info("Watching appearance file", zap.String("system", s.current.String()))
	return s, nil
}

// Current returns the last preference read from the file
func (s *FileSignal) Current() theme.SystemPreference {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe registers fn for changes; the returned func cancels it
func (s *FileSignal) Subscribe(fn func(theme.SystemPreference)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
		})
	}
}

// Close stops watching
func (s *FileSignal) Close() error {
	s.cancel()
	err := s.watcher.Close()
	<-s.done

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	return err
}

func (s *FileSignal) watchLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			s.schedule()

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("Appearance watcher error", zap.Error(err))
		}
	}
}

func (s *FileSignal) schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.reload)
}

func (s *FileSignal) reload() {
	if s.ctx.Err() != nil {
		return
	}
	next := s.read()

	s.mu.Lock()
	if next == s.current {
		s.mu.Unlock()
		return
	}
	s.current = next
	subscribers := make([]func(theme.SystemPreference), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subscribers = append(subscribers, fn)
	}
	s.mu.Unlock()

	s.logger.Info("System appearance changed", zap.String("system", next.String()))

	// callbacks run outside the lock; they may call Current
	for _, fn := range subscribers {
		fn(next)
	}
}

func (s *FileSignal) read() theme.SystemPreference {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to read appearance file", zap.Error(err))
		}
		return theme.SystemUnknown
	}
	return theme.ParseSystemPreference(string(data))
}
