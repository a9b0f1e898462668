package theme

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// ErrLoopClosed is returned for work submitted after Close
var ErrLoopClosed = errors.New("event loop closed")

// DefaultQueueSize bounds the number of pending tasks per loop
const DefaultQueueSize = 64

// Loop runs tasks one at a time, in submission order, on a single goroutine.
// It gives each document the cooperative event-loop semantics the controller
// expects: no task ever observes another half-done.
type Loop struct {
	tasks  chan func()
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
	logger *zap.Logger
}

// NewLoop starts a loop with the given queue size
func NewLoop(queueSize int, logger *zap.Logger) *Loop {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loop{
		tasks:  make(chan func(), queueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l
}

// Do enqueues fn and waits for it to finish.
// If ctx ends first, Do returns ctx.Err() and fn still runs when its turn comes.
// Do must not be called from a task running on the same loop.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	if err := l.enqueue(ctx, task); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post enqueues fn without waiting for it to run
func (l *Loop) Post(fn func()) error {
	return l.enqueue(context.Background(), fn)
}

// Close stops accepting tasks, runs what is already queued and waits for the
// loop goroutine to exit. It is safe to call more than once.
func (l *Loop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.tasks)
	}
	l.mu.Unlock()
	<-l.done
}

func (l *Loop) enqueue(ctx context.Context, task func()) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrLoopClosed
	}

	select {
	case l.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) run() {
	defer close(l.done)
	for task := range l.tasks {
		l.execute(task)
	}
}

func (l *Loop) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Panic recovered in theme event loop",
				zap.Any("error", r),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()
	task()
}
