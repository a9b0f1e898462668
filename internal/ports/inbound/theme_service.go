// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the use cases that the HTTP adapters drive
package inbound

import (
	"context"
	"time"

	"github.com/alchemorsel/kitchen/internal/domain/theme"
	"github.com/alchemorsel/kitchen/internal/ports/outbound"
)

// ThemeSession is one document's theme state machine.
// Every method runs on the document's event loop and returns once it has run.
type ThemeSession interface {
	ID() string
	Load(ctx context.Context) (theme.Effective, error)
	Ready(ctx context.Context) error
	Select(ctx context.Context, pref theme.Preference) (theme.Effective, error)
	SystemChanged(ctx context.Context) (theme.SystemOutcome, error)
	Reset(ctx context.Context) (theme.Effective, error)
	Snapshot(ctx context.Context) (theme.Snapshot, error)
	Sync(ctx context.Context) error
	LastSeen() time.Time
	Close()
}

// ThemeService manages the sessions of every open document
type ThemeService interface {
	Open(ctx context.Context, documentID string, ports outbound.DocumentPorts) (ThemeSession, error)
	Session(documentID string) (ThemeSession, error)
	OpenOrGet(ctx context.Context, documentID string, newPorts func() outbound.DocumentPorts) (ThemeSession, bool, error)
	Close(documentID string)
	ActiveSessions() int
	Shutdown(ctx context.Context) error
}
