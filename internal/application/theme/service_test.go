package theme

import (
	"context"
	"testing"
	"time"

	"github.com/alchemorsel/kitchen/internal/domain/theme"
	"github.com/alchemorsel/kitchen/internal/ports/outbound"
	"github.com/alchemorsel/kitchen/internal/ports/outbound/outboundtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testDocument struct {
	document *outboundtest.Document
	signal   *outboundtest.Signal
}

func newTestDocument(system theme.SystemPreference) testDocument {
	return testDocument{
		document: outboundtest.NewDocument(),
		signal:   outboundtest.NewSignal(system),
	}
}

func (d testDocument) ports() outbound.DocumentPorts {
	return outbound.DocumentPorts{
		Presentation: d.document,
		Selectors:    d.document,
		Signal:       d.signal,
	}
}

func newTestService(t *testing.T, store outbound.PreferenceStore, cfg ServiceConfig) *Service {
	t.Helper()
	svc := NewService(store, &outboundtest.Events{}, cfg, zap.NewNop())
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc
}

func TestService_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := outboundtest.NewStore()
	svc := newTestService(t, store, ServiceConfig{KeyPrefix: "kitchen"})
	doc := newTestDocument(theme.SystemLight)

	_, err := svc.Session("doc-1")
	assert.ErrorIs(t, err, theme.ErrSessionNotFound)

	session, err := svc.Open(ctx, "doc-1", doc.ports())
	require.NoError(t, err)
	assert.Equal(t, "doc-1", session.ID())
	assert.Equal(t, 1, svc.ActiveSessions())
	assert.Equal(t, 1, doc.signal.Subscribers())

	effective, err := session.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, theme.EffectiveLight, effective)
	require.NoError(t, session.Ready(ctx))

	_, err = session.Select(ctx, theme.PreferenceDark)
	require.NoError(t, err)

	raw, ok := store.Value("kitchen:doc-1:theme")
	assert.True(t, ok, "keys are scoped by prefix and document")
	assert.Equal(t, "dark", raw)

	svc.Close("doc-1")
	assert.Equal(t, 0, svc.ActiveSessions())
	assert.Equal(t, 0, doc.signal.Subscribers())

	_, err = session.Load(ctx)
	assert.ErrorIs(t, err, theme.ErrSessionClosed)
}

func TestService_OpenReplacesExistingSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, outboundtest.NewStore(), ServiceConfig{})
	first := newTestDocument(theme.SystemDark)
	second := newTestDocument(theme.SystemDark)

	old, err := svc.Open(ctx, "doc-1", first.ports())
	require.NoError(t, err)
	fresh, err := svc.Open(ctx, "doc-1", second.ports())
	require.NoError(t, err)

	assert.Equal(t, 1, svc.ActiveSessions())
	assert.Equal(t, 0, first.signal.Subscribers())
	assert.Equal(t, 1, second.signal.Subscribers())

	assert.ErrorIs(t, old.Sync(ctx), theme.ErrSessionClosed)
	assert.NoError(t, fresh.Sync(ctx))
}

func TestService_OpenOrGet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, outboundtest.NewStore(), ServiceConfig{})
	doc := newTestDocument(theme.SystemUnknown)

	calls := 0
	factory := func() outbound.DocumentPorts {
		calls++
		return doc.ports()
	}

	first, created, err := svc.OpenOrGet(ctx, "doc-1", factory)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := svc.OpenOrGet(ctx, "doc-1", factory)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestService_StoredPreferenceIsSharedAcrossReopen(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, outboundtest.NewStore(), ServiceConfig{})

	session, err := svc.Open(ctx, "doc-1", newTestDocument(theme.SystemLight).ports())
	require.NoError(t, err)
	_, err = session.Select(ctx, theme.PreferenceDark)
	require.NoError(t, err)

	reopened := newTestDocument(theme.SystemLight)
	session, err = svc.Open(ctx, "doc-1", reopened.ports())
	require.NoError(t, err)

	effective, err := session.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, theme.EffectiveDark, effective)
	assert.Equal(t, theme.EffectiveDark, reopened.document.ThemeAttribute())
}

func TestSession_SystemSignalIsProcessedOnTheLoop(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, outboundtest.NewStore(), ServiceConfig{})
	doc := newTestDocument(theme.SystemLight)

	session, err := svc.Open(ctx, "doc-1", doc.ports())
	require.NoError(t, err)
	_, err = session.Load(ctx)
	require.NoError(t, err)

	t.Run("unset preference follows the signal", func(t *testing.T) {
		doc.signal.Set(theme.SystemDark)
		require.NoError(t, session.Sync(ctx))
		assert.Equal(t, theme.EffectiveDark, doc.document.ThemeAttribute())
	})

	t.Run("explicit preference is kept", func(t *testing.T) {
		_, err := session.Select(ctx, theme.PreferenceLight)
		require.NoError(t, err)

		doc.signal.Set(theme.SystemDark)
		require.NoError(t, session.Sync(ctx))
		assert.Equal(t, theme.EffectiveLight, doc.document.ThemeAttribute())

		snapshot, err := session.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, theme.PreferenceLight, snapshot.Stored)
		assert.Equal(t, theme.SystemDark, snapshot.System)
	})

	t.Run("reset follows the signal again", func(t *testing.T) {
		effective, err := session.Reset(ctx)
		require.NoError(t, err)
		assert.Equal(t, theme.EffectiveDark, effective)

		outcome, err := session.SystemChanged(ctx)
		require.NoError(t, err)
		assert.Equal(t, theme.SystemOutcomeApplied, outcome)
	})
}

func TestSession_SystemNotificationCountsAsActivity(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, outboundtest.NewStore(), ServiceConfig{SessionTTL: time.Minute})
	doc := newTestDocument(theme.SystemLight)

	session, err := svc.Open(ctx, "doc-1", doc.ports())
	require.NoError(t, err)
	opened := session.LastSeen()

	time.Sleep(5 * time.Millisecond)
	doc.signal.Set(theme.SystemDark)
	assert.True(t, session.LastSeen().After(opened))

	svc.sweep(opened.Add(time.Minute + time.Millisecond))
	assert.Equal(t, 1, svc.ActiveSessions())
}

func TestService_SweepRemovesIdleSessions(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, outboundtest.NewStore(), ServiceConfig{SessionTTL: time.Minute})

	idle, err := svc.Open(ctx, "idle", newTestDocument(theme.SystemUnknown).ports())
	require.NoError(t, err)
	_, err = svc.Open(ctx, "busy", newTestDocument(theme.SystemUnknown).ports())
	require.NoError(t, err)

	svc.sweep(idle.LastSeen().Add(30 * time.Second))
	assert.Equal(t, 2, svc.ActiveSessions())

	busy, err := svc.Session("busy")
	require.NoError(t, err)
	svc.sweep(busy.LastSeen().Add(2 * time.Minute))
	assert.Equal(t, 0, svc.ActiveSessions())
	assert.ErrorIs(t, idle.Sync(ctx), theme.ErrSessionClosed)
}

func TestService_Shutdown(t *testing.T) {
	ctx := context.Background()
	svc := NewService(outboundtest.NewStore(), nil, ServiceConfig{SessionTTL: time.Hour, CleanupInterval: time.Millisecond}, nil)

	session, err := svc.Open(ctx, "doc-1", newTestDocument(theme.SystemUnknown).ports())
	require.NoError(t, err)

	require.NoError(t, svc.Shutdown(ctx))
	assert.Equal(t, 0, svc.ActiveSessions())
	assert.ErrorIs(t, session.Sync(ctx), theme.ErrSessionClosed)
	assert.NoError(t, svc.Shutdown(ctx))
}

func TestScopedStore(t *testing.T) {
	ctx := context.Background()
	inner := outboundtest.NewStore()

	scoped := newScopedStore(inner, "kitchen", "doc-9")
	require.NoError(t, scoped.Set(ctx, theme.StorageKey, "auto"))

	value, ok, err := scoped.Get(ctx, theme.StorageKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "auto", value)
	assert.Equal(t, []string{"kitchen:doc-9:theme"}, inner.Keys())

	require.NoError(t, scoped.Delete(ctx, theme.StorageKey))
	assert.Empty(t, inner.Keys())

	bare := newScopedStore(inner, "", "")
	require.NoError(t, bare.Set(ctx, theme.StorageKey, "dark"))
	assert.Equal(t, []string{"theme"}, inner.Keys())
}
