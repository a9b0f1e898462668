package fallback

import (
	"context"
	"testing"

	"github.com/alchemorsel/kitchen/internal/ports/outbound/outboundtest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore() (*Store, *outboundtest.Store, *prometheus.CounterVec) {
	inner := outboundtest.NewStore()
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_store_failures_total",
	}, []string{"op"})
	return New(inner, failures, zap.NewNop()), inner, failures
}

func TestStore_PassesThroughWhenHealthy(t *testing.T) {
	ctx := context.Background()
	store, inner, failures := newTestStore()

	require.NoError(t, store.Set(ctx, "theme", "dark"))
	raw, ok := inner.Value("theme")
	assert.True(t, ok)
	assert.Equal(t, "dark", raw)

	value, found, err := store.Get(ctx, "theme")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "dark", value)

	require.NoError(t, store.Delete(ctx, "theme"))
	_, found, _ = store.Get(ctx, "theme")
	assert.False(t, found)

	assert.Equal(t, 0, store.Pending())
	assert.Equal(t, float64(0), testutil.ToFloat64(failures.WithLabelValues("set")))
}

func TestStore_WriteFailureIsKeptLocally(t *testing.T) {
	ctx := context.Background()
	store, inner, failures := newTestStore()

	inner.FailSet = true
	assert.NoError(t, store.Set(ctx, "theme", "light"))
	assert.Equal(t, 1, store.Pending())
	assert.Equal(t, float64(1), testutil.ToFloat64(failures.WithLabelValues("set")))

	value, found, err := store.Get(ctx, "theme")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "light", value, "local write shadows the backing store")

	_, ok := inner.Value("theme")
	assert.False(t, ok)

	t.Run("flush writes through once the store recovers", func(t *testing.T) {
		assert.Equal(t, 0, store.Flush(ctx))

		inner.FailSet = false
		assert.Equal(t, 1, store.Flush(ctx))
		assert.Equal(t, 0, store.Pending())

		raw, ok := inner.Value("theme")
		assert.True(t, ok)
		assert.Equal(t, "light", raw)
	})
}

func TestStore_ReadFailureServesLastKnownValue(t *testing.T) {
	ctx := context.Background()
	store, inner, failures := newTestStore()

	require.NoError(t, store.Set(ctx, "theme", "auto"))
	inner.FailGet = true

	value, found, err := store.Get(ctx, "theme")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "auto", value)

	value, found, err = store.Get(ctx, "other")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, value)

	assert.Equal(t, float64(2), testutil.ToFloat64(failures.WithLabelValues("get")))
}

func TestStore_DeleteFailureIsKeptLocally(t *testing.T) {
	ctx := context.Background()
	store, inner, _ := newTestStore()

	require.NoError(t, store.Set(ctx, "theme", "dark"))
	inner.FailSet = true
	require.NoError(t, store.Delete(ctx, "theme"))

	_, found, err := store.Get(ctx, "theme")
	require.NoError(t, err)
	assert.False(t, found)

	inner.FailSet = false
	assert.Equal(t, 1, store.Flush(ctx))
	_, ok := inner.Value("theme")
	assert.False(t, ok)
}

func TestStore_NilMetrics(t *testing.T) {
	inner := outboundtest.NewStore()
	inner.FailSet = true
	store := New(inner, nil, nil)

	assert.NotPanics(t, func() {
		_ = store.Set(context.Background(), "theme", "dark")
	})
}
