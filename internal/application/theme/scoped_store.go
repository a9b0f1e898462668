package theme

import (
	"context"
	"strings"

	"github.com/alchemorsel/kitchen/internal/ports/outbound"
)

// scopedStore gives each document its own key space inside a shared store
type scopedStore struct {
	inner  outbound.PreferenceStore
	prefix string
}

func newScopedStore(inner outbound.PreferenceStore, keyPrefix, scope string) *scopedStore {
	parts := make([]string, 0, 2)
	if keyPrefix != "" {
		parts = append(parts, keyPrefix)
	}
	if scope != "" {
		parts = append(parts, scope)
	}
	prefix := strings.Join(parts, ":")
	if prefix != "" {
		prefix += ":"
	}
	return &scopedStore{inner: inner, prefix: prefix}
}

func (s *scopedStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *scopedStore) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *scopedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}
