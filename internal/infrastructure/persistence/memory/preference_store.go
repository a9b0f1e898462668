// Package memory provides an in-memory preference store
package memory

import (
	"context"
	"sync"

	"github.com/alchemorsel/kitchen/internal/ports/outbound"
)

// PreferenceStore keeps preferences in a map for the lifetime of the process
type PreferenceStore struct {
	data  map[string]string
	mutex sync.RWMutex
}

var _ outbound.PreferenceStore = (*PreferenceStore)(nil)

// NewPreferenceStore creates an empty in-memory preference store
func NewPreferenceStore() *PreferenceStore {
	return &PreferenceStore{
		data: make(map[string]string),
	}
}

// Get retrieves a value
func (r *PreferenceStore) Get(ctx context.Context, key string) (string, bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	value, exists := r.data[key]
	return value, exists, nil
}

// Set stores a value, replacing any previous one
func (r *PreferenceStore) Set(ctx context.Context, key, value string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.data[key] = value
	return nil
}

// Delete removes a key
func (r *PreferenceStore) Delete(ctx context.Context, key string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.data, key)
	return nil
}

// Len returns the number of stored keys
func (r *PreferenceStore) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.data)
}

// Clear removes every key
func (r *PreferenceStore) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.data = make(map[string]string)
}
