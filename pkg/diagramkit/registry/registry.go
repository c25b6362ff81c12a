package registry

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// Registry is a thread-safe map of values indexed by an ordered key.
// Listings (Keys, Values, Range) are returned in ascending key order so
// callers such as format detection and CLI output are deterministic.
type Registry[K cmp.Ordered, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// New creates an empty registry.
func New[K cmp.Ordered, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		entries: make(map[K]V),
	}
}

// Register adds or replaces the value for key.
func (r *Registry[K, V]) Register(key K, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = value
}

// RegisterNew adds value only if key is not yet present.
// Returns an error naming the key when it is already registered.
func (r *Registry[K, V]) RegisterNew(key K, value V) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("registry: %v already registered", key)
	}
	r.entries[key] = value
	return nil
}

// Get returns the value for key and whether it exists.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// MustGet returns the value for key, panicking if it is missing.
func (r *Registry[K, V]) MustGet(key K) V {
	v, ok := r.Get(key)
	if !ok {
		panic(fmt.Sprintf("registry: key %v not found", key))
	}
	return v
}

// Has reports whether key is registered.
func (r *Registry[K, V]) Has(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// Delete removes key. Missing keys are ignored.
func (r *Registry[K, V]) Delete(key K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// Keys returns all keys in ascending order.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	keys := make([]K, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	slices.Sort(keys)
	return keys
}

// Values returns all values ordered by key.
func (r *Registry[K, V]) Values() []V {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]K, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	values := make([]V, len(keys))
	for i, k := range keys {
		values[i] = r.entries[k]
	}
	return values
}

// Len returns the number of entries.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Range calls fn for each entry in key order until fn returns false.
// It iterates a snapshot, so fn may Register or Delete freely.
func (r *Registry[K, V]) Range(fn func(K, V) bool) {
	keys := r.Keys()

	r.mu.RLock()
	snapshot := make([]V, len(keys))
	present := make([]bool, len(keys))
	for i, k := range keys {
		snapshot[i], present[i] = r.entries[k]
	}
	r.mu.RUnlock()

	for i, k := range keys {
		if !present[i] {
			continue
		}
		if !fn(k, snapshot[i]) {
			return
		}
	}
}

// Update atomically replaces the value for key with fn(old, exists).
// The new value is stored and returned.
func (r *Registry[K, V]) Update(key K, fn func(old V, exists bool) V) V {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.entries[key]
	v := fn(old, ok)
	r.entries[key] = v
	return v
}

// GetOrCreate returns the value for key, creating it with factory when
// missing. The factory runs at most once per key.
func (r *Registry[K, V]) GetOrCreate(key K, factory func() V) V {
	r.mu.RLock()
	v, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.entries[key]; ok {
		return v
	}
	v = factory()
	r.entries[key] = v
	return v
}
