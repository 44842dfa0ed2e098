package switchboard

import (
	"maps"
	"slices"
	"strings"
	"sync"
)

// Metadata is a per-request key-value store that middleware and actions
// use to pass side-channel data (an authenticated profile, a decoded
// body) without extending the request type. Keys are trimmed and compared
// case-insensitively.
//
// Metadata is safe for concurrent use: the records of a batch event share
// the store of their parent request.
type Metadata struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewMetadata returns an empty store.
func NewMetadata() *Metadata {
	return &Metadata{data: make(map[string]any)}
}

func formatKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// Set stores value under key, replacing any previous value.
func (m *Metadata) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[formatKey(key)] = value
}

// SetOrMerge stores value under key. When both the existing and the new
// value are maps, the new entries are merged over the existing ones
// (shallow merge); otherwise the value is replaced.
func (m *Metadata) SetOrMerge(key string, value map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := formatKey(key)
	if existing, ok := m.data[k].(map[string]any); ok {
		merged := maps.Clone(existing)
		maps.Copy(merged, value)
		m.data[k] = merged
		return
	}
	m.data[k] = value
}

// Get returns the value stored under key.
func (m *Metadata) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[formatKey(key)]
	return v, ok
}

// Exists reports whether key has a value.
func (m *Metadata) Exists(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Remove deletes key and reports whether it was present.
func (m *Metadata) Remove(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := formatKey(key)
	_, ok := m.data[k]
	delete(m.data, k)
	return ok
}

// Keys returns the normalized keys in sorted order.
func (m *Metadata) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.data))
}

// Key is a typed handle onto a Metadata entry.
//
//	var ProfileKey = switchboard.Key[Profile]("profile")
//
//	ProfileKey.Set(req.Metadata(), Profile{Name: "Steve"})
//	p, ok := ProfileKey.Get(req.Metadata())
type Key[T any] string

// Set stores v under k.
func (k Key[T]) Set(m *Metadata, v T) {
	m.Set(string(k), v)
}

// Get returns the value under k when it exists and has type T.
func (k Key[T]) Get(m *Metadata) (T, bool) {
	var zero T
	v, ok := m.Get(string(k))
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Exists reports whether k has a value of any type.
func (k Key[T]) Exists(m *Metadata) bool {
	return m.Exists(string(k))
}
