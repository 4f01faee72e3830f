package store

import (
	"sync"
	"time"
)

// Map is the default in-process Store. Values are kept as-is, so a hit
// returns exactly the value the function produced.
type Map[V any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[V]
}

var _ Store[struct{}] = (*Map[struct{}])(nil)

// NewMap returns an empty in-process store.
func NewMap[V any]() *Map[V] {
	return &Map[V]{entries: make(map[string]Entry[V])}
}

func (m *Map[V]) Get(key string) (Entry[V], bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	return e, ok, nil
}

func (m *Map[V]) Put(key string, e Entry[V]) error {
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Map[V]) ClearIfAny(pred func(storedAt time.Time) bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if pred(e.StoredAt) {
			n := len(m.entries)
			m.entries = make(map[string]Entry[V])
			return n, nil
		}
	}
	return 0, nil
}

func (m *Map[V]) Len() int {
	m.mu.RLock()
	n := len(m.entries)
	m.mu.RUnlock()
	return n
}

func (m *Map[V]) Close() error {
	m.mu.Lock()
	m.entries = make(map[string]Entry[V])
	m.mu.Unlock()
	return nil
}
