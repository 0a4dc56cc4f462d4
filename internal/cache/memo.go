// Package cache holds the in-process TTL memo and the read-through JSON file
// cache built on it.
package cache

import (
	"sync"
	"time"

	"github.com/bnema/healthline/internal/ports"
)

type memoEntry[V any] struct {
	value    V
	storedAt time.Time
}

// Memo is a TTL cache owned by whoever constructs it. A non-positive TTL
// disables it.
type Memo[K comparable, V any] struct {
	ttl   time.Duration
	clock ports.Clock

	mu      sync.Mutex
	entries map[K]memoEntry[V]
}

func NewMemo[K comparable, V any](ttl time.Duration, clock ports.Clock) *Memo[K, V] {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Memo[K, V]{
		ttl:     ttl,
		clock:   clock,
		entries: map[K]memoEntry[V]{},
	}
}

func (m *Memo[K, V]) Get(key K) (V, bool) {
	var zero V
	if m.ttl <= 0 {
		return zero, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return zero, false
	}
	if m.clock.Now().Sub(entry.storedAt) >= m.ttl {
		delete(m.entries, key)
		return zero, false
	}

	return entry.value, true
}

func (m *Memo[K, V]) Put(key K, value V) {
	if m.ttl <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoEntry[V]{value: value, storedAt: m.clock.Now()}
}

func (m *Memo[K, V]) Invalidate(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
}

func (m *Memo[K, V]) InvalidateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = map[K]memoEntry[V]{}
}
