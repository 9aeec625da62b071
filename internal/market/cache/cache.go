// Package cache is the single process-wide TTL response store shared across
// all backends and request kinds. Entries persist until their TTL passes or
// they are explicitly evicted; there is no capacity bound and no LRU.
//
// Concurrent fetches for the same key are deliberately not deduplicated:
// two racing cache misses may both hit the network and the last Set wins.
package cache

import (
	"strings"
	"sync"
	"time"
)

type entry struct {
	expiresAt time.Time
	value     any
}

// Store is safe for concurrent use. The zero value is not usable; call New.
type Store struct {
	mu    sync.RWMutex
	items map[string]entry

	now func() time.Time // test seam
}

func New() *Store {
	return &Store{items: make(map[string]entry), now: time.Now}
}

// Get returns the value for key if present and unexpired. Expired entries
// are lazily dropped on read rather than proactively swept.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.items[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key until ttl elapses. A non-positive ttl is a
// no-op; callers disable caching by configuring a zero TTL.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.items[key] = entry{expiresAt: s.now().Add(ttl), value: value}
	s.mu.Unlock()
}

// Evict removes the exact key.
func (s *Store) Evict(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// EvictPrefix removes every entry whose key starts with prefix.
func (s *Store) EvictPrefix(prefix string) {
	s.mu.Lock()
	for k := range s.items {
		if strings.HasPrefix(k, prefix) {
			delete(s.items, k)
		}
	}
	s.mu.Unlock()
}

// EvictAll clears the store.
func (s *Store) EvictAll() {
	s.mu.Lock()
	s.items = make(map[string]entry)
	s.mu.Unlock()
}

// EvictExpired drops every expired entry; for periodic housekeeping.
func (s *Store) EvictExpired() {
	now := s.now()
	s.mu.Lock()
	for k, e := range s.items {
		if !now.Before(e.expiresAt) {
			delete(s.items, k)
		}
	}
	s.mu.Unlock()
}

// Len reports the number of stored entries, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Lookup is the typed read used by callers that know what they stored under
// a key. A present entry of the wrong type reads as absent rather than
// panicking on a downcast.
func Lookup[T any](s *Store, key string) (T, bool) {
	v, ok := s.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, false
	}
	return typed, true
}
