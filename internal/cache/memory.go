package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

const sweepInterval = 30 * time.Second

// MemoryCache is the in-process fallback when Redis is not configured.
// Query result sets are small JSON blobs, so a plain map with a sweeper
// goroutine is enough.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	stop    chan struct{}
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// NewMemoryCache creates a new in-memory cache and starts its sweeper.
func NewMemoryCache() *MemoryCache {
	mc := &MemoryCache{
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	go mc.sweep()
	return mc
}

// Get retrieves a value from cache. Expired entries are evicted on read.
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if e.expired(time.Now()) {
		delete(m.entries, key)
		return nil, ErrCacheMiss
	}
	return e.value, nil
}

// Set stores a value in cache
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Delete removes a value from cache
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Exists checks if a key exists and has not expired
func (m *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.expired(time.Now()) {
		return false, nil
	}
	return true, nil
}

// Clear removes all keys matching pattern. Only a trailing * wildcard is
// supported, which covers the query key layout.
func (m *MemoryCache) Clear(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.entries {
		if matchPattern(key, pattern) {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *MemoryCache) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for key, e := range m.entries {
				if e.expired(now) {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		case <-m.stop:
			return
		}
	}
}

// Close stops the sweeper goroutine
func (m *MemoryCache) Close() error {
	close(m.stop)
	return nil
}

func matchPattern(s, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(s, prefix)
	}
	return s == pattern
}
