// Package querycache is a keyed, time-boxed cache for read queries. List
// queries are keyed by resource root plus serialized filter parameters,
// detail queries by resource root plus id; invalidating a root drops every
// entry under it so subsequent reads refetch.
package querycache

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long a read stays fresh when the caller does not say.
const DefaultTTL = 30 * time.Second

const keySeparator = "/"

// ListKey builds the cache key for a list query. Params are serialized in
// sorted order so equivalent filters share an entry.
func ListKey(resource string, params map[string]string) string {
	if len(params) == 0 {
		return resource
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(resource)
	for _, name := range names {
		b.WriteString(keySeparator)
		b.WriteString(name)
		b.WriteString("=")
		b.WriteString(params[name])
	}
	return b.String()
}

// DetailKey builds the cache key for a single-record query.
func DetailKey(resource, id string) string {
	return resource + keySeparator + id
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is an in-process read cache. Concurrent sets for the same key are
// last-write-wins.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
	nowFunc    func() time.Time
}

type Option func(*Cache)

// WithNowFunc sets the now time function (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(c *Cache) {
		c.nowFunc = now
	}
}

// WithDefaultTTL overrides DefaultTTL for entries stored with a zero ttl.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

func New(options ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]entry),
		defaultTTL: DefaultTTL,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Get returns the cached value for key if present and fresh.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.nowFunc().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl. A zero ttl uses the cache default.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.nowFunc().Add(ttl)}
	c.mu.Unlock()
}

// Invalidate drops the root key and every list/detail entry under it.
func (c *Cache) Invalidate(root string) {
	prefix := root + keySeparator
	c.mu.Lock()
	for key := range c.entries {
		if key == root || strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// Cleanup removes expired entries. Call it from a periodic sweep.
func (c *Cache) Cleanup() {
	now := c.nowFunc()
	c.mu.Lock()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// StartSweep runs Cleanup every interval until stop is closed.
func (c *Cache) StartSweep(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}

// Fetch returns the cached value for key, or runs fetch and caches its
// result. A superseding Set for the same key wins over a slower fetch only
// by timestamp ordering; the cache takes no lock across the fetch.
func Fetch[T any](c *Cache, key string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	if cached, ok := c.Get(key); ok {
		if v, ok := cached.(T); ok {
			return v, nil
		}
	}
	v, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(key, v, ttl)
	return v, nil
}
