// Package cache is a small in-memory TTL cache for computed responses,
// with hit/miss accounting and request coalescing.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	value     any
	createdAt time.Time
}

// Cache stores arbitrary values under string keys for a fixed TTL.
// Expired entries are dropped lazily on read.
type Cache struct {
	mu     sync.Mutex
	items  map[string]entry
	ttl    time.Duration
	hits   uint64
	misses uint64
	group  singleflight.Group
}

// Stats is a point-in-time snapshot of cache accounting.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Size    int     `json:"size"`
	TTLSecs float64 `json:"ttl_seconds"`
}

func New(ttl time.Duration) *Cache {
	return &Cache{items: map[string]entry{}, ttl: ttl}
}

// Key derives a stable cache key from a label and any JSON-marshalable
// arguments.
func Key(label string, args ...any) string {
	payload, err := json.Marshal(args)
	if err != nil {
		payload = []byte(fmt.Sprintf("%v", args))
	}
	sum := md5.Sum(append([]byte(label+"|"), payload...))
	return label + ":" + hex.EncodeToString(sum[:])
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if ok && time.Since(e.createdAt) < c.ttl {
		c.hits++
		return e.value, true
	}
	if ok {
		delete(c.items, key)
	}
	c.misses++
	return nil, false
}

func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.items[key] = entry{value: value, createdAt: time.Now()}
	c.mu.Unlock()
}

// Do returns the cached value for key, or computes it via fn. Concurrent
// callers for the same missing key share a single fn invocation. Errors
// are returned uncached.
func (c *Cache) Do(key string, fn func() (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		// Losers of the singleflight race find the winner's value here
		// without skewing the hit/miss counters a second time.
		if v, ok := c.peek(key); ok {
			return v, nil
		}
		v, err := fn()
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})
	return v, err
}

func (c *Cache) peek(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if ok && time.Since(e.createdAt) < c.ttl {
		return e.value, true
	}
	return nil, false
}

// Clear drops every entry but keeps the hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.items = map[string]entry{}
	c.mu.Unlock()
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: rate,
		Size:    len(c.items),
		TTLSecs: c.ttl.Seconds(),
	}
}
