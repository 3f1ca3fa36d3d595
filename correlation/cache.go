package correlation

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"lukechampine.com/blake3"
)

type cacheEntry struct {
	matrix    CorrelationMatrix
	expiresAt time.Time
}

// matrixCache memoizes correlation matrices by (sorted symbols,
// window_days) with a configurable TTL (spec §4.5 "Caching").
type matrixCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

func newMatrixCache(ttl time.Duration) *matrixCache {
	return &matrixCache{ttl: ttl, entries: make(map[string]cacheEntry)}
}

// cacheKey canonicalizes the sorted symbol set and window into a blake3
// digest, matching the price cache's key-hashing convention.
func cacheKey(symbols []string, windowDays int) string {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)
	h := blake3.New(32, nil)
	for _, s := range sorted {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	h.Write([]byte(strconv.Itoa(windowDays)))
	return string(h.Sum(nil))
}

func (c *matrixCache) get(key string) (CorrelationMatrix, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return CorrelationMatrix{}, false
	}
	return e.matrix, true
}

func (c *matrixCache) put(key string, m CorrelationMatrix) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{matrix: m, expiresAt: time.Now().Add(c.ttl)}
}
