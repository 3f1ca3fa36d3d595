package price

import (
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"lukechampine.com/blake3"

	"github.com/nhbchain/riskengine/observability/metrics"
)

const cacheStripes = 32

// cacheEntry is a copy-on-read shared handle; readers never mutate it.
type cacheEntry struct {
	price     AggregatedPrice
	expiresAt time.Time
}

// Cache is a time-bounded, single-flight price memoization layer keyed
// by (token, aggregation method, oracle-set hash). It is implemented as
// a striped map with per-stripe locking, so concurrent lookups contend
// only when their keys hash to the same stripe; entries are copy-on-read
// shared handles.
type Cache struct {
	ttl      time.Duration
	stripes  [cacheStripes]map[string]cacheEntry
	mus      [cacheStripes]sync.RWMutex
	flight   singleflight.Group
}

// NewCache constructs a cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	c := &Cache{ttl: ttl}
	for i := range c.stripes {
		c.stripes[i] = make(map[string]cacheEntry)
	}
	return c
}

func (c *Cache) stripe(key string) (*sync.RWMutex, map[string]cacheEntry) {
	h := blake3.Sum256([]byte(key))
	idx := int(h[0]) % cacheStripes
	return &c.mus[idx], c.stripes[idx]
}

// Key builds the cache key for a token, aggregation method, and the set
// of currently enabled oracle ids, so a change in the enabled oracle set
// invalidates stale entries automatically instead of serving a price
// computed from a different source mix.
func Key(token Token, method AggregationMethod, oracleIDs []string) string {
	sorted := append([]string(nil), oracleIDs...)
	sort.Strings(sorted)
	digest := blake3.New(32, nil)
	digest.Write([]byte(token.String()))
	digest.Write([]byte("|"))
	digest.Write([]byte(method))
	for _, id := range sorted {
		digest.Write([]byte("|"))
		digest.Write([]byte(id))
	}
	return hex.EncodeToString(digest.Sum(nil))
}

// Get returns the cached price for key if present and not expired.
func (c *Cache) Get(key string) (AggregatedPrice, bool) {
	mu, stripe := c.stripe(key)
	mu.RLock()
	defer mu.RUnlock()
	entry, ok := stripe[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return AggregatedPrice{}, false
	}
	return entry.price, true
}

// GetStale returns the cached price for key regardless of expiry,
// used by the UseLastKnownPrice fallback strategy.
func (c *Cache) GetStale(key string) (AggregatedPrice, time.Time, bool) {
	mu, stripe := c.stripe(key)
	mu.RLock()
	defer mu.RUnlock()
	entry, ok := stripe[key]
	if !ok {
		return AggregatedPrice{}, time.Time{}, false
	}
	return entry.price, entry.expiresAt.Add(-c.ttl), true
}

// Put stores a freshly computed price under key.
func (c *Cache) Put(key string, p AggregatedPrice) {
	mu, stripe := c.stripe(key)
	mu.Lock()
	defer mu.Unlock()
	stripe[key] = cacheEntry{price: p, expiresAt: time.Now().Add(c.ttl)}
}

// Once collapses concurrent computations for the same key into a single
// in-flight call, so a burst of callers for the same token never
// triggers duplicate oracle fetches.
func (c *Cache) Once(key string, compute func() (AggregatedPrice, error)) (AggregatedPrice, error) {
	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		if cached, ok := c.Get(key); ok {
			metrics.Price().IncCacheHit()
			return cached, nil
		}
		metrics.Price().IncCacheMiss()
		p, err := compute()
		if err != nil {
			return AggregatedPrice{}, err
		}
		c.Put(key, p)
		return p, nil
	})
	if err != nil {
		return AggregatedPrice{}, err
	}
	price, ok := v.(AggregatedPrice)
	if !ok {
		return AggregatedPrice{}, fmt.Errorf("price cache: unexpected value type")
	}
	return price, nil
}
