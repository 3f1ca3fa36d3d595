package stress

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"lukechampine.com/blake3"
)

type resultCacheEntry struct {
	result    SimulationResult
	expiresAt time.Time
}

// resultCache memoizes simulation results by (scenario_id,
// hashed_positions, config_hash), per spec §4.6 "Cache".
type resultCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]resultCacheEntry
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{ttl: ttl, entries: make(map[string]resultCacheEntry)}
}

func resultCacheKey(scenarioID string, positionIDs []uuid.UUID, configHash string) string {
	ids := make([]string, len(positionIDs))
	for i, id := range positionIDs {
		ids[i] = id.String()
	}
	sort.Strings(ids)

	h := blake3.New(32, nil)
	h.Write([]byte(scenarioID))
	h.Write([]byte{0})
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	h.Write([]byte(configHash))
	return string(h.Sum(nil))
}

func configHash(iterations, horizonDays int) string {
	return strconv.Itoa(iterations) + ":" + strconv.Itoa(horizonDays)
}

func (c *resultCache) get(key string) (SimulationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return SimulationResult{}, false
	}
	return e.result, true
}

func (c *resultCache) put(key string, r SimulationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = resultCacheEntry{result: r, expiresAt: time.Now().Add(c.ttl)}
}
