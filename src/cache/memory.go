package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/inkforge/gateway/src/config"
	"github.com/inkforge/gateway/src/models"
)

const (
	sweepInterval    = time.Hour
	evictionFraction = 10 // evict at least 1/10th of entries

	usageWeight = 0.7
	ageWeight   = 0.3
)

type memoryEntry struct {
	resp        models.GenerateResponse
	createdAt   time.Time
	expiresAt   time.Time
	fingerprint []string
	usageCount  int64
}

// MemoryCache is the in-process response cache. Exact lookups go through the
// hour-bucketed key; near-duplicates are matched by fingerprint similarity
// against entries in insertion order. A background sweep removes expired
// entries once an hour independent of access patterns.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	order      []string // keys in insertion order
	maxEntries int
	threshold  float64

	now       func() time.Time
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemoryCache(cfg *config.CacheConfig) *MemoryCache {
	c := &MemoryCache{
		entries:    make(map[string]*memoryEntry),
		maxEntries: cfg.MaxEntries,
		threshold:  cfg.SimilarityThreshold,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Get returns nil, nil on a miss. An expired exact match is deleted on
// access. Hits increment the entry's usage count.
func (c *MemoryCache) Get(_ context.Context, messages []models.Message, opts models.ResolvedOptions) (*models.CacheResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	key := buildKey(messages, opts, now.Unix())

	if e, ok := c.entries[key]; ok {
		if now.After(e.expiresAt) {
			c.remove(key)
		} else {
			e.usageCount++
			resp := e.resp
			resp.CacheStatus = models.CacheHit
			return &models.CacheResult{Response: &resp, Status: models.CacheHit}, nil
		}
	}

	// Near-duplicate path: only when the conversation ends with a user turn.
	if len(messages) == 0 || messages[len(messages)-1].Role != models.RoleUser {
		return nil, nil
	}
	fp := Fingerprint(messages[len(messages)-1].Content)
	if len(fp) == 0 {
		return nil, nil
	}

	// First entry past the threshold wins, in insertion order.
	for _, k := range c.order {
		e, ok := c.entries[k]
		if !ok || len(e.fingerprint) == 0 || now.After(e.expiresAt) {
			continue
		}
		if jaccard(fp, e.fingerprint) >= c.threshold {
			e.usageCount++
			resp := e.resp
			resp.CacheStatus = models.CacheSimilarity
			return &models.CacheResult{Response: &resp, Status: models.CacheSimilarity}, nil
		}
	}
	return nil, nil
}

// Set stores a response with the fingerprint of the last user message and a
// usage count of one, then evicts if the cache grew past its capacity.
func (c *MemoryCache) Set(_ context.Context, messages []models.Message, opts models.ResolvedOptions, resp *models.GenerateResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	key := buildKey(messages, opts, now.Unix())

	e := &memoryEntry{
		resp:       *resp,
		createdAt:  now,
		expiresAt:  now.Add(opts.CacheTTL),
		usageCount: 1,
	}
	if last := lastUserMessage(messages); last != nil {
		e.fingerprint = Fingerprint(last.Content)
	}

	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = e

	if len(c.entries) > c.maxEntries {
		c.evict(now)
	}
	return nil
}

// Len reports the number of live entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the background sweep.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// evict removes at least a tenth of the entries (minimum one), lowest score
// first. The score usageCount*0.7 + ageMs*0.3 rewards sheer age over recent
// insertion: a rarely used, newly inserted entry scores lowest and goes
// first, while old entries accumulate a large age term and survive.
func (c *MemoryCache) evict(now time.Time) {
	target := len(c.entries) / evictionFraction
	if target < 1 {
		target = 1
	}

	type scored struct {
		key   string
		score float64
	}
	ranked := make([]scored, 0, len(c.entries))
	for key, e := range c.entries {
		ageMs := float64(now.Sub(e.createdAt).Milliseconds())
		ranked = append(ranked, scored{
			key:   key,
			score: float64(e.usageCount)*usageWeight + ageMs*ageWeight,
		})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score < ranked[j].score })

	for i := 0; i < target && i < len(ranked); i++ {
		c.remove(ranked[i].key)
	}
}

// remove deletes an entry from the map and the insertion-order index.
// Callers hold the mutex.
func (c *MemoryCache) remove(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *MemoryCache) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *MemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			c.remove(key)
		}
	}
}
