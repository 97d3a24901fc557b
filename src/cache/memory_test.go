package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkforge/gateway/src/config"
	"github.com/inkforge/gateway/src/models"
)

// Fixed at the top of an hour so short clock advances stay inside one
// key-rotation bucket.
var testBase = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

func newTestCache(maxEntries int) *MemoryCache {
	c := NewMemoryCache(&config.CacheConfig{
		MaxEntries:          maxEntries,
		SimilarityThreshold: 0.85,
	})
	c.now = func() time.Time { return testBase }
	return c
}

func memOpts() models.ResolvedOptions {
	return models.ResolvedOptions{
		Temperature:  0.3,
		CacheEnabled: true,
		CacheTTL:     15 * time.Minute,
	}
}

func prompt(content string) []models.Message {
	return []models.Message{{Role: models.RoleUser, Content: content}}
}

func storedResponse(content string) *models.GenerateResponse {
	return &models.GenerateResponse{
		RequestID:   "req_test",
		Content:     content,
		Model:       "fast-model",
		CacheStatus: models.CacheMiss,
	}
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	c := newTestCache(100)
	defer c.Close()
	ctx := context.Background()

	msgs := prompt("Describe the ancient castle gates under moonlight")
	opts := memOpts()

	res, err := c.Get(ctx, msgs, opts)
	require.NoError(t, err)
	assert.Nil(t, res, "empty cache misses")

	require.NoError(t, c.Set(ctx, msgs, opts, storedResponse("The gates loom.")))

	res, err = c.Get(ctx, msgs, opts)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, models.CacheHit, res.Status)
	assert.Equal(t, models.CacheHit, res.Response.CacheStatus)
	assert.Equal(t, "The gates loom.", res.Response.Content)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_HitIncrementsUsage(t *testing.T) {
	c := newTestCache(100)
	defer c.Close()
	ctx := context.Background()

	msgs := prompt("Describe the ancient castle gates under moonlight")
	opts := memOpts()
	require.NoError(t, c.Set(ctx, msgs, opts, storedResponse("The gates loom.")))

	for i := 0; i < 3; i++ {
		res, err := c.Get(ctx, msgs, opts)
		require.NoError(t, err)
		require.NotNil(t, res)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.entries, 1)
	for _, e := range c.entries {
		assert.Equal(t, int64(4), e.usageCount, "stored at 1, plus three hits")
	}
}

func TestMemoryCache_ExpiredEntryRemovedOnAccess(t *testing.T) {
	c := newTestCache(100)
	defer c.Close()
	ctx := context.Background()

	msgs := prompt("Describe the ancient castle gates under moonlight")
	opts := memOpts()
	opts.CacheTTL = time.Minute
	require.NoError(t, c.Set(ctx, msgs, opts, storedResponse("The gates loom.")))

	c.now = func() time.Time { return testBase.Add(2 * time.Minute) }

	res, err := c.Get(ctx, msgs, opts)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 0, c.Len(), "expired entry is dropped, not kept")
}

func TestMemoryCache_SimilarityHit(t *testing.T) {
	c := newTestCache(100)
	defer c.Close()
	ctx := context.Background()
	opts := memOpts()

	stored := prompt("Describe the ancient castle gates under moonlight")
	require.NoError(t, c.Set(ctx, stored, opts, storedResponse("The gates loom.")))

	// Same significant words, different stopword: the exact key changes but
	// the fingerprint does not.
	near := prompt("Describe an ancient castle gates under moonlight")

	res, err := c.Get(ctx, near, opts)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, models.CacheSimilarity, res.Status)
	assert.Equal(t, models.CacheSimilarity, res.Response.CacheStatus)
	assert.Equal(t, "The gates loom.", res.Response.Content)
}

func TestMemoryCache_SimilarityBelowThresholdMisses(t *testing.T) {
	c := newTestCache(100)
	defer c.Close()
	ctx := context.Background()
	opts := memOpts()

	require.NoError(t, c.Set(ctx,
		prompt("Describe the ancient castle gates under moonlight"),
		opts, storedResponse("The gates loom.")))

	res, err := c.Get(ctx, prompt("Summarize yesterday's council meeting notes"), opts)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestMemoryCache_FirstMatchWins(t *testing.T) {
	c := newTestCache(100)
	defer c.Close()
	ctx := context.Background()
	opts := memOpts()

	// Both entries clear the threshold against the probe; insertion order
	// decides which one serves.
	require.NoError(t, c.Set(ctx,
		prompt("Describe the ancient castle gates under moonlight"),
		opts, storedResponse("first")))
	require.NoError(t, c.Set(ctx,
		prompt("Describe an ancient castle gates under moonlight"),
		opts, storedResponse("second")))

	res, err := c.Get(ctx, prompt("Describe ancient castle gates under moonlight please"), opts)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, models.CacheSimilarity, res.Status)
	assert.Equal(t, "first", res.Response.Content)
}

func TestMemoryCache_NoSimilarityWhenLastTurnNotUser(t *testing.T) {
	c := newTestCache(100)
	defer c.Close()
	ctx := context.Background()
	opts := memOpts()

	require.NoError(t, c.Set(ctx,
		prompt("Describe the ancient castle gates under moonlight"),
		opts, storedResponse("The gates loom.")))

	probe := []models.Message{
		{Role: models.RoleUser, Content: "Describe an ancient castle gates under moonlight"},
		{Role: models.RoleAssistant, Content: "The gates loom."},
	}
	res, err := c.Get(ctx, probe, opts)
	require.NoError(t, err)
	assert.Nil(t, res, "near-duplicate matching only applies to user-final conversations")
}

func TestMemoryCache_EvictionSheds10Percent(t *testing.T) {
	c := newTestCache(10)
	defer c.Close()
	ctx := context.Background()
	opts := memOpts()
	opts.CacheTTL = time.Hour

	for i := 0; i < 11; i++ {
		msgs := prompt(fmt.Sprintf("unique prompt number %d about topic%d", i, i))
		require.NoError(t, c.Set(ctx, msgs, opts, storedResponse(fmt.Sprintf("resp %d", i))))
	}

	assert.Equal(t, 10, c.Len(), "overflow evicts one entry at capacity 10")
}

func TestMemoryCache_EvictionPrefersFreshUnusedEntries(t *testing.T) {
	c := newTestCache(10)
	defer c.Close()
	ctx := context.Background()
	opts := memOpts()
	opts.CacheTTL = time.Hour

	// One old entry, inserted five minutes before the rest. Its age term
	// dwarfs any usage-count difference, so a fresh entry is evicted instead.
	old := prompt("the very first prompt about dragons and mountains")
	require.NoError(t, c.Set(ctx, old, opts, storedResponse("old")))

	c.now = func() time.Time { return testBase.Add(5 * time.Minute) }
	for i := 0; i < 10; i++ {
		msgs := prompt(fmt.Sprintf("unique prompt number %d about topic%d", i, i))
		require.NoError(t, c.Set(ctx, msgs, opts, storedResponse(fmt.Sprintf("resp %d", i))))
	}

	assert.Equal(t, 10, c.Len())

	res, err := c.Get(ctx, old, opts)
	require.NoError(t, err)
	require.NotNil(t, res, "the old entry survives eviction")
	assert.Equal(t, "old", res.Response.Content)
}

func TestMemoryCache_SweepRemovesExpired(t *testing.T) {
	c := newTestCache(100)
	defer c.Close()
	ctx := context.Background()

	short := memOpts()
	short.CacheTTL = time.Minute
	long := memOpts()
	long.CacheTTL = time.Hour

	require.NoError(t, c.Set(ctx, prompt("short lived prompt about rivers"), short, storedResponse("a")))
	require.NoError(t, c.Set(ctx, prompt("long lived prompt about oceans"), long, storedResponse("b")))

	c.now = func() time.Time { return testBase.Add(10 * time.Minute) }
	c.removeExpired()

	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	c := newTestCache(10)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
