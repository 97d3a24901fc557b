package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inkforge/gateway/src/config"
	"github.com/inkforge/gateway/src/models"
)

const redisKeyPrefix = "gen:"

// redisEntry is the stored form of a cached response. The fingerprint rides
// along so near-duplicate matching works without a second keyspace.
type redisEntry struct {
	Response    models.GenerateResponse `json:"response"`
	Fingerprint []string                `json:"fingerprint,omitempty"`
	CachedAt    time.Time               `json:"cached_at"`
	UsageCount  int64                   `json:"usage_count"`
}

// RedisCache is an alternative response-cache backend for deployments that
// prefer an external store. Expiry is delegated to redis TTLs, so there is
// no sweep and no capacity eviction here; everything else matches the
// in-memory backend. Each instance still owns its keyspace — there is no
// cross-instance invalidation.
type RedisCache struct {
	client    *redis.Client
	threshold float64
}

func NewRedisCache(redisCfg *config.RedisConfig, cacheCfg *config.CacheConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Address,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client:    client,
		threshold: cacheCfg.SimilarityThreshold,
	}, nil
}

func (c *RedisCache) Get(ctx context.Context, messages []models.Message, opts models.ResolvedOptions) (*models.CacheResult, error) {
	key := redisKeyPrefix + buildKey(messages, opts, time.Now().Unix())

	val, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var entry redisEntry
		if err := json.Unmarshal([]byte(val), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
		}
		c.touch(ctx, key, &entry)
		resp := entry.Response
		resp.CacheStatus = models.CacheHit
		return &models.CacheResult{Response: &resp, Status: models.CacheHit}, nil
	}
	if err != redis.Nil {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	if len(messages) == 0 || messages[len(messages)-1].Role != models.RoleUser {
		return nil, nil
	}
	fp := Fingerprint(messages[len(messages)-1].Content)
	if len(fp) == 0 {
		return nil, nil
	}
	return c.getSimilar(ctx, fp)
}

// getSimilar scans stored entries and returns the first one whose
// fingerprint crosses the similarity threshold.
func (c *RedisCache) getSimilar(ctx context.Context, fp []string) (*models.CacheResult, error) {
	keys, err := c.client.Keys(ctx, redisKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve cache keys: %w", err)
	}

	for _, key := range keys {
		val, err := c.client.Get(ctx, key).Result()
		if err != nil {
			continue
		}

		var entry redisEntry
		if err := json.Unmarshal([]byte(val), &entry); err != nil {
			continue
		}
		if len(entry.Fingerprint) == 0 {
			continue
		}

		if jaccard(fp, entry.Fingerprint) >= c.threshold {
			c.touch(ctx, key, &entry)
			resp := entry.Response
			resp.CacheStatus = models.CacheSimilarity
			return &models.CacheResult{Response: &resp, Status: models.CacheSimilarity}, nil
		}
	}
	return nil, nil
}

func (c *RedisCache) Set(ctx context.Context, messages []models.Message, opts models.ResolvedOptions, resp *models.GenerateResponse) error {
	key := redisKeyPrefix + buildKey(messages, opts, time.Now().Unix())

	entry := redisEntry{
		Response:   *resp,
		CachedAt:   time.Now(),
		UsageCount: 1,
	}
	if last := lastUserMessage(messages); last != nil {
		entry.Fingerprint = Fingerprint(last.Content)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return c.client.Set(ctx, key, data, opts.CacheTTL).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// touch increments an entry's usage count in place without disturbing its
// remaining TTL. Best effort; a lost increment only skews eviction scoring.
func (c *RedisCache) touch(ctx context.Context, key string, entry *redisEntry) {
	entry.UsageCount++
	if data, err := json.Marshal(entry); err == nil {
		c.client.Set(ctx, key, data, redis.KeepTTL)
	}
}
