package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkforge/gateway/src/models"
)

func cacheableOpts() models.ResolvedOptions {
	return models.ResolvedOptions{
		Temperature:  0.3,
		CacheEnabled: true,
	}
}

func TestCacheable(t *testing.T) {
	msgs := []models.Message{{Role: models.RoleUser, Content: "Describe the castle"}}

	t.Run("eligible request", func(t *testing.T) {
		assert.True(t, Cacheable(msgs, cacheableOpts()))
	})

	t.Run("caching disabled", func(t *testing.T) {
		opts := cacheableOpts()
		opts.CacheEnabled = false
		assert.False(t, Cacheable(msgs, opts))
	})

	t.Run("streaming request", func(t *testing.T) {
		opts := cacheableOpts()
		opts.Stream = true
		assert.False(t, Cacheable(msgs, opts))
	})

	t.Run("hot temperature", func(t *testing.T) {
		opts := cacheableOpts()
		opts.Temperature = 0.6
		assert.False(t, Cacheable(msgs, opts))
	})

	t.Run("boundary temperature is allowed", func(t *testing.T) {
		opts := cacheableOpts()
		opts.Temperature = 0.5
		assert.True(t, Cacheable(msgs, opts))
	})

	t.Run("oversized content", func(t *testing.T) {
		big := []models.Message{{Role: models.RoleUser, Content: strings.Repeat("x", 15001)}}
		assert.False(t, Cacheable(big, cacheableOpts()))
	})

	t.Run("opt-out marker", func(t *testing.T) {
		optOut := []models.Message{{Role: models.RoleUser, Content: "Describe the castle " + OptOutMarker}}
		assert.False(t, Cacheable(optOut, cacheableOpts()))
	})
}

func TestBuildKey_NormalizesUserContent(t *testing.T) {
	opts := cacheableOpts()
	now := int64(1_700_000_000)

	a := buildKey([]models.Message{{Role: models.RoleUser, Content: "Describe   the Castle!"}}, opts, now)
	b := buildKey([]models.Message{{Role: models.RoleUser, Content: "describe the castle"}}, opts, now)

	assert.Equal(t, a, b, "case, punctuation and whitespace must not change the key")
}

func TestBuildKey_SystemContentVerbatim(t *testing.T) {
	opts := cacheableOpts()
	now := int64(1_700_000_000)

	a := buildKey([]models.Message{{Role: models.RoleSystem, Content: "You are a novelist."}}, opts, now)
	b := buildKey([]models.Message{{Role: models.RoleSystem, Content: "you are a novelist"}}, opts, now)

	assert.NotEqual(t, a, b, "system messages participate verbatim")
}

func TestBuildKey_OptionsAffectKey(t *testing.T) {
	msgs := []models.Message{{Role: models.RoleUser, Content: "Describe the castle"}}
	now := int64(1_700_000_000)

	base := cacheableOpts()
	hotter := cacheableOpts()
	hotter.Temperature = 0.4

	assert.NotEqual(t, buildKey(msgs, base, now), buildKey(msgs, hotter, now))
}

func TestBuildKey_HourBucketRotates(t *testing.T) {
	msgs := []models.Message{{Role: models.RoleUser, Content: "Describe the castle"}}
	opts := cacheableOpts()

	now := int64(1_700_000_000)
	a := buildKey(msgs, opts, now)
	b := buildKey(msgs, opts, now+3600)

	assert.NotEqual(t, a, b, "keys rotate every clock hour")
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("Write ME a short, dramatic scene: two old friends meet!")

	// Lowercased, punctuation stripped, only tokens longer than 3 chars.
	assert.Equal(t, []string{"write", "short", "dramatic", "scene", "friends", "meet"}, fp)
}

func TestFingerprint_CapsAtTwentyTokens(t *testing.T) {
	words := make([]string, 30)
	for i := range words {
		words[i] = strings.Repeat(string(rune('a'+i%26)), 5)
	}
	fp := Fingerprint(strings.Join(words, " "))

	assert.Len(t, fp, fingerprintMaxTokens)
}

func TestJaccard(t *testing.T) {
	a := []string{"write", "short", "dramatic", "scene"}
	b := []string{"write", "short", "dramatic", "chapter"}

	// 3 shared of 5 distinct tokens.
	assert.InDelta(t, 0.6, jaccard(a, b), 1e-9)
	assert.Equal(t, 1.0, jaccard(a, a))
	assert.Equal(t, 0.0, jaccard(a, nil))
}
