package cache

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/inkforge/gateway/src/models"
)

// OptOutMarker in the last user message excludes a request from caching.
const OptOutMarker = "[nocache]"

const (
	maxCacheableContentLength = 15000
	maxCacheableTemperature   = 0.5
	fingerprintMinTokenLength = 3
	fingerprintMaxTokens      = 20
	hourBucket                = 3600 // seconds per key-rotation window
)

// Cacheable reports whether a request may be stored in or served from the
// cache. Streamed, hot-temperature, oversized and explicitly opted-out
// requests are excluded.
func Cacheable(messages []models.Message, opts models.ResolvedOptions) bool {
	if !opts.CacheEnabled {
		return false
	}
	if opts.Stream {
		return false
	}
	if opts.Temperature > maxCacheableTemperature {
		return false
	}

	total := 0
	for _, msg := range messages {
		total += utf8.RuneCountInString(msg.Content)
	}
	if total > maxCacheableContentLength {
		return false
	}

	if last := lastUserMessage(messages); last != nil &&
		strings.Contains(last.Content, OptOutMarker) {
		return false
	}
	return true
}

// buildKey derives the exact-match cache key for a request. System messages
// are kept verbatim; user and assistant messages are normalized so trivial
// formatting differences collapse to the same key. The key is prefixed with
// a coarse hour bucket so keys rotate naturally every clock hour.
func buildKey(messages []models.Message, opts models.ResolvedOptions, nowUnix int64) string {
	var sb strings.Builder
	for _, msg := range messages {
		sb.WriteString(msg.Role)
		sb.WriteByte(':')
		if msg.Role == models.RoleSystem {
			sb.WriteString(msg.Content)
		} else {
			sb.WriteString(normalizeContent(msg.Content))
		}
		sb.WriteByte('\n')
	}
	// Only the options that affect output determinism participate.
	fmt.Fprintf(&sb, "|t=%.2f|mt=%d|rf=%s", opts.Temperature, opts.MaxTokens, opts.ResponseFormat)

	h := fnv.New64a()
	h.Write([]byte(sb.String()))
	return fmt.Sprintf("%d:%016x", nowUnix/hourBucket, h.Sum64())
}

// normalizeContent lowercases, strips punctuation and collapses whitespace.
func normalizeContent(s string) string {
	s = strings.ToLower(s)
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Fingerprint reduces a message to its bag of significant words: lowercase,
// punctuation stripped, tokens longer than three characters, first twenty.
func Fingerprint(content string) []string {
	tokens := strings.Fields(normalizeContent(content))
	fp := make([]string, 0, fingerprintMaxTokens)
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) > fingerprintMinTokenLength {
			fp = append(fp, tok)
			if len(fp) == fingerprintMaxTokens {
				break
			}
		}
	}
	return fp
}

// jaccard is |A∩B| / |A∪B| over two token slices treated as sets.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	setA := make(map[string]struct{}, len(a))
	for _, tok := range a {
		setA[tok] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, tok := range b {
		setB[tok] = struct{}{}
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// lastUserMessage returns the most recent user message, nil if none exists.
func lastUserMessage(messages []models.Message) *models.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			return &messages[i]
		}
	}
	return nil
}
