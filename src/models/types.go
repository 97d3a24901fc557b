package models

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn of a conversation sent to the text service.
type Message struct {
	Role    string `json:"role" binding:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// Priority hints which model tier the caller prefers.
type Priority string

const (
	PrioritySpeed    Priority = "speed"
	PriorityQuality  Priority = "quality"
	PriorityBalanced Priority = "balanced"
)

const (
	ResponseFormatText = "text"
	ResponseFormatJSON = "json"
)

// CacheStatus reports how a response was served.
type CacheStatus string

const (
	CacheHit        CacheStatus = "hit"
	CacheSimilarity CacheStatus = "similarity"
	CacheMiss       CacheStatus = "miss"
	CacheBypass     CacheStatus = "bypass"
)

// GenerateRequest is the body of POST /api/v1/generate.
type GenerateRequest struct {
	Messages []Message `json:"messages" binding:"required,min=1,dive"`
	Options  Options   `json:"options"`
}

// Options are the per-call knobs. Every field is optional; pointer fields
// distinguish "absent" from a zero value. Defaults are resolved once, up
// front, by Resolve.
type Options struct {
	// Temperature for sampling. Default 0.7. Values above 0.5 disqualify
	// the request from caching.
	Temperature *float32 `json:"temperature,omitempty"`
	// MaxTokens caps the completion length. Absent means provider default.
	MaxTokens *int `json:"max_tokens,omitempty"`
	// ResponseFormat is "text" or "json". Default "text".
	ResponseFormat string `json:"response_format,omitempty"`
	// TimeoutMs bounds a single upstream attempt. Default 30000.
	TimeoutMs *int `json:"timeout_ms,omitempty"`
	// MaxRetries is the number of additional attempts after the first.
	// Default 2.
	MaxRetries *int `json:"max_retries,omitempty"`
	// FallbackContent, when present, is substituted for the response if the
	// request ultimately fails on a degradable error. Nil means no fallback;
	// an empty string is a valid fallback.
	FallbackContent *string `json:"fallback_content,omitempty"`
	// Stream requests an SSE response. Streamed requests never touch the cache.
	Stream bool `json:"stream,omitempty"`
	// EnableCache toggles cache lookup and store. Default true.
	EnableCache *bool `json:"enable_cache,omitempty"`
	// CacheTTLSeconds overrides the default entry lifetime (15 minutes).
	CacheTTLSeconds *int `json:"cache_ttl_seconds,omitempty"`
	// ForceModel bypasses model selection entirely.
	ForceModel string `json:"force_model,omitempty"`
	// Priority is "speed", "quality" or "balanced". Default "balanced".
	Priority Priority `json:"priority,omitempty"`
}

// OptionDefaults carries the construction-time defaults applied to Options.
type OptionDefaults struct {
	Temperature float32
	Timeout     time.Duration
	MaxRetries  int
	CacheTTL    time.Duration
}

// ResolvedOptions is an Options value with every default applied. The
// executor, selector and cache all work from this form so a request is
// interpreted the same way at every stage.
type ResolvedOptions struct {
	Temperature     float32
	MaxTokens       int // 0 means absent
	ResponseFormat  string
	Timeout         time.Duration
	MaxRetries      int
	FallbackContent *string
	Stream          bool
	CacheEnabled    bool
	CacheTTL        time.Duration
	ForceModel      string
	Priority        Priority
}

// Resolve applies defaults to the caller-supplied options.
func Resolve(o Options, d OptionDefaults) ResolvedOptions {
	ro := ResolvedOptions{
		Temperature:     d.Temperature,
		ResponseFormat:  ResponseFormatText,
		Timeout:         d.Timeout,
		MaxRetries:      d.MaxRetries,
		FallbackContent: o.FallbackContent,
		Stream:          o.Stream,
		CacheEnabled:    true,
		CacheTTL:        d.CacheTTL,
		ForceModel:      o.ForceModel,
		Priority:        PriorityBalanced,
	}

	if o.Temperature != nil {
		ro.Temperature = *o.Temperature
	}
	if o.MaxTokens != nil {
		ro.MaxTokens = *o.MaxTokens
	}
	if o.ResponseFormat != "" {
		ro.ResponseFormat = o.ResponseFormat
	}
	if o.TimeoutMs != nil {
		ro.Timeout = time.Duration(*o.TimeoutMs) * time.Millisecond
	}
	if o.MaxRetries != nil {
		ro.MaxRetries = *o.MaxRetries
	}
	if o.EnableCache != nil {
		ro.CacheEnabled = *o.EnableCache
	}
	if o.CacheTTLSeconds != nil {
		ro.CacheTTL = time.Duration(*o.CacheTTLSeconds) * time.Second
	}
	if o.Priority != "" {
		ro.Priority = o.Priority
	}
	return ro
}

// GenerateResponse is the result of one executed request. The shape is the
// same whether the content came fresh from the service, from the cache, or
// from fallback substitution; CacheStatus and Fallback carry the origin as
// informational fields only.
type GenerateResponse struct {
	RequestID       string        `json:"request_id,omitempty"`
	Content         string        `json:"content"`
	Model           string        `json:"model"`
	SelectionReason string        `json:"selection_reason,omitempty"`
	CacheStatus     CacheStatus   `json:"cache_status"`
	Fallback        bool          `json:"fallback"`
	ResponseTime    time.Duration `json:"response_time_ms"`
	Timestamp       time.Time     `json:"timestamp"`
}
