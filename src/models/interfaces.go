package models

import (
	"context"
)

// Completer defines the interface for the upstream text-generation client.
type Completer interface {
	Complete(ctx context.Context, model string, messages []Message, opts ResolvedOptions) (string, error)
	// CompleteStream delivers incremental content deltas to callback as they
	// arrive. It returns the full accumulated content on success.
	CompleteStream(ctx context.Context, model string, messages []Message, opts ResolvedOptions, callback func(delta string) error) (string, error)
}

// CacheResult is a successful cache lookup. Status is CacheHit for an
// exact-key match and CacheSimilarity for a fingerprint match.
type CacheResult struct {
	Response *GenerateResponse
	Status   CacheStatus
}

// ResponseCache defines the interface for response-cache backends.
// Implementations must be safe for concurrent use.
type ResponseCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, messages []Message, opts ResolvedOptions) (*CacheResult, error)
	Set(ctx context.Context, messages []Message, opts ResolvedOptions, resp *GenerateResponse) error
	Close() error
}
