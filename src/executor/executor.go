package executor

import (
	"context"
	"time"

	"github.com/inkforge/gateway/src/cache"
	"github.com/inkforge/gateway/src/config"
	"github.com/inkforge/gateway/src/metrics"
	"github.com/inkforge/gateway/src/models"
	"github.com/inkforge/gateway/src/selector"
)

const (
	backoffBase = time.Second
	backoffCap  = 8 * time.Second
)

// Executor runs generation requests end to end: cache lookup, model
// selection, the bounded-timeout upstream call, classified retries with
// backoff, and fallback substitution. Every call lands in exactly one
// terminal metrics record.
type Executor struct {
	client   models.Completer
	cache    models.ResponseCache // nil disables caching entirely
	selector *selector.Selector
	metrics  *metrics.Metrics
	defaults models.OptionDefaults

	// sleep is swappable in tests so backoff timing can be observed
	// without waiting it out.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(client models.Completer, respCache models.ResponseCache, sel *selector.Selector, m *metrics.Metrics, cfg *config.Config) *Executor {
	return &Executor{
		client:   client,
		cache:    respCache,
		selector: sel,
		metrics:  m,
		defaults: models.OptionDefaults{
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
			MaxRetries:  cfg.LLM.MaxRetries,
			CacheTTL:    cfg.Cache.TTL,
		},
		sleep: sleepCtx,
	}
}

// Execute runs a non-streaming request and returns the response however it
// was produced: fresh, cached, or fallback-substituted. Failures surface as
// a *models.GenerationError.
func (e *Executor) Execute(ctx context.Context, messages []models.Message, opts models.Options) (*models.GenerateResponse, error) {
	ro := models.Resolve(opts, e.defaults)
	start := time.Now()

	cacheEligible := e.cache != nil && !ro.Stream && cache.Cacheable(messages, ro)
	status := models.CacheBypass
	if cacheEligible {
		status = models.CacheMiss
		if res, err := e.cache.Get(ctx, messages, ro); err == nil && res != nil {
			e.metrics.RecordCacheHit()
			resp := res.Response
			resp.ResponseTime = time.Since(start)
			return resp, nil
		}
		// lookup errors fall through to the live path
	}

	model, reason := e.selector.Select(messages, ro)

	retries := 0
	for {
		attemptCtx, cancel := context.WithTimeout(ctx, ro.Timeout)
		content, err := e.client.Complete(attemptCtx, model, messages, ro)
		cancel()

		if err == nil {
			elapsed := time.Since(start)
			e.metrics.RecordSuccess(model, elapsed)
			resp := &models.GenerateResponse{
				Content:         content,
				Model:           model,
				SelectionReason: reason,
				CacheStatus:     status,
				ResponseTime:    elapsed,
				Timestamp:       time.Now(),
			}
			if cacheEligible {
				// Store failures never fail the request.
				_ = e.cache.Set(ctx, messages, ro, resp)
			}
			return resp, nil
		}

		gerr := models.Classify(err)
		if !gerr.Retryable || retries >= ro.MaxRetries {
			return e.conclude(gerr, ro, model, reason, status, start)
		}
		retries++
		if serr := e.sleep(ctx, backoffDelay(retries)); serr != nil {
			// The caller went away during backoff; no further attempts.
			return e.conclude(gerr, ro, model, reason, status, start)
		}
	}
}

// ExecuteStream runs a streaming request, delivering content deltas to
// callback as they arrive. Streamed requests never touch the cache. Retries
// only happen while nothing has been emitted yet; once bytes reached the
// caller the stream can neither be retried nor degraded. A fallback
// substitution is returned as a complete response with Fallback set and no
// deltas emitted — the caller replays it through the stream emulator.
func (e *Executor) ExecuteStream(ctx context.Context, messages []models.Message, opts models.Options, callback func(model, delta string) error) (*models.GenerateResponse, error) {
	ro := models.Resolve(opts, e.defaults)
	ro.Stream = true
	start := time.Now()

	model, reason := e.selector.Select(messages, ro)

	retries := 0
	for {
		attemptCtx, cancel := context.WithTimeout(ctx, ro.Timeout)
		emitted := false
		content, err := e.client.CompleteStream(attemptCtx, model, messages, ro, func(delta string) error {
			emitted = true
			return callback(model, delta)
		})
		cancel()

		if err == nil {
			elapsed := time.Since(start)
			e.metrics.RecordSuccess(model, elapsed)
			e.metrics.RecordStream()
			return &models.GenerateResponse{
				Content:         content,
				Model:           model,
				SelectionReason: reason,
				CacheStatus:     models.CacheBypass,
				ResponseTime:    elapsed,
				Timestamp:       time.Now(),
			}, nil
		}

		gerr := models.Classify(err)
		if emitted {
			e.metrics.RecordError(gerr.Type)
			return nil, gerr
		}
		if !gerr.Retryable || retries >= ro.MaxRetries {
			resp, cerr := e.conclude(gerr, ro, model, reason, models.CacheBypass, start)
			if cerr == nil {
				e.metrics.RecordStream()
			}
			return resp, cerr
		}
		retries++
		if serr := e.sleep(ctx, backoffDelay(retries)); serr != nil {
			return e.conclude(gerr, ro, model, reason, models.CacheBypass, start)
		}
	}
}

// conclude decides between fallback substitution and raising once the
// retry budget is spent or the error is not retryable.
func (e *Executor) conclude(gerr *models.GenerationError, ro models.ResolvedOptions, model, reason string, status models.CacheStatus, start time.Time) (*models.GenerateResponse, error) {
	if ro.FallbackContent != nil && degradable(gerr) {
		e.metrics.RecordFallback(gerr.Type)
		return &models.GenerateResponse{
			Content:         *ro.FallbackContent,
			Model:           model,
			SelectionReason: reason,
			CacheStatus:     status,
			Fallback:        true,
			ResponseTime:    time.Since(start),
			Timestamp:       time.Now(),
		}, nil
	}
	e.metrics.RecordError(gerr.Type)
	return nil, gerr
}

// degradable reports whether fallback content may mask the error.
// Authorization and invalid-request failures are never masked.
func degradable(gerr *models.GenerationError) bool {
	switch gerr.Type {
	case models.ErrorAuthorization, models.ErrorInvalid:
		return false
	case models.ErrorTimeout, models.ErrorService:
		return true
	default:
		return gerr.Retryable
	}
}

// backoffDelay is min(1s * 2^(retries-1), 8s).
func backoffDelay(retries int) time.Duration {
	if retries < 1 {
		retries = 1
	}
	if retries > 4 {
		return backoffCap
	}
	d := backoffBase << (retries - 1)
	if d > backoffCap {
		d = backoffCap
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
