package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/inkforge/gateway/src/models"
)

// Metrics accumulates process-wide request counters. Counters only grow
// until process restart. Each executed request lands in exactly one of
// RecordSuccess, RecordCacheHit, RecordFallback or RecordError.
type Metrics struct {
	totalRequests    atomic.Int64
	cachedResponses  atomic.Int64
	streamedRequests atomic.Int64
	responseTimeMs   atomic.Int64
	timedRequests    atomic.Int64

	mu               sync.Mutex
	requestsPerModel map[string]int64
	errorsByType     map[models.ErrorType]int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	TotalRequests         int64                      `json:"total_requests"`
	CachedResponses       int64                      `json:"cached_responses"`
	StreamedRequests      int64                      `json:"streamed_requests"`
	AverageResponseTimeMs float64                    `json:"average_response_time_ms"`
	RequestsPerModel      map[string]int64           `json:"requests_per_model"`
	ErrorsByType          map[models.ErrorType]int64 `json:"errors_by_type"`
}

func New() *Metrics {
	return &Metrics{
		requestsPerModel: make(map[string]int64),
		errorsByType:     make(map[models.ErrorType]int64),
	}
}

// RecordSuccess counts a completed upstream call against its model and
// folds the latency into the running average.
func (m *Metrics) RecordSuccess(model string, elapsed time.Duration) {
	m.totalRequests.Add(1)
	m.responseTimeMs.Add(elapsed.Milliseconds())
	m.timedRequests.Add(1)

	m.mu.Lock()
	m.requestsPerModel[model]++
	m.mu.Unlock()
}

// RecordCacheHit counts a request served from the cache without an
// upstream call.
func (m *Metrics) RecordCacheHit() {
	m.totalRequests.Add(1)
	m.cachedResponses.Add(1)
}

// RecordFallback counts a request that degraded to fallback content after
// the given error.
func (m *Metrics) RecordFallback(t models.ErrorType) {
	m.totalRequests.Add(1)
	m.recordErrorType(t)
}

// RecordError counts a request that terminated with a raised error.
func (m *Metrics) RecordError(t models.ErrorType) {
	m.totalRequests.Add(1)
	m.recordErrorType(t)
}

// RecordStream counts a request delivered over a stream, on top of its
// terminal outcome.
func (m *Metrics) RecordStream() {
	m.streamedRequests.Add(1)
}

func (m *Metrics) recordErrorType(t models.ErrorType) {
	m.mu.Lock()
	m.errorsByType[t]++
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		TotalRequests:    m.totalRequests.Load(),
		CachedResponses:  m.cachedResponses.Load(),
		StreamedRequests: m.streamedRequests.Load(),
		RequestsPerModel: make(map[string]int64),
		ErrorsByType:     make(map[models.ErrorType]int64),
	}
	if timed := m.timedRequests.Load(); timed > 0 {
		snap.AverageResponseTimeMs = float64(m.responseTimeMs.Load()) / float64(timed)
	}

	m.mu.Lock()
	for model, n := range m.requestsPerModel {
		snap.RequestsPerModel[model] = n
	}
	for t, n := range m.errorsByType {
		snap.ErrorsByType[t] = n
	}
	m.mu.Unlock()
	return snap
}
