package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/inkforge/gateway/src/models"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := New()

	m.RecordSuccess("fast-model", 100*time.Millisecond)
	m.RecordSuccess("fast-model", 300*time.Millisecond)
	m.RecordSuccess("powerful-model", 200*time.Millisecond)
	m.RecordCacheHit()
	m.RecordFallback(models.ErrorTimeout)
	m.RecordError(models.ErrorService)
	m.RecordStream()

	snap := m.Snapshot()
	assert.Equal(t, int64(6), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.CachedResponses)
	assert.Equal(t, int64(1), snap.StreamedRequests)
	assert.InDelta(t, 200.0, snap.AverageResponseTimeMs, 0.001, "average over timed requests only")
	assert.Equal(t, int64(2), snap.RequestsPerModel["fast-model"])
	assert.Equal(t, int64(1), snap.RequestsPerModel["powerful-model"])
	assert.Equal(t, int64(1), snap.ErrorsByType[models.ErrorTimeout])
	assert.Equal(t, int64(1), snap.ErrorsByType[models.ErrorService])
}

func TestMetrics_EmptySnapshot(t *testing.T) {
	snap := New().Snapshot()
	assert.Zero(t, snap.TotalRequests)
	assert.Zero(t, snap.AverageResponseTimeMs)
	assert.NotNil(t, snap.RequestsPerModel)
	assert.NotNil(t, snap.ErrorsByType)
}

func TestMetrics_ConcurrentRecording(t *testing.T) {
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordSuccess("fast-model", 10*time.Millisecond)
			m.RecordError(models.ErrorNetwork)
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, int64(100), snap.TotalRequests)
	assert.Equal(t, int64(50), snap.RequestsPerModel["fast-model"])
	assert.Equal(t, int64(50), snap.ErrorsByType[models.ErrorNetwork])
}
