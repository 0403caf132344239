package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreConcurrencySafe(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementCounter(DeliveryNotesCreated)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), m.GetCounters()[DeliveryNotesCreated])
}

func TestRecordTimer(t *testing.T) {
	m := NewMetrics()
	m.RecordTimer(RenderDuration, 30)
	m.RecordTimer(RenderDuration, 10)
	m.RecordTimer(RenderDuration, 20)

	timer, ok := m.GetTimers()[RenderDuration]
	require.True(t, ok)
	assert.Equal(t, int64(3), timer.Count)
	assert.Equal(t, int64(10), timer.MinTimeMs)
	assert.Equal(t, int64(30), timer.MaxTimeMs)
	assert.InDelta(t, 20.0, timer.AverageTimeMs, 0.001)
}

func TestErrorRatesAndHealth(t *testing.T) {
	m := NewMetrics()
	m.RecordOutcome("render", false)
	m.RecordOutcome("render", true)
	m.SetHealth("database", true)
	m.SetHealth("redis", false)

	assert.InDelta(t, 50.0, m.GetErrorRates()["render"].ErrorRate, 0.001)
	assert.Equal(t, map[string]bool{"database": true, "redis": false}, m.GetHealthChecks())

	all := m.GetAllMetrics()
	assert.Contains(t, all, "counters")
	assert.Contains(t, all, "health_checks")
}
