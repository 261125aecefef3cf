package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer(t *testing.T) {
	before := testutil.CollectAndCount(OperationLatency)
	timer := NewTimer("timer_test")
	time.Sleep(time.Millisecond)
	d := timer.ObserveDuration()

	assert.GreaterOrEqual(t, d, time.Millisecond)
	assert.Equal(t, before+1, testutil.CollectAndCount(OperationLatency))
}

func TestThroughputTracker(t *testing.T) {
	tracker := NewThroughputTracker("tracker_test")
	tracker.Increment(10)
	tracker.Increment(5)
	time.Sleep(5 * time.Millisecond)

	rate := tracker.GetAndReset()
	assert.Greater(t, rate, 0.0)
	assert.InDelta(t, rate, testutil.ToFloat64(Throughput.WithLabelValues("tracker_test")), 1e-9)

	// The window restarts empty.
	time.Sleep(time.Millisecond)
	assert.Equal(t, 0.0, tracker.GetAndReset())
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(RowsIncorporated.WithLabelValues(OpIncorporate))
	RowsIncorporated.WithLabelValues(OpIncorporate).Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(RowsIncorporated.WithLabelValues(OpIncorporate)))
}

func TestResourceMonitor(t *testing.T) {
	rm, err := NewResourceMonitor()
	require.NoError(t, err)

	usage := rm.Sample()
	assert.Positive(t, usage.GoroutineCount)
	assert.GreaterOrEqual(t, usage.CPUPercent, 0.0)
	assert.Equal(t, float64(usage.MemoryRSS), testutil.ToFloat64(ProcessRSS))
}
