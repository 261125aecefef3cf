// Package metrics exposes Prometheus collectors for CrossCat models and the
// constrained sampler. Collectors are registered on the default registry at
// package initialization.
//
// # Basic Usage
//
//	metrics.RowsIncorporated.WithLabelValues(metrics.OpIncorporate).Inc()
//
//	timer := metrics.NewTimer(metrics.OpLogpdf)
//	lp, err := model.Logpdf(targets, conditions)
//	timer.ObserveDuration()
//
//	tracker := metrics.NewThroughputTracker("simulate")
//	for i := 0; i < n; i++ {
//	    draw()
//	    tracker.Increment(1)
//	}
//	perSecond := tracker.GetAndReset()
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation label values.
const (
	OpIncorporate   = "incorporate"
	OpUnincorporate = "unincorporate"
	OpLogpdf        = "logpdf"
	OpSimulate      = "simulate"
	OpScore         = "score"
)

var (
	// RowsIncorporated counts rows folded into or removed from models.
	// Labels: operation (incorporate/unincorporate)
	RowsIncorporated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosscat_rows_total",
			Help: "Rows incorporated into or unincorporated from models",
		},
		[]string{"operation"},
	)

	// ColumnMoves counts columns added to or removed from views.
	// Labels: operation (incorporate/unincorporate)
	ColumnMoves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosscat_column_moves_total",
			Help: "Columns incorporated into or unincorporated from views",
		},
		[]string{"operation"},
	)

	// Views tracks the number of views of the most recently built model.
	Views = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crosscat_views",
			Help: "Number of views in the most recently built model",
		},
	)

	// AuxViewsAdded counts auxiliary views injected for column proposals.
	AuxViewsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crosscat_aux_views_added_total",
			Help: "Auxiliary views injected",
		},
	)

	// EmptyViewsFiltered counts views pruned because no column used them.
	EmptyViewsFiltered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crosscat_empty_views_filtered_total",
			Help: "Empty views removed",
		},
	)

	// RejectionDraws counts constrained sampler draws.
	// Labels: outcome (accepted/rejected)
	RejectionDraws = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosscat_rejection_draws_total",
			Help: "Draws made by the rejection sampler",
		},
		[]string{"outcome"},
	)

	// RejectionAttempts tracks how many draws one accepted sample needed.
	RejectionAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crosscat_rejection_attempts",
			Help:    "Draws needed per accepted constrained sample",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// OperationLatency tracks query latencies in nanoseconds.
	// Labels: operation (logpdf/simulate/score)
	OperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "crosscat_operation_latency_nanoseconds",
			Help: "Query latency in nanoseconds",
			Buckets: []float64{
				1000,  // 1μs
				10000, // 10μs
				1e5,   // 100μs
				1e6,   // 1ms
				1e7,   // 10ms
				1e8,   // 100ms
				1e9,   // 1s
			},
		},
		[]string{"operation"},
	)

	// Throughput tracks draws per second of long-running CLI loops.
	// Labels: operation
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crosscat_throughput_per_second",
			Help: "Current throughput in operations per second",
		},
		[]string{"operation"},
	)
)

// Timer measures one operation and reports it to OperationLatency.
type Timer struct {
	start     time.Time
	operation string
}

// NewTimer starts timing an operation.
func NewTimer(operation string) *Timer {
	return &Timer{
		start:     time.Now(),
		operation: operation,
	}
}

// Stop returns the elapsed duration since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed duration and returns it.
func (t *Timer) ObserveDuration() time.Duration {
	d := t.Stop()
	OperationLatency.WithLabelValues(t.operation).Observe(float64(d.Nanoseconds()))
	return d
}

// ThroughputTracker computes operations per second over reset windows.
// Safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	operation string
}

// NewThroughputTracker creates a tracker reporting under operation.
func NewThroughputTracker(operation string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		operation: operation,
	}
}

// Increment adds n to the count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset returns the throughput since the last reset, publishes it to
// the Throughput gauge and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}
	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()
	Throughput.WithLabelValues(t.operation).Set(throughput)
	return throughput
}
