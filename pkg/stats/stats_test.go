package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogSumExp(t *testing.T) {
	assert.InDelta(t, math.Log(3), LogSumExp([]float64{0, 0, 0}), 1e-12)
	assert.True(t, math.IsInf(LogSumExp(nil), -1))
	assert.True(t, math.IsInf(LogSumExp([]float64{math.Inf(-1), math.Inf(-1)}), -1))
	assert.InDelta(t, 1000+math.Log(2), LogSumExp([]float64{1000, 1000}), 1e-9)
}

func TestLogMeanExp(t *testing.T) {
	xs := []float64{math.Log(0.2), math.Log(0.4)}
	assert.InDelta(t, math.Log(0.3), LogMeanExp(xs), 1e-12)

	// A single element is returned unchanged.
	assert.Equal(t, -1.25, LogMeanExp([]float64{-1.25}))
}

func TestSampleLogWeights(t *testing.T) {
	rng := NewRand(7)
	counts := make([]int, 3)
	lw := []float64{math.Log(1), math.Log(2), math.Log(7)}
	const trials = 20000
	for i := 0; i < trials; i++ {
		counts[SampleLogWeights(rng, lw)]++
	}
	assert.InDelta(t, 0.1, float64(counts[0])/trials, 0.02)
	assert.InDelta(t, 0.2, float64(counts[1])/trials, 0.02)
	assert.InDelta(t, 0.7, float64(counts[2])/trials, 0.02)

	// Impossible outcomes are never drawn.
	for i := 0; i < 100; i++ {
		assert.Equal(t, 1, SampleLogWeights(rng, []float64{math.Inf(-1), 0}))
	}
}

func TestSamplePartition(t *testing.T) {
	rng := NewRand(11)
	assignment := SamplePartition(rng, 50, 1.5)
	require.Len(t, assignment, 50)

	tables := map[int]int{}
	for _, k := range assignment {
		tables[k]++
	}
	// Table labels are a permutation of 0..K-1.
	for k := range tables {
		assert.GreaterOrEqual(t, k, 0)
		assert.Less(t, k, len(tables))
	}

	assert.Empty(t, SamplePartition(rng, 0, 1))
}

func TestSamplePartition_ExpectedTables(t *testing.T) {
	rng := NewRand(3)
	const n, alpha, trials = 20, 2.0, 2000

	// E[K] = sum_{i=0}^{n-1} alpha / (alpha + i)
	expected := 0.0
	for i := 0; i < n; i++ {
		expected += alpha / (alpha + float64(i))
	}

	total := 0
	for i := 0; i < trials; i++ {
		seen := map[int]bool{}
		for _, k := range SamplePartition(rng, n, alpha) {
			seen[k] = true
		}
		total += len(seen)
	}
	assert.InDelta(t, expected, float64(total)/trials, 0.2)
}

func TestGrids(t *testing.T) {
	assert.Equal(t, []float64{0, 0.5, 1}, Linspace(0, 1, 3))
	assert.Equal(t, []float64{4}, Linspace(4, 4, 10))

	grid := LogLinspace(1, 100, 3)
	require.Len(t, grid, 3)
	assert.InDelta(t, 10, grid[1], 1e-9)
}

func TestCRPLogWeight(t *testing.T) {
	assert.InDelta(t, math.Log(3.0/5.0), CRPLogWeight(3, 4, 1), 1e-12)
	assert.InDelta(t, math.Log(1.0/5.0), CRPLogWeight(0, 4, 1), 1e-12)
}
