package stats

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// LogSumExp returns log(sum(exp(xs))). It returns -Inf for an empty slice
// or when every element is -Inf.
func LogSumExp(xs []float64) float64 {
	if len(xs) == 0 {
		return math.Inf(-1)
	}
	if floats.Max(xs) == math.Inf(-1) {
		return math.Inf(-1)
	}
	return floats.LogSumExp(xs)
}

// LogMeanExp returns log(mean(exp(xs))): the log of the arithmetic mean of
// the densities whose logs are xs.
func LogMeanExp(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return LogSumExp(xs) - math.Log(float64(len(xs)))
}

// SampleLogWeights draws an index with probability proportional to
// exp(logWeights[i]). When no weight is finite it draws uniformly.
func SampleLogWeights(rng *rand.Rand, logWeights []float64) int {
	if len(logWeights) == 1 {
		return 0
	}
	top := floats.Max(logWeights)
	if math.IsInf(top, -1) || math.IsNaN(top) {
		return rng.Intn(len(logWeights))
	}

	weights := make([]float64, len(logWeights))
	for i, lw := range logWeights {
		weights[i] = math.Exp(lw - top)
	}
	return int(distuv.NewCategorical(weights, rng).Rand())
}

// Linspace returns n evenly spaced points on [lo, hi].
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 || lo == hi {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

// LogLinspace returns n points on [lo, hi] evenly spaced in log space.
// Both bounds must be positive.
func LogLinspace(lo, hi float64, n int) []float64 {
	if n <= 1 || lo == hi {
		return []float64{lo}
	}
	return floats.LogSpan(make([]float64, n), lo, hi)
}
