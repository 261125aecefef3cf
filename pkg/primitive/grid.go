package primitive

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ajitpratap0/crosscat/pkg/stats"
)

// DefaultGridPoints is the number of candidate values per hyperparameter.
const DefaultGridPoints = 30

// Grid maps each hyperparameter to its discretized candidate values in
// ascending order.
type Grid map[string][]float64

// HyperGrid derives the hyperparameter grid of a family from the observed
// values of a column. It is a pure function of its inputs.
func HyperGrid(st StatType, values []any, points int) Grid {
	if points <= 0 {
		points = DefaultGridPoints
	}
	n := math.Max(float64(len(values)), 1)

	switch st {
	case Bernoulli:
		return Grid{
			"alpha": stats.LogLinspace(1, n, points),
			"beta":  stats.LogLinspace(1, n, points),
		}
	case Categorical:
		return Grid{"alpha": stats.LogLinspace(1, n, points)}
	case Gaussian:
		xs := make([]float64, 0, len(values))
		for _, v := range values {
			if f, ok := toFloat(v); ok {
				xs = append(xs, f)
			}
		}
		lo, hi := 0.0, 0.0
		ssqdev := 0.0
		if len(xs) > 0 {
			lo, hi = floats.Min(xs), floats.Max(xs)
			mean := floats.Sum(xs) / float64(len(xs))
			for _, x := range xs {
				ssqdev += (x - mean) * (x - mean)
			}
		}
		ssqdev = math.Max(ssqdev, 0.01)
		return Grid{
			"m":  stats.Linspace(lo, hi, points),
			"r":  stats.LogLinspace(1/n, n, points),
			"s":  stats.LogLinspace(ssqdev/100, ssqdev, points),
			"nu": stats.LogLinspace(1, n, points),
		}
	default:
		return Grid{}
	}
}

// Clamp returns h with every hyperparameter that has a grid moved into the
// grid's range. Values already inside the range are kept.
func (g Grid) Clamp(h Hypers) Hypers {
	out := h.Clone()
	for name, candidates := range g {
		v, ok := out[name]
		if !ok || len(candidates) == 0 {
			continue
		}
		lo, hi := candidates[0], candidates[len(candidates)-1]
		out[name] = math.Min(math.Max(v, lo), hi)
	}
	return out
}

// Clone returns a deep copy of g.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for k, v := range g {
		out[k] = append([]float64(nil), v...)
	}
	return out
}
