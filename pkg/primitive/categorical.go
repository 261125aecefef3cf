package primitive

import (
	"math"
	"slices"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// DirichletCategorical is a categorical likelihood over a fixed option list
// with a symmetric Dirichlet(alpha) prior.
type DirichletCategorical struct {
	alpha   float64
	options []string
	counts  map[string]int
	n       int
}

// StatType implements Primitive.
func (p DirichletCategorical) StatType() StatType { return Categorical }

// Options returns the declared labels.
func (p DirichletCategorical) Options() []string { return slices.Clone(p.options) }

// Logpdf implements Primitive.
func (p DirichletCategorical) Logpdf(x any) float64 {
	label, ok := x.(string)
	if !ok || !slices.Contains(p.options, label) {
		return math.Inf(-1)
	}
	k := float64(len(p.options))
	return math.Log(float64(p.counts[label])+p.alpha) - math.Log(float64(p.n)+k*p.alpha)
}

// Simulate implements Primitive.
func (p DirichletCategorical) Simulate(rng *rand.Rand) any {
	weights := make([]float64, len(p.options))
	for i, label := range p.options {
		weights[i] = float64(p.counts[label]) + p.alpha
	}
	return p.options[int(distuv.NewCategorical(weights, rng).Rand())]
}

func (p DirichletCategorical) withCount(label string, delta int) DirichletCategorical {
	counts := make(map[string]int, len(p.counts)+1)
	for k, v := range p.counts {
		counts[k] = v
	}
	counts[label] += delta
	if counts[label] == 0 {
		delete(counts, label)
	}
	p.counts = counts
	p.n += delta
	return p
}

// Incorporate implements Primitive.
func (p DirichletCategorical) Incorporate(x any) Primitive {
	label, _ := x.(string)
	return p.withCount(label, 1)
}

// Unincorporate implements Primitive.
func (p DirichletCategorical) Unincorporate(x any) Primitive {
	label, _ := x.(string)
	return p.withCount(label, -1)
}

// LogpdfScore implements Primitive.
func (p DirichletCategorical) LogpdfScore() float64 {
	k := float64(len(p.options))
	lgKAlpha, _ := math.Lgamma(k * p.alpha)
	lgNKAlpha, _ := math.Lgamma(float64(p.n) + k*p.alpha)
	lgAlpha, _ := math.Lgamma(p.alpha)

	score := lgKAlpha - lgNKAlpha
	for _, c := range p.counts {
		lg, _ := math.Lgamma(float64(c) + p.alpha)
		score += lg - lgAlpha
	}
	return score
}

// Count implements Primitive.
func (p DirichletCategorical) Count() int { return p.n }

// Hypers implements Primitive.
func (p DirichletCategorical) Hypers() Hypers {
	return Hypers{"alpha": p.alpha}
}

// WithHypers implements Primitive.
func (p DirichletCategorical) WithHypers(h Hypers) Primitive {
	if v, ok := h["alpha"]; ok {
		p.alpha = v
	}
	return p
}
