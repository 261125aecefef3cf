package primitive

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// BetaBernoulli is a bernoulli likelihood with a Beta(alpha, beta) prior.
type BetaBernoulli struct {
	alpha, beta float64
	n, x        int // trials and successes
}

// StatType implements Primitive.
func (p BetaBernoulli) StatType() StatType { return Bernoulli }

func (p BetaBernoulli) probTrue() float64 {
	return (float64(p.x) + p.alpha) / (float64(p.n) + p.alpha + p.beta)
}

// Logpdf implements Primitive.
func (p BetaBernoulli) Logpdf(x any) float64 {
	b, ok := x.(bool)
	if !ok {
		return math.Inf(-1)
	}
	if b {
		return math.Log(p.probTrue())
	}
	return math.Log1p(-p.probTrue())
}

// Simulate implements Primitive.
func (p BetaBernoulli) Simulate(rng *rand.Rand) any {
	return distuv.Bernoulli{P: p.probTrue(), Src: rng}.Rand() == 1
}

// Incorporate implements Primitive.
func (p BetaBernoulli) Incorporate(x any) Primitive {
	p.n++
	if b, _ := x.(bool); b {
		p.x++
	}
	return p
}

// Unincorporate implements Primitive.
func (p BetaBernoulli) Unincorporate(x any) Primitive {
	p.n--
	if b, _ := x.(bool); b {
		p.x--
	}
	return p
}

// LogpdfScore implements Primitive.
func (p BetaBernoulli) LogpdfScore() float64 {
	successes := float64(p.x)
	failures := float64(p.n - p.x)
	return mathext.Lbeta(successes+p.alpha, failures+p.beta) - mathext.Lbeta(p.alpha, p.beta)
}

// Count implements Primitive.
func (p BetaBernoulli) Count() int { return p.n }

// Hypers implements Primitive.
func (p BetaBernoulli) Hypers() Hypers {
	return Hypers{"alpha": p.alpha, "beta": p.beta}
}

// WithHypers implements Primitive.
func (p BetaBernoulli) WithHypers(h Hypers) Primitive {
	if v, ok := h["alpha"]; ok {
		p.alpha = v
	}
	if v, ok := h["beta"]; ok {
		p.beta = v
	}
	return p
}
