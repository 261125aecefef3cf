package primitive

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// minScatter keeps the posterior scale positive under floating-point
// cancellation.
const minScatter = 1e-300

// NormalInverseGamma is a normal likelihood with unknown mean and precision
// under the conjugate prior
//
//	rho ~ Gamma(nu/2, rate=s/2),  mu | rho ~ Normal(m, 1/(r*rho))
type NormalInverseGamma struct {
	m, r, s, nu float64
	n           int
	sumX, sumX2 float64
}

// StatType implements Primitive.
func (p NormalInverseGamma) StatType() StatType { return Gaussian }

// posterior returns the updated (m, r, s, nu) after n observations.
func (p NormalInverseGamma) posterior(n int, sumX, sumX2 float64) (mn, rn, sn, nun float64) {
	rn = p.r + float64(n)
	nun = p.nu + float64(n)
	mn = (p.r*p.m + sumX) / rn
	sn = p.s + sumX2 + p.r*p.m*p.m - rn*mn*mn
	if sn < minScatter {
		sn = minScatter
	}
	return mn, rn, sn, nun
}

// logZ is the log normalizer of the prior with parameters (r, s, nu).
func logZ(r, s, nu float64) float64 {
	lg, _ := math.Lgamma(nu / 2)
	return (nu+1)/2*math.Ln2 + 0.5*math.Log(math.Pi) - 0.5*math.Log(r) - nu/2*math.Log(s) + lg
}

func (p NormalInverseGamma) logMarginal(n int, sumX, sumX2 float64) float64 {
	_, rn, sn, nun := p.posterior(n, sumX, sumX2)
	return -float64(n)/2*math.Log(2*math.Pi) + logZ(rn, sn, nun) - logZ(p.r, p.s, p.nu)
}

// Logpdf implements Primitive.
func (p NormalInverseGamma) Logpdf(x any) float64 {
	v, ok := toFloat(x)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return math.Inf(-1)
	}
	with := p.logMarginal(p.n+1, p.sumX+v, p.sumX2+v*v)
	return with - p.logMarginal(p.n, p.sumX, p.sumX2)
}

// Simulate implements Primitive.
func (p NormalInverseGamma) Simulate(rng *rand.Rand) any {
	mn, rn, sn, nun := p.posterior(p.n, p.sumX, p.sumX2)
	rho := distuv.Gamma{Alpha: nun / 2, Beta: sn / 2, Src: rng}.Rand()
	mu := distuv.Normal{Mu: mn, Sigma: 1 / math.Sqrt(rho*rn), Src: rng}.Rand()
	return distuv.Normal{Mu: mu, Sigma: 1 / math.Sqrt(rho), Src: rng}.Rand()
}

// Incorporate implements Primitive.
func (p NormalInverseGamma) Incorporate(x any) Primitive {
	v, _ := toFloat(x)
	p.n++
	p.sumX += v
	p.sumX2 += v * v
	return p
}

// Unincorporate implements Primitive.
func (p NormalInverseGamma) Unincorporate(x any) Primitive {
	v, _ := toFloat(x)
	p.n--
	p.sumX -= v
	p.sumX2 -= v * v
	if p.n == 0 {
		p.sumX, p.sumX2 = 0, 0
	}
	return p
}

// LogpdfScore implements Primitive.
func (p NormalInverseGamma) LogpdfScore() float64 {
	return p.logMarginal(p.n, p.sumX, p.sumX2)
}

// Count implements Primitive.
func (p NormalInverseGamma) Count() int { return p.n }

// Hypers implements Primitive.
func (p NormalInverseGamma) Hypers() Hypers {
	return Hypers{"m": p.m, "r": p.r, "s": p.s, "nu": p.nu}
}

// WithHypers implements Primitive.
func (p NormalInverseGamma) WithHypers(h Hypers) Primitive {
	if v, ok := h["m"]; ok {
		p.m = v
	}
	if v, ok := h["r"]; ok {
		p.r = v
	}
	if v, ok := h["s"]; ok {
		p.s = v
	}
	if v, ok := h["nu"]; ok {
		p.nu = v
	}
	return p
}
