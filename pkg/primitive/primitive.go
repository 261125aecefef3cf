// Package primitive implements the per-column distribution families used
// inside CrossCat categories. The set of statistical types is closed: every
// family is a conjugate model whose posterior predictive, marginal
// likelihood and hyper-grid are computed in closed form.
//
//	p, _ := primitive.New(primitive.Gaussian, primitive.DefaultHypers(primitive.Gaussian), nil)
//	p = p.Incorporate(1.5).Incorporate(2.0)
//	logp := p.Logpdf(1.75)
//
// Primitives are values: Incorporate and Unincorporate return new
// primitives and never modify the receiver.
package primitive

import (
	"fmt"
	"slices"
	"strconv"

	"golang.org/x/exp/rand"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
)

// StatType tags a primitive family.
type StatType string

const (
	// Bernoulli is the beta-bernoulli family over bool values
	Bernoulli StatType = "bernoulli"
	// Categorical is the dirichlet-categorical family over declared labels
	Categorical StatType = "categorical"
	// Gaussian is the normal-inverse-gamma family over real values
	Gaussian StatType = "gaussian"
)

// StatTypes lists every supported family.
var StatTypes = []StatType{Bernoulli, Categorical, Gaussian}

// Valid reports whether st names a supported family.
func (st StatType) Valid() bool {
	return slices.Contains(StatTypes, st)
}

// Hypers holds the hyperparameters of a primitive by name.
type Hypers map[string]float64

// Clone returns a copy of h.
func (h Hypers) Clone() Hypers {
	out := make(Hypers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Primitive is a single-variable conjugate model with sufficient statistics.
type Primitive interface {
	// StatType returns the family tag.
	StatType() StatType
	// Logpdf returns the posterior predictive log density of x. Values of
	// the wrong type or outside the support have density -Inf.
	Logpdf(x any) float64
	// Simulate draws from the posterior predictive.
	Simulate(rng *rand.Rand) any
	// Incorporate returns a primitive with x added to its statistics.
	Incorporate(x any) Primitive
	// Unincorporate returns a primitive with x removed from its statistics.
	// x must have been incorporated.
	Unincorporate(x any) Primitive
	// LogpdfScore returns the log marginal likelihood of incorporated values.
	LogpdfScore() float64
	// Count returns the number of incorporated values.
	Count() int
	// Hypers returns a copy of the hyperparameters.
	Hypers() Hypers
	// WithHypers returns the primitive with replaced hyperparameters and
	// unchanged statistics.
	WithHypers(h Hypers) Primitive
}

// New creates an empty primitive of the given family. Missing hyperparameters
// take their defaults. Categorical requires a non-empty option list.
func New(st StatType, hypers Hypers, options []string) (Primitive, error) {
	h := DefaultHypers(st)
	if h == nil {
		return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation, "unknown statistical type %q", st)
	}
	for k, v := range hypers {
		if _, ok := h[k]; !ok {
			return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation,
				"unknown hyperparameter %q for %s", k, st)
		}
		if v <= 0 && !(st == Gaussian && k == "m") {
			return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation,
				"hyperparameter %q for %s must be positive, got %v", k, st, v)
		}
		h[k] = v
	}

	switch st {
	case Bernoulli:
		return BetaBernoulli{alpha: h["alpha"], beta: h["beta"]}, nil
	case Categorical:
		if len(options) == 0 {
			return nil, crosscaterrors.New(crosscaterrors.ErrorTypeValidation, "categorical column requires options")
		}
		return DirichletCategorical{alpha: h["alpha"], options: slices.Clone(options)}, nil
	default:
		return NormalInverseGamma{m: h["m"], r: h["r"], s: h["s"], nu: h["nu"]}, nil
	}
}

// DefaultHypers returns the default hyperparameters of a family, or nil for
// an unknown family.
func DefaultHypers(st StatType) Hypers {
	switch st {
	case Bernoulli:
		return Hypers{"alpha": 1, "beta": 1}
	case Categorical:
		return Hypers{"alpha": 1}
	case Gaussian:
		return Hypers{"m": 0, "r": 1, "s": 1, "nu": 1}
	default:
		return nil
	}
}

// Coerce converts an input value to the canonical value type of a family:
// bool for bernoulli, a declared label for categorical and float64 for
// gaussian.
func Coerce(st StatType, options []string, v any) (any, error) {
	switch st {
	case Bernoulli:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return nil, coerceError(st, v, err)
			}
			return b, nil
		default:
			if f, ok := toFloat(v); ok && (f == 0 || f == 1) {
				return f == 1, nil
			}
		}
	case Categorical:
		var label string
		switch x := v.(type) {
		case string:
			label = x
		case bool:
			label = strconv.FormatBool(x)
		default:
			f, ok := toFloat(v)
			if !ok {
				return nil, coerceError(st, v, nil)
			}
			label = strconv.FormatFloat(f, 'f', -1, 64)
		}
		if slices.Contains(options, label) {
			return label, nil
		}
		return nil, coerceError(st, v, fmt.Errorf("label not in options %v", options))
	case Gaussian:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, coerceError(st, v, err)
			}
			return f, nil
		}
	default:
		return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation, "unknown statistical type %q", st)
	}
	return nil, coerceError(st, v, nil)
}

func coerceError(st StatType, v any, cause error) error {
	msg := fmt.Sprintf("value %v (%T) is not valid for %s", v, v, st)
	if cause != nil {
		return crosscaterrors.Wrap(cause, crosscaterrors.ErrorTypeData, msg)
	}
	return crosscaterrors.New(crosscaterrors.ErrorTypeData, msg)
}

// toFloat converts Go numeric kinds to float64.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}

// ToFloat exposes the numeric conversion used by Coerce.
func ToFloat(v any) (float64, bool) {
	return toFloat(v)
}
