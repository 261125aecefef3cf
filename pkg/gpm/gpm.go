// Package gpm defines the generative population model contract shared by
// every model in this module, the Row type used to exchange observations,
// and the Runtime carrying injected collaborators (random source, identifier
// allocator, logger).
//
// # Contract
//
// A GPM answers two queries over its variables:
//
//	logp, err := model.Logpdf(gpm.Row{"x": 1.5}, gpm.Row{"y": true})
//	sample, err := model.Simulate([]string{"x"}, gpm.Row{"y": true})
//
// Targets and conditions must name disjoint variables; violations fail with
// an ErrorTypeOverlappingVariables error before any work is done.
//
// Models are immutable values. Incorporate and Unincorporate return new
// models and never modify the receiver, so independent holders of a model
// never observe each other's writes.
package gpm

import (
	"maps"
	"slices"
	"sort"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
)

// Row maps variable names to observed values. Missing values are absent
// keys; a nil value is treated as missing.
type Row map[string]any

// GPM is the query side of the contract.
type GPM interface {
	// Logpdf returns the natural-log density of targets given conditions.
	Logpdf(targets, conditions Row) (float64, error)
	// Simulate draws one joint sample of exactly the targets given conditions.
	Simulate(targets []string, conditions Row) (Row, error)
	// Variables returns the sorted names of all modeled variables.
	Variables() []string
}

// Incorporator is a GPM that can fold observations into its state.
type Incorporator interface {
	GPM
	// Incorporate returns a new model with row folded into its statistics.
	Incorporate(row Row) (GPM, error)
	// Unincorporate returns a new model with row removed. Removing a row
	// that was never incorporated is a precondition violation.
	Unincorporate(row Row) (GPM, error)
}

// Scorer reports the log-likelihood of all incorporated data under the
// current latent state.
type Scorer interface {
	LogpdfScore() float64
}

// CheckDisjoint fails with an ErrorTypeOverlappingVariables error when any
// target is also a condition.
func CheckDisjoint(targets []string, conditions Row) error {
	var overlap []string
	for _, t := range targets {
		if _, ok := conditions[t]; ok {
			overlap = append(overlap, t)
		}
	}
	if len(overlap) == 0 {
		return nil
	}
	return crosscaterrors.NewOverlappingVariables(slices.Clone(targets), conditions.Keys(), overlap)
}

// CheckDisjointRows is CheckDisjoint for targets given as a Row.
func CheckDisjointRows(targets, conditions Row) error {
	return CheckDisjoint(targets.Keys(), conditions)
}

// Keys returns the sorted names present in the row.
func (r Row) Keys() []string {
	keys := make([]string, 0, len(r))
	for k, v := range r {
		if v != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the row without nil entries.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// Select returns the entries of r whose names are in vars.
func (r Row) Select(vars []string) Row {
	out := make(Row, len(vars))
	for _, name := range vars {
		if v, ok := r[name]; ok && v != nil {
			out[name] = v
		}
	}
	return out
}

// Merge returns a new row with the entries of r overlaid by other.
func (r Row) Merge(other Row) Row {
	out := r.Clone()
	for k, v := range other {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// Union returns the sorted union of the given name sets.
func Union(sets ...[]string) []string {
	seen := make(map[string]struct{})
	for _, s := range sets {
		for _, name := range s {
			seen[name] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Difference returns the sorted names of a that are not in any of the
// excluded sets.
func Difference(a []string, exclude ...[]string) []string {
	drop := make(map[string]struct{})
	for _, s := range exclude {
		for _, name := range s {
			drop[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(a))
	for _, name := range a {
		if _, ok := drop[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}

// Intersect returns the sorted names present in both a and b.
func Intersect(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, name := range b {
		in[name] = struct{}{}
	}
	var out []string
	for _, name := range a {
		if _, ok := in[name]; ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}
