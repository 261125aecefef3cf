// Package xcat implements the CrossCat model: a two-level nonparametric
// mixture that partitions columns into views and, within each view,
// partitions rows into categories.
//
// The model composes its views under cross-view independence. Logpdf sums
// the views' log densities and Simulate merges their independent draws.
//
// # Latent state
//
// The global latents are the column partition: Z maps every column to the
// identifier of its view and Counts holds the number of columns per view.
// Both are updated together by every column move, so
//
//	Counts[v] == |{name : Z[name] == v}|
//
// holds for every view v of every snapshot. Per-view row partitions live in
// the views themselves (see package view).
//
// # Snapshots
//
// An *XCat is immutable. Mutations return a new snapshot that shares every
// untouched view with the receiver.
package xcat

import (
	"maps"
	"slices"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
	"github.com/ajitpratap0/crosscat/pkg/gpm"
	"github.com/ajitpratap0/crosscat/pkg/metrics"
	"github.com/ajitpratap0/crosscat/pkg/view"
)

// GlobalLatents is the column partition of a model.
type GlobalLatents struct {
	Alpha  float64           `json:"alpha" yaml:"alpha"`
	Counts map[string]int    `json:"counts" yaml:"counts"`
	Z      map[string]string `json:"z" yaml:"z"`
}

// Clone returns a deep copy.
func (g GlobalLatents) Clone() GlobalLatents {
	return GlobalLatents{
		Alpha:  g.Alpha,
		Counts: maps.Clone(g.Counts),
		Z:      maps.Clone(g.Z),
	}
}

// Latents is the complete latent state: the column partition plus the row
// partition of every view, keyed by view identifier.
type Latents struct {
	Global GlobalLatents           `json:"global" yaml:"global"`
	Local  map[string]view.Latents `json:"local" yaml:"local"`
}

// Data holds raw rows keyed by row identifier.
type Data map[string]gpm.Row

// XCat is a CrossCat model snapshot.
type XCat struct {
	views   map[string]*view.View
	latents GlobalLatents
	opts    view.Options
	rt      *gpm.Runtime
}

var (
	_ gpm.Incorporator = (*XCat)(nil)
	_ gpm.Scorer       = (*XCat)(nil)
)

func (x *XCat) clone() *XCat {
	return &XCat{
		views:   maps.Clone(x.views),
		latents: x.latents.Clone(),
		opts:    x.opts,
		rt:      x.rt,
	}
}

// Alpha returns the concentration of the column partition.
func (x *XCat) Alpha() float64 { return x.latents.Alpha }

// Variables returns the sorted names of all modeled columns.
func (x *XCat) Variables() []string {
	return slices.Sorted(maps.Keys(x.latents.Z))
}

// ViewIDs returns the sorted view identifiers, empty views included.
func (x *XCat) ViewIDs() []string {
	return slices.Sorted(maps.Keys(x.views))
}

// View returns a view by identifier.
func (x *XCat) View(id string) (*view.View, bool) {
	v, ok := x.views[id]
	return v, ok
}

// ViewOf returns the identifier of the view owning a column.
func (x *XCat) ViewOf(name string) (string, bool) {
	id, ok := x.latents.Z[name]
	return id, ok
}

// Column returns a modeled column.
func (x *XCat) Column(name string) (*view.Column, bool) {
	id, ok := x.latents.Z[name]
	if !ok {
		return nil, false
	}
	return x.views[id].Column(name)
}

// GlobalLatents returns a copy of the column partition.
func (x *XCat) GlobalLatents() GlobalLatents { return x.latents.Clone() }

// Latents returns a copy of the complete latent state.
func (x *XCat) Latents() Latents {
	local := make(map[string]view.Latents, len(x.views))
	for id, v := range x.views {
		local[id] = v.Latents()
	}
	return Latents{Global: x.latents.Clone(), Local: local}
}

// RowIDs returns the sorted identifiers of all incorporated rows.
func (x *XCat) RowIDs() []string {
	seen := map[string]struct{}{}
	for _, v := range x.views {
		for _, id := range v.RowIDs() {
			seen[id] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// hasRow reports whether any view has assigned rowID.
func (x *XCat) hasRow(rowID string) bool {
	for _, v := range x.views {
		if v.HasRow(rowID) {
			return true
		}
	}
	return false
}

// checkKnown fails when a row names a variable no view models.
func (x *XCat) checkKnown(rows ...gpm.Row) error {
	for _, row := range rows {
		for _, name := range row.Keys() {
			if _, ok := x.latents.Z[name]; !ok {
				return crosscaterrors.Newf(crosscaterrors.ErrorTypeNotFound, "unknown variable %s", name).
					WithDetail("variable", name)
			}
		}
	}
	return nil
}

// Logpdf returns the joint log density of targets given conditions, the
// sum of every view's log density over the variables it owns.
func (x *XCat) Logpdf(targets, conditions gpm.Row) (float64, error) {
	if err := gpm.CheckDisjointRows(targets, conditions); err != nil {
		return 0, err
	}
	if err := x.checkKnown(targets, conditions); err != nil {
		return 0, err
	}
	timer := metrics.NewTimer(metrics.OpLogpdf)
	defer timer.ObserveDuration()

	total := 0.0
	for _, id := range x.ViewIDs() {
		lp, err := x.views[id].Logpdf(targets, conditions)
		if err != nil {
			return 0, err
		}
		total += lp
	}
	return total, nil
}

// Simulate draws targets given conditions, one independent draw per view,
// merged into a single row.
func (x *XCat) Simulate(targets []string, conditions gpm.Row) (gpm.Row, error) {
	if err := gpm.CheckDisjoint(targets, conditions); err != nil {
		return nil, err
	}
	asRow := make(gpm.Row, len(targets))
	for _, name := range targets {
		asRow[name] = true
	}
	if err := x.checkKnown(asRow, conditions); err != nil {
		return nil, err
	}
	timer := metrics.NewTimer(metrics.OpSimulate)
	defer timer.ObserveDuration()

	sample := make(gpm.Row, len(targets))
	for _, id := range x.ViewIDs() {
		part, err := x.views[id].Simulate(targets, conditions)
		if err != nil {
			return nil, err
		}
		for name, value := range part {
			sample[name] = value
		}
	}
	return sample, nil
}

// LogpdfScore returns the sum of the views' log marginal likelihoods.
func (x *XCat) LogpdfScore() float64 {
	score := 0.0
	for _, id := range x.ViewIDs() {
		score += x.views[id].LogpdfScore()
	}
	return score
}

// ViewLogpdfScores returns, for every view, the score the view would have
// with column incorporated. No view is modified. A view currently owning a
// column of the same name is scored with that column replaced.
func (x *XCat) ViewLogpdfScores(column *view.Column) (map[string]float64, error) {
	scores := make(map[string]float64, len(x.views))
	for _, id := range x.ViewIDs() {
		v := x.views[id]
		if _, owned := v.Column(column.Name()); owned {
			var err error
			if v, err = v.UnincorporateColumn(column.Name()); err != nil {
				return nil, err
			}
		}
		candidate, err := v.IncorporateColumn(column)
		if err != nil {
			return nil, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypePrecondition, "cannot score column").
				WithDetail("view", id).
				WithDetail("column", column.Name())
		}
		scores[id] = candidate.LogpdfScore()
	}
	return scores, nil
}
