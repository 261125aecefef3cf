// Package view implements a CrossCat view: a group of columns that share one
// Chinese Restaurant Process partition of rows into categories. Each column
// carries one conjugate primitive per category.
//
// Views are immutable. Every mutator returns a new *View that shares the
// columns it did not touch with the receiver.
package view

import (
	"maps"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
	"github.com/ajitpratap0/crosscat/pkg/gpm"
	"github.com/ajitpratap0/crosscat/pkg/stats"
)

// Latents is the row partition of a view.
type Latents struct {
	Alpha  float64           `json:"alpha" yaml:"alpha"`
	Counts map[string]int    `json:"counts" yaml:"counts"`
	Y      map[string]string `json:"y" yaml:"y"`
}

// Clone returns a deep copy of the latents.
func (l Latents) Clone() Latents {
	return Latents{
		Alpha:  l.Alpha,
		Counts: maps.Clone(l.Counts),
		Y:      maps.Clone(l.Y),
	}
}

// View is a set of columns clustered by a shared row partition.
type View struct {
	columns map[string]*Column
	latents Latents
	rt      *gpm.Runtime
}

var (
	_ gpm.Incorporator = (*View)(nil)
	_ gpm.Scorer       = (*View)(nil)
)

// NewEmpty returns a view without rows or columns.
func NewEmpty(alpha float64, rt *gpm.Runtime) (*View, error) {
	return FromLatents(Latents{Alpha: alpha}, rt)
}

// FromLatents returns a view without columns whose row partition is given by
// latents. Category counts are derived from the assignment; latents.Counts
// is ignored.
func FromLatents(latents Latents, rt *gpm.Runtime) (*View, error) {
	if latents.Alpha <= 0 || math.IsNaN(latents.Alpha) || math.IsInf(latents.Alpha, 0) {
		return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation,
			"view alpha must be positive and finite, got %v", latents.Alpha)
	}
	v := &View{
		columns: map[string]*Column{},
		latents: Latents{
			Alpha:  latents.Alpha,
			Counts: map[string]int{},
			Y:      map[string]string{},
		},
		rt: rt.Resolve(),
	}
	for rowID, category := range latents.Y {
		if category == "" {
			return nil, crosscaterrors.New(crosscaterrors.ErrorTypeValidation, "empty category name").
				WithDetail("row_id", rowID)
		}
		v.latents.Y[rowID] = category
		v.latents.Counts[category]++
	}
	return v, nil
}

// Variables returns the sorted column names of the view.
func (v *View) Variables() []string {
	return slices.Sorted(maps.Keys(v.columns))
}

// Column returns a column of the view.
func (v *View) Column(name string) (*Column, bool) {
	c, ok := v.columns[name]
	return c, ok
}

// Columns returns the view's columns keyed by name. The map is a copy; the
// columns are shared immutable values.
func (v *View) Columns() map[string]*Column {
	return maps.Clone(v.columns)
}

// Latents returns a copy of the view's row partition.
func (v *View) Latents() Latents { return v.latents.Clone() }

// Alpha returns the view's CRP concentration.
func (v *View) Alpha() float64 { return v.latents.Alpha }

// RowIDs returns the sorted identifiers of the rows assigned in this view.
func (v *View) RowIDs() []string {
	return slices.Sorted(maps.Keys(v.latents.Y))
}

// HasRow reports whether a row is assigned in this view.
func (v *View) HasRow(rowID string) bool {
	_, ok := v.latents.Y[rowID]
	return ok
}

// NumRows returns the number of assigned rows.
func (v *View) NumRows() int { return len(v.latents.Y) }

// Categories returns the sorted names of the non-empty categories.
func (v *View) Categories() []string {
	return slices.Sorted(maps.Keys(v.latents.Counts))
}

func (v *View) clone() *View {
	return &View{
		columns: maps.Clone(v.columns),
		latents: v.latents.Clone(),
		rt:      v.rt,
	}
}

// coerce returns the owned entries of row converted to column value types.
func (v *View) coerce(row gpm.Row) (gpm.Row, error) {
	out := make(gpm.Row, len(row))
	for name, raw := range row {
		c, ok := v.columns[name]
		if !ok || raw == nil {
			continue
		}
		val, err := c.Coerce(raw)
		if err != nil {
			return nil, err
		}
		out[name] = val
	}
	return out, nil
}

// rowLogpdf returns the joint log density of owned values within a category.
func (v *View) rowLogpdf(category string, row gpm.Row) float64 {
	lp := 0.0
	for _, name := range row.Keys() {
		lp += v.columns[name].Logpdf(category, row[name])
	}
	return lp
}

// posterior returns the candidate categories, existing ones in sorted order
// followed by the fresh category "", with their log weights given the owned
// conditions.
func (v *View) posterior(conditions gpm.Row) ([]string, []float64) {
	n := len(v.latents.Y)
	categories := append(v.Categories(), "")
	weights := make([]float64, len(categories))
	for i, category := range categories {
		weights[i] = stats.CRPLogWeight(v.latents.Counts[category], n, v.latents.Alpha) +
			v.rowLogpdf(category, conditions)
	}
	return categories, weights
}

// Logpdf returns the log density of the owned targets given the owned
// conditions, marginalizing the category of a hypothetical new row.
// Targets the view does not own are ignored.
func (v *View) Logpdf(targets, conditions gpm.Row) (float64, error) {
	if err := gpm.CheckDisjointRows(targets, conditions); err != nil {
		return 0, err
	}
	t, err := v.coerce(targets)
	if err != nil {
		return 0, err
	}
	if len(t) == 0 {
		return 0, nil
	}
	c, err := v.coerce(conditions)
	if err != nil {
		return 0, err
	}

	categories, weights := v.posterior(c)
	joint := make([]float64, len(categories))
	for i, category := range categories {
		joint[i] = weights[i] + v.rowLogpdf(category, t)
	}
	return stats.LogSumExp(joint) - stats.LogSumExp(weights), nil
}

// Simulate draws the owned targets given the owned conditions. Targets the
// view does not own are omitted from the result.
func (v *View) Simulate(targets []string, conditions gpm.Row) (gpm.Row, error) {
	if err := gpm.CheckDisjoint(targets, conditions); err != nil {
		return nil, err
	}
	owned := make([]string, 0, len(targets))
	for _, name := range targets {
		if _, ok := v.columns[name]; ok {
			owned = append(owned, name)
		}
	}
	sample := gpm.Row{}
	if len(owned) == 0 {
		return sample, nil
	}
	c, err := v.coerce(conditions)
	if err != nil {
		return nil, err
	}

	categories, weights := v.posterior(c)
	category := categories[stats.SampleLogWeights(v.rt.Rand, weights)]
	for _, name := range owned {
		sample[name] = v.columns[name].Simulate(category, v.rt.Rand)
	}
	return sample, nil
}

// IncorporateByRowID folds the owned entries of row into the view under
// rowID. A row already assigned keeps its category and must not yet have
// values in the columns being written; an unknown row is assigned by
// sampling the category posterior, possibly opening a fresh category.
func (v *View) IncorporateByRowID(rowID string, row gpm.Row) (*View, error) {
	if rowID == "" {
		return nil, crosscaterrors.New(crosscaterrors.ErrorTypeValidation, "row id is required")
	}
	values, err := v.coerce(row)
	if err != nil {
		return nil, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeData, "cannot incorporate row").
			WithDetail("row_id", rowID)
	}

	out := v.clone()
	category, known := v.latents.Y[rowID]
	if known {
		for _, name := range values.Keys() {
			if _, dup := v.columns[name].Value(rowID); dup {
				return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypePrecondition,
					"row %s already has a value for %s", rowID, name).
					WithDetail("row_id", rowID).
					WithDetail("column", name)
			}
		}
	} else {
		categories, weights := v.posterior(values)
		category = categories[stats.SampleLogWeights(v.rt.Rand, weights)]
		if category == "" {
			category = v.rt.IDs.Next("category")
			v.rt.Logger.Debug("opened category",
				zap.String("category", category),
				zap.String("row_id", rowID))
		}
		out.latents.Y[rowID] = category
		out.latents.Counts[category]++
	}

	for _, name := range values.Keys() {
		out.columns[name] = out.columns[name].incorporate(rowID, category, values[name])
	}
	return out, nil
}

// UnincorporateByRowID removes a row's values and category assignment.
// A category left without rows is deleted.
func (v *View) UnincorporateByRowID(rowID string) (*View, error) {
	category, ok := v.latents.Y[rowID]
	if !ok {
		return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypePrecondition,
			"row %s is not incorporated", rowID).
			WithDetail("row_id", rowID)
	}
	out := v.clone()
	for name, c := range out.columns {
		out.columns[name] = c.unincorporate(rowID, category)
	}
	delete(out.latents.Y, rowID)
	out.latents.Counts[category]--
	if out.latents.Counts[category] == 0 {
		delete(out.latents.Counts, category)
	}
	return out, nil
}

// FindRows returns, in sorted order, the identifiers of the rows whose
// values in the owned columns equal the owned entries of row.
func (v *View) FindRows(row gpm.Row) ([]string, error) {
	values, err := v.coerce(row)
	if err != nil {
		return nil, err
	}
	var matches []string
	for _, rowID := range v.RowIDs() {
		if v.rowEquals(rowID, values) {
			matches = append(matches, rowID)
		}
	}
	return matches, nil
}

// rowEquals reports whether the stored owned values of rowID are exactly
// values, including which columns are missing.
func (v *View) rowEquals(rowID string, values gpm.Row) bool {
	for name, c := range v.columns {
		stored, has := c.Value(rowID)
		want, wanted := values[name]
		if has != wanted || (has && stored != want) {
			return false
		}
	}
	return true
}

// Incorporate folds row into the view under a freshly allocated row id.
func (v *View) Incorporate(row gpm.Row) (gpm.GPM, error) {
	return v.IncorporateByRowID(v.rt.IDs.Next("row"), row)
}

// Unincorporate removes the first row, in identifier order, whose owned
// values equal those of row.
func (v *View) Unincorporate(row gpm.Row) (gpm.GPM, error) {
	matches, err := v.FindRows(row)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, crosscaterrors.New(crosscaterrors.ErrorTypePrecondition, "row was never incorporated").
			WithDetail("row", row)
	}
	return v.UnincorporateByRowID(matches[0])
}

// IncorporateColumn adds a column, re-bucketing its data by the view's row
// partition. Every observed row of the column must be assigned in the view.
func (v *View) IncorporateColumn(c *Column) (*View, error) {
	if _, ok := v.columns[c.Name()]; ok {
		return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypePrecondition,
			"column %s is already in the view", c.Name()).
			WithDetail("column", c.Name())
	}
	moved, err := c.partition(v.latents.Y)
	if err != nil {
		return nil, err
	}
	out := v.clone()
	out.columns[c.Name()] = moved
	return out, nil
}

// UnincorporateColumn removes a column from the view.
func (v *View) UnincorporateColumn(name string) (*View, error) {
	if _, ok := v.columns[name]; !ok {
		return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeNotFound,
			"column %s is not in the view", name).
			WithDetail("column", name)
	}
	out := v.clone()
	delete(out.columns, name)
	return out, nil
}

// WithColumns returns the view with the given columns replaced. Every
// column must already belong to the view.
func (v *View) WithColumns(columns map[string]*Column) (*View, error) {
	out := v.clone()
	for name, c := range columns {
		if _, ok := v.columns[name]; !ok {
			return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeNotFound,
				"column %s is not in the view", name).
				WithDetail("column", name)
		}
		out.columns[name] = c
	}
	return out, nil
}

// UpdateHyperGrids recomputes the hyper-grid of every column from its
// current data.
func (v *View) UpdateHyperGrids() *View {
	out := v.clone()
	out.columns = UpdateHyperGrids(v.columns)
	return out
}

// LogpdfScore returns the log marginal likelihood of the view's data given
// its row partition. The CRP prior of the partition is not included.
func (v *View) LogpdfScore() float64 {
	score := 0.0
	for _, name := range v.Variables() {
		score += v.columns[name].LogpdfScore()
	}
	return score
}
