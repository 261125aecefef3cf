package view

import (
	"maps"
	"slices"

	"golang.org/x/exp/rand"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
	"github.com/ajitpratap0/crosscat/pkg/primitive"
)

// ColumnSpec declares a modeled variable and its statistical type.
type ColumnSpec struct {
	Name     string             `json:"name" yaml:"name"`
	StatType primitive.StatType `json:"stattype" yaml:"stattype"`
	Options  []string           `json:"options,omitempty" yaml:"options,omitempty"`
}

// Column is one modeled variable inside a view: one primitive per category,
// the observed values keyed by row identifier, and the hyper-grid derived
// from those values. Columns are immutable; every mutator returns a copy.
type Column struct {
	spec       ColumnSpec
	hypers     primitive.Hypers
	grid       primitive.Grid
	gridPoints int
	proto      primitive.Primitive
	categories map[string]primitive.Primitive
	data       map[string]any
}

// NewColumn creates an empty column. Missing hyperparameters take the
// family defaults.
func NewColumn(spec ColumnSpec, hypers primitive.Hypers, gridPoints int) (*Column, error) {
	if spec.Name == "" {
		return nil, crosscaterrors.New(crosscaterrors.ErrorTypeValidation, "column name is required")
	}
	proto, err := primitive.New(spec.StatType, hypers, spec.Options)
	if err != nil {
		return nil, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeValidation, "invalid column").
			WithDetail("column", spec.Name)
	}
	c := &Column{
		spec:       spec,
		hypers:     proto.Hypers(),
		gridPoints: gridPoints,
		proto:      proto,
		categories: map[string]primitive.Primitive{},
		data:       map[string]any{},
	}
	c.grid = primitive.HyperGrid(spec.StatType, nil, gridPoints)
	return c, nil
}

// Name returns the variable name.
func (c *Column) Name() string { return c.spec.Name }

// Spec returns the column declaration.
func (c *Column) Spec() ColumnSpec { return c.spec }

// Hypers returns a copy of the hyperparameters.
func (c *Column) Hypers() primitive.Hypers { return c.hypers.Clone() }

// Grid returns a copy of the current hyper-grid.
func (c *Column) Grid() primitive.Grid { return c.grid.Clone() }

// Data returns a copy of the observed values keyed by row identifier.
func (c *Column) Data() map[string]any { return maps.Clone(c.data) }

// Value returns the observed value of a row, if any.
func (c *Column) Value(rowID string) (any, bool) {
	v, ok := c.data[rowID]
	return v, ok
}

// Coerce converts an input value to this column's value type.
func (c *Column) Coerce(v any) (any, error) {
	out, err := primitive.Coerce(c.spec.StatType, c.spec.Options, v)
	if err != nil {
		return nil, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeData, "invalid value").
			WithDetail("column", c.spec.Name)
	}
	return out, nil
}

// category returns the primitive of a category; unknown categories are fresh.
func (c *Column) category(name string) primitive.Primitive {
	if p, ok := c.categories[name]; ok {
		return p
	}
	return c.proto
}

// Logpdf returns the predictive log density of v within a category.
func (c *Column) Logpdf(category string, v any) float64 {
	return c.category(category).Logpdf(v)
}

// Simulate draws a value from a category's predictive distribution.
func (c *Column) Simulate(category string, rng *rand.Rand) any {
	return c.category(category).Simulate(rng)
}

// LogpdfScore returns the log marginal likelihood of the column's data
// under its current partition.
func (c *Column) LogpdfScore() float64 {
	score := 0.0
	for _, name := range slices.Sorted(maps.Keys(c.categories)) {
		score += c.categories[name].LogpdfScore()
	}
	return score
}

func (c *Column) clone() *Column {
	out := *c
	out.categories = maps.Clone(c.categories)
	out.data = maps.Clone(c.data)
	return &out
}

// put folds an already coerced value into a category in place. Only
// columns not yet shared may be written.
func (c *Column) put(rowID, category string, v any) {
	c.categories[category] = c.category(category).Incorporate(v)
	c.data[rowID] = v
}

// incorporate returns a copy of the column with the value folded in.
func (c *Column) incorporate(rowID, category string, v any) *Column {
	out := c.clone()
	out.put(rowID, category, v)
	return out
}

// unincorporate removes a row's value from its category. Rows without a
// value in this column are a no-op.
func (c *Column) unincorporate(rowID, category string) *Column {
	v, ok := c.data[rowID]
	if !ok {
		return c
	}
	out := c.clone()
	p := out.category(category).Unincorporate(v)
	if p.Count() == 0 {
		delete(out.categories, category)
	} else {
		out.categories[category] = p
	}
	delete(out.data, rowID)
	return out
}

// partition rebuilds the per-category primitives from the column's data
// under the assignment y. Every observed row must be assigned.
func (c *Column) partition(y map[string]string) (*Column, error) {
	out := c.clone()
	out.categories = map[string]primitive.Primitive{}
	for _, rowID := range slices.Sorted(maps.Keys(c.data)) {
		category, ok := y[rowID]
		if !ok {
			return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypePrecondition,
				"row %s of column %s has no category in the target view", rowID, c.spec.Name).
				WithDetail("column", c.spec.Name).
				WithDetail("row_id", rowID)
		}
		out.put(rowID, category, c.data[rowID])
	}
	return out, nil
}

// WithHypers returns the column with replaced hyperparameters applied to
// every category.
func (c *Column) WithHypers(h primitive.Hypers) *Column {
	out := c.clone()
	out.hypers = c.hypers.Clone()
	for k, v := range h {
		out.hypers[k] = v
	}
	out.proto = c.proto.WithHypers(out.hypers)
	for name, p := range out.categories {
		out.categories[name] = p.WithHypers(out.hypers)
	}
	return out
}

// values returns the observed values in row identifier order.
func (c *Column) values() []any {
	out := make([]any, 0, len(c.data))
	for _, rowID := range slices.Sorted(maps.Keys(c.data)) {
		out = append(out, c.data[rowID])
	}
	return out
}

// withGrid returns the column with its grid recomputed from its data and
// hyperparameters left untouched.
func (c *Column) withGrid() *Column {
	out := *c
	out.grid = primitive.HyperGrid(c.spec.StatType, c.values(), c.gridPoints)
	return &out
}

// UpdateHyperGrid recomputes the hyper-grid from the column's observed
// values and clamps every hyperparameter into the new grid's range.
func (c *Column) UpdateHyperGrid() *Column {
	out := c.withGrid()
	return out.WithHypers(out.grid.Clamp(out.hypers))
}

// UpdateHyperGrids applies UpdateHyperGrid to every column of a mapping.
// It is a pure function: the input mapping and its columns are unchanged.
func UpdateHyperGrids(columns map[string]*Column) map[string]*Column {
	out := make(map[string]*Column, len(columns))
	for name, c := range columns {
		out[name] = c.UpdateHyperGrid()
	}
	return out
}
