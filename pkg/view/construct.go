package view

import (
	"maps"
	"slices"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
	"github.com/ajitpratap0/crosscat/pkg/gpm"
	"github.com/ajitpratap0/crosscat/pkg/primitive"
)

// Options tune view construction.
type Options struct {
	// GridPoints is the number of candidate values per hyperparameter.
	// Zero selects primitive.DefaultGridPoints.
	GridPoints int
}

// New rebuilds a view from serialized state: the hyperparameters of its
// columns, its row partition, the declarations of the columns and the raw
// rows. Only the columns named in hypers are read from data. Hyperparameters
// are kept as given; grids are derived from the loaded data.
func New(
	hypers map[string]primitive.Hypers,
	latents Latents,
	specs map[string]ColumnSpec,
	data map[string]gpm.Row,
	opts Options,
	rt *gpm.Runtime,
) (*View, error) {
	v, err := FromLatents(latents, rt)
	if err != nil {
		return nil, err
	}

	rowIDs := slices.Sorted(maps.Keys(data))
	for _, name := range slices.Sorted(maps.Keys(hypers)) {
		spec, ok := specs[name]
		if !ok {
			return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation,
				"column %s has no type declaration", name).
				WithDetail("column", name)
		}
		spec.Name = name

		c, err := NewColumn(spec, hypers[name], opts.GridPoints)
		if err != nil {
			return nil, err
		}
		for _, rowID := range rowIDs {
			raw, ok := data[rowID][name]
			if !ok || raw == nil {
				continue
			}
			category, ok := v.latents.Y[rowID]
			if !ok {
				return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypePrecondition,
					"row %s has data for %s but no category", rowID, name).
					WithDetail("row_id", rowID).
					WithDetail("column", name)
			}
			val, err := c.Coerce(raw)
			if err != nil {
				return nil, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeData, "cannot load row").
					WithDetail("row_id", rowID)
			}
			c.put(rowID, category, val)
		}
		v.columns[name] = c.withGrid()
	}
	return v, nil
}

// Hypers returns the hyperparameters of every column keyed by name.
func (v *View) Hypers() map[string]primitive.Hypers {
	out := make(map[string]primitive.Hypers, len(v.columns))
	for name, c := range v.columns {
		out[name] = c.Hypers()
	}
	return out
}
