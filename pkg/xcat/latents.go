package xcat

import (
	"maps"
	"math"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
	"github.com/ajitpratap0/crosscat/pkg/gpm"
	"github.com/ajitpratap0/crosscat/pkg/ids"
	"github.com/ajitpratap0/crosscat/pkg/metrics"
	"github.com/ajitpratap0/crosscat/pkg/primitive"
	"github.com/ajitpratap0/crosscat/pkg/stats"
	"github.com/ajitpratap0/crosscat/pkg/view"
)

// ViewSpec holds the hyperparameters of the columns of one view.
type ViewSpec struct {
	Hypers map[string]primitive.Hypers `json:"hypers" yaml:"hypers"`
}

// Spec describes the structure of a model: the columns of every view and
// the declaration of every column.
type Spec struct {
	Views map[string]ViewSpec        `json:"views" yaml:"views"`
	Types map[string]view.ColumnSpec `json:"types" yaml:"types"`
}

// GenerateViewLatents draws a CRP partition of n rows with concentration
// alpha. The result maps row position to a category index; indices are
// shuffled and carry no ordering information.
func GenerateViewLatents(n int, alpha float64, rng *rand.Rand) []int {
	return stats.SamplePartition(rng, n, alpha)
}

// ViewLatents names a partition drawn by GenerateViewLatents: rowIDs[i]
// joins the category allocated for assignment[i].
func ViewLatents(rowIDs []string, assignment []int, alpha float64, alloc ids.Allocator) view.Latents {
	names := map[int]string{}
	y := make(map[string]string, len(rowIDs))
	counts := map[string]int{}
	for i, rowID := range rowIDs {
		k := assignment[i]
		name, ok := names[k]
		if !ok {
			name = alloc.Next("category")
			names[k] = name
		}
		y[rowID] = name
		counts[name]++
	}
	return view.Latents{Alpha: alpha, Counts: counts, Y: y}
}

// UpdateHyperGrids recomputes every column's hyper-grid from its own data
// and clamps its hyperparameters into the new range. The input is not
// modified.
func UpdateHyperGrids(columns map[string]*view.Column) map[string]*view.Column {
	return view.UpdateHyperGrids(columns)
}

// ConstructFromLatents rebuilds a model from its structure, latent state
// and raw rows. Each view only receives the columns it owns. The column
// assignment and the view counts are derived from spec.Views; the ones in
// latents.Global are not read, so the result is always self-consistent.
// Every data row must be assigned in every view.
func ConstructFromLatents(spec Spec, latents Latents, data Data, opts view.Options, rt *gpm.Runtime) (*XCat, error) {
	rt = rt.Resolve()
	alpha := latents.Global.Alpha
	if alpha <= 0 || math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation,
			"model alpha must be positive and finite, got %v", alpha)
	}

	x := &XCat{
		views: make(map[string]*view.View, len(spec.Views)),
		latents: GlobalLatents{
			Alpha:  alpha,
			Counts: make(map[string]int, len(spec.Views)),
			Z:      map[string]string{},
		},
		opts: opts,
		rt:   rt,
	}

	rowIDs := slices.Sorted(maps.Keys(data))
	for _, id := range slices.Sorted(maps.Keys(spec.Views)) {
		local, ok := latents.Local[id]
		if !ok {
			return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation,
				"view %s has no latents", id).
				WithDetail("view", id)
		}
		hypers := spec.Views[id].Hypers
		columns := slices.Sorted(maps.Keys(hypers))
		for _, name := range columns {
			if owner, dup := x.latents.Z[name]; dup {
				return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation,
					"column %s is assigned to views %s and %s", name, owner, id).
					WithDetail("column", name)
			}
			x.latents.Z[name] = id
		}
		x.latents.Counts[id] = len(columns)

		filtered := make(map[string]gpm.Row, len(data))
		for _, rowID := range rowIDs {
			if _, ok := local.Y[rowID]; !ok {
				return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypePrecondition,
					"row %s is not assigned in view %s", rowID, id).
					WithDetail("row_id", rowID).
					WithDetail("view", id)
			}
			filtered[rowID] = data[rowID].Select(columns)
		}

		v, err := view.New(hypers, local, spec.Types, filtered, opts, rt)
		if err != nil {
			return nil, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeValidation, "cannot construct view").
				WithDetail("view", id)
		}
		x.views[id] = v
	}

	metrics.Views.Set(float64(len(x.views)))
	rt.Logger.Debug("constructed model",
		zap.Int("views", len(x.views)),
		zap.Int("columns", len(x.latents.Z)),
		zap.Int("rows", len(data)))
	return x, nil
}

// ConstructFromHypers returns a model without data holding every column
// of spec.Types in a single view. Hyperparameters are read from spec.Views
// when present and default otherwise. Both concentrations are 1.
func ConstructFromHypers(spec Spec, opts view.Options, rt *gpm.Runtime) (*XCat, error) {
	rt = rt.Resolve()
	hypers := make(map[string]primitive.Hypers, len(spec.Types))
	for name := range spec.Types {
		hypers[name] = nil
	}
	for _, vs := range spec.Views {
		for name, h := range vs.Hypers {
			if _, ok := spec.Types[name]; !ok {
				return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation,
					"column %s has no type declaration", name).
					WithDetail("column", name)
			}
			hypers[name] = h
		}
	}

	id := rt.IDs.Next("view")
	single := Spec{
		Views: map[string]ViewSpec{id: {Hypers: hypers}},
		Types: spec.Types,
	}
	latents := Latents{
		Global: GlobalLatents{Alpha: 1},
		Local:  map[string]view.Latents{id: {Alpha: 1}},
	}
	return ConstructFromLatents(single, latents, nil, opts, rt)
}

// Spec returns the structure of the model.
func (x *XCat) Spec() Spec {
	spec := Spec{
		Views: make(map[string]ViewSpec, len(x.views)),
		Types: make(map[string]view.ColumnSpec, len(x.latents.Z)),
	}
	for id, v := range x.views {
		spec.Views[id] = ViewSpec{Hypers: v.Hypers()}
		for name, c := range v.Columns() {
			spec.Types[name] = c.Spec()
		}
	}
	return spec
}

// Data returns the incorporated rows keyed by row identifier. Rows without
// any observed value are present and empty.
func (x *XCat) Data() Data {
	data := Data{}
	for _, rowID := range x.RowIDs() {
		data[rowID] = gpm.Row{}
	}
	for _, v := range x.views {
		for name, c := range v.Columns() {
			for rowID, value := range c.Data() {
				data[rowID][name] = value
			}
		}
	}
	return data
}

// Export decomposes the model into the arguments of ConstructFromLatents.
func (x *XCat) Export() (Spec, Latents, Data) {
	return x.Spec(), x.Latents(), x.Data()
}
