package xcat

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
	"github.com/ajitpratap0/crosscat/pkg/gpm"
	"github.com/ajitpratap0/crosscat/pkg/logger"
	"github.com/ajitpratap0/crosscat/pkg/metrics"
	"github.com/ajitpratap0/crosscat/pkg/view"
)

// Incorporate folds row into every view under a freshly allocated row
// identifier. Entries for unmodeled variables are ignored.
func (x *XCat) Incorporate(row gpm.Row) (gpm.GPM, error) {
	return x.IncorporateRow(x.rt.IDs.Next("row"), row)
}

// IncorporateRow folds row into every view under rowID. Every view assigns
// the row a category, including views that own none of its values, so a
// column later moved into any view finds the row. Hyper-grids of the
// columns that received a value are recomputed after the update.
func (x *XCat) IncorporateRow(rowID string, row gpm.Row) (*XCat, error) {
	if x.hasRow(rowID) {
		return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypePrecondition,
			"row %s is already incorporated", rowID).
			WithDetail("row_id", rowID)
	}
	out := x.clone()
	for _, id := range x.ViewIDs() {
		v := x.views[id]
		sub := row.Select(v.Variables())
		next, err := v.IncorporateByRowID(rowID, sub)
		if err != nil {
			return nil, err
		}
		if next, err = refreshGrids(next, sub.Keys()); err != nil {
			return nil, err
		}
		out.views[id] = next
	}

	metrics.RowsIncorporated.WithLabelValues(metrics.OpIncorporate).Inc()
	x.rt.Logger.Debug("incorporated row",
		zap.String(logger.RowIDKey, rowID),
		zap.Int("values", len(row.Keys())))
	return out, nil
}

// Unincorporate removes the row whose modeled values equal those of row.
// When several incorporated rows match, the first in identifier order is
// removed. A row that matches nothing is a precondition failure.
func (x *XCat) Unincorporate(row gpm.Row) (gpm.GPM, error) {
	if err := x.checkKnown(row); err != nil {
		return nil, err
	}
	candidates := x.RowIDs()
	for _, id := range x.ViewIDs() {
		matches, err := x.views[id].FindRows(row)
		if err != nil {
			return nil, err
		}
		candidates = gpm.Intersect(candidates, matches)
	}
	if len(candidates) == 0 {
		return nil, crosscaterrors.New(crosscaterrors.ErrorTypePrecondition, "row was never incorporated").
			WithDetail("row", row)
	}
	return x.UnincorporateRow(candidates[0])
}

// UnincorporateRow removes a row from every view by identifier and
// recomputes the hyper-grids of the columns that held one of its values.
func (x *XCat) UnincorporateRow(rowID string) (*XCat, error) {
	if !x.hasRow(rowID) {
		return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypePrecondition,
			"row %s is not incorporated", rowID).
			WithDetail("row_id", rowID)
	}
	out := x.clone()
	for _, id := range x.ViewIDs() {
		v := x.views[id]
		var touched []string
		for _, name := range v.Variables() {
			c, _ := v.Column(name)
			if _, ok := c.Value(rowID); ok {
				touched = append(touched, name)
			}
		}
		next, err := v.UnincorporateByRowID(rowID)
		if err != nil {
			return nil, err
		}
		if next, err = refreshGrids(next, touched); err != nil {
			return nil, err
		}
		out.views[id] = next
	}

	metrics.RowsIncorporated.WithLabelValues(metrics.OpUnincorporate).Inc()
	x.rt.Logger.Debug("unincorporated row", zap.String(logger.RowIDKey, rowID))
	return out, nil
}

// refreshGrids recomputes the hyper-grids of the named columns of v.
func refreshGrids(v *view.View, names []string) (*view.View, error) {
	if len(names) == 0 {
		return v, nil
	}
	columns := make(map[string]*view.Column, len(names))
	for _, name := range names {
		if c, ok := v.Column(name); ok {
			columns[name] = c
		}
	}
	return v.WithColumns(UpdateHyperGrids(columns))
}

// IncorporateColumn assigns column to the view viewID. The column's data
// is re-bucketed by the view's row partition; the assignment and the view
// count change together.
func (x *XCat) IncorporateColumn(column *view.Column, viewID string) (*XCat, error) {
	name := column.Name()
	if owner, ok := x.latents.Z[name]; ok {
		return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypePrecondition,
			"column %s is already assigned to view %s", name, owner).
			WithDetail("column", name).
			WithDetail("view", owner)
	}
	v, ok := x.views[viewID]
	if !ok {
		return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeNotFound, "unknown view %s", viewID).
			WithDetail("view", viewID)
	}
	next, err := v.IncorporateColumn(column)
	if err != nil {
		return nil, err
	}

	out := x.clone()
	out.views[viewID] = next
	out.latents.Z[name] = viewID
	out.latents.Counts[viewID]++

	metrics.ColumnMoves.WithLabelValues(metrics.OpIncorporate).Inc()
	x.rt.Logger.Debug("incorporated column",
		zap.String(logger.ColumnKey, name),
		zap.String(logger.ViewKey, viewID))
	return out, nil
}

// UnincorporateColumn removes a column from its view. The view stays in
// the model, possibly empty, until FilterEmptyViews.
func (x *XCat) UnincorporateColumn(name string) (*XCat, error) {
	viewID, ok := x.latents.Z[name]
	if !ok {
		return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeNotFound, "unknown column %s", name).
			WithDetail("column", name)
	}
	next, err := x.views[viewID].UnincorporateColumn(name)
	if err != nil {
		return nil, err
	}

	out := x.clone()
	out.views[viewID] = next
	delete(out.latents.Z, name)
	out.latents.Counts[viewID]--

	metrics.ColumnMoves.WithLabelValues(metrics.OpUnincorporate).Inc()
	x.rt.Logger.Debug("unincorporated column",
		zap.String(logger.ColumnKey, name),
		zap.String(logger.ViewKey, viewID))
	return out, nil
}

// FilterEmptyViews removes every view that owns no column. Other views are
// shared unchanged.
func (x *XCat) FilterEmptyViews() *XCat {
	out := x.clone()
	removed := 0
	for id, count := range x.latents.Counts {
		if count == 0 {
			delete(out.views, id)
			delete(out.latents.Counts, id)
			removed++
		}
	}

	metrics.EmptyViewsFiltered.Add(float64(removed))
	metrics.Views.Set(float64(len(out.views)))
	if removed > 0 {
		x.rt.Logger.Debug("filtered empty views", zap.Int("removed", removed))
	}
	return out
}

// AddAuxViews adds m empty views. Each draws its concentration from
// Gamma(1, 1) and a CRP partition over the rows of an existing view.
func (x *XCat) AddAuxViews(m int) (*XCat, error) {
	if m < 0 {
		return nil, crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation, "negative view count %d", m)
	}
	var rowIDs []string
	if ids := x.ViewIDs(); len(ids) > 0 {
		rowIDs = x.views[ids[0]].RowIDs()
	}

	out := x.clone()
	prior := distuv.Gamma{Alpha: 1, Beta: 1, Src: x.rt.Rand}
	for i := 0; i < m; i++ {
		alpha := math.Max(prior.Rand(), math.SmallestNonzeroFloat64)
		latents := ViewLatents(rowIDs, GenerateViewLatents(len(rowIDs), alpha, x.rt.Rand), alpha, x.rt.IDs)
		v, err := view.FromLatents(latents, x.rt)
		if err != nil {
			return nil, err
		}
		id := x.rt.IDs.Next("view")
		out.views[id] = v
		out.latents.Counts[id] = 0
	}

	metrics.AuxViewsAdded.Add(float64(m))
	metrics.Views.Set(float64(len(out.views)))
	x.rt.Logger.Debug("added auxiliary views", zap.Int("count", m), zap.Int("rows", len(rowIDs)))
	return out, nil
}
