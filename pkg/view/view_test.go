package view

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
	"github.com/ajitpratap0/crosscat/pkg/gpm"
	"github.com/ajitpratap0/crosscat/pkg/primitive"
	"github.com/ajitpratap0/crosscat/pkg/stats"
)

var testSpecs = map[string]ColumnSpec{
	"x":     {Name: "x", StatType: primitive.Gaussian},
	"flag":  {Name: "flag", StatType: primitive.Bernoulli},
	"color": {Name: "color", StatType: primitive.Categorical, Options: []string{"red", "green", "blue"}},
}

var testData = map[string]gpm.Row{
	"r1": {"x": 1.0, "flag": true, "color": "red"},
	"r2": {"x": 1.5, "flag": true, "color": "red"},
	"r3": {"x": 9.0, "flag": false},
	"r4": {"x": 9.5, "flag": false, "color": "blue"},
}

func testView(t *testing.T) *View {
	t.Helper()
	v, err := New(
		map[string]primitive.Hypers{"x": nil, "flag": nil},
		Latents{Alpha: 1, Y: map[string]string{"r1": "a", "r2": "a", "r3": "b", "r4": "b"}},
		testSpecs,
		testData,
		Options{},
		gpm.NewRuntime(7),
	)
	require.NoError(t, err)
	return v
}

func TestNew(t *testing.T) {
	v := testView(t)

	assert.Equal(t, []string{"flag", "x"}, v.Variables())
	assert.Equal(t, map[string]int{"a": 2, "b": 2}, v.Latents().Counts)
	assert.Equal(t, []string{"r1", "r2", "r3", "r4"}, v.RowIDs())

	x, ok := v.Column("x")
	require.True(t, ok)
	assert.Len(t, x.Data(), 4)
	assert.Equal(t, primitive.DefaultHypers(primitive.Gaussian), x.Hypers())
	// Grid follows the loaded data.
	assert.Equal(t, 1.0, x.Grid()["m"][0])
	assert.Equal(t, 9.5, x.Grid()["m"][len(x.Grid()["m"])-1])

	// Columns outside the view are not loaded.
	_, ok = v.Column("color")
	assert.False(t, ok)
}

func TestNew_Errors(t *testing.T) {
	rt := gpm.NewRuntime(1)

	_, err := New(map[string]primitive.Hypers{"missing": nil}, Latents{Alpha: 1}, testSpecs, nil, Options{}, rt)
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeValidation))

	_, err = New(map[string]primitive.Hypers{"x": nil}, Latents{Alpha: 1}, testSpecs, testData, Options{}, rt)
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypePrecondition))

	_, err = New(nil, Latents{Alpha: 0}, testSpecs, nil, Options{}, rt)
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeValidation))

	bad := map[string]gpm.Row{"r1": {"x": "not a number"}}
	_, err = New(map[string]primitive.Hypers{"x": nil}, Latents{Alpha: 1, Y: map[string]string{"r1": "a"}},
		testSpecs, bad, Options{}, rt)
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeData))
}

func TestLogpdf_MatchesCategoryMixture(t *testing.T) {
	v := testView(t)
	x, _ := v.Column("x")

	// Two categories of two rows each plus the fresh one, alpha 1.
	w := []float64{math.Log(2.0 / 5), math.Log(2.0 / 5), math.Log(1.0 / 5)}
	terms := []float64{
		w[0] + x.Logpdf("a", 1.2),
		w[1] + x.Logpdf("b", 1.2),
		w[2] + x.Logpdf("", 1.2),
	}
	want := stats.LogSumExp(terms)

	got, err := v.Logpdf(gpm.Row{"x": 1.2}, nil)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)
}

func TestLogpdf_Conditioning(t *testing.T) {
	v := testView(t)

	// Observing flag=false points at the category holding large x.
	near, err := v.Logpdf(gpm.Row{"x": 9.2}, gpm.Row{"flag": false})
	require.NoError(t, err)
	far, err := v.Logpdf(gpm.Row{"x": 9.2}, gpm.Row{"flag": true})
	require.NoError(t, err)
	assert.Greater(t, near, far)

	// Unowned targets contribute nothing.
	lp, err := v.Logpdf(gpm.Row{"color": "red"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, lp)

	_, err = v.Logpdf(gpm.Row{"x": 1.0}, gpm.Row{"x": 2.0})
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeOverlappingVariables))
}

func TestSimulate(t *testing.T) {
	v := testView(t)

	sample, err := v.Simulate([]string{"x", "flag", "color"}, nil)
	require.NoError(t, err)
	assert.Len(t, sample, 2)
	assert.IsType(t, 0.0, sample["x"])
	assert.IsType(t, true, sample["flag"])

	empty, err := v.Simulate([]string{"color"}, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = v.Simulate([]string{"x"}, gpm.Row{"x": 1.0})
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeOverlappingVariables))
}

func TestIncorporateByRowID(t *testing.T) {
	v := testView(t)
	before := v.LogpdfScore()

	next, err := v.IncorporateByRowID("r5", gpm.Row{"x": 1.1, "flag": true, "color": "red"})
	require.NoError(t, err)
	assert.Equal(t, 5, next.NumRows())
	total := 0
	for _, n := range next.Latents().Counts {
		total += n
	}
	assert.Equal(t, 5, total)
	x, _ := next.Column("x")
	assert.Len(t, x.Data(), 5)

	// The receiver is untouched.
	assert.Equal(t, 4, v.NumRows())
	assert.Equal(t, before, v.LogpdfScore())

	// A known row keeps its category when a later column writes to it.
	partial, err := v.IncorporateByRowID("r6", gpm.Row{})
	require.NoError(t, err)
	category := partial.Latents().Y["r6"]
	require.NotEmpty(t, category)
	filled, err := partial.IncorporateByRowID("r6", gpm.Row{"x": 3.0})
	require.NoError(t, err)
	assert.Equal(t, category, filled.Latents().Y["r6"])
	assert.Equal(t, partial.Latents().Counts, filled.Latents().Counts)

	_, err = filled.IncorporateByRowID("r6", gpm.Row{"x": 4.0})
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypePrecondition))

	_, err = v.IncorporateByRowID("", gpm.Row{"x": 4.0})
	assert.Error(t, err)
}

func TestIncorporate_FreshCategory(t *testing.T) {
	v, err := NewEmpty(1, gpm.NewRuntime(3))
	require.NoError(t, err)
	c, err := NewColumn(testSpecs["x"], nil, 0)
	require.NoError(t, err)
	v, err = v.IncorporateColumn(c)
	require.NoError(t, err)

	// The first row of an empty view always opens a category.
	m, err := v.Incorporate(gpm.Row{"x": 2.0})
	require.NoError(t, err)
	got := m.(*View)
	assert.Len(t, got.Categories(), 1)
	assert.Equal(t, "category-2", got.Categories()[0])
	assert.Equal(t, []string{"row-1"}, got.RowIDs())
}

func TestUnincorporate(t *testing.T) {
	v := testView(t)

	next, err := v.UnincorporateByRowID("r1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, next.Latents().Counts)
	x, _ := next.Column("x")
	_, ok := x.Value("r1")
	assert.False(t, ok)

	// Emptied categories are deleted.
	next, err = next.UnincorporateByRowID("r2")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"b": 2}, next.Latents().Counts)

	_, err = next.UnincorporateByRowID("r1")
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypePrecondition))

	// Removing every row returns the score to zero.
	for _, id := range next.RowIDs() {
		next, err = next.UnincorporateByRowID(id)
		require.NoError(t, err)
	}
	assert.InDelta(t, 0, next.LogpdfScore(), 1e-9)
	assert.Equal(t, 4, v.NumRows())
}

func TestUnincorporate_ByContent(t *testing.T) {
	v := testView(t)

	// Entries for columns outside the view are ignored.
	m, err := v.Unincorporate(gpm.Row{"x": 9, "flag": false, "color": "green"})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2", "r4"}, m.(*View).RowIDs())

	// Partial rows only match rows with the same missing columns.
	_, err = v.Unincorporate(gpm.Row{"x": 9})
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypePrecondition))

	matches, err := v.FindRows(gpm.Row{"x": 1.5, "flag": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, matches)
}

func TestColumnMoves(t *testing.T) {
	v := testView(t)

	color, err := NewColumn(testSpecs["color"], nil, 0)
	require.NoError(t, err)
	for _, id := range []string{"r1", "r2", "r4"} {
		val, err := color.Coerce(testData[id]["color"])
		require.NoError(t, err)
		color = color.incorporate(id, "unused", val)
	}

	with, err := v.IncorporateColumn(color)
	require.NoError(t, err)
	assert.Equal(t, []string{"color", "flag", "x"}, with.Variables())

	moved, _ := with.Column("color")
	assert.InDelta(t, v.LogpdfScore()+moved.LogpdfScore(), with.LogpdfScore(), 1e-9)

	// Re-bucketed by the view's partition.
	want, err := NewColumn(testSpecs["color"], nil, 0)
	require.NoError(t, err)
	want = want.incorporate("r1", "a", "red").incorporate("r2", "a", "red").incorporate("r4", "b", "blue")
	assert.InDelta(t, want.LogpdfScore(), moved.LogpdfScore(), 1e-12)

	without, err := with.UnincorporateColumn("color")
	require.NoError(t, err)
	assert.InDelta(t, v.LogpdfScore(), without.LogpdfScore(), 1e-12)

	_, err = with.IncorporateColumn(color)
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypePrecondition))
	_, err = v.UnincorporateColumn("color")
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeNotFound))

	stray := color.incorporate("r9", "unused", "green")
	_, err = v.IncorporateColumn(stray)
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypePrecondition))
}

func TestUpdateHyperGrids(t *testing.T) {
	v := testView(t)
	x, _ := v.Column("x")
	x = x.WithHypers(primitive.Hypers{"s": 1e6})
	v, err := v.WithColumns(map[string]*Column{"x": x})
	require.NoError(t, err)

	refreshed := v.UpdateHyperGrids()
	rx, _ := refreshed.Column("x")
	grid := rx.Grid()["s"]
	assert.InDelta(t, grid[len(grid)-1], rx.Hypers()["s"], 1e-9)

	// Pure: the input columns keep their hyperparameters.
	assert.Equal(t, 1e6, x.Hypers()["s"])

	_, err = v.WithColumns(map[string]*Column{"nope": x})
	assert.Error(t, err)
}
