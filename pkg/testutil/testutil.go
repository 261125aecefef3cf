// Package testutil provides fixtures and helpers shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/crosscat/pkg/gpm"
	"github.com/ajitpratap0/crosscat/pkg/ids"
	"github.com/ajitpratap0/crosscat/pkg/primitive"
	"github.com/ajitpratap0/crosscat/pkg/stats"
	"github.com/ajitpratap0/crosscat/pkg/view"
	"github.com/ajitpratap0/crosscat/pkg/xcat"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout, cancelled
// when the test completes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Runtime returns a seeded runtime with a counter allocator logging to the
// test output.
func Runtime(t *testing.T, seed uint64) *gpm.Runtime {
	return &gpm.Runtime{
		Rand:   stats.NewRand(seed),
		IDs:    ids.NewCounter(0),
		Logger: TestLogger(t),
	}
}

// Spec is a two-view model: v1 holds x (gaussian) and flag (bernoulli),
// v2 holds color (categorical over red, green, blue).
func Spec() xcat.Spec {
	return xcat.Spec{
		Views: map[string]xcat.ViewSpec{
			"v1": {Hypers: map[string]primitive.Hypers{"x": {"m": 5}, "flag": nil}},
			"v2": {Hypers: map[string]primitive.Hypers{"color": {"alpha": 2}}},
		},
		Types: map[string]view.ColumnSpec{
			"x":     {Name: "x", StatType: primitive.Gaussian},
			"flag":  {Name: "flag", StatType: primitive.Bernoulli},
			"color": {Name: "color", StatType: primitive.Categorical, Options: []string{"red", "green", "blue"}},
		},
	}
}

// Latents partitions rows r1-r3 in both views of Spec.
func Latents() xcat.Latents {
	return xcat.Latents{
		Global: xcat.GlobalLatents{Alpha: 1.5},
		Local: map[string]view.Latents{
			"v1": {Alpha: 1, Y: map[string]string{"r1": "a", "r2": "a", "r3": "b"}},
			"v2": {Alpha: 2, Y: map[string]string{"r1": "c", "r2": "d", "r3": "c"}},
		},
	}
}

// Data returns the rows of Latents. r3 observes x only.
func Data() xcat.Data {
	return xcat.Data{
		"r1": {"x": 1.25, "flag": true, "color": "red"},
		"r2": {"x": -3.0, "flag": false, "color": "blue"},
		"r3": {"x": 7.5},
	}
}

// Model builds the fixture model.
func Model(t *testing.T, rt *gpm.Runtime) *xcat.XCat {
	t.Helper()
	m, err := xcat.ConstructFromLatents(Spec(), Latents(), Data(), view.Options{}, rt)
	require.NoError(t, err)
	return m
}
