// Package crosscat provides CrossCat structure learning primitives and
// event-constrained sampling for tabular data.
//
// A CrossCat model partitions the columns of a table into views and, inside
// each view, partitions the rows into categories with a Chinese restaurant
// process. Every column of a category is a conjugate primitive model
// (beta-bernoulli, dirichlet-categorical or normal-inverse-gamma), so every
// query below has a closed form:
//
//   - Simulate: joint draws of target variables given observed values
//   - Logpdf: log density of observed values given others
//   - LogpdfScore: log marginal likelihood of the data under the partitions
//
// Models are immutable. Incorporating a row or moving a column returns a new
// model and leaves the receiver untouched, so a sampler can propose a move,
// score it and keep or discard it without undo bookkeeping.
//
// # Quick Start
//
// Build a model from its latent state and query it:
//
//	import (
//	    "github.com/ajitpratap0/crosscat/pkg/gpm"
//	    "github.com/ajitpratap0/crosscat/pkg/view"
//	    "github.com/ajitpratap0/crosscat/pkg/xcat"
//	)
//
//	rt := gpm.NewRuntime(42)
//	model, err := xcat.ConstructFromLatents(spec, latents, data, view.Options{}, rt)
//	lp, err := model.Logpdf(gpm.Row{"x": 2.5}, gpm.Row{"color": "red"})
//	sample, err := model.Simulate([]string{"x", "flag"}, nil)
//
// Condition on an event with the rejection-sampling wrapper:
//
//	event, err := constrain.Parse(`(and (< 0 x 10) (not (= color "blue")))`)
//	c, err := constrain.New(model, event, constrain.WithMaxAttempts(100000))
//	sample, err := c.Simulate([]string{"x"}, nil)
//	lp, err := c.Logpdf(gpm.Row{"flag": true}, nil) // Monte-Carlo estimate
//
// # Key Packages
//
//	pkg/gpm            - Generative model contract, rows, shared runtime
//	pkg/primitive      - Conjugate column models and hyper-grids
//	pkg/view           - Columns and row partitions
//	pkg/xcat           - The CrossCat model
//	pkg/constrain      - Events, s-expression parser, constrained sampler
//	pkg/checkpoint     - Compressed model snapshots
//	pkg/compression    - Checkpoint codecs
//	pkg/config         - YAML options with ${VAR_NAME} substitution
//	pkg/crosscaterrors - Structured error handling
//	pkg/logger         - Structured logging
//	pkg/metrics        - Prometheus collectors
//	pkg/observability  - OpenTelemetry tracing
//
// # Command Line
//
//	crosscat init --schema schema.yaml --data rows.json --out model.ckpt
//	crosscat inspect --model model.ckpt
//	crosscat simulate --model model.ckpt --targets x --event '(< x 3)' -n 10
//	crosscat logpdf --model model.ckpt --targets '{"x": 2.5}'
//	crosscat score --model model.ckpt --column x --aux 2
//
// Options come from --config, CROSSCAT_* environment variables and flags.
package crosscat
