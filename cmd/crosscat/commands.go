package main

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/crosscat/pkg/checkpoint"
	"github.com/ajitpratap0/crosscat/pkg/constrain"
	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
	"github.com/ajitpratap0/crosscat/pkg/gpm"
	"github.com/ajitpratap0/crosscat/pkg/json"
	"github.com/ajitpratap0/crosscat/pkg/logger"
	"github.com/ajitpratap0/crosscat/pkg/metrics"
	"github.com/ajitpratap0/crosscat/pkg/primitive"
	"github.com/ajitpratap0/crosscat/pkg/stats"
	"github.com/ajitpratap0/crosscat/pkg/view"
	"github.com/ajitpratap0/crosscat/pkg/xcat"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "CrossCat v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newInitCmd(a *app) *cobra.Command {
	var schemaPath, dataPath, out string
	var randomViews bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Build a model from a schema and rows",
		Long: `Build a model from a YAML schema and optional JSON rows and save it as a
checkpoint.

By default every column starts in one view. With --random-views the
columns are partitioned into views by a Chinese restaurant process with
concentration --alpha. Rows are then incorporated one at a time, each
joining a category of every view by its posterior predictive.

Example:
  crosscat init --schema schema.yaml --data rows.json --out model.ckpt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := loadSchema(schemaPath)
			if err != nil {
				return err
			}
			rt := a.runtime()
			model, err := buildModel(schema, a.opts.Model.Alpha, randomViews, a.opts.ViewOptions(), rt)
			if err != nil {
				return err
			}

			if dataPath != "" {
				rows, order, err := loadRows(dataPath)
				if err != nil {
					return err
				}
				tracker := metrics.NewThroughputTracker(metrics.OpIncorporate)
				for _, id := range order {
					model, err = model.IncorporateRow(id, rows[id])
					if err != nil {
						return crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeData, "failed to incorporate row").
							WithDetail("row_id", id)
					}
					tracker.Increment(1)
				}
				a.log.Info("rows incorporated",
					zap.Int("rows", len(order)),
					zap.Float64("rows_per_second", tracker.GetAndReset()))
			}

			snap := checkpoint.FromModel(model, a.opts.ViewOptions())
			if err := checkpoint.SaveFile(out, snap, a.opts.CheckpointOptions()); err != nil {
				return err
			}
			metrics.Views.Set(float64(len(model.ViewIDs())))
			a.log.Info("model saved",
				zap.String("path", out),
				zap.Int("views", len(model.ViewIDs())),
				zap.Int("columns", len(model.Variables())),
				zap.Int("rows", len(model.RowIDs())))
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "Path to YAML schema (required)")
	cmd.Flags().StringVar(&dataPath, "data", "", "Path to JSON rows")
	cmd.Flags().StringVarP(&out, "out", "o", "model.ckpt", "Checkpoint to write")
	cmd.Flags().BoolVar(&randomViews, "random-views", false, "Partition columns into views by CRP")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

// buildModel creates an empty model holding every schema column.
func buildModel(schema schemaFile, alpha float64, randomViews bool, opts view.Options, rt *gpm.Runtime) (*xcat.XCat, error) {
	spec := xcat.Spec{
		Views: map[string]xcat.ViewSpec{},
		Types: map[string]view.ColumnSpec{},
	}
	names := make([]string, 0, len(schema.Columns))
	hypers := map[string]primitive.Hypers{}
	for _, c := range schema.Columns {
		spec.Types[c.Name] = c.ColumnSpec
		hypers[c.Name] = c.Hypers
		names = append(names, c.Name)
	}
	slices.Sort(names)

	assignment := make([]int, len(names))
	if randomViews {
		assignment = stats.SamplePartition(rt.Rand, len(names), alpha)
	}
	viewIDs := map[int]string{}
	latents := xcat.Latents{
		Global: xcat.GlobalLatents{Alpha: alpha},
		Local:  map[string]view.Latents{},
	}
	for i, name := range names {
		id, ok := viewIDs[assignment[i]]
		if !ok {
			id = rt.IDs.Next("view")
			viewIDs[assignment[i]] = id
			spec.Views[id] = xcat.ViewSpec{Hypers: map[string]primitive.Hypers{}}
			latents.Local[id] = view.Latents{Alpha: alpha}
		}
		spec.Views[id].Hypers[name] = hypers[name]
	}
	return xcat.ConstructFromLatents(spec, latents, nil, opts, rt)
}

// queryContext tags ctx with the model and query for logging.
func (a *app) queryContext(cmd *cobra.Command, model, query string) (context.Context, *zap.Logger) {
	ctx := context.WithValue(cmd.Context(), logger.ModelKey, model)
	ctx = context.WithValue(ctx, logger.QueryKey, query)
	return ctx, logger.WithContext(ctx, a.log)
}

// queryModel loads a checkpoint and wraps it with an event when one is
// given.
func queryModel(a *app, path, event string) (gpm.GPM, *xcat.XCat, error) {
	snap, err := checkpoint.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	rt := a.runtime()
	model, err := snap.Model(rt)
	if err != nil {
		return nil, nil, err
	}
	if event == "" {
		return model, model, nil
	}
	node, err := constrain.Parse(event)
	if err != nil {
		return nil, nil, err
	}
	opts := append(a.opts.ConstrainOptions(), constrain.WithRuntime(rt))
	c, err := constrain.New(model, node, opts...)
	if err != nil {
		return nil, nil, err
	}
	return c, model, nil
}

func newSimulateCmd(a *app) *cobra.Command {
	var modelPath, given, event string
	var targets []string
	var n int
	var asArray bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Draw samples from a model",
		Long: `Draw joint samples of --targets, conditioned on --given observations and
optionally on an event. Samples are written as JSON lines.

Example:
  crosscat simulate --model model.ckpt --targets x,color --given '{"flag":true}' --event '(< x 3)' -n 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := queryModel(a, modelPath, event)
			if err != nil {
				return err
			}
			conditions, err := parseRow("given", given)
			if err != nil {
				return err
			}
			if n < 1 {
				return crosscaterrors.Newf(crosscaterrors.ErrorTypeValidation, "-n must be positive, got %d", n)
			}

			ctx, log := a.queryContext(cmd, modelPath, metrics.OpSimulate)
			tracker := metrics.NewThroughputTracker(metrics.OpSimulate)
			enc := json.NewStreamingEncoder(cmd.OutOrStdout(), asArray)
			for i := 0; i < n; i++ {
				var sample gpm.Row
				if c, ok := m.(*constrain.Constrained); ok {
					sample, err = c.SimulateContext(ctx, targets, conditions)
				} else {
					sample, err = m.Simulate(targets, conditions)
				}
				if err != nil {
					return err
				}
				if err := enc.Encode(sample); err != nil {
					return err
				}
				tracker.Increment(1)
			}
			log.Debug("samples drawn", zap.Int("n", enc.Count()), zap.Float64("per_second", tracker.GetAndReset()))
			return enc.Close()
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "model.ckpt", "Checkpoint to query")
	cmd.Flags().StringSliceVarP(&targets, "targets", "t", nil, "Variables to sample (required)")
	cmd.Flags().StringVarP(&given, "given", "g", "", "Observed values as a JSON object")
	cmd.Flags().StringVarP(&event, "event", "e", "", "Event s-expression the samples must satisfy")
	cmd.Flags().IntVarP(&n, "num", "n", 1, "Number of samples")
	cmd.Flags().BoolVar(&asArray, "array", false, "Write one JSON array instead of JSON lines")
	_ = cmd.MarkFlagRequired("targets")
	return cmd
}

func newLogpdfCmd(a *app) *cobra.Command {
	var modelPath, targets, given, event string

	cmd := &cobra.Command{
		Use:   "logpdf",
		Short: "Evaluate the log density of observations",
		Long: `Evaluate log p(targets | given), optionally conditioned on an event. With
an event the value is a Monte-Carlo estimate over --sample-size draws.

Example:
  crosscat logpdf --model model.ckpt --targets '{"x":2.5}' --event '(= color "red")'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := queryModel(a, modelPath, event)
			if err != nil {
				return err
			}
			t, err := parseRow("targets", targets)
			if err != nil {
				return err
			}
			conditions, err := parseRow("given", given)
			if err != nil {
				return err
			}

			ctx, log := a.queryContext(cmd, modelPath, metrics.OpLogpdf)
			start := time.Now()
			var lp float64
			if c, ok := m.(*constrain.Constrained); ok {
				lp, err = c.LogpdfContext(ctx, t, conditions)
			} else {
				lp, err = m.Logpdf(t, conditions)
			}
			if err != nil {
				return err
			}
			log.Debug("logpdf evaluated", zap.Float64("logpdf", lp), zap.Duration("duration", time.Since(start)))
			return writeJSON(cmd.OutOrStdout(), map[string]float64{"logpdf": lp})
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "model.ckpt", "Checkpoint to query")
	cmd.Flags().StringVarP(&targets, "targets", "t", "", "Target values as a JSON object (required)")
	cmd.Flags().StringVarP(&given, "given", "g", "", "Observed values as a JSON object")
	cmd.Flags().StringVarP(&event, "event", "e", "", "Event s-expression to condition on")
	_ = cmd.MarkFlagRequired("targets")
	return cmd
}

// scoreReport is the output of the score command.
type scoreReport struct {
	LogpdfScore float64            `json:"logpdf_score"`
	Column      string             `json:"column,omitempty"`
	ViewScores  map[string]float64 `json:"view_scores,omitempty"`
}

func newScoreCmd(a *app) *cobra.Command {
	var modelPath, column string
	var aux int

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a model's latent state",
		Long: `Print the log marginal likelihood of the data under the model's
partitions. With --column, also print the score of moving that column to
each view, including --aux fresh auxiliary views.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, model, err := queryModel(a, modelPath, "")
			if err != nil {
				return err
			}
			report := scoreReport{LogpdfScore: model.LogpdfScore()}
			if column != "" {
				c, ok := model.Column(column)
				if !ok {
					return crosscaterrors.Newf(crosscaterrors.ErrorTypeNotFound, "unknown column %s", column)
				}
				proposal, err := model.AddAuxViews(aux)
				if err != nil {
					return err
				}
				scores, err := proposal.ViewLogpdfScores(c)
				if err != nil {
					return err
				}
				report.Column = column
				report.ViewScores = scores
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "model.ckpt", "Checkpoint to score")
	cmd.Flags().StringVar(&column, "column", "", "Column whose view placement to score")
	cmd.Flags().IntVar(&aux, "aux", 1, "Auxiliary views proposed for --column")
	return cmd
}

// viewSummary describes one view in inspect output.
type viewSummary struct {
	ID         string         `json:"id"`
	Alpha      float64        `json:"alpha"`
	Columns    []string       `json:"columns"`
	Rows       int            `json:"rows"`
	Categories map[string]int `json:"categories"`
	Score      float64        `json:"score"`
}

// modelSummary is the output of the inspect command.
type modelSummary struct {
	Alpha   float64                     `json:"alpha"`
	Rows    int                         `json:"rows"`
	Columns map[string]view.ColumnSpec  `json:"columns"`
	Hypers  map[string]primitive.Hypers `json:"hypers"`
	Views   []viewSummary               `json:"views"`
}

func newInspectCmd(a *app) *cobra.Command {
	var modelPath string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Describe a model's structure",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, model, err := queryModel(a, modelPath, "")
			if err != nil {
				return err
			}
			model = model.FilterEmptyViews()
			spec := model.Spec()
			summary := modelSummary{
				Alpha:   model.Alpha(),
				Rows:    len(model.RowIDs()),
				Columns: spec.Types,
				Hypers:  map[string]primitive.Hypers{},
			}
			for _, id := range model.ViewIDs() {
				v, _ := model.View(id)
				for name, h := range spec.Views[id].Hypers {
					summary.Hypers[name] = h
				}
				summary.Views = append(summary.Views, viewSummary{
					ID:         id,
					Alpha:      v.Alpha(),
					Columns:    v.Variables(),
					Rows:       v.NumRows(),
					Categories: v.Latents().Counts,
					Score:      v.LogpdfScore(),
				})
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "model.ckpt", "Checkpoint to inspect")
	return cmd
}
