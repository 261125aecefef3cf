package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/crosscat/pkg/config"
	"github.com/ajitpratap0/crosscat/pkg/gpm"
	"github.com/ajitpratap0/crosscat/pkg/logger"
	"github.com/ajitpratap0/crosscat/pkg/metrics"
	"github.com/ajitpratap0/crosscat/pkg/observability"
)

// flagKeys maps persistent flags to option keys.
var flagKeys = map[string]string{
	"alpha":        "model.alpha",
	"grid-points":  "model.grid_points",
	"sample-size":  "sampling.sample_size",
	"max-attempts": "sampling.max_attempts",
	"workers":      "sampling.workers",
	"seed":         "sampling.seed",
	"compression":  "checkpoint.compression",
	"log-level":    "logging.level",
	"log-encoding": "logging.encoding",
	"tracing":      "observability.tracing",
	"metrics":      "observability.metrics",
}

// app is the state shared by every subcommand.
type app struct {
	configFile string
	opts       *config.Options
	log        *zap.Logger
	resources  *metrics.ResourceMonitor
}

// runtime returns a runtime seeded from the options. Seed 0 means time
// based.
func (a *app) runtime() *gpm.Runtime {
	seed := a.opts.Sampling.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rt := gpm.NewRuntime(seed)
	rt.Logger = a.log
	return rt
}

func newRootCmd() *cobra.Command {
	root, _ := newRoot()
	return root
}

func newRoot() (*cobra.Command, *app) {
	a := &app{}
	defaults := config.Default()

	root := &cobra.Command{
		Use:   "crosscat",
		Short: "CrossCat - structure learning and constrained sampling for tabular data",
		Long: `CrossCat models a table as a partition of its columns into views and of
each view's rows into categories. The CLI builds models from schemas and
rows, stores them as compressed checkpoints, and answers simulate and
logpdf queries, optionally conditioned on an event such as (< x 3).

Options come from --config (YAML), CROSSCAT_* environment variables and
flags, in increasing order of precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "Path to YAML options file")
	pf.Float64("alpha", defaults.Model.Alpha, "CRP concentration for new models")
	pf.Int("grid-points", defaults.Model.GridPoints, "Hyper-grid points per hyperparameter")
	pf.Int("sample-size", defaults.Sampling.SampleSize, "Monte-Carlo draws per constrained logpdf estimate")
	pf.Int("max-attempts", defaults.Sampling.MaxAttempts, "Rejection draws per constrained sample (0 = unbounded)")
	pf.Int("workers", defaults.Sampling.Workers, "Goroutines for constrained logpdf estimates")
	pf.Uint64("seed", defaults.Sampling.Seed, "Random seed (0 = time based)")
	pf.String("compression", defaults.Checkpoint.Compression, "Checkpoint codec (none, gzip, snappy, s2, lz4, zstd, deflate)")
	pf.String("log-level", defaults.Logging.Level, "Log level (debug, info, warn, error)")
	pf.String("log-encoding", defaults.Logging.Encoding, "Log encoding (json, console)")
	pf.Bool("tracing", false, "Print OpenTelemetry spans to stderr")
	pf.Bool("metrics", false, "Print Prometheus metrics to stderr on exit")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newSimulateCmd(a),
		newLogpdfCmd(a),
		newScoreCmd(a),
		newInspectCmd(a),
	)
	return root, a
}

// setup resolves options and starts logging and tracing.
func (a *app) setup(cmd *cobra.Command) error {
	opts := config.Default()
	if a.configFile != "" {
		loaded, err := config.Load(a.configFile)
		if err != nil {
			return err
		}
		opts = loaded
	}

	v := viper.New()
	v.SetEnvPrefix("CROSSCAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("model.alpha", opts.Model.Alpha)
	v.SetDefault("model.grid_points", opts.Model.GridPoints)
	v.SetDefault("sampling.sample_size", opts.Sampling.SampleSize)
	v.SetDefault("sampling.max_attempts", opts.Sampling.MaxAttempts)
	v.SetDefault("sampling.workers", opts.Sampling.Workers)
	v.SetDefault("sampling.seed", opts.Sampling.Seed)
	v.SetDefault("checkpoint.compression", opts.Checkpoint.Compression)
	v.SetDefault("checkpoint.level", opts.Checkpoint.Level)
	v.SetDefault("logging.level", opts.Logging.Level)
	v.SetDefault("logging.encoding", opts.Logging.Encoding)
	v.SetDefault("observability.tracing", opts.Observability.Tracing)
	v.SetDefault("observability.metrics", opts.Observability.Metrics)
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}
	if err := v.Unmarshal(opts); err != nil {
		return err
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	a.opts = opts

	if err := logger.Init(opts.LoggerConfig()); err != nil {
		return err
	}
	a.log = logger.Get().With(zap.String("component", "crosscat-cli"), zap.String("command", cmd.Name()))

	if opts.Observability.Metrics {
		rm, err := metrics.NewResourceMonitor()
		if err != nil {
			a.log.Warn("resource monitoring unavailable", zap.Error(err))
		}
		a.resources = rm
	}
	if opts.Observability.Tracing {
		tc := observability.DefaultConfig()
		tc.ServiceVersion = version
		tc.Writer = os.Stderr
		if err := observability.Initialize(tc); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) teardown() error {
	if a.opts == nil {
		return nil
	}
	if a.opts.Observability.Tracing {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(ctx); err != nil {
			a.log.Warn("failed to flush traces", zap.Error(err))
		}
	}
	if a.opts.Observability.Metrics {
		if a.resources != nil {
			usage := a.resources.Sample()
			a.log.Info("resource usage",
				zap.Uint64("rss_bytes", usage.MemoryRSS),
				zap.Float64("cpu_percent", usage.CPUPercent),
				zap.Int("goroutines", usage.GoroutineCount))
		}
		families, err := prometheus.DefaultGatherer.Gather()
		if err != nil {
			return err
		}
		enc := expfmt.NewEncoder(os.Stderr, expfmt.NewFormat(expfmt.TypeTextPlain))
		for _, mf := range families {
			if !strings.HasPrefix(mf.GetName(), "crosscat_") {
				continue
			}
			if err := enc.Encode(mf); err != nil {
				return err
			}
		}
	}
	_ = logger.Sync()
	return nil
}
