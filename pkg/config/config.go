// Package config holds the options shared by the CrossCat CLI and library
// callers: model construction defaults, constrained sampling budgets,
// checkpoint encoding, logging and observability.
//
// Options are organized into sections:
//   - Model: CRP concentration and hyper-grid resolution
//   - Sampling: Monte-Carlo sample size, rejection budget, workers, seed
//   - Checkpoint: codec used when saving models
//   - Logging: zap level and encoding
//   - Observability: tracing and metrics switches
//
// Example usage:
//
//	opts, err := config.Load("crosscat.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	opts.Sampling.Workers = 4
//	if err := opts.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"github.com/ajitpratap0/crosscat/pkg/checkpoint"
	"github.com/ajitpratap0/crosscat/pkg/compression"
	"github.com/ajitpratap0/crosscat/pkg/constrain"
	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
	"github.com/ajitpratap0/crosscat/pkg/logger"
	"github.com/ajitpratap0/crosscat/pkg/primitive"
	"github.com/ajitpratap0/crosscat/pkg/view"
)

// Options is the complete configuration.
type Options struct {
	// Model settings used when a model is built from hyperparameters
	Model ModelConfig `yaml:"model" json:"model" mapstructure:"model"`

	// Sampling settings for the constrained sampler
	Sampling SamplingConfig `yaml:"sampling" json:"sampling" mapstructure:"sampling"`

	// Checkpoint encoding
	Checkpoint CheckpointConfig `yaml:"checkpoint" json:"checkpoint" mapstructure:"checkpoint"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging" mapstructure:"logging"`

	// Observability switches
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// ModelConfig contains model construction settings.
type ModelConfig struct {
	// Alpha is the CRP concentration of the column partition and of new views
	Alpha float64 `yaml:"alpha" json:"alpha" mapstructure:"alpha"`
	// GridPoints sets the hyper-grid resolution per hyperparameter
	GridPoints int `yaml:"grid_points" json:"grid_points" mapstructure:"grid_points"`
}

// SamplingConfig contains constrained sampling settings.
type SamplingConfig struct {
	// SampleSize is the number of Monte-Carlo draws per logpdf estimate
	SampleSize int `yaml:"sample_size" json:"sample_size" mapstructure:"sample_size"`
	// MaxAttempts bounds rejection draws per sample (0 = unbounded)
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" mapstructure:"max_attempts"`
	// Workers sets estimator parallelism
	Workers int `yaml:"workers" json:"workers" mapstructure:"workers"`
	// Seed seeds the random source (0 = time based)
	Seed uint64 `yaml:"seed" json:"seed" mapstructure:"seed"`
}

// CheckpointConfig contains checkpoint settings.
type CheckpointConfig struct {
	// Compression selects the codec (none, gzip, snappy, s2, lz4, zstd, deflate)
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`
	// Level sets compression ratio vs speed (1-9)
	Level int `yaml:"level" json:"level" mapstructure:"level"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	// Level sets logging verbosity (debug, info, warn, error)
	Level string `yaml:"level" json:"level" mapstructure:"level"`
	// Encoding is json or console
	Encoding string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
}

// ObservabilityConfig contains tracing and metrics switches.
type ObservabilityConfig struct {
	// Tracing exports spans to stderr
	Tracing bool `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
	// Metrics dumps Prometheus collectors on exit
	Metrics bool `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
}

// Default returns the options used when nothing is configured.
func Default() *Options {
	return &Options{
		Model: ModelConfig{
			Alpha:      1,
			GridPoints: primitive.DefaultGridPoints,
		},
		Sampling: SamplingConfig{
			SampleSize: constrain.DefaultSampleSize,
			Workers:    1,
		},
		Checkpoint: CheckpointConfig{
			Compression: string(compression.Zstd),
			Level:       int(compression.Default),
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// Validate checks every section.
func (o *Options) Validate() error {
	if !(o.Model.Alpha > 0) {
		return configError("model.alpha must be positive", o.Model.Alpha)
	}
	if o.Model.GridPoints < 2 {
		return configError("model.grid_points must be at least 2", o.Model.GridPoints)
	}
	if o.Sampling.SampleSize < 1 {
		return configError("sampling.sample_size must be positive", o.Sampling.SampleSize)
	}
	if o.Sampling.MaxAttempts < 0 {
		return configError("sampling.max_attempts cannot be negative", o.Sampling.MaxAttempts)
	}
	if o.Sampling.Workers < 1 {
		return configError("sampling.workers must be positive", o.Sampling.Workers)
	}
	if _, err := compression.ParseAlgorithm(o.Checkpoint.Compression); err != nil {
		return err
	}
	if o.Checkpoint.Level < 0 || o.Checkpoint.Level > 9 {
		return configError("checkpoint.level must be between 0 and 9", o.Checkpoint.Level)
	}
	switch o.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return configError("logging.level must be debug, info, warn or error", o.Logging.Level)
	}
	switch o.Logging.Encoding {
	case "json", "console":
	default:
		return configError("logging.encoding must be json or console", o.Logging.Encoding)
	}
	return nil
}

func configError(msg string, value any) error {
	return crosscaterrors.New(crosscaterrors.ErrorTypeConfig, msg).WithDetail("value", value)
}

// ViewOptions returns the model construction options.
func (o *Options) ViewOptions() view.Options {
	return view.Options{GridPoints: o.Model.GridPoints}
}

// ConstrainOptions returns the sampler options.
func (o *Options) ConstrainOptions() []constrain.Option {
	return []constrain.Option{
		constrain.WithSampleSize(o.Sampling.SampleSize),
		constrain.WithMaxAttempts(o.Sampling.MaxAttempts),
		constrain.WithWorkers(o.Sampling.Workers),
	}
}

// CheckpointOptions returns the checkpoint encoding options.
func (o *Options) CheckpointOptions() checkpoint.Options {
	level := compression.Level(o.Checkpoint.Level)
	if level == 0 {
		level = compression.Default
	}
	return checkpoint.Options{
		Compression: compression.Algorithm(o.Checkpoint.Compression),
		Level:       level,
	}
}

// LoggerConfig returns the zap logger configuration.
func (o *Options) LoggerConfig() logger.Config {
	return logger.Config{
		Level:       o.Logging.Level,
		Encoding:    o.Logging.Encoding,
		OutputPaths: []string{"stderr"},
	}
}
