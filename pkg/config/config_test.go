package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/crosscat/pkg/compression"
	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
)

func TestDefault(t *testing.T) {
	opts := Default()
	require.NoError(t, opts.Validate())
	assert.Equal(t, 1000, opts.Sampling.SampleSize)
	assert.Zero(t, opts.Sampling.MaxAttempts)
	assert.Equal(t, 30, opts.ViewOptions().GridPoints)
	assert.Equal(t, compression.Zstd, opts.CheckpointOptions().Compression)
	assert.Len(t, opts.ConstrainOptions(), 3)
	assert.Equal(t, []string{"stderr"}, opts.LoggerConfig().OutputPaths)
}

func TestParse(t *testing.T) {
	t.Setenv("CROSSCAT_TEST_WORKERS", "4")
	opts, err := Parse([]byte(`
model:
  grid_points: 12
sampling:
  sample_size: 250
  max_attempts: 10000
  workers: ${CROSSCAT_TEST_WORKERS}
  seed: 42
checkpoint:
  compression: lz4
logging:
  level: debug
  encoding: json
observability:
  tracing: true
`))
	require.NoError(t, err)
	assert.Equal(t, 1.0, opts.Model.Alpha, "unset fields keep defaults")
	assert.Equal(t, 12, opts.Model.GridPoints)
	assert.Equal(t, 250, opts.Sampling.SampleSize)
	assert.Equal(t, 10000, opts.Sampling.MaxAttempts)
	assert.Equal(t, 4, opts.Sampling.Workers)
	assert.Equal(t, uint64(42), opts.Sampling.Seed)
	assert.Equal(t, "lz4", opts.Checkpoint.Compression)
	assert.Equal(t, "json", opts.Logging.Encoding)
	assert.True(t, opts.Observability.Tracing)
	assert.False(t, opts.Observability.Metrics)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"alpha", func(o *Options) { o.Model.Alpha = 0 }},
		{"grid points", func(o *Options) { o.Model.GridPoints = 1 }},
		{"sample size", func(o *Options) { o.Sampling.SampleSize = 0 }},
		{"max attempts", func(o *Options) { o.Sampling.MaxAttempts = -1 }},
		{"workers", func(o *Options) { o.Sampling.Workers = 0 }},
		{"codec", func(o *Options) { o.Checkpoint.Compression = "rar" }},
		{"level", func(o *Options) { o.Checkpoint.Level = 12 }},
		{"log level", func(o *Options) { o.Logging.Level = "verbose" }},
		{"encoding", func(o *Options) { o.Logging.Encoding = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Default()
			tt.mutate(opts)
			err := opts.Validate()
			require.Error(t, err)
			assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeConfig))
		})
	}
}

func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crosscat.yaml")
	opts := Default()
	opts.Sampling.Workers = 3
	require.NoError(t, Save(path, opts))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, opts, loaded)

	require.NoError(t, os.WriteFile(path, []byte("sampling: [1, 2"), 0o600))
	_, err = Load(path)
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeConfig))

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeFile))
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("CROSSCAT_A", "x")
	assert.Equal(t, "x-${open", substituteEnvVars("${CROSSCAT_A}-${open"))
	assert.Equal(t, "[]", substituteEnvVars("[${CROSSCAT_UNSET_VAR}]"))
}
