package main

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
)

const testSchema = `
columns:
  - name: x
    stattype: gaussian
    hypers: {m: 5}
  - name: flag
    stattype: bernoulli
  - name: color
    stattype: categorical
    options: [red, green, blue]
`

const testRows = `{
  "r1": {"x": 1.0, "flag": true, "color": "red"},
  "r2": {"x": 1.5, "flag": true, "color": "red"},
  "r3": {"x": 2.0, "flag": true},
  "r4": {"x": 9.0, "flag": false, "color": "blue"},
  "r5": {"x": 9.5, "flag": false, "color": "blue"},
  "r6": {"x": 10.0, "flag": false, "color": "green"}
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func initModel(t *testing.T, extra ...string) string {
	t.Helper()
	dir := t.TempDir()
	schema := filepath.Join(dir, "schema.yaml")
	rows := filepath.Join(dir, "rows.json")
	model := filepath.Join(dir, "model.ckpt")
	require.NoError(t, os.WriteFile(schema, []byte(testSchema), 0o600))
	require.NoError(t, os.WriteFile(rows, []byte(testRows), 0o600))

	args := append([]string{"init", "--schema", schema, "--data", rows, "--out", model, "--seed", "7"}, extra...)
	_, err := run(t, args...)
	require.NoError(t, err)
	return model
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "CrossCat v"+version)
}

func TestInitInspect(t *testing.T) {
	model := initModel(t)

	out, err := run(t, "inspect", "--model", model)
	require.NoError(t, err)
	var summary modelSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 6, summary.Rows)
	assert.Len(t, summary.Columns, 3)
	require.Len(t, summary.Views, 1)
	assert.Equal(t, []string{"color", "flag", "x"}, summary.Views[0].Columns)
	total := 0
	for _, n := range summary.Views[0].Categories {
		total += n
	}
	assert.Equal(t, 6, total)
	assert.Equal(t, 5.0, summary.Hypers["x"]["m"])
}

func TestInit_RandomViews(t *testing.T) {
	model := initModel(t, "--random-views", "--alpha", "2", "--compression", "lz4")

	data, err := os.ReadFile(model)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "crosscat-checkpoint/lz4\n"))

	out, err := run(t, "inspect", "--model", model)
	require.NoError(t, err)
	var summary modelSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	var columns []string
	for _, v := range summary.Views {
		columns = append(columns, v.Columns...)
		assert.Equal(t, 2.0, v.Alpha)
		assert.Equal(t, 6, v.Rows)
	}
	assert.ElementsMatch(t, []string{"color", "flag", "x"}, columns)
	assert.Equal(t, 2.0, summary.Alpha)
}

func TestSimulate_Event(t *testing.T) {
	model := initModel(t)

	out, err := run(t, "simulate", "--model", model, "--targets", "x,color",
		"--event", "(< x 3)", "-n", "5", "--max-attempts", "100000")
	require.NoError(t, err)

	dec := json.NewDecoder(bufio.NewReader(strings.NewReader(out)))
	count := 0
	for dec.More() {
		var sample map[string]any
		require.NoError(t, dec.Decode(&sample))
		assert.Less(t, sample["x"].(float64), 3.0)
		assert.Contains(t, []any{"red", "green", "blue"}, sample["color"])
		assert.Len(t, sample, 2)
		count++
	}
	assert.Equal(t, 5, count)
}

func TestLogpdf(t *testing.T) {
	model := initModel(t)

	out, err := run(t, "logpdf", "--model", model, "--targets", `{"flag": true}`, "--given", `{"color": "red"}`)
	require.NoError(t, err)
	var res map[string]float64
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Less(t, res["logpdf"], 0.0)

	out, err = run(t, "logpdf", "--model", model, "--targets", `{"flag": true}`,
		"--event", `(= color "red")`, "--sample-size", "50", "--workers", "2")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Less(t, res["logpdf"], 0.0)

	_, err = run(t, "logpdf", "--model", model, "--targets", `{"flag": true}`, "--given", `{"flag": false}`)
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeOverlappingVariables))

	_, err = run(t, "logpdf", "--model", model, "--targets", `not json`)
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeValidation))
}

func TestScore(t *testing.T) {
	model := initModel(t)

	out, err := run(t, "score", "--model", model, "--column", "x", "--aux", "2")
	require.NoError(t, err)
	var report scoreReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Less(t, report.LogpdfScore, 0.0)
	assert.Equal(t, "x", report.Column)
	assert.Len(t, report.ViewScores, 3)

	_, err = run(t, "score", "--model", model, "--column", "nope")
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeNotFound))
}

func TestOptionsPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "crosscat.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("sampling:\n  workers: 3\n  sample_size: 7\n"), 0o600))
	t.Setenv("CROSSCAT_SAMPLING_SAMPLE_SIZE", "11")

	root, a := newRoot()
	for _, c := range root.Commands() {
		if c.Name() == "inspect" {
			c.RunE = func(cmd *cobra.Command, args []string) error { return nil }
		}
	}
	root.SetArgs([]string{"inspect", "--config", cfg, "--max-attempts", "9", "--log-level", "error"})
	require.NoError(t, root.Execute())
	require.NotNil(t, a.opts)
	assert.Equal(t, 3, a.opts.Sampling.Workers, "file")
	assert.Equal(t, 11, a.opts.Sampling.SampleSize, "env over file")
	assert.Equal(t, 9, a.opts.Sampling.MaxAttempts, "flag")
}

func TestInvalidOptions(t *testing.T) {
	_, err := run(t, "inspect", "--workers", "0")
	assert.True(t, crosscaterrors.IsType(err, crosscaterrors.ErrorTypeConfig))
}

func TestInspect_WithMetrics(t *testing.T) {
	model := initModel(t)
	_, err := run(t, "inspect", "--model", model, "--metrics")
	require.NoError(t, err)
}
