package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
	"github.com/ajitpratap0/crosscat/pkg/gpm"
	"github.com/ajitpratap0/crosscat/pkg/json"
	"github.com/ajitpratap0/crosscat/pkg/primitive"
	"github.com/ajitpratap0/crosscat/pkg/view"
)

// schemaFile is the YAML declaration of the modeled columns.
type schemaFile struct {
	Columns []schemaColumn `yaml:"columns"`
}

type schemaColumn struct {
	view.ColumnSpec `yaml:",inline"`
	Hypers          primitive.Hypers `yaml:"hypers,omitempty"`
}

func loadSchema(path string) (schemaFile, error) {
	var s schemaFile
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is supplied by the operator
	if err != nil {
		return s, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeFile, "failed to read schema").WithDetail("path", path)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeConfig, "failed to parse schema").WithDetail("path", path)
	}
	if len(s.Columns) == 0 {
		return s, crosscaterrors.New(crosscaterrors.ErrorTypeConfig, "schema declares no columns").WithDetail("path", path)
	}
	seen := map[string]bool{}
	for _, c := range s.Columns {
		if c.Name == "" {
			return s, crosscaterrors.New(crosscaterrors.ErrorTypeConfig, "schema column without a name")
		}
		if seen[c.Name] {
			return s, crosscaterrors.Newf(crosscaterrors.ErrorTypeConfig, "column %s declared twice", c.Name)
		}
		seen[c.Name] = true
	}
	return s, nil
}

// loadRows reads rows from a JSON file holding either an object keyed by
// row identifier or an array of rows. Array rows are keyed by position
// ("0", "1", ...).
func loadRows(path string) (map[string]gpm.Row, []string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is supplied by the operator
	if err != nil {
		return nil, nil, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeFile, "failed to read rows").WithDetail("path", path)
	}
	return parseRows(data)
}

func parseRows(data []byte) (map[string]gpm.Row, []string, error) {
	data = bytes.TrimSpace(data)
	rows := map[string]gpm.Row{}
	var order []string
	if len(data) > 0 && data[0] == '[' {
		var list []gpm.Row
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, nil, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeData, "failed to parse rows")
		}
		for i, r := range list {
			id := fmt.Sprint(i)
			rows[id] = r
			order = append(order, id)
		}
		return rows, order, nil
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, nil, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeData, "failed to parse rows")
	}
	for id := range rows {
		order = append(order, id)
	}
	slices.Sort(order)
	return rows, order, nil
}

// parseRow decodes a JSON object given on the command line. Empty input is
// an empty row.
func parseRow(flag, src string) (gpm.Row, error) {
	row := gpm.Row{}
	if src == "" {
		return row, nil
	}
	if err := json.Unmarshal([]byte(src), &row); err != nil {
		return nil, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeValidation, "--"+flag+" must be a JSON object").
			WithDetail("value", src)
	}
	return row, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewStreamingEncoder(w, false)
	enc.SetPretty("  ")
	return enc.Encode(v)
}
