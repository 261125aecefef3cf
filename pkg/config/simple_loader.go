package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/crosscat/pkg/crosscaterrors"
)

// Load reads options from a YAML file on top of Default and validates them.
func Load(filePath string) (*Options, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller
	if err != nil {
		return nil, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeFile, "failed to read config file").
			WithDetail("path", filePath)
	}
	return Parse(data)
}

// Parse decodes YAML options on top of Default and validates them.
// ${VAR} references are replaced with environment values first.
func Parse(data []byte) (*Options, error) {
	opts := Default()
	content := substituteEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(content), opts); err != nil {
		return nil, crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeConfig, "failed to parse YAML")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Save writes options to a YAML file.
func Save(filePath string, opts *Options) error {
	data, err := yaml.Marshal(opts)
	if err != nil {
		return crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil { //nolint:gosec
		return crosscaterrors.Wrap(err, crosscaterrors.ErrorTypeFile, "failed to write config file").
			WithDetail("path", filePath)
	}

	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
