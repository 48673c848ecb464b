package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Format selects how results are rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name from the command line.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatTable, FormatJSON, FormatYAML:
		return Format(s), nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (expected table, json or yaml)", s)
}

// Marshal encodes v in the given format. Table output is not handled
// here; each result type has its own view.
func Marshal(format Format, v any) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(v, "", "  ")
	case FormatYAML:
		return yaml.Marshal(v)
	}
	return nil, fmt.Errorf("format %q has no marshaler", format)
}

// WriteFile writes v to path, picking JSON or YAML from the extension.
// Missing parent directories are created.
func WriteFile(path string, v any) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	format := FormatJSON
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		format = FormatYAML
	}

	data, err := Marshal(format, v)
	if err != nil {
		return fmt.Errorf("failed to render result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write result to %s: %w", path, err)
	}
	return nil
}
