// Package output renders CLI/gateway responses as JSON (default) or YAML
// (`--format yaml`), per SPEC_FULL.md §3.
package output

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func ParseFormat(s string) (Format, bool) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, true
	case FormatYAML:
		return FormatYAML, true
	default:
		return "", false
	}
}

// Render marshals value in the requested format.
func Render(value any, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(value)
	default:
		return json.MarshalIndent(value, "", "  ")
	}
}

// RenderString is a convenience wrapper for CLI output.
func RenderString(value any, format Format) (string, error) {
	b, err := Render(value, format)
	if err != nil {
		return "", fmt.Errorf("output: render: %w", err)
	}
	return string(b), nil
}
