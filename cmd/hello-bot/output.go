package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// writeStructured writes v as JSON or YAML. It reports false for the table
// format, which each command renders itself.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case outputJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(v); err != nil {
			return true, fmt.Errorf("failed to encode as JSON: %w", err)
		}
		return true, nil
	case outputYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		if err := encoder.Encode(v); err != nil {
			return true, fmt.Errorf("failed to encode as YAML: %w", err)
		}
		return true, nil
	default:
		return false, nil
	}
}
