package config

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/your-org/watchexecd/internal/watchspec"
)

// Export formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatINI  = "ini"
)

// Export writes specs as a watch list in the given format.
func Export(specs []watchspec.Spec, format string, w io.Writer) error {
	if format == FormatINI {
		return ExportINI(specs, w)
	}

	entries := make([]watchspec.Entry, len(specs))
	for i, spec := range specs {
		entries[i] = spec.Entry()
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("failed to write YAML: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
