package config

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/your-org/watchexecd/internal/watchspec"
)

// ImportINI reads a watch list where every section is one entry:
//
//	[incoming]
//	path = /srv/in
//	events = CLOSE_WRITE, MOVED_TO
//	command = mv $@/$# $@/done/$#
//	check_interval = 5
func ImportINI(filePath string) ([]any, error) {
	// '#' is a placeholder in commands, not a comment
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file: %w", err)
	}

	entries := []any{}
	for _, section := range cfg.Sections() {
		if section.Name() == ini.DefaultSection && len(section.Keys()) == 0 {
			continue
		}

		entry := watchspec.Entry{}
		for _, key := range section.Keys() {
			switch key.Name() {
			case "events":
				entry["events"] = splitEvents(key.String())
			default:
				entry[key.Name()] = key.String()
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func splitEvents(value string) []any {
	events := []any{}
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == '|' }) {
		if part = strings.TrimSpace(part); part != "" {
			events = append(events, part)
		}
	}
	return events
}

// ExportINI writes specs in the format ImportINI reads.
func ExportINI(specs []watchspec.Spec, w io.Writer) error {
	cfg := ini.Empty()

	for i, spec := range specs {
		section, err := cfg.NewSection(fmt.Sprintf("watch%d", i+1))
		if err != nil {
			return fmt.Errorf("failed to create section: %w", err)
		}
		section.NewKey("path", spec.Path)
		section.NewKey("events", strings.Join(spec.Mask.Names(), ", "))
		section.NewKey("command", spec.Command)
		if spec.FileMatch != "" {
			section.NewKey("file_match", spec.FileMatch)
		}
		if spec.CheckInterval > 0 {
			section.NewKey("check_interval", strconv.FormatInt(int64(spec.CheckInterval/time.Second), 10))
		}
	}

	if _, err := cfg.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write INI: %w", err)
	}
	return nil
}
