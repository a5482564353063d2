package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/your-org/watchexecd/internal/watchspec"
)

// ErrUnsupportedFormat is returned for watch list files with an unknown
// extension.
var ErrUnsupportedFormat = errors.New("unsupported watch list format")

// Result is the outcome of parsing one watch list entry. Index is -1 when
// the whole file could not be read.
type Result struct {
	File  string
	Index int
	Spec  watchspec.Spec
	Err   error
}

// Loader reads the watch list below a config root: <root>/watchexecd.json
// first, then every supported file in <root>/watchexecd/ in name order.
type Loader struct {
	Root   string
	Parser *watchspec.Parser
	logger zerolog.Logger
}

// NewLoader creates a loader that validates paths against the filesystem.
func NewLoader(root string, logger zerolog.Logger) *Loader {
	logger = logger.With().Str("component", "config").Logger()
	return &Loader{
		Root:   root,
		Parser: watchspec.NewParser(logger),
		logger: logger,
	}
}

// Files lists the watch list files that exist, in load order.
func (l *Loader) Files() ([]string, error) {
	var files []string

	main := filepath.Join(l.Root, Name+".json")
	if info, err := os.Stat(main); err == nil && !info.IsDir() {
		files = append(files, main)
	}

	dir := filepath.Join(l.Root, Name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return files, nil
		}
		return files, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	// ReadDir sorts by name
	for _, e := range entries {
		if e.IsDir() || !supported(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

func supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml", ".ini":
		return true
	}
	return false
}

// Check parses every entry of every file and reports each outcome.
func (l *Loader) Check() []Result {
	var results []Result

	files, err := l.Files()
	if err != nil {
		results = append(results, Result{File: filepath.Join(l.Root, Name), Index: -1, Err: err})
	}
	if len(files) == 0 {
		l.logger.Warn().Str("configRoot", l.Root).Msg("No watch list found")
	}

	for _, file := range files {
		entries, err := ReadEntries(file)
		if err != nil {
			results = append(results, Result{File: file, Index: -1, Err: err})
			continue
		}
		for i, raw := range entries {
			spec, err := l.Parser.Parse(raw)
			results = append(results, Result{File: file, Index: i, Spec: spec, Err: err})
		}
	}
	return results
}

// Load returns the accepted specs. Every rejection is logged and skipped.
func (l *Loader) Load() []watchspec.Spec {
	var specs []watchspec.Spec
	for _, r := range l.Check() {
		if r.Err != nil {
			event := l.logger.Error().Err(r.Err).Str("file", r.File)
			if r.Index >= 0 {
				event = event.Int("entry", r.Index)
			}
			event.Msg("Ignoring watch entry")
			continue
		}
		l.logger.Debug().
			Str("file", r.File).
			Str("path", r.Spec.Path).
			Str("events", r.Spec.Mask.String()).
			Msg("Watch entry loaded")
		specs = append(specs, r.Spec)
	}
	return specs
}

// ReadEntries decodes a watch list file into raw entries according to its
// extension.
func ReadEntries(path string) ([]any, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".ini" {
		return ImportINI(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read watch list: %w", err)
	}

	var doc any
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if doc == nil {
			return nil, nil
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	entries, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: watch list must be an array of objects", path)
	}
	return entries, nil
}
