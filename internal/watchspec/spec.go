// Package watchspec describes what a single watch-list entry asks for and
// converts loosely-typed config entries into validated specs.
package watchspec

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog"
)

// Spec is a validated watch descriptor. Two specs describe the same watch
// when all fields are equal.
type Spec struct {
	Path          string        `json:"path"`
	Mask          Mask          `json:"mask"`
	Command       string        `json:"command"`
	FileMatch     string        `json:"fileMatch,omitempty"`
	CheckInterval time.Duration `json:"checkInterval,omitempty"`
}

// Equal reports structural equality
func (s Spec) Equal(other Spec) bool {
	return s == other
}

// Immediate reports whether matching events run without a stabilization wait.
func (s Spec) Immediate() bool {
	return s.CheckInterval <= 0
}

// Entry is one deserialized element of a watch list.
type Entry map[string]any

// Entry converts the spec back into its configuration form.
func (s Spec) Entry() Entry {
	names := s.Mask.Names()
	events := make([]any, len(names))
	for i, n := range names {
		events[i] = n
	}
	e := Entry{
		"path":    s.Path,
		"events":  events,
		"command": s.Command,
	}
	if s.FileMatch != "" {
		e["file_match"] = s.FileMatch
	}
	if s.CheckInterval > 0 {
		e["check_interval"] = int64(s.CheckInterval / time.Second)
	}
	return e
}

// Rejection reasons. Parse wraps one of these so callers can use errors.Is.
var (
	ErrNotObject    = errors.New("entry is not an object")
	ErrMissingField = errors.New("missing required field")
	ErrWrongType    = errors.New("field has wrong type")
	ErrPathNotFound = errors.New("path does not exist")
	ErrNoEvents     = errors.New("no recognized events")
	ErrBadPattern   = errors.New("malformed file_match pattern")
	ErrBadCommand   = errors.New("malformed command")
	ErrBadInterval  = errors.New("invalid check_interval")
)

// Parser converts entries into specs.
type Parser struct {
	// DirExists reports whether the watched path exists. Defaults to os.Stat.
	DirExists func(path string) bool
	Logger    zerolog.Logger
}

// NewParser returns a Parser that checks paths against the real filesystem.
func NewParser(logger zerolog.Logger) *Parser {
	return &Parser{
		DirExists: pathExists,
		Logger:    logger,
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Parse validates a single entry. The returned error is the rejection reason.
func (p *Parser) Parse(raw any) (Spec, error) {
	entry, ok := asEntry(raw)
	if !ok {
		return Spec{}, fmt.Errorf("%w: %v", ErrNotObject, raw)
	}

	pathValue, hasPath := entry["path"]
	if !hasPath {
		if dir, hasDir := entry["dir"]; hasDir {
			p.Logger.Warn().Msg("'dir' key used instead of 'path', this is deprecated")
			pathValue, hasPath = dir, true
		}
	}
	eventsValue, hasEvents := entry["events"]
	commandValue, hasCommand := entry["command"]
	if !hasPath || !hasEvents || !hasCommand {
		return Spec{}, fmt.Errorf("%w: one of \"path\", \"events\" and \"command\"", ErrMissingField)
	}

	path, ok := pathValue.(string)
	if !ok {
		return Spec{}, fmt.Errorf("%w: \"path\" must be a string", ErrWrongType)
	}
	events, ok := asList(eventsValue)
	if !ok {
		return Spec{}, fmt.Errorf("%w: \"events\" must be an array", ErrWrongType)
	}
	command, ok := commandValue.(string)
	if !ok {
		return Spec{}, fmt.Errorf("%w: \"command\" must be a string", ErrWrongType)
	}
	if strings.TrimSpace(command) == "" {
		return Spec{}, fmt.Errorf("%w: command is empty", ErrBadCommand)
	}

	// one spelling per directory so equal watches compare equal
	if path != "" {
		path = filepath.Clean(path)
	}

	exists := p.DirExists
	if exists == nil {
		exists = pathExists
	}
	if path == "" || !exists(path) {
		return Spec{}, fmt.Errorf("%w: %q", ErrPathNotFound, path)
	}

	var mask Mask
	for _, ev := range events {
		name, ok := ev.(string)
		if !ok {
			p.Logger.Warn().Interface("event", ev).Str("path", path).Msg("Event is not a string, skipping")
			continue
		}
		m, ok := ParseEvent(name)
		if !ok {
			p.Logger.Warn().Str("event", name).Str("path", path).Msg("Unknown event name, skipping")
			continue
		}
		mask |= m
	}
	if mask.Events() == 0 {
		return Spec{}, fmt.Errorf("%w for %s", ErrNoEvents, path)
	}

	fileMatch := ""
	if v, ok := entry["file_match"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return Spec{}, fmt.Errorf("%w: \"file_match\" must be a string", ErrWrongType)
		}
		if _, err := glob.Compile(s); err != nil {
			return Spec{}, fmt.Errorf("%w %q: %v", ErrBadPattern, s, err)
		}
		fileMatch = s
	}

	interval, err := parseInterval(entry["check_interval"])
	if err != nil {
		return Spec{}, err
	}

	return Spec{
		Path:          path,
		Mask:          mask,
		Command:       command,
		FileMatch:     fileMatch,
		CheckInterval: interval,
	}, nil
}

func parseInterval(v any) (time.Duration, error) {
	var secs int64
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		secs = int64(n)
	case int64:
		secs = n
	case uint64:
		if n > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %d is too large", ErrBadInterval, n)
		}
		secs = int64(n)
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %v is not a whole number of seconds", ErrBadInterval, n)
		}
		secs = int64(n)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadInterval, n)
		}
		secs = parsed
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrBadInterval, v)
	}
	if secs < 0 {
		return 0, fmt.Errorf("%w: %d is negative", ErrBadInterval, secs)
	}
	if secs > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d is too large", ErrBadInterval, secs)
	}
	return time.Duration(secs) * time.Second, nil
}

func asEntry(raw any) (Entry, bool) {
	switch v := raw.(type) {
	case Entry:
		return v, true
	case map[string]any:
		return Entry(v), true
	default:
		return nil, false
	}
}

func asList(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}
