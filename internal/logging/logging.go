// Package logging builds the daemon's zerolog logger: a console writer plus
// an optional size-rotated JSON file.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Output formats for the console sink
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures the logger.
type Options struct {
	// File is the rotating log file. Empty disables file logging.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Format     string
	Level      string
}

// DefaultOptions returns console-only logging at info level with the
// rotation limits used when a file is configured.
func DefaultOptions() Options {
	return Options{
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
		Format:     FormatConsole,
		Level:      zerolog.InfoLevel.String(),
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates the logger writing to out and, if configured, the rotating
// file. The returned closer flushes and closes the file.
func New(opts Options, out io.Writer) (zerolog.Logger, io.Closer) {
	zerolog.TimeFieldFormat = time.RFC3339

	var console io.Writer = out
	if !strings.EqualFold(opts.Format, FormatJSON) {
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		writers = append(writers, rotating)
		closer = rotating
	}

	level, levelErr := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if levelErr != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger().Level(level)
	if levelErr != nil {
		logger.Warn().Str("logLevel", opts.Level).Msg("Unknown log level, using info")
	}
	if opts.File != "" {
		logger.Info().
			Str("logFile", opts.File).
			Str("logLevel", level.String()).
			Int("maxSizeMB", opts.MaxSizeMB).
			Int("maxAgeDays", opts.MaxAgeDays).
			Int("maxBackups", opts.MaxBackups).
			Msg("Logging to both console and rotating file")
	}
	return logger, closer
}
