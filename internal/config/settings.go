// Package config holds the daemon settings and loads the watch list.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/your-org/watchexecd/internal/logging"
	"github.com/your-org/watchexecd/internal/watchtable"
)

// Name is the base name of the watch list file and directory.
const Name = "watchexecd"

// EnvPrefix prefixes every environment override, e.g. WATCHEXECD_SHELL.
const EnvPrefix = "WATCHEXECD"

// Setting keys
const (
	KeyConfigRoot    = "config_root"
	KeyPollInterval  = "poll_interval"
	KeyShell         = "shell"
	KeyBackend       = "backend"
	KeyPIDFile       = "pid_file"
	KeyLogFile       = "log_file"
	KeyLogMaxSize    = "log_max_size_mb"
	KeyLogMaxBackups = "log_max_backups"
	KeyLogMaxAge     = "log_max_age_days"
	KeyLogCompress   = "log_compress"
	KeyLogFormat     = "log_format"
	KeyLogLevel      = "log_level"
)

// Settings is everything the daemon needs besides the watch list.
type Settings struct {
	ConfigRoot   string
	PollInterval time.Duration
	Shell        string
	Backend      string
	PIDFile      string
	Log          logging.Options
}

// NewViper returns a viper instance with defaults and environment
// overrides in place.
func NewViper() *viper.Viper {
	v := viper.New()
	logDefaults := logging.DefaultOptions()

	v.SetDefault(KeyConfigRoot, DefaultConfigRoot())
	v.SetDefault(KeyPollInterval, 100*time.Millisecond)
	v.SetDefault(KeyShell, "")
	v.SetDefault(KeyBackend, watchtable.BackendAuto)
	v.SetDefault(KeyPIDFile, DefaultPIDFile())
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogMaxSize, logDefaults.MaxSizeMB)
	v.SetDefault(KeyLogMaxBackups, logDefaults.MaxBackups)
	v.SetDefault(KeyLogMaxAge, logDefaults.MaxAgeDays)
	v.SetDefault(KeyLogCompress, logDefaults.Compress)
	v.SetDefault(KeyLogFormat, logDefaults.Format)
	v.SetDefault(KeyLogLevel, logDefaults.Level)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags lets command line flags override settings. Flags are named
// after the keys with dashes, e.g. --poll-interval.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !isSettingKey(key) {
			return
		}
		if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("failed to bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

func isSettingKey(key string) bool {
	switch key {
	case KeyConfigRoot, KeyPollInterval, KeyShell, KeyBackend, KeyPIDFile,
		KeyLogFile, KeyLogMaxSize, KeyLogMaxBackups, KeyLogMaxAge,
		KeyLogCompress, KeyLogFormat, KeyLogLevel:
		return true
	}
	return false
}

// ReadSettingsFile merges a YAML, JSON or TOML settings file. An empty path
// is a no-op.
func ReadSettingsFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read settings file %s: %w", path, err)
	}
	return nil
}

// Load resolves and validates the settings.
func Load(v *viper.Viper) (Settings, error) {
	s := Settings{
		ConfigRoot:   v.GetString(KeyConfigRoot),
		PollInterval: v.GetDuration(KeyPollInterval),
		Shell:        v.GetString(KeyShell),
		Backend:      strings.ToLower(v.GetString(KeyBackend)),
		PIDFile:      v.GetString(KeyPIDFile),
		Log: logging.Options{
			File:       v.GetString(KeyLogFile),
			MaxSizeMB:  v.GetInt(KeyLogMaxSize),
			MaxBackups: v.GetInt(KeyLogMaxBackups),
			MaxAgeDays: v.GetInt(KeyLogMaxAge),
			Compress:   v.GetBool(KeyLogCompress),
			Format:     v.GetString(KeyLogFormat),
			Level:      v.GetString(KeyLogLevel),
		},
	}

	if s.PollInterval <= 0 {
		return Settings{}, fmt.Errorf("%s must be positive, got %s", KeyPollInterval, s.PollInterval)
	}
	switch s.Backend {
	case watchtable.BackendAuto, watchtable.BackendInotify, watchtable.BackendFsnotify:
	default:
		return Settings{}, fmt.Errorf("unknown %s %q", KeyBackend, s.Backend)
	}
	if s.ConfigRoot == "" {
		return Settings{}, fmt.Errorf("%s is empty", KeyConfigRoot)
	}
	return s, nil
}

// DefaultConfigRoot is /etc for root or when there is no home directory,
// and ~/.config otherwise.
func DefaultConfigRoot() string {
	if os.Geteuid() == 0 {
		return "/etc"
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "/etc"
	}
	return filepath.Join(home, ".config")
}

// DefaultPIDFile lives in /run for root and in the runtime or temp
// directory otherwise.
func DefaultPIDFile() string {
	if os.Geteuid() == 0 {
		return filepath.Join("/run", Name+".pid")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, Name+".pid")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%d.pid", Name, os.Getuid()))
}
