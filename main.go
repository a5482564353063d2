/*
 * watchexecd - directory watch and command execution daemon
 * Copyright (C) 2025 Your Organization
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published
 * by the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/your-org/watchexecd/internal/config"
	"github.com/your-org/watchexecd/internal/logging"
)

// Set at build time with -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// annotation marking commands whose stdout belongs to the logger
const logToStdout = "logToStdout"

type app struct {
	v            *viper.Viper
	settingsFile string
	settings     config.Settings
	logger       zerolog.Logger
	logCloser    io.Closer
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper(), logger: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:   "watchexecd",
		Short: "Run commands when files in watched directories change",
		Long: `watchexecd watches directories listed in its watch list and runs a shell
command for every matching file event, either immediately or once the
file has stopped growing.

The watch list is read from <config-root>/watchexecd.json and every
.json, .yaml, .yml or .ini file in <config-root>/watchexecd/.
Send SIGUSR1 (or run 'watchexecd reload') to re-read it.`,
		Version:            version,
		Args:               cobra.NoArgs,
		SilenceUsage:       true,
		Annotations:        map[string]string{logToStdout: "true"},
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
		RunE:               a.runDaemon,
	}
	cmd.SetVersionTemplate("watchexecd version {{.Version}}\n")

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.settingsFile, "settings", "", "Settings file (YAML, JSON or TOML)")
	flags.String("config-root", "", "Directory holding the watch list (default /etc or ~/.config)")
	flags.Duration("poll-interval", 0, "Event poll timeout and stabilization tick (default 100ms)")
	flags.String("shell", "", "Shell used to run commands (default /bin/sh)")
	flags.String("backend", "", "Watch backend: auto, inotify or fsnotify")
	flags.String("pid-file", "", "PID file used for single-instance locking and signalling")
	flags.String("log-file", "", "Also log to this file, rotated by size")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Console log format (console or json)")

	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newCheckCmd(a))
	cmd.AddCommand(newExportCmd(a))
	cmd.AddCommand(newReloadCmd(a))
	cmd.AddCommand(newStopCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup resolves settings and builds the logger before any command runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
		return err
	}
	if err := config.ReadSettingsFile(a.v, a.settingsFile); err != nil {
		return err
	}
	settings, err := config.Load(a.v)
	if err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	a.settings = settings

	out := cmd.ErrOrStderr()
	if cmd.Annotations[logToStdout] != "" {
		out = cmd.OutOrStdout()
	}
	a.logger, a.logCloser = logging.New(settings.Log, out)
	return nil
}

func (a *app) teardown(_ *cobra.Command, _ []string) error {
	if a.logCloser != nil {
		return a.logCloser.Close()
	}
	return nil
}
