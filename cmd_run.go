package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/your-org/watchexecd/internal/config"
	"github.com/your-org/watchexecd/internal/daemon"
	"github.com/your-org/watchexecd/internal/pidfile"
	"github.com/your-org/watchexecd/internal/supervisor"
	"github.com/your-org/watchexecd/internal/watchtable"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "run",
		Short:       "Run the daemon in the foreground (default)",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{logToStdout: "true"},
		RunE:        a.runDaemon,
	}
}

func (a *app) runDaemon(cmd *cobra.Command, _ []string) error {
	s := a.settings
	logger := a.logger

	logger.Info().
		Str("version", version).
		Int("pid", os.Getpid()).
		Str("configRoot", s.ConfigRoot).
		Str("backend", s.Backend).
		Dur("pollInterval", s.PollInterval).
		Msg("Starting watchexecd")

	pid := pidfile.New(s.PIDFile)
	if err := pid.Acquire(); err != nil {
		logger.Error().Err(err).Str("pidFile", s.PIDFile).Msg("Unable to take the instance lock")
		return err
	}
	defer func() {
		if err := pid.Release(); err != nil {
			logger.Warn().Err(err).Msg("Failed to release pid file")
		}
	}()

	table, err := watchtable.Open(s.Backend, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Unable to initialize the watch table")
		return fmt.Errorf("failed to open watch table: %w", err)
	}

	signals := &daemon.Signals{}
	stopNotify := signals.Notify(cmd.Context(), logger)
	defer stopNotify()

	loop := daemon.New(
		table,
		config.NewLoader(s.ConfigRoot, logger),
		supervisor.New(s.Shell, logger),
		signals,
		s.PollInterval,
		logger,
	)
	if err := loop.Run(cmd.Context()); err != nil {
		logger.Error().Err(err).Msg("Daemon loop failed")
		return err
	}

	logger.Info().Msg("watchexecd stopped")
	return nil
}
