package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/your-org/watchexecd/internal/pidfile"
)

func newReloadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Ask the running daemon to re-read its watch list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reloadSignal == nil {
				return errors.New("reload by signal is not supported on this platform")
			}
			return a.signalDaemon(cmd, reloadSignal, "Reload requested")
		},
	}
}

func newStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon; running commands are left alone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.signalDaemon(cmd, stopSignal, "Stop requested")
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the daemon is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pid := pidfile.New(a.settings.PIDFile)
			n, err := pid.Read()
			if err != nil || !pid.IsRunning() {
				fmt.Fprintln(cmd.OutOrStdout(), "not running")
				return errors.New("watchexecd is not running")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "running (pid %d)\n", n)
			return nil
		},
	}
}

func (a *app) signalDaemon(cmd *cobra.Command, sig os.Signal, msg string) error {
	pid := pidfile.New(a.settings.PIDFile)
	if err := pid.Signal(sig); err != nil {
		if errors.Is(err, pidfile.ErrNotFound) {
			return fmt.Errorf("watchexecd is not running (no pid file at %s)", pid.Path())
		}
		return err
	}
	n, _ := pid.Read()
	a.logger.Info().Int("pid", n).Str("signal", sig.String()).Msg(msg)
	fmt.Fprintf(cmd.OutOrStdout(), "%s (pid %d)\n", msg, n)
	return nil
}
