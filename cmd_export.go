package main

import (
	"github.com/spf13/cobra"

	"github.com/your-org/watchexecd/internal/config"
)

func newExportCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the accepted watch entries in another format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			specs := config.NewLoader(a.settings.ConfigRoot, a.logger).Load()
			return config.Export(specs, format, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&format, "format", config.FormatJSON, "Output format (json, yaml or ini)")
	return cmd
}
