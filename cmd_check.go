package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/your-org/watchexecd/internal/config"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the watch list and print every entry",
		Long: `Check parses the watch list exactly as the daemon would and prints one
line per entry. It exits with status 1 if any entry or file was rejected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader := config.NewLoader(a.settings.ConfigRoot, a.logger)
			results := loader.Check()
			out := cmd.OutOrStdout()

			rejected := 0
			for _, r := range results {
				where := r.File
				if r.Index >= 0 {
					where = fmt.Sprintf("%s[%d]", r.File, r.Index)
				}
				if r.Err != nil {
					rejected++
					fmt.Fprintf(out, "FAIL %s: %v\n", where, r.Err)
					continue
				}
				line := fmt.Sprintf("OK   %s: %s %s %q", where, r.Spec.Path, r.Spec.Mask, r.Spec.Command)
				if r.Spec.FileMatch != "" {
					line += " file_match=" + r.Spec.FileMatch
				}
				if !r.Spec.Immediate() {
					line += " check_interval=" + r.Spec.CheckInterval.String()
				}
				fmt.Fprintln(out, line)
			}

			fmt.Fprintf(out, "%d entries, %d rejected\n", len(results), rejected)
			if rejected > 0 {
				return fmt.Errorf("%d watch entries rejected", rejected)
			}
			return nil
		},
	}
}
