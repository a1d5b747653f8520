package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show application directories",
	Long: `Show the application directory, where input files are expected and where
log files are written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "App:  %s\n", cfg.Root)
		fmt.Fprintf(out, "Data: %s\n", cfg.DataDir())
		fmt.Fprintf(out, "Logs: %s\n", cfg.LogsDir())
		if logPath != "" {
			fmt.Fprintf(out, "Log file: %s\n", logPath)
		}
		return nil
	},
}
