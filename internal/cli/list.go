package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List candidate input files",
	Long: `List input files in the data directory, newest first.

The first entry is the file 'whitelister ingest' picks when no file is given.

Examples:
  whitelister list
  whitelister list -v`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cat := newCatalog()

	files := cat.List()
	if len(files) == 0 {
		fmt.Fprintf(out, "No input files found in %s\n", cat.Dir())
		return nil
	}

	fmt.Fprintf(out, "Input files (%d):\n\n", len(files))
	for i, f := range files {
		fmt.Fprintf(out, "%2d. %s  %s\n", i+1, f.CreatedAt.Local().Format("2006-01-02 15:04:05"), f.Name())
		if verbose {
			fmt.Fprintf(out, "    %s\n", f.Path)
		}
	}

	return nil
}
