package cli

import (
	"github.com/spf13/cobra"
	"github.com/vx-run/vx/internal/cli/output"
)

// getOutputOpts reads the persistent --json/--table flags. Declared on the
// root command, so every subcommand sees the same pair without redeclaring
// it locally.
func getOutputOpts(cmd *cobra.Command) output.Options {
	j, _ := cmd.Flags().GetBool("json")
	tbl, _ := cmd.Flags().GetBool("table")

	return output.Options{JSON: j, Table: tbl}
}
