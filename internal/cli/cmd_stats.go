package cli

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/vx-run/vx/internal/cli/output"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize loaded providers, runtimes, and installed versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		rs := a.Registry.Stats()

		type row struct {
			Runtime   string `json:"runtime"`
			Provider  string `json:"provider"`
			Installed int    `json:"installed"`
		}

		var rows []row

		for _, l := range a.Registry.List() {
			versions, err := a.Store.InstalledFast(l.Runtime.Name)
			if err != nil {
				return err
			}

			rows = append(rows, row{Runtime: l.Runtime.Name, Provider: l.Provider.Descriptor.Name, Installed: len(versions)})
		}

		out := struct {
			Providers int   `json:"providers"`
			Runtimes  int   `json:"runtimes"`
			Tools     []row `json:"tools"`
		}{Providers: rs.Providers, Runtimes: rs.Runtimes, Tools: rows}

		tableRows := make([][]string, 0, len(rows))
		for _, r := range rows {
			tableRows = append(tableRows, []string{r.Runtime, r.Provider, strconv.Itoa(r.Installed)})
		}

		f := output.New(cmd.OutOrStdout(), getOutputOpts(cmd).Format())

		return f.Rows([]string{"RUNTIME", "PROVIDER", "INSTALLED"}, tableRows, out)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
