package cli

import (
	"github.com/spf13/cobra"
	"github.com/vx-run/vx/internal/cli/output"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List loaded provider scripts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		seen := map[string]bool{}

		type row struct {
			Name      string `json:"name"`
			Ecosystem string `json:"ecosystem"`
			Source    string `json:"source"`
			Runtimes  int    `json:"runtimes"`
		}

		var out []row

		for _, l := range a.Registry.List() {
			if seen[l.Provider.Descriptor.Name] {
				continue
			}

			seen[l.Provider.Descriptor.Name] = true

			out = append(out, row{
				Name:      l.Provider.Descriptor.Name,
				Ecosystem: l.Provider.Descriptor.Ecosystem,
				Source:    l.Provider.Descriptor.SourcePath,
				Runtimes:  len(l.Provider.Descriptor.Runtimes),
			})
		}

		rows := make([][]string, 0, len(out))
		for _, r := range out {
			rows = append(rows, []string{r.Name, r.Ecosystem, r.Source})
		}

		f := output.New(cmd.OutOrStdout(), getOutputOpts(cmd).Format())

		return f.Rows([]string{"NAME", "ECOSYSTEM", "SOURCE"}, rows, out)
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
