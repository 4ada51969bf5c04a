package cli

import (
	"github.com/spf13/cobra"
	"github.com/vx-run/vx/internal/cli/output"
)

var listCmd = &cobra.Command{
	Use:   "list [tool]",
	Short: "List installed versions of one tool, or every runtime vx knows about",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		f := output.New(cmd.OutOrStdout(), getOutputOpts(cmd).Format())

		if len(args) == 1 {
			return listInstalled(a, f, args[0])
		}

		return listRuntimes(a, f)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func listInstalled(a *app, f *output.Formatter, name string) error {
	_, rt, err := a.Registry.Resolve(name)
	if err != nil {
		return err
	}

	versions, err := a.Store.InstalledFast(rt.Name)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(versions))
	for _, v := range versions {
		rows = append(rows, []string{v})
	}

	return f.Rows([]string{"VERSION"}, rows, versions)
}

func listRuntimes(a *app, f *output.Formatter) error {
	listed := a.Registry.List()

	type row struct {
		Runtime  string `json:"runtime"`
		Provider string `json:"provider"`
	}

	out := make([]row, 0, len(listed))
	rows := make([][]string, 0, len(listed))

	for _, l := range listed {
		out = append(out, row{Runtime: l.Runtime.Name, Provider: l.Provider.Descriptor.Name})
		rows = append(rows, []string{l.Runtime.Name, l.Provider.Descriptor.Name})
	}

	return f.Rows([]string{"RUNTIME", "PROVIDER"}, rows, out)
}
