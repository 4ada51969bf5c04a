package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <tool>@<version>",
	Short: "Remove an installed tool version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, version := splitAtVersion(args[0])
		if version == "latest" {
			return fmt.Errorf("uninstall requires an explicit version: %s@<version>", name)
		}

		a, err := newApp()
		if err != nil {
			return err
		}

		_, rt, err := a.Registry.Resolve(name)
		if err != nil {
			return err
		}

		if err := a.Engine.Uninstall(rt, version); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "uninstalled %s %s\n", rt.Name, version)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
