package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage named environments",
}

var envListCmd = &cobra.Command{
	Use:   "list",
	Short: "List named environments under VX_HOME/envs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		entries, err := os.ReadDir(filepath.Join(a.Layout.Root, "envs"))
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "(none)")
				return nil
			}

			return err
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() {
				names = append(names, e.Name())
			}
		}

		sort.Strings(names)

		active := os.Getenv("VX_ENV")

		for _, n := range names {
			marker := "  "
			if n == active {
				marker = "* "
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", marker, n)
		}

		return nil
	},
}

func init() {
	envCmd.AddCommand(envListCmd)
	rootCmd.AddCommand(envCmd)
}
