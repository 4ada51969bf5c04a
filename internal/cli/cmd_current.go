package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vx-run/vx/internal/vxlog"
)

var currentCmd = &cobra.Command{
	Use:   "current <tool>",
	Short: "Show the version that would run for a tool right now, without running it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		ctx, _ := vxlog.NewInvocation(context.Background())

		r, err := a.Pipeline.Resolve(ctx, args[0], nil)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", r.Runtime.Name, r.Version, r.Path)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(currentCmd)
}
