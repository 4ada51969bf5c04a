package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/vx-run/vx/internal/cli/output"
	"github.com/vx-run/vx/internal/vxlog"
)

var lsRemoteCmd = &cobra.Command{
	Use:   "ls-remote <tool>",
	Short: "List versions a provider can install",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		provider, rt, err := a.Registry.Resolve(args[0])
		if err != nil {
			return err
		}

		ctx, _ := vxlog.NewInvocation(context.Background())

		versions, err := a.resolverFor(provider, rt).All(ctx)
		if err != nil {
			return err
		}

		f := output.New(cmd.OutOrStdout(), getOutputOpts(cmd).Format())

		rows := make([][]string, 0, len(versions))
		for _, v := range versions {
			rows = append(rows, []string{v.Version})
		}

		return f.Rows([]string{"VERSION"}, rows, versions)
	},
}

func init() {
	rootCmd.AddCommand(lsRemoteCmd)
}
