package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vx-run/vx/internal/vxlog"
)

var installCmd = &cobra.Command{
	Use:   "install <tool>[@<version>]",
	Short: "Install a concrete version of a tool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, constraint := splitAtVersion(args[0])

		a, err := newApp()
		if err != nil {
			return err
		}

		ctx, _ := vxlog.NewInvocation(context.Background())

		provider, rt, err := a.Registry.Resolve(name)
		if err != nil {
			return err
		}

		resolved, err := a.resolverFor(provider, rt).Resolve(ctx, constraint)
		if err != nil {
			return err
		}

		execPath, err := a.Engine.Ensure(ctx, provider, rt, resolved)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "installed %s %s -> %s\n", rt.Name, resolved, execPath)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}

// splitAtVersion splits "node@20" into ("node", "20"), or returns
// ("node", "latest") if no `@` suffix is present.
func splitAtVersion(s string) (name, constraint string) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '@' {
			return s[:i], s[i+1:]
		}
	}

	return s, "latest"
}
