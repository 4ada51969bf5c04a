package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vx-run/vx/internal/shimfmt"
	"github.com/vx-run/vx/internal/version"
	"github.com/vx-run/vx/internal/vxlog"
)

var shimCmd = &cobra.Command{
	Use:   "shim",
	Short: "Manage shim sidecars",
}

var shimSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Regenerate shim sidecars for every installed tool's latest resolved version",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		ctx, _ := vxlog.NewInvocation(context.Background())

		synced := 0

		for _, l := range a.Registry.List() {
			versions, err := a.Store.Installed(l.Runtime.Name)
			if err != nil || len(versions) == 0 {
				continue
			}

			latest := versions[len(versions)-1]
			for _, v := range versions {
				if version.Less(latest, v) {
					latest = v
				}
			}

			execPath, err := a.Engine.Ensure(ctx, l.Provider, l.Runtime, latest)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "vx: shim sync: %s: %v\n", l.Runtime.Name, err)
				continue
			}

			shim := shimfmt.New(execPath)
			if err := shimfmt.Save(filepath.Join(a.Layout.Shims(), l.Runtime.Executable+".shim"), &shim); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "vx: shim sync: %s: %v\n", l.Runtime.Name, err)
				continue
			}

			synced++
		}

		fmt.Fprintf(cmd.OutOrStdout(), "synced %d shim(s)\n", synced)

		return nil
	},
}

var shimShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print the resolved contents of a shim sidecar",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		path := filepath.Join(a.Layout.Shims(), args[0]+".shim")

		s, err := shimfmt.Load(path)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "path = %q\nargs = %q\nworking_dir = %q\n", s.Path, s.Args, s.WorkingDir)

		for k, v := range s.Env {
			fmt.Fprintf(cmd.OutOrStdout(), "env.%s = %q\n", k, v)
		}

		return nil
	},
}

func init() {
	shimCmd.AddCommand(shimSyncCmd, shimShowCmd)
	rootCmd.AddCommand(shimCmd)
}
