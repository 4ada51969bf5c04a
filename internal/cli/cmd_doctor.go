package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report provider load errors and abandoned store entries that are reclaimable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		errs := a.Registry.Errors()
		if len(errs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "providers: all loaded cleanly")
		}

		for _, e := range errs {
			fmt.Fprintf(cmd.OutOrStdout(), "provider load error: %s: %v\n", e.Path, e.Err)
		}

		total := 0

		for _, l := range a.Registry.List() {
			candidates, err := a.Store.ScanReclaimable(l.Runtime.Name, time.Now())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "vx: doctor: scan %s: %v\n", l.Runtime.Name, err)
				continue
			}

			for _, c := range candidates {
				fmt.Fprintf(cmd.OutOrStdout(), "reclaimable: %s\n", c)
			}

			total += len(candidates)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d abandoned store entries would be reclaimed (vx reclaims these automatically on its next invocation)\n", total)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
