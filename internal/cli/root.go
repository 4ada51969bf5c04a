package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/vx-run/vx/internal/vxerr"
)

var jsonFlag, tableFlag bool

var rootCmd = &cobra.Command{
	Use:           "vx <tool> [args...]",
	Short:         "vx resolves, installs, and runs the right version of your developer tools",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "emit machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVar(&tableFlag, "table", false, "emit aligned table output")
}

// reservedSubcommands is the set of first-argument names that dispatch to
// a built-in cobra command instead of passing through to a resolved tool,
// per spec.md §4.2 ("vx's own subcommands are reserved words; anything
// else is a tool invocation").
var reservedSubcommands = map[string]bool{
	"install":    true,
	"uninstall":  true,
	"list":       true,
	"stats":      true,
	"ls-remote":  true,
	"use":        true,
	"run":        true,
	"current":    true,
	"env":        true,
	"shim":       true,
	"doctor":     true,
	"providers":  true,
	"help":       true,
	"version":    true,
	"completion": true,
	"--help":     true,
	"-h":         true,
	"--version":  true,
}

// Execute is vx's single entry point: argv[0] decides whether this
// invocation is a reserved vx subcommand or a passthrough tool
// invocation.
func Execute(args []string) error {
	if len(args) > 0 && !reservedSubcommands[args[0]] {
		return runPassthrough(args)
	}

	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

// ExitCode maps err to the process exit code vx should use, per spec.md
// §7's Kind.ExitCode() table, falling back to 1 for unrecognized errors
// and honoring a *passthroughExit carrying the child's own code verbatim.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var pe *passthroughExit
	if errors.As(err, &pe) {
		return pe.code
	}

	var ve *vxerr.Error
	if errors.As(err, &ve) {
		return ve.Kind.ExitCode()
	}

	return 1
}
