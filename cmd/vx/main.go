// Command vx is the universal developer-tool version manager: it resolves,
// installs, and execs the right version of a runtime per spec.md.
package main

import (
	"fmt"
	"os"

	"github.com/vx-run/vx/internal/cli"
)

func main() {
	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "vx:", err)
		os.Exit(cli.ExitCode(err))
	}
}
