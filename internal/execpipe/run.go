package execpipe

import (
	"context"
	"os"
	"os/exec"
)

// Run spawns r and blocks until it exits, returning the exit code the vx
// process itself should exit with (spec.md §4.5 step 8). The child inherits
// the caller's actual working directory; project discovery only feeds
// VX_PROJECT_ROOT and config lookup, it never relocates the spawned tool.
func Run(ctx context.Context, r *Resolved) (int, error) {
	cmd := exec.CommandContext(ctx, r.Path, r.Args...)
	cmd.Env = r.Env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return spawn(cmd)
}
