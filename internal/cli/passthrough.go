package cli

import (
	"context"
	"fmt"

	"github.com/vx-run/vx/internal/execpipe"
	"github.com/vx-run/vx/internal/vxlog"
)

// passthroughExit carries a resolved tool's own exit code back to main,
// bypassing vxerr's Kind-based mapping: the child already decided its own
// meaning for that code, vx must not reinterpret it.
type passthroughExit struct {
	code int
}

func (e *passthroughExit) Error() string {
	return fmt.Sprintf("child exited %d", e.code)
}

// runPassthrough implements the `vx <tool> [args...]` invocation form:
// resolve the runtime per spec.md §4.5, ensure it, and exec it with the
// remaining args.
func runPassthrough(args []string) error {
	ctx, _ := vxlog.NewInvocation(context.Background())

	a, err := newApp()
	if err != nil {
		return err
	}

	go a.crashRecoveryScan()

	resolved, err := a.Pipeline.Resolve(ctx, args[0], args[1:])
	if err != nil {
		return err
	}

	code, err := execpipe.Run(ctx, resolved)
	if err != nil {
		return err
	}

	if code != 0 {
		return &passthroughExit{code: code}
	}

	return nil
}
