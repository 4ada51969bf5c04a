// Command vx-shim is the tiny launcher every shim sidecar execs through
// (spec.md §4.6): it must start fast, touch nothing but its own sidecar
// file and argv, and propagate the real tool's exit code and signals
// untouched.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/vx-run/vx/internal/shimfmt"
)

func main() {
	os.Exit(run())
}

func run() int {
	self, err := os.Executable()
	if err != nil {
		fmt.Fprintln(os.Stderr, "vx-shim:", err)
		return 1
	}

	name := filepath.Base(self)
	name = trimExeSuffix(name)

	sidecarPath := self + ".shim"

	shim, err := shimfmt.Load(sidecarPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vx-shim: %s: missing or malformed sidecar: %v\n", name, err)
		return 127
	}

	if shim.Path == "" {
		fmt.Fprintf(os.Stderr, "vx-shim: %s: sidecar has no `path`\n", name)
		return 127
	}

	if err := checkExecutable(shim.Path); err != nil {
		fmt.Fprintf(os.Stderr, "vx-shim: %s: %v\n", name, err)
		return 127
	}

	fixedArgs, err := shimfmt.SplitArgs(shim.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vx-shim: %s: malformed `args`: %v\n", name, err)
		return 127
	}

	argv := append(fixedArgs, os.Args[1:]...)

	cmd := exec.CommandContext(context.Background(), shim.Path, argv...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr

	if shim.WorkingDir != "" {
		cmd.Dir = shim.WorkingDir
	}

	if len(shim.Env) > 0 {
		env := os.Environ()
		for k, v := range shim.Env {
			env = append(env, k+"="+v)
		}

		cmd.Env = env
	}

	code, err := spawnShim(cmd, shim.SignalHandling)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vx-shim: %s: %v\n", name, err)
		return 1
	}

	return code
}

// checkExecutable validates that path resolves to an existing executable
// (spec.md §4.6 step 2), so a stale or malformed sidecar fails here with a
// clear message instead of inside exec.Cmd.Start().
func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("target %q does not exist: %w", path, err)
	}

	if info.IsDir() {
		return fmt.Errorf("target %q is a directory, not an executable", path)
	}

	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("target %q is not executable", path)
	}

	return nil
}

func trimExeSuffix(name string) string {
	const exeSuffix = ".exe"
	if len(name) > len(exeSuffix) && name[len(name)-len(exeSuffix):] == exeSuffix {
		return name[:len(name)-len(exeSuffix)]
	}

	return name
}
