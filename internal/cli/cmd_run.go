package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vx-run/vx/internal/config"
	"github.com/vx-run/vx/internal/providerpaths"
	"github.com/vx-run/vx/internal/vxlog"
)

var runCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a named script from .vx.toml's [scripts] table via the system shell",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, _ := vxlog.NewInvocation(context.Background())

		code, err := runScript(ctx, args[0])
		if err != nil {
			return err
		}

		if code != 0 {
			return &passthroughExit{code: code}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runScript implements `vx run <name>`: look up name in the project's
// [scripts] table and execute it through the system shell, composing the
// same environment a resolved tool invocation would see.
func runScript(ctx context.Context, name string) (int, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return 0, err
	}

	root, ok := providerpaths.FindProjectRoot(cwd)
	if !ok {
		return 0, fmt.Errorf("vx run: no .vx.toml found above %s", cwd)
	}

	path := filepath.Join(root, ".vx.toml")

	proj, warnings, err := config.LoadProject(path)
	if err != nil {
		return 0, err
	}

	log := vxlog.From(ctx)
	for _, w := range warnings {
		log.Warn("vx run: " + w)
	}

	script, ok := proj.Scripts[name]
	if !ok {
		return 0, fmt.Errorf("vx run: no script %q in %s (have: %s)", name, path, strings.Join(sortedKeys(proj.Scripts), ", "))
	}

	a, err := newApp()
	if err != nil {
		return 0, err
	}

	env, err := loadActiveEnvironmentEnv(a)
	if err != nil {
		return 0, err
	}

	cmd := shellCommand(ctx, script)
	cmd.Dir = root
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.Env = composeScriptEnvironment(a, proj, env, root)

	log.Info("vx run: starting", "script", name)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}

		return 0, fmt.Errorf("vx run: %s: %w", name, err)
	}

	return 0, nil
}

// shellCommand builds the `sh -c`/`cmd /C` invocation spec.md §6 names for
// [scripts] entries: executed via the system shell, no argv splitting.
func shellCommand(ctx context.Context, script string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", script)
	}

	return exec.CommandContext(ctx, "sh", "-c", script)
}

func composeScriptEnvironment(a *app, proj *config.Project, env *config.Environment, root string) []string {
	vars := envSliceToMapCLI(os.Environ())

	for k, v := range proj.ExpandedEnv() {
		vars[k] = v
	}

	if env != nil {
		for k, v := range env.Env {
			vars[k] = v
		}
	}

	vars["VX_HOME"] = a.Layout.Root
	vars["VX_PROJECT_ROOT"] = root

	out := make([]string, 0, len(vars))
	for k, v := range vars {
		out = append(out, k+"="+v)
	}

	return out
}

func envSliceToMapCLI(env []string) map[string]string {
	m := make(map[string]string, len(env))

	for _, kv := range env {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			m[kv[:idx]] = kv[idx+1:]
		}
	}

	return m
}

func loadActiveEnvironmentEnv(a *app) (*config.Environment, error) {
	name := os.Getenv("VX_ENV")
	if name == "" {
		return nil, nil
	}

	return config.LoadEnvironment(a.Layout.EnvFile(name))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
