// Package execpipe implements the execution pipeline from spec.md §4.5:
// given a raw argv, it resolves the runtime and version to run, ensures it
// is installed, composes the child environment, runs pre_run hooks, and
// spawns the resolved executable.
package execpipe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vx-run/vx/internal/config"
	"github.com/vx-run/vx/internal/descriptor"
	"github.com/vx-run/vx/internal/install"
	"github.com/vx-run/vx/internal/providerpaths"
	"github.com/vx-run/vx/internal/registry"
	"github.com/vx-run/vx/internal/scripthost"
	"github.com/vx-run/vx/internal/scripthost/stdlib"
	"github.com/vx-run/vx/internal/version"
	"github.com/vx-run/vx/internal/vxerr"
	"github.com/vx-run/vx/internal/vxhome"
	"github.com/vx-run/vx/internal/vxlog"
)

// EnvVarActiveEnvironment names the active named environment (spec.md §3);
// unset means no named-environment layer applies, only a project's own
// transient `tools`/`env` tables.
const EnvVarActiveEnvironment = "VX_ENV"

// Pipeline wires together the components the execution pipeline needs.
type Pipeline struct {
	Registry      *registry.Registry
	Engine        *install.Engine
	Host          *scripthost.Host
	Layout        vxhome.Layout
	UseSystemPath bool
}

// Resolved is the outcome of steps 1-6: a command ready to spawn.
type Resolved struct {
	Path        string
	Args        []string
	Env         []string
	ProjectRoot string
	Runtime     descriptor.Runtime
	Version     string
}

// Resolve implements spec.md §4.5 steps 1-6.
func (p *Pipeline) Resolve(ctx context.Context, invokedName string, args []string) (*Resolved, error) {
	log := vxlog.From(ctx)

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("execpipe: getwd: %w", err)
	}

	projectRoot, hasProject := providerpaths.FindProjectRoot(cwd)

	var project *config.Project

	if hasProject {
		proj, warnings, err := config.LoadProject(filepath.Join(projectRoot, ".vx.toml"))
		if err != nil {
			return nil, err
		}

		for _, w := range warnings {
			log.Warn("execpipe: " + w)
		}

		project = proj
	}

	provider, rt, err := p.Registry.Resolve(invokedName)
	if err != nil {
		return nil, err
	}

	env, err := loadActiveEnvironment(p.Layout)
	if err != nil {
		return nil, err
	}

	constraint := selectConstraint(rt.Name, project, env)

	var execPath, concreteVersion string

	if p.UseSystemPath || constraint == "system" {
		path, ok := systemExecutable(rt)
		if !ok {
			return nil, vxerr.New(vxerr.NotInstallable, "execpipe.resolve", nil).
				WithRuntime(rt.Name, "system").
				WithHint("no system installation found on PATH or declared system_paths")
		}

		execPath, concreteVersion = path, "system"
	} else {
		resolver := p.newResolver(provider, rt)

		concreteVersion, err = resolver.Resolve(ctx, constraint)
		if err != nil {
			return nil, err
		}

		if concreteVersion == "system" {
			path, ok := systemExecutable(rt)
			if !ok {
				return nil, vxerr.New(vxerr.NotInstallable, "execpipe.resolve", nil).WithRuntime(rt.Name, "system")
			}

			execPath = path
		} else {
			execPath, err = p.Engine.Ensure(ctx, provider, rt, concreteVersion)
			if err != nil {
				return nil, err
			}
		}
	}

	envVars, err := p.composeEnvironment(provider, rt, concreteVersion, execPath, project, env, projectRoot)
	if err != nil {
		return nil, err
	}

	if err := p.runPreRunHooks(ctx, provider, rt, args, execPath, envVars); err != nil {
		return nil, err
	}

	return &Resolved{
		Path:        execPath,
		Args:        args,
		Env:         envVars,
		ProjectRoot: projectRoot,
		Runtime:     rt,
		Version:     concreteVersion,
	}, nil
}

func (p *Pipeline) newResolver(provider *scripthost.LoadedProvider, rt descriptor.Runtime) *version.Resolver {
	return version.NewProviderResolver(p.Host, provider, rt, p.Layout.CacheVersions(rt.Name))
}

// envVarPattern turns a runtime name into the `VX__<RUNTIME>__VERSION`
// override spec.md §4.5 step 3 names: non-alphanumeric characters become
// underscores, letters are upper-cased.
var envVarPattern = regexp.MustCompile(`[^A-Za-z0-9]`)

func runtimeEnvVarName(runtimeName string) string {
	return "VX__" + strings.ToUpper(envVarPattern.ReplaceAllString(runtimeName, "_")) + "__VERSION"
}

// selectConstraint implements spec.md §4.5 step 3's source precedence.
func selectConstraint(runtimeName string, project *config.Project, env *config.Environment) string {
	if v := os.Getenv(runtimeEnvVarName(runtimeName)); v != "" {
		return v
	}

	if project != nil {
		if v, ok := project.Tools[runtimeName]; ok && v != "" {
			return v
		}
	}

	if env != nil {
		if v, ok := env.Tools[runtimeName]; ok && v != "" {
			return v
		}
	}

	return "latest"
}

func loadActiveEnvironment(layout vxhome.Layout) (*config.Environment, error) {
	name := os.Getenv(EnvVarActiveEnvironment)
	if name == "" {
		return nil, nil
	}

	return config.LoadEnvironment(layout.EnvFile(name))
}

func systemExecutable(rt descriptor.Runtime) (string, bool) {
	for _, p := range rt.SystemPaths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}

	if path, err := exec.LookPath(rt.Executable); err == nil {
		return path, true
	}

	return "", false
}

// composeEnvironment implements spec.md §4.5 step 5.
func (p *Pipeline) composeEnvironment(provider *scripthost.LoadedProvider, rt descriptor.Runtime, version, execPath string, project *config.Project, env *config.Environment, projectRoot string) ([]string, error) {
	base := os.Environ()
	vars := envSliceToMap(base)

	var envResult descriptor.EnvironmentResult

	jsCtx := p.Host.BuildCtx()
	installDir := filepath.Dir(execPath)

	if _, err := provider.Call(context.Background(), "environment", &envResult, jsCtx, version, installDir); err != nil {
		return nil, err
	}

	if len(envResult.PathPrepend) > 0 {
		vars["PATH"] = strings.Join(append(envResult.PathPrepend, vars["PATH"]), string(os.PathListSeparator))
	}

	for k, v := range envResult.Vars {
		vars[k] = v
	}

	if project != nil {
		for k, v := range project.ExpandedEnv() {
			vars[k] = v
		}
	}

	if env != nil {
		for k, v := range env.Env {
			vars[k] = v
		}
	}

	vars["VX_HOME"] = p.Layout.Root
	vars["VX_RUNTIME"] = rt.Name
	vars["VX_RUNTIME_VERSION"] = version

	if projectRoot != "" {
		vars["VX_PROJECT_ROOT"] = projectRoot
	}

	return mapToEnvSlice(vars), nil
}

func envSliceToMap(env []string) map[string]string {
	m := make(map[string]string, len(env))

	for _, kv := range env {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			m[kv[:idx]] = kv[idx+1:]
		}
	}

	return m
}

func mapToEnvSlice(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}

	return out
}

// runPreRunHooks implements spec.md §4.5 step 6: invoke pre_run, and
// execute any ensure_dependencies actions it returns, synchronously and in
// order, bailing on the first failure.
func (p *Pipeline) runPreRunHooks(ctx context.Context, provider *scripthost.LoadedProvider, rt descriptor.Runtime, args []string, execPath string, env []string) error {
	var actions []stdlib.Action

	jsCtx := p.Host.BuildCtx()

	found, err := provider.Call(ctx, "pre_run", &actions, jsCtx, args, execPath)
	if err != nil {
		return err
	}

	if !found {
		return nil
	}

	for _, a := range actions {
		if a.Kind != "ensure_dependencies" {
			continue
		}

		if err := p.ensureDependency(ctx, a); err != nil {
			return err
		}
	}

	return nil
}

func (p *Pipeline) ensureDependency(ctx context.Context, a stdlib.Action) error {
	if a.CheckFile != "" {
		if _, err := os.Stat(filepath.Join(a.InstallDir, a.CheckFile)); err == nil {
			return nil
		}
	}

	provider, rt, err := p.Registry.Resolve(a.Runtime)
	if err != nil {
		return err
	}

	resolver := p.newResolver(provider, rt)

	concreteVersion, err := resolver.Resolve(ctx, "latest")
	if err != nil {
		return err
	}

	_, err = p.Engine.Ensure(ctx, provider, rt, concreteVersion)

	return err
}
