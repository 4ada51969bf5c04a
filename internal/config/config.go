// Package config parses the two TOML surfaces in spec.md §6: project
// `.vx.toml` files and named `envs/{name}/env.toml` environments. Adapted
// from the teacher's internal/cli/tomlutil, which decodes with
// BurntSushi/toml and inspects toml.MetaData for leftover keys.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Project is the parsed shape of a `.vx.toml` file (spec.md §6): tool
// version constraints, exported env vars, and named run scripts.
type Project struct {
	Tools   map[string]string `toml:"tools"`
	Env     map[string]string `toml:"env"`
	Scripts map[string]string `toml:"scripts"`
}

// LoadProject decodes path into a Project. Unknown top-level keys are
// returned as warnings, never as an error, per spec.md §6 ("Unknown
// top-level keys are warnings, not errors").
func LoadProject(path string) (*Project, []string, error) {
	var p Project

	meta, err := toml.DecodeFile(path, &p)
	if err != nil {
		if perr, ok := err.(toml.ParseError); ok {
			return nil, nil, fmt.Errorf("config: %s:%d:%d: %s", path, perr.Position.Line, perr.Position.Col, perr.Message)
		}

		return nil, nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	var warnings []string

	for _, key := range meta.Undecoded() {
		warnings = append(warnings, fmt.Sprintf("%s: unrecognized key %q", path, key.String()))
	}

	if p.Tools == nil {
		p.Tools = map[string]string{}
	}

	if p.Env == nil {
		p.Env = map[string]string{}
	}

	if p.Scripts == nil {
		p.Scripts = map[string]string{}
	}

	return &p, warnings, nil
}

// ExpandedEnv returns p.Env with `${VAR}` references resolved against the
// host environment (spec.md §6: "values may reference ${VAR} from host
// env"). Only the `${VAR}` form is recognized; a bare `$VAR` is left
// untouched, matching shell-sidecar conventions elsewhere in vx.
func (p *Project) ExpandedEnv() map[string]string {
	out := make(map[string]string, len(p.Env))

	for k, v := range p.Env {
		out[k] = expandBraced(v)
	}

	return out
}

var bracedVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandBraced(s string) string {
	return bracedVarRe.ReplaceAllStringFunc(s, func(match string) string {
		name := bracedVarRe.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

// SaveProject writes p to path as TOML, creating parent directories as
// needed. Used by `vx use` to persist a version pin into `.vx.toml`.
func SaveProject(path string, p *Project) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(p); err != nil {
		return fmt.Errorf("config: encode %s: %w", path, err)
	}

	return nil
}

// Environment is the parsed shape of `envs/{name}/env.toml`: a named set
// of runtime-version pins plus exported env vars (spec.md §3).
type Environment struct {
	Tools map[string]string `toml:"tools"`
	Env   map[string]string `toml:"env"`
}

// LoadEnvironment decodes path into an Environment. A missing file is not
// an error; the zero Environment is returned so callers can treat an
// undefined named environment as "no pins, no overrides".
func LoadEnvironment(path string) (*Environment, error) {
	var e Environment

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &Environment{Tools: map[string]string{}, Env: map[string]string{}}, nil
		}

		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	if _, err := toml.DecodeFile(path, &e); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if e.Tools == nil {
		e.Tools = map[string]string{}
	}

	if e.Env == nil {
		e.Env = map[string]string{}
	}

	return &e, nil
}

// SaveEnvironment writes e to path as TOML, creating parent directories as
// needed. Used by `vx use --env`.
func SaveEnvironment(path string, e *Environment) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(e); err != nil {
		return fmt.Errorf("config: encode %s: %w", path, err)
	}

	return nil
}
