// Package shimfmt parses and writes the `.shim` sidecar format from
// spec.md §6, in either TOML or legacy `key = value` form.
package shimfmt

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// SignalHandling controls how the shim launcher forwards signals and
// cleans up the child process (spec.md §6 `[signal_handling]`).
type SignalHandling struct {
	IgnoreSigint   bool `toml:"ignore_sigint"`
	ForwardSignals bool `toml:"forward_signals"`
	KillOnExit     bool `toml:"kill_on_exit"`
}

// DefaultSignalHandling matches spec.md §6's stated defaults.
func DefaultSignalHandling() SignalHandling {
	return SignalHandling{ForwardSignals: true, KillOnExit: true}
}

// Shim is the parsed shape of a `.shim` sidecar.
type Shim struct {
	Path          string            `toml:"path"`
	Args          string            `toml:"args"`
	WorkingDir    string            `toml:"working_dir"`
	Env           map[string]string `toml:"env"`
	SignalHandling SignalHandling   `toml:"signal_handling"`
	HideConsole   bool              `toml:"hide_console"`
	RunAsAdmin    bool              `toml:"run_as_admin"`
}

// New builds a Shim with spec-mandated defaults applied.
func New(path string) Shim {
	return Shim{Path: path, Env: map[string]string{}, SignalHandling: DefaultSignalHandling()}
}

// Load reads and parses path. It tries TOML first, falling back to the
// legacy `key = value` / `env.<KEY> = <VALUE>` line format when TOML
// decoding fails, yields no path, or leaves keys undecoded (a legacy file
// can be valid TOML with top-level signal keys), since both are accepted
// per spec.md §6.
func Load(path string) (*Shim, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shimfmt: read %s: %w", path, err)
	}

	var s Shim

	meta, err := toml.Decode(string(data), &s)
	if err == nil && s.Path != "" && len(meta.Undecoded()) == 0 {
		if s.Env == nil {
			s.Env = map[string]string{}
		}

		if !meta.IsDefined("signal_handling", "forward_signals") {
			s.SignalHandling.ForwardSignals = true
		}

		if !meta.IsDefined("signal_handling", "kill_on_exit") {
			s.SignalHandling.KillOnExit = true
		}

		return &s, nil
	}

	legacy, err := parseLegacy(string(data))
	if err != nil {
		return nil, fmt.Errorf("shimfmt: parse %s: %w", path, err)
	}

	return legacy, nil
}

// parseLegacy parses the `key = value` / `env.<KEY> = <VALUE>` form.
// Booleans default per spec.md §6 unless explicitly present in the file.
func parseLegacy(src string) (*Shim, error) {
	s := New("")
	sawForward, sawKill := false, false

	scanner := bufio.NewScanner(strings.NewReader(src))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "[") {
			continue
		}

		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}

		key := strings.TrimSpace(line[:idx])
		val := strings.Trim(strings.TrimSpace(line[idx+1:]), `"`)

		switch {
		case key == "path":
			s.Path = val
		case key == "args":
			s.Args = val
		case key == "working_dir":
			s.WorkingDir = val
		case strings.HasPrefix(key, "env."):
			s.Env[strings.TrimPrefix(key, "env.")] = val
		case key == "ignore_sigint":
			s.SignalHandling.IgnoreSigint = parseBool(val)
		case key == "forward_signals":
			s.SignalHandling.ForwardSignals = parseBool(val)
			sawForward = true
		case key == "kill_on_exit":
			s.SignalHandling.KillOnExit = parseBool(val)
			sawKill = true
		case key == "hide_console":
			s.HideConsole = parseBool(val)
		case key == "run_as_admin":
			s.RunAsAdmin = parseBool(val)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if !sawForward {
		s.SignalHandling.ForwardSignals = true
	}

	if !sawKill {
		s.SignalHandling.KillOnExit = true
	}

	if s.Path == "" {
		return nil, fmt.Errorf("shimfmt: missing required `path` key")
	}

	return &s, nil
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

// Save writes s to path as TOML.
func Save(path string, s *Shim) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("shimfmt: create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("shimfmt: encode %s: %w", path, err)
	}

	return nil
}

// SplitArgs tokenizes a shell-style argument string using standard
// single/double-quote and backslash-escape rules; spec.md §6 requires no
// variable expansion, only quoting.
func SplitArgs(s string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote rune
		started bool
	)

	runes := []rune(s)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
				continue
			}

			if r == '\\' && inQuote == '"' && i+1 < len(runes) {
				i++
				cur.WriteRune(runes[i])
				continue
			}

			cur.WriteRune(r)
		case r == '\'' || r == '"':
			inQuote = r
			started = true
		case r == '\\' && i+1 < len(runes):
			i++
			cur.WriteRune(runes[i])
			started = true
		case r == ' ' || r == '\t':
			if started || cur.Len() > 0 {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}

	if inQuote != 0 {
		return nil, fmt.Errorf("shimfmt: unterminated quote in args %q", s)
	}

	if started || cur.Len() > 0 {
		args = append(args, cur.String())
	}

	return args, nil
}
