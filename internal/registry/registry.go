// Package registry owns the set of live provider descriptors: discovery,
// alias resolution, and the atomically-swapped snapshot readers see, per
// spec.md §4.2.
package registry

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/vx-run/vx/internal/descriptor"
	"github.com/vx-run/vx/internal/providerpaths"
	"github.com/vx-run/vx/internal/scripthost"
	"github.com/vx-run/vx/internal/vxerr"
	"github.com/vx-run/vx/providers/builtin"
)

// Entry pairs a loaded provider with the discovery priority it was found
// at, so alias collisions can be tie-broken.
type Entry struct {
	Provider *scripthost.LoadedProvider
	Priority int
}

// LoadError records one provider script that failed to load. Per spec.md
// §4.1, a bad script never prevents the rest of the registry from loading.
type LoadError struct {
	Path string
	Err  error
}

// snapshot is the immutable registry state swapped in by Reload.
type snapshot struct {
	entries []Entry
	errors  []LoadError
}

// Registry discovers, loads, and resolves provider scripts. The zero value
// is not usable; construct with New.
type Registry struct {
	host        *scripthost.Host
	projectRoot string // optional; "" disables the project discovery root
	vxHome      string

	current atomic.Pointer[snapshot]
}

// New builds a Registry. projectRoot may be empty if no project context
// applies (e.g. invoked outside any project directory).
func New(host *scripthost.Host, projectRoot, vxHome string) *Registry {
	r := &Registry{host: host, projectRoot: projectRoot, vxHome: vxHome}
	r.current.Store(&snapshot{})

	return r
}

// Reload re-scans all three discovery roots and atomically swaps in the
// new snapshot; readers never observe a partially built registry.
func (r *Registry) Reload() []LoadError {
	scanned := builtinScanned()

	if r.projectRoot != "" {
		if found, err := providerpaths.ScanProject(r.projectRoot); err == nil {
			scanned = append(scanned, found...)
		}
	}

	if found, err := providerpaths.ScanUser(r.vxHome); err == nil {
		scanned = append(scanned, found...)
	}

	snap := &snapshot{}

	for _, s := range scanned {
		lp, err := r.loadOne(s)
		if err != nil {
			snap.errors = append(snap.errors, LoadError{Path: s.Path, Err: err})
			continue
		}

		snap.entries = append(snap.entries, Entry{Provider: lp, Priority: s.Priority})
	}

	r.current.Store(snap)

	return snap.errors
}

// builtinPathPrefix is a sentinel path prefix used to recognize builtin entries
// inside loadOne, since they are loaded from embed.FS rather than disk.
const builtinPathPrefix = "builtin:"

func builtinScanned() []providerpaths.Scanned {
	files, err := builtin.FS.ReadDir(".")
	if err != nil {
		return nil
	}

	out := make([]providerpaths.Scanned, 0, len(files))

	for _, f := range files {
		if f.IsDir() {
			continue
		}

		out = append(out, providerpaths.Scanned{
			Path:     builtinPathPrefix + f.Name(),
			Priority: providerpaths.PriorityBuiltin,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	return out
}

func (r *Registry) loadOne(s providerpaths.Scanned) (*scripthost.LoadedProvider, error) {
	if name, ok := stripBuiltinPrefix(s.Path); ok {
		src, err := builtin.FS.ReadFile(name)
		if err != nil {
			return nil, err
		}

		return r.host.LoadSource(src, "builtin:"+name)
	}

	return r.host.Load(s.Path)
}

func stripBuiltinPrefix(path string) (string, bool) {
	if len(path) > len(builtinPathPrefix) && path[:len(builtinPathPrefix)] == builtinPathPrefix {
		return path[len(builtinPathPrefix):], true
	}

	return "", false
}

// Resolve looks up nameOrAlias against every loaded provider's runtimes
// (canonical name first, then declared aliases), tie-breaking multiple
// matches by discovery priority then by runtime.Priority, per spec.md
// §4.2. Fails with vxerr.UnknownRuntime.
func (r *Registry) Resolve(nameOrAlias string) (*scripthost.LoadedProvider, descriptor.Runtime, error) {
	snap := r.current.Load()

	var (
		bestEntry Entry
		bestRt    descriptor.Runtime
		found     bool
	)

	for _, e := range snap.entries {
		for _, rt := range e.Provider.Descriptor.Runtimes {
			if !rt.MatchesAlias(nameOrAlias) {
				continue
			}

			if !found || betterMatch(e, rt, bestEntry, bestRt) {
				bestEntry, bestRt, found = e, rt, true
			}
		}
	}

	if !found {
		return nil, descriptor.Runtime{}, vxerr.New(vxerr.UnknownRuntime, "registry.resolve", fmt.Errorf("no provider exposes a runtime named or aliased %q", nameOrAlias))
	}

	return bestEntry.Provider, bestRt, nil
}

func betterMatch(candidate Entry, candidateRt descriptor.Runtime, current Entry, currentRt descriptor.Runtime) bool {
	if candidate.Priority != current.Priority {
		return candidate.Priority > current.Priority
	}

	return candidateRt.Priority > currentRt.Priority
}

// ListedRuntime is one row of Registry.List's output, pairing a runtime
// with the provider that exposes it. Installed-version enumeration is the
// caller's job (it requires the store reader from internal/store, which
// would otherwise make this package depend on the install engine).
type ListedRuntime struct {
	Provider *scripthost.LoadedProvider
	Runtime  descriptor.Runtime
}

// List returns every (provider, runtime) pair currently loaded, for `vx
// list`.
func (r *Registry) List() []ListedRuntime {
	snap := r.current.Load()

	out := make([]ListedRuntime, 0, len(snap.entries))

	for _, e := range snap.entries {
		for _, rt := range e.Provider.Descriptor.Runtimes {
			out = append(out, ListedRuntime{Provider: e.Provider, Runtime: rt})
		}
	}

	return out
}

// Stats is the `{providers, runtimes}` summary `vx stats` reports.
type Stats struct {
	Providers int
	Runtimes  int
}

// Stats counts the currently loaded providers and runtimes.
func (r *Registry) Stats() Stats {
	snap := r.current.Load()

	s := Stats{Providers: len(snap.entries)}

	for _, e := range snap.entries {
		s.Runtimes += len(e.Provider.Descriptor.Runtimes)
	}

	return s
}

// Errors returns the load failures from the most recent Reload, each
// surfaced to the caller as a ProviderLoadError without having aborted the
// rest of discovery.
func (r *Registry) Errors() []LoadError {
	return r.current.Load().errors
}
