// Package descriptor holds the Go-side mirror of the data model a provider
// script (internal/scripthost) produces: runtimes, providers, version
// metadata and install layouts, per spec.md §3.
package descriptor

import (
	"encoding/json"
	"fmt"
)

// Runtime is one executable tool exposed by a provider.
type Runtime struct {
	Name           string
	Executable     string
	Aliases        []string
	Priority       int
	BundledWith    string // runtime name this one is bundled with, if any (e.g. npm with node)
	SystemPaths    []string
	EnvHints       []string
	AutoInstallable bool
}

// MatchesAlias reports whether name equals the runtime's canonical name or
// one of its declared aliases. Case-sensitive per spec.md §4.2.
func (r Runtime) MatchesAlias(name string) bool {
	if r.Name == name {
		return true
	}

	for _, a := range r.Aliases {
		if a == name {
			return true
		}
	}

	return false
}

// VersionInfo describes one release a provider's fetch_versions callback
// can produce.
type VersionInfo struct {
	Version    string
	LTS        bool
	Prerelease bool
	Date       string
}

// LayoutKind tags the variant of Layout in effect.
type LayoutKind int

const (
	LayoutArchive LayoutKind = iota
	LayoutBinary
)

// UnmarshalJSON accepts the `"archive"`/`"binary"` strings an
// install_layout callback returns, per spec.md §4.4 step 7.
func (k *LayoutKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "", "archive":
		*k = LayoutArchive
	case "binary":
		*k = LayoutBinary
	default:
		return fmt.Errorf("descriptor: unknown install_layout kind %q", s)
	}

	return nil
}

// Layout tells the install engine how to materialize a downloaded payload.
// Exactly one of the Archive/Binary field groups is meaningful, selected by
// Kind.
type Layout struct {
	Kind LayoutKind `json:"kind"`

	// Archive fields.
	StripPrefix string `json:"strip_prefix"`

	// Binary fields.
	SourceName string `json:"source_name"`
	TargetName string `json:"target_name"`
	TargetDir  string `json:"target_dir"`
	Permission uint32 `json:"permission"` // unix file mode; 0 means default 0o755

	ExecutablePaths []string `json:"executable_paths"`
}

// EnvironmentResult is the decoded return value of a provider's
// environment callback (spec.md §4.5 step 5): PATH entries to prepend and
// additional variables to export.
type EnvironmentResult struct {
	PathPrepend []string          `json:"path_prepend"`
	Vars        map[string]string `json:"vars"`
}

// Requirement is a dependency one runtime declares on another.
type Requirement struct {
	Runtime  string
	Version  string // constraint string
	Optional bool
	Reason   string
}

// Permissions is the sandbox whitelist a provider script declares.
type Permissions struct {
	HTTP []string // allowed hostnames, empty slice means "declared but disabled"
	FS   []string // allowed path prefixes
	Exec []string // allowed executable names
	declaredHTTP bool
	declaredFS   bool
	declaredExec bool
}

// NewPermissions builds a Permissions value, recording which categories
// were explicitly declared (as opposed to merely empty) so that an
// undeclared category can be treated differently from a `[]` one if a
// provider author ever needs that distinction.
func NewPermissions(http, fs, exec []string, declaredHTTP, declaredFS, declaredExec bool) Permissions {
	return Permissions{HTTP: http, FS: fs, Exec: exec, declaredHTTP: declaredHTTP, declaredFS: declaredFS, declaredExec: declaredExec}
}

// AllowsHTTP reports whether host is permitted by the declared http list.
// An empty (but declared) list disables network access entirely.
func (p Permissions) AllowsHTTP(host string) bool {
	return contains(p.HTTP, host) || contains(p.HTTP, "*")
}

// AllowsFS reports whether path is permitted by the declared fs prefixes.
func (p Permissions) AllowsFS(path string) bool {
	for _, prefix := range p.FS {
		if prefix == "*" {
			return true
		}

		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			return true
		}
	}

	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}

	return false
}

// Provider is the union of metadata and evaluated callback presence flags
// produced by loading one script file. The callbacks themselves are
// invoked through scripthost.Host, not stored here; Provider only records
// static metadata plus which optional callbacks exist.
type Provider struct {
	Name        string
	Description string
	Homepage    string
	License     string
	Ecosystem   string
	Permissions Permissions
	Runtimes    []Runtime

	// SourcePath is the file the provider was loaded from.
	SourcePath string

	// DiscoveryPriority ranks providers by discovery root: builtin wins
	// over project wins over user, per spec.md §4.2.
	DiscoveryPriority int

	HasDownloadURL    bool
	HasInstallLayout  bool
	HasEnvironment    bool
	HasStoreRoot      bool
	HasExecutePath    bool
	HasPostInstall    bool
	HasPreRun         bool
	HasDeps           bool
	HasSupportedPlatforms bool
	HasSystemInstall  bool
}

func (p Provider) String() string {
	return fmt.Sprintf("provider(%s, runtimes=%d)", p.Name, len(p.Runtimes))
}
