// Package vxhome resolves VX_HOME, vx's per-user root directory, and the
// fixed subpath layout beneath it described in spec.md §6. Adapted from
// the teacher's pkg/userdirs home-directory fallback chain.
package vxhome

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const envVar = "VX_HOME"

var (
	once sync.Once
	home string
	err  error
)

// Get returns VX_HOME, computed once per process per spec.md §9 ("Global
// state. VX_HOME is process-wide; compute once at startup, never mutate.").
func Get() (string, error) {
	once.Do(func() {
		home, err = resolve()
	})

	return home, err
}

// MustGet is Get but panics on failure; used by code paths that already
// ran Get successfully once (e.g. after CLI startup validated it).
func MustGet() string {
	h, e := Get()
	if e != nil {
		panic(e)
	}

	return h
}

func resolve() (string, error) {
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}

	h, err := userHomeDir()
	if err != nil {
		return "", fmt.Errorf("vxhome: %w", err)
	}

	return filepath.Join(h, ".vx"), nil
}

func userHomeDir() (string, error) {
	if runtime.GOOS == "windows" {
		if profile := os.Getenv("USERPROFILE"); profile != "" {
			return profile, nil
		}
	}

	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return h, nil
	}

	if h := os.Getenv("HOME"); h != "" {
		return h, nil
	}

	if runtime.GOOS == "windows" {
		drive := os.Getenv("HOMEDRIVE")
		path := os.Getenv("HOMEPATH")

		if drive != "" && path != "" {
			return drive + path, nil
		}
	}

	return "", fmt.Errorf("cannot determine user home directory")
}

// Layout bundles the fixed subpaths beneath VX_HOME.
type Layout struct {
	Root string
}

// NewLayout builds a Layout rooted at home.
func NewLayout(home string) Layout {
	return Layout{Root: home}
}

func (l Layout) StoreRoot(runtime string) string {
	return filepath.Join(l.Root, "store", runtime)
}

func (l Layout) StoreVersion(runtime, version string) string {
	return filepath.Join(l.StoreRoot(runtime), version)
}

func (l Layout) StoreReadyMarker(runtime, version string) string {
	return filepath.Join(l.StoreRoot(runtime), version+".ready")
}

func (l Layout) StoreLock(runtime, version string) string {
	return filepath.Join(l.StoreRoot(runtime), version+".lock")
}

func (l Layout) StorePartial(runtime, version, suffix string) string {
	return filepath.Join(l.StoreRoot(runtime), version+".partial-"+suffix)
}

func (l Layout) CacheVersions(runtime string) string {
	return filepath.Join(l.Root, "cache", "versions", runtime+".json")
}

func (l Layout) EnvDir(name string) string {
	return filepath.Join(l.Root, "envs", name)
}

func (l Layout) EnvFile(name string) string {
	return filepath.Join(l.EnvDir(name), "env.toml")
}

func (l Layout) UserProviders() string {
	return filepath.Join(l.Root, "providers")
}

func (l Layout) Tmp() string {
	return filepath.Join(l.Root, "tmp")
}

func (l Layout) Shims() string {
	return filepath.Join(l.Root, "shims")
}

func (l Layout) StateDB() string {
	return filepath.Join(l.Root, "state.db")
}

// EnsureDirs creates the fixed top-level directories beneath the layout
// root. Per-runtime store directories are created lazily by the install
// engine.
func (l Layout) EnsureDirs() error {
	dirs := []string{
		filepath.Join(l.Root, "store"),
		filepath.Join(l.Root, "cache", "versions"),
		filepath.Join(l.Root, "envs"),
		l.UserProviders(),
		l.Tmp(),
		l.Shims(),
	}

	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("vxhome: create %s: %w", d, err)
		}
	}

	return nil
}
