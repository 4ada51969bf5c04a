package vxhome

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLayoutPaths(t *testing.T) {
	l := NewLayout("/home/u/.vx")

	cases := []struct {
		got, want string
	}{
		{l.StoreVersion("node", "22.12.0"), "/home/u/.vx/store/node/22.12.0"},
		{l.StoreReadyMarker("node", "22.12.0"), "/home/u/.vx/store/node/22.12.0.ready"},
		{l.StoreLock("node", "22.12.0"), "/home/u/.vx/store/node/22.12.0.lock"},
		{l.CacheVersions("node"), "/home/u/.vx/cache/versions/node.json"},
		{l.EnvFile("default"), "/home/u/.vx/envs/default/env.toml"},
		{l.Shims(), "/home/u/.vx/shims"},
	}

	for _, c := range cases {
		if c.got != filepath.FromSlash(c.want) {
			t.Errorf("got %q, want %q", c.got, c.want)
		}
	}
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	l := NewLayout(dir)

	if err := l.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}

	for _, p := range []string{
		filepath.Join(dir, "store"),
		filepath.Join(dir, "cache", "versions"),
		l.UserProviders(),
		l.Tmp(),
		l.Shims(),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
}
