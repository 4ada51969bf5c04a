package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vx-run/vx/internal/platform"
	"github.com/vx-run/vx/internal/scripthost"
	"github.com/vx-run/vx/internal/vxerr"
)

func newHost(t *testing.T) *scripthost.Host {
	t.Helper()

	return scripthost.New(platform.Platform{OS: platform.Linux, Arch: platform.X64}, t.TempDir())
}

func TestReloadLoadsBuiltinProviders(t *testing.T) {
	reg := New(newHost(t), "", t.TempDir())

	if errs := reg.Reload(); len(errs) != 0 {
		t.Fatalf("Reload() errors = %v", errs)
	}

	stats := reg.Stats()
	if stats.Providers == 0 {
		t.Fatal("expected at least one builtin provider to load")
	}

	if _, _, err := reg.Resolve("rg"); err != nil {
		t.Fatalf("Resolve(rg) error = %v", err)
	}
}

func TestResolveUnknownRuntimeFails(t *testing.T) {
	reg := New(newHost(t), "", t.TempDir())
	reg.Reload()

	_, _, err := reg.Resolve("totally-unknown-tool")

	var verr *vxerr.Error
	if !as(err, &verr) || verr.Kind != vxerr.UnknownRuntime {
		t.Fatalf("Resolve() error = %v, want UnknownRuntime", err)
	}
}

func TestProjectProviderWinsOverUser(t *testing.T) {
	project := t.TempDir()
	vxHome := t.TempDir()

	writeProvider(t, filepath.Join(project, ".vx", "providers", "demo"), demoProviderSrc("from-project"))
	writeProvider(t, filepath.Join(vxHome, "providers", "demo"), demoProviderSrc("from-user"))

	reg := New(newHost(t), project, vxHome)
	if errs := reg.Reload(); len(errs) != 0 {
		t.Fatalf("Reload() errors = %v", errs)
	}

	lp, _, err := reg.Resolve("demo")
	if err != nil {
		t.Fatalf("Resolve(demo) error = %v", err)
	}

	if lp.Descriptor.Description != "from-project" {
		t.Fatalf("Descriptor.Description = %q, want %q (project root should win over user)", lp.Descriptor.Description, "from-project")
	}
}

func TestReloadSurvivesOneBadProvider(t *testing.T) {
	vxHome := t.TempDir()

	writeProvider(t, filepath.Join(vxHome, "providers", "broken"), "this is not valid javascript {{{")
	writeProvider(t, filepath.Join(vxHome, "providers", "ok"), demoProviderSrc("still loads"))

	reg := New(newHost(t), "", vxHome)

	errs := reg.Reload()
	if len(errs) != 1 {
		t.Fatalf("Reload() errors = %v, want exactly 1", errs)
	}

	if _, _, err := reg.Resolve("demo"); err != nil {
		t.Fatalf("Resolve(demo) error = %v, expected the good provider to still load", err)
	}
}

func writeProvider(t *testing.T, dir, src string) {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "provider.js"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
}

func demoProviderSrc(description string) string {
	return `
name = "demo";
description = "` + description + `";
permissions = { http: [], fs: [], exec: [] };
runtimes = [{ name: "demo", executable: "demo" }];
`
}

func as(err error, target **vxerr.Error) bool {
	for err != nil {
		if e, ok := err.(*vxerr.Error); ok {
			*target = e
			return true
		}

		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}

		err = u.Unwrap()
	}

	return false
}
