package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vx-run/vx/internal/platform"
	"github.com/vx-run/vx/internal/statedb"
	"github.com/vx-run/vx/internal/vxhome"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return New(vxhome.NewLayout(t.TempDir()))
}

func TestFingerprintStableAndDistinct(t *testing.T) {
	p := platform.Platform{OS: platform.Linux, Arch: platform.X64}

	a := Fingerprint("node", "18.0.0", p)
	b := Fingerprint("node", "18.0.0", p)
	c := Fingerprint("node", "19.0.0", p)

	if a != b {
		t.Fatal("Fingerprint should be stable for identical inputs")
	}

	if a == c {
		t.Fatal("Fingerprint should differ across versions")
	}
}

func TestLocatePublishLifecycle(t *testing.T) {
	s := newStore(t)

	if _, ok := s.Locate("node", "18.0.0", "/nonexistent"); ok {
		t.Fatal("Locate should fail before publish")
	}

	partial, err := s.NewPartialDir("node", "18.0.0")
	if err != nil {
		t.Fatalf("NewPartialDir() error = %v", err)
	}

	exe := filepath.Join(partial, "bin", "node")
	if err := os.MkdirAll(filepath.Dir(exe), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := s.Publish("node", "18.0.0", partial); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	finalExe := filepath.Join(s.Layout.StoreVersion("node", "18.0.0"), "bin", "node")

	if _, ok := s.Locate("node", "18.0.0", finalExe); !ok {
		t.Fatal("Locate should succeed after publish")
	}

	versions, err := s.Installed("node")
	if err != nil {
		t.Fatalf("Installed() error = %v", err)
	}

	if len(versions) != 1 || versions[0] != "18.0.0" {
		t.Fatalf("Installed() = %v, want [18.0.0]", versions)
	}
}

func TestUninstallRemovesReadyMarkerFirst(t *testing.T) {
	s := newStore(t)

	partial, _ := s.NewPartialDir("node", "18.0.0")
	if err := s.Publish("node", "18.0.0", partial); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if err := s.Uninstall("node", "18.0.0"); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}

	if _, err := os.Stat(s.Layout.StoreReadyMarker("node", "18.0.0")); !os.IsNotExist(err) {
		t.Fatal("ready marker should be gone after Uninstall")
	}

	if _, err := os.Stat(s.Layout.StoreVersion("node", "18.0.0")); !os.IsNotExist(err) {
		t.Fatal("version dir should be gone after Uninstall")
	}
}

func TestGCReclaimsStalePartialAndUnreadyDirs(t *testing.T) {
	s := newStore(t)

	stalePartial := s.Layout.StorePartial("node", "18.0.0", "abc123")
	if err := os.MkdirAll(stalePartial, 0o755); err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stalePartial, old, old); err != nil {
		t.Fatal(err)
	}

	unready := s.Layout.StoreVersion("node", "19.0.0")
	if err := os.MkdirAll(unready, 0o755); err != nil {
		t.Fatal(err)
	}

	removed, err := s.GC("node", time.Now())
	if err != nil {
		t.Fatalf("GC() error = %v", err)
	}

	if len(removed) != 2 {
		t.Fatalf("GC() removed = %v, want 2 entries", removed)
	}

	if _, err := os.Stat(stalePartial); !os.IsNotExist(err) {
		t.Fatal("stale partial should have been removed")
	}

	if _, err := os.Stat(unready); !os.IsNotExist(err) {
		t.Fatal("unready version dir should have been removed")
	}
}

func TestGCSkipsFreshPartialAndReadyEntries(t *testing.T) {
	s := newStore(t)

	freshPartial := s.Layout.StorePartial("node", "18.0.0", "fresh")
	if err := os.MkdirAll(freshPartial, 0o755); err != nil {
		t.Fatal(err)
	}

	partial, _ := s.NewPartialDir("node", "20.0.0")
	if err := s.Publish("node", "20.0.0", partial); err != nil {
		t.Fatal(err)
	}

	removed, err := s.GC("node", time.Now())
	if err != nil {
		t.Fatalf("GC() error = %v", err)
	}

	if len(removed) != 0 {
		t.Fatalf("GC() removed = %v, want none", removed)
	}
}

func TestScanReclaimableReportsWithoutDeleting(t *testing.T) {
	s := newStore(t)

	stalePartial := s.Layout.StorePartial("node", "18.0.0", "abc123")
	if err := os.MkdirAll(stalePartial, 0o755); err != nil {
		t.Fatal(err)
	}

	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stalePartial, old, old); err != nil {
		t.Fatal(err)
	}

	candidates, err := s.ScanReclaimable("node", time.Now())
	if err != nil {
		t.Fatalf("ScanReclaimable() error = %v", err)
	}

	if len(candidates) != 1 || candidates[0] != stalePartial {
		t.Fatalf("ScanReclaimable() = %v, want [%s]", candidates, stalePartial)
	}

	if _, err := os.Stat(stalePartial); err != nil {
		t.Fatalf("ScanReclaimable must not delete anything, but %s is gone: %v", stalePartial, err)
	}
}

func TestInstalledFastFallsBackAndPopulatesCache(t *testing.T) {
	s := newStore(t)

	db, err := statedb.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("statedb.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s.AttachStateDB(db)

	partial, _ := s.NewPartialDir("node", "18.0.0")
	if err := s.Publish("node", "18.0.0", partial); err != nil {
		t.Fatal(err)
	}

	// Publish already populated the cache; InstalledFast must agree with
	// the filesystem-backed Installed.
	fast, err := s.InstalledFast("node")
	if err != nil {
		t.Fatalf("InstalledFast() error = %v", err)
	}

	if len(fast) != 1 || fast[0] != "18.0.0" {
		t.Fatalf("InstalledFast() = %v, want [18.0.0]", fast)
	}

	if err := s.Uninstall("node", "18.0.0"); err != nil {
		t.Fatal(err)
	}

	fast, err = s.InstalledFast("node")
	if err != nil {
		t.Fatalf("InstalledFast() error = %v", err)
	}

	if len(fast) != 0 {
		t.Fatalf("InstalledFast() after uninstall = %v, want none", fast)
	}
}

func TestInstalledFastWithUnattachedCacheMatchesInstalled(t *testing.T) {
	s := newStore(t)

	partial, _ := s.NewPartialDir("go", "1.22.0")
	if err := s.Publish("go", "1.22.0", partial); err != nil {
		t.Fatal(err)
	}

	fast, err := s.InstalledFast("go")
	if err != nil {
		t.Fatalf("InstalledFast() error = %v", err)
	}

	authoritative, err := s.Installed("go")
	if err != nil {
		t.Fatalf("Installed() error = %v", err)
	}

	if len(fast) != len(authoritative) || fast[0] != authoritative[0] {
		t.Fatalf("InstalledFast() = %v, want %v", fast, authoritative)
	}
}
