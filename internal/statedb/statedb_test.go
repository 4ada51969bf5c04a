package statedb

import (
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestPutListDelete(t *testing.T) {
	db := openTest(t)
	now := time.Now().Truncate(time.Second)

	if err := db.Put("node", "20.11.0", now); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := db.Put("node", "18.19.0", now); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := db.Put("go", "1.22.0", now); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entries, err := db.List("node")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("List(node) = %d entries, want 2", len(entries))
	}

	for _, e := range entries {
		if e.Runtime != "node" {
			t.Fatalf("List(node) returned entry for runtime %q", e.Runtime)
		}
	}

	if err := db.Delete("node", "18.19.0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	entries, err = db.List("node")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(entries) != 1 || entries[0].Version != "20.11.0" {
		t.Fatalf("List(node) after delete = %+v", entries)
	}
}

func TestListDoesNotLeakAcrossRuntimes(t *testing.T) {
	db := openTest(t)

	if err := db.Put("node", "20.0.0", time.Now()); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := db.Put("nodejs-extra", "1.0.0", time.Now()); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entries, err := db.List("node")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("List(node) = %+v, want exactly the node entry (no prefix bleed from nodejs-extra)", entries)
	}
}

func TestReconcileAddsAndRemoves(t *testing.T) {
	db := openTest(t)
	now := time.Now()

	if err := db.Put("go", "1.21.0", now); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// on disk: 1.21.0 is gone, 1.22.0 and 1.23.0 are new.
	if err := db.Reconcile("go", []string{"1.22.0", "1.23.0"}, now); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	entries, err := db.List("go")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	got := map[string]bool{}
	for _, e := range entries {
		got[e.Version] = true
	}

	if len(got) != 2 || !got["1.22.0"] || !got["1.23.0"] {
		t.Fatalf("List(go) after reconcile = %+v, want {1.22.0, 1.23.0}", entries)
	}
}

func TestReconcileFromEmpty(t *testing.T) {
	db := openTest(t)

	if err := db.Reconcile("python", []string{"3.12.0"}, time.Now()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	entries, err := db.List("python")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(entries) != 1 || entries[0].Version != "3.12.0" {
		t.Fatalf("List(python) = %+v", entries)
	}
}
