// Package store implements the on-disk store-entry lifecycle from spec.md
// §3 and §4.4: fingerprinting, per-version locking, atomic publish, and
// crash-recovery GC. Adapted from the teacher's use of gofrs/flock for
// advisory file locks and google/uuid for collision-free temp naming.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/vx-run/vx/internal/platform"
	"github.com/vx-run/vx/internal/statedb"
	"github.com/vx-run/vx/internal/vxerr"
	"github.com/vx-run/vx/internal/vxhome"
	"github.com/vx-run/vx/internal/vxlog"
)

// PartialMaxAge is how long a `.partial-*` staging directory may live
// before crash-recovery GC considers it abandoned (spec.md §4.4 "Crash
// recovery").
const PartialMaxAge = time.Hour

// Fingerprint computes the `fp = hash(runtime || version || os || arch)`
// identifier spec.md §4.4 uses for locking and logging.
func Fingerprint(runtimeName, version string, p platform.Platform) string {
	h := sha256.Sum256([]byte(runtimeName + "||" + version + "||" + string(p.OS) + "||" + string(p.Arch)))
	return hex.EncodeToString(h[:])[:16]
}

// Store locates, locks, and publishes entries beneath one vxhome.Layout.
type Store struct {
	Layout vxhome.Layout

	// StateDB, if attached, accelerates Installed via InstalledFast. It is
	// never the source of truth: Installed always walks the filesystem,
	// and ReconcileCache repairs StateDB from that walk.
	StateDB *statedb.DB
}

// New builds a Store rooted at layout, with no state cache attached.
func New(layout vxhome.Layout) *Store {
	return &Store{Layout: layout}
}

// AttachStateDB wires a secondary index into the store. Call once, after
// New; nil is valid and disables the fast path.
func (s *Store) AttachStateDB(db *statedb.DB) {
	s.StateDB = db
}

// Locate implements spec.md §4.4 step 1: if the version's `.ready` marker
// exists and executablePath names a regular file, the entry is usable.
func (s *Store) Locate(runtimeName, version, executablePath string) (string, bool) {
	if _, err := os.Stat(s.Layout.StoreReadyMarker(runtimeName, version)); err != nil {
		return "", false
	}

	if info, err := os.Stat(executablePath); err != nil || info.IsDir() {
		return "", false
	}

	return executablePath, true
}

// Lock acquires the exclusive per-version advisory lock spec.md §4.4 step
// 2 describes. Callers must Unlock the returned flock.Flock when done.
func (s *Store) Lock(runtimeName, version string) (*flock.Flock, error) {
	path := s.Layout.StoreLock(runtimeName, version)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir for lock %s: %w", path, err)
	}

	fl := flock.New(path)

	if err := fl.Lock(); err != nil {
		return nil, vxerr.New(vxerr.LockContention, "store.lock", err).WithRuntime(runtimeName, version).WithPath(path)
	}

	return fl, nil
}

// NewPartialDir creates a fresh, uniquely-named staging directory for an
// in-progress install, per spec.md §4.4 step 7.
func (s *Store) NewPartialDir(runtimeName, version string) (string, error) {
	dir := s.Layout.StorePartial(runtimeName, version, uuid.NewString())

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("store: create partial dir %s: %w", dir, err)
	}

	return dir, nil
}

// Publish implements spec.md §4.4 steps 9-10: rename the partial directory
// into place, fsync the parent where supported, and write `.ready` last so
// a crash between the rename and the marker is interpreted as "retry".
func (s *Store) Publish(runtimeName, version, partialDir string) error {
	finalDir := s.Layout.StoreVersion(runtimeName, version)

	if err := os.MkdirAll(filepath.Dir(finalDir), 0o755); err != nil {
		return fmt.Errorf("store: mkdir store root: %w", err)
	}

	if err := os.RemoveAll(finalDir); err != nil {
		return fmt.Errorf("store: clear stale %s: %w", finalDir, err)
	}

	if err := os.Rename(partialDir, finalDir); err != nil {
		return vxerr.New(vxerr.ExtractionFailed, "store.publish", err).WithRuntime(runtimeName, version).WithPath(finalDir)
	}

	syncDir(filepath.Dir(finalDir))

	marker := s.Layout.StoreReadyMarker(runtimeName, version)
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return vxerr.New(vxerr.ExtractionFailed, "store.publish", err).WithRuntime(runtimeName, version).WithPath(marker)
	}

	if s.StateDB != nil {
		if err := s.StateDB.Put(runtimeName, version, time.Now()); err != nil {
			vxlog.Global().Warn("store: state cache update failed", "runtime", runtimeName, "version", version, "error", err)
		}
	}

	return nil
}

// syncDir fsyncs dir, best-effort; not all platforms/filesystems support
// fsync on a directory handle.
func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	defer f.Close()

	_ = f.Sync()
}

// Uninstall implements spec.md §4.4's uninstall flow: remove `.ready`
// first (making the entry invisible to Locate), then recursively delete
// the version directory.
func (s *Store) Uninstall(runtimeName, version string) error {
	marker := s.Layout.StoreReadyMarker(runtimeName, version)
	if err := os.Remove(marker); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: remove ready marker %s: %w", marker, err)
	}

	dir := s.Layout.StoreVersion(runtimeName, version)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("store: remove %s: %w", dir, err)
	}

	if s.StateDB != nil {
		if err := s.StateDB.Delete(runtimeName, version); err != nil {
			vxlog.Global().Warn("store: state cache update failed", "runtime", runtimeName, "version", version, "error", err)
		}
	}

	return nil
}

// Installed lists the versions of runtimeName that have a `.ready` marker,
// for `vx list`. Always walks the filesystem — this is the authoritative
// answer; InstalledFast is the cached shortcut.
func (s *Store) Installed(runtimeName string) ([]string, error) {
	root := s.Layout.StoreRoot(runtimeName)

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("store: read %s: %w", root, err)
	}

	var versions []string

	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".ready") {
			continue
		}

		versions = append(versions, strings.TrimSuffix(name, ".ready"))
	}

	sort.Strings(versions)

	return versions, nil
}

// InstalledFast is Installed, served from StateDB when attached. Falls
// back to Installed (and populates the cache as a side effect) whenever
// no cache is attached or the cache has never seen this runtime.
func (s *Store) InstalledFast(runtimeName string) ([]string, error) {
	if s.StateDB == nil {
		return s.Installed(runtimeName)
	}

	cached, err := s.StateDB.List(runtimeName)
	if err != nil {
		return nil, err
	}

	if cached == nil {
		if err := s.ReconcileCache(runtimeName, time.Now()); err != nil {
			return nil, err
		}

		cached, err = s.StateDB.List(runtimeName)
		if err != nil {
			return nil, err
		}
	}

	versions := make([]string, 0, len(cached))
	for _, e := range cached {
		versions = append(versions, e.Version)
	}

	sort.Strings(versions)

	return versions, nil
}

// ReconcileCache refreshes StateDB for runtimeName from the authoritative
// filesystem listing. No-op if no cache is attached.
func (s *Store) ReconcileCache(runtimeName string, now time.Time) error {
	if s.StateDB == nil {
		return nil
	}

	onDisk, err := s.Installed(runtimeName)
	if err != nil {
		return err
	}

	return s.StateDB.Reconcile(runtimeName, onDisk, now)
}

// GC implements spec.md §4.4's crash-recovery scan for one runtime: delete
// `.partial-*` directories older than PartialMaxAge, and delete `{version}`
// directories lacking a `.ready` marker. The corresponding per-version lock
// is held while acting, and eligibility is re-checked under that lock
// (gcUnderLock), so a concurrent install that published between the scan
// and the lock grant is never destroyed. Best-effort: individual failures
// are logged and skipped.
func (s *Store) GC(runtimeName string, now time.Time) (removed []string, err error) {
	root := s.Layout.StoreRoot(runtimeName)

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("store: read %s: %w", root, err)
	}

	log := vxlog.Global()

	for _, e := range entries {
		name := e.Name()

		switch {
		case strings.Contains(name, ".partial-"):
			version := name[:strings.Index(name, ".partial-")]

			if !s.partialExpired(filepath.Join(root, name), now) {
				continue
			}

			removed = append(removed, s.gcUnderLock(runtimeName, version, filepath.Join(root, name), now, true, log)...)
		case e.IsDir() && !strings.HasSuffix(name, ".ready") && !strings.HasSuffix(name, ".lock"):
			version := name

			if _, err := os.Stat(s.Layout.StoreReadyMarker(runtimeName, version)); err == nil {
				continue // published; not eligible for reclaim
			}

			removed = append(removed, s.gcUnderLock(runtimeName, version, filepath.Join(root, name), now, false, log)...)
		}
	}

	return removed, nil
}

// ScanReclaimable reports what GC would remove for runtimeName without
// deleting anything, for `vx doctor`'s read-only diagnostic pass.
func (s *Store) ScanReclaimable(runtimeName string, now time.Time) ([]string, error) {
	root := s.Layout.StoreRoot(runtimeName)

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("store: read %s: %w", root, err)
	}

	var candidates []string

	for _, e := range entries {
		name := e.Name()

		switch {
		case strings.Contains(name, ".partial-"):
			path := filepath.Join(root, name)
			if s.partialExpired(path, now) {
				candidates = append(candidates, path)
			}
		case e.IsDir() && !strings.HasSuffix(name, ".ready") && !strings.HasSuffix(name, ".lock"):
			if _, err := os.Stat(s.Layout.StoreReadyMarker(runtimeName, name)); err == nil {
				continue // published; not eligible for reclaim
			}

			candidates = append(candidates, filepath.Join(root, name))
		}
	}

	return candidates, nil
}

func (s *Store) partialExpired(dir string, now time.Time) bool {
	info, err := os.Stat(dir)
	if err != nil {
		return false
	}

	return now.Sub(info.ModTime()) > PartialMaxAge
}

// gcUnderLock re-verifies eligibility after acquiring the per-version lock,
// not just after the pre-lock scan: a concurrent install may have been
// mid-flight when GC observed path as eligible, and could have published
// (renamed .partial to {version}, then written .ready) by the time the
// lock is actually granted. Without re-checking, GC would delete the
// install that just finished instead of skipping it.
func (s *Store) gcUnderLock(runtimeName, version, path string, now time.Time, isPartial bool, log *slog.Logger) []string {
	fl, err := s.Lock(runtimeName, version)
	if err != nil {
		log.Warn("store gc: skip, could not acquire lock", "path", path, "error", err)
		return nil
	}
	defer fl.Unlock()

	if isPartial {
		if !s.partialExpired(path, now) {
			return nil // a fresh partial now occupies this name, or it's gone
		}
	} else if _, err := os.Stat(s.Layout.StoreReadyMarker(runtimeName, version)); err == nil {
		return nil // published while GC waited for the lock
	}

	if err := os.RemoveAll(path); err != nil {
		log.Warn("store gc: failed to remove", "path", path, "error", err)
		return nil
	}

	log.Info("store gc: reclaimed abandoned entry", "path", path)

	return []string{path}
}
