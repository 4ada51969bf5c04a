// Package statedb is a bbolt-backed secondary index of installed store
// entries, kept alongside — never instead of — the file-based store
// layout spec.md §4.4 describes. The store's `.ready` markers remain the
// single source of truth; statedb exists only to answer "what's
// installed" without an `os.ReadDir` + per-entry `os.Stat` walk on every
// `vx list`/`vx stats` call. Grounded in the teacher's own `internal/cli/
// bbolt` package for the open/bucket/encode idiom, and in the
// cache-with-fallback shape of the retrieved `URLRegistry` (check the
// cache, and if it can't answer, the caller falls back to the
// authoritative source and repopulates it).
package statedb

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var installedBucket = []byte("installed")

// Entry is one cached row: a runtime/version pair known to be installed,
// and when the cache last observed it as such.
type Entry struct {
	Runtime     string    `json:"runtime"`
	Version     string    `json:"version"`
	InstalledAt time.Time `json:"installed_at"`
}

func key(runtime, version string) []byte {
	return []byte(runtime + "\x00" + version)
}

// DB wraps one bbolt database file.
type DB struct {
	bolt *bolt.DB
}

// Open opens (creating if absent) the state database at path.
func Open(path string) (*DB, error) {
	b, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("statedb: open %s: %w", path, err)
	}

	err = b.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(installedBucket)
		return err
	})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("statedb: init %s: %w", path, err)
	}

	return &DB{bolt: b}, nil
}

// Close releases the database's file lock.
func (d *DB) Close() error {
	return d.bolt.Close()
}

// Put records runtime/version as installed as of installedAt.
func (d *DB) Put(runtime, version string, installedAt time.Time) error {
	e := Entry{Runtime: runtime, Version: version, InstalledAt: installedAt}

	v, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("statedb: encode %s@%s: %w", runtime, version, err)
	}

	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(installedBucket).Put(key(runtime, version), v)
	})
}

// Delete removes a cached entry; absent entries are not an error.
func (d *DB) Delete(runtime, version string) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(installedBucket).Delete(key(runtime, version))
	})
}

// List returns the cached installed versions of runtime, sorted by key
// (bbolt keys are stored in byte order, which sorts versions lexically —
// callers that need semver order re-sort with internal/version).
func (d *DB) List(runtime string) ([]Entry, error) {
	prefix := []byte(runtime + "\x00")

	var entries []Entry

	err := d.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(installedBucket).Cursor()

		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("statedb: decode %s: %w", k, err)
			}

			entries = append(entries, e)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}

	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}

	return true
}

// Reconcile brings the cache for runtime in line with onDisk, the
// authoritative version list from store.Installed. Versions present on
// disk but missing from the cache are added (stamped with now); versions
// cached but no longer on disk are dropped. Self-healing: a stale or
// empty cache converges back to the true state on the next reconcile
// rather than ever being trusted blindly.
func (d *DB) Reconcile(runtime string, onDisk []string, now time.Time) error {
	cached, err := d.List(runtime)
	if err != nil {
		return err
	}

	cachedSet := make(map[string]bool, len(cached))
	for _, e := range cached {
		cachedSet[e.Version] = true
	}

	onDiskSet := make(map[string]bool, len(onDisk))
	for _, v := range onDisk {
		onDiskSet[v] = true

		if !cachedSet[v] {
			if err := d.Put(runtime, v, now); err != nil {
				return err
			}
		}
	}

	for _, e := range cached {
		if !onDiskSet[e.Version] {
			if err := d.Delete(runtime, e.Version); err != nil {
				return err
			}
		}
	}

	return nil
}
