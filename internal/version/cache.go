package version

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/vx-run/vx/internal/descriptor"
)

// CacheSchema is the current on-disk schema version for
// cache/versions/{runtime}.json. A mismatch forces a refetch per
// spec.md §4.3 step 2.
const CacheSchema = 1

// DefaultTTL is the default cache lifetime (spec.md §4.3 step 2, §9(a)).
// A provider may override it via Entry.TTL when persisting.
const DefaultTTL = 24 * time.Hour

// Entry is the on-disk shape of cache/versions/{runtime}.json, matching
// spec.md §6's `{schema, provider, fetched_at, entries[]}`.
type Entry struct {
	Schema    int                    `json:"schema"`
	Provider  string                 `json:"provider"`
	FetchedAt time.Time              `json:"fetched_at"`
	TTL       time.Duration          `json:"ttl"`
	Entries   []descriptor.VersionInfo `json:"entries"`
}

// Fresh reports whether the cache entry is still within its TTL and was
// written by the given provider under the current schema.
func (e Entry) Fresh(provider string, now time.Time) bool {
	if e.Schema != CacheSchema || e.Provider != provider {
		return false
	}

	ttl := e.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return now.Sub(e.FetchedAt) < ttl
}

// LoadCache reads and decodes path, returning (Entry{}, false, nil) if the
// file does not exist.
func LoadCache(path string) (Entry, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, false, nil
		}

		return Entry{}, false, fmt.Errorf("version: read cache %s: %w", path, err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("version: decode cache %s: %w", path, err)
	}

	return e, true, nil
}

// SaveCache writes e to path atomically: write to a temp file under the
// same directory, then rename, per spec.md §4.3 step 3 and §5's
// "write-temp-then-rename" requirement.
func SaveCache(path string, e Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("version: mkdir for cache %s: %w", path, err)
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("version: encode cache: %w", err)
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("version: write temp cache: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("version: publish cache %s: %w", path, err)
	}

	return nil
}
