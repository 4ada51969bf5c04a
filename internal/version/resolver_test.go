package version

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vx-run/vx/internal/descriptor"
	"github.com/vx-run/vx/internal/vxerr"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestResolveLatestSkipsPrerelease(t *testing.T) {
	fetched := []descriptor.VersionInfo{
		{Version: "18.0.0"},
		{Version: "19.0.0-rc.1", Prerelease: true},
		{Version: "18.5.2"},
	}

	r := &Resolver{
		Runtime:   "node",
		Provider:  "node",
		CachePath: filepath.Join(t.TempDir(), "node.json"),
		Fetch:     func(ctx context.Context) ([]descriptor.VersionInfo, error) { return fetched, nil },
		Now:       fixedNow(time.Now()),
	}

	got, err := r.Resolve(context.Background(), "latest")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if got != "18.5.2" {
		t.Fatalf("Resolve() = %q, want 18.5.2", got)
	}
}

func TestResolveSystemBypassesFetch(t *testing.T) {
	r := &Resolver{
		Runtime:   "node",
		Provider:  "node",
		CachePath: filepath.Join(t.TempDir(), "node.json"),
		Fetch: func(ctx context.Context) ([]descriptor.VersionInfo, error) {
			t.Fatal("Fetch should not be called for the system keyword")
			return nil, nil
		},
	}

	got, err := r.Resolve(context.Background(), "system")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if got != SystemVersion {
		t.Fatalf("Resolve() = %q, want %q", got, SystemVersion)
	}
}

func TestResolveUsesFreshCacheWithoutFetching(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "node.json")
	now := time.Now()

	err := SaveCache(cachePath, Entry{
		Schema:    CacheSchema,
		Provider:  "node",
		FetchedAt: now,
		TTL:       DefaultTTL,
		Entries:   []descriptor.VersionInfo{{Version: "20.0.0"}},
	})
	if err != nil {
		t.Fatalf("SaveCache() error = %v", err)
	}

	r := &Resolver{
		Runtime:   "node",
		Provider:  "node",
		CachePath: cachePath,
		Fetch: func(ctx context.Context) ([]descriptor.VersionInfo, error) {
			t.Fatal("Fetch should not be called when the cache is fresh")
			return nil, nil
		},
		Now: fixedNow(now.Add(time.Minute)),
	}

	got, err := r.Resolve(context.Background(), "latest")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if got != "20.0.0" {
		t.Fatalf("Resolve() = %q, want 20.0.0", got)
	}
}

func TestResolveRefetchesOnStaleCache(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "node.json")
	stale := time.Now().Add(-48 * time.Hour)

	err := SaveCache(cachePath, Entry{
		Schema:    CacheSchema,
		Provider:  "node",
		FetchedAt: stale,
		TTL:       DefaultTTL,
		Entries:   []descriptor.VersionInfo{{Version: "18.0.0"}},
	})
	if err != nil {
		t.Fatalf("SaveCache() error = %v", err)
	}

	fetchCalled := false

	r := &Resolver{
		Runtime:   "node",
		Provider:  "node",
		CachePath: cachePath,
		Fetch: func(ctx context.Context) ([]descriptor.VersionInfo, error) {
			fetchCalled = true
			return []descriptor.VersionInfo{{Version: "21.0.0"}}, nil
		},
		Now: fixedNow(time.Now()),
	}

	got, err := r.Resolve(context.Background(), "latest")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if !fetchCalled {
		t.Fatal("expected Fetch to be called for a stale cache")
	}

	if got != "21.0.0" {
		t.Fatalf("Resolve() = %q, want 21.0.0", got)
	}

	reloaded, ok, err := LoadCache(cachePath)
	if err != nil || !ok {
		t.Fatalf("LoadCache() after refetch = %v, %v, %v", reloaded, ok, err)
	}

	if len(reloaded.Entries) != 1 || reloaded.Entries[0].Version != "21.0.0" {
		t.Fatalf("refetched cache not persisted: %+v", reloaded)
	}
}

func TestResolveExactMissingReturnsVersionNotFound(t *testing.T) {
	r := &Resolver{
		Runtime:   "node",
		Provider:  "node",
		CachePath: filepath.Join(t.TempDir(), "node.json"),
		Fetch: func(ctx context.Context) ([]descriptor.VersionInfo, error) {
			return []descriptor.VersionInfo{{Version: "18.0.0"}}, nil
		},
		Now: fixedNow(time.Now()),
	}

	_, err := r.Resolve(context.Background(), "1.2.3")

	var verr *vxerr.Error
	if !errors.As(err, &verr) || verr.Kind != vxerr.VersionNotFound {
		t.Fatalf("Resolve() error = %v, want VersionNotFound", err)
	}
}

func TestResolveRangeUnsatisfiable(t *testing.T) {
	r := &Resolver{
		Runtime:   "node",
		Provider:  "node",
		CachePath: filepath.Join(t.TempDir(), "node.json"),
		Fetch: func(ctx context.Context) ([]descriptor.VersionInfo, error) {
			return []descriptor.VersionInfo{{Version: "14.0.0"}, {Version: "16.0.0"}}, nil
		},
		Now: fixedNow(time.Now()),
	}

	_, err := r.Resolve(context.Background(), ">=18.0.0 <19.0.0")

	var verr *vxerr.Error
	if !errors.As(err, &verr) || verr.Kind != vxerr.ConstraintUnsatisfiable {
		t.Fatalf("Resolve() error = %v, want ConstraintUnsatisfiable", err)
	}
}

func TestResolveBareMajorMinor(t *testing.T) {
	r := &Resolver{
		Runtime:   "node",
		Provider:  "node",
		CachePath: filepath.Join(t.TempDir(), "node.json"),
		Fetch: func(ctx context.Context) ([]descriptor.VersionInfo, error) {
			return []descriptor.VersionInfo{
				{Version: "18.1.0"},
				{Version: "18.2.0"},
				{Version: "20.0.0"},
			}, nil
		},
		Now: fixedNow(time.Now()),
	}

	got, err := r.Resolve(context.Background(), "18")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if got != "18.2.0" {
		t.Fatalf("Resolve() = %q, want 18.2.0", got)
	}
}

func TestResolveLTSPicksHighestLTS(t *testing.T) {
	r := &Resolver{
		Runtime:   "node",
		Provider:  "node",
		CachePath: filepath.Join(t.TempDir(), "node.json"),
		Fetch: func(ctx context.Context) ([]descriptor.VersionInfo, error) {
			return []descriptor.VersionInfo{
				{Version: "20.0.0", LTS: true},
				{Version: "21.0.0"},
				{Version: "18.0.0", LTS: true},
			}, nil
		},
		Now: fixedNow(time.Now()),
	}

	got, err := r.Resolve(context.Background(), "lts")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if got != "20.0.0" {
		t.Fatalf("Resolve() = %q, want 20.0.0", got)
	}
}

func TestResolveFiltersUnsupportedPlatforms(t *testing.T) {
	r := &Resolver{
		Runtime:   "node",
		Provider:  "node",
		CachePath: filepath.Join(t.TempDir(), "node.json"),
		Fetch: func(ctx context.Context) ([]descriptor.VersionInfo, error) {
			return []descriptor.VersionInfo{{Version: "18.0.0"}, {Version: "19.0.0"}}, nil
		},
		Supported: func(v descriptor.VersionInfo) bool { return v.Version != "19.0.0" },
		Now:       fixedNow(time.Now()),
	}

	got, err := r.Resolve(context.Background(), "latest")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if got != "18.0.0" {
		t.Fatalf("Resolve() = %q, want 18.0.0 (19.0.0 excluded by Supported)", got)
	}
}
