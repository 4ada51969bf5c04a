package version

import (
	"context"
	"fmt"
	"time"

	"github.com/vx-run/vx/internal/descriptor"
	"github.com/vx-run/vx/internal/scripthost"
	"github.com/vx-run/vx/internal/vxerr"
)

// FetchFunc invokes a provider's fetch_versions callback.
type FetchFunc func(ctx context.Context) ([]descriptor.VersionInfo, error)

// SupportedFunc reports whether a version is usable on the current
// platform, implementing spec.md §4.3 step 4's
// "supported_platforms() restrictions".
type SupportedFunc func(descriptor.VersionInfo) bool

// Resolver resolves constraints to concrete versions for one provider's
// runtime, backed by the on-disk cache at CachePath.
type Resolver struct {
	Runtime    string
	Provider   string
	CachePath  string
	Fetch      FetchFunc
	Supported  SupportedFunc
	Now        func() time.Time
}

// NewProviderResolver builds a Resolver for one provider's runtime, wiring
// fetch_versions/supported_platforms through the provider's own JS
// callbacks and caching results at cachePath. Shared by execpipe, cli, and
// install so constraint resolution behaves identically everywhere a
// version needs picking from a provider.
func NewProviderResolver(host *scripthost.Host, provider *scripthost.LoadedProvider, rt descriptor.Runtime, cachePath string) *Resolver {
	jsCtx := host.BuildCtx()

	return &Resolver{
		Runtime:   rt.Name,
		Provider:  provider.Descriptor.Name,
		CachePath: cachePath,
		Fetch: func(ctx context.Context) ([]descriptor.VersionInfo, error) {
			var versions []descriptor.VersionInfo
			if _, err := provider.Call(ctx, "fetch_versions", &versions, jsCtx); err != nil {
				return nil, err
			}

			return versions, nil
		},
		Supported: func(v descriptor.VersionInfo) bool {
			var supported bool

			found, err := provider.Call(context.Background(), "supported_platforms", &supported, jsCtx, v.Version)
			if err != nil || !found {
				return true
			}

			return supported
		},
	}
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}

	return time.Now()
}

// versions returns the cached or freshly fetched version list, persisting
// a fetch result to the cache (spec.md §4.3 steps 2-3).
func (r *Resolver) versions(ctx context.Context) ([]descriptor.VersionInfo, error) {
	if cached, ok, err := LoadCache(r.CachePath); err == nil && ok && cached.Fresh(r.Provider, r.now()) {
		return cached.Entries, nil
	} else if err != nil {
		return nil, err
	}

	entries, err := r.Fetch(ctx)
	if err != nil {
		return nil, vxerr.New(vxerr.VersionNotFound, "version.fetch", err).WithRuntime(r.Runtime, "")
	}

	e := Entry{Schema: CacheSchema, Provider: r.Provider, FetchedAt: r.now(), TTL: DefaultTTL, Entries: entries}
	if err := SaveCache(r.CachePath, e); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *Resolver) filterSupported(entries []descriptor.VersionInfo) []descriptor.VersionInfo {
	if r.Supported == nil {
		return entries
	}

	out := entries[:0:0]

	for _, e := range entries {
		if r.Supported(e) {
			out = append(out, e)
		}
	}

	return out
}

// All returns every version the provider exposes, supported-platform
// filtered, for `vx ls-remote`. Uses the same cache Resolve does.
func (r *Resolver) All(ctx context.Context) ([]descriptor.VersionInfo, error) {
	entries, err := r.versions(ctx)
	if err != nil {
		return nil, err
	}

	return r.filterSupported(entries), nil
}

// Resolve implements spec.md §4.3's five-step selection algorithm.
func (r *Resolver) Resolve(ctx context.Context, constraintRaw string) (string, error) {
	c := Parse(constraintRaw)

	if c.Kind == KindKeyword && c.Keyword == KeywordSystem {
		return SystemVersion, nil
	}

	entries, err := r.versions(ctx)
	if err != nil {
		return "", err
	}

	entries = r.filterSupported(entries)

	switch c.Kind {
	case KindKeyword:
		return r.resolveKeyword(c, entries)
	case KindExact:
		return r.resolveExact(c, entries)
	case KindBare:
		return r.resolveBare(c, entries)
	case KindRange:
		return r.resolveRange(c, entries)
	default:
		return "", vxerr.New(vxerr.ConstraintUnsatisfiable, "version.resolve", fmt.Errorf("unrecognized constraint %q", constraintRaw)).WithRuntime(r.Runtime, "")
	}
}

func (r *Resolver) resolveKeyword(c Constraint, entries []descriptor.VersionInfo) (string, error) {
	var best string

	switch c.Keyword {
	case KeywordLatest, KeywordStable:
		for _, e := range entries {
			if e.Prerelease {
				continue
			}

			if best == "" || Less(best, e.Version) {
				best = e.Version
			}
		}
	case KeywordLTS:
		for _, e := range entries {
			if !e.LTS {
				continue
			}

			if best == "" || Less(best, e.Version) {
				best = e.Version
			}
		}
	}

	if best == "" {
		return "", r.notFound(c, entries)
	}

	return best, nil
}

func (r *Resolver) resolveExact(c Constraint, entries []descriptor.VersionInfo) (string, error) {
	for _, e := range entries {
		if e.Version == c.Exact {
			return e.Version, nil
		}
	}

	return "", r.notFound(c, entries)
}

func (r *Resolver) resolveBare(c Constraint, entries []descriptor.VersionInfo) (string, error) {
	var best string

	for _, e := range entries {
		if e.Prerelease {
			continue
		}

		if !c.MatchesBare(e.Version) {
			continue
		}

		if best == "" || Less(best, e.Version) {
			best = e.Version
		}
	}

	if best == "" {
		return "", r.notFound(c, entries)
	}

	return best, nil
}

func (r *Resolver) resolveRange(c Constraint, entries []descriptor.VersionInfo) (string, error) {
	var best string

	for _, e := range entries {
		if e.Prerelease {
			continue
		}

		if !c.Satisfies(e.Version) {
			continue
		}

		if best == "" || Less(best, e.Version) {
			best = e.Version
		}
	}

	if best == "" {
		return "", vxerr.New(vxerr.ConstraintUnsatisfiable, "version.resolve", fmt.Errorf("no version satisfies %q among %d candidates", c.Raw, len(entries))).WithRuntime(r.Runtime, "")
	}

	return best, nil
}

func (r *Resolver) notFound(c Constraint, entries []descriptor.VersionInfo) error {
	candidates := make([]string, 0, len(entries))
	for _, e := range entries {
		candidates = append(candidates, e.Version)
	}

	e := vxerr.New(vxerr.VersionNotFound, "version.resolve", fmt.Errorf("constraint %q matched none of %v", c.Raw, candidates))
	e.Runtime = r.Runtime

	return e
}
