// Package install implements the install engine from spec.md §4.4: given a
// resolved (provider, runtime, version) triple, it locates an existing
// store entry or downloads, verifies, materializes, and atomically
// publishes a new one. Adapted from the teacher's download/extract
// pipeline, generalized from "fetch a video" to "fetch a dev-tool
// release".
package install

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/vx-run/vx/internal/descriptor"
	"github.com/vx-run/vx/internal/install/extract"
	"github.com/vx-run/vx/internal/platform"
	"github.com/vx-run/vx/internal/progress"
	"github.com/vx-run/vx/internal/registry"
	"github.com/vx-run/vx/internal/scripthost"
	"github.com/vx-run/vx/internal/shimfmt"
	"github.com/vx-run/vx/internal/store"
	"github.com/vx-run/vx/internal/version"
	"github.com/vx-run/vx/internal/vxerr"
	"github.com/vx-run/vx/internal/vxhome"
	"github.com/vx-run/vx/internal/vxlog"
)

// Engine drives the install protocol for one process. Concurrent installs
// are bounded to min(4, logical CPUs), per spec.md §5.
type Engine struct {
	Host     *scripthost.Host
	Store    *store.Store
	Layout   vxhome.Layout
	Platform platform.Platform
	Client   *http.Client

	// Registry resolves a dependency's runtime name (declared by a
	// provider's deps() callback) to the (provider, runtime) pair Ensure
	// needs to install it. Nil disables dependency resolution: deps() is
	// still read, but each required dependency fails with
	// vxerr.UnknownRuntime instead of recursing (an optional one is logged
	// and skipped). Tests that construct an Engine directly and
	// never exercise deps() can leave this nil.
	Registry *registry.Registry

	// NewReporter builds a progress.Reporter for one install; nil disables
	// progress reporting entirely (e.g. non-interactive batch installs).
	NewReporter func() progress.Reporter

	sem *semaphore.Weighted
}

// NewEngine builds an Engine rooted at layout, using host to invoke
// provider callbacks and client for outbound HTTP.
func NewEngine(host *scripthost.Host, layout vxhome.Layout, p platform.Platform, client *http.Client) *Engine {
	n := runtime.NumCPU()
	if n > 4 {
		n = 4
	}

	if n < 1 {
		n = 1
	}

	return &Engine{
		Host:     host,
		Store:    store.New(layout),
		Layout:   layout,
		Platform: p,
		Client:   client,
		sem:      semaphore.NewWeighted(int64(n)),
	}
}

// Ensure implements spec.md §4.4's full protocol: Locate, Lock, Plan URL,
// Optimize URL, Download with fallback, Verify, Materialize, Post-install,
// Publish, release lock. It returns the resolved executable path.
func (e *Engine) Ensure(ctx context.Context, provider *scripthost.LoadedProvider, rt descriptor.Runtime, version string) (string, error) {
	return e.ensure(ctx, provider, rt, version, make(map[string]bool))
}

// ensure is Ensure plus the in-progress chain DFS-style cycle detection
// walks: chain holds every runtime name currently being installed on this
// call stack. A runtime already installed (Locate succeeds) never touches
// chain, so diamond-shaped dependencies resolve fine; only a genuine cycle
// trips the chain[rt.Name] check.
func (e *Engine) ensure(ctx context.Context, provider *scripthost.LoadedProvider, rt descriptor.Runtime, version string, chain map[string]bool) (string, error) {
	log := vxlog.From(ctx).With("runtime", rt.Name, "version", version)

	jsCtx := e.Host.BuildCtx()

	// Step 1: Locate, before taking the semaphore or any lock.
	if path, ok := e.locate(provider, rt, version, jsCtx); ok {
		return path, nil
	}

	if chain[rt.Name] {
		return "", vxerr.New(vxerr.CircularDependency, "install.deps", fmt.Errorf("runtime %q depends on itself transitively", rt.Name)).WithRuntime(rt.Name, version)
	}

	chain[rt.Name] = true
	defer delete(chain, rt.Name)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("install: acquire concurrency slot: %w", err)
	}
	defer e.sem.Release(1)

	// Step 2: Lock, then re-check Locate under the lock (another process
	// may have published between the first check and acquiring it).
	fl, err := e.Store.Lock(rt.Name, version)
	if err != nil {
		return "", err
	}
	defer fl.Unlock()

	if path, ok := e.locate(provider, rt, version, jsCtx); ok {
		return path, nil
	}

	log.Info("install: starting")

	if err := e.ensureDependencies(ctx, provider, version, jsCtx, chain); err != nil {
		return "", err
	}

	// Step 3: Plan URL.
	var plan downloadPlan

	found, err := provider.Call(ctx, "download_url", &plan, jsCtx, version)
	if err != nil {
		return "", err
	}

	if !found || plan.URL == "" {
		if path, ok := systemExecutable(rt); ok {
			return path, nil
		}

		hint := "provider does not support installing this runtime on this platform"

		return "", vxerr.New(vxerr.NotInstallable, "install.plan", nil).WithRuntime(rt.Name, version).WithHint(hint)
	}

	// Step 4: Optimize URL (feature-gated CDN mirror).
	urls := e.candidateURLs(plan)

	// Step 5: Download with fallback.
	reporter := e.reporter()
	if reporter != nil {
		defer reporter.Close()
	}

	downloadedPath, err := e.downloadWithFallback(ctx, urls, rt.Name+"-"+version, reporter)
	if err != nil {
		return "", vxerr.New(vxerr.DownloadFailed, "install.download", err).WithRuntime(rt.Name, version)
	}
	defer os.Remove(downloadedPath)

	// Step 6: Verify.
	if plan.ChecksumURL != "" {
		want, err := fetchChecksum(ctx, e.Client, plan.ChecksumURL, filepath.Base(plan.URL))
		if err != nil {
			return "", vxerr.New(vxerr.ChecksumMismatch, "install.verify", err).WithRuntime(rt.Name, version)
		}

		if err := verifyChecksum(downloadedPath, want, plan.Algorithm); err != nil {
			return "", vxerr.New(vxerr.ChecksumMismatch, "install.verify", err).WithRuntime(rt.Name, version)
		}
	}

	// Step 7: Materialize.
	var layout descriptor.Layout

	found, err = provider.Call(ctx, "install_layout", &layout, jsCtx, version)
	if err != nil {
		return "", err
	}

	if !found {
		return "", vxerr.New(vxerr.NotInstallable, "install.materialize", nil).
			WithRuntime(rt.Name, version).
			WithHint("provider does not define install_layout")
	}

	partialDir, err := e.Store.NewPartialDir(rt.Name, version)
	if err != nil {
		return "", err
	}

	if err := materialize(downloadedPath, partialDir, layout); err != nil {
		_ = os.RemoveAll(partialDir)
		return "", vxerr.New(vxerr.ExtractionFailed, "install.materialize", err).WithRuntime(rt.Name, version)
	}

	// Step 8: Post-install.
	if _, err := provider.Call(ctx, "post_install", nil, jsCtx, version, partialDir); err != nil {
		_ = os.RemoveAll(partialDir)
		return "", err
	}

	// Step 9: Publish.
	if err := e.Store.Publish(rt.Name, version, partialDir); err != nil {
		return "", err
	}

	log.Info("install: published")

	execPath, err := e.resolveExecutePath(provider, rt, version, jsCtx)
	if err != nil {
		return "", err
	}

	if err := e.writeShim(rt, execPath); err != nil {
		log.Warn("install: failed to write shim sidecar", "error", err)
	}

	return execPath, nil
}

// ensureDependencies implements the deps() side of spec.md §9's design
// note: providers may declare transitive dependencies on other runtimes;
// vx is not a package manager and does not SAT-solve across them (spec.md
// §1 Non-goals), it simply ensures each declared Requirement, recursing
// through chain so a cycle fails fast as CircularDependency instead of
// recursing forever.
func (e *Engine) ensureDependencies(ctx context.Context, provider *scripthost.LoadedProvider, ver string, jsCtx map[string]any, chain map[string]bool) error {
	if !provider.Descriptor.HasDeps {
		return nil
	}

	var reqs []descriptor.Requirement

	found, err := provider.Call(ctx, "deps", &reqs, jsCtx, ver)
	if err != nil {
		return err
	}

	if !found {
		return nil
	}

	for _, req := range reqs {
		if err := e.ensureDependency(ctx, req, chain); err != nil {
			if req.Optional {
				vxlog.From(ctx).Warn("install: optional dependency unsatisfied", "runtime", req.Runtime, "reason", req.Reason, "error", err)
				continue
			}

			return err
		}
	}

	return nil
}

func (e *Engine) ensureDependency(ctx context.Context, req descriptor.Requirement, chain map[string]bool) error {
	if e.Registry == nil {
		return vxerr.New(vxerr.UnknownRuntime, "install.deps", fmt.Errorf("dependency %q declared but no registry is wired to resolve it", req.Runtime)).WithRuntime(req.Runtime, "")
	}

	depProvider, depRt, err := e.Registry.Resolve(req.Runtime)
	if err != nil {
		return err
	}

	constraint := req.Version
	if constraint == "" {
		constraint = "latest"
	}

	resolver := version.NewProviderResolver(e.Host, depProvider, depRt, e.Layout.CacheVersions(depRt.Name))

	depVersion, err := resolver.Resolve(ctx, constraint)
	if err != nil {
		return err
	}

	_, err = e.ensure(ctx, depProvider, depRt, depVersion, chain)

	return err
}

func (e *Engine) locate(provider *scripthost.LoadedProvider, rt descriptor.Runtime, version string, jsCtx map[string]any) (string, bool) {
	execPath, err := e.resolveExecutePath(provider, rt, version, jsCtx)
	if err != nil || execPath == "" {
		return "", false
	}

	return e.Store.Locate(rt.Name, version, execPath)
}

// resolveExecutePath invokes get_execute_path if the provider defines it,
// falling back to deriving the path from install_layout's declared
// executable location (spec.md §4.4 step 1).
func (e *Engine) resolveExecutePath(provider *scripthost.LoadedProvider, rt descriptor.Runtime, version string, jsCtx map[string]any) (string, error) {
	var execPath string

	found, err := provider.Call(context.Background(), "get_execute_path", &execPath, jsCtx, version)
	if err != nil {
		return "", err
	}

	if found && execPath != "" {
		return execPath, nil
	}

	versionDir := e.Layout.StoreVersion(rt.Name, version)

	var layout descriptor.Layout

	found, err = provider.Call(context.Background(), "install_layout", &layout, jsCtx, version)
	if err != nil {
		return "", err
	}

	if found {
		switch layout.Kind {
		case descriptor.LayoutArchive:
			if len(layout.ExecutablePaths) > 0 {
				return filepath.Join(versionDir, layout.ExecutablePaths[0]), nil
			}
		case descriptor.LayoutBinary:
			dir := versionDir
			if layout.TargetDir != "" {
				dir = filepath.Join(versionDir, layout.TargetDir)
			}

			if layout.TargetName != "" {
				return filepath.Join(dir, layout.TargetName), nil
			}
		}
	}

	return filepath.Join(versionDir, rt.Executable), nil
}

func systemExecutable(rt descriptor.Runtime) (string, bool) {
	for _, p := range rt.SystemPaths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}

	if path, err := exec.LookPath(rt.Executable); err == nil {
		return path, true
	}

	return "", false
}

// defaultCDNBase is the CDN origin candidateURLs mirrors through when
// VX_CDN_ENABLED=true and VX_CDN_BASE does not override it.
const defaultCDNBase = "https://cdn.vx-run.dev"

// candidateURLs implements spec.md §4.4 step 4's CDN optimizer, gated by
// the VX_CDN_ENABLED boolean spec.md §6 documents: when set to "true", a
// CDN URL derived from the provider's origin URL is tried first, with
// origin (and any provider-declared fallback_url) still tried after it on
// failure, satisfying scenario S4 (a 502 from the CDN retries once against
// origin and succeeds). VX_CDN_BASE optionally overrides the CDN's
// scheme+host for pointing at a private mirror; unset falls back to
// defaultCDNBase.
func (e *Engine) candidateURLs(plan downloadPlan) []string {
	var urls []string

	if os.Getenv("VX_CDN_ENABLED") == "true" {
		if cdn := cdnURL(plan.URL, os.Getenv("VX_CDN_BASE")); cdn != "" {
			urls = append(urls, cdn)
		}
	}

	urls = append(urls, plan.URL)

	if plan.FallbackURL != "" {
		urls = append(urls, plan.FallbackURL)
	}

	return urls
}

// cdnURL rewrites origin's scheme and host to base (or defaultCDNBase if
// base is empty), preserving its path and query so the CDN is expected to
// mirror the origin's layout verbatim.
func cdnURL(origin, base string) string {
	o, err := url.Parse(origin)
	if err != nil {
		return ""
	}

	if base == "" {
		base = defaultCDNBase
	}

	b, err := url.Parse(base)
	if err != nil {
		return ""
	}

	o.Scheme = b.Scheme
	o.Host = b.Host

	return o.String()
}

func (e *Engine) downloadWithFallback(ctx context.Context, urls []string, label string, reporter progress.Reporter) (string, error) {
	d := newDownloader(e.Client, e.Layout.Tmp())

	if err := os.MkdirAll(e.Layout.Tmp(), 0o755); err != nil {
		return "", fmt.Errorf("install: create tmp dir: %w", err)
	}

	log := vxlog.Global()

	var lastErr error

	for i, url := range urls {
		path, err := d.download(ctx, url, label, reporter)
		if err == nil {
			return path, nil
		}

		lastErr = err

		if !retryable(err) {
			return "", err
		}

		log.Warn("install: download failed, trying next URL", "url", url, "attempt", strconv.Itoa(i+1), "error", err)
	}

	return "", fmt.Errorf("install: all download URLs failed: %w", lastErr)
}

func (e *Engine) reporter() progress.Reporter {
	if e.NewReporter == nil {
		return nil
	}

	return e.NewReporter()
}

// materialize implements spec.md §4.4 step 7: extract an Archive layout or
// copy-rename a Binary layout into partialDir, setting the executable bit
// on every declared entry point.
func materialize(downloadedPath, partialDir string, layout descriptor.Layout) error {
	switch layout.Kind {
	case descriptor.LayoutArchive:
		if err := extract.Extract(downloadedPath, partialDir, layout.StripPrefix); err != nil {
			return err
		}

		if len(layout.ExecutablePaths) == 0 {
			return fmt.Errorf("install: archive layout declares no executable_paths")
		}

		for _, rel := range layout.ExecutablePaths {
			path := filepath.Join(partialDir, rel)

			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("install: declared executable %s missing after extraction: %w", rel, err)
			}

			if err := os.Chmod(path, 0o755); err != nil {
				return fmt.Errorf("install: chmod %s: %w", path, err)
			}
		}

		return nil
	case descriptor.LayoutBinary:
		targetDir := partialDir
		if layout.TargetDir != "" {
			targetDir = filepath.Join(partialDir, layout.TargetDir)
		}

		if err := os.MkdirAll(targetDir, 0o755); err != nil {
			return err
		}

		targetName := layout.TargetName
		if targetName == "" {
			targetName = filepath.Base(downloadedPath)
		}

		target := filepath.Join(targetDir, targetName)

		mode := os.FileMode(0o755)
		if layout.Permission != 0 {
			mode = os.FileMode(layout.Permission)
		}

		return copyExecutable(downloadedPath, target, mode)
	default:
		return fmt.Errorf("install: unknown install_layout kind %d", layout.Kind)
	}
}

func copyExecutable(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	return os.Chmod(dst, mode)
}

// writeShim materializes a launcher sidecar for execPath into the shims
// directory, the supplemental feature spec.md §4.6 assumes but leaves
// unspecified who writes.
func (e *Engine) writeShim(rt descriptor.Runtime, execPath string) error {
	if err := os.MkdirAll(e.Layout.Shims(), 0o755); err != nil {
		return err
	}

	shim := shimfmt.New(execPath)
	path := filepath.Join(e.Layout.Shims(), rt.Executable+".shim")

	return shimfmt.Save(path, &shim)
}

// Uninstall removes a published store entry and, when rt's shim sidecar
// points into that entry, the now-orphaned sidecar.
func (e *Engine) Uninstall(rt descriptor.Runtime, version string) error {
	if err := e.Store.Uninstall(rt.Name, version); err != nil {
		return err
	}

	shimPath := filepath.Join(e.Layout.Shims(), rt.Executable+".shim")

	s, err := shimfmt.Load(shimPath)
	if err != nil {
		return nil // no readable sidecar to check
	}

	rel, err := filepath.Rel(e.Layout.StoreVersion(rt.Name, version), s.Path)
	if err != nil || !filepath.IsLocal(rel) {
		return nil // the sidecar points at another version
	}

	if err := os.Remove(shimPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("install: remove orphan shim %s: %w", shimPath, err)
	}

	return nil
}

// GC runs crash-recovery on rt's store root.
func (e *Engine) GC(rt descriptor.Runtime) ([]string, error) {
	return e.Store.GC(rt.Name, time.Now())
}
