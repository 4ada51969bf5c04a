package stdlib

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja"
)

// GitHubModule implements the `github` stdlib module: release-list fetch
// helpers and asset-URL composers built on top of HTTPModule.GetJSON,
// speaking the GitHub Releases JSON shape from spec.md §6 (`tag_name`,
// `prerelease`, `draft`, `published_at`, `assets[].browser_download_url`).
type GitHubModule struct {
	HTTP *HTTPModule
}

// NewGitHubModule builds a GitHubModule backed by http.
func NewGitHubModule(http *HTTPModule) *GitHubModule {
	return &GitHubModule{HTTP: http}
}

type ghRelease struct {
	TagName     string    `json:"tag_name"`
	Prerelease  bool      `json:"prerelease"`
	Draft       bool      `json:"draft"`
	PublishedAt string    `json:"published_at"`
	Assets      []ghAsset `json:"assets"`
}

type ghAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

var tagPrefixRe = regexp.MustCompile(`^(v|jq-|release-)`)

// NormalizeVersion strips the leading tag-prefix conventions spec.md §3
// names (`v`, `jq-`, `release-`) from a raw release tag.
func NormalizeVersion(tag string) string {
	return tagPrefixRe.ReplaceAllString(tag, "")
}

// fetchReleases pages through GitHub's releases endpoint once (first page,
// 100 per page, which comfortably covers the overwhelming majority of
// providers vx ships) via HTTP.GetJSON, decoding into ghRelease structs by
// round-tripping through the generic `any` GetJSON returns.
func (g *GitHubModule) fetchReleases(ctx context.Context, owner, repo string) ([]ghRelease, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/%s/releases?per_page=100", owner, repo)

	raw, err := g.HTTP.GetJSON(ctx, url)
	if err != nil {
		return nil, err
	}

	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("github: unexpected releases payload shape for %s/%s", owner, repo)
	}

	out := make([]ghRelease, 0, len(items))

	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}

		rel := ghRelease{
			TagName:     stringField(m, "tag_name"),
			Prerelease:  boolField(m, "prerelease"),
			Draft:       boolField(m, "draft"),
			PublishedAt: stringField(m, "published_at"),
		}

		if assets, ok := m["assets"].([]any); ok {
			for _, a := range assets {
				am, ok := a.(map[string]any)
				if !ok {
					continue
				}

				rel.Assets = append(rel.Assets, ghAsset{
					Name:               stringField(am, "name"),
					BrowserDownloadURL: stringField(am, "browser_download_url"),
				})
			}
		}

		out = append(out, rel)
	}

	return out, nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}

	return ""
}

func boolField(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}

	return false
}

// FetchVersions lists non-draft releases for owner/repo as the
// []VersionInfo-shaped slice of maps a provider's fetch_versions callback
// returns. includePrereleases controls whether prerelease tags are kept
// (they are always returned with Prerelease=true; filtering to the final
// selectable set happens in internal/version).
func (g *GitHubModule) FetchVersions(ctx context.Context, owner, repo string, includePrereleases bool) ([]map[string]any, error) {
	releases, err := g.fetchReleases(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(releases))

	for _, r := range releases {
		if r.Draft {
			continue
		}

		if r.Prerelease && !includePrereleases {
			continue
		}

		out = append(out, map[string]any{
			"version":    NormalizeVersion(r.TagName),
			"lts":        false,
			"prerelease": r.Prerelease,
			"date":       r.PublishedAt,
		})
	}

	return out, nil
}

// AssetURL composes the canonical GitHub release asset download URL.
func AssetURL(owner, repo, tag, asset string) string {
	return fmt.Sprintf("https://github.com/%s/%s/releases/download/%s/%s", owner, repo, tag, asset)
}

// Register installs the `github` global on vm.
func (g *GitHubModule) Register(vm *goja.Runtime) error {
	obj := vm.NewObject()

	if err := obj.Set("make_fetch_versions", func(call goja.FunctionCall) goja.Value {
		owner := argString(call, 0)
		repo := argString(call, 1)
		includePrereleases := false

		if len(call.Arguments) > 2 {
			includePrereleases = call.Arguments[2].ToBoolean()
		}

		fn := func(inner goja.FunctionCall) goja.Value {
			versions, err := g.FetchVersions(context.Background(), owner, repo, includePrereleases)
			if err != nil {
				panic(vm.NewGoError(err))
			}

			return vm.ToValue(versions)
		}

		return vm.ToValue(fn)
	}); err != nil {
		return err
	}

	if err := obj.Set("github_asset_url", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(AssetURL(argString(call, 0), argString(call, 1), argString(call, 2), argString(call, 3)))
	}); err != nil {
		return err
	}

	if err := obj.Set("make_github_provider", func(call goja.FunctionCall) goja.Value {
		owner := argString(call, 0)
		repo := argString(call, 1)
		assetTemplate := argString(call, 2)

		fetchVersions := func(inner goja.FunctionCall) goja.Value {
			versions, err := g.FetchVersions(context.Background(), owner, repo, false)
			if err != nil {
				panic(vm.NewGoError(err))
			}

			return vm.ToValue(versions)
		}

		downloadURL := func(inner goja.FunctionCall) goja.Value {
			version := argString(inner, 1)
			tag := version

			var triple, ext string

			if len(inner.Arguments) > 0 {
				if ctxObj, ok := inner.Arguments[0].Export().(map[string]any); ok {
					if p, ok := ctxObj["platform"].(map[string]any); ok {
						triple = ridTriple(stringField(p, "os"), stringField(p, "arch"))
						ext = ridExt(stringField(p, "os"))
					}
				}
			}

			asset := strings.NewReplacer("{triple}", triple, "{ext}", ext).Replace(assetTemplate)

			return vm.ToValue(AssetURL(owner, repo, tag, asset))
		}

		result := vm.NewObject()
		_ = result.Set("fetch_versions", fetchVersions)
		_ = result.Set("download_url", downloadURL)

		return result
	}); err != nil {
		return err
	}

	return vm.Set("github", obj)
}

func argString(call goja.FunctionCall, i int) string {
	if i >= len(call.Arguments) {
		return ""
	}

	return call.Arguments[i].String()
}

// ridTriple/ridExt implement the {triple}/{ext} substitutions for the
// "standard Rust-target-triple naming" spec.md §4.1 describes, mirroring
// internal/platform.Platform.RustTriple without importing internal/platform
// here (stdlib stays free of vx's own package graph so it can be unit
// tested in isolation).
func ridTriple(os, arch string) string {
	var osPart string

	switch os {
	case "macos":
		osPart = "apple-darwin"
	case "windows":
		osPart = "pc-windows-msvc"
	default:
		osPart = "unknown-linux-gnu"
	}

	var archPart string

	switch arch {
	case "arm64":
		archPart = "aarch64"
	case "x86":
		archPart = "i686"
	case "arm":
		archPart = "armv7"
	default:
		archPart = "x86_64"
	}

	return archPart + "-" + osPart
}

func ridExt(os string) string {
	if os == "windows" {
		return "zip"
	}

	return "tar.gz"
}
