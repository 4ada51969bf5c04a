package scripthost

import "github.com/vx-run/vx/internal/platform"

// buildCtxObject returns the plain Go value handed to goja.ToValue to
// become the `ctx` argument. Providers read ctx.platform.os/.arch and
// ctx.vx_home directly; ctx.http/ctx.fs are present for documentation
// parity with spec.md's ctx record, but per the Open Question in spec.md
// §9(c) vx supports exactly one calling convention for stdlib helpers:
// module-level functions that take ctx explicitly
// (`http.get_json(ctx, url)`), never `ctx.http.get_json(url)`. The
// ctx.http/ctx.fs sub-objects below are therefore inert placeholders kept
// only so `ctx.http` is truthy for scripts that feature-detect it; calling
// through them is not supported.
func buildCtxObject(p platform.Platform, vxHome string) map[string]any {
	return map[string]any{
		"platform": map[string]any{
			"os":   string(p.OS),
			"arch": string(p.Arch),
		},
		"vx_home": vxHome,
		"http":    map[string]any{},
		"fs":      map[string]any{},
	}
}
