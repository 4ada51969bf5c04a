package cli

import (
	"github.com/vx-run/vx/internal/descriptor"
	"github.com/vx-run/vx/internal/scripthost"
	"github.com/vx-run/vx/internal/version"
)

// resolverFor builds a version.Resolver for one provider's runtime, wired
// the same way execpipe.Pipeline does internally: fetch_versions/
// supported_platforms called through the provider's own JS callbacks, with
// results cached under the app's vxhome layout.
func (a *app) resolverFor(provider *scripthost.LoadedProvider, rt descriptor.Runtime) *version.Resolver {
	return version.NewProviderResolver(a.Host, provider, rt, a.Layout.CacheVersions(rt.Name))
}
