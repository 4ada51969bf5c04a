package scripthost

import (
	"fmt"

	"github.com/vx-run/vx/internal/vxerr"
)

// callbackError wraps a runtime callback failure into a
// ProviderCallbackError without poisoning the rest of the registry.
func callbackError(provider, callback string, err error) *vxerr.Error {
	e := vxerr.New(vxerr.ProviderCallbackError, "provider."+callback, err)
	e.Runtime = provider

	return e
}

// permissionError reports a provider's attempt to exceed its declared
// sandbox permissions.
func permissionError(provider, operation, resource string) *vxerr.Error {
	e := vxerr.New(vxerr.PermissionDenied, operation, fmt.Errorf("provider %q is not permitted to access %q", provider, resource))
	e.Runtime = provider

	return e
}
