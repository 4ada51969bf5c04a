// Package scripthost evaluates provider descriptor scripts in a sandboxed
// goja JS runtime and dispatches their lifecycle callbacks, per spec.md
// §4.1. Each provider gets its own *goja.Runtime so one script's globals
// never leak into another's, which is also what makes discovery-order
// "first match wins" meaningful at the registry layer above.
package scripthost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dop251/goja"
	"github.com/vx-run/vx/internal/descriptor"
	"github.com/vx-run/vx/internal/platform"
	"github.com/vx-run/vx/internal/scripthost/stdlib"
	"github.com/vx-run/vx/internal/vxerr"
)

// Host loads and runs provider scripts for one process.
type Host struct {
	Platform platform.Platform
	VXHome   string
}

// New builds a Host bound to the current platform and VX_HOME.
func New(p platform.Platform, vxHome string) *Host {
	return &Host{Platform: p, VXHome: vxHome}
}

// BuildCtx returns the `ctx` value passed as the first argument to every
// provider callback.
func (h *Host) BuildCtx() map[string]any {
	return buildCtxObject(h.Platform, h.VXHome)
}

// LoadedProvider is a script file that has been evaluated: its static
// metadata (descriptor.Provider) plus handles to its optional callbacks.
type LoadedProvider struct {
	Descriptor descriptor.Provider
	vm         *goja.Runtime
}

// Load reads path, evaluates it as a provider script, and extracts its
// metadata and runtime list. Callback presence is recorded but callbacks
// are not invoked until the registry or install engine needs them.
func (h *Host) Load(path string) (*LoadedProvider, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, vxerr.New(vxerr.ProviderLoadError, "registry.load", err).WithPath(path)
	}

	return h.LoadSource(src, path)
}

// LoadSource evaluates src as if it were read from path, without touching
// the filesystem. Used to load builtin providers embedded into the binary
// via go:embed, where there is no path to os.ReadFile.
func (h *Host) LoadSource(src []byte, path string) (*LoadedProvider, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	perms, err := extractPermissionsPrescan(string(src))
	if err != nil {
		return nil, loadErrorWithPath(path, err)
	}

	httpMod := stdlib.NewHTTPModule(perms.allowsHTTP)
	githubMod := stdlib.NewGitHubModule(httpMod)
	platMod := &stdlib.PlatformModule{OS: string(h.Platform.OS), Arch: string(h.Platform.Arch)}
	installMod := stdlib.InstallModule{}

	for _, register := range []func(*goja.Runtime) error{
		httpMod.Register, githubMod.Register, platMod.Register, installMod.Register,
	} {
		if err := register(vm); err != nil {
			return nil, loadErrorWithPath(path, err)
		}
	}

	if _, err := vm.RunString(string(src)); err != nil {
		return nil, loadErrorWithPath(path, err)
	}

	desc, err := extractDescriptor(vm)
	if err != nil {
		return nil, loadErrorWithPath(path, err)
	}

	desc.SourcePath = path
	desc.Permissions = perms.Permissions

	return &LoadedProvider{Descriptor: desc, vm: vm}, nil
}

func loadErrorWithPath(path string, err error) *vxerr.Error {
	e := vxerr.New(vxerr.ProviderLoadError, "registry.load", err)
	e.Path = path

	return e
}

// prescanPermissions is the result of reading the `permissions` global
// before any callback runs, used to build the http module's allow-list
// closure ahead of time (goja globals must be registered before
// RunString, but `permissions` is itself defined by that same script —
// so vx first runs the script in a throwaway runtime with stubbed stdlib
// modules, reads `permissions` back out, and only then builds the real
// runtime's http module with that allow-list and runs the script again).
// The script is therefore evaluated twice per load.
type prescanPermissions struct {
	descriptor.Permissions
}

func (p prescanPermissions) allowsHTTP(host string) bool {
	if len(p.HTTP) == 0 {
		return false
	}

	return p.Permissions.AllowsHTTP(host)
}

// extractPermissionsPrescan evaluates src in a throwaway runtime (stdlib
// modules stubbed to no-ops) purely to read the `permissions` top-level
// binding, so the real runtime's http module can be constructed with
// enforcement already wired in before any provider code can make a
// network call.
func extractPermissionsPrescan(src string) (prescanPermissions, error) {
	vm := goja.New()

	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }

	for _, name := range []string{"github", "http", "platform", "install"} {
		obj := vm.NewObject()
		_ = obj.Set("make_fetch_versions", noop)
		_ = obj.Set("github_asset_url", noop)
		_ = obj.Set("make_github_provider", noop)
		_ = obj.Set("get_json", noop)
		_ = obj.Set("exe_ext", noop)
		_ = obj.Set("is_windows", noop)
		_ = obj.Set("ensure_dependencies", noop)
		_ = vm.Set(name, obj)
	}

	if _, err := vm.RunString(src); err != nil {
		return prescanPermissions{}, err
	}

	permsVal := vm.Get("permissions")
	if permsVal == nil || goja.IsUndefined(permsVal) {
		return prescanPermissions{}, nil
	}

	raw, ok := permsVal.Export().(map[string]any)
	if !ok {
		return prescanPermissions{}, nil
	}

	httpList, declaredHTTP := stringList(raw, "http")
	fsList, declaredFS := stringList(raw, "fs")
	execList, declaredExec := stringList(raw, "exec")

	return prescanPermissions{descriptor.NewPermissions(httpList, fsList, execList, declaredHTTP, declaredFS, declaredExec)}, nil
}

func stringList(m map[string]any, key string) ([]string, bool) {
	v, declared := m[key]
	if !declared {
		return nil, false
	}

	items, ok := v.([]any)
	if !ok {
		return nil, true
	}

	out := make([]string, 0, len(items))

	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}

	return out, true
}

func extractDescriptor(vm *goja.Runtime) (descriptor.Provider, error) {
	desc := descriptor.Provider{
		Name:        stringGlobal(vm, "name"),
		Description: stringGlobal(vm, "description"),
		Homepage:    stringGlobal(vm, "homepage"),
		License:     stringGlobal(vm, "license"),
		Ecosystem:   stringGlobal(vm, "ecosystem"),
	}

	if desc.Name == "" {
		return desc, fmt.Errorf("scripthost: provider script does not define a top-level `name`")
	}

	runtimesVal := vm.Get("runtimes")
	if runtimesVal == nil || goja.IsUndefined(runtimesVal) {
		return desc, fmt.Errorf("scripthost: provider %q does not define top-level `runtimes`", desc.Name)
	}

	items, ok := runtimesVal.Export().([]any)
	if !ok {
		return desc, fmt.Errorf("scripthost: provider %q `runtimes` is not an array", desc.Name)
	}

	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}

		rt := descriptor.Runtime{
			Name:            stringField(m, "name"),
			Executable:      stringField(m, "executable"),
			Priority:        intField(m, "priority"),
			BundledWith:     stringField(m, "bundled_with"),
			AutoInstallable: boolFieldOr(m, "auto_installable", true),
		}

		if rt.Executable == "" {
			rt.Executable = rt.Name
		}

		rt.Aliases = stringSliceField(m, "aliases")
		rt.SystemPaths = stringSliceField(m, "system_paths")
		rt.EnvHints = stringSliceField(m, "env_hints")

		desc.Runtimes = append(desc.Runtimes, rt)
	}

	if len(desc.Runtimes) == 0 {
		return desc, fmt.Errorf("scripthost: provider %q exposes no runtimes", desc.Name)
	}

	for _, cb := range []struct {
		name string
		flag *bool
	}{
		{"download_url", &desc.HasDownloadURL},
		{"install_layout", &desc.HasInstallLayout},
		{"environment", &desc.HasEnvironment},
		{"store_root", &desc.HasStoreRoot},
		{"get_execute_path", &desc.HasExecutePath},
		{"post_install", &desc.HasPostInstall},
		{"pre_run", &desc.HasPreRun},
		{"deps", &desc.HasDeps},
		{"supported_platforms", &desc.HasSupportedPlatforms},
		{"system_install", &desc.HasSystemInstall},
	} {
		fn := vm.Get(cb.name)
		*cb.flag = fn != nil && !goja.IsUndefined(fn)
	}

	return desc, nil
}

func stringGlobal(vm *goja.Runtime, name string) string {
	v := vm.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}

	return v.String()
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}

	return ""
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func boolFieldOr(m map[string]any, key string, def bool) bool {
	v, ok := m[key]
	if !ok {
		return def
	}

	b, ok := v.(bool)
	if !ok {
		return def
	}

	return b
}

func stringSliceField(m map[string]any, key string) []string {
	items, ok := m[key].([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))

	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}

	return out
}

// Call invokes the named callback with args, decoding its return value
// into out via a JSON round-trip (goja's Export() already produces
// JSON-shaped Go values, so this is a type-assertion-free way to land
// them into strongly typed Go structs). A missing callback is reported to
// the caller as (found=false, nil) so callers can fall back to stdlib
// defaults per spec.md §3's "Callbacks may be absent".
func (lp *LoadedProvider) Call(ctx context.Context, name string, out any, args ...any) (found bool, err error) {
	fnVal := lp.vm.Get(name)
	if fnVal == nil || goja.IsUndefined(fnVal) {
		return false, nil
	}

	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return false, nil
	}

	gojaArgs := make([]goja.Value, len(args))
	for i, a := range args {
		gojaArgs[i] = lp.vm.ToValue(a)
	}

	result, callErr := fn(goja.Undefined(), gojaArgs...)
	if callErr != nil {
		var exc *goja.Exception
		if errors.As(callErr, &exc) {
			if goErr, ok := exc.Value().Export().(error); ok && errors.Is(goErr, stdlib.ErrHostNotPermitted) {
				return true, permissionError(lp.Descriptor.Name, name, goErr.Error())
			}
		}

		return true, callbackError(lp.Descriptor.Name, name, callErr)
	}

	if out == nil || result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return true, nil
	}

	exported := result.Export()

	raw, err := json.Marshal(exported)
	if err != nil {
		return true, callbackError(lp.Descriptor.Name, name, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return true, callbackError(lp.Descriptor.Name, name, err)
	}

	return true, nil
}
