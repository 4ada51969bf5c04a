package stdlib

import "github.com/dop251/goja"

// PlatformModule implements the `platform` stdlib module.
type PlatformModule struct {
	OS   string
	Arch string
}

// Register installs the `platform` global on vm.
func (p *PlatformModule) Register(vm *goja.Runtime) error {
	obj := vm.NewObject()

	if err := obj.Set("exe_ext", func(call goja.FunctionCall) goja.Value {
		if p.OS == "windows" {
			return vm.ToValue(".exe")
		}

		return vm.ToValue("")
	}); err != nil {
		return err
	}

	if err := obj.Set("is_windows", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(p.OS == "windows")
	}); err != nil {
		return err
	}

	if err := obj.Set("triple", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(ridTriple(p.OS, p.Arch))
	}); err != nil {
		return err
	}

	return vm.Set("platform", obj)
}
