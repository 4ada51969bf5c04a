package stdlib

import "github.com/dop251/goja"

// Action is the opaque value install.ensure_dependencies produces; pre_run
// callbacks return a list of these for the install engine to execute
// synchronously (spec.md §4.1, §4.5 step 6).
type Action struct {
	Kind       string `json:"kind"`
	Runtime    string `json:"runtime"`
	CheckFile  string `json:"check_file"`
	InstallDir string `json:"install_dir"`
}

// InstallModule implements the `install` stdlib module.
type InstallModule struct{}

// Register installs the `install` global on vm.
func (InstallModule) Register(vm *goja.Runtime) error {
	obj := vm.NewObject()

	if err := obj.Set("ensure_dependencies", func(call goja.FunctionCall) goja.Value {
		a := Action{
			Kind:       "ensure_dependencies",
			Runtime:    argString(call, 0),
			CheckFile:  argString(call, 1),
			InstallDir: argString(call, 2),
		}

		return vm.ToValue(a)
	}); err != nil {
		return err
	}

	return vm.Set("install", obj)
}
