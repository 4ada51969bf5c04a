package cli

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/vx-run/vx/internal/execpipe"
	"github.com/vx-run/vx/internal/install"
	"github.com/vx-run/vx/internal/platform"
	"github.com/vx-run/vx/internal/providerpaths"
	"github.com/vx-run/vx/internal/registry"
	"github.com/vx-run/vx/internal/scripthost"
	"github.com/vx-run/vx/internal/statedb"
	"github.com/vx-run/vx/internal/store"
	"github.com/vx-run/vx/internal/vxhome"
)

// app bundles the services every subcommand needs, built once per
// invocation from the process's working directory and VX_HOME.
type app struct {
	Layout   vxhome.Layout
	Host     *scripthost.Host
	Registry *registry.Registry
	Engine   *install.Engine
	Store    *store.Store
	Pipeline *execpipe.Pipeline
}

func newApp() (*app, error) {
	home, err := vxhome.Get()
	if err != nil {
		return nil, err
	}

	layout := vxhome.NewLayout(home)
	if err := layout.EnsureDirs(); err != nil {
		return nil, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	projectRoot, _ := providerpaths.FindProjectRoot(cwd)

	p := platform.Current()
	host := scripthost.New(p, home)
	reg := registry.New(host, projectRoot, home)

	if errs := reg.Reload(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "vx: warning: failed to load provider %s: %v\n", e.Path, e.Err)
		}
	}

	engine := install.NewEngine(host, layout, p, http.DefaultClient)
	engine.Registry = reg

	st := store.New(layout)

	if db, err := statedb.Open(layout.StateDB()); err == nil {
		st.AttachStateDB(db)
	} else {
		fmt.Fprintf(os.Stderr, "vx: warning: state cache unavailable, falling back to filesystem scans: %v\n", err)
	}

	// Share one Store between the app and the engine so every install/
	// uninstall keeps the state cache (if any) in sync; NewEngine's own
	// Store would otherwise diverge from the one doctor/list/stats read.
	engine.Store = st

	a := &app{
		Layout:   layout,
		Host:     host,
		Registry: reg,
		Engine:   engine,
		Store:    st,
	}

	a.Pipeline = &execpipe.Pipeline{Registry: reg, Engine: engine, Host: host, Layout: layout}

	return a, nil
}

// crashRecoveryScan implements spec.md §4.4's "on startup" crash recovery:
// best-effort and run off the critical path of a tool invocation, so a
// passthrough command never waits on it. `vx doctor` runs the read-only
// version of this same scan synchronously and on demand. Also repairs the
// state cache so it never drifts far from the filesystem it mirrors.
func (a *app) crashRecoveryScan() {
	now := time.Now()

	for _, l := range a.Registry.List() {
		_, _ = a.Engine.GC(l.Runtime)
		_ = a.Store.ReconcileCache(l.Runtime.Name, now)
	}
}
