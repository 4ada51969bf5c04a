package cli

import (
	"context"
	"runtime"
	"testing"

	"github.com/vx-run/vx/internal/config"
	"github.com/vx-run/vx/internal/vxhome"
)

func TestComposeScriptEnvironmentAppliesProjectThenEnvOverrides(t *testing.T) {
	t.Setenv("HOST_VAR", "from-host")

	a := &app{Layout: vxhome.NewLayout(t.TempDir())}

	proj := &config.Project{Env: map[string]string{
		"GREETING": "hi ${HOST_VAR}",
		"SHARED":   "project",
	}}

	env := &config.Environment{Env: map[string]string{"SHARED": "named-env"}}

	vars := envSliceToMapCLI(composeScriptEnvironment(a, proj, env, "/project"))

	if vars["GREETING"] != "hi from-host" {
		t.Fatalf("GREETING = %q, want expanded host var", vars["GREETING"])
	}

	if vars["SHARED"] != "named-env" {
		t.Fatalf("SHARED = %q, want the named environment to win over the project", vars["SHARED"])
	}

	if vars["VX_PROJECT_ROOT"] != "/project" {
		t.Fatalf("VX_PROJECT_ROOT = %q", vars["VX_PROJECT_ROOT"])
	}

	if vars["VX_HOME"] != a.Layout.Root {
		t.Fatalf("VX_HOME = %q, want %q", vars["VX_HOME"], a.Layout.Root)
	}
}

func TestSortedKeysIsDeterministic(t *testing.T) {
	got := sortedKeys(map[string]string{"build": "", "test": "", "lint": ""})
	want := []string{"build", "lint", "test"}

	if len(got) != len(want) {
		t.Fatalf("sortedKeys = %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sortedKeys = %v, want %v", got, want)
		}
	}
}

func TestShellCommandPicksInterpreterPerPlatform(t *testing.T) {
	cmd := shellCommand(context.Background(), "echo hi")

	if runtime.GOOS == "windows" {
		if cmd.Args[0] != "cmd" {
			t.Fatalf("Args[0] = %q, want cmd", cmd.Args[0])
		}
	} else if cmd.Args[0] != "sh" {
		t.Fatalf("Args[0] = %q, want sh", cmd.Args[0])
	}
}
