package shimfmt

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadTOMLShim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rg.shim")

	src := `
path = "/vx/store/ripgrep/14.1.0/rg"
args = "--smart-case"

[env]
RG_COLORS = "match:fg:red"

[signal_handling]
ignore_sigint = true
`

	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if s.Path != "/vx/store/ripgrep/14.1.0/rg" {
		t.Fatalf("Path = %q", s.Path)
	}

	if !s.SignalHandling.ForwardSignals || !s.SignalHandling.KillOnExit {
		t.Fatal("forward_signals/kill_on_exit should default true when absent")
	}

	if !s.SignalHandling.IgnoreSigint {
		t.Fatal("ignore_sigint should be true as declared")
	}

	if s.Env["RG_COLORS"] != "match:fg:red" {
		t.Fatalf("Env = %v", s.Env)
	}
}

func TestLoadLegacyShim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.shim")

	src := `path = "/vx/store/node/18.0.0/bin/node"
working_dir = "/projects/app"
env.NODE_ENV = "production"
forward_signals = false
`

	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if s.Path != "/vx/store/node/18.0.0/bin/node" {
		t.Fatalf("Path = %q", s.Path)
	}

	if s.WorkingDir != "/projects/app" {
		t.Fatalf("WorkingDir = %q", s.WorkingDir)
	}

	if s.Env["NODE_ENV"] != "production" {
		t.Fatalf("Env = %v", s.Env)
	}

	if s.SignalHandling.ForwardSignals {
		t.Fatal("forward_signals should be false as explicitly declared")
	}

	if !s.SignalHandling.KillOnExit {
		t.Fatal("kill_on_exit should still default true")
	}
}

func TestLoadMissingPathFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.shim")

	if err := os.WriteFile(path, []byte("args = \"--flag\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a shim missing the required `path` key")
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"--smart-case", []string{"--smart-case"}},
		{`--glob "*.go"`, []string{"--glob", "*.go"}},
		{`-e 'hello world'`, []string{"-e", "hello world"}},
		{`a\ b c`, []string{"a b", "c"}},
	}

	for _, tt := range tests {
		got, err := SplitArgs(tt.in)
		if err != nil {
			t.Fatalf("SplitArgs(%q) error = %v", tt.in, err)
		}

		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitArgs(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestSplitArgsUnterminatedQuoteErrors(t *testing.T) {
	if _, err := SplitArgs(`--glob "*.go`); err == nil {
		t.Fatal("expected an error for an unterminated quote")
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jq.shim")

	want := New("/vx/store/jq/1.7.1/jq")
	want.Args = "-c"

	if err := Save(path, &want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got.Path != want.Path || got.Args != want.Args {
		t.Fatalf("round-tripped shim = %+v, want %+v", got, want)
	}
}
