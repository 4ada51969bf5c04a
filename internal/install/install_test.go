package install

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/vx-run/vx/internal/platform"
	"github.com/vx-run/vx/internal/scripthost"
	"github.com/vx-run/vx/internal/vxhome"
)

func buildArchive(t *testing.T, content string) []byte {
	t.Helper()

	var buf bytes.Buffer

	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)

	hdr := &tar.Header{Name: "demo-1.0.0/bin/demo", Size: int64(len(content)), Mode: 0o644}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}

	if _, err := tw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}

	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

func newTestEngine(t *testing.T, vxHome string) (*Engine, *scripthost.Host) {
	t.Helper()

	layout := vxhome.NewLayout(vxHome)
	if err := layout.EnsureDirs(); err != nil {
		t.Fatal(err)
	}

	host := scripthost.New(platform.Current(), vxHome)
	engine := NewEngine(host, layout, platform.Current(), http.DefaultClient)

	return engine, host
}

const demoProviderSrc = `
name = "demo";
runtimes = [{name: "demo", executable: "demo"}];

function download_url(ctx, version) {
    return globalThis.__testArchiveURL;
}

function install_layout(ctx, version) {
    return {
        kind: "archive",
        strip_prefix: "demo-1.0.0",
        executable_paths: ["bin/demo"],
    };
}
`

func TestEnsureDownloadsExtractsAndPublishes(t *testing.T) {
	archive := buildArchive(t, "#!/bin/sh\necho demo\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	vxHome := t.TempDir()
	engine, host := newTestEngine(t, vxHome)

	provider, err := host.LoadSource([]byte(`
var __testArchiveURL = "`+srv.URL+`";
`+demoProviderSrc), "demo.js")
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}

	rt := provider.Descriptor.Runtimes[0]

	ctx := context.Background()

	execPath, err := engine.Ensure(ctx, provider, rt, "1.0.0")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	content, err := os.ReadFile(execPath)
	if err != nil {
		t.Fatalf("expected published executable: %v", err)
	}

	if string(content) != "#!/bin/sh\necho demo\n" {
		t.Fatalf("content = %q", content)
	}

	info, err := os.Stat(execPath)
	if err != nil {
		t.Fatal(err)
	}

	if info.Mode()&0o111 == 0 {
		t.Fatal("expected executable bit set")
	}

	if _, err := os.Stat(layoutReadyMarker(vxHome, "demo", "1.0.0")); err != nil {
		t.Fatalf("expected .ready marker: %v", err)
	}

	shimPath := filepath.Join(vxHome, "shims", "demo.shim")
	if _, err := os.Stat(shimPath); err != nil {
		t.Fatalf("expected shim sidecar written: %v", err)
	}

	// A second Ensure call should short-circuit via Locate without
	// re-downloading (the server handler doesn't track call count, but a
	// stale/removed temp dir would fail Stat inside Locate if it tried to
	// reuse a partial path).
	execPath2, err := engine.Ensure(ctx, provider, rt, "1.0.0")
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}

	if execPath2 != execPath {
		t.Fatalf("execPath2 = %q, want %q", execPath2, execPath)
	}
}

func TestEnsureChecksumMismatchFails(t *testing.T) {
	archive := buildArchive(t, "payload")

	mux := http.NewServeMux()
	mux.HandleFunc("/archive.tar.gz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	})
	mux.HandleFunc("/archive.tar.gz.sha256", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0000000000000000000000000000000000000000000000000000000000000000  archive.tar.gz\n"))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	vxHome := t.TempDir()
	engine, host := newTestEngine(t, vxHome)

	src := `
var __testArchiveURL = { url: "` + srv.URL + `/archive.tar.gz", checksum_url: "` + srv.URL + `/archive.tar.gz.sha256" };
` + demoProviderSrc

	provider, err := host.LoadSource([]byte(src), "demo.js")
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}

	rt := provider.Descriptor.Runtimes[0]

	_, err = engine.Ensure(context.Background(), provider, rt, "2.0.0")
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}

func TestEnsureSystemOnlyFallsBackToSystemPaths(t *testing.T) {
	vxHome := t.TempDir()
	engine, host := newTestEngine(t, vxHome)

	sysBin := filepath.Join(vxHome, "fake-system-tool")
	if err := os.WriteFile(sysBin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	provider, err := host.LoadSource([]byte(`
name = "sysonly";
runtimes = [{name: "sysonly", executable: "sysonly", system_paths: ["`+sysBin+`"]}];
`), "sysonly.js")
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}

	rt := provider.Descriptor.Runtimes[0]

	execPath, err := engine.Ensure(context.Background(), provider, rt, "system")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	if execPath != sysBin {
		t.Fatalf("execPath = %q, want %q", execPath, sysBin)
	}
}

func TestEnsureNotInstallableWithoutDownloadOrSystemPath(t *testing.T) {
	vxHome := t.TempDir()
	engine, host := newTestEngine(t, vxHome)

	provider, err := host.LoadSource([]byte(`
name = "nowhere";
runtimes = [{name: "nowhere", executable: "nowhere-binary-that-does-not-exist"}];
`), "nowhere.js")
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}

	rt := provider.Descriptor.Runtimes[0]

	_, err = engine.Ensure(context.Background(), provider, rt, "1.0.0")
	if err == nil {
		t.Fatal("expected NotInstallable error")
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{&httpError{StatusCode: http.StatusTooManyRequests}, true},
		{&httpError{StatusCode: http.StatusRequestTimeout}, true},
		{&httpError{StatusCode: http.StatusInternalServerError}, true},
		{&httpError{StatusCode: http.StatusNotFound}, false},
		{&httpError{StatusCode: http.StatusForbidden}, false},
	}

	for _, c := range cases {
		if got := retryable(c.err); got != c.want {
			t.Errorf("retryable(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestBackoffDelayIsBoundedAndGrows(t *testing.T) {
	d1 := backoffDelay(1)
	d3 := backoffDelay(3)

	if d1 <= 0 {
		t.Fatal("expected a positive delay")
	}

	if d3 <= d1 {
		t.Fatalf("backoffDelay(3) = %v, want more than backoffDelay(1) = %v", d3, d1)
	}

	if d3 > backoffCap+backoffCap/5 {
		t.Fatalf("backoffDelay(3) = %v exceeds cap tolerance", d3)
	}
}

func layoutReadyMarker(vxHome, runtimeName, version string) string {
	return filepath.Join(vxHome, "store", runtimeName, version+".ready")
}
