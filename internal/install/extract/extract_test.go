package extract

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}

		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)

	for name, content := range files {
		hdr := &tar.Header{Name: name, Size: int64(len(content)), Mode: 0o644}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}

		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}

	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDetectZip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rg.zip")
	writeZip(t, path, map[string]string{"rg-1.0/rg": "binary"})

	format, err := Detect(path)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if format != FormatZip {
		t.Fatalf("Detect() = %v, want FormatZip", format)
	}
}

func TestDetectTarGz(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rg.tar.gz")
	writeTarGz(t, path, map[string]string{"rg-1.0/rg": "binary"})

	format, err := Detect(path)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if format != FormatTarGz {
		t.Fatalf("Detect() = %v, want FormatTarGz", format)
	}
}

func TestExtractZipStripsPrefix(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "rg.zip")
	writeZip(t, archive, map[string]string{
		"ripgrep-14.1.0-x86_64-unknown-linux-gnu/rg":        "binary-content",
		"ripgrep-14.1.0-x86_64-unknown-linux-gnu/README.md": "docs",
	})

	dest := filepath.Join(dir, "out")
	if err := Extract(archive, dest, "ripgrep-14.1.0-x86_64-unknown-linux-gnu"); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dest, "rg"))
	if err != nil {
		t.Fatalf("expected extracted rg binary: %v", err)
	}

	if string(content) != "binary-content" {
		t.Fatalf("content = %q", content)
	}
}

func TestExtractTarGzStripsPrefix(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "node.tar.gz")
	writeTarGz(t, archive, map[string]string{
		"node-v18.0.0-linux-x64/bin/node": "elf-binary",
	})

	dest := filepath.Join(dir, "out")
	if err := Extract(archive, dest, "node-v18.0.0-linux-x64"); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dest, "bin", "node"))
	if err != nil {
		t.Fatalf("expected extracted node binary: %v", err)
	}

	if string(content) != "elf-binary" {
		t.Fatalf("content = %q", content)
	}
}

func TestSafeJoinRejectsEscape(t *testing.T) {
	dest := "/tmp/vx-dest"

	if _, ok := safeJoin(dest, "", "../../etc/passwd"); ok {
		t.Fatal("safeJoin should reject a path escaping destDir")
	}

	if _, ok := safeJoin(dest, "prefix", "prefix/../../escape"); ok {
		t.Fatal("safeJoin should reject a stripped path that still escapes destDir")
	}
}

func TestDetectUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mystery.bin")

	if err := os.WriteFile(path, bytes.Repeat([]byte{0x00}, 16), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Detect(path); err == nil {
		t.Fatal("expected an error for an unrecognized format")
	}
}
