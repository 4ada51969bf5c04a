package main

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestCheckExecutableRejectsMissingPath(t *testing.T) {
	if err := checkExecutable(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatal("expected an error for a missing target")
	}
}

func TestCheckExecutableRejectsDirectory(t *testing.T) {
	if err := checkExecutable(t.TempDir()); err == nil {
		t.Fatal("expected an error for a directory target")
	}
}

func TestCheckExecutableRejectsNonExecutableFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable-bit check only applies on unix")
	}

	path := filepath.Join(t.TempDir(), "not-executable")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := checkExecutable(path); err == nil {
		t.Fatal("expected an error for a non-executable file")
	}
}

func TestCheckExecutableAcceptsExecutableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := checkExecutable(path); err != nil {
		t.Fatalf("checkExecutable: %v", err)
	}
}
