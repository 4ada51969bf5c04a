// Package extract detects archive formats by magic bytes and unpacks them
// into a destination directory, implementing spec.md §4.4 step 7's
// "Archive" materialization.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format tags a detected archive container.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTarGz
	FormatTarXz
	FormatTarBz2
	FormatTarPlain
)

var magicZip = []byte{'P', 'K', 0x03, 0x04}
var magicGzip = []byte{0x1f, 0x8b}
var magicXz = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
var magicBz2 = []byte{'B', 'Z', 'h'}

// Detect sniffs path's leading bytes to classify its archive format,
// falling back to its extension when the magic bytes are ambiguous (a
// plain, uncompressed tar has no distinctive magic of its own).
func Detect(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("extract: open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 262)

	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FormatUnknown, fmt.Errorf("extract: read %s: %w", path, err)
	}

	head = head[:n]

	switch {
	case bytes.HasPrefix(head, magicZip):
		return FormatZip, nil
	case bytes.HasPrefix(head, magicGzip):
		return FormatTarGz, nil
	case bytes.HasPrefix(head, magicXz):
		return FormatTarXz, nil
	case bytes.HasPrefix(head, magicBz2):
		return FormatTarBz2, nil
	case len(head) >= 262 && bytes.Equal(head[257:262], []byte("ustar")):
		return FormatTarPlain, nil
	}

	switch {
	case strings.HasSuffix(path, ".zip"):
		return FormatZip, nil
	case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
		return FormatTarGz, nil
	case strings.HasSuffix(path, ".tar.xz"):
		return FormatTarXz, nil
	case strings.HasSuffix(path, ".tar.bz2"):
		return FormatTarBz2, nil
	case strings.HasSuffix(path, ".tar"):
		return FormatTarPlain, nil
	}

	return FormatUnknown, fmt.Errorf("extract: %s: unrecognized archive format", path)
}

// Extract unpacks archivePath into destDir, stripping stripPrefix (a
// leading path component present in every archive member, e.g.
// "ripgrep-14.1.0-x86_64-unknown-linux-gnu/") per spec.md §4.4 step 7.
// Entries whose stripped path escapes destDir are rejected (zip-slip).
func Extract(archivePath, destDir, stripPrefix string) error {
	format, err := Detect(archivePath)
	if err != nil {
		return err
	}

	switch format {
	case FormatZip:
		return extractZip(archivePath, destDir, stripPrefix)
	case FormatTarGz:
		return extractTarGz(archivePath, destDir, stripPrefix)
	case FormatTarXz:
		return extractTarXz(archivePath, destDir, stripPrefix)
	case FormatTarBz2:
		return extractTarBz2(archivePath, destDir, stripPrefix)
	case FormatTarPlain:
		f, err := os.Open(archivePath)
		if err != nil {
			return fmt.Errorf("extract: open %s: %w", archivePath, err)
		}
		defer f.Close()

		return extractTarStream(f, destDir, stripPrefix)
	default:
		return fmt.Errorf("extract: %s: unsupported format", archivePath)
	}
}

// safeJoin joins destDir and member, rejecting any result that escapes
// destDir after stripping stripPrefix.
func safeJoin(destDir, stripPrefix, member string) (string, bool) {
	rel := strings.TrimPrefix(member, stripPrefix)
	rel = strings.TrimPrefix(rel, "/")

	if rel == "" {
		return "", false
	}

	joined := filepath.Join(destDir, rel)

	if !strings.HasPrefix(joined, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", false
	}

	return joined, true
}
