package extract

import (
	"archive/tar"
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"

	kgzip "github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

func extractTarGz(archivePath, destDir, stripPrefix string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("extract: open %s: %w", archivePath, err)
	}
	defer f.Close()

	gz, err := kgzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("extract: gzip header %s: %w", archivePath, err)
	}
	defer gz.Close()

	return extractTarStream(gz, destDir, stripPrefix)
}

func extractTarXz(archivePath, destDir, stripPrefix string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("extract: open %s: %w", archivePath, err)
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("extract: xz header %s: %w", archivePath, err)
	}

	return extractTarStream(xr, destDir, stripPrefix)
}

// extractTarBz2 uses the standard library's compress/bzip2, which is
// decode-only; no example repo in the pack imports a third-party bzip2
// decoder, and the teacher's own cmd/xz.go likewise leans on stdlib
// compression packages where it can (see DESIGN.md).
func extractTarBz2(archivePath, destDir, stripPrefix string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("extract: open %s: %w", archivePath, err)
	}
	defer f.Close()

	return extractTarStream(bzip2.NewReader(f), destDir, stripPrefix)
}

func extractTarStream(r io.Reader, destDir, stripPrefix string) error {
	tr := tar.NewReader(r)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}

		if err != nil {
			return fmt.Errorf("extract: tar entry: %w", err)
		}

		target, ok := safeJoin(destDir, stripPrefix, hdr.Name)
		if !ok {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}

			if err := writeTarFile(tr, target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			// Store entries only ever reference files beneath their own
			// directory; vx does not follow archive-declared symlinks.
			continue
		}
	}
}

func writeTarFile(r io.Reader, target string, mode os.FileMode) error {
	if mode == 0 {
		mode = 0o644
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("extract: create %s: %w", target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("extract: write %s: %w", target, err)
	}

	return nil
}
