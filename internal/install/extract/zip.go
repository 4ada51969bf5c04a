package extract

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	kflate "github.com/klauspost/compress/flate"
)

func init() {
	zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return kflate.NewReader(r)
	})
}

func extractZip(archivePath, destDir, stripPrefix string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("extract: open zip %s: %w", archivePath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		target, ok := safeJoin(destDir, stripPrefix, f.Name)
		if !ok {
			continue
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}

			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		if err := copyZipEntry(f, target); err != nil {
			return err
		}
	}

	return nil
}

func copyZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("extract: open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	mode := f.Mode()
	if mode == 0 {
		mode = 0o644
	}

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("extract: create %s: %w", target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("extract: write %s: %w", target, err)
	}

	return nil
}
