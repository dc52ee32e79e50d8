package labelexport

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BuildPRCBundle zips downloadedDocs into a zip archive at destZipPath
// containing a single top-level PRC/ directory, per spec.md §4.G.
func BuildPRCBundle(downloadedDocs []string, destZipPath string) error {
	out, err := os.Create(destZipPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destZipPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	defer zw.Close()

	for _, docPath := range downloadedDocs {
		if docPath == "" {
			continue
		}
		if err := addFileToZip(zw, docPath, filepath.Join("PRC", filepath.Base(docPath))); err != nil {
			return fmt.Errorf("add %s to PRC bundle: %w", docPath, err)
		}
	}
	return nil
}

func addFileToZip(zw *zip.Writer, srcPath, archiveName string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.Create(archiveName)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
