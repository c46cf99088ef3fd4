package download

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Unzip extracts the snapshot archive into destDir. Entries that would
// escape the destination are rejected.
func Unzip(src, destDir string) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", src, err)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		if err := extractEntry(entry, destDir); err != nil {
			return fmt.Errorf("extract %s: %w", entry.Name, err)
		}
	}
	return nil
}

func extractEntry(entry *zip.File, destDir string) error {
	dest := filepath.Join(destDir, entry.Name)
	if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return fmt.Errorf("entry path escapes destination directory")
	}

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	in, err := entry.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
