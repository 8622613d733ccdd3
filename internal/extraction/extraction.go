package extraction

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
	"github.com/pkg/errors"
)

// ExtractArchive extracts the contents of an archive (zip, rar, 7z, tar, ...)
// to a temporary directory and returns the extracted file paths and the directory.
func ExtractArchive(ctx context.Context, archivePath string) ([]string, string, error) {
	destDir, err := os.MkdirTemp("", "extract-*")
	if err != nil {
		return nil, "", err
	}

	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		os.RemoveAll(destDir)
		return nil, "", err
	}

	var files []string
	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		destPath := filepath.Join(destDir, filepath.FromSlash(path))
		if !strings.HasPrefix(destPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes extraction directory", path)
		}
		if err := copyEntry(fsys, path, destPath); err != nil {
			return err
		}
		files = append(files, destPath)
		return nil
	})
	if err != nil {
		os.RemoveAll(destDir)
		return nil, "", err
	}

	return files, destDir, nil
}

func copyEntry(fsys fs.FS, path, destPath string) error {
	reader, err := fsys.Open(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	outFile, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	_, err = io.Copy(outFile, reader)
	return err
}

// IsArchive checks if a file is an archive that should be extracted
func IsArchive(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip", ".rar", ".7z", ".tar", ".gz", ".tgz":
		return true
	}
	return false
}

// ShouldIgnore checks if a file should be ignored (system files, hidden files, etc.)
func ShouldIgnore(filename string) bool {
	// macOS resource forks and other hidden files
	if strings.HasPrefix(filename, ".") {
		return true
	}
	if strings.ToLower(filename) == "thumbs.db" {
		return true
	}
	return filename == "" || strings.HasSuffix(filename, "/")
}

// FindDocument extracts archivePath and returns the single file accepted by
// supports. When the archive holds no such file, the first nested archive is
// searched one level deep. cleanup removes all extracted files and must be
// called once the document has been read.
func FindDocument(ctx context.Context, archivePath string, supports func(string) bool) (string, func(), error) {
	var dirs []string
	cleanup := func() {
		for _, d := range dirs {
			os.RemoveAll(d)
		}
	}

	files, dir, err := ExtractArchive(ctx, archivePath)
	if err != nil {
		return "", cleanup, errors.Wrap(err, "failed to extract archive")
	}
	dirs = append(dirs, dir)

	doc, nested, seen, err := pick(files, supports)
	if err != nil {
		return "", cleanup, err
	}
	if doc == "" && len(nested) > 0 {
		files, dir, err := ExtractArchive(ctx, nested[0])
		if err != nil {
			return "", cleanup, errors.Wrapf(err, "failed to extract nested archive %s", filepath.Base(nested[0]))
		}
		dirs = append(dirs, dir)
		doc, _, _, err = pick(files, supports)
		if err != nil {
			return "", cleanup, err
		}
	}
	if doc == "" {
		return "", cleanup, fmt.Errorf("no document found in archive. Found files: %v", seen)
	}
	return doc, cleanup, nil
}

func pick(files []string, supports func(string) bool) (doc string, nested, seen []string, err error) {
	for _, path := range files {
		name := filepath.Base(path)
		if ShouldIgnore(name) {
			continue
		}
		seen = append(seen, name)
		switch {
		case supports(path):
			if doc != "" {
				return "", nil, seen, fmt.Errorf("multiple documents found in archive: %s, %s", filepath.Base(doc), name)
			}
			doc = path
		case IsArchive(name):
			nested = append(nested, path)
		}
	}
	return doc, nested, seen, nil
}
