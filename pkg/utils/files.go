package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MakeDir creates a directory with all parent directories
func MakeDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// MoveFile moves or renames a file, replacing dst if it exists
func MoveFile(src, dst string) error {
	if src == dst {
		return nil
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace %s: %w", dst, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move file from %s to %s: %w", src, dst, err)
	}
	return nil
}

// FilesWithBase lists every file named "<base>.<anything>".
func FilesWithBase(base string) ([]string, error) {
	pattern := escapeGlob(base) + ".*"
	return filepath.Glob(pattern)
}

// FindWithExtensions returns the first existing "<base>.<ext>" in preference order.
func FindWithExtensions(base string, exts []string) string {
	for _, ext := range exts {
		candidate := base + "." + strings.TrimPrefix(ext, ".")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// FileSize returns the size of path in bytes.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// RemoveFiles deletes every path, ignoring ones already gone, and joins the rest of the failures.
func RemoveFiles(paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}

var unsafeFilename = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_",
)

// SafeFilename replaces characters that are not allowed in file names.
func SafeFilename(name string) string {
	name = strings.TrimSpace(unsafeFilename.Replace(name))
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
