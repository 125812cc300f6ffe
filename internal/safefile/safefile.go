// Package safefile writes report artifacts without following symlinks or
// exposing partially written files.
package safefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const tempPattern = ".secscan-tmp-*"

// ErrExists is returned by WriteFileOnce when the target is already present.
var ErrExists = errors.New("target already exists")

// EnsureDir creates path if needed and rejects it when it is a symlink.
func EnsureDir(path string, perm os.FileMode) (string, error) {
	abs, err := cleanAbsPath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, perm); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	if err := ensureDirPathNoSymlink(abs); err != nil {
		return "", err
	}
	return abs, nil
}

// WriteFileAtomic writes to a temporary file then renames into place,
// replacing any regular file at path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	abs, err := checkTarget(path)
	if err != nil {
		return err
	}
	tmpPath, err := writeTemp(filepath.Dir(abs), data, perm)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpPath, abs); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace target file: %w", err)
	}
	return nil
}

// WriteFileOnce is WriteFileAtomic for write-once artifacts: it fails with
// ErrExists instead of replacing an existing file.
func WriteFileOnce(path string, data []byte, perm os.FileMode) error {
	abs, err := checkTarget(path)
	if err != nil {
		return err
	}
	tmpPath, err := writeTemp(filepath.Dir(abs), data, perm)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmpPath) }()

	if err := os.Link(tmpPath, abs); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", abs, ErrExists)
		}
		return fmt.Errorf("publish target file: %w", err)
	}
	return nil
}

func checkTarget(path string) (string, error) {
	abs, err := cleanAbsPath(path)
	if err != nil {
		return "", err
	}
	if err := ensureDirPathNoSymlink(filepath.Dir(abs)); err != nil {
		return "", err
	}
	if info, err := os.Lstat(abs); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return "", fmt.Errorf("refusing symlinked file target: %s", abs)
		}
		if info.IsDir() {
			return "", fmt.Errorf("refusing directory write target: %s", abs)
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat write target: %w", err)
	}
	return abs, nil
}

func writeTemp(dir string, data []byte, perm os.FileMode) (string, error) {
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return "", fmt.Errorf("create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	fail := func(op string, err error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("%s temporary file: %w", op, err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fail("chmod", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close temporary file: %w", err)
	}
	return tmpPath, nil
}

func cleanAbsPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}

func ensureDirPathNoSymlink(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("stat path: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("refusing symlinked path: %s", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	return nil
}
