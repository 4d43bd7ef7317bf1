// Package filex holds small file helpers shared by the client data
// directory setup and the go-billy backed asset stores.
package filex

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// EnsureSubdDir creates base/dirName (base defaults to the working
// directory) and returns its absolute path.
func EnsureSubdDir(base, dirName string) (string, error) {
	if base == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getwd: %w", err)
		}
		base = cwd
	}

	dir, err := filepath.Abs(filepath.Join(base, dirName))
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dirName, err)
	}

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}

// Exists reports whether name is a regular file in fs.
func Exists(fs billy.Basic, name string) (bool, error) {
	fi, err := fs.Stat(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("billy: stat %q: %w", name, err)
	}
	return !fi.IsDir(), nil
}

// SamePath reports whether a and b name the same file once cleaned.
func SamePath(a, b string) bool {
	return path.Clean(filepath.ToSlash(a)) == path.Clean(filepath.ToSlash(b))
}

// WriteFileAtomic writes data to a temp file next to name and renames it
// into place, so readers never observe a half written file.
func WriteFileAtomic(fs billy.Filesystem, name string, data []byte) error {
	dir := path.Dir(filepath.ToSlash(name))
	if err := fs.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("billy: mkdir %q: %w", dir, err)
	}

	tmp, err := util.TempFile(fs, dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("billy: temp file in %q: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("billy: write %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("billy: close %q: %w", tmpName, err)
	}

	if err := fs.Rename(tmpName, name); err != nil {
		// some filesystems refuse to rename over an existing file
		_ = fs.Remove(name)
		if err := fs.Rename(tmpName, name); err != nil {
			_ = fs.Remove(tmpName)
			return fmt.Errorf("billy: rename %q: %w", name, err)
		}
	}
	return nil
}

// CopyFile copies src to dst within fs. It is a no-op when both resolve
// to the same location.
func CopyFile(fs billy.Filesystem, src, dst string) (bool, error) {
	if SamePath(src, dst) {
		return false, nil
	}
	data, err := util.ReadFile(fs, src)
	if err != nil {
		return false, fmt.Errorf("billy: read %q: %w", src, err)
	}
	if err := WriteFileAtomic(fs, dst, data); err != nil {
		return false, err
	}
	return true, nil
}
