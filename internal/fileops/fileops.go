// Package fileops holds the few file system primitives reconciliation needs.
package fileops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrTargetExists is returned by Copy when overwrite is false and the target exists.
var ErrTargetExists = errors.New("target already exists")

// link places a finished copy without replacing an existing target.
var link = os.Link

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Copy copies src to dst, creating the target directory. Without overwrite an
// existing dst is never touched. The data is written to a temp file in the
// target directory and renamed into place, so a failed copy leaves no partial file.
func Copy(src, dst string, overwrite bool) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}
	if !overwrite && Exists(dst) {
		return fmt.Errorf("%w: %s", ErrTargetExists, dst)
	}

	tmp, err := os.CreateTemp(dir, ".copy-*"+filepath.Ext(dst))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("copy data: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	_ = os.Chtimes(tmpName, info.ModTime(), info.ModTime())
	_ = os.Chmod(tmpName, info.Mode().Perm())

	if overwrite {
		if err := os.Rename(tmpName, dst); err != nil {
			cleanup()
			return fmt.Errorf("place copy: %w", err)
		}
		return nil
	}

	defer cleanup()
	// Link fails if dst appeared meanwhile, unlike Rename
	err = link(tmpName, dst)
	if err == nil {
		return nil
	}
	if os.IsExist(err) {
		return fmt.Errorf("%w: %s", ErrTargetExists, dst)
	}
	// exFAT, FAT32 and many network shares have no hard links
	if err := copyExclusive(tmpName, dst); err != nil {
		return err
	}
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return nil
}

// copyExclusive copies src to a new file dst and fails if dst exists.
func copyExclusive(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat temp file: %w", err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrTargetExists, dst)
		}
		return fmt.Errorf("place copy: %w", err)
	}

	_, err = io.Copy(out, in)
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("place copy: %w", err)
	}
	return nil
}

// Delete removes a file.
func Delete(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}
