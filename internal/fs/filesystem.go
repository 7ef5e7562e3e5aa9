package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mediasort/internal/media"
)

// IgnoreFileName is the per-root file listing extra ignore patterns.
const IgnoreFileName = ".mediasortignore"

// tempPattern names the temporary files written by Copy.
const tempPattern = ".mediasort-*.tmp"

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It performs actual filesystem operations using the os package.
type OSFilesystemManager struct {
	ignore []string
}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
// ignore holds patterns applied to every walk in addition to each root's ignore file.
func NewOSFilesystemManager(ignore []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: ignore}
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(rawPath string) (string, error) {
	if rawPath != "~" && !strings.HasPrefix(rawPath, "~/") {
		return rawPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding ~: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(rawPath, "~")), nil
}

// Abs expands a leading "~" and makes rawPath absolute. The path need not exist.
func (m *OSFilesystemManager) Abs(rawPath string) (string, error) {
	expanded, err := expandHome(rawPath)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	return absPath, nil
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*media.Path, error) {
	absPath, err := m.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return media.NewPath(absPath, info.IsDir(), info), nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Exists reports whether anything exists at path. Dangling symlinks count.
func (m *OSFilesystemManager) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

// MkdirAll creates dir and any missing parents.
func (m *OSFilesystemManager) MkdirAll(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

// Walk visits regular files under root in lexical order. Patterns from the
// manager and from root's ignore file are matched against paths relative to
// root; an ignored directory is skipped entirely. Unreadable entries are
// reported to fn and the walk goes on.
func (m *OSFilesystemManager) Walk(root string, fn media.WalkFunc) error {
	filePatterns, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return err
	}
	matcher := NewIgnoreMatcher(append(append([]string{}, m.ignore...), filePatterns...))

	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			if cbErr := fn(p, err); cbErr != nil {
				return cbErr
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", p, err)
		}
		if matcher.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		return fn(p, nil)
	})
}

// Copy copies src to dst through a temporary file in dst's directory that
// is renamed into place, so dst never holds partial content. It fails if
// dst already exists.
func (m *OSFilesystemManager) Copy(src, dst string) (err error) {
	if exists, err := m.Exists(dst); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("%w: %s", media.ErrDestinationExists, dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), tempPattern)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Chtimes(tmpPath, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("setting modification time: %w", err)
	}

	// Link fails on an existing dst, unlike rename.
	if err = os.Link(tmpPath, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", media.ErrDestinationExists, dst)
		}
		if err = os.Rename(tmpPath, dst); err != nil {
			return fmt.Errorf("renaming temp file: %w", err)
		}
		return nil
	}
	os.Remove(tmpPath)
	return nil
}

// Compile-time checks
var (
	_ media.FilesystemManager = (*OSFilesystemManager)(nil)
	_ media.Copier            = (*OSFilesystemManager)(nil)
)
