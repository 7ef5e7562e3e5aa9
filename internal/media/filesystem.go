package media

import "io"

// WalkFunc is called for every regular file found by FilesystemManager.Walk,
// in lexicographic order. A non-nil err reports an entry that could not be
// read; path is the offending entry. Returning an error stops the walk.
type WalkFunc func(path string, err error) error

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	// It expands a leading "~", resolves the path to an absolute path, stats it,
	// and validates it's a regular file or directory.
	Resolve(rawPath string) (*Path, error)

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Exists reports whether anything exists at path.
	Exists(path string) (bool, error)

	// Walk visits every regular file under root in lexicographic order,
	// skipping ignored entries.
	Walk(root string, fn WalkFunc) error

	// MkdirAll creates dir and any missing parents.
	MkdirAll(dir string) error
}

// Copier copies file content from src to a new file at dst.
// Implementations must never overwrite an existing dst.
type Copier interface {
	Copy(src, dst string) error
}
