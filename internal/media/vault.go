package media

import "io"

// Vault provides an interface for snapshot storage backends.
// All operations use io.Reader/io.Writer for streaming so that large index
// logs are never loaded entirely into memory.
type Vault interface {
	// PutSnapshot stores a named snapshot, replacing any previous one.
	// size is the number of bytes that will be read from r.
	// version is stored alongside the snapshot for consistency checks.
	PutSnapshot(name string, r io.Reader, size int64, version int64) error

	// GetSnapshot retrieves a named snapshot and writes it to w.
	GetSnapshot(name string, w io.Writer) error

	// GetSnapshotVersion returns the stored version of a named snapshot.
	// Returns 0 if no snapshot has been stored under this name.
	GetSnapshotVersion(name string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
