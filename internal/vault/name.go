package vault

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrSnapshotNotFound is wrapped by GetSnapshot when no snapshot has the name.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// versionSuffix names the companion object holding a snapshot's version.
const versionSuffix = ".version"

// validateName accepts slash-separated relative names such as "host-1/runs.db".
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("snapshot name is empty")
	}
	if strings.HasPrefix(name, "/") || path.Clean(name) != name || strings.HasPrefix(name, "../") || name == ".." {
		return fmt.Errorf("invalid snapshot name: %q", name)
	}
	if strings.HasSuffix(name, versionSuffix) {
		return fmt.Errorf("snapshot name must not end in %s: %q", versionSuffix, name)
	}
	return nil
}
