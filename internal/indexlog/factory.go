package indexlog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"mediasort/internal/config"
	"mediasort/internal/media"
)

// Log is an IndexLog that can also copy out its content for snapshots.
type Log interface {
	media.IndexLog
	Snapshot(w io.Writer) (int64, error)
}

// Name returns the log name for an index over roots: kind, a dash, and a
// short hash of the sorted absolute roots. The same set of roots always maps
// to the same log.
func Name(kind string, roots []string) string {
	sorted := slices.Clone(roots)
	slices.Sort(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return kind + "-" + hex.EncodeToString(sum[:])[:12]
}

// NewLogFromConfig creates the log named name based on the index config type.
func NewLogFromConfig(cfg config.IndexConfig, name string) (Log, error) {
	switch cfg.Type {
	case "file", "":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("dir required for file index")
		}
		return OpenFileLog(filepath.Join(cfg.Dir, name+".jsonl"))
	case "memory":
		return NewMemoryLog(), nil
	default:
		return nil, fmt.Errorf("unknown index type: %s", cfg.Type)
	}
}
