package media

import (
	"fmt"

	"github.com/sourcegraph/conc/stream"
)

// IndexLog is the append-only storage behind an Index.
type IndexLog interface {
	// Append durably stores one encoded record. line has no trailing newline.
	Append(line []byte) error
	// Replay calls fn with every stored record in append order.
	Replay(fn func(line []byte) error) error
	// Close releases the log.
	Close() error
}

// Index is the persistent, incrementally updated set of descriptors for
// one or more directory trees.
type Index struct {
	log     IndexLog
	builder *Builder
	logger  Logger
	workers int

	items  []*Descriptor
	byFP   map[string][]*Descriptor
	byPath map[string][]*Descriptor
}

// NewIndex creates an Index backed by log and rehydrates it from the
// records already stored there. workers bounds the number of files hashed
// in parallel by Update; values below 1 mean 1.
func NewIndex(log IndexLog, builder *Builder, logger Logger, workers int) (*Index, error) {
	if logger == nil {
		logger = NewNopLogger()
	}
	if workers < 1 {
		workers = 1
	}
	idx := &Index{
		log:     log,
		builder: builder,
		logger:  logger,
		workers: workers,
		byFP:    make(map[string][]*Descriptor),
		byPath:  make(map[string][]*Descriptor),
	}
	if err := idx.rehydrate(); err != nil {
		return nil, err
	}
	return idx, nil
}

// rehydrate replays the log into memory without appending anything.
func (idx *Index) rehydrate() error {
	lineNo := 0
	err := idx.log.Replay(func(line []byte) error {
		lineNo++
		rec, err := DecodeRecord(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		d := idx.builder.FromRecord(rec)
		if !idx.contains(d) {
			idx.insert(d)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading index: %w", err)
	}
	return nil
}

// Add stores d in the index. It returns false when a descriptor with the
// same fingerprint and path is already present.
//
// If d cannot be encoded the failure is logged and d is still added in
// memory, so the log and the in-memory index disagree until the next
// rebuild. If the log append fails, d is not added and the error is returned.
func (idx *Index) Add(d *Descriptor) (bool, error) {
	if idx.contains(d) {
		return false, nil
	}
	line, err := EncodeRecord(RecordFor(d))
	if err != nil {
		idx.logger.Warn("index record not persisted", "path", d.Path, "error", err)
		idx.insert(d)
		return true, nil
	}
	if err := idx.log.Append(line); err != nil {
		return false, fmt.Errorf("appending %s to index: %w", d.Path, err)
	}
	idx.insert(d)
	return true, nil
}

func (idx *Index) contains(d *Descriptor) bool {
	for _, e := range idx.byFP[d.Fingerprint] {
		if e.Path == d.Path {
			return true
		}
	}
	return false
}

func (idx *Index) insert(d *Descriptor) {
	idx.items = append(idx.items, d)
	idx.byFP[d.Fingerprint] = append(idx.byFP[d.Fingerprint], d)
	idx.byPath[d.Path] = append(idx.byPath[d.Path], d)
}

// Update walks root and adds every regular file not yet indexed.
// Files are hashed by up to workers goroutines; results are added one at a
// time in walk order. Unreadable files are logged and skipped.
// Returns the number of descriptors added.
func (idx *Index) Update(root string, progress Progress) (int, error) {
	if progress == nil {
		progress = NopProgress{}
	}
	rootPath, err := idx.builder.fsmgr.Resolve(root)
	if err != nil {
		return 0, fmt.Errorf("resolving %s: %w", root, err)
	}
	if !rootPath.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", rootPath.String())
	}

	var pending []string
	err = idx.builder.fsmgr.Walk(rootPath.String(), func(path string, err error) error {
		if err != nil {
			idx.logger.Warn("skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if !idx.HasPath(path) {
			pending = append(pending, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walking %s: %w", rootPath.String(), err)
	}

	progress.Start("indexing "+rootPath.String(), len(pending))
	defer progress.Finish()

	added := 0
	var addErr error
	s := stream.New().WithMaxGoroutines(idx.workers)
	for _, path := range pending {
		s.Go(func() stream.Callback {
			d, err := idx.builder.Build(path)
			if err == nil {
				d.Metadata()
			}
			return func() {
				progress.Advance(path)
				if addErr != nil {
					return
				}
				if err != nil {
					idx.logger.Warn("skipping unreadable file", "path", path, "error", err)
					return
				}
				ok, err := idx.Add(d)
				if err != nil {
					addErr = err
					return
				}
				if ok {
					added++
				}
			}
		})
	}
	s.Wait()

	if addErr != nil {
		return added, addErr
	}
	idx.logger.Debug("index updated", "root", rootPath.String(), "added", added, "total", len(idx.items))
	return added, nil
}

// Items returns every indexed descriptor in insertion order.
func (idx *Index) Items() []*Descriptor {
	out := make([]*Descriptor, len(idx.items))
	copy(out, idx.items)
	return out
}

// Len returns the number of indexed descriptors.
func (idx *Index) Len() int {
	return len(idx.items)
}

// ByFingerprint returns the descriptors with the given fingerprint.
func (idx *Index) ByFingerprint(fingerprint string) []*Descriptor {
	return idx.byFP[fingerprint]
}

// HasPath reports whether any descriptor lives at path.
func (idx *Index) HasPath(path string) bool {
	return len(idx.byPath[path]) > 0
}

// Close closes the underlying log.
func (idx *Index) Close() error {
	return idx.log.Close()
}
