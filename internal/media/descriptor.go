package media

import (
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"time"
)

// dateLikeName matches directory names made only of digits and date separators.
var dateLikeName = regexp.MustCompile(`^[0-9\-._ ]+$`)

// Descriptor is the content description of one file. Identity is the
// fingerprint; Path is where this copy of the content lives.
//
// A Descriptor is immutable once built. Rehome produces a copy at a new path.
type Descriptor struct {
	Path        string
	Size        int64
	Fingerprint string
	Type        MediaType

	loader   MetadataLoader
	metaOnce sync.Once
	metaSet  atomic.Bool
	meta     Metadata

	// placedAt is the record month of the source a copy was made from.
	placedAt  time.Time
	hasPlaced bool
}

// NewDescriptor creates a Descriptor whose metadata is fetched from loader
// on first use. loader may be nil, in which case metadata is always empty.
func NewDescriptor(path string, size int64, fingerprint string, t MediaType, loader MetadataLoader) *Descriptor {
	return &Descriptor{
		Path:        path,
		Size:        size,
		Fingerprint: fingerprint,
		Type:        t,
		loader:      loader,
	}
}

// Name returns the file name of the descriptor's path.
func (d *Descriptor) Name() string {
	return filepath.Base(d.Path)
}

// Metadata returns the file's metadata, fetching it at most once.
// Zero-length files and non-media files have no metadata.
func (d *Descriptor) Metadata() Metadata {
	d.metaOnce.Do(func() {
		var m Metadata
		if d.Size > 0 && d.Type.IsMedia() && d.loader != nil {
			m = d.loader.LoadMetadata(d.Path, d.Type)
		}
		if m == nil {
			m = Metadata{}
		}
		d.meta = m
		d.metaSet.Store(true)
	})
	return d.meta
}

// loadedMetadata returns the metadata only if it has already been fetched.
func (d *Descriptor) loadedMetadata() (Metadata, bool) {
	if !d.metaSet.Load() {
		return nil, false
	}
	return d.meta, true
}

// presetMetadata marks m as the descriptor's metadata without calling the loader.
func (d *Descriptor) presetMetadata(m Metadata) {
	d.metaOnce.Do(func() {
		if m == nil {
			m = Metadata{}
		}
		if d.Size == 0 {
			m = Metadata{}
		}
		d.meta = m
		d.metaSet.Store(true)
	})
}

// Album returns the name of the parent directory, unless that name looks
// like a date or a number, in which case there is no album.
func (d *Descriptor) Album() (string, bool) {
	album := filepath.Base(filepath.Dir(d.Path))
	if album == "." || album == string(filepath.Separator) || dateLikeName.MatchString(album) {
		return "", false
	}
	return album, true
}

// Rehome returns a descriptor for the same content living at path.
// Metadata that was already fetched is carried over, and so is a placed time.
func (d *Descriptor) Rehome(path string) *Descriptor {
	out := NewDescriptor(path, d.Size, d.Fingerprint, d.Type, d.loader)
	if m, ok := d.loadedMetadata(); ok {
		out.presetMetadata(m)
	}
	out.placedAt, out.hasPlaced = d.placedAt, d.hasPlaced
	return out
}

// Place returns a descriptor for a copy of d at path whose record time is
// pinned to the month of t. Every record time policy returns the pinned
// month, so the copy stays the same item as d wherever the path puts it.
func (d *Descriptor) Place(path string, t time.Time) *Descriptor {
	out := d.Rehome(path)
	out.pin(t)
	return out
}

// Placed returns the pinned record month, if any.
func (d *Descriptor) Placed() (time.Time, bool) {
	return d.placedAt, d.hasPlaced
}

func (d *Descriptor) pin(t time.Time) {
	d.placedAt = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	d.hasPlaced = true
}

func (d *Descriptor) String() string {
	return "Descriptor(" + d.Path + ")"
}
