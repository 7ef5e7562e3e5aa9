package media

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Builder constructs Descriptors from files and from stored records.
// It is also the MetadataLoader every Descriptor it builds fetches through.
type Builder struct {
	fsmgr      FilesystemManager
	classifier TypeClassifier
	extractor  MetadataExtractor
	logger     Logger
}

// NewBuilder creates a Builder with the provided dependencies.
func NewBuilder(fsmgr FilesystemManager, classifier TypeClassifier, extractor MetadataExtractor, logger Logger) *Builder {
	if extractor == nil {
		extractor = NoMetadata{}
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Builder{
		fsmgr:      fsmgr,
		classifier: classifier,
		extractor:  extractor,
		logger:     logger,
	}
}

// Build reads the file at path and returns its descriptor.
// The full content is streamed through SHA-256; metadata is not fetched yet.
func (b *Builder) Build(path string) (*Descriptor, error) {
	f, err := b.fsmgr.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	t := b.classifier.Classify(path)
	return NewDescriptor(path, size, hex.EncodeToString(h.Sum(nil)), t, b), nil
}

// LoadMetadata fetches metadata through the extractor.
// Extraction failures are logged and yield empty metadata.
func (b *Builder) LoadMetadata(path string, t MediaType) Metadata {
	m, err := b.extractor.Extract(path, t)
	if err != nil {
		b.logger.Warn("metadata extraction failed", "path", path, "type", string(t), "error", err)
		return Metadata{}
	}
	if m == nil {
		return Metadata{}
	}
	return m
}

// FromRecord rebuilds a descriptor from a stored record.
// Metadata stored in the record is used as-is; otherwise it is fetched lazily.
func (b *Builder) FromRecord(rec *Record) *Descriptor {
	d := NewDescriptor(rec.Path, rec.Size, rec.Fingerprint, rec.Type, b)
	if rec.Metadata != nil {
		d.presetMetadata(rec.Metadata)
	}
	if rec.Placed != nil {
		d.pin(*rec.Placed)
	}
	return d
}

var _ MetadataLoader = (*Builder)(nil)
