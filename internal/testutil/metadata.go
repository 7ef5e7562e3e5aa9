package testutil

import (
	"sync"

	"mediasort/internal/media"
	"mediasort/internal/metadata"
)

// StubExtractor returns canned metadata per path and counts extractions.
type StubExtractor struct {
	mu    sync.Mutex
	meta  map[string]media.Metadata
	errs  map[string]error
	calls map[string]int
}

func NewStubExtractor() *StubExtractor {
	return &StubExtractor{
		meta:  make(map[string]media.Metadata),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

// Set registers the metadata returned for path.
func (s *StubExtractor) Set(path string, m media.Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[path] = m
}

// Fail makes extraction of path fail with err.
func (s *StubExtractor) Fail(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[path] = err
}

func (s *StubExtractor) Extract(path string, _ media.MediaType) (media.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[path]++
	if err, ok := s.errs[path]; ok {
		return nil, err
	}
	if m, ok := s.meta[path]; ok {
		return m, nil
	}
	return media.Metadata{}, nil
}

// Calls returns how often path was extracted.
func (s *StubExtractor) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls returns the number of extractions across all paths.
func (s *StubExtractor) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

var _ media.MetadataExtractor = (*StubExtractor)(nil)

// ExifTime returns image metadata carrying the given EXIF DateTimeOriginal.
func ExifTime(value string) media.Metadata {
	return media.Metadata{"DateTimeOriginal": value}
}

// VideoCreationTime returns ffprobe-shaped metadata with the given creation_time.
func VideoCreationTime(value string) media.Metadata {
	return media.Metadata{"format": map[string]any{"tags": map[string]any{"creation_time": value}}}
}

// NewTestBuilder creates a Builder over fsmgr with the extension classifier.
func NewTestBuilder(fsmgr media.FilesystemManager, extractor media.MetadataExtractor) *media.Builder {
	return media.NewBuilder(fsmgr, metadata.NewExtensionClassifier(), extractor, nil)
}
