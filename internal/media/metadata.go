package media

// Metadata is the structured metadata extracted from a media file.
// Values are JSON-like: strings, float64, bool, []byte, nested maps and slices.
type Metadata map[string]any

// MetadataExtractor extracts structured metadata from a file.
// Implementations return an empty Metadata, not an error, when the file
// simply carries no metadata or is zero-length.
type MetadataExtractor interface {
	Extract(path string, t MediaType) (Metadata, error)
}

// MetadataLoader is what a Descriptor uses to fetch its metadata lazily.
// Loading never fails: failures degrade to empty metadata.
type MetadataLoader interface {
	LoadMetadata(path string, t MediaType) Metadata
}

// NoMetadata is a MetadataExtractor that never finds anything.
type NoMetadata struct{}

func (NoMetadata) Extract(string, MediaType) (Metadata, error) { return Metadata{}, nil }
