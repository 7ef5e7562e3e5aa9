package media

import "fmt"

// MediaType is the coarse content classification of a file.
type MediaType string

const (
	TypeImage MediaType = "image"
	TypeVideo MediaType = "video"
	TypeOther MediaType = "other"
)

// ParseMediaType converts a stored media type string back into a MediaType.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(s) {
	case TypeImage, TypeVideo, TypeOther:
		return MediaType(s), nil
	default:
		return "", fmt.Errorf("unknown media type: %q", s)
	}
}

// IsMedia reports whether t is an image or a video.
func (t MediaType) IsMedia() bool {
	return t == TypeImage || t == TypeVideo
}

// TypeClassifier classifies a path into a MediaType from its declared content type.
type TypeClassifier interface {
	Classify(path string) MediaType
}
