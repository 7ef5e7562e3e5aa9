package metadata

import (
	"fmt"

	"mediasort/internal/config"
	"mediasort/internal/media"
)

// NativeExtractor routes images to an EXIF extractor and videos to ffprobe.
type NativeExtractor struct {
	images media.MetadataExtractor
	videos media.MetadataExtractor
}

func NewNativeExtractor(images, videos media.MetadataExtractor) *NativeExtractor {
	return &NativeExtractor{images: images, videos: videos}
}

func (e *NativeExtractor) Extract(path string, t media.MediaType) (media.Metadata, error) {
	switch t {
	case media.TypeImage:
		return e.images.Extract(path, t)
	case media.TypeVideo:
		return e.videos.Extract(path, t)
	default:
		return media.Metadata{}, nil
	}
}

var _ media.MetadataExtractor = (*NativeExtractor)(nil)

// NewExtractorFromConfig creates a MetadataExtractor based on the metadata config type.
func NewExtractorFromConfig(cfg config.MetadataConfig) (media.MetadataExtractor, error) {
	switch cfg.Type {
	case "native", "":
		return NewNativeExtractor(
			NewExifExtractor(),
			NewFFProbeExtractor(cfg.FFProbePath, cfg.FFProbeTimeout.Duration),
		), nil
	case "none":
		return media.NoMetadata{}, nil
	default:
		return nil, fmt.Errorf("unknown metadata type: %s", cfg.Type)
	}
}
