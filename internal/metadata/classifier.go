package metadata

import (
	"mime"
	"path/filepath"
	"strings"

	"mediasort/internal/media"
)

// cameraTypes covers camera formats the system MIME tables often lack.
var cameraTypes = map[string]media.MediaType{
	".heic": media.TypeImage,
	".heif": media.TypeImage,
	".hif":  media.TypeImage,
	".dng":  media.TypeImage,
	".arw":  media.TypeImage,
	".cr2":  media.TypeImage,
	".cr3":  media.TypeImage,
	".nef":  media.TypeImage,
	".raf":  media.TypeImage,
	".orf":  media.TypeImage,
	".rw2":  media.TypeImage,
	".mp4":  media.TypeVideo,
	".mov":  media.TypeVideo,
	".m4v":  media.TypeVideo,
	".avi":  media.TypeVideo,
	".mkv":  media.TypeVideo,
	".mts":  media.TypeVideo,
	".m2ts": media.TypeVideo,
	".3gp":  media.TypeVideo,
	".wmv":  media.TypeVideo,
}

// ExtensionClassifier classifies files by extension: first the camera
// format table, then the MIME type registered for the extension.
type ExtensionClassifier struct{}

func NewExtensionClassifier() *ExtensionClassifier {
	return &ExtensionClassifier{}
}

func (c *ExtensionClassifier) Classify(path string) media.MediaType {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return media.TypeOther
	}
	if t, ok := cameraTypes[ext]; ok {
		return t
	}
	mimeType := mime.TypeByExtension(ext)
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return media.TypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return media.TypeVideo
	default:
		return media.TypeOther
	}
}

var _ media.TypeClassifier = (*ExtensionClassifier)(nil)
