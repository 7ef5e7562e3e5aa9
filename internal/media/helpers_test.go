package media_test

import (
	"strings"

	"mediasort/internal/media"
)

// staticLoader serves the same metadata for every path and counts loads.
type staticLoader struct {
	meta  media.Metadata
	loads int
}

func (l *staticLoader) LoadMetadata(string, media.MediaType) media.Metadata {
	l.loads++
	return l.meta
}

func fp(c byte) string {
	return strings.Repeat(string(c), 64)
}

func image(path, fingerprint string, meta media.Metadata) *media.Descriptor {
	return media.NewDescriptor(path, 100, fingerprint, media.TypeImage, &staticLoader{meta: meta})
}

func exif(value string) media.Metadata {
	return media.Metadata{"DateTimeOriginal": value}
}
