package metadata

import (
	"testing"

	"mediasort/internal/media"
)

func TestExtensionClassifier_Classify(t *testing.T) {
	tests := []struct {
		path string
		want media.MediaType
	}{
		{"/photos/IMG_0001.jpg", media.TypeImage},
		{"/photos/IMG_0001.JPG", media.TypeImage},
		{"/photos/scan.png", media.TypeImage},
		{"/photos/IMG_0002.HEIC", media.TypeImage},
		{"/photos/DSC_0003.NEF", media.TypeImage},
		{"/photos/raw.dng", media.TypeImage},
		{"/videos/clip.mp4", media.TypeVideo},
		{"/videos/clip.MOV", media.TypeVideo},
		{"/videos/00001.MTS", media.TypeVideo},
		{"/docs/notes.txt", media.TypeOther},
		{"/docs/README", media.TypeOther},
		{"/photos/.DS_Store", media.TypeOther},
	}

	c := NewExtensionClassifier()
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := c.Classify(tt.path); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
