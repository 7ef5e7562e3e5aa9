package metadata

import (
	"fmt"
	"os"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"mediasort/internal/media"
)

// ExifExtractor reads the EXIF tags of an image into a flat map keyed by tag name.
type ExifExtractor struct{}

func NewExifExtractor() *ExifExtractor {
	return &ExifExtractor{}
}

// Extract returns empty metadata for images without a readable EXIF block.
func (e *ExifExtractor) Extract(path string, _ media.MediaType) (media.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return media.Metadata{}, nil
	}

	out := media.Metadata{}
	if err := x.Walk(exifWalker{m: out}); err != nil {
		return nil, fmt.Errorf("walking exif of %s: %w", path, err)
	}
	return out, nil
}

type exifWalker struct{ m media.Metadata }

func (w exifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if v, ok := tagValue(tag); ok {
		w.m[string(name)] = v
	}
	return nil
}

// tagValue converts a tag into a JSON-like value: one value for single
// element tags, a slice otherwise.
func tagValue(tag *tiff.Tag) (any, bool) {
	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return nil, false
		}
		return s, true
	case tiff.UndefVal:
		return tag.Val, true
	case tiff.OtherVal:
		return tag.String(), true
	}

	n := int(tag.Count)
	vals := make([]any, 0, n)
	for i := range n {
		v, ok := tagElement(tag, i)
		if !ok {
			return nil, false
		}
		vals = append(vals, v)
	}
	if len(vals) == 1 {
		return vals[0], true
	}
	return vals, true
}

func tagElement(tag *tiff.Tag, i int) (any, bool) {
	switch tag.Format() {
	case tiff.IntVal:
		v, err := tag.Int64(i)
		return v, err == nil
	case tiff.FloatVal:
		v, err := tag.Float(i)
		return v, err == nil
	case tiff.RatVal:
		num, den, err := tag.Rat2(i)
		if err != nil || den == 0 {
			return nil, false
		}
		return float64(num) / float64(den), true
	}
	return nil, false
}

var _ media.MetadataExtractor = (*ExifExtractor)(nil)
