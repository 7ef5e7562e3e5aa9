package media

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// PolicyMetadataFirst prefers the capture time stored in the file's metadata.
	PolicyMetadataFirst = "metadata-first"
	// PolicyPathFirst prefers a year/month encoded in the directory structure.
	PolicyPathFirst = "path-first"
)

// exifTimeLayout is the EXIF DateTime layout.
const exifTimeLayout = "2006:01:02 15:04:05"

// pathTimePattern finds the last /<YYYY>/ directory, optionally followed by
// a /<M>/ or /<MM>/ directory.
var pathTimePattern = regexp.MustCompile(`^.*/((?:19|20)\d{2})/(?:(\d{1,2})/)?`)

// RecordTimePolicy decides the best-effort capture time of a descriptor.
type RecordTimePolicy interface {
	Name() string
	RecordTime(d *Descriptor) (time.Time, bool)
}

// PolicyByName returns the named record time policy.
// An empty name selects metadata-first.
func PolicyByName(name string) (RecordTimePolicy, error) {
	switch name {
	case PolicyMetadataFirst, "":
		return MetadataFirst{}, nil
	case PolicyPathFirst:
		return PathFirst{}, nil
	default:
		return nil, fmt.Errorf("unknown record time policy: %q", name)
	}
}

// MetadataFirst uses the metadata capture time, falling back to the path.
type MetadataFirst struct{}

func (MetadataFirst) Name() string { return PolicyMetadataFirst }

func (MetadataFirst) RecordTime(d *Descriptor) (time.Time, bool) {
	if d.Size == 0 {
		return time.Time{}, false
	}
	if t, ok := d.Placed(); ok {
		return t, true
	}
	if t, ok := CaptureTime(d); ok {
		return t, true
	}
	return PathTime(d.Path)
}

// PathFirst uses the path's year/month, falling back to the metadata capture time.
type PathFirst struct{}

func (PathFirst) Name() string { return PolicyPathFirst }

func (PathFirst) RecordTime(d *Descriptor) (time.Time, bool) {
	if d.Size == 0 {
		return time.Time{}, false
	}
	if t, ok := d.Placed(); ok {
		return t, true
	}
	if t, ok := PathTime(d.Path); ok {
		return t, true
	}
	return CaptureTime(d)
}

// PathTime infers a capture month from a .../<YYYY>/<MM>/... or .../<YYYY>/...
// path. Without a usable month component the month is January.
func PathTime(path string) (time.Time, bool) {
	m := pathTimePattern.FindStringSubmatch(path)
	if m == nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	month := 1
	if m[2] != "" {
		if v, err := strconv.Atoi(m[2]); err == nil && v >= 1 && v <= 12 {
			month = v
		}
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}

// CaptureTime reads the capture time from the descriptor's metadata.
// Video creation times in 1970 are treated as unset.
func CaptureTime(d *Descriptor) (time.Time, bool) {
	if d.Size == 0 {
		return time.Time{}, false
	}
	meta := d.Metadata()
	switch d.Type {
	case TypeImage:
		for _, key := range []string{"DateTimeOriginal", "DateTime"} {
			s, ok := meta[key].(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
			if s == "" {
				continue
			}
			t, err := time.Parse(exifTimeLayout, s)
			if err != nil {
				return time.Time{}, false
			}
			return t, true
		}
	case TypeVideo:
		format, _ := meta["format"].(map[string]any)
		tags, _ := format["tags"].(map[string]any)
		s, _ := tags["creation_time"].(string)
		if s == "" || strings.HasPrefix(s, "1970") {
			return time.Time{}, false
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
