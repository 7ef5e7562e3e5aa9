package media

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"time"
)

// placedLayout is the stored form of a pinned record month.
const placedLayout = "2006-01"

// Record is the stored form of a Descriptor: one JSON object per log line.
// A nil Metadata means the metadata was never fetched. Placed is set for
// copies made by a reorganize run.
type Record struct {
	Path        string
	Size        int64
	Fingerprint string
	Type        MediaType
	Metadata    Metadata
	Placed      *time.Time
}

type recordWire struct {
	Path        *string         `json:"path"`
	Size        *int64          `json:"size"`
	Fingerprint *string         `json:"fingerprint"`
	MediaType   *string         `json:"media_type"`
	Metadata    json.RawMessage `json:"metadata"`
	Placed      *string         `json:"placed,omitempty"`
}

type recordOut struct {
	Path        string         `json:"path"`
	Size        int64          `json:"size"`
	Fingerprint string         `json:"fingerprint"`
	MediaType   string         `json:"media_type"`
	Metadata    map[string]any `json:"metadata"`
	Placed      string         `json:"placed,omitempty"`
}

// RecordFor returns the record of d. Metadata is included only when it was
// already fetched; encoding never triggers extraction.
func RecordFor(d *Descriptor) *Record {
	rec := &Record{
		Path:        d.Path,
		Size:        d.Size,
		Fingerprint: d.Fingerprint,
		Type:        d.Type,
	}
	if m, ok := d.loadedMetadata(); ok {
		rec.Metadata = m
	}
	if t, ok := d.Placed(); ok {
		rec.Placed = &t
	}
	return rec
}

// EncodeRecord serializes rec to a single JSON line without the trailing newline.
func EncodeRecord(rec *Record) ([]byte, error) {
	out := recordOut{
		Path:        rec.Path,
		Size:        rec.Size,
		Fingerprint: rec.Fingerprint,
		MediaType:   string(rec.Type),
	}
	if rec.Placed != nil {
		out.Placed = rec.Placed.Format(placedLayout)
	}
	if rec.Metadata != nil {
		m, err := normalizeMetadata(rec.Metadata)
		if err != nil {
			return nil, fmt.Errorf("normalizing metadata of %s: %w", rec.Path, err)
		}
		out.Metadata = m
	}
	line, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding record for %s: %w", rec.Path, err)
	}
	return line, nil
}

// DecodeRecord parses and validates one log line.
// All failures wrap ErrInvalidRecord.
func DecodeRecord(line []byte) (*Record, error) {
	var w recordWire
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if w.Path == nil || *w.Path == "" {
		return nil, fmt.Errorf("%w: missing path", ErrInvalidRecord)
	}
	if !filepath.IsAbs(*w.Path) {
		return nil, fmt.Errorf("%w: path is not absolute: %q", ErrInvalidRecord, *w.Path)
	}
	if w.Size == nil || *w.Size < 0 {
		return nil, fmt.Errorf("%w: missing or negative size", ErrInvalidRecord)
	}
	if w.Fingerprint == nil || !isFingerprint(*w.Fingerprint) {
		return nil, fmt.Errorf("%w: malformed fingerprint", ErrInvalidRecord)
	}
	if w.MediaType == nil {
		return nil, fmt.Errorf("%w: missing media_type", ErrInvalidRecord)
	}
	t, err := ParseMediaType(*w.MediaType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	rec := &Record{
		Path:        *w.Path,
		Size:        *w.Size,
		Fingerprint: *w.Fingerprint,
		Type:        t,
	}
	if len(w.Metadata) > 0 && string(w.Metadata) != "null" {
		var m map[string]any
		if err := json.Unmarshal(w.Metadata, &m); err != nil {
			return nil, fmt.Errorf("%w: metadata is not an object: %v", ErrInvalidRecord, err)
		}
		rec.Metadata = Metadata(m)
	}
	if w.Placed != nil {
		placed, err := time.Parse(placedLayout, *w.Placed)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed placed month %q", ErrInvalidRecord, *w.Placed)
		}
		rec.Placed = &placed
	}
	return rec, nil
}

// isFingerprint reports whether s is a lowercase hex SHA-256 digest.
func isFingerprint(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func normalizeMetadata(m Metadata) (map[string]any, error) {
	v, err := normalizeValue(reflect.ValueOf(map[string]any(m)))
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// normalizeValue converts v to a value with a stable JSON encoding:
// bytes become base64 strings, every number becomes a float64.
func normalizeValue(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	if t, ok := v.Interface().(time.Time); ok {
		return t.Format(time.RFC3339Nano), nil
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		return normalizeValue(v.Elem())
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.String:
		return v.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("unsupported number: %v", f)
		}
		return f, nil
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(b), v)
			return base64.StdEncoding.EncodeToString(b), nil
		}
		out := make([]any, v.Len())
		for i := range v.Len() {
			e, err := normalizeValue(v.Index(i))
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = e
		}
		return out, nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type: %s", v.Type().Key())
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			e, err := normalizeValue(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out[key] = e
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %s", v.Type())
	}
}
