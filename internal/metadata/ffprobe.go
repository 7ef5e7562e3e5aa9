package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"sync/atomic"
	"time"

	"mediasort/internal/media"
)

// FFProbeExtractor runs ffprobe and returns its JSON report of the format
// and streams of a video.
type FFProbeExtractor struct {
	path     string
	timeout  time.Duration
	disabled atomic.Bool
}

// NewFFProbeExtractor creates an extractor running the ffprobe binary at path.
// A zero timeout means no timeout.
func NewFFProbeExtractor(path string, timeout time.Duration) *FFProbeExtractor {
	if path == "" {
		path = "ffprobe"
	}
	return &FFProbeExtractor{path: path, timeout: timeout}
}

// Extract returns the ffprobe report. If the binary cannot be found the
// first call fails and every later call returns empty metadata.
func (e *FFProbeExtractor) Extract(path string, _ media.MediaType) (media.Metadata, error) {
	if e.disabled.Load() {
		return media.Metadata{}, nil
	}

	ctx := context.Background()
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.path,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			if e.disabled.CompareAndSwap(false, true) {
				return nil, fmt.Errorf("ffprobe unavailable, video metadata disabled: %w", err)
			}
			return media.Metadata{}, nil
		}
		return nil, fmt.Errorf("running ffprobe on %s: %w", path, err)
	}

	var out map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output for %s: %w", path, err)
	}
	if out == nil {
		return media.Metadata{}, nil
	}
	return media.Metadata(out), nil
}

var _ media.MetadataExtractor = (*FFProbeExtractor)(nil)
