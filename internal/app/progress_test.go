package app

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"mediasort/internal/media"
)

func TestTermProgress(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &termProgress{w: &buf, now: func() time.Time { return now }}

	p.Start("copying", 1500)
	for range 1500 {
		p.Advance("x")
	}
	now = now.Add(2 * time.Second)
	p.Finish()

	out := buf.String()
	if !strings.Contains(out, "copying: 0/1,500") {
		t.Errorf("output missing start line: %q", out)
	}
	if !strings.Contains(out, "copying: 1,500/1,500 (2s)") {
		t.Errorf("output missing final line: %q", out)
	}
	if lines := strings.Count(out, "\r"); lines > 4 {
		t.Errorf("progress redrawn %d times without the clock moving", lines)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("Finish() did not end the line")
	}
}

func TestNewProgress_NotATerminal(t *testing.T) {
	if _, ok := newProgress(nil).(media.NopProgress); !ok {
		t.Error("newProgress(nil) should be a no-op")
	}
}
