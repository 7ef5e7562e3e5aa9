package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		runID   string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			runID:   "1a2b3c4d",
			level:   slog.LevelInfo,
			message: "index updated",
			want:    "2024-06-15T14:30:45Z\tINFO\t1a2b3c4d\tindex updated\n",
		},
		{
			name:    "with record attrs",
			runID:   "1a2b3c4d",
			level:   slog.LevelWarn,
			message: "copy failed, retrying",
			attrs:   []slog.Attr{slog.String("source", "/photos/a.jpg"), slog.Int("attempt", 2)},
			want:    "2024-06-15T14:30:45Z\tWARN\t1a2b3c4d\tcopy failed, retrying\tsource=/photos/a.jpg\tattempt=2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &runHandler{w: &buf, runID: tt.runID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			r.AddAttrs(tt.attrs...)

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestRunHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &runHandler{w: &buf, runID: "r", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "vault")}).(*runHandler)
	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "upload", 0)
	r.AddAttrs(slog.String("key", "abc"))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	for _, want := range []string{"a=1", "component=vault", "key=abc"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output %q missing %s", buf.String(), want)
		}
	}
}

func TestRunHandler_Enabled(t *testing.T) {
	tests := []struct {
		name    string
		level   slog.Leveler
		enabled []slog.Level
		muted   []slog.Level
	}{
		{name: "no level", enabled: []slog.Level{slog.LevelDebug, slog.LevelError}},
		{name: "info", level: slog.LevelInfo, enabled: []slog.Level{slog.LevelInfo, slog.LevelWarn}, muted: []slog.Level{slog.LevelDebug}},
		{name: "error", level: slog.LevelError, enabled: []slog.Level{slog.LevelError}, muted: []slog.Level{slog.LevelInfo, slog.LevelWarn}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &runHandler{level: tt.level}
			for _, l := range tt.enabled {
				if !h.Enabled(context.Background(), l) {
					t.Errorf("Enabled(%v) = false, want true", l)
				}
			}
			for _, l := range tt.muted {
				if h.Enabled(context.Background(), l) {
					t.Errorf("Enabled(%v) = true, want false", l)
				}
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "", want: slog.LevelInfo},
		{in: "debug", want: slog.LevelDebug},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	var stderr bytes.Buffer

	logger, f, err := newLogger(dir, "run-1", "warn", &stderr)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Info("quiet")
	logger.Warn("loud", "path", "/photos/a.jpg")
	f.Close()

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if strings.Contains(string(data), "quiet") {
		t.Errorf("log file contains a message below the level: %q", data)
	}
	if !strings.Contains(string(data), "\trun-1\tloud\tpath=/photos/a.jpg") {
		t.Errorf("log file = %q", data)
	}
	if stderr.String() != string(data) {
		t.Errorf("stderr = %q, want the log file content", stderr.String())
	}

	if _, _, err := newLogger(dir, "run-1", "loud", &stderr); err == nil {
		t.Error("newLogger() with an unknown level should fail")
	}
}
