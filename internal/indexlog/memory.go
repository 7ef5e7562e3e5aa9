package indexlog

import (
	"bytes"
	"io"
	"sync"

	"mediasort/internal/media"
)

// MemoryLog keeps records in memory. Use in tests.
type MemoryLog struct {
	mu        sync.Mutex
	lines     [][]byte
	appendErr error
	failAfter int
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{failAfter: -1}
}

// NewMemoryLogWithLines creates a MemoryLog that already holds lines.
func NewMemoryLogWithLines(lines ...string) *MemoryLog {
	l := NewMemoryLog()
	for _, line := range lines {
		l.lines = append(l.lines, []byte(line))
	}
	return l
}

// FailAppends lets the next n appends succeed and fails every later one with err.
// A nil err clears the failure.
func (l *MemoryLog) FailAppends(n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appendErr = err
	l.failAfter = n
}

func (l *MemoryLog) Append(line []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendErr != nil {
		if l.failAfter <= 0 {
			return l.appendErr
		}
		l.failAfter--
	}
	l.lines = append(l.lines, bytes.Clone(line))
	return nil
}

func (l *MemoryLog) Replay(fn func(line []byte) error) error {
	l.mu.Lock()
	lines := make([][]byte, len(l.lines))
	copy(lines, l.lines)
	l.mu.Unlock()

	for _, line := range lines {
		if err := fn(line); err != nil {
			return err
		}
	}
	return nil
}

// Lines returns a copy of every stored record.
func (l *MemoryLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.lines))
	for i, line := range l.lines {
		out[i] = string(line)
	}
	return out
}

// Snapshot writes the stored records as JSON lines to w.
func (l *MemoryLog) Snapshot(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for _, line := range l.Lines() {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.WriteTo(w)
}

func (l *MemoryLog) Close() error { return nil }

var _ media.IndexLog = (*MemoryLog)(nil)
