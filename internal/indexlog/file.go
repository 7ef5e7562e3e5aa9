package indexlog

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mediasort/internal/media"
)

// maxLineSize bounds a single record; metadata of large videos can be long.
const maxLineSize = 16 * 1024 * 1024

// FileLog is an append-only JSON-lines file.
type FileLog struct {
	path     string
	f        *os.File
	repaired int64
}

// OpenFileLog opens or creates the log at path. A trailing line without a
// newline, left by an interrupted append, is truncated away; Repaired
// reports how many bytes were dropped.
func OpenFileLog(path string) (*FileLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening index log: %w", err)
	}
	l := &FileLog{path: path, f: f}
	if err := l.repair(); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// repair truncates the file after its last newline.
func (l *FileLog) repair() error {
	info, err := l.f.Stat()
	if err != nil {
		return fmt.Errorf("stat index log: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return nil
	}

	// Scan backwards for the last newline.
	const chunk = 64 * 1024
	end := size
	buf := make([]byte, chunk)
	for end > 0 {
		start := max(end-chunk, 0)
		n, err := l.f.ReadAt(buf[:end-start], start)
		if err != nil && err != io.EOF {
			return fmt.Errorf("reading index log: %w", err)
		}
		if i := bytes.LastIndexByte(buf[:n], '\n'); i >= 0 {
			keep := start + int64(i) + 1
			return l.truncate(keep, size)
		}
		end = start
	}
	return l.truncate(0, size)
}

func (l *FileLog) truncate(keep, size int64) error {
	if keep == size {
		return nil
	}
	if err := l.f.Truncate(keep); err != nil {
		return fmt.Errorf("truncating torn index record: %w", err)
	}
	l.repaired = size - keep
	return nil
}

// Path returns the location of the log file.
func (l *FileLog) Path() string { return l.path }

// Repaired returns the number of bytes of a torn final record dropped on open.
func (l *FileLog) Repaired() int64 { return l.repaired }

// Append writes line and a newline in one write, then syncs the file.
func (l *FileLog) Append(line []byte) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := l.f.Write(buf); err != nil {
		return fmt.Errorf("writing index record: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("syncing index log: %w", err)
	}
	return nil
}

// Replay calls fn for every non-blank line in the file.
func (l *FileLog) Replay(fn func(line []byte) error) error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("opening index log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading index log: %w", err)
	}
	return nil
}

// Snapshot writes the current log content to w.
func (l *FileLog) Snapshot(w io.Writer) (int64, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return 0, fmt.Errorf("opening index log: %w", err)
	}
	defer f.Close()
	return io.Copy(w, f)
}

func (l *FileLog) Close() error {
	return l.f.Close()
}

var _ media.IndexLog = (*FileLog)(nil)
