package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"mediasort/internal/media"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing. Parent
// directories of added files exist implicitly. Safe for concurrent use.
type MockFilesystemManager struct {
	mu    sync.Mutex
	files map[string]*MockFile

	failCopies   int
	failCopyErr  error
	failCopyFrom map[string]error
	failOpen     map[string]error
	copies       []CopyCall
}

// CopyCall is one successful Copy seen by the mock.
type CopyCall struct {
	Src string
	Dst string
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:        make(map[string]*MockFile),
		failCopyFrom: make(map[string]error),
		failOpen:     make(map[string]error),
	}
}

// AddFile adds a file to the mock filesystem.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(path)] = &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     time.Now(),
	}
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addDirLocked(filepath.Clean(path))
}

func (m *MockFilesystemManager) addDirLocked(path string) {
	m.files[path] = &MockFile{
		Permissions: 0755,
		ModTime:     time.Now(),
		IsDirectory: true,
	}
}

// FailCopies makes the next n copies fail with err.
func (m *MockFilesystemManager) FailCopies(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCopies = n
	m.failCopyErr = err
}

// FailCopyFrom makes every copy of src fail with err until cleared with a nil err.
func (m *MockFilesystemManager) FailCopyFrom(src string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failCopyFrom, src)
		return
	}
	m.failCopyFrom[src] = err
}

// FailOpen makes opening path fail with err.
func (m *MockFilesystemManager) FailOpen(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOpen[path] = err
}

// Content returns the content of the file at path.
func (m *MockFilesystemManager) Content(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok || f.IsDirectory {
		return nil, false
	}
	return f.Content, true
}

// FilesUnder returns every file path below root, sorted.
func (m *MockFilesystemManager) FilesUnder(root string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filesUnderLocked(filepath.Clean(root))
}

// Copies returns every successful copy in order.
func (m *MockFilesystemManager) Copies() []CopyCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CopyCall, len(m.copies))
	copy(out, m.copies)
	return out
}

func (m *MockFilesystemManager) filesUnderLocked(root string) []string {
	prefix := root + string(filepath.Separator)
	var out []string
	for p, f := range m.files {
		if !f.IsDirectory && strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// isDirLocked reports whether path is an explicit or implicit directory.
func (m *MockFilesystemManager) isDirLocked(path string) bool {
	if f, ok := m.files[path]; ok {
		return f.IsDirectory
	}
	prefix := path + string(filepath.Separator)
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*media.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[absPath]; ok && !f.IsDirectory {
		info := &mockFileInfo{name: filepath.Base(absPath), size: int64(len(f.Content)), mode: f.Permissions, modTime: f.ModTime}
		return media.NewPath(absPath, false, info), nil
	}
	if m.isDirLocked(absPath) {
		info := &mockFileInfo{name: filepath.Base(absPath), mode: fs.ModeDir | 0755, isDir: true}
		return media.NewPath(absPath, true, info), nil
	}
	return nil, fmt.Errorf("file not found: %s: %w", absPath, fs.ErrNotExist)
}

func (m *MockFilesystemManager) Open(path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failOpen[path]; ok {
		return nil, err
	}
	f, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s: %w", path, fs.ErrNotExist)
	}
	if f.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path)
	}
	return io.NopCloser(bytes.NewReader(f.Content)), nil
}

func (m *MockFilesystemManager) Exists(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; ok {
		return true, nil
	}
	return m.isDirLocked(path), nil
}

// Walk visits files under root in lexicographic order.
func (m *MockFilesystemManager) Walk(root string, fn media.WalkFunc) error {
	m.mu.Lock()
	paths := m.filesUnderLocked(filepath.Clean(root))
	m.mu.Unlock()

	for _, p := range paths {
		if err := fn(p, nil); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockFilesystemManager) MkdirAll(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = filepath.Clean(dir)
	for d := dir; d != string(filepath.Separator) && d != "."; d = filepath.Dir(d) {
		if f, ok := m.files[d]; ok {
			if !f.IsDirectory {
				return fmt.Errorf("not a directory: %s", d)
			}
			continue
		}
		m.addDirLocked(d)
	}
	return nil
}

func (m *MockFilesystemManager) Copy(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCopies > 0 {
		m.failCopies--
		return m.failCopyErr
	}
	if err, ok := m.failCopyFrom[src]; ok {
		return err
	}
	f, ok := m.files[src]
	if !ok || f.IsDirectory {
		return fmt.Errorf("source not found: %s: %w", src, fs.ErrNotExist)
	}
	if _, ok := m.files[dst]; ok {
		return fmt.Errorf("%w: %s", media.ErrDestinationExists, dst)
	}
	if !m.isDirLocked(filepath.Dir(dst)) {
		return fmt.Errorf("parent directory missing: %s: %w", dst, fs.ErrNotExist)
	}
	content := make([]byte, len(f.Content))
	copy(content, f.Content)
	m.files[dst] = &MockFile{Content: content, Permissions: f.Permissions, ModTime: f.ModTime}
	m.copies = append(m.copies, CopyCall{Src: src, Dst: dst})
	return nil
}

// ErrInjected is a convenience error for failure injection.
var ErrInjected = errors.New("injected failure")

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time checks
var (
	_ media.FilesystemManager = (*MockFilesystemManager)(nil)
	_ media.Copier            = (*MockFilesystemManager)(nil)
)
