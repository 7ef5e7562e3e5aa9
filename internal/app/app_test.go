package app

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediasort/internal/config"
	"mediasort/internal/media"
	"mediasort/internal/vault"
)

// testConfig returns a config whose state lives under a temp dir: file
// index logs, a sqlite run database and a filesystem vault.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.NewConfig("host-1", base)
	cfg.Metadata.Type = "none"
	cfg.Encryption.Type = "test"
	cfg.Retry = config.RetryConfig{MaxAttempts: 1}
	cfg.Vaults = []config.VaultConfig{{
		Type:        "filesystem",
		Name:        "local",
		FSVaultRoot: filepath.Join(base, "vault"),
	}}
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func openApp(t *testing.T, cfg *config.Config, operation string) *App {
	t.Helper()
	a, err := NewApp(cfg, operation)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	return a
}

func closeApp(t *testing.T, a *App) {
	t.Helper()
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestApp_IndexAndIssues(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(t.TempDir(), "src")
	writeFile(t, filepath.Join(src, "a.jpg"), "same")
	writeFile(t, filepath.Join(src, "copy", "a.jpg"), "same")
	writeFile(t, filepath.Join(src, "empty.jpg"), "")

	a := openApp(t, cfg, "index")
	added, err := a.Index([]string{src})
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if added != 3 {
		t.Errorf("Index() = %d, want 3", added)
	}
	closeApp(t, a)

	a = openApp(t, cfg, "issues")
	defer closeApp(t, a)
	issues, err := a.Issues([]string{src})
	if err != nil {
		t.Fatalf("Issues() error = %v", err)
	}
	if len(issues.Empty) != 1 || len(issues.Duplicates) != 1 || len(issues.Collisions) != 0 {
		t.Errorf("Issues() = %d empty, %d duplicates, %d collisions", len(issues.Empty), len(issues.Duplicates), len(issues.Collisions))
	}
	if _, err := os.Stat(filepath.Join(cfg.LogDir, LogFileName)); err != nil {
		t.Errorf("log file missing: %v", err)
	}
}

func TestApp_IndexRejectsBadRoots(t *testing.T) {
	cfg := testConfig(t)
	file := filepath.Join(t.TempDir(), "a.jpg")
	writeFile(t, file, "x")

	a := openApp(t, cfg, "index")
	defer closeApp(t, a)
	for _, roots := range [][]string{nil, {"/does/not/exist"}, {file}} {
		if _, err := a.Index(roots); err == nil {
			t.Errorf("Index(%v) should fail", roots)
		}
	}
	if a.op.Persisted() {
		t.Error("rejected arguments should not record a run")
	}
}

func TestApp_Reorganize(t *testing.T) {
	cfg := testConfig(t)
	work := t.TempDir()
	src := filepath.Join(work, "src")
	dest := filepath.Join(work, "dest")
	writeFile(t, filepath.Join(src, "2018", "03", "x.jpg"), "X")
	writeFile(t, filepath.Join(src, "Holiday", "notes.txt"), "N")
	if err := os.MkdirAll(dest, 0755); err != nil {
		t.Fatal(err)
	}

	a := openApp(t, cfg, "reorganize")
	var summary *media.Report
	report, err := a.Reorganize([]string{src}, dest, func(r *media.Report) bool {
		summary = r
		return true
	})
	if err != nil {
		t.Fatalf("Reorganize() error = %v", err)
	}
	if summary == nil || summary.Planned != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if report.Copied != 1 || report.Ignored != 1 {
		t.Errorf("report = %+v", *report)
	}
	copied := filepath.Join(dest, "2018", "3", "x.jpg")
	if data, err := os.ReadFile(copied); err != nil || string(data) != "X" {
		t.Errorf("reading %s = %q, %v", copied, data, err)
	}
	closeApp(t, a)

	a = openApp(t, cfg, "reorganize")
	report, err = a.Reorganize([]string{src}, dest, nil)
	if err != nil {
		t.Fatalf("second Reorganize() error = %v", err)
	}
	if report.Copied != 0 || report.Skipped != 1 {
		t.Errorf("second report = %+v", *report)
	}
	closeApp(t, a)

	a = openApp(t, cfg, "history")
	defer closeApp(t, a)
	runs, err := a.GetHistory(10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("GetHistory() = %d runs, want 2", len(runs))
	}
	first := runs[1]
	if first.Operation != "reorganize" || first.Status != media.RunSucceeded || first.Copied != 1 || first.FinishedAt == nil {
		t.Errorf("first run = %+v", first)
	}

	for _, p := range []string{filepath.Join(src, "2018", "03", "x.jpg"), copied} {
		copies, err := a.GetCopyHistory(p)
		if err != nil {
			t.Fatalf("GetCopyHistory(%s) error = %v", p, err)
		}
		if len(copies) != 1 || copies[0].DestPath != copied || copies[0].RunID != first.ID {
			t.Errorf("GetCopyHistory(%s) = %+v", p, copies)
		}
	}
}

func TestApp_ReorganizeCreatesDestination(t *testing.T) {
	cfg := testConfig(t)
	work := t.TempDir()
	src := filepath.Join(work, "src")
	dest := filepath.Join(work, "library", "sorted")
	writeFile(t, filepath.Join(src, "2018", "03", "x.jpg"), "X")

	a := openApp(t, cfg, "reorganize")
	defer closeApp(t, a)
	report, err := a.Reorganize([]string{src}, dest, nil)
	if err != nil {
		t.Fatalf("Reorganize() into a new directory error = %v", err)
	}
	if report.Copied != 1 {
		t.Errorf("report = %+v", *report)
	}
	if data, err := os.ReadFile(filepath.Join(dest, "2018", "3", "x.jpg")); err != nil || string(data) != "X" {
		t.Errorf("copied file = %q, %v", data, err)
	}
}

func TestApp_ReorganizeRejectsOverlap(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(t.TempDir(), "src")
	writeFile(t, filepath.Join(src, "a.jpg"), "A")
	inside := filepath.Join(src, "sorted")
	if err := os.MkdirAll(inside, 0755); err != nil {
		t.Fatal(err)
	}

	a := openApp(t, cfg, "reorganize")
	defer closeApp(t, a)
	if _, err := a.Reorganize([]string{src}, inside, nil); err == nil || !strings.Contains(err.Error(), "overlaps") {
		t.Errorf("Reorganize() into a source error = %v", err)
	}
	if _, err := a.Reorganize([]string{inside}, src, nil); err == nil {
		t.Error("Reorganize() of a directory inside the destination should fail")
	}
}

func TestApp_ReorganizeDeclinedIsRecordedAsFailed(t *testing.T) {
	cfg := testConfig(t)
	work := t.TempDir()
	src := filepath.Join(work, "src")
	dest := filepath.Join(work, "dest")
	writeFile(t, filepath.Join(src, "a.jpg"), "A")
	if err := os.MkdirAll(dest, 0755); err != nil {
		t.Fatal(err)
	}

	a := openApp(t, cfg, "reorganize")
	_, err := a.Reorganize([]string{src}, dest, func(*media.Report) bool { return false })
	if !errors.Is(err, media.ErrAborted) {
		t.Fatalf("Reorganize() error = %v, want ErrAborted", err)
	}
	closeApp(t, a)

	a = openApp(t, cfg, "history")
	defer closeApp(t, a)
	runs, err := a.GetHistory(1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("GetHistory() = %v, %v", runs, err)
	}
	if runs[0].Status != media.RunFailed {
		t.Errorf("status = %q, want %q", runs[0].Status, media.RunFailed)
	}
}

func TestApp_SnapshotsUploadedAndRestored(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(t.TempDir(), "src")
	writeFile(t, filepath.Join(src, "a.jpg"), "A")

	a := openApp(t, cfg, "index")
	if _, err := a.Index([]string{src}); err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	logName := a.logs[0].name
	closeApp(t, a)

	v, err := vault.NewFileSystemVault("local", cfg.Vaults[0].FSVaultRoot)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"host-1/" + RunsSnapshot, "host-1/" + logName + ".jsonl"} {
		version, err := v.GetSnapshotVersion(name)
		if err != nil {
			t.Fatalf("GetSnapshotVersion(%s) error = %v", name, err)
		}
		if version != 1 {
			t.Errorf("GetSnapshotVersion(%s) = %d, want 1", name, version)
		}
	}

	a = openApp(t, cfg, "snapshot-restore")
	defer closeApp(t, a)
	out := filepath.Join(t.TempDir(), "restored", "runs.db")
	if err := a.RestoreSnapshot(RunsSnapshot, out, ""); err != nil {
		t.Fatalf("RestoreSnapshot() error = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("SQLite format 3\x00")) {
		t.Errorf("restored snapshot is not a SQLite database: %q", data[:min(16, len(data))])
	}

	indexOut := filepath.Join(t.TempDir(), "index.jsonl")
	if err := a.RestoreSnapshot(logName+".jsonl", indexOut, ""); err != nil {
		t.Fatalf("RestoreSnapshot(index) error = %v", err)
	}
	if data, _ := os.ReadFile(indexOut); !strings.Contains(string(data), `"path":"`+filepath.Join(src, "a.jpg")+`"`) {
		t.Errorf("restored index = %q", data)
	}

	if err := a.RestoreSnapshot(RunsSnapshot, out, ""); err == nil {
		t.Error("RestoreSnapshot() over an existing file should fail")
	}
	if err := a.RestoreSnapshot("missing.db", filepath.Join(t.TempDir(), "m.db"), ""); !errors.Is(err, vault.ErrSnapshotNotFound) {
		t.Errorf("RestoreSnapshot(missing) error = %v, want ErrSnapshotNotFound", err)
	}
}

func TestApp_RefusesToRunBehindVault(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(t.TempDir(), "src")
	writeFile(t, filepath.Join(src, "a.jpg"), "A")

	a := openApp(t, cfg, "index")
	if _, err := a.Index([]string{src}); err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	closeApp(t, a)

	// A second machine state: fresh run database, same vault.
	cfg.Database.DataDir = filepath.Join(t.TempDir(), "db")
	a = openApp(t, cfg, "index")
	defer closeApp(t, a)
	if _, err := a.Index([]string{src}); err == nil || !strings.Contains(err.Error(), "behind") {
		t.Errorf("Index() error = %v, want local database behind vault", err)
	}
	if _, err := a.GetHistory(5); err != nil {
		t.Errorf("read-only GetHistory() error = %v", err)
	}
}

func TestNewApp_RequiresKeysWithVault(t *testing.T) {
	cfg := testConfig(t)
	cfg.Encryption.Type = "age"

	if _, err := NewApp(cfg, "index"); err == nil || !strings.Contains(err.Error(), "keys init") {
		t.Errorf("NewApp() error = %v, want missing keys", err)
	}

	cfg.Vaults = nil
	a, err := NewApp(cfg, "index")
	if err != nil {
		t.Fatalf("NewApp() without a vault error = %v", err)
	}
	closeApp(t, a)
}

func TestNewApp_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "missing host", mutate: func(c *config.Config) { c.HostID = "" }},
		{name: "record time", mutate: func(c *config.Config) { c.Organize.RecordTime = "newest" }},
		{name: "metadata", mutate: func(c *config.Config) { c.Metadata.Type = "magic" }},
		{name: "vault", mutate: func(c *config.Config) { c.Vaults[0].Type = "tape" }},
		{name: "encryption", mutate: func(c *config.Config) { c.Encryption.Type = "rot13" }},
		{name: "database", mutate: func(c *config.Config) { c.Database.Type = "postgres" }},
		{name: "log level", mutate: func(c *config.Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			if a, err := NewApp(cfg, "index"); err == nil {
				a.Close()
				t.Error("NewApp() should fail")
			}
		})
	}
}

func TestRetryPolicyFromConfig(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.RetryConfig
		wantMax    int
		wantDelays []time.Duration
	}{
		{name: "defaults", cfg: config.RetryConfig{}, wantMax: 10, wantDelays: []time.Duration{3 * time.Second, 3 * time.Second}},
		{name: "fixed", cfg: config.RetryConfig{MaxAttempts: 4, Delay: config.Duration{Duration: time.Second}, Backoff: "fixed"}, wantMax: 4, wantDelays: []time.Duration{time.Second, time.Second}},
		{
			name:       "exponential",
			cfg:        config.RetryConfig{MaxAttempts: 5, Delay: config.Duration{Duration: time.Second}, Backoff: "exponential", MaxDelay: config.Duration{Duration: 3 * time.Second}},
			wantMax:    5,
			wantDelays: []time.Duration{time.Second, 2 * time.Second, 3 * time.Second},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := retryPolicyFromConfig(tt.cfg)
			if p.MaxAttempts != tt.wantMax {
				t.Errorf("MaxAttempts = %d, want %d", p.MaxAttempts, tt.wantMax)
			}
			for i, want := range tt.wantDelays {
				if got := p.Delay(i + 1); got != want {
					t.Errorf("Delay(%d) = %v, want %v", i+1, got, want)
				}
			}
		})
	}
}

func TestWithin(t *testing.T) {
	tests := []struct {
		path, dir string
		want      bool
	}{
		{path: "/a/b", dir: "/a", want: true},
		{path: "/a", dir: "/a", want: true},
		{path: "/a", dir: "/a/b"},
		{path: "/ab", dir: "/a"},
		{path: "/a/..b", dir: "/a", want: true},
	}
	for _, tt := range tests {
		if got := within(tt.path, tt.dir); got != tt.want {
			t.Errorf("within(%q, %q) = %v, want %v", tt.path, tt.dir, got, tt.want)
		}
	}
}
