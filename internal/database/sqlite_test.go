package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediasort/internal/media"
)

// newTestDB creates a new migrated in-memory database.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

var t0 = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func TestSQLiteDatabase_Runs(t *testing.T) {
	t.Run("max run id of empty database is zero", func(t *testing.T) {
		db := newTestDB(t)

		got, err := db.MaxRunID()
		if err != nil {
			t.Fatalf("MaxRunID() error = %v", err)
		}
		if got != 0 {
			t.Errorf("MaxRunID() = %d, want 0", got)
		}
	})

	t.Run("create and finish run", func(t *testing.T) {
		db := newTestDB(t)

		run, err := db.CreateRun("uuid-1", "Reorganize", "--dest /photos", t0)
		if err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
		if run.ID != 1 {
			t.Errorf("ID = %d, want 1", run.ID)
		}
		if run.Status != media.RunRunning {
			t.Errorf("Status = %q, want %q", run.Status, media.RunRunning)
		}

		if err := db.FinishRun(run.ID, media.RunSucceeded, 12, 2, t0.Add(time.Minute)); err != nil {
			t.Fatalf("FinishRun() error = %v", err)
		}

		runs, err := db.ListRuns(10)
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("len(ListRuns()) = %d, want 1", len(runs))
		}
		got := runs[0]
		if got.Status != media.RunSucceeded || got.Copied != 12 || got.Quarantined != 2 {
			t.Errorf("run = %+v", got)
		}
		if got.FinishedAt == nil || !got.FinishedAt.Equal(t0.Add(time.Minute)) {
			t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, t0.Add(time.Minute))
		}
		if !got.StartedAt.Equal(t0) {
			t.Errorf("StartedAt = %v, want %v", got.StartedAt, t0)
		}
	})

	t.Run("finish unknown run", func(t *testing.T) {
		db := newTestDB(t)
		if err := db.FinishRun(99, media.RunFailed, 0, 0, t0); err == nil {
			t.Fatal("FinishRun() expected error for unknown run")
		}
	})

	t.Run("list runs newest first with limit", func(t *testing.T) {
		db := newTestDB(t)
		for i, id := range []string{"a", "b", "c"} {
			if _, err := db.CreateRun(id, "Index", "", t0.Add(time.Duration(i)*time.Hour)); err != nil {
				t.Fatalf("CreateRun() error = %v", err)
			}
		}

		runs, err := db.ListRuns(2)
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 2 || runs[0].UUID != "c" || runs[1].UUID != "b" {
			t.Errorf("ListRuns(2) = %v, %v", runs[0].UUID, runs[1].UUID)
		}
		if runs[0].FinishedAt != nil {
			t.Errorf("FinishedAt = %v, want nil", runs[0].FinishedAt)
		}

		maxID, err := db.MaxRunID()
		if err != nil {
			t.Fatalf("MaxRunID() error = %v", err)
		}
		if maxID != 3 {
			t.Errorf("MaxRunID() = %d, want 3", maxID)
		}
	})
}

func TestSQLiteDatabase_Copies(t *testing.T) {
	db := newTestDB(t)
	run, err := db.CreateRun("uuid-1", "Reorganize", "", t0)
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	journal := media.NewRunJournal(db, run.ID)
	recs := []*media.CopyRecord{
		{Kind: media.CopyOrganized, SourcePath: "/src/a.jpg", DestPath: "/dst/2019/5/a.jpg", Fingerprint: "fp1", Size: 10, CopiedAt: t0},
		{Kind: media.CopyCollision, SourcePath: "/src/b.jpg", DestPath: "/dst/collisions/b.jpg", Fingerprint: "fp2", Size: 20, CopiedAt: t0},
		{Kind: media.CopyOrganized, SourcePath: "/src/a.jpg", DestPath: "/dst/2019/5/a (1).jpg", Fingerprint: "fp1", Size: 10, CopiedAt: t0},
	}
	for _, rec := range recs {
		if err := journal.RecordCopy(rec); err != nil {
			t.Fatalf("RecordCopy() error = %v", err)
		}
		if rec.ID == 0 {
			t.Error("RecordCopy() did not set ID")
		}
		if rec.RunID != run.ID {
			t.Errorf("RunID = %d, want %d", rec.RunID, run.ID)
		}
	}

	t.Run("by source", func(t *testing.T) {
		got, err := db.FindCopiesBySource("/src/a.jpg")
		if err != nil {
			t.Fatalf("FindCopiesBySource() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if got[0].DestPath != "/dst/2019/5/a.jpg" || got[1].DestPath != "/dst/2019/5/a (1).jpg" {
			t.Errorf("copies out of order: %s, %s", got[0].DestPath, got[1].DestPath)
		}
		if !got[0].CopiedAt.Equal(t0) {
			t.Errorf("CopiedAt = %v, want %v", got[0].CopiedAt, t0)
		}
	})

	t.Run("by fingerprint", func(t *testing.T) {
		got, err := db.FindCopiesByFingerprint("fp2")
		if err != nil {
			t.Fatalf("FindCopiesByFingerprint() error = %v", err)
		}
		if len(got) != 1 || got[0].Kind != media.CopyCollision {
			t.Errorf("FindCopiesByFingerprint() = %+v", got)
		}
	})

	t.Run("unknown source", func(t *testing.T) {
		got, err := db.FindCopiesBySource("/src/none.jpg")
		if err != nil {
			t.Fatalf("FindCopiesBySource() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("len = %d, want 0", len(got))
		}
	})
}

func TestSQLiteDatabase_BackupTo(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.CreateRun("uuid-1", "Reorganize", "", t0); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := db.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("backup not written: %v", err)
	}

	restored, err := NewSQLiteDatabase(dest)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer restored.Close()
	if err := restored.CheckMigrations(); err != nil {
		t.Errorf("CheckMigrations() error = %v", err)
	}
	maxID, err := restored.MaxRunID()
	if err != nil {
		t.Fatalf("MaxRunID() error = %v", err)
	}
	if maxID != 1 {
		t.Errorf("MaxRunID() = %d, want 1", maxID)
	}
}
