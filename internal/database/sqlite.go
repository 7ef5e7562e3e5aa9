package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mediasort/internal/database/migrations"
	"mediasort/internal/media"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the database at path and applies pending migrations.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

// Run operations

func (s *SQLiteDatabase) CreateRun(uuid, operation, parameters string, startedAt time.Time) (*media.Run, error) {
	res, err := s.db.ExecContext(context.Background(),
		`INSERT INTO runs (run_uuid, operation, parameters, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		uuid, operation, parameters, startedAt.UTC(), media.RunRunning)
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading run id: %w", err)
	}
	return &media.Run{
		ID:         id,
		UUID:       uuid,
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  startedAt.UTC(),
		Status:     media.RunRunning,
	}, nil
}

func (s *SQLiteDatabase) FinishRun(id int64, status string, copied, quarantined int64, finishedAt time.Time) error {
	res, err := s.db.ExecContext(context.Background(),
		`UPDATE runs SET status = ?, copied = ?, quarantined = ?, finished_at = ? WHERE id = ?`,
		status, copied, quarantined, finishedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing run: no run with id %d", id)
	}
	return nil
}

func (s *SQLiteDatabase) ListRuns(limit int) ([]*media.Run, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, run_uuid, operation, parameters, started_at, finished_at, status, copied, quarantined
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*media.Run
	for rows.Next() {
		var r media.Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.UUID, &r.Operation, &r.Parameters, &r.StartedAt, &finished, &r.Status, &r.Copied, &r.Quarantined); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteDatabase) MaxRunID() (int64, error) {
	var id int64
	err := s.db.QueryRowContext(context.Background(), `SELECT COALESCE(MAX(id), 0) FROM runs`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("getting max run ID: %w", err)
	}
	return id, nil
}

// Copy operations

func (s *SQLiteDatabase) RecordCopy(rec *media.CopyRecord) error {
	res, err := s.db.ExecContext(context.Background(),
		`INSERT INTO copies (run_id, kind, source_path, dest_path, fingerprint, size, copied_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, string(rec.Kind), rec.SourcePath, rec.DestPath, rec.Fingerprint, rec.Size, rec.CopiedAt.UTC())
	if err != nil {
		return fmt.Errorf("recording copy: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading copy id: %w", err)
	}
	rec.ID = id
	return nil
}

func (s *SQLiteDatabase) FindCopiesBySource(path string) ([]*media.CopyRecord, error) {
	return s.findCopies(`WHERE source_path = ?`, path)
}

func (s *SQLiteDatabase) FindCopiesByFingerprint(fingerprint string) ([]*media.CopyRecord, error) {
	return s.findCopies(`WHERE fingerprint = ?`, fingerprint)
}

func (s *SQLiteDatabase) findCopies(where string, arg any) ([]*media.CopyRecord, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, run_id, kind, source_path, dest_path, fingerprint, size, copied_at
		 FROM copies `+where+` ORDER BY id`, arg)
	if err != nil {
		return nil, fmt.Errorf("finding copies: %w", err)
	}
	defer rows.Close()

	var out []*media.CopyRecord
	for rows.Next() {
		var c media.CopyRecord
		var kind string
		if err := rows.Scan(&c.ID, &c.RunID, &kind, &c.SourcePath, &c.DestPath, &c.Fingerprint, &c.Size, &c.CopiedAt); err != nil {
			return nil, fmt.Errorf("scanning copy: %w", err)
		}
		c.Kind = media.CopyKind(kind)
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding copies: %w", err)
	}
	return out, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements media.Database interface
var _ media.Database = (*SQLiteDatabase)(nil)
