package media

import "time"

// CopyKind tells why a file was copied into the destination.
type CopyKind string

const (
	CopyOrganized CopyKind = "organized"
	CopyCollision CopyKind = "collision"
)

// CopyRecord is one copy performed by a reorganize run.
type CopyRecord struct {
	ID          int64
	RunID       int64
	Kind        CopyKind
	SourcePath  string
	DestPath    string
	Fingerprint string
	Size        int64
	CopiedAt    time.Time
}

// Journal receives a record of every copy a Reorganizer performs.
type Journal interface {
	RecordCopy(rec *CopyRecord) error
}

// NopJournal discards copy records.
type NopJournal struct{}

func (NopJournal) RecordCopy(*CopyRecord) error { return nil }

// Run status values.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run is one invocation of a mediasort command that was recorded.
type Run struct {
	ID          int64
	UUID        string
	Operation   string
	Parameters  string
	StartedAt   time.Time
	FinishedAt  *time.Time
	Status      string
	Copied      int64
	Quarantined int64
}

// Database provides an interface for the run journal.
type Database interface {
	// CreateRun records the start of a run and returns it with its ID set.
	CreateRun(uuid, operation, parameters string, startedAt time.Time) (*Run, error)

	// FinishRun records the outcome of a run.
	FinishRun(id int64, status string, copied, quarantined int64, finishedAt time.Time) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]*Run, error)

	// MaxRunID returns the highest run ID, or 0 when no run was recorded.
	MaxRunID() (int64, error)

	// RecordCopy stores a copy performed within a run.
	RecordCopy(rec *CopyRecord) error

	// FindCopiesBySource returns copies made from the given source path, oldest first.
	FindCopiesBySource(path string) ([]*CopyRecord, error)

	// FindCopiesByFingerprint returns copies of the given content, oldest first.
	FindCopiesByFingerprint(fingerprint string) ([]*CopyRecord, error)

	// Close closes the database connection.
	Close() error
}

// RunJournal stamps copy records with a run ID before storing them in a Database.
type RunJournal struct {
	db    Database
	runID int64
}

func NewRunJournal(db Database, runID int64) *RunJournal {
	return &RunJournal{db: db, runID: runID}
}

func (j *RunJournal) RecordCopy(rec *CopyRecord) error {
	rec.RunID = j.runID
	return j.db.RecordCopy(rec)
}

var _ Journal = (*RunJournal)(nil)
