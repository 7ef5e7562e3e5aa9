package app

import "mediasort/internal/media"

// Operation tracks a CLI command that may be recorded as a run.
// Operations are created in memory with ID=0. Only commands that touch an
// index or the destination persist them (giving them an auto-increment ID
// from the run database).
type Operation struct {
	ID          int64
	UUID        string
	Name        string
	Parameters  string
	Status      string
	Copied      int64
	Quarantined int64
}

// NewOperation creates a new in-memory operation that succeeds unless failed.
func NewOperation(name, parameters, uuid string) *Operation {
	return &Operation{
		UUID:       uuid,
		Name:       name,
		Parameters: parameters,
		Status:     media.RunSucceeded,
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed.
func (op *Operation) Fail() {
	op.Status = media.RunFailed
}
