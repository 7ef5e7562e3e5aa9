package media

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord is returned when a stored index record cannot be decoded
// or fails validation.
var ErrInvalidRecord = errors.New("invalid index record")

// ErrDestinationExists is returned by a Copier when the target path is taken.
// Retrying cannot fix it.
var ErrDestinationExists = errors.New("destination already exists")

// ErrAborted is returned when a reorganize run is declined before copying.
var ErrAborted = errors.New("reorganize aborted")

// CopyError reports a copy that still failed after every retry.
type CopyError struct {
	Descriptor  *Descriptor
	Source      string
	Destination string
	Attempts    int
	Err         error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copying %s to %s failed after %d attempts: %v", e.Source, e.Destination, e.Attempts, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}
