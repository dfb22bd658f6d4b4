package service

import (
	"errors"
	"fmt"
)

// ErrBatchNotFound is returned when a batch ID does not match any job.
var ErrBatchNotFound = errors.New("batch not found")

// ErrNoKeywords is returned when an uploaded CSV yields no usable keywords.
var ErrNoKeywords = errors.New("no keywords found in CSV")

// AlreadyRunningError is returned when a batch start is rejected because
// another batch holds the run slot.
type AlreadyRunningError struct {
	BatchID string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("another batch is already running: %s", e.BatchID)
}

// InvalidTransitionError is returned when a control operation is applied to
// a batch in the wrong state.
type InvalidTransitionError struct {
	Op       string
	Current  string
	Required string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s batch in status %q (requires %s)", e.Op, e.Current, e.Required)
}
