package flow

import (
	"errors"
	"fmt"
)

var (
	// ErrThreadNotFound is returned by Resume (and store Load) for an
	// unknown thread id.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrThreadSuspended rejects Invoke on a thread awaiting a resume.
	ErrThreadSuspended = errors.New("thread is suspended; call Resume")

	// ErrThreadNotSuspended rejects Resume on a settled thread.
	ErrThreadNotSuspended = errors.New("thread is not suspended")
)

// StageError is a terminal stage failure. The last successfully persisted
// checkpoint remains the durable state; nothing from the failing stage is
// merged or saved.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
