package script

import (
	"errors"
	"fmt"
)

// Errors returned by script runs.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrTimeout is returned when a script runs past its deadline.
	ErrTimeout = errors.New("lua execution timeout")

	// ErrTooManyCommands is returned when a script emits more commands
	// than the runner allows.
	ErrTooManyCommands = errors.New("too many commands")

	// ErrNoDocument is returned when a run has no document to read.
	ErrNoDocument = errors.New("no document")
)

// ScriptError reports a failed script run.
type ScriptError struct {
	// Name identifies the script, usually its file name.
	Name string
	// Err is the underlying error.
	Err error
}

func (e *ScriptError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("script: %v", e.Err)
	}
	return fmt.Sprintf("script %s: %v", e.Name, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}
