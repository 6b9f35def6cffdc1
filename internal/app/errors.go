package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrAlreadyRunning indicates the server is already running.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrNoFilePath indicates a save without a destination.
	ErrNoFilePath = errors.New("no file path")

	// ErrInitialization indicates a bootstrap failure.
	ErrInitialization = errors.New("initialization failed")

	// ErrClosed indicates use after Close.
	ErrClosed = errors.New("application closed")
)

// OperationError records the document operation and file that failed.
type OperationError struct {
	Op     string // load, save, apply or run
	Target string // usually a file path
	Err    error
}

// NewOperationError creates a new OperationError.
func NewOperationError(op, target string, err error) *OperationError {
	return &OperationError{Op: op, Target: target, Err: err}
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ComponentError reports a bootstrap step that failed.
type ComponentError struct {
	Component string // config, logging, session, commands, scripts or server
	Action    string
	Err       error
}

func (e *ComponentError) Error() string {
	if e == nil {
		return ""
	}
	if e.Action != "" {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Action, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Component, e.Err)
}

func (e *ComponentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches ErrInitialization for init failures.
func (e *ComponentError) Is(target error) bool {
	if e == nil {
		return false
	}
	return target == ErrInitialization && e.Action == "init"
}
