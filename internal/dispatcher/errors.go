package dispatcher

import (
	"errors"
	"fmt"

	"github.com/dshills/pagestorm/internal/dispatcher/command"
)

// Executor errors.
var (
	// ErrNoHandler indicates no handler was found for a command kind.
	ErrNoHandler = errors.New("dispatcher: no handler for command")

	// ErrCancelled indicates the command was cancelled by a hook.
	ErrCancelled = errors.New("dispatcher: command cancelled by hook")

	// ErrPanic indicates the handler panicked.
	ErrPanic = errors.New("dispatcher: handler panic")

	// ErrInvalidCommand indicates the command is malformed.
	ErrInvalidCommand = command.ErrInvalidCommand

	// ErrBatchTooLarge indicates a batch exceeds the configured limit.
	ErrBatchTooLarge = errors.New("dispatcher: batch too large")
)

// CommandError wraps the failure of one command with its identity.
type CommandError struct {
	CommandID string
	Kind      command.Kind
	// Index is the position of the command in its batch.
	Index int
	Err   error
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command %d (%s %s): %v", e.Index, e.Kind, e.CommandID, e.Err)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Err
}
