package handler

import (
	"fmt"
	"time"

	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/engine/doc"
)

// ResultStatus indicates the outcome of a command.
type ResultStatus uint8

const (
	// StatusOK indicates successful execution.
	StatusOK ResultStatus = iota
	// StatusNoOp indicates the command succeeded without changing anything.
	StatusNoOp
	// StatusError indicates an error occurred.
	StatusError
	// StatusCancelled indicates a hook cancelled the command.
	StatusCancelled
)

// String returns a string representation of the status.
func (s ResultStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoOp:
		return "no-op"
	case StatusError:
		return "error"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ResultStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Change is one edited character range. Start and End are offsets into
// the block's text after the edit.
type Change struct {
	BlockID string `json:"blockId" yaml:"blockId"`
	Start   int    `json:"start" yaml:"start"`
	End     int    `json:"end" yaml:"end"`
	OldText string `json:"oldText,omitempty" yaml:"oldText,omitempty"`
	NewText string `json:"newText,omitempty" yaml:"newText,omitempty"`

	// Block is the edited block; BlockID is filled from it once the
	// document has been renumbered.
	Block *doc.Block `json:"-" yaml:"-"`
}

// Result represents the outcome of one command.
type Result struct {
	CommandID   string        `json:"commandId" yaml:"commandId"`
	Kind        command.Kind  `json:"kind" yaml:"kind"`
	Status      ResultStatus  `json:"status" yaml:"status"`
	Success     bool          `json:"success" yaml:"success"`
	Error       error         `json:"-" yaml:"-"`
	ErrorText   string        `json:"error,omitempty" yaml:"error,omitempty"`
	Message     string        `json:"message,omitempty" yaml:"message,omitempty"`
	Affected    []*doc.Block  `json:"-" yaml:"-"`
	AffectedIDs []string      `json:"affectedIds" yaml:"affectedIds"`
	Changes     []Change      `json:"changes,omitempty" yaml:"changes,omitempty"`
	Timestamp   time.Time     `json:"timestamp" yaml:"timestamp"`
	Duration    time.Duration `json:"duration" yaml:"duration"`

	// Data holds handler-specific return data.
	Data map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// IsOK returns true if the result indicates success.
func (r Result) IsOK() bool {
	return r.Status == StatusOK || r.Status == StatusNoOp
}

// IsError returns true if the result indicates an error.
func (r Result) IsError() bool {
	return r.Status == StatusError
}

// Success creates a successful result.
func Success() Result {
	return Result{Status: StatusOK, Success: true}
}

// SuccessWithMessage creates a successful result with a message.
func SuccessWithMessage(msg string) Result {
	return Result{Status: StatusOK, Success: true, Message: msg}
}

// NoOp creates a no-operation result.
func NoOp() Result {
	return Result{Status: StatusNoOp, Success: true}
}

// NoOpWithMessage creates a no-operation result with a message.
func NoOpWithMessage(msg string) Result {
	return Result{Status: StatusNoOp, Success: true, Message: msg}
}

// Error creates an error result.
func Error(err error) Result {
	r := Result{Status: StatusError, Error: err}
	if err != nil {
		r.ErrorText = err.Error()
	}
	return r
}

// Errorf creates an error result with a formatted message.
func Errorf(format string, args ...any) Result {
	return Error(fmt.Errorf(format, args...))
}

// Cancelled creates a cancelled result.
func Cancelled() Result {
	return Result{Status: StatusCancelled}
}

// CancelledWithMessage creates a cancelled result with a message.
func CancelledWithMessage(msg string) Result {
	return Result{Status: StatusCancelled, Message: msg}
}

// WithMessage returns a copy of the result with the specified message.
func (r Result) WithMessage(msg string) Result {
	r.Message = msg
	return r
}

// WithError returns a copy of the result with err recorded.
func (r Result) WithError(err error) Result {
	r.Error = err
	r.ErrorText = ""
	if err != nil {
		r.ErrorText = err.Error()
	}
	return r
}

// WithAffected returns a copy of the result with affected blocks added.
func (r Result) WithAffected(blocks ...*doc.Block) Result {
	for _, b := range blocks {
		if b != nil {
			r.Affected = append(r.Affected, b)
		}
	}
	return r
}

// WithChange returns a copy of the result with a change added.
func (r Result) WithChange(c Change) Result {
	r.Changes = append(r.Changes, c)
	return r
}

// WithChanges returns a copy of the result with changes added.
func (r Result) WithChanges(cs []Change) Result {
	r.Changes = append(r.Changes, cs...)
	return r
}

// WithData returns a copy of the result with data added.
func (r Result) WithData(key string, value any) Result {
	if r.Data == nil {
		r.Data = make(map[string]any)
	}
	r.Data[key] = value
	return r
}

// GetData retrieves a value from the result data.
func (r Result) GetData(key string) (any, bool) {
	if r.Data == nil {
		return nil, false
	}
	v, ok := r.Data[key]
	return v, ok
}

// GetDataString retrieves a string value from the result data.
func (r Result) GetDataString(key string) string {
	if v, ok := r.GetData(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetDataInt retrieves an int value from the result data.
func (r Result) GetDataInt(key string) int {
	if v, ok := r.GetData(key); ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

// Resolve fills the id fields from the affected blocks. Blocks no longer
// in d are dropped. It is called after the document has been renumbered.
func (r *Result) Resolve(d *doc.Document) {
	r.AffectedIDs = make([]string, 0, len(r.Affected))
	seen := make(map[*doc.Block]bool, len(r.Affected))
	for _, b := range r.Affected {
		if seen[b] || !d.Contains(b) {
			continue
		}
		seen[b] = true
		r.AffectedIDs = append(r.AffectedIDs, b.ID)
	}
	for i := range r.Changes {
		if b := r.Changes[i].Block; b != nil && d.Contains(b) {
			r.Changes[i].BlockID = b.ID
		}
	}
}
