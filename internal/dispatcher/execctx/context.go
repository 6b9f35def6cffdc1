// Package execctx provides the execution context for command handlers.
package execctx

import (
	"fmt"

	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/engine/doc"
	"github.com/dshills/pagestorm/internal/logging"
)

// State is the lifecycle stage of one command.
type State uint8

// Command states. A command moves strictly forward:
// pending, resolving, applying, then succeeded or failed. Failure is
// reachable from every non-terminal state.
const (
	StatePending State = iota
	StateResolving
	StateApplying
	StateSucceeded
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolving:
		return "resolving-target"
	case StateApplying:
		return "applying"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends the lifecycle.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// SnapshotFunc receives a copy of a block taken before it is mutated.
type SnapshotFunc func(cmd command.Command, before *doc.Block)

// ExecutionContext provides context for command execution.
// It carries the document, the batch addressing state, and the hooks
// handlers must call before they mutate.
type ExecutionContext struct {
	// Document is the live document.
	Document *doc.Document

	// Batch holds the batch-scoped addressing state.
	Batch *BatchState

	// Command is the command being executed.
	Command command.Command

	// Logger is scoped to the command.
	Logger *logging.Logger

	// Snapshot, when set, is called with a copy of every block a handler
	// is about to mutate.
	Snapshot SnapshotFunc

	// DryRun resolves targets without applying changes.
	DryRun bool

	state   State
	history []State

	// Data holds handler-specific context data.
	Data map[string]any
}

// New creates a new execution context.
func New(d *doc.Document, batch *BatchState, cmd command.Command) *ExecutionContext {
	return &ExecutionContext{
		Document: d,
		Batch:    batch,
		Command:  cmd,
		Logger:   logging.Nop(),
		history:  []State{StatePending},
		Data:     make(map[string]any),
	}
}

// WithLogger returns the context with the logger set.
func (ctx *ExecutionContext) WithLogger(l *logging.Logger) *ExecutionContext {
	if l != nil {
		ctx.Logger = l
	}
	return ctx
}

// WithSnapshot returns the context with the snapshot hook set.
func (ctx *ExecutionContext) WithSnapshot(fn SnapshotFunc) *ExecutionContext {
	ctx.Snapshot = fn
	return ctx
}

// WithDryRun returns the context with dry run mode set.
func (ctx *ExecutionContext) WithDryRun(dryRun bool) *ExecutionContext {
	ctx.DryRun = dryRun
	return ctx
}

// State returns the current command state.
func (ctx *ExecutionContext) State() State {
	return ctx.state
}

// History returns every state the command has passed through.
func (ctx *ExecutionContext) History() []State {
	return append([]State(nil), ctx.history...)
}

// Transition moves the command to the next state. Moving to the current
// state is a no-op.
func (ctx *ExecutionContext) Transition(to State) error {
	from := ctx.state
	if from == to {
		return nil
	}
	ok := false
	switch {
	case from.Terminal():
	case to == StateFailed:
		ok = true
	case to == from+1:
		ok = true
	}
	if !ok {
		return fmt.Errorf("%w: %s to %s", ErrBadTransition, from, to)
	}
	ctx.state = to
	ctx.history = append(ctx.history, to)
	return nil
}

// Validate checks that the context has all required components.
func (ctx *ExecutionContext) Validate() error {
	if ctx.Document == nil {
		return ErrMissingDocument
	}
	if ctx.Batch == nil {
		return ErrMissingBatch
	}
	return nil
}

// Resolve resolves a target address to a block.
func (ctx *ExecutionContext) Resolve(t command.Target) (*doc.Block, error) {
	if err := ctx.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Transition(StateResolving); err != nil {
		return nil, err
	}

	d := ctx.Document
	switch {
	case t.ID != "":
		return ctx.Batch.ResolveID(d, t.ID)

	case t.Ordinal > 0:
		if b := d.ResolveByOrdinal(t.Ordinal); b != nil {
			return b, nil
		}
		return nil, fmt.Errorf("paragraph %d: %w", t.Ordinal, doc.ErrNotFound)

	case t.Page > 0:
		return ctx.resolvePage(t.Page, t.Paragraph)

	case t.NewPage:
		return ctx.resolvePage(ctx.Batch.NextNewPage(), 1)
	}
	return nil, fmt.Errorf("%w: empty target", command.ErrInvalidCommand)
}

func (ctx *ExecutionContext) resolvePage(n, para int) (*doc.Block, error) {
	if para < 1 {
		para = 1
	}

	var p *doc.Page
	if ctx.Batch.IsVirtual(n) {
		if ctx.DryRun {
			return nil, fmt.Errorf("virtual page %d: %w", n, ErrDryRun)
		}
		vp, err := ctx.Batch.VirtualPage(ctx.Document, n)
		if err != nil {
			return nil, err
		}
		p = vp
	} else {
		p = ctx.Document.Page(n)
	}

	if p == nil || para > len(p.Blocks) {
		return nil, fmt.Errorf("page %d paragraph %d: %w", n, para, doc.ErrNotFound)
	}
	return p.Blocks[para-1], nil
}

// Mutate announces that the handler is about to change the given blocks.
// It moves the command to the applying state and takes a snapshot of
// each block. Handlers must not mutate when it returns an error.
func (ctx *ExecutionContext) Mutate(blocks ...*doc.Block) error {
	if ctx.DryRun {
		return ErrDryRun
	}
	if ctx.state == StatePending {
		if err := ctx.Transition(StateResolving); err != nil {
			return err
		}
	}
	if err := ctx.Transition(StateApplying); err != nil {
		return err
	}
	if ctx.Snapshot == nil {
		return nil
	}
	for _, b := range blocks {
		if b != nil {
			ctx.Snapshot(ctx.Command, b.Clone())
		}
	}
	return nil
}

// SetData sets a context data value.
func (ctx *ExecutionContext) SetData(key string, value any) {
	if ctx.Data == nil {
		ctx.Data = make(map[string]any)
	}
	ctx.Data[key] = value
}

// GetData retrieves a context data value.
func (ctx *ExecutionContext) GetData(key string) (any, bool) {
	if ctx.Data == nil {
		return nil, false
	}
	v, ok := ctx.Data[key]
	return v, ok
}
