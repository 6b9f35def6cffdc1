// Package handler provides the handler interface and result types for
// command execution.
package handler

import (
	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/dispatcher/execctx"
)

// Handler applies commands of one or more kinds.
type Handler interface {
	// Handle executes the command and returns a result.
	Handle(cmd command.Command, ctx *execctx.ExecutionContext) Result

	// CanHandle returns true if this handler can process the kind.
	CanHandle(kind command.Kind) bool

	// Priority returns the handler priority (higher = checked first).
	Priority() int
}

// HandlerFunc is a function adapter for Handler interface.
type HandlerFunc struct {
	fn   func(cmd command.Command, ctx *execctx.ExecutionContext) Result
	prio int
}

// NewHandlerFunc creates a HandlerFunc from a function.
func NewHandlerFunc(fn func(cmd command.Command, ctx *execctx.ExecutionContext) Result) *HandlerFunc {
	return &HandlerFunc{fn: fn}
}

// NewHandlerFuncWithPriority creates a HandlerFunc with a specified priority.
func NewHandlerFuncWithPriority(fn func(cmd command.Command, ctx *execctx.ExecutionContext) Result, priority int) *HandlerFunc {
	return &HandlerFunc{fn: fn, prio: priority}
}

// Handle implements Handler.Handle.
func (f *HandlerFunc) Handle(cmd command.Command, ctx *execctx.ExecutionContext) Result {
	if f.fn == nil {
		return Errorf("handler function is nil")
	}
	return f.fn(cmd, ctx)
}

// CanHandle implements Handler.CanHandle.
// HandlerFunc always returns true; caller must ensure correct routing.
func (f *HandlerFunc) CanHandle(command.Kind) bool {
	return true
}

// Priority implements Handler.Priority.
func (f *HandlerFunc) Priority() int {
	return f.prio
}

// KindHandler handles a fixed set of kinds through one function per kind.
type KindHandler struct {
	name  string
	kinds map[command.Kind]func(cmd command.Command, ctx *execctx.ExecutionContext) Result
}

// NewKindHandler creates an empty KindHandler.
func NewKindHandler(name string) *KindHandler {
	return &KindHandler{
		name:  name,
		kinds: make(map[command.Kind]func(cmd command.Command, ctx *execctx.ExecutionContext) Result),
	}
}

// Register registers the function for a kind.
func (h *KindHandler) Register(kind command.Kind, fn func(cmd command.Command, ctx *execctx.ExecutionContext) Result) {
	h.kinds[kind] = fn
}

// Name returns the handler name.
func (h *KindHandler) Name() string {
	return h.name
}

// Kinds returns the registered kinds.
func (h *KindHandler) Kinds() []command.Kind {
	out := make([]command.Kind, 0, len(h.kinds))
	for _, k := range command.Kinds() {
		if _, ok := h.kinds[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// CanHandle implements Handler.CanHandle.
func (h *KindHandler) CanHandle(kind command.Kind) bool {
	_, ok := h.kinds[kind]
	return ok
}

// Handle implements Handler.Handle.
func (h *KindHandler) Handle(cmd command.Command, ctx *execctx.ExecutionContext) Result {
	fn, ok := h.kinds[cmd.Kind]
	if !ok {
		return Errorf("unknown %s command: %s", h.name, cmd.Kind)
	}
	return fn(cmd, ctx)
}

// Priority implements Handler.Priority.
func (h *KindHandler) Priority() int {
	return 0
}
