// Package hook provides pre/post execution hooks for the command executor.
package hook

import (
	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/dispatcher/execctx"
	"github.com/dshills/pagestorm/internal/dispatcher/handler"
)

// Hook is the base interface for all execution hooks.
type Hook interface {
	// Name returns a unique identifier for this hook.
	Name() string

	// Priority returns the hook priority.
	// Higher values run first for pre-hooks, last for post-hooks.
	// Standard priorities:
	//   1000+ = system hooks
	//   500-999 = policy hooks
	//   100-499 = script hooks
	//   0-99 = user hooks
	Priority() int
}

// PreExecuteHook is called before a command is executed.
type PreExecuteHook interface {
	Hook

	// PreExecute may modify the command before its target is resolved.
	// Returns false to cancel the command.
	PreExecute(cmd *command.Command, ctx *execctx.ExecutionContext) bool
}

// PostExecuteHook is called after a command has executed and the
// document has settled.
type PostExecuteHook interface {
	Hook

	// PostExecute may inspect or modify the result.
	PostExecute(cmd *command.Command, ctx *execctx.ExecutionContext, result *handler.Result)
}

// PreExecuteFunc wraps a function as a PreExecuteHook.
type PreExecuteFunc struct {
	name     string
	priority int
	fn       func(cmd *command.Command, ctx *execctx.ExecutionContext) bool
}

// NewPreExecuteFunc creates a new PreExecuteFunc hook.
func NewPreExecuteFunc(name string, priority int, fn func(cmd *command.Command, ctx *execctx.ExecutionContext) bool) *PreExecuteFunc {
	return &PreExecuteFunc{
		name:     name,
		priority: priority,
		fn:       fn,
	}
}

// Name implements Hook.
func (f *PreExecuteFunc) Name() string { return f.name }

// Priority implements Hook.
func (f *PreExecuteFunc) Priority() int { return f.priority }

// PreExecute implements PreExecuteHook.
func (f *PreExecuteFunc) PreExecute(cmd *command.Command, ctx *execctx.ExecutionContext) bool {
	if f.fn == nil {
		return true
	}
	return f.fn(cmd, ctx)
}

// PostExecuteFunc wraps a function as a PostExecuteHook.
type PostExecuteFunc struct {
	name     string
	priority int
	fn       func(cmd *command.Command, ctx *execctx.ExecutionContext, result *handler.Result)
}

// NewPostExecuteFunc creates a new PostExecuteFunc hook.
func NewPostExecuteFunc(name string, priority int, fn func(cmd *command.Command, ctx *execctx.ExecutionContext, result *handler.Result)) *PostExecuteFunc {
	return &PostExecuteFunc{
		name:     name,
		priority: priority,
		fn:       fn,
	}
}

// Name implements Hook.
func (f *PostExecuteFunc) Name() string { return f.name }

// Priority implements Hook.
func (f *PostExecuteFunc) Priority() int { return f.priority }

// PostExecute implements PostExecuteHook.
func (f *PostExecuteFunc) PostExecute(cmd *command.Command, ctx *execctx.ExecutionContext, result *handler.Result) {
	if f.fn != nil {
		f.fn(cmd, ctx, result)
	}
}

// CombinedHook implements both PreExecuteHook and PostExecuteHook.
type CombinedHook interface {
	PreExecuteHook
	PostExecuteHook
}
