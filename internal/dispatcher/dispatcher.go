// Package dispatcher executes structural edit commands against a session.
package dispatcher

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/dispatcher/execctx"
	"github.com/dshills/pagestorm/internal/dispatcher/handler"
	"github.com/dshills/pagestorm/internal/dispatcher/handlers/paragraph"
	"github.com/dshills/pagestorm/internal/dispatcher/handlers/text"
	"github.com/dshills/pagestorm/internal/dispatcher/hook"
	"github.com/dshills/pagestorm/internal/engine"
	"github.com/dshills/pagestorm/internal/engine/doc"
	"github.com/dshills/pagestorm/internal/logging"
)

// BatchResult is the outcome of one batch.
type BatchResult struct {
	// Results holds one result per attempted command. A failed command is
	// the last entry.
	Results []handler.Result `json:"results"`
	// Completed counts the commands that succeeded.
	Completed int `json:"completed"`
	// Aborted is set when a command failed and the rest were skipped.
	Aborted bool `json:"aborted"`
	// PlaceholdersRemoved counts unconsumed virtual-page placeholders
	// deleted at the end of the batch.
	PlaceholdersRemoved int `json:"placeholdersRemoved"`
}

// Failed returns the result of the command that aborted the batch.
func (b BatchResult) Failed() (handler.Result, bool) {
	if !b.Aborted || len(b.Results) == 0 {
		return handler.Result{}, false
	}
	return b.Results[len(b.Results)-1], true
}

// Executor routes commands to handlers and coordinates execution.
type Executor struct {
	mu sync.RWMutex

	session  *engine.Session
	registry *Registry
	config   Config
	metrics  *Metrics
	logger   *logging.Logger

	hookManager *hook.Manager
	snapshot    execctx.SnapshotFunc
}

// New creates an executor for the session with the given configuration.
// No handlers are registered; see RegisterDefaults.
func New(session *engine.Session, config Config) *Executor {
	e := &Executor{
		session:  session,
		registry: NewRegistry(),
		config:   config,
		logger:   logging.Nop(),
	}
	if config.EnableMetrics {
		e.metrics = NewMetrics()
	}
	return e
}

// NewWithDefaults creates an executor with the default configuration and
// the built-in paragraph and text handlers.
func NewWithDefaults(session *engine.Session) *Executor {
	e := New(session, DefaultConfig())
	e.RegisterDefaults()
	return e
}

// RegisterDefaults registers the built-in handlers.
func (e *Executor) RegisterDefaults() {
	e.RegisterHandler(paragraph.NewHandler())
	e.RegisterHandler(text.NewHandler())
}

// RegisterHandler registers h for every kind it can handle.
func (e *Executor) RegisterHandler(h handler.Handler) {
	for _, k := range command.Kinds() {
		if h.CanHandle(k) {
			e.registry.Register(k, h)
		}
	}
}

// RegisterHandlerFunc registers a handler function for one kind.
func (e *Executor) RegisterHandlerFunc(kind command.Kind, fn func(command.Command, *execctx.ExecutionContext) handler.Result) {
	e.registry.Register(kind, handler.NewHandlerFunc(fn))
}

// SetLogger sets the logger.
func (e *Executor) SetLogger(l *logging.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if l == nil {
		l = logging.Nop()
	}
	e.logger = l.WithComponent("dispatcher")
}

// SetSnapshot sets the function that receives a copy of every block a
// command is about to mutate.
func (e *Executor) SetSnapshot(fn execctx.SnapshotFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshot = fn
}

// Execute runs one command as a batch of one.
func (e *Executor) Execute(cmd command.Command) handler.Result {
	br, err := e.ExecuteBatch([]command.Command{cmd})
	if len(br.Results) == 0 {
		return handler.Error(err)
	}
	return br.Results[0]
}

// ExecuteBatch runs cmds in order with exclusive access to the session.
// The first failing command stops the batch; commands that already ran
// stay applied. The returned error is the failing command's
// *CommandError, or a session error such as engine.ErrReadOnly.
func (e *Executor) ExecuteBatch(cmds []command.Command) (BatchResult, error) {
	var br BatchResult
	if e.config.MaxBatchSize > 0 && len(cmds) > e.config.MaxBatchSize {
		return br, fmt.Errorf("%w: %d commands, limit %d", ErrBatchTooLarge, len(cmds), e.config.MaxBatchSize)
	}

	e.mu.RLock()
	logger, manager, snapshot := e.logger, e.hookManager, e.snapshot
	e.mu.RUnlock()

	var failure error
	err := e.session.Transact(func(tx *engine.Tx) error {
		batch := execctx.NewBatchState(tx.Document())

		for i, cmd := range cmds {
			res := e.execute(tx, batch, cmd, i, logger, manager, snapshot)
			br.Results = append(br.Results, res)
			if !res.IsOK() {
				br.Aborted = true
				failure = res.Error
				logger.Err(res.Error, "batch aborted at command %d of %d", i+1, len(cmds))
				break
			}
			br.Completed++
		}

		br.PlaceholdersRemoved = batch.Cleanup(tx.Document())
		if _, err := tx.Settle(); err != nil {
			logger.Err(err, "settle after batch")
		}
		// Cleanup may shift ids on synthesized pages.
		for i := range br.Results {
			br.Results[i].Resolve(tx.Document())
		}
		return nil
	})

	if e.metrics != nil {
		e.metrics.RecordBatch(br.Aborted)
	}
	if err != nil {
		return br, err
	}
	return br, failure
}

// execute runs one command through its lifecycle.
func (e *Executor) execute(tx *engine.Tx, batch *execctx.BatchState, cmd command.Command, index int,
	logger *logging.Logger, manager *hook.Manager, snapshot execctx.SnapshotFunc) handler.Result {
	start := time.Now()
	cmd = cmd.WithDefaults()
	d := tx.Document()

	ctx := execctx.New(d, batch, cmd).
		WithLogger(logger.WithField("command", cmd.ID)).
		WithSnapshot(snapshot)

	result := e.run(&cmd, ctx, manager)
	batch.Consume()

	if result.Status == handler.StatusError || result.Status == handler.StatusCancelled {
		_ = ctx.Transition(execctx.StateFailed)
	} else {
		for ctx.State() < execctx.StateApplying {
			_ = ctx.Transition(ctx.State() + 1)
		}
		_ = ctx.Transition(execctx.StateSucceeded)
	}

	if e.config.SettleEachCommand {
		rep, err := tx.Settle()
		if err != nil && result.IsOK() {
			result = result.WithError(err)
			result.Status = handler.StatusError
			result.Success = false
		}
		if rep.Changed() {
			result = result.WithData("pagesCreated", rep.PagesCreated).WithData("blocksMoved", rep.BlocksMoved)
		}
	}
	result.Resolve(d)

	result.CommandID = cmd.ID
	result.Kind = cmd.Kind
	result.Timestamp = start
	result.Success = result.IsOK()
	if !result.Success {
		err := result.Error
		if err == nil {
			err = errors.New(result.Message)
		}
		result = result.WithError(&CommandError{CommandID: cmd.ID, Kind: cmd.Kind, Index: index, Err: err})
	}

	if manager != nil {
		manager.RunPostExecute(&cmd, ctx, &result)
	}

	result.Duration = time.Since(start)
	if e.metrics != nil {
		e.metrics.RecordCommand(cmd.Kind, result.Duration, result.Status)
	}
	return result
}

func (e *Executor) run(cmd *command.Command, ctx *execctx.ExecutionContext, manager *hook.Manager) handler.Result {
	if err := cmd.Validate(); err != nil {
		return handler.Error(err)
	}

	if manager != nil {
		if name := manager.RunPreExecute(cmd, ctx); name != "" {
			reason := fmt.Sprintf("cancelled by hook %s", name)
			if v, ok := ctx.GetData(hook.ReasonKey); ok {
				reason = fmt.Sprintf("%s: %v", reason, v)
			}
			return handler.CancelledWithMessage(reason).WithError(fmt.Errorf("%w: %s", ErrCancelled, reason))
		}
		// Hooks may rewrite the command.
		if err := cmd.Validate(); err != nil {
			return handler.Error(err)
		}
		ctx.Command = *cmd
	}

	h := e.registry.Get(cmd.Kind)
	if h == nil {
		return handler.Error(fmt.Errorf("%w: %s", ErrNoHandler, cmd.Kind))
	}

	if e.config.RecoverFromPanic {
		return e.executeWithRecovery(h, *cmd, ctx)
	}
	return h.Handle(*cmd, ctx)
}

// executeWithRecovery executes a handler with panic recovery.
func (e *Executor) executeWithRecovery(h handler.Handler, cmd command.Command, ctx *execctx.ExecutionContext) (result handler.Result) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)
			ctx.Logger.Error("handler panic for %s: %v\n%s", cmd.Kind, r, string(stack[:n]))

			result = handler.Error(fmt.Errorf("%w: %s: %v", ErrPanic, cmd.Kind, r))

			if e.metrics != nil {
				e.metrics.RecordPanic(cmd.Kind)
			}
		}
	}()

	return h.Handle(cmd, ctx)
}

// Check resolves and validates cmds against the current document without
// changing it. Each command is checked on its own, so addresses created by
// earlier commands of the same batch do not resolve. The returned slice
// holds one error (or nil) per command.
func (e *Executor) Check(cmds []command.Command) []error {
	errs := make([]error, len(cmds))
	e.session.View(func(d *doc.Document) {
		batch := execctx.NewBatchState(d)
		for i, cmd := range cmds {
			cmd = cmd.WithDefaults()
			var err error
			if err = cmd.Validate(); err == nil {
				err = e.check(cmd, execctx.New(d, batch, cmd).WithDryRun(true))
			}
			if err != nil {
				errs[i] = &CommandError{CommandID: cmd.ID, Kind: cmd.Kind, Index: i, Err: err}
			}
		}
	})
	return errs
}

func (e *Executor) check(cmd command.Command, ctx *execctx.ExecutionContext) error {
	h := e.registry.Get(cmd.Kind)
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, cmd.Kind)
	}
	res := h.Handle(cmd, ctx)
	if res.Status == handler.StatusError && !errors.Is(res.Error, execctx.ErrDryRun) {
		return res.Error
	}
	return nil
}

// Session returns the session the executor edits.
func (e *Executor) Session() *engine.Session {
	return e.session
}

// Registry returns the handler registry.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Metrics returns the metrics collector (may be nil if disabled).
func (e *Executor) Metrics() *Metrics {
	return e.metrics
}

// Config returns the executor configuration.
func (e *Executor) Config() Config {
	return e.config
}

// HookManager returns the hook manager (may be nil).
func (e *Executor) HookManager() *hook.Manager {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hookManager
}

// SetHookManager sets the hook manager.
func (e *Executor) SetHookManager(manager *hook.Manager) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hookManager = manager
}

// EnableHookManager creates and sets a new hook manager if not already
// set. Returns the hook manager.
func (e *Executor) EnableHookManager() *hook.Manager {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.hookManager == nil {
		e.hookManager = hook.NewManager()
	}
	return e.hookManager
}
