package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/engine/doc"
	"github.com/dshills/pagestorm/internal/logging"
)

// Runner defaults.
const (
	DefaultTimeout     = 5 * time.Second
	DefaultMaxCommands = 1000
)

// Source supplies the document a script reads.
type Source interface {
	Snapshot() *doc.Document
}

// Result is the outcome of a script run.
type Result struct {
	// Commands is the batch the script built, in emission order.
	Commands []command.Command
	// Output holds the lines the script printed.
	Output []string
	// Duration is the wall time of the run.
	Duration time.Duration
}

// Runner executes edit scripts. A Runner is safe for concurrent use; each
// run gets its own Lua state.
type Runner struct {
	logger      *logging.Logger
	timeout     time.Duration
	maxCommands int
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTimeout bounds every run. Zero disables the bound; the caller's
// context still applies.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithMaxCommands caps the commands one run may emit. Zero removes the cap.
func WithMaxCommands(n int) Option {
	return func(r *Runner) {
		r.maxCommands = n
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger:      logging.Nop(),
		timeout:     DefaultTimeout,
		maxCommands: DefaultMaxCommands,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("script")
	return r
}

// Run executes source against a snapshot of src's document.
func (r *Runner) Run(ctx context.Context, src Source, name, source string) (Result, error) {
	if src == nil {
		return Result{}, &ScriptError{Name: name, Err: ErrNoDocument}
	}
	return r.RunDocument(ctx, src.Snapshot(), name, source)
}

// RunFile reads and executes the script at path.
func (r *Runner) RunFile(ctx context.Context, src Source, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, &ScriptError{Name: filepath.Base(path), Err: err}
	}
	return r.Run(ctx, src, filepath.Base(path), string(data))
}

// RunDocument executes source against d. The script sees d read-only.
func (r *Runner) RunDocument(ctx context.Context, d *doc.Document, name, source string) (Result, error) {
	if d == nil {
		return Result{}, &ScriptError{Name: name, Err: ErrNoDocument}
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	state := NewState(r.logger.WithField("script", name))
	defer state.Close()

	bridge := NewBridge(state.L)
	docs := &docModule{d: d, bridge: bridge}
	out := &emitter{max: r.maxCommands}
	state.RegisterModule("doc", docs.funcs())
	state.RegisterModule("cmd", out.funcs())

	err := state.DoString(ctx, source)
	res := Result{
		Output:   state.Output(),
		Duration: time.Since(start),
	}
	if err != nil {
		if out.err != nil {
			err = fmt.Errorf("%w (%v)", out.err, err)
		}
		r.logger.Err(err, "script %s failed", name)
		return res, &ScriptError{Name: name, Err: err}
	}

	res.Commands = out.commands
	r.logger.Info("script %s built %d commands in %s", name, len(res.Commands), res.Duration)
	return res, nil
}
