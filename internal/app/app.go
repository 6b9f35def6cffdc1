// Package app wires the pagestorm components together and manages their
// lifecycle: configuration, logging, the editing session, the command
// system, the script runner and the HTTP server.
package app

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/dshills/pagestorm/internal/config"
	"github.com/dshills/pagestorm/internal/dispatcher"
	"github.com/dshills/pagestorm/internal/engine"
	"github.com/dshills/pagestorm/internal/logging"
	"github.com/dshills/pagestorm/internal/script"
	"github.com/dshills/pagestorm/internal/server"
)

// Application is the central coordinator for all pagestorm components.
type Application struct {
	mu sync.RWMutex

	// Core infrastructure
	config *config.Manager
	logger *logging.Logger

	// Editing components
	session *engine.Session
	system  *dispatcher.System
	runner  *script.Runner
	server  *server.Server

	metrics *Metrics

	// Document state
	docPath       string
	savedRevision uint64

	// State
	running atomic.Bool
	closed  atomic.Bool
	cleanup []func() error

	opts Options
}

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the TOML configuration file. Empty means
	// defaults and environment only.
	ConfigPath string

	// DocumentPath is the document to open. A path that does not exist
	// yet starts an empty document saved there later.
	DocumentPath string

	// LogLevel overrides logging.level and pins it against reloads.
	LogLevel string

	// LogOutput overrides logging.output.
	LogOutput io.Writer

	// Addr overrides server.addr.
	Addr string

	// ReadOnly rejects every mutation.
	ReadOnly bool
}

// New creates and bootstraps an Application. On failure every component
// already started is stopped again.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts:    opts,
		metrics: NewMetrics(),
	}
	if err := newBootstrapper(app).bootstrap(); err != nil {
		return nil, err
	}
	app.logger.Info("pagestorm ready, %d pages", app.session.Snapshot().PageCount())
	return app, nil
}

// Config returns the current configuration.
func (app *Application) Config() *config.Config {
	return app.config.Current()
}

// ConfigManager returns the configuration manager.
func (app *Application) ConfigManager() *config.Manager {
	return app.config
}

// Logger returns the root logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// Session returns the editing session.
func (app *Application) Session() *engine.Session {
	return app.session
}

// System returns the command system.
func (app *Application) System() *dispatcher.System {
	return app.system
}

// Runner returns the script runner.
func (app *Application) Runner() *script.Runner {
	return app.runner
}

// Server returns the HTTP server.
func (app *Application) Server() *server.Server {
	return app.server
}

// Metrics returns the application metrics.
func (app *Application) Metrics() *Metrics {
	return app.metrics
}

// IsRunning reports whether the server is running.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Serve runs the HTTP server on the configured address until ctx is
// cancelled. The config file is watched while it runs when
// server.watchConfig is set.
func (app *Application) Serve(ctx context.Context) error {
	return app.serve(ctx, nil)
}

// ServeListener is Serve on an existing listener.
func (app *Application) ServeListener(ctx context.Context, ln net.Listener) error {
	return app.serve(ctx, ln)
}

func (app *Application) serve(ctx context.Context, ln net.Listener) error {
	if app.closed.Load() {
		return ErrClosed
	}
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	if app.Config().Server.WatchConfig {
		if err := app.config.Start(); err != nil {
			app.logger.Err(err, "config watching disabled")
		} else {
			defer func() { _ = app.config.Stop() }()
		}
	}

	if ln != nil {
		return app.server.Serve(ctx, ln)
	}
	return app.server.ListenAndServe(ctx)
}

// Close stops every component in reverse start order. It is safe to call
// more than once.
func (app *Application) Close() error {
	if !app.closed.CompareAndSwap(false, true) {
		return nil
	}
	app.mu.Lock()
	cleanup := app.cleanup
	app.cleanup = nil
	app.mu.Unlock()

	var errs []error
	for i := len(cleanup) - 1; i >= 0; i-- {
		errs = append(errs, cleanup[i]())
	}
	return errors.Join(errs...)
}
