package app

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/dshills/pagestorm/internal/config"
	"github.com/dshills/pagestorm/internal/dispatcher"
	"github.com/dshills/pagestorm/internal/docio"
	"github.com/dshills/pagestorm/internal/engine"
	"github.com/dshills/pagestorm/internal/engine/doc"
	"github.com/dshills/pagestorm/internal/layout"
	"github.com/dshills/pagestorm/internal/logging"
	"github.com/dshills/pagestorm/internal/script"
	"github.com/dshills/pagestorm/internal/server"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

func newBootstrapper(app *Application) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      app.opts,
		initOrder: make([]string, 0, 6),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []struct {
		name string
		init func() error
	}{
		{"config", b.initConfig},
		{"logging", b.initLogging},
		{"session", b.initSession},
		{"commands", b.initCommands},
		{"scripts", b.initScripts},
		{"server", b.initServer},
	}
	for _, step := range steps {
		if err := step.init(); err != nil {
			_ = b.app.Close()
			return &ComponentError{Component: step.name, Action: "init", Err: err}
		}
		b.initOrder = append(b.initOrder, step.name)
	}
	b.app.config.OnChange(b.app.configChanged)
	b.app.logger.Debug("initialized %s", strings.Join(b.initOrder, ", "))
	return nil
}

func (b *bootstrapper) onCleanup(fn func() error) {
	b.app.cleanup = append(b.app.cleanup, fn)
}

func (b *bootstrapper) initConfig() error {
	m, err := config.NewManager(b.opts.ConfigPath, nil)
	if err != nil {
		return err
	}
	b.app.config = m
	b.onCleanup(m.Stop)
	return nil
}

func (b *bootstrapper) initLogging() error {
	cfg := b.app.config.Current().Logging
	lc, closer, err := cfg.LoggerConfig()
	if err != nil {
		return err
	}
	if b.opts.LogOutput != nil {
		_ = closer.Close()
		lc.Output = b.opts.LogOutput
	} else {
		b.onCleanup(closer.Close)
	}
	if b.opts.LogLevel != "" {
		lc.Level = logging.ParseLogLevel(b.opts.LogLevel)
	}

	b.app.logger = logging.NewLogger(lc)
	b.app.config.SetLogger(b.app.logger)
	return nil
}

func (b *bootstrapper) initSession() error {
	cfg := b.app.config.Current()

	var d *doc.Document
	if path := b.opts.DocumentPath; path != "" {
		loaded, err := docio.LoadDocument(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			b.app.logger.Info("%s does not exist, starting a new document", path)
		case err != nil:
			return NewOperationError("load", path, err)
		default:
			d = loaded
		}
		b.app.docPath = path
	}

	opts := []engine.Option{
		engine.WithMeasurer(layout.NewMeasurer(cfg.Page.Layout())),
		engine.WithLogger(b.app.logger),
		engine.WithAutoReflow(cfg.Reflow.Auto),
	}
	if d != nil {
		opts = append(opts, engine.WithDocument(d))
	}
	if b.opts.ReadOnly {
		opts = append(opts, engine.WithReadOnly())
	}
	b.app.session = engine.New(opts...)
	b.app.savedRevision = b.app.session.Revision()
	return nil
}

func (b *bootstrapper) initCommands() error {
	c := b.app.config.Current().Commands

	exec := dispatcher.DefaultConfig().
		WithPanicRecovery(c.RecoverFromPanic).
		WithMaxBatchSize(c.MaxBatchSize).
		WithSettleEachCommand(c.SettleEachCommand)
	if c.Metrics {
		exec = exec.WithMetrics()
	}

	b.app.system = dispatcher.NewSystem(b.app.session, dispatcher.SystemConfig{
		ExecutorConfig:    exec,
		Logger:            b.app.logger,
		EnableAudit:       c.Audit,
		EnableJournal:     c.Journal,
		JournalMaxChanges: c.JournalSize,
		TextOnly:          c.TextOnly,
		MaxTextLength:     c.MaxTextLength,
		SlowCommand:       c.SlowThreshold(),
	})
	return nil
}

func (b *bootstrapper) initScripts() error {
	b.app.runner = script.NewRunner(
		script.WithLogger(b.app.logger),
		script.WithMaxCommands(b.app.config.Current().Commands.MaxBatchSize),
	)
	return nil
}

func (b *bootstrapper) initServer() error {
	sc := b.app.config.Current().Server
	read, write, shutdown := sc.Timeouts()

	cfg := server.Config{
		Addr:            sc.Addr,
		ReadTimeout:     read,
		WriteTimeout:    write,
		ShutdownTimeout: shutdown,
		MaxBodyBytes:    sc.MaxBodyBytes,
	}
	if b.opts.Addr != "" {
		cfg.Addr = b.opts.Addr
	}
	b.app.server = server.New(b.app.system, b.app.runner, cfg, b.app.logger)
	return nil
}

// configChanged applies settings that can change at run time. The rest
// are reported as needing a restart.
func (app *Application) configChanged(_, cfg *config.Config, changed []string) {
	app.metrics.RecordReload()

	var restart []string
	for _, key := range changed {
		switch key {
		case "logging.level":
			if app.opts.LogLevel != "" {
				continue
			}
			level := logging.ParseLogLevel(cfg.Logging.Level)
			app.logger.SetLevel(level)
			app.logger.Info("log level set to %s", level)
		default:
			restart = append(restart, key)
		}
	}
	if len(restart) > 0 {
		app.logger.Warn("settings take effect after restart: %s", strings.Join(restart, ", "))
	}
}
