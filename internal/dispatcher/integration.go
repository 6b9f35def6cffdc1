package dispatcher

import (
	"time"

	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/dispatcher/handler"
	"github.com/dshills/pagestorm/internal/dispatcher/hook"
	"github.com/dshills/pagestorm/internal/engine"
	"github.com/dshills/pagestorm/internal/logging"
)

// System bundles an executor with its standard hooks so a host can
// run commands against a session with one call.
type System struct {
	executor    *Executor
	hookManager *hook.Manager
	journal     *hook.JournalHook
	config      SystemConfig
}

// SystemConfig holds configuration for the command system.
type SystemConfig struct {
	// ExecutorConfig is the underlying executor configuration.
	ExecutorConfig Config

	// Logger receives audit and failure logs. Nil disables logging.
	Logger *logging.Logger

	// EnableAudit logs every command at debug level.
	EnableAudit bool

	// EnableJournal keeps a bounded log of applied edits.
	EnableJournal bool

	// JournalMaxChanges limits stored journal records.
	JournalMaxChanges int

	// TextOnly blocks structural commands.
	TextOnly bool

	// MaxTextLength cancels commands carrying longer text. Zero means no
	// limit.
	MaxTextLength int

	// SlowCommand logs a warning for commands at least this slow. Zero
	// disables timing.
	SlowCommand time.Duration
}

// DefaultSystemConfig returns a configuration with sensible defaults.
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		ExecutorConfig:    DefaultConfig().WithMetrics(),
		EnableAudit:       true,
		EnableJournal:     true,
		JournalMaxChanges: 1000,
	}
}

// NewSystem creates a command system for the session.
func NewSystem(session *engine.Session, config SystemConfig) *System {
	s := &System{
		config:   config,
		executor: New(session, config.ExecutorConfig),
	}
	s.executor.RegisterDefaults()
	s.executor.SetLogger(config.Logger)
	s.initializeHooks(config)
	return s
}

// NewSystemWithDefaults creates a system with default configuration.
func NewSystemWithDefaults(session *engine.Session) *System {
	return NewSystem(session, DefaultSystemConfig())
}

func (s *System) initializeHooks(config SystemConfig) {
	s.hookManager = hook.NewManager()
	s.executor.SetHookManager(s.hookManager)

	if config.EnableAudit {
		s.hookManager.Register(hook.NewAuditHook(config.Logger))
	}
	if config.TextOnly {
		s.hookManager.RegisterPre(hook.NewTextOnlyHook())
	}
	if config.MaxTextLength > 0 {
		s.hookManager.RegisterPre(hook.NewMaxTextHook(config.MaxTextLength))
	}
	if config.SlowCommand > 0 {
		s.hookManager.Register(hook.NewSlowCommandHook(config.Logger, config.SlowCommand))
	}
	if config.EnableJournal {
		s.journal = hook.NewJournalHook(config.JournalMaxChanges)
		s.hookManager.RegisterPost(s.journal)
	}
}

// Execute runs one command.
func (s *System) Execute(cmd command.Command) handler.Result {
	return s.executor.Execute(cmd)
}

// ExecuteBatch runs a fail-fast batch.
func (s *System) ExecuteBatch(cmds []command.Command) (BatchResult, error) {
	return s.executor.ExecuteBatch(cmds)
}

// Check validates cmds against the current document without applying
// them.
func (s *System) Check(cmds []command.Command) []error {
	return s.executor.Check(cmds)
}

// Executor returns the underlying executor.
func (s *System) Executor() *Executor {
	return s.executor
}

// Session returns the edited session.
func (s *System) Session() *engine.Session {
	return s.executor.Session()
}

// HookManager returns the hook manager.
func (s *System) HookManager() *hook.Manager {
	return s.hookManager
}

// Journal returns the journal hook (may be nil if disabled).
func (s *System) Journal() *hook.JournalHook {
	return s.journal
}

// Metrics returns the metrics collector (may be nil if disabled).
func (s *System) Metrics() *Metrics {
	return s.executor.Metrics()
}

// Config returns the system configuration.
func (s *System) Config() SystemConfig {
	return s.config
}
