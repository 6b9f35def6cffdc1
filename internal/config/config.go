package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/pagestorm/internal/config/layer"
	"github.com/dshills/pagestorm/internal/config/loader"
	"github.com/dshills/pagestorm/internal/config/watcher"
	"github.com/dshills/pagestorm/internal/layout"
	"github.com/dshills/pagestorm/internal/logging"
)

// Config is the complete pagestorm configuration.
type Config struct {
	Page     PageConfig     `toml:"page"`
	Reflow   ReflowConfig   `toml:"reflow"`
	Commands CommandsConfig `toml:"commands"`
	Logging  LoggingConfig  `toml:"logging"`
	Server   ServerConfig   `toml:"server"`

	// raw is the merged map the config was decoded from.
	raw map[string]any
}

// PageConfig is the terminal page geometry.
type PageConfig struct {
	Width       int  `toml:"width"`
	Height      int  `toml:"height"`
	TabWidth    int  `toml:"tabWidth"`
	WrapAtWord  bool `toml:"wrapAtWord"`
	ImageRows   int  `toml:"imageRows"`
	IndentCells int  `toml:"indentCells"`
	HeadingGap  int  `toml:"headingGap"`
	CacheSize   int  `toml:"cacheSize"`
}

// Layout returns the measurer configuration.
func (p PageConfig) Layout() layout.Config {
	return layout.Config{
		Width:       p.Width,
		Height:      p.Height,
		TabWidth:    p.TabWidth,
		WrapAtWord:  p.WrapAtWord,
		ImageRows:   p.ImageRows,
		IndentCells: p.IndentCells,
		HeadingGap:  p.HeadingGap,
		CacheSize:   p.CacheSize,
	}
}

// ReflowConfig controls automatic reflow.
type ReflowConfig struct {
	// Auto reflows the document after every mutation.
	Auto bool `toml:"auto"`
}

// CommandsConfig controls the command executor.
type CommandsConfig struct {
	MaxBatchSize      int  `toml:"maxBatchSize"`
	SettleEachCommand bool `toml:"settleEachCommand"`
	RecoverFromPanic  bool `toml:"recoverFromPanic"`
	Metrics           bool `toml:"metrics"`
	Audit             bool `toml:"audit"`
	Journal           bool `toml:"journal"`
	JournalSize       int  `toml:"journalSize"`
	// TextOnly rejects structural commands.
	TextOnly bool `toml:"textOnly"`
	// MaxTextLength caps the text a command may carry; 0 is unlimited.
	MaxTextLength int `toml:"maxTextLength"`
	// SlowCommand is the duration at which a command is logged as slow;
	// "0s" disables the warning.
	SlowCommand string `toml:"slowCommand"`
}

// SlowThreshold returns SlowCommand as a duration.
func (c CommandsConfig) SlowThreshold() time.Duration {
	d, _ := time.ParseDuration(c.SlowCommand)
	return d
}

// LoggingConfig controls the logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// Output is "stderr", "stdout", or a file path.
	Output string `toml:"output"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr            string `toml:"addr"`
	ReadTimeout     string `toml:"readTimeout"`
	WriteTimeout    string `toml:"writeTimeout"`
	ShutdownTimeout string `toml:"shutdownTimeout"`
	MaxBodyBytes    int64  `toml:"maxBodyBytes"`
	// WatchConfig reloads the config file when it changes.
	WatchConfig bool `toml:"watchConfig"`
}

// Timeouts returns the parsed server timeouts. Unparsable values, which
// Validate rejects, read as zero.
func (s ServerConfig) Timeouts() (read, write, shutdown time.Duration) {
	read, _ = time.ParseDuration(s.ReadTimeout)
	write, _ = time.ParseDuration(s.WriteTimeout)
	shutdown, _ = time.ParseDuration(s.ShutdownTimeout)
	return read, write, shutdown
}

// Default returns the built-in configuration.
func Default() *Config {
	lc := layout.DefaultConfig()
	return &Config{
		Page: PageConfig{
			Width:       lc.Width,
			Height:      lc.Height,
			TabWidth:    lc.TabWidth,
			WrapAtWord:  lc.WrapAtWord,
			ImageRows:   lc.ImageRows,
			IndentCells: lc.IndentCells,
			HeadingGap:  lc.HeadingGap,
			CacheSize:   lc.CacheSize,
		},
		Reflow: ReflowConfig{Auto: true},
		Commands: CommandsConfig{
			MaxBatchSize:      10000,
			SettleEachCommand: true,
			RecoverFromPanic:  true,
			Metrics:           true,
			Audit:             true,
			Journal:           true,
			JournalSize:       1000,
			SlowCommand:       "250ms",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: string(logging.FormatConsole),
			Output: "stderr",
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:7878",
			ReadTimeout:     "10s",
			WriteTimeout:    "30s",
			ShutdownTimeout: "5s",
			MaxBodyBytes:    8 << 20,
			WatchConfig:     true,
		},
	}
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var v ValidationError

	if c.Page.Width < 1 {
		v.add("page.width must be positive, got %d", c.Page.Width)
	}
	if c.Page.Height < 1 {
		v.add("page.height must be positive, got %d", c.Page.Height)
	}
	if c.Page.TabWidth < 1 {
		v.add("page.tabWidth must be positive, got %d", c.Page.TabWidth)
	}
	if c.Page.ImageRows < 1 {
		v.add("page.imageRows must be positive, got %d", c.Page.ImageRows)
	}
	if c.Page.IndentCells < 0 || c.Page.HeadingGap < 0 || c.Page.CacheSize < 0 {
		v.add("page.indentCells, page.headingGap and page.cacheSize must not be negative")
	}

	if c.Commands.MaxBatchSize < 0 {
		v.add("commands.maxBatchSize must not be negative, got %d", c.Commands.MaxBatchSize)
	}
	if c.Commands.JournalSize < 0 {
		v.add("commands.journalSize must not be negative, got %d", c.Commands.JournalSize)
	}
	if c.Commands.MaxTextLength < 0 {
		v.add("commands.maxTextLength must not be negative, got %d", c.Commands.MaxTextLength)
	}
	if d, err := time.ParseDuration(c.Commands.SlowCommand); err != nil || d < 0 {
		v.add("commands.slowCommand %q is not a duration", c.Commands.SlowCommand)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		v.add("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch logging.Format(c.Logging.Format) {
	case logging.FormatJSON, logging.FormatConsole:
	default:
		v.add("logging.format %q is not json or console", c.Logging.Format)
	}
	if c.Logging.Output == "" {
		v.add("logging.output must not be empty")
	}

	if c.Server.Addr == "" {
		v.add("server.addr must not be empty")
	}
	for name, s := range map[string]string{
		"server.readTimeout":     c.Server.ReadTimeout,
		"server.writeTimeout":    c.Server.WriteTimeout,
		"server.shutdownTimeout": c.Server.ShutdownTimeout,
	} {
		if d, err := time.ParseDuration(s); err != nil || d < 0 {
			v.add("%s %q is not a duration", name, s)
		}
	}
	if c.Server.MaxBodyBytes < 1 {
		v.add("server.maxBodyBytes must be positive, got %d", c.Server.MaxBodyBytes)
	}

	return v.err()
}

// LoggerConfig returns the logger configuration. When Output names a
// file, it is opened for appending and the returned closer closes it.
func (l LoggingConfig) LoggerConfig() (logging.LoggerConfig, io.Closer, error) {
	cfg := logging.LoggerConfig{
		Level:  logging.ParseLogLevel(l.Level),
		Prefix: "pagestorm",
		Format: logging.Format(l.Format),
	}
	switch l.Output {
	case "", "stderr":
		cfg.Output = os.Stderr
	case "stdout":
		cfg.Output = os.Stdout
	default:
		f, err := os.OpenFile(l.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return cfg, nil, fmt.Errorf("open log output: %w", err)
		}
		cfg.Output = f
		return cfg, f, nil
	}
	return cfg, nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Map returns a copy of the merged settings map.
func (c *Config) Map() map[string]any {
	return layer.Clone(c.raw)
}

// Get returns the merged value at a dotted path such as "page.width".
func (c *Config) Get(path string) (any, bool) {
	return layer.GetByPath(c.raw, path)
}

// Loader reads the layered configuration.
type Loader struct {
	// Path is the config file. Empty means defaults and environment only.
	Path string
	// FS reads the config file; nil means the OS file system.
	FS loader.FileSystem
	// Env reads the environment; nil means PAGESTORM_ variables.
	Env *loader.EnvLoader
}

// Load reads the configuration with the default environment prefix.
func Load(path string) (*Config, error) {
	return Loader{Path: path}.Load()
}

// Load merges defaults, the config file and the environment, decodes the
// result and validates it.
func (l Loader) Load() (*Config, error) {
	defaults, err := toMap(Default())
	if err != nil {
		return nil, err
	}

	var file map[string]any
	if l.Path != "" {
		fsys := l.FS
		if fsys == nil {
			fsys = loader.DefaultFS()
		}
		if _, err := fsys.ReadFile(l.Path); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, l.Path)
		}
		file, err = loader.NewTOMLLoaderWithFS(fsys, l.Path).Load()
		if err != nil {
			return nil, err
		}
		if err := checkKnown(file); err != nil {
			return nil, fmt.Errorf("%s: %w", l.Path, err)
		}
	}

	env := l.Env
	if env == nil {
		env = loader.NewEnvLoader(loader.DefaultPrefix)
	}
	envMap, err := env.Load()
	if err != nil {
		return nil, err
	}

	merged := layer.Merge(defaults, file, envMap)
	cfg, err := decode(merged, false)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// checkKnown rejects settings that do not exist, so typos in the config
// file are reported instead of silently ignored.
func checkKnown(m map[string]any) error {
	_, err := decode(m, true)
	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, strings.TrimSpace(strict.String()))
	}
	return err
}

func decode(m map[string]any, strict bool) (*Config, error) {
	data, err := toml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	cfg := &Config{}
	dec := toml.NewDecoder(bytes.NewReader(data))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	cfg.raw = m
	return cfg, nil
}

func toMap(c *Config) (map[string]any, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode defaults: %w", err)
	}
	return m, nil
}

// ChangeHandler receives the previous and the new configuration and the
// sorted setting paths that differ.
type ChangeHandler func(old, new *Config, changed []string)

// Manager holds the current configuration and reloads it when the config
// file changes.
type Manager struct {
	mu sync.RWMutex

	loader   Loader
	current  *Config
	logger   *logging.Logger
	handlers []ChangeHandler
	watcher  *watcher.Watcher
}

// NewManager loads the configuration at path.
func NewManager(path string, logger *logging.Logger) (*Manager, error) {
	return NewManagerWithLoader(Loader{Path: path}, logger)
}

// NewManagerWithLoader loads the configuration with l.
func NewManagerWithLoader(l Loader, logger *logging.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	cfg, err := l.Load()
	if err != nil {
		return nil, err
	}
	return &Manager{
		loader:  l,
		current: cfg,
		logger:  logger.WithComponent("config"),
	}, nil
}

// SetLogger replaces the logger. The configuration usually decides the
// logger, so it is set after the first load.
func (m *Manager) SetLogger(l *logging.Logger) {
	if l == nil {
		l = logging.Nop()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = l.WithComponent("config")
}

// Current returns the current configuration. It must not be modified.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Manager) log() *logging.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.logger
}

// OnChange registers a handler called after a successful reload that
// changed at least one setting.
func (m *Manager) OnChange(fn ChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, fn)
}

// Reload reads the configuration again. On failure the current
// configuration is kept and the error returned.
func (m *Manager) Reload() error {
	cfg, err := m.loader.Load()
	if err != nil {
		m.log().Err(err, "config reload failed, keeping current settings")
		return err
	}

	m.mu.Lock()
	old := m.current
	added, modified, removed := layer.DiffMaps(old.raw, cfg.raw)
	changed := append(append(added, modified...), removed...)
	if len(changed) == 0 {
		m.mu.Unlock()
		return nil
	}
	m.current = cfg
	handlers := append([]ChangeHandler(nil), m.handlers...)
	m.mu.Unlock()

	m.log().Info("config reloaded, %d settings changed: %s", len(changed), strings.Join(changed, ", "))
	for _, fn := range handlers {
		fn(old, cfg, changed)
	}
	return nil
}

// Start watches the config file and reloads on change. It is a no-op
// without a config file.
func (m *Manager) Start() error {
	if m.loader.Path == "" {
		return nil
	}

	w, err := watcher.New(watcher.WithErrorHandler(func(err error) {
		m.log().Err(err, "config watcher")
	}))
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Watch(m.loader.Path); err != nil {
		_ = w.Stop()
		return fmt.Errorf("watch %s: %w", m.loader.Path, err)
	}
	w.OnChange(func(e watcher.Event) {
		if e.Op == watcher.OpRemove {
			m.log().Warn("config file %s removed, keeping current settings", e.Path)
			return
		}
		_ = m.Reload()
	})
	w.Start()

	m.mu.Lock()
	m.watcher = w
	m.mu.Unlock()
	return nil
}

// Stop stops watching the config file.
func (m *Manager) Stop() error {
	m.mu.Lock()
	w := m.watcher
	m.watcher = nil
	m.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Stop()
}
