package dispatcher

// Config holds executor configuration options.
type Config struct {
	// EnableMetrics enables per-kind timing and statistics collection.
	EnableMetrics bool

	// RecoverFromPanic wraps handler execution in panic recovery.
	RecoverFromPanic bool

	// MaxBatchSize limits the number of commands in one batch.
	// Zero means no limit.
	MaxBatchSize int

	// SettleEachCommand renumbers and reflows after every command so the
	// next command sees settled ids. When false the document settles once
	// at the end of the batch.
	SettleEachCommand bool
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EnableMetrics:     false,
		RecoverFromPanic:  true,
		MaxBatchSize:      10000,
		SettleEachCommand: true,
	}
}

// WithMetrics returns a copy of the config with metrics enabled.
func (c Config) WithMetrics() Config {
	c.EnableMetrics = true
	return c
}

// WithPanicRecovery returns a copy of the config with panic recovery set.
func (c Config) WithPanicRecovery(recover bool) Config {
	c.RecoverFromPanic = recover
	return c
}

// WithMaxBatchSize returns a copy of the config with the batch limit set.
func (c Config) WithMaxBatchSize(max int) Config {
	c.MaxBatchSize = max
	return c
}

// WithSettleEachCommand returns a copy of the config with per-command
// settling set.
func (c Config) WithSettleEachCommand(settle bool) Config {
	c.SettleEachCommand = settle
	return c
}
