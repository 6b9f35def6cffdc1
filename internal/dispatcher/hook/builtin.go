package hook

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/dispatcher/execctx"
	"github.com/dshills/pagestorm/internal/dispatcher/handler"
	"github.com/dshills/pagestorm/internal/logging"
)

// Standard hook priorities.
const (
	PriorityAudit      = 1000 // Runs first (pre) / last (post)
	PriorityFilter     = 900
	PriorityValidation = 800
	PriorityJournal    = 100
)

// Context data keys written by the built-in hooks.
const (
	// ReasonKey holds the reason a hook gave for cancelling a command.
	ReasonKey = "cancel_reason"

	timingStartKey = "_timing_start"
)

// AuditHook logs every executed command.
type AuditHook struct {
	logger *logging.Logger
}

// NewAuditHook creates an audit hook with the given logger.
func NewAuditHook(logger *logging.Logger) *AuditHook {
	if logger == nil {
		logger = logging.Nop()
	}
	return &AuditHook{logger: logger.WithComponent("audit")}
}

// Name implements Hook.
func (h *AuditHook) Name() string { return "audit" }

// Priority implements Hook.
func (h *AuditHook) Priority() int { return PriorityAudit }

// PreExecute logs the command being executed.
func (h *AuditHook) PreExecute(cmd *command.Command, ctx *execctx.ExecutionContext) bool {
	h.logger.Debug("command %s %s target %s", cmd.ID, cmd.Kind, cmd.Target)
	return true
}

// PostExecute logs the result.
func (h *AuditHook) PostExecute(cmd *command.Command, ctx *execctx.ExecutionContext, result *handler.Result) {
	if result.Status == handler.StatusError {
		h.logger.Err(result.Error, "command %s %s failed", cmd.ID, cmd.Kind)
		return
	}
	h.logger.Debug("command %s %s %s, affected %v", cmd.ID, cmd.Kind, result.Status, result.AffectedIDs)
}

// KindFilterHook allows or blocks commands by kind.
type KindFilterHook struct {
	name    string
	allowed map[command.Kind]bool
	reason  string
}

// NewKindFilterHook creates a filter that lets only the given kinds
// through.
func NewKindFilterHook(name, reason string, allowed ...command.Kind) *KindFilterHook {
	h := &KindFilterHook{name: name, reason: reason, allowed: make(map[command.Kind]bool, len(allowed))}
	for _, k := range allowed {
		h.allowed[k] = true
	}
	return h
}

// NewTextOnlyHook creates a filter that blocks structural commands, so
// pagination can only change through reflow.
func NewTextOnlyHook() *KindFilterHook {
	var text []command.Kind
	for _, k := range command.Kinds() {
		if k.IsText() {
			text = append(text, k)
		}
	}
	return NewKindFilterHook("text-only", "structural edits are disabled", text...)
}

// Name implements Hook.
func (h *KindFilterHook) Name() string { return h.name }

// Priority implements Hook.
func (h *KindFilterHook) Priority() int { return PriorityFilter }

// PreExecute cancels commands whose kind is not allowed.
func (h *KindFilterHook) PreExecute(cmd *command.Command, ctx *execctx.ExecutionContext) bool {
	if h.allowed[cmd.Kind] {
		return true
	}
	if h.reason != "" {
		ctx.SetData(ReasonKey, h.reason)
	}
	return false
}

// ValidationHook validates commands before execution using a custom
// function.
type ValidationHook struct {
	name     string
	priority int
	validate func(cmd *command.Command, ctx *execctx.ExecutionContext) error
}

// NewValidationHook creates a validation hook.
func NewValidationHook(name string, priority int, validate func(*command.Command, *execctx.ExecutionContext) error) *ValidationHook {
	return &ValidationHook{
		name:     name,
		priority: priority,
		validate: validate,
	}
}

// Name implements Hook.
func (h *ValidationHook) Name() string { return h.name }

// Priority implements Hook.
func (h *ValidationHook) Priority() int { return h.priority }

// PreExecute validates the command and cancels it if invalid.
func (h *ValidationHook) PreExecute(cmd *command.Command, ctx *execctx.ExecutionContext) bool {
	if h.validate == nil {
		return true
	}
	if err := h.validate(cmd, ctx); err != nil {
		ctx.SetData(ReasonKey, err.Error())
		return false
	}
	return true
}

// TimingHook measures command execution time, including settling.
// Start times live on the ExecutionContext so concurrent executors and
// cancelled commands leave nothing behind.
type TimingHook struct {
	callback func(kind command.Kind, duration time.Duration)
}

// NewTimingHook creates a timing hook.
func NewTimingHook(callback func(kind command.Kind, duration time.Duration)) *TimingHook {
	return &TimingHook{callback: callback}
}

// Name implements Hook.
func (h *TimingHook) Name() string { return "timing" }

// Priority implements Hook.
func (h *TimingHook) Priority() int { return PriorityAudit }

// PreExecute records the start time on the context.
func (h *TimingHook) PreExecute(cmd *command.Command, ctx *execctx.ExecutionContext) bool {
	ctx.SetData(timingStartKey, time.Now())
	return true
}

// PostExecute reports the duration.
func (h *TimingHook) PostExecute(cmd *command.Command, ctx *execctx.ExecutionContext, result *handler.Result) {
	v, ok := ctx.GetData(timingStartKey)
	if !ok {
		return
	}
	if start, ok := v.(time.Time); ok && h.callback != nil {
		h.callback(cmd.Kind, time.Since(start))
	}
}

// NewMaxTextHook cancels commands whose inserted or replacement text is
// longer than limit characters.
func NewMaxTextHook(limit int) *ValidationHook {
	return NewValidationHook("max-text", PriorityValidation, func(cmd *command.Command, _ *execctx.ExecutionContext) error {
		for _, s := range []string{cmd.Text, cmd.Replace} {
			if n := utf8.RuneCountInString(s); n > limit {
				return fmt.Errorf("text of %d characters exceeds the limit of %d", n, limit)
			}
		}
		return nil
	})
}

// NewSlowCommandHook warns about commands that take threshold or longer,
// settling included.
func NewSlowCommandHook(logger *logging.Logger, threshold time.Duration) *TimingHook {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("timing")
	return NewTimingHook(func(kind command.Kind, d time.Duration) {
		if d >= threshold {
			logger.Warn("slow %s command took %s", kind, d)
		}
	})
}

// ChangeRecord is one journaled edit.
type ChangeRecord struct {
	Timestamp time.Time    `json:"timestamp"`
	CommandID string       `json:"commandId"`
	Kind      command.Kind `json:"kind"`
	BlockIDs  []string     `json:"blockIds"`
	Start     int          `json:"start,omitempty"`
	End       int          `json:"end,omitempty"`
	OldText   string       `json:"oldText,omitempty"`
	NewText   string       `json:"newText,omitempty"`
}

// JournalHook keeps a bounded log of successful edits. Text edits are
// recorded per changed range, structural edits once with the blocks they
// touched.
type JournalHook struct {
	mu       sync.RWMutex
	changes  []ChangeRecord
	maxSize  int
	callback func(record ChangeRecord)
}

// NewJournalHook creates a journal hook.
// maxSize limits the number of records retained (0 = unlimited).
func NewJournalHook(maxSize int) *JournalHook {
	return &JournalHook{
		changes: make([]ChangeRecord, 0),
		maxSize: maxSize,
	}
}

// Name implements Hook.
func (h *JournalHook) Name() string { return "journal" }

// Priority implements Hook.
func (h *JournalHook) Priority() int { return PriorityJournal }

// PostExecute records successful edits.
func (h *JournalHook) PostExecute(cmd *command.Command, ctx *execctx.ExecutionContext, result *handler.Result) {
	if result.Status != handler.StatusOK {
		return
	}

	now := time.Now()
	var records []ChangeRecord
	for _, c := range result.Changes {
		records = append(records, ChangeRecord{
			Timestamp: now,
			CommandID: cmd.ID,
			Kind:      cmd.Kind,
			BlockIDs:  []string{c.BlockID},
			Start:     c.Start,
			End:       c.End,
			OldText:   c.OldText,
			NewText:   c.NewText,
		})
	}
	if len(records) == 0 {
		records = append(records, ChangeRecord{
			Timestamp: now,
			CommandID: cmd.ID,
			Kind:      cmd.Kind,
			BlockIDs:  append([]string(nil), result.AffectedIDs...),
		})
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, r := range records {
		h.changes = append(h.changes, r)
		if h.callback != nil {
			h.callback(r)
		}
	}
	if h.maxSize > 0 && len(h.changes) > h.maxSize {
		h.changes = h.changes[len(h.changes)-h.maxSize:]
	}
}

// Changes returns a copy of all recorded changes.
func (h *JournalHook) Changes() []ChangeRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]ChangeRecord, len(h.changes))
	copy(result, h.changes)
	return result
}

// RecentChanges returns the most recent n changes.
func (h *JournalHook) RecentChanges(n int) []ChangeRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n >= len(h.changes) {
		n = len(h.changes)
	}
	result := make([]ChangeRecord, n)
	copy(result, h.changes[len(h.changes)-n:])
	return result
}

// SetCallback sets a callback to be called for each record.
func (h *JournalHook) SetCallback(fn func(record ChangeRecord)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callback = fn
}

// Clear removes all recorded changes.
func (h *JournalHook) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changes = h.changes[:0]
}
