package dispatcher

import (
	"sort"
	"sync"
	"time"

	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/dispatcher/handler"
)

// Metrics collects execution statistics.
type Metrics struct {
	mu sync.RWMutex

	kindMetrics map[command.Kind]*KindMetrics

	totalCommands uint64
	totalErrors   uint64
	totalPanics   uint64
	totalBatches  uint64
	totalAborted  uint64

	totalDuration time.Duration
}

// KindMetrics holds metrics for one command kind.
type KindMetrics struct {
	Kind          command.Kind         `json:"kind"`
	CommandCount  uint64               `json:"commandCount"`
	NoOpCount     uint64               `json:"noOpCount"`
	ErrorCount    uint64               `json:"errorCount"`
	TotalDuration time.Duration        `json:"totalDuration"`
	MinDuration   time.Duration        `json:"minDuration"`
	MaxDuration   time.Duration        `json:"maxDuration"`
	LastStatus    handler.ResultStatus `json:"lastStatus"`
	LastCommand   time.Time            `json:"lastCommand"`
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		kindMetrics: make(map[command.Kind]*KindMetrics),
	}
}

// RecordCommand records one executed command.
func (m *Metrics) RecordCommand(kind command.Kind, duration time.Duration, status handler.ResultStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalCommands++
	m.totalDuration += duration

	failed := status == handler.StatusError || status == handler.StatusCancelled
	if failed {
		m.totalErrors++
	}

	km := m.kindMetrics[kind]
	if km == nil {
		km = &KindMetrics{
			Kind:        kind,
			MinDuration: duration,
			MaxDuration: duration,
		}
		m.kindMetrics[kind] = km
	}

	km.CommandCount++
	km.TotalDuration += duration
	km.LastStatus = status
	km.LastCommand = time.Now()

	if duration < km.MinDuration {
		km.MinDuration = duration
	}
	if duration > km.MaxDuration {
		km.MaxDuration = duration
	}

	if failed {
		km.ErrorCount++
	}
	if status == handler.StatusNoOp {
		km.NoOpCount++
	}
}

// RecordPanic records a panic recovery. The command itself is recorded
// as failed by RecordCommand.
func (m *Metrics) RecordPanic(kind command.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalPanics++
}

// RecordBatch records a finished batch.
func (m *Metrics) RecordBatch(aborted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalBatches++
	if aborted {
		m.totalAborted++
	}
}

// TotalCommands returns the total number of executed commands.
func (m *Metrics) TotalCommands() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalCommands
}

// TotalErrors returns the total number of errors.
func (m *Metrics) TotalErrors() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalErrors
}

// TotalPanics returns the total number of panics recovered.
func (m *Metrics) TotalPanics() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalPanics
}

// TotalDuration returns the total duration of all commands.
func (m *Metrics) TotalDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalDuration
}

// AverageDuration returns the average command duration.
func (m *Metrics) AverageDuration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.totalCommands == 0 {
		return 0
	}
	return m.totalDuration / time.Duration(m.totalCommands)
}

// KindStats returns a copy of the metrics for one kind, or nil.
func (m *Metrics) KindStats(kind command.Kind) *KindMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	km := m.kindMetrics[kind]
	if km == nil {
		return nil
	}
	c := *km
	return &c
}

// Kinds returns a copy of the metrics of every executed kind, most
// executed first.
func (m *Metrics) Kinds() []*KindMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kinds := make([]*KindMetrics, 0, len(m.kindMetrics))
	for _, km := range m.kindMetrics {
		c := *km
		kinds = append(kinds, &c)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if kinds[i].CommandCount != kinds[j].CommandCount {
			return kinds[i].CommandCount > kinds[j].CommandCount
		}
		return kinds[i].Kind < kinds[j].Kind
	})
	return kinds
}

// SlowestKinds returns the n slowest kinds by average duration.
func (m *Metrics) SlowestKinds(n int) []*KindMetrics {
	kinds := m.Kinds()
	sort.SliceStable(kinds, func(i, j int) bool {
		return kinds[i].AverageDuration() > kinds[j].AverageDuration()
	})
	if n > len(kinds) {
		n = len(kinds)
	}
	return kinds[:n]
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.kindMetrics = make(map[command.Kind]*KindMetrics)
	m.totalCommands = 0
	m.totalErrors = 0
	m.totalPanics = 0
	m.totalBatches = 0
	m.totalAborted = 0
	m.totalDuration = 0
}

// MetricsSnapshot is a point-in-time view of the metrics.
type MetricsSnapshot struct {
	TotalCommands   uint64         `json:"totalCommands"`
	TotalErrors     uint64         `json:"totalErrors"`
	TotalPanics     uint64         `json:"totalPanics"`
	TotalBatches    uint64         `json:"totalBatches"`
	AbortedBatches  uint64         `json:"abortedBatches"`
	TotalDuration   time.Duration  `json:"totalDuration"`
	AverageDuration time.Duration  `json:"averageDuration"`
	Kinds           []*KindMetrics `json:"kinds"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	kinds := m.Kinds()

	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := MetricsSnapshot{
		TotalCommands:  m.totalCommands,
		TotalErrors:    m.totalErrors,
		TotalPanics:    m.totalPanics,
		TotalBatches:   m.totalBatches,
		AbortedBatches: m.totalAborted,
		TotalDuration:  m.totalDuration,
		Kinds:          kinds,
		Timestamp:      time.Now(),
	}
	if m.totalCommands > 0 {
		snapshot.AverageDuration = m.totalDuration / time.Duration(m.totalCommands)
	}
	return snapshot
}

// AverageDuration returns the average duration for the kind.
func (km *KindMetrics) AverageDuration() time.Duration {
	if km.CommandCount == 0 {
		return 0
	}
	return km.TotalDuration / time.Duration(km.CommandCount)
}

// ErrorRate returns the error rate as a percentage.
func (km *KindMetrics) ErrorRate() float64 {
	if km.CommandCount == 0 {
		return 0
	}
	return float64(km.ErrorCount) / float64(km.CommandCount) * 100
}
