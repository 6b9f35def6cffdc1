package app

import (
	"sync/atomic"
	"time"
)

// Metrics tracks application activity. Per-command statistics live in
// the command system; these count what the application drives.
type Metrics struct {
	batches       atomic.Uint64
	failedBatches atomic.Uint64
	commands      atomic.Uint64
	batchTotalNs  atomic.Int64
	batchMaxNs    atomic.Int64

	scripts       atomic.Uint64
	failedScripts atomic.Uint64

	saves   atomic.Uint64
	reloads atomic.Uint64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordBatch records one executed batch.
func (m *Metrics) RecordBatch(completed int, failed bool, duration time.Duration) {
	ns := duration.Nanoseconds()

	m.batches.Add(1)
	m.commands.Add(uint64(completed))
	m.batchTotalNs.Add(ns)
	if failed {
		m.failedBatches.Add(1)
	}

	// Update max (atomic compare-and-swap loop)
	for {
		old := m.batchMaxNs.Load()
		if ns <= old {
			break
		}
		if m.batchMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordScript records one script run.
func (m *Metrics) RecordScript(failed bool) {
	m.scripts.Add(1)
	if failed {
		m.failedScripts.Add(1)
	}
}

// RecordSave records a document save.
func (m *Metrics) RecordSave() {
	m.saves.Add(1)
}

// RecordReload records a configuration reload that changed settings.
func (m *Metrics) RecordReload() {
	m.reloads.Add(1)
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Uptime time.Duration `json:"uptime"`

	Batches       uint64        `json:"batches"`
	FailedBatches uint64        `json:"failedBatches"`
	Commands      uint64        `json:"commands"`
	AvgBatchTime  time.Duration `json:"avgBatchTime"`
	MaxBatchTime  time.Duration `json:"maxBatchTime"`
	Scripts       uint64        `json:"scripts"`
	FailedScripts uint64        `json:"failedScripts"`
	Saves         uint64        `json:"saves"`
	ConfigReloads uint64        `json:"configReloads"`
}

// Snapshot returns the current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Uptime:        time.Since(m.startTime),
		Batches:       m.batches.Load(),
		FailedBatches: m.failedBatches.Load(),
		Commands:      m.commands.Load(),
		MaxBatchTime:  time.Duration(m.batchMaxNs.Load()),
		Scripts:       m.scripts.Load(),
		FailedScripts: m.failedScripts.Load(),
		Saves:         m.saves.Load(),
		ConfigReloads: m.reloads.Load(),
	}
	if s.Batches > 0 {
		s.AvgBatchTime = time.Duration(m.batchTotalNs.Load() / int64(s.Batches))
	}
	return s
}
