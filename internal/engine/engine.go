package engine

import (
	"fmt"
	"sync"

	"github.com/dshills/pagestorm/internal/engine/doc"
	"github.com/dshills/pagestorm/internal/engine/reflow"
	"github.com/dshills/pagestorm/internal/engine/renumber"
	"github.com/dshills/pagestorm/internal/engine/selection"
	"github.com/dshills/pagestorm/internal/layout"
	"github.com/dshills/pagestorm/internal/logging"
)

// Session is the editing context for one document.
// It combines the document tree, the live selection, and the reflow
// engine into a unified, thread-safe API.
type Session struct {
	mu sync.RWMutex

	doc      *doc.Document
	measurer reflow.Measurer
	reflow   *reflow.Engine
	logger   *logging.Logger

	sel    selection.Range
	hasSel bool
	focus  int

	autoReflow bool
	readOnly   bool
	revision   uint64
}

// New creates a Session with the given options. The document is
// renumbered before New returns.
func New(opts ...Option) *Session {
	s := &Session{
		logger:     logging.Nop(),
		autoReflow: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.doc == nil {
		s.doc = doc.New()
	}
	if s.measurer == nil {
		s.measurer = layout.NewMeasurer(layout.DefaultConfig())
	}
	s.logger = s.logger.WithComponent("engine")
	s.reflow = reflow.New(s.measurer, reflow.WithLogger(s.logger))
	renumber.Document(s.doc)
	return s
}

// Tx is the mutable view handed to Transact callbacks. It is only valid
// for the duration of the callback.
type Tx struct {
	s *Session
}

// Document returns the live document.
func (tx *Tx) Document() *doc.Document {
	return tx.s.doc
}

// Selection returns the live selection, or nil when there is none.
func (tx *Tx) Selection() *selection.Range {
	return tx.s.selPtr()
}

// Settle renumbers the document and, when auto reflow is on, resolves
// overflow on every page.
func (tx *Tx) Settle() (reflow.Report, error) {
	return tx.s.settleLocked()
}

// Transact runs fn with exclusive access to the document and settles the
// document afterwards, even when fn fails part way.
func (s *Session) Transact(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return ErrReadOnly
	}

	err := fn(&Tx{s: s})
	if _, serr := s.settleLocked(); serr != nil && err == nil {
		err = serr
	}
	s.revision++
	return err
}

// Update runs fn against the live document, then renumbers and reflows.
func (s *Session) Update(fn func(d *doc.Document) error) error {
	return s.Transact(func(tx *Tx) error {
		return fn(tx.Document())
	})
}

// View runs fn with shared access to the document. fn must not mutate it.
func (s *Session) View(fn func(d *doc.Document)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.doc)
}

// Snapshot returns a deep copy of the document.
func (s *Session) Snapshot() *doc.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Load replaces the document wholesale and clears the selection. A nil
// document is rejected with doc.ErrInvalidState.
func (s *Session) Load(d *doc.Document) error {
	if d == nil {
		return fmt.Errorf("load nil document: %w", doc.ErrInvalidState)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return ErrReadOnly
	}
	s.doc = d
	s.hasSel = false
	s.sel = selection.Range{}
	s.focus = 0
	_, err := s.settleLocked()
	s.revision++
	return err
}

// Revision returns a counter incremented by every mutation.
func (s *Session) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// IsReadOnly reports whether mutations are rejected.
func (s *Session) IsReadOnly() bool {
	return s.readOnly
}

// Renumber repairs identifiers, ordinals and the media index.
func (s *Session) Renumber() (renumber.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return renumber.Report{}, ErrReadOnly
	}
	rep := renumber.Document(s.doc)
	s.revision++
	return rep, nil
}

// CheckPageOverflow resolves overflow starting at the 1-based page n.
func (s *Session) CheckPageOverflow(n int) (reflow.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return reflow.Report{}, ErrReadOnly
	}
	p := s.doc.Page(n)
	if p == nil {
		return reflow.Report{}, fmt.Errorf("page %d: %w", n, ErrPageNotFound)
	}
	rep, err := s.reflow.CheckPageOverflow(s.doc, p, s.selPtr())
	s.noteReflow(rep)
	return rep, err
}

// CheckDocument resolves overflow on every page.
func (s *Session) CheckDocument() (reflow.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return reflow.Report{}, ErrReadOnly
	}
	rep, err := s.reflow.CheckDocument(s.doc, s.selPtr())
	s.noteReflow(rep)
	return rep, err
}

// Overflowing returns the numbers of pages that still overflow.
func (s *Session) Overflowing() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reflow.Overflowing(s.doc)
}

// SetSelection replaces the live selection.
func (s *Session) SetSelection(r selection.Range) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = r
	s.hasSel = true
	if p, _, ok := s.doc.Locate(r.Focus.Block); ok {
		s.focus = p.Number
	}
}

// ClearSelection drops the live selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel = selection.Range{}
	s.hasSel = false
}

// Selection returns the live selection.
func (s *Session) Selection() (selection.Range, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel, s.hasSel
}

// FocusPage returns the page number holding the selection focus, or 0.
func (s *Session) FocusPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.focus
}

// CaptureSelection encodes the live selection as a snapshot.
func (s *Session) CaptureSelection() (selection.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasSel {
		return selection.Snapshot{}, false
	}
	return selection.Capture(s.doc, s.sel)
}

// RestoreSelection makes snap the live selection. When the snapshot no
// longer resolves exactly but its start block still exists, the caret is
// placed at the start of that block. It reports whether the exact
// restore succeeded.
func (s *Session) RestoreSelection(snap selection.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreLocked(snap)
}

// PreserveSelection runs a destructive rewrite bracketed by selection
// capture and restore.
func (s *Session) PreserveSelection(fn func(d *doc.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return ErrReadOnly
	}

	var (
		snap     selection.Snapshot
		captured bool
	)
	if s.hasSel {
		snap, captured = selection.Capture(s.doc, s.sel)
	}

	err := fn(s.doc)
	renumber.Document(s.doc)
	s.revision++

	if captured {
		s.restoreLocked(snap)
	}
	return err
}

// NormalizeInlines merges adjacent text runs with equal marks across the
// document and returns the number of runs removed. The selection survives
// the rewrite.
func (s *Session) NormalizeInlines() (int, error) {
	removed := 0
	err := s.PreserveSelection(func(d *doc.Document) error {
		for _, b := range d.Blocks() {
			removed += b.NormalizeInlines()
		}
		return nil
	})
	if removed > 0 {
		s.logger.Debug("normalized inlines, %d runs merged", removed)
	}
	return removed, err
}

func (s *Session) selPtr() *selection.Range {
	if !s.hasSel {
		return nil
	}
	return &s.sel
}

func (s *Session) restoreLocked(snap selection.Snapshot) bool {
	if r, ok := selection.Restore(s.doc, snap); ok {
		s.sel, s.hasSel = r, true
		s.updateFocus()
		return true
	}
	if b := s.doc.ResolveByID(snap.StartBlockID); b != nil {
		p := selection.Point{Block: b, Pos: doc.StartOfBlock(b)}
		s.sel, s.hasSel = selection.Range{Anchor: p, Focus: p}, true
		s.updateFocus()
	}
	return false
}

func (s *Session) updateFocus() {
	if p, _, ok := s.doc.Locate(s.sel.Focus.Block); ok {
		s.focus = p.Number
	}
}

func (s *Session) settleLocked() (reflow.Report, error) {
	renumber.Document(s.doc)
	if s.hasSel && (!s.doc.Contains(s.sel.Anchor.Block) || !s.doc.Contains(s.sel.Focus.Block)) {
		s.sel, s.hasSel, s.focus = selection.Range{}, false, 0
	}
	if !s.autoReflow {
		return reflow.Report{}, nil
	}
	rep, err := s.reflow.CheckDocument(s.doc, s.selPtr())
	s.noteReflow(rep)
	if err != nil {
		s.logger.Err(err, "reflow failed")
	}
	return rep, err
}

func (s *Session) noteReflow(rep reflow.Report) {
	if rep.CaretMoved {
		s.focus = rep.CaretPage
	} else if s.hasSel {
		s.updateFocus()
	}
}
