// Package reflow detects page overflow and migrates trailing blocks to
// later pages.
//
// Overflow is resolved with an explicit worklist of pages to check. Each
// step only ever pushes the page after the one it fixed, so the walk
// strictly advances and is bounded by the page count; the bound is
// enforced as a loop invariant (pages + blocks iterations).
package reflow

import (
	"errors"
	"fmt"

	"github.com/dshills/pagestorm/internal/engine/doc"
	"github.com/dshills/pagestorm/internal/engine/renumber"
	"github.com/dshills/pagestorm/internal/engine/selection"
	"github.com/dshills/pagestorm/internal/logging"
)

// ErrNoConvergence indicates the worklist exceeded its iteration bound.
var ErrNoConvergence = errors.New("reflow did not converge")

// Measurer is the layout host capability consumed by reflow. Lengths use
// whatever unit the host measures in. A method returning an error (for
// example doc.ErrMeasurementUnavailable) means "cannot answer yet".
type Measurer interface {
	// ContentExtent reports the total extent of the page content.
	ContentExtent(p *doc.Page) (float64, error)

	// Capacity reports the visible capacity of the page container.
	Capacity(p *doc.Page) (float64, error)

	// BlockEdge reports the trailing edge of block i, measured from the
	// top of the page content.
	BlockEdge(p *doc.Page, i int) (float64, error)
}

// Report summarizes a reflow run.
type Report struct {
	// PagesChecked counts worklist iterations.
	PagesChecked int
	// PagesCreated counts pages created to receive overflow.
	PagesCreated int
	// BlocksMoved counts blocks migrated to a following page.
	BlocksMoved int
	// Unmeasurable counts pages skipped because measurement failed.
	Unmeasurable int
	// CaretMoved is set when the selection focus moved with content.
	CaretMoved bool
	// CaretPage is the page number holding the focus after the run.
	CaretPage int
}

// Changed reports whether the run mutated the document.
func (r Report) Changed() bool {
	return r.BlocksMoved > 0 || r.PagesCreated > 0
}

// Engine runs overflow checks against a Measurer.
type Engine struct {
	measurer Measurer
	logger   *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine.
func New(m Measurer, opts ...Option) *Engine {
	e := &Engine{measurer: m, logger: logging.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("reflow")
	return e
}

// CheckPageOverflow resolves overflow starting at page p, cascading to
// following pages as long as moves keep producing overflow. sel may be
// nil; when it is not and its focus moves with content, it is re-anchored
// on the new page.
func (e *Engine) CheckPageOverflow(d *doc.Document, p *doc.Page, sel *selection.Range) (Report, error) {
	var rep Report
	if d.PageIndex(p) < 0 {
		return rep, fmt.Errorf("check page: %w", doc.ErrNotFound)
	}

	limit := d.PageCount() + d.BlockCount()
	queue := []*doc.Page{p}
	for len(queue) > 0 {
		if rep.PagesChecked >= limit {
			return rep, fmt.Errorf("%w after %d iterations", ErrNoConvergence, rep.PagesChecked)
		}
		page := queue[0]
		queue = queue[1:]

		if next := e.step(d, page, sel, &rep); next != nil {
			queue = append(queue, next)
		}
	}
	return rep, nil
}

// CheckDocument sweeps every page in order until none overflows.
func (e *Engine) CheckDocument(d *doc.Document, sel *selection.Range) (Report, error) {
	var rep Report
	limit := d.PageCount() + d.BlockCount()
	for i := 0; i < len(d.Pages); i++ {
		if rep.PagesChecked >= limit {
			return rep, fmt.Errorf("%w after %d iterations", ErrNoConvergence, rep.PagesChecked)
		}
		e.step(d, d.Pages[i], sel, &rep)
	}
	return rep, nil
}

// Overflowing returns the numbers of pages whose content exceeds capacity
// and that hold more than one block.
func (e *Engine) Overflowing(d *doc.Document) []int {
	var out []int
	for i, p := range d.Pages {
		if over, ok := e.overflows(p); ok && over && len(p.Blocks) > 1 {
			out = append(out, i+1)
		}
	}
	return out
}

func (e *Engine) overflows(p *doc.Page) (over, ok bool) {
	extent, err := e.measurer.ContentExtent(p)
	if err != nil {
		return false, false
	}
	capacity, err := e.measurer.Capacity(p)
	if err != nil {
		return false, false
	}
	return extent > capacity, true
}

// step checks one page and migrates its overflow set. It returns the page
// that received content, or nil when nothing moved.
func (e *Engine) step(d *doc.Document, p *doc.Page, sel *selection.Range, rep *Report) *doc.Page {
	rep.PagesChecked++

	over, ok := e.overflows(p)
	if !ok {
		rep.Unmeasurable++
		e.logger.Debug("page %d not measurable, treating as no overflow", p.Number)
		return nil
	}
	if !over || len(p.Blocks) <= 1 {
		return nil
	}

	capacity, _ := e.measurer.Capacity(p)
	split := -1
	for i := range p.Blocks {
		edge, err := e.measurer.BlockEdge(p, i)
		if err != nil {
			rep.Unmeasurable++
			return nil
		}
		if edge > capacity {
			split = i
			break
		}
	}
	if split < 0 {
		split = len(p.Blocks) - 1
	}
	// A page is never emptied; a crossing first block stays put.
	if split == 0 {
		split = 1
	}
	if split >= len(p.Blocks) {
		return nil
	}

	caretMoved := sel != nil && movesWith(sel, p.Blocks[split:])

	next := d.NextPage(p)
	if next == nil {
		next = d.InsertPageAfter(p)
		rep.PagesCreated++
	}
	n := doc.Reparent(p, split, len(p.Blocks), next)
	rep.BlocksMoved += n
	renumber.Document(d)

	if caretMoved {
		reanchor(d, sel)
		rep.CaretMoved = true
		rep.CaretPage = next.Number
	}

	e.logger.Debug("moved %d blocks from page %d to page %d", n, p.Number, next.Number)
	return next
}

func movesWith(sel *selection.Range, moved []*doc.Block) bool {
	for _, b := range moved {
		if sel.Focus.Block == b || sel.Anchor.Block == b {
			return true
		}
	}
	return false
}

// reanchor refreshes sel against the renumbered tree. Blocks keep their
// identity when reparented, so the live range already points at the right
// content; the snapshot round trip rebuilds the low-level positions.
func reanchor(d *doc.Document, sel *selection.Range) {
	snap, ok := selection.Capture(d, *sel)
	if !ok {
		return
	}
	if r, ok := selection.Restore(d, snap); ok {
		*sel = r
	}
}
