package execctx

import (
	"fmt"

	"github.com/dshills/pagestorm/internal/engine/doc"
)

// BatchState is the addressing state scoped to one batch call. It is
// created when a batch starts and discarded when it ends.
type BatchState struct {
	// MaxRealPage is the page count when the batch started. Page
	// addresses beyond it are virtual.
	MaxRealPage int
	// Synthesized counts the virtual pages created so far.
	Synthesized int

	pinned       map[string]*doc.Block
	temp         map[string]*doc.Block
	virtual      map[int]*doc.Page
	placeholders []*doc.Block
}

// NewBatchState records the batch-start view of d: its page count and the
// block each derived id named at that moment.
func NewBatchState(d *doc.Document) *BatchState {
	s := &BatchState{
		MaxRealPage: d.PageCount(),
		pinned:      make(map[string]*doc.Block, d.BlockCount()),
		temp:        make(map[string]*doc.Block),
		virtual:     make(map[int]*doc.Page),
	}
	for _, b := range d.Blocks() {
		if b.ID != "" {
			s.pinned[b.ID] = b
		}
	}
	return s
}

// RegisterTemp names b by a temporary id for the rest of the batch.
func (s *BatchState) RegisterTemp(id string, b *doc.Block) {
	if id == "" {
		return
	}
	b.TempID = id
	s.temp[id] = b
}

// ResolveID resolves an id against the batch-start view first, then the
// temporary ids, then the current derived ids.
func (s *BatchState) ResolveID(d *doc.Document, id string) (*doc.Block, error) {
	if b, ok := s.pinned[id]; ok {
		if !d.Contains(b) {
			return nil, fmt.Errorf("block %s was removed earlier in the batch: %w", id, doc.ErrNotFound)
		}
		return b, nil
	}
	if b, ok := s.temp[id]; ok && d.Contains(b) {
		return b, nil
	}
	if b := d.ResolveByTempID(id); b != nil {
		return b, nil
	}
	if b := d.ResolveByID(id); b != nil {
		return b, nil
	}
	return nil, fmt.Errorf("block %s: %w", id, doc.ErrNotFound)
}

// NextNewPage returns the page number "the next new page" refers to. Every
// such reference within a batch names the same page.
func (s *BatchState) NextNewPage() int {
	return s.MaxRealPage + 1
}

// IsVirtual reports whether page n did not exist when the batch started.
// Pages created by reflow during the batch do not count: page numbers in
// a batch are read against the document the batch was written for.
func (s *BatchState) IsVirtual(n int) bool {
	return n > s.MaxRealPage
}

// VirtualPage returns the synthesized page standing for page n, creating
// it and any lower virtual pages on first reference. Each new page holds
// one placeholder paragraph.
func (s *BatchState) VirtualPage(d *doc.Document, n int) (*doc.Page, error) {
	if !s.IsVirtual(n) {
		return nil, fmt.Errorf("page %d is not virtual: %w", n, doc.ErrInvalidState)
	}
	for s.MaxRealPage+s.Synthesized < n {
		num := s.MaxRealPage + s.Synthesized + 1
		ph := &doc.Block{
			Tag:         doc.TagParagraph,
			Inlines:     []doc.Inline{doc.TextRun("", doc.Marks{})},
			Placeholder: true,
		}
		s.RegisterTemp(fmt.Sprintf("virtual-page-%d", num), ph)
		p := doc.NewPage(ph)
		d.AppendPage(p)
		s.virtual[num] = p
		s.placeholders = append(s.placeholders, ph)
		s.Synthesized++
	}
	p := s.virtual[n]
	if p == nil || d.PageIndex(p) < 0 {
		return nil, fmt.Errorf("virtual page %d was removed: %w", n, doc.ErrNotFound)
	}
	return p, nil
}

// Placeholders returns the placeholder blocks synthesized so far.
func (s *BatchState) Placeholders() []*doc.Block {
	return append([]*doc.Block(nil), s.placeholders...)
}

// Consume clears the placeholder mark from every placeholder that has
// received content, so a merge or text edit into a virtual page survives
// Cleanup. It returns the number of placeholders consumed.
func (s *BatchState) Consume() int {
	n := 0
	for _, b := range s.placeholders {
		if b.Placeholder && (b.TextLen() > 0 || len(b.Images()) > 0) {
			b.Placeholder = false
			n++
		}
	}
	return n
}

// Cleanup deletes placeholders that were never consumed, scanning the
// document in reverse order, and removes pages the deletion leaves empty.
// Temporary ids are cleared. It returns the number of placeholders removed.
func (s *BatchState) Cleanup(d *doc.Document) int {
	s.Consume()
	removed := 0
	for pi := len(d.Pages) - 1; pi >= 0; pi-- {
		p := d.Pages[pi]
		for bi := len(p.Blocks) - 1; bi >= 0; bi-- {
			if p.Blocks[bi].Placeholder {
				p.RemoveAt(bi)
				removed++
			}
		}
		if len(p.Blocks) == 0 && len(d.Pages) > 1 {
			d.RemovePage(p)
		}
	}
	for _, b := range d.Blocks() {
		b.TempID = ""
	}
	return removed
}
