package doc

import (
	"fmt"
	"unicode/utf8"
)

// InsertBlock inserts b at index i of page p. The index is clamped to
// the page bounds.
func (p *Page) InsertBlock(i int, b *Block) {
	if i < 0 {
		i = 0
	}
	if i > len(p.Blocks) {
		i = len(p.Blocks)
	}
	p.Blocks = append(p.Blocks, nil)
	copy(p.Blocks[i+1:], p.Blocks[i:])
	p.Blocks[i] = b
}

// RemoveAt removes and returns the block at index i.
func (p *Page) RemoveAt(i int) *Block {
	if i < 0 || i >= len(p.Blocks) {
		return nil
	}
	b := p.Blocks[i]
	p.Blocks = append(p.Blocks[:i], p.Blocks[i+1:]...)
	return b
}

// InsertAfter inserts b immediately after target.
func (d *Document) InsertAfter(target, b *Block) error {
	p, i, ok := d.Locate(target)
	if !ok {
		return fmt.Errorf("insert after: %w", ErrNotFound)
	}
	p.InsertBlock(i+1, b)
	return nil
}

// InsertBefore inserts b immediately before target.
func (d *Document) InsertBefore(target, b *Block) error {
	p, i, ok := d.Locate(target)
	if !ok {
		return fmt.Errorf("insert before: %w", ErrNotFound)
	}
	p.InsertBlock(i, b)
	return nil
}

// ReplaceBlock puts b in old's slot.
func (d *Document) ReplaceBlock(old, b *Block) error {
	p, i, ok := d.Locate(old)
	if !ok {
		return fmt.Errorf("replace: %w", ErrNotFound)
	}
	p.Blocks[i] = b
	return nil
}

// RemoveBlock removes b from its page and returns that page. The page
// may be left empty; renumbering refills it.
func (d *Document) RemoveBlock(b *Block) (*Page, error) {
	p, i, ok := d.Locate(b)
	if !ok {
		return nil, fmt.Errorf("remove: %w", ErrNotFound)
	}
	p.RemoveAt(i)
	return p, nil
}

// Reparent moves the contiguous run from[start:end] to the front of to,
// keeping order and node identity. It returns the number of blocks moved.
func Reparent(from *Page, start, end int, to *Page) int {
	if from == nil || to == nil || from == to {
		return 0
	}
	if start < 0 {
		start = 0
	}
	if end > len(from.Blocks) {
		end = len(from.Blocks)
	}
	if start >= end {
		return 0
	}
	moved := append([]*Block(nil), from.Blocks[start:end]...)
	from.Blocks = append(from.Blocks[:start], from.Blocks[end:]...)
	to.Blocks = append(moved, to.Blocks...)
	return len(moved)
}

// InsertPageAfter creates an empty page immediately after p. A nil p
// prepends the page.
func (d *Document) InsertPageAfter(p *Page) *Page {
	np := &Page{}
	i := 0
	if p != nil {
		i = d.PageIndex(p) + 1
		if i == 0 {
			i = len(d.Pages)
		}
	}
	d.Pages = append(d.Pages, nil)
	copy(d.Pages[i+1:], d.Pages[i:])
	d.Pages[i] = np
	return np
}

// AppendPage adds p at the end of the document.
func (d *Document) AppendPage(p *Page) {
	d.Pages = append(d.Pages, p)
}

// RemovePage removes p from the document.
func (d *Document) RemovePage(p *Page) bool {
	i := d.PageIndex(p)
	if i < 0 {
		return false
	}
	d.Pages = append(d.Pages[:i], d.Pages[i+1:]...)
	return true
}

// NextPage returns the page following p, or nil.
func (d *Document) NextPage(p *Page) *Page {
	i := d.PageIndex(p)
	if i < 0 || i+1 >= len(d.Pages) {
		return nil
	}
	return d.Pages[i+1]
}

// InsertText inserts text at a character offset. The new text inherits
// the marks of the run it lands in. Offsets beyond the content append.
func (b *Block) InsertText(offset int, text string) {
	if text == "" {
		return
	}
	pos, ok := LocateTextOffset(b, offset)
	if !ok {
		b.Inlines = append(b.Inlines, TextRun(text, Marks{}))
		return
	}
	in := &b.Inlines[pos.Inline]
	r := []rune(in.Text)
	in.Text = string(r[:pos.Offset]) + text + string(r[pos.Offset:])
}

// DeleteText removes the characters in [start, end). Runs emptied by the
// deletion are dropped.
func (b *Block) DeleteText(start, end int) error {
	total := b.TextLen()
	if start < 0 || end > total || start > end {
		return fmt.Errorf("delete [%d,%d) of %d: %w", start, end, total, ErrOffsetOutOfRange)
	}
	if start == end {
		return nil
	}
	out := b.Inlines[:0]
	acc := 0
	for _, in := range b.Inlines {
		if in.Kind != InlineText {
			out = append(out, in)
			continue
		}
		r := []rune(in.Text)
		lo, hi := start-acc, end-acc
		acc += len(r)
		if hi <= 0 || lo >= len(r) {
			out = append(out, in)
			continue
		}
		if lo < 0 {
			lo = 0
		}
		if hi > len(r) {
			hi = len(r)
		}
		in.Text = string(r[:lo]) + string(r[hi:])
		if in.Text != "" {
			out = append(out, in)
		}
	}
	b.Inlines = out
	return nil
}

// ReplaceText replaces the characters in [start, end) with text. The
// replacement is written into the run holding start, so it keeps that
// run's marks and its place among images.
func (b *Block) ReplaceText(start, end int, text string) error {
	total := b.TextLen()
	if start < 0 || end > total || start > end {
		return fmt.Errorf("replace [%d,%d) of %d: %w", start, end, total, ErrOffsetOutOfRange)
	}
	if text == "" {
		return b.DeleteText(start, end)
	}
	if start == end {
		b.InsertText(start, text)
		return nil
	}
	acc := 0
	for i := range b.Inlines {
		in := &b.Inlines[i]
		if in.Kind != InlineText {
			continue
		}
		r := []rune(in.Text)
		if start >= acc+len(r) {
			acc += len(r)
			continue
		}
		lo, hi := start-acc, min(end-acc, len(r))
		in.Text = string(r[:lo]) + text + string(r[hi:])
		// The rest of the range lies in the following runs.
		if rest := end - (acc + len(r)); rest > 0 {
			from := start + utf8.RuneCountInString(text)
			return b.DeleteText(from, from+rest)
		}
		return nil
	}
	return nil
}

// SplitInlines divides the inline content at a character offset. Images
// sitting exactly at the boundary go with the tail.
func (b *Block) SplitInlines(offset int) (head, tail []Inline) {
	acc := 0
	for _, in := range b.Inlines {
		if in.Kind != InlineText {
			if acc < offset {
				head = append(head, in)
			} else {
				tail = append(tail, in)
			}
			continue
		}
		r := []rune(in.Text)
		switch {
		case acc+len(r) <= offset:
			head = append(head, in)
		case acc >= offset:
			tail = append(tail, in)
		default:
			cut := offset - acc
			h, t := in, in
			h.Text = string(r[:cut])
			t.Text = string(r[cut:])
			head = append(head, h)
			tail = append(tail, t)
		}
		acc += len(r)
	}
	return head, tail
}

// StripArtifacts removes rendered presentation inlines and reports
// whether any were found.
func (b *Block) StripArtifacts() bool {
	out := b.Inlines[:0]
	stripped := false
	for _, in := range b.Inlines {
		if in.Kind == InlineArtifact {
			stripped = true
			continue
		}
		out = append(out, in)
	}
	b.Inlines = out
	return stripped
}

// NormalizeInlines merges adjacent text runs that carry equal marks and
// drops empty runs. It returns the number of runs removed. The text and
// the character offsets are unchanged.
func (b *Block) NormalizeInlines() int {
	before := len(b.Inlines)
	out := b.Inlines[:0]
	for _, in := range b.Inlines {
		if in.Kind == InlineText {
			if in.Text == "" {
				continue
			}
			if n := len(out); n > 0 && out[n-1].Kind == InlineText && out[n-1].Marks == in.Marks {
				out[n-1].Text += in.Text
				continue
			}
		}
		out = append(out, in)
	}
	b.Inlines = out
	return before - len(out)
}
