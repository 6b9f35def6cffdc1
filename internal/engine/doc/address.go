package doc

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// FormatBlockID returns the derived identifier for a 1-based page and
// 1-based index.
func FormatBlockID(page, index int) string {
	return fmt.Sprintf("p%d-%d", page, index)
}

// ParseBlockID splits a derived identifier into page and index.
func ParseBlockID(id string) (page, index int, ok bool) {
	if !strings.HasPrefix(id, "p") {
		return 0, 0, false
	}
	ps, is, found := strings.Cut(id[1:], "-")
	if !found {
		return 0, 0, false
	}
	page, err := strconv.Atoi(ps)
	if err != nil || page < 1 {
		return 0, 0, false
	}
	index, err = strconv.Atoi(is)
	if err != nil || index < 1 {
		return 0, 0, false
	}
	return page, index, true
}

// Position is a low-level point inside a block: an inline index and a
// rune offset within that inline. For images, offset 0 is before the
// image and 1 is after it.
type Position struct {
	Inline int
	Offset int
}

// ResolveByOrdinal returns the n-th block in document order (1-based
// across all pages), or nil.
func (d *Document) ResolveByOrdinal(n int) *Block {
	if n < 1 {
		return nil
	}
	for _, p := range d.Pages {
		if n <= len(p.Blocks) {
			return p.Blocks[n-1]
		}
		n -= len(p.Blocks)
	}
	return nil
}

// OrdinalOf returns the 1-based document-order position of b, or 0.
func (d *Document) OrdinalOf(b *Block) int {
	n := 0
	for _, p := range d.Pages {
		for _, pb := range p.Blocks {
			n++
			if pb == b {
				return n
			}
		}
	}
	return 0
}

// ResolveByID returns the block carrying the derived identifier, or nil.
func (d *Document) ResolveByID(id string) *Block {
	if id == "" {
		return nil
	}
	// Fast path: derived ids encode their position.
	if page, index, ok := ParseBlockID(id); ok {
		if p := d.Page(page); p != nil && index <= len(p.Blocks) {
			if b := p.Blocks[index-1]; b.ID == id {
				return b
			}
		}
	}
	for _, p := range d.Pages {
		for _, b := range p.Blocks {
			if b.ID == id {
				return b
			}
		}
	}
	return nil
}

// ResolveByTempID returns the block carrying the batch-scoped id, or nil.
func (d *Document) ResolveByTempID(id string) *Block {
	if id == "" {
		return nil
	}
	for _, p := range d.Pages {
		for _, b := range p.Blocks {
			if b.TempID == id {
				return b
			}
		}
	}
	return nil
}

// Locate returns the page holding b and b's index on it.
func (d *Document) Locate(b *Block) (*Page, int, bool) {
	if b == nil {
		return nil, -1, false
	}
	for _, p := range d.Pages {
		if i := p.IndexOf(b); i >= 0 {
			return p, i, true
		}
	}
	return nil, -1, false
}

// Contains reports whether b is part of the document.
func (d *Document) Contains(b *Block) bool {
	_, _, ok := d.Locate(b)
	return ok
}

// Compare orders two blocks in document order: -1 if a precedes b, 0 if
// they are the same block, 1 otherwise. Blocks outside the document sort
// last.
func (d *Document) Compare(a, b *Block) int {
	if a == b {
		return 0
	}
	oa, ob := d.OrdinalOf(a), d.OrdinalOf(b)
	switch {
	case oa == 0:
		return 1
	case ob == 0:
		return -1
	case oa < ob:
		return -1
	default:
		return 1
	}
}

// FlattenOffset converts a low-level position into a character offset
// within the block.
func FlattenOffset(b *Block, pos Position) int {
	if b == nil || pos.Inline < 0 {
		return 0
	}
	n := 0
	for i, in := range b.Inlines {
		if i == pos.Inline {
			if in.Kind == InlineText {
				off := pos.Offset
				if off < 0 {
					off = 0
				}
				if l := in.runeLen(); off > l {
					off = l
				}
				n += off
			}
			return n
		}
		n += in.runeLen()
	}
	return n
}

// LocateTextOffset walks the text runs of b counting characters until
// offset is reached and returns the exact position. Offsets beyond the
// content clamp to the end of the last text run. It reports false when
// the block has no text run to walk.
func LocateTextOffset(b *Block, offset int) (Position, bool) {
	if b == nil {
		return Position{}, false
	}
	if offset < 0 {
		offset = 0
	}
	last := -1
	acc := 0
	for i, in := range b.Inlines {
		if in.Kind != InlineText {
			continue
		}
		l := in.runeLen()
		if offset <= acc+l {
			return Position{Inline: i, Offset: offset - acc}, true
		}
		acc += l
		last = i
	}
	if last < 0 {
		return Position{}, false
	}
	return Position{Inline: last, Offset: b.Inlines[last].runeLen()}, true
}

// LocateOffset returns a precise insertion point for offset, falling back
// to the end of the block when the offset exceeds the content or the
// block has no text.
func LocateOffset(b *Block, offset int) Position {
	if pos, ok := LocateTextOffset(b, offset); ok && offset <= b.TextLen() {
		return pos
	}
	return EndOfBlock(b)
}

// StartOfBlock returns the position before any content of b.
func StartOfBlock(*Block) Position {
	return Position{}
}

// EndOfBlock returns the position after the last content unit of b.
func EndOfBlock(b *Block) Position {
	if b == nil || len(b.Inlines) == 0 {
		return Position{}
	}
	last := len(b.Inlines) - 1
	in := b.Inlines[last]
	if in.Kind == InlineText {
		return Position{Inline: last, Offset: utf8.RuneCountInString(in.Text)}
	}
	return Position{Inline: last, Offset: 1}
}
