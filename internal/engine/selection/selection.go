// Package selection converts live selections into address-based snapshots
// and back.
//
// A Snapshot names blocks by their derived identifier and characters by
// offset, so it survives destructive rewrites of the inline content as
// long as the blocks themselves stay put. Snapshots are always stored
// start-before-end; the direction the user selected in is discarded.
package selection

import (
	"strings"

	"github.com/dshills/pagestorm/internal/engine/doc"
)

// Point is a live position: a block and a low-level position inside it.
type Point struct {
	Block *doc.Block
	Pos   doc.Position
}

// Offset returns the character offset of the point within its block.
func (p Point) Offset() int {
	return doc.FlattenOffset(p.Block, p.Pos)
}

// Range is a live selection. Anchor is where the selection started and
// Focus is where it currently ends; Anchor == Focus is a caret.
type Range struct {
	Anchor Point
	Focus  Point
}

// Caret returns a collapsed range at a character offset of b.
func Caret(b *doc.Block, offset int) Range {
	p := Point{Block: b, Pos: doc.LocateOffset(b, offset)}
	return Range{Anchor: p, Focus: p}
}

// Span returns a forward range between two character offsets.
func Span(start *doc.Block, startOffset int, end *doc.Block, endOffset int) Range {
	return Range{
		Anchor: Point{Block: start, Pos: doc.LocateOffset(start, startOffset)},
		Focus:  Point{Block: end, Pos: doc.LocateOffset(end, endOffset)},
	}
}

// IsCollapsed reports whether the range is a caret.
func (r Range) IsCollapsed() bool {
	return r.Anchor.Block == r.Focus.Block && r.Anchor.Offset() == r.Focus.Offset()
}

// Snapshot is an address-based selection, always start-before-end.
type Snapshot struct {
	StartBlockID string `json:"startBlockId" yaml:"startBlockId"`
	StartOffset  int    `json:"startOffset" yaml:"startOffset"`
	EndBlockID   string `json:"endBlockId" yaml:"endBlockId"`
	EndOffset    int    `json:"endOffset" yaml:"endOffset"`
}

// IsCollapsed reports whether the snapshot addresses a caret.
func (s Snapshot) IsCollapsed() bool {
	return s.StartBlockID == s.EndBlockID && s.StartOffset == s.EndOffset
}

// Capture encodes r as a snapshot. It fails when either end has no
// enclosing block in d or when a block has not been renumbered yet.
func Capture(d *doc.Document, r Range) (Snapshot, bool) {
	a, f := r.Anchor, r.Focus
	if a.Block == nil || f.Block == nil {
		return Snapshot{}, false
	}
	if a.Block.ID == "" || f.Block.ID == "" {
		return Snapshot{}, false
	}
	if !d.Contains(a.Block) || !d.Contains(f.Block) {
		return Snapshot{}, false
	}

	ao, fo := a.Offset(), f.Offset()
	if c := d.Compare(a.Block, f.Block); c > 0 || (c == 0 && ao > fo) {
		a, f = f, a
		ao, fo = fo, ao
	}
	return Snapshot{
		StartBlockID: a.Block.ID,
		StartOffset:  ao,
		EndBlockID:   f.Block.ID,
		EndOffset:    fo,
	}, true
}

// Restore resolves a snapshot against d. It fails when a block is gone
// or has no text to walk; callers fall back to the start of the block.
func Restore(d *doc.Document, s Snapshot) (Range, bool) {
	start := d.ResolveByID(s.StartBlockID)
	end := d.ResolveByID(s.EndBlockID)
	if start == nil || end == nil {
		return Range{}, false
	}
	sp, ok := doc.LocateTextOffset(start, s.StartOffset)
	if !ok {
		return Range{}, false
	}
	ep, ok := doc.LocateTextOffset(end, s.EndOffset)
	if !ok {
		return Range{}, false
	}
	return Range{
		Anchor: Point{Block: start, Pos: sp},
		Focus:  Point{Block: end, Pos: ep},
	}, true
}

// Text returns the text covered by r, joining blocks with a newline.
func Text(d *doc.Document, r Range) string {
	s, ok := Capture(d, r)
	if !ok {
		return ""
	}
	start, end := d.ResolveByID(s.StartBlockID), d.ResolveByID(s.EndBlockID)
	if start == end {
		return sliceRunes(start.Text(), s.StartOffset, s.EndOffset)
	}

	var sb strings.Builder
	in := false
	for _, b := range d.Blocks() {
		switch {
		case b == start:
			in = true
			sb.WriteString(sliceRunes(b.Text(), s.StartOffset, b.TextLen()))
		case b == end:
			sb.WriteByte('\n')
			sb.WriteString(sliceRunes(b.Text(), 0, s.EndOffset))
			return sb.String()
		case in:
			sb.WriteByte('\n')
			sb.WriteString(b.Text())
		}
	}
	return sb.String()
}

func sliceRunes(s string, lo, hi int) string {
	r := []rune(s)
	if hi > len(r) {
		hi = len(r)
	}
	if lo > hi {
		lo = hi
	}
	return string(r[lo:hi])
}
