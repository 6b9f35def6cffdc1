package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoPageDoc() *Document {
	d := New(
		NewPage(NewParagraph("alpha"), NewParagraph("beta")),
		NewPage(NewParagraph("gamma")),
	)
	for pi, p := range d.Pages {
		p.Number = pi + 1
		for bi, b := range p.Blocks {
			b.Ordinal = bi + 1
			b.ID = FormatBlockID(pi+1, bi+1)
		}
	}
	return d
}

func TestFormatParseBlockID(t *testing.T) {
	assert.Equal(t, "p3-12", FormatBlockID(3, 12))

	tests := []struct {
		id    string
		page  int
		index int
		ok    bool
	}{
		{"p1-1", 1, 1, true},
		{"p10-4", 10, 4, true},
		{"p0-1", 0, 0, false},
		{"p1-0", 0, 0, false},
		{"x1-1", 0, 0, false},
		{"p1", 0, 0, false},
		{"pa-b", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range tests {
		page, index, ok := ParseBlockID(tc.id)
		assert.Equal(t, tc.ok, ok, tc.id)
		assert.Equal(t, tc.page, page, tc.id)
		assert.Equal(t, tc.index, index, tc.id)
	}
}

func TestResolveByOrdinal(t *testing.T) {
	d := twoPageDoc()

	assert.Equal(t, "alpha", d.ResolveByOrdinal(1).Text())
	assert.Equal(t, "beta", d.ResolveByOrdinal(2).Text())
	assert.Equal(t, "gamma", d.ResolveByOrdinal(3).Text())
	assert.Nil(t, d.ResolveByOrdinal(0))
	assert.Nil(t, d.ResolveByOrdinal(4))
	assert.Equal(t, 3, d.OrdinalOf(d.ResolveByOrdinal(3)))
}

func TestResolveByID(t *testing.T) {
	d := twoPageDoc()

	b := d.ResolveByID("p2-1")
	require.NotNil(t, b)
	assert.Equal(t, "gamma", b.Text())
	assert.Nil(t, d.ResolveByID("p2-2"))
	assert.Nil(t, d.ResolveByID(""))

	// A stale id that parses but no longer matches falls back to a scan.
	d.Pages[0].Blocks[0].ID = "p9-9"
	assert.Equal(t, "alpha", d.ResolveByID("p9-9").Text())
	assert.Nil(t, d.ResolveByID("p1-1"))
}

func TestCompare(t *testing.T) {
	d := twoPageDoc()
	a, b := d.ResolveByOrdinal(1), d.ResolveByOrdinal(3)

	assert.Equal(t, -1, d.Compare(a, b))
	assert.Equal(t, 1, d.Compare(b, a))
	assert.Equal(t, 0, d.Compare(a, a))
	assert.Equal(t, -1, d.Compare(a, NewParagraph("stray")))
}

func TestFlattenAndLocateOffset(t *testing.T) {
	b := &Block{Tag: TagParagraph, Inlines: []Inline{
		TextRun("héllo", Marks{}),
		Image("cat.png", "cat"),
		TextRun(" world", Marks{Bold: true}),
	}}

	assert.Equal(t, 11, b.TextLen())
	assert.Equal(t, 3, FlattenOffset(b, Position{Inline: 0, Offset: 3}))
	assert.Equal(t, 5, FlattenOffset(b, Position{Inline: 1, Offset: 0}))
	assert.Equal(t, 7, FlattenOffset(b, Position{Inline: 2, Offset: 2}))
	assert.Equal(t, 5, FlattenOffset(b, Position{Inline: 0, Offset: 99}))

	assert.Equal(t, Position{Inline: 0, Offset: 5}, LocateOffset(b, 5))
	assert.Equal(t, Position{Inline: 2, Offset: 1}, LocateOffset(b, 6))
	assert.Equal(t, Position{Inline: 2, Offset: 6}, LocateOffset(b, 50))

	for off := 0; off <= b.TextLen(); off++ {
		assert.Equal(t, off, FlattenOffset(b, LocateOffset(b, off)))
	}
}

func TestLocateTextOffsetWithoutText(t *testing.T) {
	b := &Block{Tag: TagParagraph, Inlines: []Inline{Image("a.png", "")}}

	_, ok := LocateTextOffset(b, 0)
	assert.False(t, ok)
	assert.Equal(t, Position{Inline: 0, Offset: 1}, LocateOffset(b, 0))

	empty := NewParagraph("")
	_, ok = LocateTextOffset(empty, 0)
	assert.False(t, ok)
	assert.Equal(t, Position{}, LocateOffset(empty, 3))
}
