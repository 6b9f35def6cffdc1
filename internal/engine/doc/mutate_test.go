package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReparentPrependsAndKeepsIdentity(t *testing.T) {
	a, b, c := NewParagraph("a"), NewParagraph("b"), NewParagraph("c")
	x := NewParagraph("x")
	from := NewPage(a, b, c)
	to := NewPage(x)

	n := Reparent(from, 1, 3, to)

	assert.Equal(t, 2, n)
	assert.Equal(t, []*Block{a}, from.Blocks)
	assert.Equal(t, []*Block{b, c, x}, to.Blocks)
	assert.Same(t, b, to.Blocks[0])
}

func TestReparentNoOp(t *testing.T) {
	p := NewPage(NewParagraph("a"))
	q := NewPage()

	assert.Equal(t, 0, Reparent(p, 1, 1, q))
	assert.Equal(t, 0, Reparent(p, 0, 1, p))
	assert.Equal(t, 0, Reparent(nil, 0, 1, q))
	assert.Len(t, p.Blocks, 1)
}

func TestInsertPageAfter(t *testing.T) {
	d := New(NewPage(NewParagraph("1")), NewPage(NewParagraph("2")))

	mid := d.InsertPageAfter(d.Pages[0])
	require.Len(t, d.Pages, 3)
	assert.Same(t, mid, d.Pages[1])
	assert.Same(t, mid, d.NextPage(d.Pages[0]))
	assert.Nil(t, d.NextPage(d.Pages[2]))

	first := d.InsertPageAfter(nil)
	assert.Same(t, first, d.Pages[0])
	assert.True(t, d.RemovePage(first))
	assert.False(t, d.RemovePage(first))
}

func TestBlockInsertDeleteText(t *testing.T) {
	b := &Block{Tag: TagParagraph, Inlines: []Inline{
		TextRun("Hello", Marks{Bold: true}),
		TextRun(" world", Marks{}),
	}}

	b.InsertText(5, ",")
	assert.Equal(t, "Hello, world", b.Text())
	assert.True(t, b.Inlines[0].Marks.Bold, "inserted text inherits the run marks")

	require.NoError(t, b.DeleteText(0, 7))
	assert.Equal(t, "world", b.Text())
	assert.Len(t, b.Inlines, 1, "emptied runs are dropped")

	err := b.DeleteText(2, 40)
	assert.ErrorIs(t, err, ErrOffsetOutOfRange)

	require.NoError(t, b.ReplaceText(0, 5, "there"))
	assert.Equal(t, "there", b.Text())

	empty := NewParagraph("")
	empty.InsertText(3, "new")
	assert.Equal(t, "new", empty.Text())
}

func TestReplaceTextKeepsRunAndMarks(t *testing.T) {
	newBlock := func() *Block {
		return &Block{Tag: TagParagraph, Inlines: []Inline{
			TextRun("a", Marks{}),
			Image("pic.png", ""),
			TextRun("cat", Marks{Bold: true}),
		}}
	}

	b := newBlock()
	require.NoError(t, b.ReplaceText(1, 4, "dog"))
	require.Len(t, b.Inlines, 3)
	assert.Equal(t, "a", b.Inlines[0].Text)
	assert.Equal(t, InlineImage, b.Inlines[1].Kind)
	assert.Equal(t, "dog", b.Inlines[2].Text)
	assert.True(t, b.Inlines[2].Marks.Bold)

	// A range spanning runs lands in the first and trims the rest.
	b = newBlock()
	require.NoError(t, b.ReplaceText(0, 2, "XY"))
	assert.Equal(t, "XYat", b.Text())
	require.Len(t, b.Inlines, 3)
	assert.Equal(t, "XY", b.Inlines[0].Text)
	assert.False(t, b.Inlines[0].Marks.Bold)
	assert.Equal(t, "at", b.Inlines[2].Text)

	b = newBlock()
	require.NoError(t, b.ReplaceText(1, 4, ""))
	assert.Equal(t, "a", b.Text())
	assert.Len(t, b.Inlines, 2)

	assert.ErrorIs(t, newBlock().ReplaceText(2, 9, "x"), ErrOffsetOutOfRange)
}

func TestSplitInlines(t *testing.T) {
	b := &Block{Tag: TagParagraph, Inlines: []Inline{
		TextRun("one ", Marks{}),
		Image("pic.png", ""),
		TextRun("two", Marks{Italic: true}),
	}}

	head, tail := b.SplitInlines(2)
	assert.Equal(t, "on", (&Block{Inlines: head}).Text())
	assert.Equal(t, "e two", (&Block{Inlines: tail}).Text())
	assert.Len(t, tail, 3)

	head, tail = b.SplitInlines(4)
	assert.Len(t, head, 1)
	assert.Equal(t, InlineImage, tail[0].Kind, "boundary images go with the tail")
	assert.True(t, tail[1].Marks.Italic)
}

func TestStripArtifacts(t *testing.T) {
	b := &Block{Inlines: []Inline{
		{Kind: InlineArtifact, Text: "¶1"},
		TextRun("body", Marks{}),
	}}

	assert.True(t, b.StripArtifacts())
	assert.Equal(t, "body", b.Text())
	assert.False(t, b.StripArtifacts())
}

func TestCloneIsDeep(t *testing.T) {
	d := New(NewPage(NewParagraph("x")))
	c := d.Clone()

	c.Pages[0].Blocks[0].InsertText(1, "y")
	assert.Equal(t, "x", d.Pages[0].Blocks[0].Text())
	assert.Equal(t, "xy", c.Pages[0].Blocks[0].Text())
}

func TestNormalizeInlines(t *testing.T) {
	bold := Marks{Bold: true}
	b := &Block{Tag: TagParagraph, Inlines: []Inline{
		TextRun("a", Marks{}),
		TextRun("b", Marks{}),
		TextRun("", bold),
		TextRun("c", bold),
		TextRun("d", bold),
		Image("x.png", ""),
		TextRun("e", Marks{}),
	}}

	removed := b.NormalizeInlines()

	assert.Equal(t, 3, removed)
	assert.Equal(t, "abcde", b.Text())
	require.Len(t, b.Inlines, 4)
	assert.Equal(t, "ab", b.Inlines[0].Text)
	assert.Equal(t, "cd", b.Inlines[1].Text)
	assert.Equal(t, InlineImage, b.Inlines[2].Kind)
	assert.Zero(t, b.NormalizeInlines(), "already normal")
}
