package reflow

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/pagestorm/internal/engine/doc"
	"github.com/dshills/pagestorm/internal/engine/renumber"
	"github.com/dshills/pagestorm/internal/engine/selection"
)

// stubMeasurer measures blocks by a fixed height table.
type stubMeasurer struct {
	capacity   float64
	heights    map[*doc.Block]float64
	padding    float64
	unmeasured map[*doc.Page]bool
}

func newStub(capacity float64) *stubMeasurer {
	return &stubMeasurer{
		capacity:   capacity,
		heights:    map[*doc.Block]float64{},
		unmeasured: map[*doc.Page]bool{},
	}
}

func (m *stubMeasurer) block(text string, h float64) *doc.Block {
	b := doc.NewParagraph(text)
	m.heights[b] = h
	return b
}

func (m *stubMeasurer) ContentExtent(p *doc.Page) (float64, error) {
	if m.unmeasured[p] {
		return 0, doc.ErrMeasurementUnavailable
	}
	total := m.padding
	for _, b := range p.Blocks {
		total += m.heights[b]
	}
	return total, nil
}

func (m *stubMeasurer) Capacity(p *doc.Page) (float64, error) {
	if m.unmeasured[p] {
		return 0, doc.ErrMeasurementUnavailable
	}
	return m.capacity, nil
}

func (m *stubMeasurer) BlockEdge(p *doc.Page, i int) (float64, error) {
	edge := 0.0
	for _, b := range p.Blocks[:i+1] {
		edge += m.heights[b]
	}
	return edge, nil
}

func texts(p *doc.Page) []string {
	var out []string
	for _, b := range p.Blocks {
		out = append(out, b.Text())
	}
	return out
}

func TestThreeParagraphScenario(t *testing.T) {
	m := newStub(500)
	d := doc.New(doc.NewPage(m.block("a", 200), m.block("b", 200), m.block("c", 200)))
	renumber.Document(d)

	rep, err := New(m).CheckPageOverflow(d, d.Pages[0], nil)

	require.NoError(t, err)
	require.Len(t, d.Pages, 2)
	assert.Equal(t, []string{"a", "b"}, texts(d.Pages[0]))
	assert.Equal(t, []string{"c"}, texts(d.Pages[1]))
	assert.Equal(t, "p2-1", d.Pages[1].Blocks[0].ID)
	assert.Equal(t, 1, rep.PagesCreated)
	assert.Equal(t, 1, rep.BlocksMoved)
	assert.Equal(t, 2, rep.PagesChecked, "the new page is checked once and found fine")
	assert.True(t, rep.Changed())
}

func TestNoOverflowIsNoOp(t *testing.T) {
	m := newStub(500)
	d := doc.New(doc.NewPage(m.block("a", 200), m.block("b", 300)))
	renumber.Document(d)

	rep, err := New(m).CheckPageOverflow(d, d.Pages[0], nil)

	require.NoError(t, err)
	assert.False(t, rep.Changed())
	assert.Len(t, d.Pages, 1)
}

func TestOverflowPrependsToExistingPage(t *testing.T) {
	m := newStub(500)
	d := doc.New(
		doc.NewPage(m.block("a", 300), m.block("b", 300)),
		doc.NewPage(m.block("x", 100)),
	)
	renumber.Document(d)

	rep, err := New(m).CheckPageOverflow(d, d.Pages[0], nil)

	require.NoError(t, err)
	assert.Equal(t, 0, rep.PagesCreated)
	assert.Equal(t, []string{"b", "x"}, texts(d.Pages[1]))
}

func TestOverflowCascades(t *testing.T) {
	m := newStub(500)
	page := doc.NewPage()
	for i := 0; i < 6; i++ {
		page.Blocks = append(page.Blocks, m.block(string(rune('a'+i)), 200))
	}
	d := doc.New(page)
	renumber.Document(d)

	rep, err := New(m).CheckPageOverflow(d, d.Pages[0], nil)

	require.NoError(t, err)
	require.Len(t, d.Pages, 3)
	assert.Equal(t, []string{"a", "b"}, texts(d.Pages[0]))
	assert.Equal(t, []string{"c", "d"}, texts(d.Pages[1]))
	assert.Equal(t, []string{"e", "f"}, texts(d.Pages[2]))
	assert.Equal(t, 2, rep.PagesCreated)
	assert.Equal(t, 6, rep.BlocksMoved)
}

func TestNoCrossingBlockMovesLast(t *testing.T) {
	m := newStub(500)
	m.padding = 150
	d := doc.New(doc.NewPage(m.block("a", 200), m.block("b", 200)))
	renumber.Document(d)

	_, err := New(m).CheckPageOverflow(d, d.Pages[0], nil)

	require.NoError(t, err)
	require.Len(t, d.Pages, 2)
	assert.Equal(t, []string{"a"}, texts(d.Pages[0]))
	assert.Equal(t, []string{"b"}, texts(d.Pages[1]))
}

func TestSingleOversizedBlockStays(t *testing.T) {
	m := newStub(500)
	d := doc.New(doc.NewPage(m.block("huge", 900)))
	renumber.Document(d)

	rep, err := New(m).CheckPageOverflow(d, d.Pages[0], nil)

	require.NoError(t, err)
	assert.False(t, rep.Changed())
	assert.Len(t, d.Pages, 1)
}

func TestOversizedFirstBlockKeepsPage(t *testing.T) {
	m := newStub(500)
	d := doc.New(doc.NewPage(m.block("huge", 900), m.block("small", 50)))
	renumber.Document(d)

	_, err := New(m).CheckPageOverflow(d, d.Pages[0], nil)

	require.NoError(t, err)
	require.Len(t, d.Pages, 2)
	assert.Equal(t, []string{"huge"}, texts(d.Pages[0]))
	assert.Equal(t, []string{"small"}, texts(d.Pages[1]))
}

func TestUnmeasurablePageIsNoOverflow(t *testing.T) {
	m := newStub(500)
	d := doc.New(doc.NewPage(m.block("a", 400), m.block("b", 400)))
	renumber.Document(d)
	m.unmeasured[d.Pages[0]] = true

	rep, err := New(m).CheckPageOverflow(d, d.Pages[0], nil)

	require.NoError(t, err)
	assert.Equal(t, 1, rep.Unmeasurable)
	assert.False(t, rep.Changed())
}

func TestUnknownPage(t *testing.T) {
	m := newStub(500)
	d := doc.New()

	_, err := New(m).CheckPageOverflow(d, doc.NewPage(), nil)
	assert.ErrorIs(t, err, doc.ErrNotFound)
}

func TestCaretFollowsContent(t *testing.T) {
	m := newStub(500)
	c := m.block("caret here", 200)
	d := doc.New(doc.NewPage(m.block("a", 200), m.block("b", 200), c))
	renumber.Document(d)
	sel := selection.Caret(c, 5)

	rep, err := New(m).CheckPageOverflow(d, d.Pages[0], &sel)

	require.NoError(t, err)
	assert.True(t, rep.CaretMoved)
	assert.Equal(t, 2, rep.CaretPage)
	assert.Same(t, c, sel.Focus.Block)
	assert.Equal(t, "p2-1", sel.Focus.Block.ID)
	assert.Equal(t, 5, sel.Focus.Offset())
}

func TestCaretOutsideMovedContentStays(t *testing.T) {
	m := newStub(500)
	a := m.block("a", 200)
	d := doc.New(doc.NewPage(a, m.block("b", 200), m.block("c", 200)))
	renumber.Document(d)
	sel := selection.Caret(a, 0)

	rep, err := New(m).CheckPageOverflow(d, d.Pages[0], &sel)

	require.NoError(t, err)
	assert.False(t, rep.CaretMoved)
	assert.Same(t, a, sel.Focus.Block)
}

func TestConvergenceAndConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		m := newStub(500)
		var pages []*doc.Page
		before := map[*doc.Block]int{}
		for p := 0; p < 1+rng.Intn(3); p++ {
			page := doc.NewPage()
			for i := 0; i < 1+rng.Intn(8); i++ {
				b := m.block("x", float64(50+rng.Intn(400)))
				before[b]++
				page.Blocks = append(page.Blocks, b)
			}
			pages = append(pages, page)
		}
		d := doc.New(pages...)
		renumber.Document(d)
		blocks := d.BlockCount()
		e := New(m)

		iterations := 0
		for len(e.Overflowing(d)) > 0 {
			rep, err := e.CheckDocument(d, nil)
			require.NoError(t, err)
			iterations++
			require.LessOrEqual(t, iterations, blocks)
			require.LessOrEqual(t, rep.PagesChecked, d.PageCount())
		}

		after := map[*doc.Block]int{}
		for _, b := range d.Blocks() {
			after[b]++
		}
		assert.Equal(t, before, after, "blocks are neither duplicated nor dropped")

		for _, p := range d.Pages {
			extent, _ := m.ContentExtent(p)
			assert.True(t, extent <= 500 || len(p.Blocks) == 1)
		}
	}
}
