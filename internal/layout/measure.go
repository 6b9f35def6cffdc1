package layout

import (
	"fmt"

	"github.com/dshills/pagestorm/internal/engine/doc"
)

// Config describes the page geometry in cells.
type Config struct {
	// Width is the page width in cells.
	Width int
	// Height is the page capacity in rows.
	Height int
	// TabWidth is the tab stop interval.
	TabWidth int
	// WrapAtWord breaks rows at spaces when possible.
	WrapAtWord bool
	// ImageRows is the number of rows an image occupies.
	ImageRows int
	// IndentCells is the width of one indent level.
	IndentCells int
	// HeadingGap is the number of blank rows after a heading.
	HeadingGap int
	// CacheSize bounds the row cache (0 = unlimited).
	CacheSize int
}

// DefaultConfig returns an 80x50 page.
func DefaultConfig() Config {
	return Config{
		Width:       80,
		Height:      50,
		TabWidth:    4,
		WrapAtWord:  true,
		ImageRows:   4,
		IndentCells: 2,
		HeadingGap:  1,
		CacheSize:   4096,
	}
}

// Measurer measures pages in rows. It satisfies reflow.Measurer.
type Measurer struct {
	cfg     Config
	wrapper *Wrapper
	cache   *RowCache
}

// NewMeasurer creates a measurer for the given geometry.
func NewMeasurer(cfg Config) *Measurer {
	w := NewWrapper(cfg.TabWidth, cfg.WrapAtWord)
	return &Measurer{
		cfg:     cfg,
		wrapper: w,
		cache:   NewRowCache(w, cfg.CacheSize),
	}
}

// Config returns the measurer geometry.
func (m *Measurer) Config() Config {
	return m.cfg
}

// Stats returns the row cache statistics.
func (m *Measurer) Stats() CacheStats {
	return m.cache.Stats()
}

func (m *Measurer) ready() error {
	if m.cfg.Width < 1 || m.cfg.Height < 1 {
		return fmt.Errorf("page geometry %dx%d: %w", m.cfg.Width, m.cfg.Height, doc.ErrMeasurementUnavailable)
	}
	return nil
}

// BlockRows returns the rows occupied by b including its trailing
// spacing.
func (m *Measurer) BlockRows(b *doc.Block) int {
	width := m.cfg.Width - b.Style.Indent*m.cfg.IndentCells
	if width < 1 {
		width = 1
	}

	rows := 0
	images := len(b.Images())
	if b.HasText() || images == 0 {
		rows = m.cache.Rows(b.Text(), width)
	}
	rows += images * m.cfg.ImageRows
	rows += b.Style.Spacing
	if b.Tag.IsHeading() {
		rows += m.cfg.HeadingGap
	}
	return rows
}

// ContentExtent reports the total rows of the page content.
func (m *Measurer) ContentExtent(p *doc.Page) (float64, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	total := 0
	for _, b := range p.Blocks {
		total += m.BlockRows(b)
	}
	return float64(total), nil
}

// Capacity reports the page height in rows.
func (m *Measurer) Capacity(*doc.Page) (float64, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	return float64(m.cfg.Height), nil
}

// BlockEdge reports the row just past block i.
func (m *Measurer) BlockEdge(p *doc.Page, i int) (float64, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	if i < 0 || i >= len(p.Blocks) {
		return 0, fmt.Errorf("block %d of %d: %w", i, len(p.Blocks), doc.ErrNotFound)
	}
	edge := 0
	for _, b := range p.Blocks[:i+1] {
		edge += m.BlockRows(b)
	}
	return float64(edge), nil
}
