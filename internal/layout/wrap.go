// Package layout measures blocks in terminal cells.
//
// Text is segmented into grapheme clusters and each cluster occupies the
// cell width reported by go-runewidth. Rows wrap at the last space that
// fits when word wrapping is on.
package layout

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// Wrapper computes wrapped row layouts for text.
type Wrapper struct {
	tabWidth   int
	wrapAtWord bool
}

// NewWrapper creates a wrapper with the given tab width.
func NewWrapper(tabWidth int, wrapAtWord bool) *Wrapper {
	if tabWidth < 1 {
		tabWidth = 4
	}
	return &Wrapper{tabWidth: tabWidth, wrapAtWord: wrapAtWord}
}

// TabWidth returns the tab width.
func (w *Wrapper) TabWidth() int {
	return w.tabWidth
}

// Width returns the cell width of text on a single row.
func (w *Wrapper) Width(text string) int {
	width := 0
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		width += w.clusterWidth(g.Str(), width)
	}
	return width
}

// Rows returns the number of rows text occupies at the given width.
// Empty text occupies one row. Newlines start a new row.
func (w *Wrapper) Rows(text string, width int) int {
	return len(w.Wrap(text, width))
}

// Wrap splits text into rows of at most width cells. A width below one
// disables wrapping.
func (w *Wrapper) Wrap(text string, width int) []string {
	var rows []string
	for _, line := range strings.Split(text, "\n") {
		rows = append(rows, w.wrapLine(line, width)...)
	}
	return rows
}

func (w *Wrapper) wrapLine(line string, width int) []string {
	if width < 1 || line == "" {
		return []string{line}
	}

	var (
		rows      []string
		row       strings.Builder
		col       int
		lastSpace = -1 // byte offset in row just past the last space
		spaceCol  int
	)
	g := uniseg.NewGraphemes(line)
	for g.Next() {
		cluster := g.Str()
		cw := w.clusterWidth(cluster, col)

		if col+cw > width && col > 0 {
			current := row.String()
			// A space at the break is consumed by the break.
			if cluster == " " {
				rows = append(rows, current)
				row.Reset()
				col = 0
				lastSpace = -1
				continue
			}
			if w.wrapAtWord && lastSpace > 0 && lastSpace < len(current) {
				rows = append(rows, current[:lastSpace])
				rest := current[lastSpace:]
				row.Reset()
				row.WriteString(rest)
				col -= spaceCol
			} else {
				rows = append(rows, current)
				row.Reset()
				col = 0
			}
			lastSpace = -1
		}

		row.WriteString(cluster)
		col += cw
		if cluster == " " || cluster == "\t" {
			lastSpace = row.Len()
			spaceCol = col
		}
	}
	return append(rows, row.String())
}

func (w *Wrapper) clusterWidth(cluster string, col int) int {
	if cluster == "\t" {
		return w.tabWidth - (col % w.tabWidth)
	}
	return runewidth.StringWidth(cluster)
}
