// Package renumber assigns block identifiers and ordinals and rebuilds
// the media index.
//
// Renumbering is a pure function of tree position: calling Document twice
// with no intervening mutation leaves the document unchanged.
package renumber

import (
	"github.com/dshills/pagestorm/internal/engine/doc"
)

// Report summarizes one renumbering pass.
type Report struct {
	// Pages is the number of pages walked.
	Pages int
	// Blocks is the number of blocks numbered.
	Blocks int
	// Images is the number of media index entries produced.
	Images int
	// FilledPages counts empty pages that received an empty paragraph.
	FilledPages int
	// StrippedArtifacts counts blocks that carried rendered artifacts.
	StrippedArtifacts int
	// ReusedMedia counts entries whose metadata matched an existing one.
	ReusedMedia int
}

// Document renumbers every page and block of d and rebuilds its media
// index.
func Document(d *doc.Document) Report {
	var r Report
	for pi, p := range d.Pages {
		p.Number = pi + 1
		r.Pages++

		if len(p.Blocks) == 0 {
			p.Blocks = append(p.Blocks, doc.NewParagraph(""))
			r.FilledPages++
		}

		for bi, b := range p.Blocks {
			if b.StripArtifacts() {
				r.StrippedArtifacts++
			}
			if !b.Tag.Valid() {
				b.Tag = doc.TagParagraph
			}
			b.Ordinal = bi + 1
			b.ID = doc.FormatBlockID(p.Number, b.Ordinal)
			if b.StyleKind == "" {
				b.StyleKind = string(b.Tag)
			}
			r.Blocks++
		}
	}

	images, reused := rebuildMedia(d)
	r.Images = images
	r.ReusedMedia = reused
	return r
}

// rebuildMedia replaces d.Media with one entry per image in document
// order. Existing metadata is matched by source, first-seen first-matched.
func rebuildMedia(d *doc.Document) (total, reused int) {
	pool := make(map[string][]doc.MediaEntry, len(d.Media))
	for _, e := range d.Media {
		pool[e.Src] = append(pool[e.Src], e)
	}

	var out []doc.MediaEntry
	for _, p := range d.Pages {
		for _, b := range p.Blocks {
			for _, in := range b.Inlines {
				if in.Kind != doc.InlineImage {
					continue
				}
				entry := doc.MediaEntry{Src: in.Src}
				if queue := pool[in.Src]; len(queue) > 0 {
					entry = queue[0]
					pool[in.Src] = queue[1:]
					reused++
				}
				entry.Anchor = b.ID
				out = append(out, entry)
			}
		}
	}
	d.Media = out
	return len(out), reused
}
