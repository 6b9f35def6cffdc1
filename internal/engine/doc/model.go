package doc

import (
	"strings"
	"unicode/utf8"
)

// Tag is the semantic kind of a block.
type Tag string

// Block tags.
const (
	TagParagraph Tag = "p"
	TagH1        Tag = "h1"
	TagH2        Tag = "h2"
	TagH3        Tag = "h3"
	TagH4        Tag = "h4"
	TagH5        Tag = "h5"
	TagH6        Tag = "h6"
)

// Valid reports whether t is a known block tag.
func (t Tag) Valid() bool {
	switch t {
	case TagParagraph, TagH1, TagH2, TagH3, TagH4, TagH5, TagH6:
		return true
	}
	return false
}

// IsHeading reports whether t is a heading level.
func (t Tag) IsHeading() bool {
	return t.Valid() && t != TagParagraph
}

// Alignment is the horizontal alignment of a block.
type Alignment string

// Alignments.
const (
	AlignLeft    Alignment = "left"
	AlignCenter  Alignment = "center"
	AlignRight   Alignment = "right"
	AlignJustify Alignment = "justify"
)

// BlockStyle holds block-level style attributes.
type BlockStyle struct {
	Align   Alignment `json:"align,omitempty" yaml:"align,omitempty" cbor:"align,omitempty"`
	Spacing int       `json:"spacing,omitempty" yaml:"spacing,omitempty" cbor:"spacing,omitempty"`
	Indent  int       `json:"indent,omitempty" yaml:"indent,omitempty" cbor:"indent,omitempty"`
	Hanging bool      `json:"hanging,omitempty" yaml:"hanging,omitempty" cbor:"hanging,omitempty"`
}

// Marks are the inline style marks of a run or image.
type Marks struct {
	Bold        bool   `json:"bold,omitempty" yaml:"bold,omitempty" cbor:"bold,omitempty"`
	Italic      bool   `json:"italic,omitempty" yaml:"italic,omitempty" cbor:"italic,omitempty"`
	Underline   bool   `json:"underline,omitempty" yaml:"underline,omitempty" cbor:"underline,omitempty"`
	Strike      bool   `json:"strike,omitempty" yaml:"strike,omitempty" cbor:"strike,omitempty"`
	Superscript bool   `json:"sup,omitempty" yaml:"sup,omitempty" cbor:"sup,omitempty"`
	Subscript   bool   `json:"sub,omitempty" yaml:"sub,omitempty" cbor:"sub,omitempty"`
	Color       string `json:"color,omitempty" yaml:"color,omitempty" cbor:"color,omitempty"`
	Highlight   string `json:"highlight,omitempty" yaml:"highlight,omitempty" cbor:"highlight,omitempty"`
}

// InlineKind distinguishes the inline content units.
type InlineKind uint8

const (
	// InlineText is a run of styled text.
	InlineText InlineKind = iota
	// InlineImage is an atomic image.
	InlineImage
	// InlineArtifact is rendered presentation (numbering badges, id
	// labels). Renumbering strips it; it never counts toward offsets.
	InlineArtifact
)

// String returns the kind name.
func (k InlineKind) String() string {
	switch k {
	case InlineText:
		return "text"
	case InlineImage:
		return "image"
	case InlineArtifact:
		return "artifact"
	default:
		return "unknown"
	}
}

// Inline is one content unit of a block.
type Inline struct {
	Kind  InlineKind
	Text  string
	Src   string
	Alt   string
	Marks Marks
}

// TextRun creates a text inline.
func TextRun(text string, marks Marks) Inline {
	return Inline{Kind: InlineText, Text: text, Marks: marks}
}

// Image creates an image inline.
func Image(src, alt string) Inline {
	return Inline{Kind: InlineImage, Src: src, Alt: alt}
}

// runeLen returns the offset width of the inline.
func (in Inline) runeLen() int {
	if in.Kind != InlineText {
		return 0
	}
	return utf8.RuneCountInString(in.Text)
}

// Block is a paragraph or heading.
type Block struct {
	// ID is the derived "p<page>-<index>" identifier.
	ID string
	// Ordinal is the 1-based index within the page.
	Ordinal int
	// Tag is the semantic kind.
	Tag Tag
	// StyleKind is a persisted style hint; defaults to the tag.
	StyleKind string
	// Inlines is the ordered inline content.
	Inlines []Inline
	// Style holds block-level attributes.
	Style BlockStyle

	// TempID is a batch-scoped identifier supplied by a command source.
	TempID string
	// Placeholder marks a slot synthesized for a virtual page address.
	Placeholder bool
}

// NewParagraph creates a paragraph holding a single unstyled text run.
// An empty text yields an empty paragraph.
func NewParagraph(text string) *Block {
	b := &Block{Tag: TagParagraph}
	if text != "" {
		b.Inlines = []Inline{TextRun(text, Marks{})}
	}
	return b
}

// Text returns the flattened text content.
func (b *Block) Text() string {
	if b == nil {
		return ""
	}
	var sb strings.Builder
	for _, in := range b.Inlines {
		if in.Kind == InlineText {
			sb.WriteString(in.Text)
		}
	}
	return sb.String()
}

// TextLen returns the character count of the text content.
func (b *Block) TextLen() int {
	if b == nil {
		return 0
	}
	n := 0
	for _, in := range b.Inlines {
		n += in.runeLen()
	}
	return n
}

// HasText reports whether the block has at least one text run.
func (b *Block) HasText() bool {
	if b == nil {
		return false
	}
	for _, in := range b.Inlines {
		if in.Kind == InlineText {
			return true
		}
	}
	return false
}

// Images returns the image inlines in walk order.
func (b *Block) Images() []Inline {
	var out []Inline
	for _, in := range b.Inlines {
		if in.Kind == InlineImage {
			out = append(out, in)
		}
	}
	return out
}

// Clone returns a deep copy of the block.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	c := *b
	c.Inlines = append([]Inline(nil), b.Inlines...)
	return &c
}

// Page is an ordered container of blocks.
type Page struct {
	// Number is the 1-based page number, recomputed by renumbering.
	Number int
	// Blocks is the ordered block list.
	Blocks []*Block
}

// NewPage creates a page holding the given blocks.
func NewPage(blocks ...*Block) *Page {
	return &Page{Blocks: blocks}
}

// Len returns the number of blocks on the page.
func (p *Page) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Blocks)
}

// IndexOf returns the index of b on the page, or -1.
func (p *Page) IndexOf(b *Block) int {
	for i, pb := range p.Blocks {
		if pb == b {
			return i
		}
	}
	return -1
}

// MediaEntry is metadata for one inline image.
type MediaEntry struct {
	Src     string `json:"src" yaml:"src" cbor:"src"`
	Anchor  string `json:"anchor" yaml:"anchor" cbor:"anchor"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty" cbor:"title,omitempty"`
	Caption string `json:"caption,omitempty" yaml:"caption,omitempty" cbor:"caption,omitempty"`
	Tag     string `json:"tag,omitempty" yaml:"tag,omitempty" cbor:"tag,omitempty"`
}

// Document is an ordered sequence of pages plus the media index.
type Document struct {
	Pages []*Page
	Media []MediaEntry
}

// New creates a document from pages. With no pages it holds one page
// containing one empty paragraph.
func New(pages ...*Page) *Document {
	if len(pages) == 0 {
		pages = []*Page{NewPage(NewParagraph(""))}
	}
	return &Document{Pages: pages}
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// BlockCount returns the number of blocks across all pages.
func (d *Document) BlockCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Blocks)
	}
	return n
}

// Blocks returns every block in document order.
func (d *Document) Blocks() []*Block {
	out := make([]*Block, 0, d.BlockCount())
	for _, p := range d.Pages {
		out = append(out, p.Blocks...)
	}
	return out
}

// Page returns the 1-based page n, or nil.
func (d *Document) Page(n int) *Page {
	if n < 1 || n > len(d.Pages) {
		return nil
	}
	return d.Pages[n-1]
}

// PageIndex returns the 0-based index of p, or -1.
func (d *Document) PageIndex(p *Page) int {
	for i, dp := range d.Pages {
		if dp == p {
			return i
		}
	}
	return -1
}

// Renumbered reports whether every block carries a derived identifier.
func (d *Document) Renumbered() bool {
	for _, p := range d.Pages {
		for _, b := range p.Blocks {
			if b.ID == "" {
				return false
			}
		}
	}
	return len(d.Pages) > 0
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := &Document{
		Pages: make([]*Page, len(d.Pages)),
		Media: append([]MediaEntry(nil), d.Media...),
	}
	for i, p := range d.Pages {
		np := &Page{Number: p.Number, Blocks: make([]*Block, len(p.Blocks))}
		for j, b := range p.Blocks {
			np.Blocks[j] = b.Clone()
		}
		c.Pages[i] = np
	}
	return c
}
