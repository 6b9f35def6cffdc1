package docio

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/pagestorm/internal/engine/doc"
	"github.com/dshills/pagestorm/internal/engine/renumber"
)

// Version is the export format version written by this package.
const Version = 1

// File is the exported form of a document.
type File struct {
	Version int              `json:"version" yaml:"version" cbor:"version"`
	Pages   []PageRecord     `json:"pages" yaml:"pages" cbor:"pages"`
	Media   []doc.MediaEntry `json:"media,omitempty" yaml:"media,omitempty" cbor:"media,omitempty"`
}

// PageRecord is one exported page.
type PageRecord struct {
	Number int           `json:"number" yaml:"number" cbor:"number"`
	Blocks []BlockRecord `json:"blocks" yaml:"blocks" cbor:"blocks"`
}

// BlockRecord is one exported block.
type BlockRecord struct {
	BlockID   string          `json:"blockId,omitempty" yaml:"blockId,omitempty" cbor:"blockId,omitempty"`
	Ordinal   int             `json:"ordinal,omitempty" yaml:"ordinal,omitempty" cbor:"ordinal,omitempty"`
	Tag       doc.Tag         `json:"tag" yaml:"tag" cbor:"tag"`
	StyleKind string          `json:"styleKind,omitempty" yaml:"styleKind,omitempty" cbor:"styleKind,omitempty"`
	Style     *doc.BlockStyle `json:"style,omitempty" yaml:"style,omitempty" cbor:"style,omitempty"`
	Inlines   []InlineRecord  `json:"inlines,omitempty" yaml:"inlines,omitempty" cbor:"inlines,omitempty"`
}

// InlineRecord is one exported inline. Type is "text" or "image".
type InlineRecord struct {
	Type  string     `json:"type" yaml:"type" cbor:"type"`
	Text  string     `json:"text,omitempty" yaml:"text,omitempty" cbor:"text,omitempty"`
	Src   string     `json:"src,omitempty" yaml:"src,omitempty" cbor:"src,omitempty"`
	Alt   string     `json:"alt,omitempty" yaml:"alt,omitempty" cbor:"alt,omitempty"`
	Marks *doc.Marks `json:"marks,omitempty" yaml:"marks,omitempty" cbor:"marks,omitempty"`
}

// Export converts d to its exported form. d is not modified; a renumbered
// copy is exported. Artifacts are presentation only and are dropped.
func Export(d *doc.Document) File {
	c := d.Clone()
	renumber.Document(c)

	f := File{
		Version: Version,
		Pages:   make([]PageRecord, 0, len(c.Pages)),
		Media:   c.Media,
	}
	for _, p := range c.Pages {
		pr := PageRecord{Number: p.Number, Blocks: make([]BlockRecord, 0, len(p.Blocks))}
		for _, b := range p.Blocks {
			pr.Blocks = append(pr.Blocks, exportBlock(b))
		}
		f.Pages = append(f.Pages, pr)
	}
	return f
}

func exportBlock(b *doc.Block) BlockRecord {
	br := BlockRecord{
		BlockID:   b.ID,
		Ordinal:   b.Ordinal,
		Tag:       b.Tag,
		StyleKind: b.StyleKind,
	}
	if b.Style != (doc.BlockStyle{}) {
		style := b.Style
		br.Style = &style
	}
	for _, in := range b.Inlines {
		var ir InlineRecord
		switch in.Kind {
		case doc.InlineText:
			ir = InlineRecord{Type: "text", Text: in.Text}
		case doc.InlineImage:
			ir = InlineRecord{Type: "image", Src: in.Src, Alt: in.Alt}
		default:
			continue
		}
		if in.Marks != (doc.Marks{}) {
			marks := in.Marks
			ir.Marks = &marks
		}
		br.Inlines = append(br.Inlines, ir)
	}
	return br
}

// Import builds a document from its exported form and renumbers it.
// Stored ids and ordinals are advisory; they are regenerated from
// position. Media metadata is carried over for images still present, and
// an empty page receives an empty paragraph.
func Import(f File) (*doc.Document, error) {
	if f.Version > Version {
		return nil, fmt.Errorf("%w: version %d is newer than %d", ErrInvalidDocument, f.Version, Version)
	}
	if len(f.Pages) == 0 {
		return nil, fmt.Errorf("%w: no pages", ErrInvalidDocument)
	}

	d := &doc.Document{Media: f.Media}
	for pi, pr := range f.Pages {
		p := doc.NewPage()
		for bi, br := range pr.Blocks {
			b, err := importBlock(br)
			if err != nil {
				return nil, fmt.Errorf("page %d block %d: %w", pi+1, bi+1, err)
			}
			p.Blocks = append(p.Blocks, b)
		}
		d.Pages = append(d.Pages, p)
	}
	renumber.Document(d)
	return d, nil
}

func importBlock(br BlockRecord) (*doc.Block, error) {
	tag := br.Tag
	if tag == "" {
		tag = doc.TagParagraph
	}
	if !tag.Valid() {
		return nil, fmt.Errorf("%w: unknown tag %q", ErrInvalidDocument, br.Tag)
	}

	b := &doc.Block{Tag: tag, StyleKind: br.StyleKind}
	if br.Style != nil {
		b.Style = *br.Style
	}
	for _, ir := range br.Inlines {
		var marks doc.Marks
		if ir.Marks != nil {
			marks = *ir.Marks
		}
		switch ir.Type {
		case "text", "":
			b.Inlines = append(b.Inlines, doc.TextRun(ir.Text, marks))
		case "image":
			if ir.Src == "" {
				return nil, fmt.Errorf("%w: image without src", ErrInvalidDocument)
			}
			img := doc.Image(ir.Src, ir.Alt)
			img.Marks = marks
			b.Inlines = append(b.Inlines, img)
		default:
			return nil, fmt.Errorf("%w: unknown inline type %q", ErrInvalidDocument, ir.Type)
		}
	}
	return b, nil
}

// WriteDocument exports d to w in format f.
func WriteDocument(w io.Writer, f Format, d *doc.Document) error {
	return Encode(w, f, Export(d))
}

// ReadDocument reads a document in format f from r.
func ReadDocument(r io.Reader, f Format) (*doc.Document, error) {
	var file File
	if err := Decode(r, f, &file); err != nil {
		return nil, err
	}
	return Import(file)
}

// LoadDocument reads the document at path, choosing the format by
// extension.
func LoadDocument(path string) (*doc.Document, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer r.Close()

	d, err := ReadDocument(r, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// SaveDocument writes d to path, choosing the format by extension. The
// file is written to a temporary sibling and renamed into place.
func SaveDocument(path string, d *doc.Document) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	w, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	if err := WriteDocument(w, f, d); err != nil {
		w.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close document: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}
