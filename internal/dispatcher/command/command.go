// Package command defines the structural edit commands accepted by the
// dispatcher.
//
// A Command is an immutable instruction. Commands are produced by a
// command source (a batch file, a Lua script, an HTTP request) and
// consumed exactly once by the executor.
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dshills/pagestorm/internal/engine/doc"
)

// ErrInvalidCommand indicates a malformed command.
var ErrInvalidCommand = errors.New("invalid command")

// Kind names a command.
type Kind string

// Command kinds.
const (
	KindInsertParagraph Kind = "insert_paragraph"
	KindDeleteParagraph Kind = "delete_paragraph"
	KindMoveParagraph   Kind = "move_paragraph"
	KindSplitParagraph  Kind = "split_paragraph"
	KindMergeParagraph  Kind = "merge_paragraph"
	KindInsertText      Kind = "insert_text"
	KindReplaceText     Kind = "replace_text"
	KindDeleteText      Kind = "delete_text"
)

// Kinds lists every command kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindInsertParagraph, KindDeleteParagraph, KindMoveParagraph,
		KindSplitParagraph, KindMergeParagraph,
		KindInsertText, KindReplaceText, KindDeleteText,
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// IsText reports whether k is an ordinal-addressed text edit.
func (k Kind) IsText() bool {
	return k == KindInsertText || k == KindReplaceText || k == KindDeleteText
}

// Target addresses a block. Exactly one form is used, checked in this
// order: ID, Ordinal, Page, NewPage.
type Target struct {
	// ID is a derived block id ("p2-1") or a batch temporary id.
	ID string `json:"id,omitempty" yaml:"id,omitempty" cbor:"id,omitempty"`
	// Ordinal is the 1-based position of the block in document order.
	Ordinal int `json:"ordinal,omitempty" yaml:"ordinal,omitempty" cbor:"ordinal,omitempty"`
	// Page is a 1-based page number. Pages beyond the last page at the
	// start of the batch are virtual.
	Page int `json:"page,omitempty" yaml:"page,omitempty" cbor:"page,omitempty"`
	// Paragraph is the 1-based block index within Page; 0 means 1.
	Paragraph int `json:"paragraph,omitempty" yaml:"paragraph,omitempty" cbor:"paragraph,omitempty"`
	// NewPage addresses the first paragraph of the next new page.
	NewPage bool `json:"newPage,omitempty" yaml:"newPage,omitempty" cbor:"newPage,omitempty"`
}

// IsZero reports whether no address form is set.
func (t Target) IsZero() bool {
	return t.ID == "" && t.Ordinal == 0 && t.Page == 0 && !t.NewPage
}

// String returns a readable form of the address.
func (t Target) String() string {
	switch {
	case t.ID != "":
		return t.ID
	case t.Ordinal > 0:
		return fmt.Sprintf("#%d", t.Ordinal)
	case t.Page > 0:
		para := t.Paragraph
		if para < 1 {
			para = 1
		}
		return fmt.Sprintf("page %d paragraph %d", t.Page, para)
	case t.NewPage:
		return "next new page"
	}
	return "<none>"
}

// Command is one structural edit.
type Command struct {
	ID     string `json:"id,omitempty" yaml:"id,omitempty" cbor:"id,omitempty"`
	Kind   Kind   `json:"kind" yaml:"kind" cbor:"kind"`
	Target Target `json:"target" yaml:"target" cbor:"target"`
	// Source is the block moved or merged away.
	Source Target `json:"source,omitempty" yaml:"source,omitempty" cbor:"source,omitempty"`

	// TempID names the block created by insert or split for later
	// commands of the same batch.
	TempID    string          `json:"tempId,omitempty" yaml:"tempId,omitempty" cbor:"tempId,omitempty"`
	Tag       doc.Tag         `json:"tag,omitempty" yaml:"tag,omitempty" cbor:"tag,omitempty"`
	StyleKind string          `json:"styleKind,omitempty" yaml:"styleKind,omitempty" cbor:"styleKind,omitempty"`
	Style     *doc.BlockStyle `json:"style,omitempty" yaml:"style,omitempty" cbor:"style,omitempty"`
	Marks     *doc.Marks      `json:"marks,omitempty" yaml:"marks,omitempty" cbor:"marks,omitempty"`
	Text      string          `json:"text,omitempty" yaml:"text,omitempty" cbor:"text,omitempty"`

	// Split boundary.
	Before string `json:"before,omitempty" yaml:"before,omitempty" cbor:"before,omitempty"`
	After  string `json:"after,omitempty" yaml:"after,omitempty" cbor:"after,omitempty"`

	// Text search.
	Search        string `json:"search,omitempty" yaml:"search,omitempty" cbor:"search,omitempty"`
	Replace       string `json:"replace,omitempty" yaml:"replace,omitempty" cbor:"replace,omitempty"`
	Regex         bool   `json:"regex,omitempty" yaml:"regex,omitempty" cbor:"regex,omitempty"`
	CaseSensitive bool   `json:"caseSensitive,omitempty" yaml:"caseSensitive,omitempty" cbor:"caseSensitive,omitempty"`
	All           bool   `json:"all,omitempty" yaml:"all,omitempty" cbor:"all,omitempty"`

	// Text range.
	Offset int `json:"offset,omitempty" yaml:"offset,omitempty" cbor:"offset,omitempty"`
	Length int `json:"length,omitempty" yaml:"length,omitempty" cbor:"length,omitempty"`
}

// WithDefaults returns a copy of c with a generated ID when it has none.
func (c Command) WithDefaults() Command {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Kind = Kind(strings.ToLower(string(c.Kind)))
	return c
}

// Validate checks that the command is well formed. It does not resolve
// addresses.
func (c Command) Validate() error {
	if !c.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, c.Kind)
	}
	if c.Target.IsZero() {
		return fmt.Errorf("%w: %s needs a target", ErrInvalidCommand, c.Kind)
	}
	if c.Kind.IsText() && c.Target.Ordinal < 1 {
		return fmt.Errorf("%w: %s is addressed by paragraph ordinal", ErrInvalidCommand, c.Kind)
	}
	if c.Tag != "" && !c.Tag.Valid() {
		return fmt.Errorf("%w: unknown tag %q", ErrInvalidCommand, c.Tag)
	}

	switch c.Kind {
	case KindMoveParagraph, KindMergeParagraph:
		if c.Source.IsZero() {
			return fmt.Errorf("%w: %s needs a source", ErrInvalidCommand, c.Kind)
		}
	case KindSplitParagraph:
		if c.Before == "" && c.After == "" {
			return fmt.Errorf("%w: split needs a before or after boundary", ErrInvalidCommand)
		}
	case KindInsertText:
		if c.Offset < 0 {
			return fmt.Errorf("%w: negative offset", ErrInvalidCommand)
		}
	case KindReplaceText:
		if c.Search == "" {
			return fmt.Errorf("%w: replace needs a search", ErrInvalidCommand)
		}
	case KindDeleteText:
		if c.Search == "" && (c.Offset < 0 || c.Length < 0) {
			return fmt.Errorf("%w: negative range", ErrInvalidCommand)
		}
	}
	return nil
}
