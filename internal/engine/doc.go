// Package engine provides the editing session for pagestorm.
//
// A Session owns one paginated document together with the live selection
// and the layout measurer, and runs the consistency pipeline after every
// mutation: renumbering first, then overflow reflow, with the selection
// captured before and restored after destructive rewrites.
//
// # Architecture
//
// The session is built on several sub-packages:
//
//   - doc: the page/block tree and the address model
//   - renumber: identifier, ordinal and media index repair
//   - selection: live range to address snapshot conversion
//   - reflow: overflow detection and trailing block migration
//
// # Thread Safety
//
// All Session operations are thread-safe. Reads take a shared lock and
// mutations are serialized, so the session is the single writer of its
// document.
//
// # Basic Usage
//
//	s := engine.New(engine.WithDocument(d))
//
//	// Mutate, then repair ids and pagination.
//	err := s.Update(func(d *doc.Document) error {
//	    d.Pages[0].InsertBlock(0, doc.NewParagraph("Title"))
//	    return nil
//	})
//
//	// Rewrite inline content without losing the caret.
//	s.NormalizeInlines()
package engine
