// Package doc defines the paginated block tree and its address model.
//
// A Document is an ordered list of Pages; each Page holds Blocks
// (paragraphs and headings), and each Block holds Inlines (text runs,
// atomic images, and rendered presentation artifacts).
//
// # Identifiers
//
// Block identifiers have the form "p<page>-<index>" and are derived from
// tree position. They are regenerated by every renumbering pass, so code
// that must survive a pass (selection snapshots, pending command targets)
// re-resolves by position instead of caching the string. Identifiers that
// must stay stable within a command batch live in a separate namespace
// (Block.TempID, Block.Placeholder).
//
// # Offsets
//
// Offsets are character (rune) counts over the block's text runs. Images
// take part in walk order but contribute nothing to the offset; rendered
// artifacts are ignored entirely.
//
// # Node identity
//
// Pages and Blocks are always handled by pointer. Moving a block between
// pages (Reparent) keeps the same *Block, so live references such as a
// caret follow the content.
package doc
