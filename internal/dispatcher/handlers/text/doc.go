// Package text provides handlers for inline text edits inside one
// paragraph. Paragraphs are addressed by document ordinal and offsets
// count characters over the paragraph's text runs.
//
// Replace and delete accept a literal or regular expression search. When
// several matches are edited they are applied back to front so earlier
// edits never move later matches. Reported changes use offsets in the
// edited text.
package text
