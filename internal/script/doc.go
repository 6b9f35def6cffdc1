// Package script runs Lua edit scripts against a document.
//
// A script reads the document through the doc module and describes edits
// through the cmd module. Nothing a script does mutates the document: the
// run yields a command batch that the caller hands to the dispatcher.
//
//	r := script.NewRunner(script.WithTimeout(2 * time.Second))
//	res, err := r.Run(ctx, session, "fix.lua", source)
//	if err != nil {
//	    return err
//	}
//	br, err := system.ExecuteBatch(res.Commands)
//
// # Document API
//
//	doc.page_count()       number of pages
//	doc.block_count()      number of paragraphs
//	doc.page(n)            array of blocks on page n, or nil
//	doc.block(addr)        block by id ("p2-1") or ordinal, or nil
//	doc.blocks()           every block in document order
//	doc.find(text [, regex])
//	                       blocks whose text contains text, or matches
//	                       it as a regular expression when regex is true
//	doc.media()            the media index
//
// A block is a table with id, ordinal, page, index, tag, styleKind, text
// and images fields.
//
// # Command API
//
// Every command kind has a builder in the cmd module that takes a table of
// command fields and returns the 1-based position of the command in the
// batch:
//
//	cmd.insert_paragraph{target = {page = 2}, text = "Intro", temp_id = "t1"}
//	cmd.replace_text{target = 3, search = "colour", replace = "color", all = true}
//	cmd.emit{kind = "delete_paragraph", target = "p4-2"}
//
// Field names accept camelCase or snake_case. A number target is an
// ordinal and a string target is a block id.
//
// # Sandbox
//
// Only the base, string, table and math libraries are available. The
// loaders (dofile, loadfile, load, loadstring) are removed and require only
// returns the built-in libraries. print writes to the run output. A run is
// bounded by its context and the runner timeout.
package script
