// Package paragraph provides handlers for structural paragraph edits.
//
// Supported kinds:
//
//   - insert_paragraph: insert a new block after the target, or in place of
//     a virtual-page placeholder
//   - delete_paragraph: remove the target block
//   - move_paragraph: move the source block to just after the target
//   - split_paragraph: cut the target in two at a text boundary
//   - merge_paragraph: append the source block's content to the target
//
// Blocks are moved by pointer, so a moved or merged block keeps its
// identity until renumbering gives it a new derived id. A page emptied by
// a delete, move or merge is removed unless it is the last page.
package paragraph
