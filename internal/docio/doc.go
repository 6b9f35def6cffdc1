// Package docio reads and writes documents and command batches.
//
// A document is exported as its page and block tree. Every block carries
// the derived blockId and ordinal, and the media index travels as a
// separate block next to the pages. The document is renumbered before it
// is written, so exported ids always match positions.
//
// Three encodings are supported: YAML (gopkg.in/yaml.v3), JSON, and CBOR
// (github.com/fxamacker/cbor/v2). The encoding is chosen by file
// extension when reading or writing files.
package docio
