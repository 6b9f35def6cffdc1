package docio

import "errors"

// Codec errors.
var (
	// ErrUnknownFormat indicates an encoding that is not supported.
	ErrUnknownFormat = errors.New("unknown format")

	// ErrInvalidDocument indicates a decoded document that cannot be
	// turned into a page tree.
	ErrInvalidDocument = errors.New("invalid document")
)
