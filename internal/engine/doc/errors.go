package doc

import "errors"

// Errors shared by the engine packages. Queries in this package report
// absence with nil/false values; these sentinels are used by callers
// that need to surface a failure.
var (
	// ErrNotFound indicates an address did not resolve: the identifier is
	// stale or the page/paragraph does not exist.
	ErrNotFound = errors.New("address not found")

	// ErrAmbiguousBoundary indicates a split or merge text boundary could
	// not be located in the block text.
	ErrAmbiguousBoundary = errors.New("text boundary not locatable")

	// ErrInvalidState indicates an operation ran before renumbering ever
	// assigned identifiers.
	ErrInvalidState = errors.New("document has not been renumbered")

	// ErrMeasurementUnavailable indicates the layout host cannot answer a
	// size query yet. Reflow treats it as "no overflow".
	ErrMeasurementUnavailable = errors.New("measurement unavailable")

	// ErrOffsetOutOfRange indicates a character offset outside a block.
	ErrOffsetOutOfRange = errors.New("offset out of range")
)
