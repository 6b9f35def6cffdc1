package engine

import "errors"

// Errors returned by session operations.
var (
	// ErrReadOnly indicates a mutation was attempted on a read-only session.
	ErrReadOnly = errors.New("session is read-only")

	// ErrNoSelection indicates the session has no live selection.
	ErrNoSelection = errors.New("no selection")

	// ErrPageNotFound indicates a page number outside the document.
	ErrPageNotFound = errors.New("page not found")
)
