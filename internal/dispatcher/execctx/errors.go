package execctx

import "errors"

// Context validation errors.
var (
	// ErrMissingDocument indicates the document is required but not set.
	ErrMissingDocument = errors.New("execution context: document is required")

	// ErrMissingBatch indicates the batch state is required but not set.
	ErrMissingBatch = errors.New("execution context: batch state is required")

	// ErrBadTransition indicates an illegal command state change.
	ErrBadTransition = errors.New("execution context: illegal state transition")

	// ErrDryRun is returned by Mutate when the context only resolves, and
	// by Resolve for virtual pages, which exist only once a batch runs.
	ErrDryRun = errors.New("execution context: dry run")
)
