// Package dispatcher executes structural edit commands against a session.
//
// The Executor receives commands from a batch file, a script or the HTTP
// API and routes each one to the handler registered for its kind.
//
// # Command Lifecycle
//
// Each command in a batch moves through
// pending, resolving-target, applying, then succeeded or failed:
//
//  1. Defaults are filled in (a generated id) and the command is validated
//  2. Pre-execute hooks run and may rewrite or cancel the command
//  3. The handler for the kind resolves the target and mutates the document
//  4. The document is renumbered and reflowed
//  5. The result is resolved to settled block ids
//  6. Post-execute hooks run and metrics are recorded
//
// Batches are fail-fast. The first failing command stops the batch and
// the commands that already ran stay applied; callers that need to undo
// them capture the pre-mutation copies passed to SetSnapshot.
//
// # Addressing
//
// Targets name a block by derived id, document ordinal or page and
// paragraph. A page beyond the last page at batch start is virtual: the
// first reference synthesizes it with a placeholder paragraph and every
// later reference to the same number reuses it. Placeholders that no
// command consumed are deleted when the batch ends.
//
// # Handlers
//
// Handlers implement handler.Handler:
//
//	type Handler interface {
//	    Handle(cmd command.Command, ctx *execctx.ExecutionContext) Result
//	    CanHandle(kind command.Kind) bool
//	    Priority() int
//	}
//
// The built-in paragraph and text handlers are registered by
// RegisterDefaults. Several handlers may serve one kind; the highest
// priority wins.
//
// # Thread Safety
//
// Execution holds the session's write lock for the whole batch, so
// batches from concurrent callers are serialized.
package dispatcher
