// Package server exposes a document session over HTTP.
//
// Routes:
//
//	GET  /api/health            liveness and document counters
//	GET  /api/document          the document (?format=json|yaml|cbor)
//	PUT  /api/document          replace the document
//	POST /api/commands          run a command batch (?dryRun=true checks only)
//	POST /api/scripts           run a Lua edit script (?dryRun=true checks only)
//	POST /api/renumber          repair ids, ordinals and the media index
//	POST /api/reflow            resolve overflow (?page=n starts at page n)
//	GET  /api/media             the media index
//	GET  /api/metrics           executor metrics
//	GET  /api/journal           recent edits (?limit=n)
//
// Request bodies are decoded by the format query parameter, then the
// Content-Type header, defaulting to JSON. Every request is serialized
// through the session.
package server
