// Package hook runs extensible pre/post execution hooks around every
// command the executor applies.
//
// Pre-execute hooks run in descending priority order before the command's
// target is resolved. Any of them may rewrite the command or cancel it by
// returning false. Post-execute hooks run in ascending priority order once
// the document has been renumbered and reflowed, so they observe the
// settled identifiers in the result.
//
// # Built-in Hooks
//
//   - AuditHook: logs every command and its outcome
//   - KindFilterHook: lets only selected command kinds through
//   - ValidationHook: custom validation before execution
//   - TimingHook: measures command execution time
//   - JournalHook: keeps a bounded log of applied edits
//
// # Usage Example
//
//	manager := hook.NewManager()
//	manager.Register(hook.NewAuditHook(logger))
//
//	journal := hook.NewJournalHook(100)
//	manager.RegisterPost(journal)
//
//	if name := manager.RunPreExecute(&cmd, ctx); name == "" {
//	    // Execute the command...
//	    manager.RunPostExecute(&cmd, ctx, &result)
//	}
//
// # Thread Safety
//
// All hook types are safe for concurrent use. The Manager copies its hook
// lists before running them, so hooks may be registered while commands
// execute.
package hook
