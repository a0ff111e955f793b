/*
Package txn implements the element transaction engine.

Strategy applies single actions to a ports.Tree and records how to undo field
updates. Store decides, per transaction, between precommit (apply now, keep undo
records until the authority answers) and deferred application (apply on Commit),
and bounds how many unresolved transactions it remembers.

Lifecycle of a transaction in a Store:

	Request ──update-only──▶ precommitted ──Commit──▶ done (no further mutation)
	        │                             └─Rollback─▶ undo replayed newest first
	        └─structural────▶ deferred ────Commit──▶ Apply (first tree mutation)
	                                      └─Rollback─▶ dropped
*/
package txn
