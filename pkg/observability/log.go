package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/scenesync/pkg/domain"
)

// LogHooks returns hooks that write an audit line per lifecycle event.
// Failures and evictions are logged at warn level, the rest at debug.
func LogHooks(logger *slog.Logger) domain.TransactionHooks {
	log := func(level slog.Level) func(context.Context, *domain.TransactionEvent) {
		return func(ctx context.Context, e *domain.TransactionEvent) {
			attrs := []any{
				"event", e.Type,
				"document_id", e.DocumentID,
				"txn_id", e.TransactionID,
				"actions", e.Actions,
				"precommitted", e.Precommitted,
			}
			if e.Err != nil {
				attrs = append(attrs, "err", e.Err)
			}
			logger.Log(ctx, level, "transaction "+string(e.Type), attrs...)
		}
	}
	return domain.TransactionHooks{
		OnRequest:  log(slog.LevelDebug),
		OnCommit:   log(slog.LevelDebug),
		OnRollback: log(slog.LevelDebug),
		OnEvict:    log(slog.LevelWarn),
		OnFail:     log(slog.LevelWarn),
	}
}
