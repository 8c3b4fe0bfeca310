package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// DebtReconciler is satisfied by the sales service.
type DebtReconciler interface {
	ReconcileAllDebts(ctx context.Context) (int, error)
}

// NewDebtReconcileHandler builds the handler for TaskDebtReconcile. It walks
// every customer and rewrites debt from outstanding order balances.
func NewDebtReconcileHandler(reconciler DebtReconciler, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ScheduledPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		started := time.Now()
		count, err := reconciler.ReconcileAllDebts(ctx)
		if err != nil {
			logger.Error("debt reconcile failed",
				slog.Int("customers_done", count),
				slog.Any("error", err))
			return err
		}
		logger.Info("debt reconcile complete",
			slog.Int("customers", count),
			slog.Duration("took", time.Since(started)))
		return nil
	}
}
