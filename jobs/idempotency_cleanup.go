package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// NewIdempotencyCleanupHandler builds the handler for TaskIdempotencyCleanup.
// Keys older than the retention window can no longer collide with a live
// retry and only cost table space.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, retention time.Duration, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ScheduledPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := store.Cleanup(ctx, retention); err != nil {
			logger.Error("idempotency cleanup failed", slog.Any("error", err))
			return err
		}
		logger.Info("idempotency cleanup complete", slog.Duration("retention", retention))
		return nil
	}
}
