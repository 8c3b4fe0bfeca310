package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// DashboardWarmer is satisfied by the dashboard service.
type DashboardWarmer interface {
	Warmup(ctx context.Context) error
}

// NewDashboardWarmupHandler builds the handler for TaskDashboardWarmup so
// the first dashboard open after an invalidation does not pay the query cost.
func NewDashboardWarmupHandler(warmer DashboardWarmer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ScheduledPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := warmer.Warmup(ctx); err != nil {
			logger.Error("dashboard warmup failed", slog.Any("error", err))
			return err
		}
		logger.Info("dashboard warmup complete")
		return nil
	}
}
