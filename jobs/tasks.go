package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDebtReconcile triggers the nightly customer debt sweep.
	TaskDebtReconcile = "sales:debt_reconcile"
	// TaskDashboardWarmup pre-populates the current month's dashboard caches.
	TaskDashboardWarmup = "dashboard:warmup"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "ops:idempotency_cleanup"
)

// ScheduledPayload carries scheduling metadata shared by the cron tasks.
type ScheduledPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewDebtReconcileTask constructs the debt reconciliation task.
func NewDebtReconcileTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScheduledPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDebtReconcile, body, asynq.Queue(QueueDefault)), nil
}

// NewDashboardWarmupTask constructs the dashboard warmup task.
func NewDashboardWarmupTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScheduledPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDashboardWarmup, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupTask constructs the idempotency cleanup task.
func NewIdempotencyCleanupTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScheduledPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
