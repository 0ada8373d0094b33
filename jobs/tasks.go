package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRetention purges audit rows older than the retention window.
	TaskAuditRetention = "audit:retention"
	// TaskIdempotencyCleanup drops expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// RetentionPayload carries the age after which rows are removed.
type RetentionPayload struct {
	MaxAgeHours int `json:"max_age_hours"`
}

// MaxAge returns the payload window as a duration.
func (p RetentionPayload) MaxAge() time.Duration {
	return time.Duration(p.MaxAgeHours) * time.Hour
}

func newRetentionTask(taskType string, maxAge time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(RetentionPayload{MaxAgeHours: int(maxAge / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

// NewAuditRetentionTask constructs the audit retention task.
func NewAuditRetentionTask(maxAge time.Duration) (*asynq.Task, error) {
	return newRetentionTask(TaskAuditRetention, maxAge)
}

// NewIdempotencyCleanupTask constructs the idempotency cleanup task.
func NewIdempotencyCleanupTask(maxAge time.Duration) (*asynq.Task, error) {
	return newRetentionTask(TaskIdempotencyCleanup, maxAge)
}
