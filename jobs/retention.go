package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/workforce-hq/workforce/internal/jobs"
)

// AuditPurger is satisfied by *audit.Retention.
type AuditPurger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// KeyCleaner is satisfied by *shared.IdempotencyStore.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// minAuditAge guards against a malformed payload wiping recent history.
const minAuditAge = 24 * time.Hour

// AuditRetentionJob deletes audit rows past the retention window.
type AuditRetentionJob struct {
	Purger  AuditPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAuditRetentionJob initialises the retention handler.
func NewAuditRetentionJob(purger AuditPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRetentionJob {
	return &AuditRetentionJob{
		Purger:  purger,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the purge.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Purger == nil {
		return errors.New("audit retention: handler not configured")
	}
	var payload RetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("audit retention: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.MaxAge() < minAuditAge {
		return fmt.Errorf("audit retention: window %s below minimum: %w", payload.MaxAge(), asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskAuditRetention)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.clock()
	cutoff := start.Add(-payload.MaxAge())
	logger := loggerOrDefault(j.Logger).With(slog.Time("cutoff", cutoff))
	logger.Info("starting audit retention")

	purged, err := j.Purger.Purge(ctx, cutoff)
	if err != nil {
		logger.Error("audit retention failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddPurged(TaskAuditRetention, purged)
	logger.Info("completed audit retention",
		slog.Int64("purged", purged),
		slog.Duration("duration", j.clock().Sub(start)),
	)
	return nil
}

// IdempotencyCleanupJob deletes expired idempotency keys.
type IdempotencyCleanupJob struct {
	Cleaner KeyCleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob initialises the cleanup handler.
func NewIdempotencyCleanupJob(cleaner KeyCleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{Cleaner: cleaner, Logger: logger, Metrics: metrics}
}

// Handle executes the cleanup.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Cleaner == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload RetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("idempotency cleanup: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.MaxAgeHours <= 0 {
		return fmt.Errorf("idempotency cleanup: empty window: %w", asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	removed, err := j.Cleaner.Cleanup(ctx, payload.MaxAge())
	if err != nil {
		loggerOrDefault(j.Logger).Error("idempotency cleanup failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddPurged(TaskIdempotencyCleanup, removed)
	loggerOrDefault(j.Logger).Info("completed idempotency cleanup", slog.Int64("removed", removed))
	return nil
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
