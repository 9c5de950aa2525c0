package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/observer"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/utils"
)

// AppendSendLog inserts one delivery attempt row. The table is append-only;
// concurrent inserts across jobs are safe.
func (r *PostgresRepo) AppendSendLog(ctx context.Context, entry model.SendLog) error {
	operation := func() error {
		if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
			return checkConstraintViolation(err)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "AppendSendLog", operation)
	observer.ObserveDbOperationDuration("insert", "send_log", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to append send log after retries",
			zap.String("job_id", entry.JobID), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// CountRecentSentLogs counts successful attempts for the job inside the
// trailing window. This is the rolling per-minute rate-limit accounting.
func (r *PostgresRepo) CountRecentSentLogs(ctx context.Context, jobID string, window time.Duration) (int, error) {
	cutoff := utils.Now().Add(-window)

	var count int64
	operation := func() error {
		err := r.db.WithContext(ctx).
			Model(&model.SendLog{}).
			Where("job_id = ? AND success = ? AND created_at > ?", jobID, true, cutoff).
			Count(&count).Error
		if err != nil {
			return checkConstraintViolation(err)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "CountRecentSentLogs", operation)
	observer.ObserveDbOperationDuration("count", "send_log", time.Since(startTime), err)

	if err != nil {
		return 0, err
	}
	return int(count), nil
}
