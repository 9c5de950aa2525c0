package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/apperrors"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/observer"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/utils"
)

// claimOutboxSQL claims a batch of due rows in one statement. The inner select
// uses FOR UPDATE SKIP LOCKED so two overlapping worker invocations can never
// claim the same row; a lock older than the TTL cutoff counts as expired.
const claimOutboxSQL = `
UPDATE outbox_messages
SET locked_at = ?, locked_by = ?, updated_at = ?
WHERE id IN (
	SELECT id FROM outbox_messages
	WHERE status = ?
	  AND next_attempt_at <= ?
	  AND (locked_at IS NULL OR locked_at < ?)
	ORDER BY next_attempt_at ASC
	LIMIT ?
	FOR UPDATE SKIP LOCKED
)
RETURNING *`

// EnqueueOutboxMessage inserts a new outbox row, collapsing duplicates on the
// idempotency key. The returned row is the stored one, existing or new.
func (r *PostgresRepo) EnqueueOutboxMessage(ctx context.Context, msg model.OutboxMessage) (*model.OutboxMessage, error) {
	msg.UpdatedAt = utils.Now()

	var stored model.OutboxMessage
	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).Create(&msg)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected > 0 {
			stored = msg
			return nil
		}
		// Duplicate enqueue: hand back the existing row silently.
		findErr := r.db.WithContext(ctx).
			Where("idempotency_key = ?", msg.IdempotencyKey).
			First(&stored).Error
		if findErr != nil {
			return checkConstraintViolation(findErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "EnqueueOutboxMessage", operation)
	observer.ObserveDbOperationDuration("upsert", "outbox", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to enqueue outbox message after retries",
			zap.String("idempotency_key", msg.IdempotencyKey), zap.Error(commitErr))
		return nil, commitErr
	}

	return &stored, nil
}

// ClaimDueOutboxMessages atomically claims up to limit due rows for lockedBy.
func (r *PostgresRepo) ClaimDueOutboxMessages(ctx context.Context, lockedBy string, limit int, lockTTL time.Duration) ([]model.OutboxMessage, error) {
	now := utils.Now()
	staleBefore := now.Add(-lockTTL)

	var claimed []model.OutboxMessage
	operation := func() error {
		claimed = claimed[:0]
		result := r.db.WithContext(ctx).
			Raw(claimOutboxSQL, now, lockedBy, now, model.OutboxStatusQueued, now, staleBefore, limit).
			Scan(&claimed)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "ClaimDueOutboxMessages", operation)
	observer.ObserveDbOperationDuration("claim", "outbox", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to claim outbox batch after retries", zap.Error(commitErr))
		return nil, commitErr
	}

	return claimed, nil
}

// MarkOutboxSent finalizes a delivered row. Terminal rows are parked at the
// far-future sentinel so the claim predicate never sees them again.
func (r *PostgresRepo) MarkOutboxSent(ctx context.Context, id string, attempts int) error {
	return r.finalizeOutbox(ctx, id, map[string]interface{}{
		"status":          model.OutboxStatusSent,
		"attempts":        attempts,
		"last_error":      "",
		"next_attempt_at": utils.FarFuture,
		"locked_at":       nil,
		"locked_by":       "",
		"updated_at":      utils.Now(),
	})
}

// MarkOutboxFailed finalizes a terminally failed row.
func (r *PostgresRepo) MarkOutboxFailed(ctx context.Context, id string, attempts int, lastError string) error {
	return r.finalizeOutbox(ctx, id, map[string]interface{}{
		"status":          model.OutboxStatusFailed,
		"attempts":        attempts,
		"last_error":      lastError,
		"next_attempt_at": utils.FarFuture,
		"locked_at":       nil,
		"locked_by":       "",
		"updated_at":      utils.Now(),
	})
}

// RequeueOutbox schedules a retry and releases the lock so a future cycle can
// reclaim the row.
func (r *PostgresRepo) RequeueOutbox(ctx context.Context, id string, attempts int, lastError string, nextAttemptAt time.Time) error {
	return r.finalizeOutbox(ctx, id, map[string]interface{}{
		"status":          model.OutboxStatusQueued,
		"attempts":        attempts,
		"last_error":      lastError,
		"next_attempt_at": nextAttemptAt,
		"locked_at":       nil,
		"locked_by":       "",
		"updated_at":      utils.Now(),
	})
}

func (r *PostgresRepo) finalizeOutbox(ctx context.Context, id string, updates map[string]interface{}) error {
	operation := func() error {
		result := r.db.WithContext(ctx).
			Model(&model.OutboxMessage{}).
			Where("id = ?", id).
			Updates(updates)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: outbox message %s", apperrors.ErrNotFound, id)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "FinalizeOutbox", operation)
	observer.ObserveDbOperationDuration("update", "outbox", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to finalize outbox message after retries",
			zap.String("outbox_id", id), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindOutboxByID finds an outbox row by id
func (r *PostgresRepo) FindOutboxByID(ctx context.Context, id string) (*model.OutboxMessage, error) {
	var msg model.OutboxMessage
	operation := func() error {
		err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: outbox message %s", apperrors.ErrNotFound, id)
			}
			return checkConstraintViolation(err)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindOutboxByID", operation)
	observer.ObserveDbOperationDuration("find", "outbox", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return &msg, nil
}
