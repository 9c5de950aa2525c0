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

// SaveMessage stores a message row. Upserts on the gateway message id when it
// is set, so a redelivered inbound event re-writes the same row.
func (r *PostgresRepo) SaveMessage(ctx context.Context, message model.Message) error {
	message.UpdatedAt = utils.Now()

	operation := func() error {
		tx := r.db.WithContext(ctx)
		if message.WaMessageID != nil && *message.WaMessageID != "" {
			tx = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "wa_message_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"status", "error_reason", "media_url", "updated_at"}),
			})
		}
		if err := tx.Create(&message).Error; err != nil {
			return checkConstraintViolation(err)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveMessage", operation)
	observer.ObserveDbOperationDuration("upsert", "message", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save message after retries",
			zap.String("message_id", message.ID), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindMessageByID finds a message by internal id
func (r *PostgresRepo) FindMessageByID(ctx context.Context, id string) (*model.Message, error) {
	return r.findMessage(ctx, "id = ?", id)
}

// FindMessageByWaMessageID finds a message by the gateway-assigned id
func (r *PostgresRepo) FindMessageByWaMessageID(ctx context.Context, waMessageID string) (*model.Message, error) {
	return r.findMessage(ctx, "wa_message_id = ?", waMessageID)
}

func (r *PostgresRepo) findMessage(ctx context.Context, query string, arg string) (*model.Message, error) {
	var message model.Message
	operation := func() error {
		err := r.db.WithContext(ctx).Where(query, arg).First(&message).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: message %s", apperrors.ErrNotFound, arg)
			}
			return checkConstraintViolation(err)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindMessage", operation)
	observer.ObserveDbOperationDuration("find", "message", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return &message, nil
}

// MessageExistsByWaMessageID is the inbound dedup gate.
func (r *PostgresRepo) MessageExistsByWaMessageID(ctx context.Context, waMessageID string) (bool, error) {
	var count int64
	operation := func() error {
		err := r.db.WithContext(ctx).
			Model(&model.Message{}).
			Where("wa_message_id = ?", waMessageID).
			Count(&count).Error
		if err != nil {
			return checkConstraintViolation(err)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "MessageExistsByWaMessageID", operation)
	observer.ObserveDbOperationDuration("count", "message", time.Since(startTime), err)

	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkMessageSent records a successful gateway handoff on the canonical row.
func (r *PostgresRepo) MarkMessageSent(ctx context.Context, id string, waMessageID string, sentAt time.Time) error {
	return r.updateMessage(ctx, "id = ?", id, map[string]interface{}{
		"status":        model.MessageStatusSent,
		"wa_message_id": waMessageID,
		"sent_at":       sentAt,
		"error_reason":  "",
		"updated_at":    utils.Now(),
	})
}

// MarkMessageFailed records a terminal delivery failure with a reason code.
func (r *PostgresRepo) MarkMessageFailed(ctx context.Context, id string, errorReason string) error {
	return r.updateMessage(ctx, "id = ?", id, map[string]interface{}{
		"status":       model.MessageStatusFailed,
		"error_reason": errorReason,
		"updated_at":   utils.Now(),
	})
}

// UpdateMessageStatus applies a delivery receipt keyed by gateway message id.
// Re-applying the same status is a no-op by construction.
func (r *PostgresRepo) UpdateMessageStatus(ctx context.Context, waMessageID string, status string, errorReason string) error {
	return r.updateMessage(ctx, "wa_message_id = ?", waMessageID, map[string]interface{}{
		"status":       status,
		"error_reason": errorReason,
		"updated_at":   utils.Now(),
	})
}

func (r *PostgresRepo) updateMessage(ctx context.Context, query string, arg string, updates map[string]interface{}) error {
	operation := func() error {
		result := r.db.WithContext(ctx).
			Model(&model.Message{}).
			Where(query, arg).
			Updates(updates)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: message %s", apperrors.ErrNotFound, arg)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateMessage", operation)
	observer.ObserveDbOperationDuration("update", "message", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to update message after retries",
			zap.String("message_ref", arg), zap.Error(commitErr))
	}
	return commitErr
}
