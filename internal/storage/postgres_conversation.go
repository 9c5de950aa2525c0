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

// SaveConversation upserts a conversation on (workspace_id, contact_id).
// Ticket status and priority are owned by agents, so an existing open
// conversation is not overwritten by a concurrent insert.
func (r *PostgresRepo) SaveConversation(ctx context.Context, conversation model.Conversation) error {
	conversation.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "workspace_id"}, {Name: "contact_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
		}).Create(&conversation)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveConversation", operation)
	observer.ObserveDbOperationDuration("upsert", "conversation", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save conversation after retries",
			zap.String("conversation_id", conversation.ID), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindConversationByID finds a conversation by id
func (r *PostgresRepo) FindConversationByID(ctx context.Context, id string) (*model.Conversation, error) {
	return r.findConversation(ctx, "FindConversationByID", "id = ?", id)
}

// FindConversationByContact returns the conversation bound to a contact, or
// ErrNotFound when none exists yet.
func (r *PostgresRepo) FindConversationByContact(ctx context.Context, workspaceID, contactID string) (*model.Conversation, error) {
	return r.findConversation(ctx, "FindConversationByContact",
		"workspace_id = ? AND contact_id = ?", workspaceID, contactID)
}

func (r *PostgresRepo) findConversation(ctx context.Context, opName, query string, args ...interface{}) (*model.Conversation, error) {
	var conversation model.Conversation
	operation := func() error {
		err := r.db.WithContext(ctx).Where(query, args...).First(&conversation).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: conversation", apperrors.ErrNotFound)
			}
			return checkConstraintViolation(err)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, opName, operation)
	observer.ObserveDbOperationDuration("find", "conversation", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// RecordInboundOnConversation bumps the unread counter and the message
// timestamps in a single UPDATE so concurrent webhook deliveries never lose
// increments. The ticket is reopened if it was resolved.
func (r *PostgresRepo) RecordInboundOnConversation(ctx context.Context, id string, messageAt time.Time) error {
	operation := func() error {
		result := r.db.WithContext(ctx).
			Model(&model.Conversation{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"unread_count":             gorm.Expr("unread_count + 1"),
				"last_message_at":          messageAt,
				"last_customer_message_at": messageAt,
				"ticket_status":            model.TicketStatusOpen,
				"updated_at":               utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: conversation %s", apperrors.ErrNotFound, id)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "RecordInboundOnConversation", operation)
	observer.ObserveDbOperationDuration("update", "conversation", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to record inbound message on conversation",
			zap.String("conversation_id", id), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// UpdateConversationSla rewrites the ticket status and SLA due timestamps for
// a conversation. An empty ticketStatus leaves the current status untouched.
func (r *PostgresRepo) UpdateConversationSla(ctx context.Context, id string, ticketStatus string, firstResponseDue, resolutionDue *time.Time) error {
	operation := func() error {
		updates := map[string]interface{}{
			"first_response_due_at": firstResponseDue,
			"resolution_due_at":     resolutionDue,
			"updated_at":            utils.Now(),
		}
		if ticketStatus != "" {
			updates["ticket_status"] = ticketStatus
		}
		result := r.db.WithContext(ctx).
			Model(&model.Conversation{}).
			Where("id = ?", id).
			Updates(updates)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: conversation %s", apperrors.ErrNotFound, id)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateConversationSla", operation)
	observer.ObserveDbOperationDuration("update", "conversation", time.Since(startTime), commitErr)
	return commitErr
}
