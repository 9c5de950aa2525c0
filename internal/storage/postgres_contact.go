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

// SaveContact upserts a contact on (workspace_id, phone).
func (r *PostgresRepo) SaveContact(ctx context.Context, contact model.Contact) error {
	contact.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "workspace_id"}, {Name: "phone"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "wa_id", "last_seen_at", "updated_at"}),
		}).Create(&contact)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveContact", operation)
	observer.ObserveDbOperationDuration("upsert", "contact", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save contact after retries",
			zap.String("contact_id", contact.ID), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindContactByID finds a contact by id
func (r *PostgresRepo) FindContactByID(ctx context.Context, id string) (*model.Contact, error) {
	var contact model.Contact
	operation := func() error {
		err := r.db.WithContext(ctx).Where("id = ?", id).First(&contact).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: contact %s", apperrors.ErrNotFound, id)
			}
			return checkConstraintViolation(err)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindContactByID", operation)
	observer.ObserveDbOperationDuration("find", "contact", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// FindContactByPhone looks a contact up by (workspace, phone). Returns
// ErrNotFound when the customer has never been seen.
func (r *PostgresRepo) FindContactByPhone(ctx context.Context, workspaceID, phone string) (*model.Contact, error) {
	var contact model.Contact
	operation := func() error {
		err := r.db.WithContext(ctx).
			Where("workspace_id = ? AND phone = ?", workspaceID, phone).
			First(&contact).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: contact %s in workspace %s", apperrors.ErrNotFound, phone, workspaceID)
			}
			return checkConstraintViolation(err)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindContactByPhone", operation)
	observer.ObserveDbOperationDuration("find", "contact", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// FindContactsByIDs loads the given contacts within one workspace. Missing ids
// are simply absent from the result; the caller decides how to treat gaps.
func (r *PostgresRepo) FindContactsByIDs(ctx context.Context, workspaceID string, ids []string) ([]model.Contact, error) {
	var contacts []model.Contact
	operation := func() error {
		contacts = contacts[:0]
		err := r.db.WithContext(ctx).
			Where("workspace_id = ? AND id IN ?", workspaceID, ids).
			Find(&contacts).Error
		if err != nil {
			return checkConstraintViolation(err)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindContactsByIDs", operation)
	observer.ObserveDbOperationDuration("find", "contact", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return contacts, nil
}

// TouchContactLastSeen updates the contact's last_seen_at.
func (r *PostgresRepo) TouchContactLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	operation := func() error {
		result := r.db.WithContext(ctx).
			Model(&model.Contact{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"last_seen_at": seenAt,
				"updated_at":   utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "TouchContactLastSeen", operation)
	observer.ObserveDbOperationDuration("update", "contact", time.Since(startTime), commitErr)
	return commitErr
}
