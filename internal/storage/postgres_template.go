package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/apperrors"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/observer"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/utils"
)

// FindTemplateByID finds an approved template by id within a workspace.
func (r *PostgresRepo) FindTemplateByID(ctx context.Context, workspaceID, id string) (*model.Template, error) {
	var template model.Template
	operation := func() error {
		err := r.db.WithContext(ctx).
			Where("workspace_id = ? AND id = ?", workspaceID, id).
			First(&template).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: template %s", apperrors.ErrNotFound, id)
			}
			return checkConstraintViolation(err)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindTemplateByID", operation)
	observer.ObserveDbOperationDuration("find", "template", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return &template, nil
}

// SaveTemplate upserts a template definition on (workspace_id, name, language).
func (r *PostgresRepo) SaveTemplate(ctx context.Context, template model.Template) error {
	template.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "workspace_id"}, {Name: "name"}, {Name: "language"}},
			DoUpdates: clause.AssignmentColumns([]string{"param_count", "mappings", "updated_at"}),
		}).Create(&template)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveTemplate", operation)
	observer.ObserveDbOperationDuration("upsert", "template", time.Since(startTime), commitErr)
	return commitErr
}
