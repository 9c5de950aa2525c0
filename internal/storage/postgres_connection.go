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

// FindActiveConnectionByWorkspace returns the active gateway connection for a
// workspace, or ErrNotFound when the workspace has never connected a number.
func (r *PostgresRepo) FindActiveConnectionByWorkspace(ctx context.Context, workspaceID string) (*model.GatewayConnection, error) {
	var connection model.GatewayConnection
	operation := func() error {
		err := r.db.WithContext(ctx).
			Where("workspace_id = ? AND status = ?", workspaceID, model.ConnectionStatusActive).
			Order("created_at DESC").
			First(&connection).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: active connection for workspace %s", apperrors.ErrNotFound, workspaceID)
			}
			return checkConstraintViolation(err)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindActiveConnectionByWorkspace", operation)
	observer.ObserveDbOperationDuration("find", "gateway_connection", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return &connection, nil
}

// FindConnectionByID finds a gateway connection by id
func (r *PostgresRepo) FindConnectionByID(ctx context.Context, id string) (*model.GatewayConnection, error) {
	var connection model.GatewayConnection
	operation := func() error {
		err := r.db.WithContext(ctx).Where("id = ?", id).First(&connection).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: connection %s", apperrors.ErrNotFound, id)
			}
			return checkConstraintViolation(err)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindConnectionByID", operation)
	observer.ObserveDbOperationDuration("find", "gateway_connection", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return &connection, nil
}

// SaveConnection upserts a gateway connection on (workspace_id, phone_number_id).
func (r *PostgresRepo) SaveConnection(ctx context.Context, connection model.GatewayConnection) error {
	connection.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "workspace_id"}, {Name: "phone_number_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"waba_id", "access_token", "status", "updated_at"}),
		}).Create(&connection)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveConnection", operation)
	observer.ObserveDbOperationDuration("upsert", "gateway_connection", time.Since(startTime), commitErr)
	return commitErr
}
