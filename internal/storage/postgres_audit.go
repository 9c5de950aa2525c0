package storage

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/observer"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/utils"
)

// AppendAuditEvent inserts an audit trail row. Audit writes are append only.
func (r *PostgresRepo) AppendAuditEvent(ctx context.Context, event model.AuditEvent) error {
	operation := func() error {
		if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
			return checkConstraintViolation(err)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "AppendAuditEvent", operation)
	observer.ObserveDbOperationDuration("insert", "audit_event", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to append audit event",
			zap.String("kind", event.Kind), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// SaveWorkerHeartbeat upserts a worker heartbeat on worker_name.
func (r *PostgresRepo) SaveWorkerHeartbeat(ctx context.Context, heartbeat model.WorkerHeartbeat) error {
	heartbeat.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "worker_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_run_at", "counts", "updated_at"}),
		}).Create(&heartbeat)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveWorkerHeartbeat", operation)
	observer.ObserveDbOperationDuration("upsert", "worker_heartbeat", time.Since(startTime), commitErr)
	return commitErr
}
