package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/apperrors"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/observer"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/utils"
)

// CreateSendJobWithItems inserts the job and its exploded per-recipient rows
// in a single transaction so a half-created campaign can never run.
func (r *PostgresRepo) CreateSendJobWithItems(ctx context.Context, job model.SendJob, items []model.SendJobItem) error {
	operation := func() error {
		txErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&job).Error; err != nil {
				return err
			}
			if len(items) > 0 {
				if err := tx.CreateInBatches(items, 500).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if txErr != nil {
			return checkConstraintViolation(txErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "CreateSendJobWithItems", operation)
	observer.ObserveDbOperationDuration("insert", "send_job", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to create send job after retries",
			zap.String("job_id", job.ID), zap.Int("items", len(items)), zap.Error(commitErr))
		return commitErr
	}
	return nil
}

// FindSendJobByID finds a job by id
func (r *PostgresRepo) FindSendJobByID(ctx context.Context, id string) (*model.SendJob, error) {
	var job model.SendJob
	operation := func() error {
		err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: send job %s", apperrors.ErrNotFound, id)
			}
			return checkConstraintViolation(err)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindSendJobByID", operation)
	observer.ObserveDbOperationDuration("find", "send_job", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindRunnableSendJobs returns up to limit pending/processing jobs, oldest first.
func (r *PostgresRepo) FindRunnableSendJobs(ctx context.Context, limit int) ([]model.SendJob, error) {
	var jobs []model.SendJob
	operation := func() error {
		jobs = jobs[:0]
		err := r.db.WithContext(ctx).
			Where("status IN ?", []string{model.SendJobStatusPending, model.SendJobStatusProcessing}).
			Order("created_at ASC").
			Limit(limit).
			Find(&jobs).Error
		if err != nil {
			return checkConstraintViolation(err)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindRunnableSendJobs", operation)
	observer.ObserveDbOperationDuration("find", "send_job", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkSendJobProcessing transitions pending -> processing. The WHERE guard
// keeps the transition forward-only under overlapping invocations.
func (r *PostgresRepo) MarkSendJobProcessing(ctx context.Context, id string, startedAt time.Time) error {
	operation := func() error {
		result := r.db.WithContext(ctx).
			Model(&model.SendJob{}).
			Where("id = ? AND status = ?", id, model.SendJobStatusPending).
			Updates(map[string]interface{}{
				"status":     model.SendJobStatusProcessing,
				"started_at": startedAt,
				"updated_at": utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		// Zero rows means another invocation already advanced it; not an error.
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "MarkSendJobProcessing", operation)
	observer.ObserveDbOperationDuration("update", "send_job", time.Since(startTime), commitErr)
	return commitErr
}

// FinalizeSendJob sets a terminal status. Already-terminal jobs are left
// untouched so a completed job never regresses.
func (r *PostgresRepo) FinalizeSendJob(ctx context.Context, id string, status string, completedAt time.Time) error {
	operation := func() error {
		result := r.db.WithContext(ctx).
			Model(&model.SendJob{}).
			Where("id = ? AND status IN ?", id, []string{model.SendJobStatusPending, model.SendJobStatusProcessing}).
			Updates(map[string]interface{}{
				"status":       status,
				"completed_at": completedAt,
				"updated_at":   utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "FinalizeSendJob", operation)
	observer.ObserveDbOperationDuration("update", "send_job", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to finalize send job after retries",
			zap.String("job_id", id), zap.String("status", status), zap.Error(commitErr))
	}
	return commitErr
}

// RecountSendJobTotals recomputes the aggregate counters from the item table
// and persists them on the job row.
func (r *PostgresRepo) RecountSendJobTotals(ctx context.Context, id string) (queued, sent, failed int, err error) {
	type statusCount struct {
		Status string
		N      int
	}

	operation := func() error {
		var counts []statusCount
		if err := r.db.WithContext(ctx).
			Model(&model.SendJobItem{}).
			Select("status, COUNT(*) AS n").
			Where("job_id = ?", id).
			Group("status").
			Scan(&counts).Error; err != nil {
			return checkConstraintViolation(err)
		}

		queued, sent, failed = 0, 0, 0
		for _, c := range counts {
			switch c.Status {
			case model.SendJobItemStatusQueued, model.SendJobItemStatusSending:
				queued += c.N
			case model.SendJobItemStatusSent:
				sent += c.N
			case model.SendJobItemStatusFailed, model.SendJobItemStatusSkipped:
				failed += c.N
			}
		}

		result := r.db.WithContext(ctx).
			Model(&model.SendJob{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"queued_count": queued,
				"sent_count":   sent,
				"failed_count": failed,
				"updated_at":   utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "RecountSendJobTotals", operation)
	observer.ObserveDbOperationDuration("update", "send_job", time.Since(startTime), commitErr)

	if commitErr != nil {
		return 0, 0, 0, commitErr
	}
	return queued, sent, failed, nil
}

// CancelSendJob cancels a non-terminal job and skips its remaining queue.
func (r *PostgresRepo) CancelSendJob(ctx context.Context, id string) error {
	operation := func() error {
		txErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result := tx.Model(&model.SendJob{}).
				Where("id = ? AND status IN ?", id, []string{model.SendJobStatusPending, model.SendJobStatusProcessing}).
				Updates(map[string]interface{}{
					"status":       model.SendJobStatusCancelled,
					"completed_at": utils.Now(),
					"updated_at":   utils.Now(),
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("%w: send job %s is not cancellable", apperrors.ErrConflict, id)
			}
			return tx.Model(&model.SendJobItem{}).
				Where("job_id = ? AND status = ?", id, model.SendJobItemStatusQueued).
				Updates(map[string]interface{}{
					"status":     model.SendJobItemStatusSkipped,
					"updated_at": utils.Now(),
				}).Error
		})
		if txErr != nil {
			if errors.Is(txErr, apperrors.ErrConflict) {
				return txErr
			}
			return checkConstraintViolation(txErr)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "CancelSendJob", operation)
	observer.ObserveDbOperationDuration("update", "send_job", time.Since(startTime), commitErr)
	return commitErr
}

// FetchQueuedSendJobItems returns up to limit queued items for the job.
func (r *PostgresRepo) FetchQueuedSendJobItems(ctx context.Context, jobID string, limit int) ([]model.SendJobItem, error) {
	var items []model.SendJobItem
	operation := func() error {
		items = items[:0]
		err := r.db.WithContext(ctx).
			Where("job_id = ? AND status = ?", jobID, model.SendJobItemStatusQueued).
			Order("created_at ASC").
			Limit(limit).
			Find(&items).Error
		if err != nil {
			return checkConstraintViolation(err)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FetchQueuedSendJobItems", operation)
	observer.ObserveDbOperationDuration("find", "send_job_item", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return items, nil
}

// MarkSendJobItemSending transitions queued -> sending.
func (r *PostgresRepo) MarkSendJobItemSending(ctx context.Context, itemID string) error {
	return r.updateSendJobItem(ctx, itemID, map[string]interface{}{
		"status":     model.SendJobItemStatusSending,
		"updated_at": utils.Now(),
	})
}

// MarkSendJobItemSent transitions sending -> sent with the gateway message id.
func (r *PostgresRepo) MarkSendJobItemSent(ctx context.Context, itemID string, waMessageID string, sentAt time.Time) error {
	return r.updateSendJobItem(ctx, itemID, map[string]interface{}{
		"status":        model.SendJobItemStatusSent,
		"wa_message_id": waMessageID,
		"sent_at":       sentAt,
		"updated_at":    utils.Now(),
	})
}

// MarkSendJobItemFailed transitions to failed; terminal within the job.
func (r *PostgresRepo) MarkSendJobItemFailed(ctx context.Context, itemID string, errorMessage string) error {
	return r.updateSendJobItem(ctx, itemID, map[string]interface{}{
		"status":        model.SendJobItemStatusFailed,
		"error_message": errorMessage,
		"updated_at":    utils.Now(),
	})
}

func (r *PostgresRepo) updateSendJobItem(ctx context.Context, itemID string, updates map[string]interface{}) error {
	operation := func() error {
		result := r.db.WithContext(ctx).
			Model(&model.SendJobItem{}).
			Where("id = ?", itemID).
			Updates(updates)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: send job item %s", apperrors.ErrNotFound, itemID)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateSendJobItem", operation)
	observer.ObserveDbOperationDuration("update", "send_job_item", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to update send job item after retries",
			zap.String("item_id", itemID), zap.Error(commitErr))
	}
	return commitErr
}

// FailQueuedSendJobItems fails every still-queued item of the job with the
// given reason. Used for job-level infrastructure failures, which are not
// retried by the worker.
func (r *PostgresRepo) FailQueuedSendJobItems(ctx context.Context, jobID string, reason string) (int, error) {
	var affected int64
	operation := func() error {
		result := r.db.WithContext(ctx).
			Model(&model.SendJobItem{}).
			Where("job_id = ? AND status = ?", jobID, model.SendJobItemStatusQueued).
			Updates(map[string]interface{}{
				"status":        model.SendJobItemStatusFailed,
				"error_message": reason,
				"updated_at":    utils.Now(),
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		affected = result.RowsAffected
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "FailQueuedSendJobItems", operation)
	observer.ObserveDbOperationDuration("update", "send_job_item", time.Since(startTime), commitErr)

	if commitErr != nil {
		return 0, commitErr
	}
	return int(affected), nil
}
