package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/datatypes"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/apperrors"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/config"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/events"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/gateway"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/observer"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/storage"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/utils"
)

const (
	bulkWorkerName  = "bulk_send"
	rateLimitWindow = time.Minute
)

// BulkSendWorker advances in-flight send jobs. Items are processed
// sequentially within a job so the per-minute rate accounting stays exact and
// the shared access token is never hammered concurrently.
type BulkSendWorker struct {
	jobs      storage.SendJobRepo
	sendLogs  storage.SendLogRepo
	templates storage.TemplateRepo
	resolver  gateway.ConnectionResolver
	client    gateway.Client
	audit     AuditSink
	publisher events.Publisher
	cfg       config.BulkSendWorkerConfig
}

// NewBulkSendWorker wires the bulk campaign worker.
func NewBulkSendWorker(
	jobs storage.SendJobRepo,
	sendLogs storage.SendLogRepo,
	templates storage.TemplateRepo,
	resolver gateway.ConnectionResolver,
	client gateway.Client,
	audit AuditSink,
	publisher events.Publisher,
	cfg config.BulkSendWorkerConfig,
) *BulkSendWorker {
	return &BulkSendWorker{
		jobs:      jobs,
		sendLogs:  sendLogs,
		templates: templates,
		resolver:  resolver,
		client:    client,
		audit:     audit,
		publisher: publisher,
		cfg:       cfg,
	}
}

// RunBatch advances up to the configured number of runnable jobs, oldest
// first. Per-item and per-job failures never abort the batch; the only error
// returned is a failed job selection, which means the datastore is down.
func (w *BulkSendWorker) RunBatch(ctx context.Context) (model.BulkSendBatchSummary, error) {
	log := logger.FromContext(ctx)
	startTime := utils.Now()
	observer.IncWorkerBatch(bulkWorkerName)

	summary := model.BulkSendBatchSummary{OK: true}

	jobs, err := w.jobs.FindRunnable(ctx, w.cfg.JobLimit)
	if err != nil {
		return model.BulkSendBatchSummary{}, fmt.Errorf("select runnable jobs: %w", err)
	}

	for i := range jobs {
		sent, failed := w.advanceJob(ctx, &jobs[i])
		summary.Processed += sent + failed
		summary.Sent += sent
		summary.Failed += failed
	}

	observer.ObserveWorkerBatchDuration(bulkWorkerName, time.Since(startTime))
	w.audit.SubmitHeartbeat(bulkWorkerName, map[string]int{
		"processed": summary.Processed,
		"sent":      summary.Sent,
		"failed":    summary.Failed,
	})

	log.Info("Bulk send batch finished",
		zap.Int("jobs", len(jobs)),
		zap.Int("processed", summary.Processed),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// advanceJob moves one job forward by at most one item slice and returns the
// sent/failed item counts for this cycle.
func (w *BulkSendWorker) advanceJob(ctx context.Context, job *model.SendJob) (sent, failed int) {
	log := logger.FromContext(ctx).With(
		zap.String("job_id", job.ID),
		zap.String("workspace_id", job.WorkspaceID))
	defer utils.RecoverWithLog(ctx, "send job "+job.ID)

	if job.Status == model.SendJobStatusPending {
		if err := w.jobs.MarkProcessing(ctx, job.ID, utils.Now()); err != nil {
			log.Error("Failed to mark job processing", zap.Error(err))
			return 0, 0
		}
	}

	items, err := w.jobs.FetchQueuedItems(ctx, job.ID, w.cfg.BatchSize)
	if err != nil {
		log.Error("Failed to fetch queued items", zap.Error(err))
		return 0, 0
	}
	if len(items) == 0 {
		w.recountAndFinalize(ctx, job)
		return 0, 0
	}

	phoneNumberID, accessToken, err := w.resolver.Resolve(ctx, job.WorkspaceID)
	if err != nil {
		// job-level infrastructure failure: fail everything left and stop
		reason := model.FailReasonConnectionNotFound
		if apperrors.IsRetryable(err) {
			// transient resolver trouble is not a config failure; try again
			// on the next cycle
			log.Warn("Connection resolution failed transiently", zap.Error(err))
			return 0, 0
		}
		if !apperrors.IsNotFoundError(err) {
			reason = model.FailReasonTokenNotFound
		}
		return 0, w.failJob(ctx, job, reason)
	}

	template, err := w.templates.FindByID(ctx, job.WorkspaceID, job.TemplateID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return 0, w.failJob(ctx, job, model.FailReasonTemplateNotFound)
		}
		log.Error("Failed to load template", zap.Error(err))
		return 0, 0
	}

	recentSent, err := w.sendLogs.CountRecentSent(ctx, job.ID, rateLimitWindow)
	if err != nil {
		log.Error("Failed to count recent sends", zap.Error(err))
		return 0, 0
	}
	availableSlots := job.RateLimitPerMinute - recentSent
	if availableSlots <= 0 {
		// expected steady state for fast campaigns, not an error
		observer.IncRateLimitSkip()
		log.Debug("Rate window exhausted, skipping job this cycle",
			zap.Int("recent_sent", recentSent),
			zap.Int("rate_limit", job.RateLimitPerMinute))
		return 0, 0
	}
	if len(items) > availableSlots {
		items = items[:availableSlots]
	}

	// pacing between consecutive sends guards against bursts inside the
	// per-minute window
	pacer := rate.NewLimiter(rate.Every(w.cfg.SendInterval), 1)

	for i := range items {
		if err := pacer.Wait(ctx); err != nil {
			log.Warn("Pacer interrupted, stopping slice", zap.Error(err))
			break
		}
		if w.sendItem(ctx, job, template, &items[i], phoneNumberID, accessToken) {
			sent++
			observer.IncWorkerItem(bulkWorkerName, model.SendJobItemStatusSent)
		} else {
			failed++
			observer.IncWorkerItem(bulkWorkerName, model.SendJobItemStatusFailed)
		}
	}

	w.recountAndFinalize(ctx, job)
	return sent, failed
}

// sendItem delivers one recipient's message and reports success. Failures are
// terminal for the item within this job.
func (w *BulkSendWorker) sendItem(ctx context.Context, job *model.SendJob, template *model.Template, item *model.SendJobItem, phoneNumberID, accessToken string) bool {
	log := logger.FromContext(ctx).With(
		zap.String("job_id", job.ID),
		zap.String("item_id", item.ID))

	if err := w.jobs.MarkItemSending(ctx, item.ID); err != nil {
		log.Error("Failed to mark item sending", zap.Error(err))
		return false
	}

	var params []string
	if err := utils.UnmarshalJSON(item.Params, &params); err != nil {
		log.Error("Malformed item params", zap.Error(err))
		w.failItem(ctx, job, template, item, "malformed params: "+err.Error(), 0, nil)
		return false
	}

	result, err := w.client.SendMessage(ctx, gateway.SendRequest{
		PhoneNumberID:    phoneNumberID,
		AccessToken:      accessToken,
		To:               item.ToPhone,
		Kind:             model.OutboxKindTemplate,
		TemplateName:     template.Name,
		TemplateLanguage: template.Language,
		TemplateParams:   params,
	})

	if err != nil || !result.OK {
		reason := sendFailureReason(result, err)
		w.failItem(ctx, job, template, item, reason, result.HTTPStatus, result.RawResponse)
		return false
	}

	sentAt := utils.Now()
	if err := w.jobs.MarkItemSent(ctx, item.ID, result.MessageID, sentAt); err != nil {
		log.Error("Failed to mark item sent", zap.Error(err))
	}
	w.appendLog(ctx, job, template, item, true, result.HTTPStatus, result.RawResponse)
	return true
}

func (w *BulkSendWorker) failItem(ctx context.Context, job *model.SendJob, template *model.Template, item *model.SendJobItem, reason string, httpStatus int, rawResponse []byte) {
	if err := w.jobs.MarkItemFailed(ctx, item.ID, reason); err != nil {
		logger.FromContext(ctx).Error("Failed to mark item failed",
			zap.String("item_id", item.ID), zap.Error(err))
	}
	w.appendLog(ctx, job, template, item, false, httpStatus, rawResponse)
}

// appendLog records one delivery attempt. The recipient phone is stored
// hashed, never raw.
func (w *BulkSendWorker) appendLog(ctx context.Context, job *model.SendJob, template *model.Template, item *model.SendJobItem, success bool, httpStatus int, rawResponse []byte) {
	entry := model.SendLog{
		ID:            uuid.NewString(),
		JobID:         job.ID,
		ItemID:        item.ID,
		WorkspaceID:   job.WorkspaceID,
		RecipientHash: utils.HashPhone(item.ToPhone),
		TemplateID:    job.TemplateID,
		Success:       success,
		HTTPStatus:    httpStatus,
	}
	if template != nil {
		entry.TemplateName = template.Name
	}
	if len(rawResponse) > 0 {
		entry.RawResponse = datatypes.JSON(rawResponse)
	}
	if err := w.sendLogs.Append(ctx, entry); err != nil {
		logger.FromContext(ctx).Error("Failed to append send log",
			zap.String("item_id", item.ID), zap.Error(err))
	}
}

// failJob marks every remaining queued item failed with a job-level reason
// and finalizes the job as failed. Missing configuration needs an operator,
// not a retry.
func (w *BulkSendWorker) failJob(ctx context.Context, job *model.SendJob, reason string) int {
	log := logger.FromContext(ctx).With(zap.String("job_id", job.ID))
	affected, err := w.jobs.FailQueuedItems(ctx, job.ID, reason)
	if err != nil {
		log.Error("Failed to fail queued items", zap.Error(err))
		return 0
	}
	log.Warn("Job failed at infrastructure level",
		zap.String("reason", reason), zap.Int("items_failed", affected))

	if _, _, _, err := w.jobs.RecountTotals(ctx, job.ID); err != nil {
		log.Error("Failed to recount job totals", zap.Error(err))
	}
	if err := w.jobs.Finalize(ctx, job.ID, model.SendJobStatusFailed, utils.Now()); err != nil {
		log.Error("Failed to finalize job", zap.Error(err))
	}
	w.publisher.Publish(ctx, job.WorkspaceID, events.KindJobFailed, map[string]string{
		"job_id": job.ID,
		"reason": reason,
	})
	return affected
}

// recountAndFinalize refreshes aggregate counters and completes the job when
// no queued items remain.
func (w *BulkSendWorker) recountAndFinalize(ctx context.Context, job *model.SendJob) {
	log := logger.FromContext(ctx).With(zap.String("job_id", job.ID))
	queued, sentCount, failedCount, err := w.jobs.RecountTotals(ctx, job.ID)
	if err != nil {
		log.Error("Failed to recount job totals", zap.Error(err))
		return
	}
	if queued > 0 {
		return
	}
	if err := w.jobs.Finalize(ctx, job.ID, model.SendJobStatusCompleted, utils.Now()); err != nil {
		log.Error("Failed to finalize job", zap.Error(err))
		return
	}
	log.Info("Send job completed",
		zap.Int("sent", sentCount), zap.Int("failed", failedCount))
	w.publisher.Publish(ctx, job.WorkspaceID, events.KindJobCompleted, map[string]string{"job_id": job.ID})
}
