package usecase

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
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

const outboxWorkerName = "outbox"

// OutboxWorker delivers claimed outbox rows to the gateway. Invocations are
// stateless; correctness across overlapping invocations rests entirely on the
// durable claim in storage.
type OutboxWorker struct {
	outbox    storage.OutboxRepo
	messages  storage.MessageRepo
	resolver  gateway.ConnectionResolver
	client    gateway.Client
	audit     AuditSink
	publisher events.Publisher
	cfg       config.OutboxWorkerConfig
	lockedBy  string
}

// NewOutboxWorker wires the outbox delivery worker.
func NewOutboxWorker(
	outbox storage.OutboxRepo,
	messages storage.MessageRepo,
	resolver gateway.ConnectionResolver,
	client gateway.Client,
	audit AuditSink,
	publisher events.Publisher,
	cfg config.OutboxWorkerConfig,
) *OutboxWorker {
	hostname, _ := os.Hostname()
	return &OutboxWorker{
		outbox:    outbox,
		messages:  messages,
		resolver:  resolver,
		client:    client,
		audit:     audit,
		publisher: publisher,
		cfg:       cfg,
		lockedBy:  fmt.Sprintf("%s-%d", hostname, os.Getpid()),
	}
}

// RunBatch claims and processes one batch of due rows. One row's failure never
// aborts the batch; the returned summary always has OK set and a per-outcome
// count. Only a failed claim, which means the datastore itself is down, is
// returned as an error.
func (w *OutboxWorker) RunBatch(ctx context.Context) (model.OutboxBatchSummary, error) {
	log := logger.FromContext(ctx)
	startTime := utils.Now()
	observer.IncWorkerBatch(outboxWorkerName)

	summary := model.OutboxBatchSummary{OK: true}

	claimed, err := w.outbox.ClaimDue(ctx, w.lockedBy, w.cfg.BatchSize, w.cfg.LockTTL)
	if err != nil {
		return model.OutboxBatchSummary{}, fmt.Errorf("claim outbox batch: %w", err)
	}
	summary.Processed = len(claimed)

	for i := range claimed {
		outcome := w.processRow(ctx, &claimed[i])
		switch outcome {
		case model.OutboxStatusSent:
			summary.Sent++
		case model.OutboxStatusFailed:
			summary.Failed++
		default:
			summary.Requeued++
		}
		observer.IncWorkerItem(outboxWorkerName, outcome)
	}

	observer.ObserveWorkerBatchDuration(outboxWorkerName, time.Since(startTime))
	w.audit.SubmitHeartbeat(outboxWorkerName, map[string]int{
		"processed": summary.Processed,
		"sent":      summary.Sent,
		"failed":    summary.Failed,
		"requeued":  summary.Requeued,
	})

	log.Info("Outbox batch finished",
		zap.Int("processed", summary.Processed),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Int("requeued", summary.Requeued))
	return summary, nil
}

// processRow runs one delivery attempt and returns the row's resulting status
// ("queued" means requeued for a later cycle). Panics and errors are contained
// inside the row boundary.
func (w *OutboxWorker) processRow(ctx context.Context, row *model.OutboxMessage) (outcome string) {
	log := logger.FromContext(ctx).With(
		zap.String("outbox_id", row.ID),
		zap.String("workspace_id", row.WorkspaceID))
	defer utils.RecoverWithLog(ctx, "outbox row "+row.ID)

	var payload model.OutboxPayload
	if err := utils.UnmarshalJSON(row.Payload, &payload); err != nil {
		log.Error("Malformed outbox payload", zap.Error(err))
		w.failTerminally(ctx, row, payload.MessageID, "malformed payload: "+err.Error())
		return model.OutboxStatusFailed
	}

	phoneNumberID, accessToken, err := w.resolver.Resolve(ctx, row.WorkspaceID)
	if err != nil {
		// missing configuration does not self-heal; terminal, no retry
		log.Warn("Connection resolution failed", zap.Error(err))
		w.failTerminally(ctx, row, payload.MessageID, "connection resolution failed: "+err.Error())
		return model.OutboxStatusFailed
	}

	result, err := w.client.SendMessage(ctx, gateway.SendRequest{
		PhoneNumberID:    phoneNumberID,
		AccessToken:      accessToken,
		To:               row.ToPhone,
		Kind:             payload.Kind,
		Text:             payload.Text,
		TemplateName:     payload.TemplateName,
		TemplateLanguage: payload.TemplateLanguage,
		TemplateParams:   payload.TemplateParams,
	})

	attempts := row.Attempts + 1
	switch {
	case err == nil && result.OK:
		sentAt := utils.Now()
		if markErr := w.messages.MarkSent(ctx, payload.MessageID, result.MessageID, sentAt); markErr != nil && !apperrors.IsNotFoundError(markErr) {
			log.Error("Failed to mark message sent", zap.Error(markErr))
		}
		if markErr := w.outbox.MarkSent(ctx, row.ID, attempts); markErr != nil {
			log.Error("Failed to finalize outbox row as sent", zap.Error(markErr))
			return model.OutboxStatusQueued
		}
		w.publisher.Publish(ctx, row.WorkspaceID, events.KindMessageSent, map[string]string{
			"message_id":    payload.MessageID,
			"wa_message_id": result.MessageID,
		})
		return model.OutboxStatusSent

	case attempts >= w.cfg.MaxAttempts:
		reason := sendFailureReason(result, err)
		log.Warn("Outbox row exhausted attempts",
			zap.Int("attempts", attempts), zap.String("reason", reason))
		if markErr := w.messages.MarkFailed(ctx, payload.MessageID, reason); markErr != nil && !apperrors.IsNotFoundError(markErr) {
			log.Error("Failed to mark message failed", zap.Error(markErr))
		}
		if markErr := w.outbox.MarkFailed(ctx, row.ID, attempts, reason); markErr != nil {
			log.Error("Failed to finalize outbox row as failed", zap.Error(markErr))
		}
		w.publisher.Publish(ctx, row.WorkspaceID, events.KindMessageFailed, map[string]string{
			"message_id": payload.MessageID,
			"reason":     reason,
		})
		return model.OutboxStatusFailed

	default:
		reason := sendFailureReason(result, err)
		backoff := BackoffDelay(w.cfg.BackoffBase, w.cfg.BackoffCap, attempts)
		nextAttemptAt := utils.Now().Add(backoff)
		log.Info("Requeueing outbox row",
			zap.Int("attempts", attempts),
			zap.Duration("backoff", backoff),
			zap.String("reason", reason))
		if markErr := w.outbox.Requeue(ctx, row.ID, attempts, reason, nextAttemptAt); markErr != nil {
			log.Error("Failed to requeue outbox row", zap.Error(markErr))
		}
		return model.OutboxStatusQueued
	}
}

// failTerminally parks a row at the far-future sentinel with no retry, used
// for failures that cannot self-heal.
func (w *OutboxWorker) failTerminally(ctx context.Context, row *model.OutboxMessage, messageID, reason string) {
	log := logger.FromContext(ctx)
	if messageID != "" {
		if err := w.messages.MarkFailed(ctx, messageID, reason); err != nil && !apperrors.IsNotFoundError(err) {
			log.Error("Failed to mark message failed",
				zap.String("message_id", messageID), zap.Error(err))
		}
	}
	if err := w.outbox.MarkFailed(ctx, row.ID, row.Attempts+1, reason); err != nil {
		log.Error("Failed to finalize outbox row as failed",
			zap.String("outbox_id", row.ID), zap.Error(err))
	}
	w.publisher.Publish(ctx, row.WorkspaceID, events.KindMessageFailed, map[string]string{
		"message_id": messageID,
		"reason":     reason,
	})
}

// BackoffDelay computes the retry delay after the given attempt count as
// base * 2^(attempts-1), capped at limit. Non-decreasing in attempts.
func BackoffDelay(base, limit time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	if delay > limit {
		return limit
	}
	return delay
}

func sendFailureReason(result gateway.SendResult, err error) string {
	if result.ErrorMessage != "" {
		return result.ErrorMessage
	}
	if err != nil {
		return err.Error()
	}
	return "gateway rejected message"
}

// rawJSON wraps a pre-marshalled payload for audit rows.
func rawJSON(v interface{}) datatypes.JSON {
	return datatypes.JSON(utils.MustMarshalJSON(v))
}
