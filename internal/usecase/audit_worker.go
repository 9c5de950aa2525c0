package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/config"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/observer"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/storage"
)

// auditTask is one unit of background audit work: either an audit event row
// or a worker heartbeat upsert.
type auditTask struct {
	event     *model.AuditEvent
	heartbeat *model.WorkerHeartbeat
}

// AuditSink accepts background audit writes.
type AuditSink interface {
	SubmitEvent(event model.AuditEvent)
	SubmitHeartbeat(workerName string, counts map[string]int)
	Stop()
}

// AuditWorker writes audit events and worker heartbeats asynchronously so the
// delivery and webhook paths never block on telemetry. Every write here is
// best effort: failures are logged and dropped.
type AuditWorker struct {
	pool       *ants.PoolWithFunc
	auditRepo  storage.AuditRepo
	cfg        config.AuditWorkerPoolConfig
	baseLogger *zap.Logger
}

// NewAuditWorker creates and initializes the audit worker pool.
func NewAuditWorker(cfg config.AuditWorkerPoolConfig, auditRepo storage.AuditRepo, baseLogger *zap.Logger) (*AuditWorker, error) {
	worker := &AuditWorker{
		auditRepo:  auditRepo,
		cfg:        cfg,
		baseLogger: baseLogger.Named("audit_worker"),
	}

	pool, err := ants.NewPoolWithFunc(cfg.PoolSize, func(i interface{}) {
		task, ok := i.(auditTask)
		if !ok {
			worker.baseLogger.Error("Invalid task data type received", zap.Any("data", i))
			return
		}
		worker.process(task)
	},
		ants.WithExpiryDuration(cfg.ExpiryTime),
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(cfg.QueueSize),
		ants.WithPanicHandler(func(err interface{}) {
			worker.baseLogger.Error("Panic recovered in audit worker", zap.Any("panic_error", err), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit worker pool: %w", err)
	}
	worker.pool = pool
	worker.baseLogger.Info("Audit worker pool initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Duration("expiry_time", cfg.ExpiryTime))
	return worker, nil
}

// SubmitEvent queues an audit event write. Never returns an error to the
// caller; a full pool only drops telemetry, not deliveries.
func (w *AuditWorker) SubmitEvent(event model.AuditEvent) {
	w.submit(auditTask{event: &event})
}

// SubmitHeartbeat queues a worker heartbeat upsert.
func (w *AuditWorker) SubmitHeartbeat(workerName string, counts map[string]int) {
	w.submit(auditTask{heartbeat: &model.WorkerHeartbeat{
		WorkerName: workerName,
		LastRunAt:  time.Now().UTC(),
		Counts:     rawJSON(counts),
	}})
}

func (w *AuditWorker) submit(task auditTask) {
	observer.SetAuditQueueLength(w.pool.Waiting())
	if err := w.pool.Invoke(task); err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			w.baseLogger.Warn("Audit pool overloaded, dropping task")
			return
		}
		w.baseLogger.Warn("Failed to submit audit task", zap.Error(err))
	}
}

func (w *AuditWorker) process(task auditTask) {
	// background writes get their own bounded context
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch {
	case task.event != nil:
		if err := w.auditRepo.AppendEvent(ctx, *task.event); err != nil {
			w.baseLogger.Warn("Failed to append audit event",
				zap.String("kind", task.event.Kind), zap.Error(err))
		}
	case task.heartbeat != nil:
		if err := w.auditRepo.SaveHeartbeat(ctx, *task.heartbeat); err != nil {
			w.baseLogger.Warn("Failed to save worker heartbeat",
				zap.String("worker", task.heartbeat.WorkerName), zap.Error(err))
		}
	}
}

// Stop gracefully shuts down the worker pool.
func (w *AuditWorker) Stop() {
	if w.pool != nil {
		w.baseLogger.Info("Releasing audit worker pool")
		w.pool.Release()
	}
}
