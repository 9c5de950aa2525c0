package storage

import (
	"context"
	"time"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
)

// OutboxRepo defines outbox queue storage operations
type OutboxRepo interface {
	// Enqueue upserts on the idempotency key; re-enqueuing the same logical
	// send returns the existing row instead of creating a duplicate.
	Enqueue(ctx context.Context, msg model.OutboxMessage) (*model.OutboxMessage, error)
	// ClaimDue atomically claims up to limit due queued rows for lockedBy.
	// Rows whose lock is older than lockTTL count as due (stale claims).
	ClaimDue(ctx context.Context, lockedBy string, limit int, lockTTL time.Duration) ([]model.OutboxMessage, error)
	// MarkSent finalizes a row as delivered and clears the lock.
	MarkSent(ctx context.Context, id string, attempts int) error
	// MarkFailed finalizes a row as terminally failed and clears the lock.
	MarkFailed(ctx context.Context, id string, attempts int, lastError string) error
	// Requeue schedules a retry at nextAttemptAt and clears the lock.
	Requeue(ctx context.Context, id string, attempts int, lastError string, nextAttemptAt time.Time) error
	FindByID(ctx context.Context, id string) (*model.OutboxMessage, error)
}

// SendJobRepo defines bulk campaign storage operations
type SendJobRepo interface {
	// CreateWithItems inserts the job and its exploded items in one transaction.
	CreateWithItems(ctx context.Context, job model.SendJob, items []model.SendJobItem) error
	FindByID(ctx context.Context, id string) (*model.SendJob, error)
	// FindRunnable returns up to limit pending/processing jobs, oldest first.
	FindRunnable(ctx context.Context, limit int) ([]model.SendJob, error)
	// MarkProcessing transitions pending -> processing with a started_at stamp.
	MarkProcessing(ctx context.Context, id string, startedAt time.Time) error
	// Finalize sets a terminal status and completed_at, guarding against
	// regressions from an already terminal state.
	Finalize(ctx context.Context, id string, status string, completedAt time.Time) error
	// RecountTotals recomputes the aggregate counters from the item table.
	RecountTotals(ctx context.Context, id string) (queued, sent, failed int, err error)
	// Cancel transitions pending/processing -> cancelled and skips queued items.
	Cancel(ctx context.Context, id string) error

	FetchQueuedItems(ctx context.Context, jobID string, limit int) ([]model.SendJobItem, error)
	MarkItemSending(ctx context.Context, itemID string) error
	MarkItemSent(ctx context.Context, itemID string, waMessageID string, sentAt time.Time) error
	MarkItemFailed(ctx context.Context, itemID string, errorMessage string) error
	// FailQueuedItems marks every still-queued item of the job failed with the
	// given reason (job-level infrastructure failures).
	FailQueuedItems(ctx context.Context, jobID string, reason string) (int, error)
}

// SendLogRepo defines the append-only delivery attempt log
type SendLogRepo interface {
	Append(ctx context.Context, entry model.SendLog) error
	// CountRecentSent counts successful entries for the job inside the
	// trailing window; this is the rolling rate-limit accounting.
	CountRecentSent(ctx context.Context, jobID string, window time.Duration) (int, error)
}

// MessageRepo defines canonical message storage operations
type MessageRepo interface {
	Save(ctx context.Context, message model.Message) error
	FindByID(ctx context.Context, id string) (*model.Message, error)
	FindByWaMessageID(ctx context.Context, waMessageID string) (*model.Message, error)
	// ExistsByWaMessageID is the inbound dedup gate.
	ExistsByWaMessageID(ctx context.Context, waMessageID string) (bool, error)
	MarkSent(ctx context.Context, id string, waMessageID string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, errorReason string) error
	UpdateStatus(ctx context.Context, waMessageID string, status string, errorReason string) error
}

// ContactRepo defines contact storage operations
type ContactRepo interface {
	Save(ctx context.Context, contact model.Contact) error
	FindByID(ctx context.Context, id string) (*model.Contact, error)
	FindByPhone(ctx context.Context, workspaceID, phone string) (*model.Contact, error)
	FindByIDs(ctx context.Context, workspaceID string, ids []string) ([]model.Contact, error)
	TouchLastSeen(ctx context.Context, id string, seenAt time.Time) error
}

// ConversationRepo defines conversation storage operations
type ConversationRepo interface {
	Save(ctx context.Context, conv model.Conversation) error
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	FindByContact(ctx context.Context, workspaceID, contactID string) (*model.Conversation, error)
	// RecordInbound bumps unread_count and the message timestamps in one update.
	RecordInbound(ctx context.Context, id string, messageAt time.Time) error
	UpdateSla(ctx context.Context, id string, ticketStatus string, firstResponseDueAt, resolutionDueAt *time.Time) error
}

// TemplateRepo defines template registry lookups
type TemplateRepo interface {
	FindByID(ctx context.Context, workspaceID, id string) (*model.Template, error)
	Save(ctx context.Context, tpl model.Template) error
}

// ConnectionRepo defines gateway connection lookups
type ConnectionRepo interface {
	FindActiveByWorkspace(ctx context.Context, workspaceID string) (*model.GatewayConnection, error)
	FindByID(ctx context.Context, id string) (*model.GatewayConnection, error)
	Save(ctx context.Context, conn model.GatewayConnection) error
}

// AuditRepo defines the append-only audit trail and worker heartbeats
type AuditRepo interface {
	AppendEvent(ctx context.Context, event model.AuditEvent) error
	SaveHeartbeat(ctx context.Context, hb model.WorkerHeartbeat) error
}
