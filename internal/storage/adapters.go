package storage

import (
	"context"
	"time"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
)

// The adapters below bind the flat PostgresRepo method set to the narrow
// per-entity interfaces the services depend on. Services only ever see the
// interface they need; wiring picks the concrete repo once in main.

// NewOutboxRepoAdapter adapts PostgresRepo to OutboxRepo
func NewOutboxRepoAdapter(repo *PostgresRepo) OutboxRepo { return &OutboxAdapter{Repo: repo} }

// NewSendJobRepoAdapter adapts PostgresRepo to SendJobRepo
func NewSendJobRepoAdapter(repo *PostgresRepo) SendJobRepo { return &SendJobAdapter{Repo: repo} }

// NewSendLogRepoAdapter adapts PostgresRepo to SendLogRepo
func NewSendLogRepoAdapter(repo *PostgresRepo) SendLogRepo { return &SendLogAdapter{Repo: repo} }

// NewMessageRepoAdapter adapts PostgresRepo to MessageRepo
func NewMessageRepoAdapter(repo *PostgresRepo) MessageRepo { return &MessageAdapter{Repo: repo} }

// NewContactRepoAdapter adapts PostgresRepo to ContactRepo
func NewContactRepoAdapter(repo *PostgresRepo) ContactRepo { return &ContactAdapter{Repo: repo} }

// NewConversationRepoAdapter adapts PostgresRepo to ConversationRepo
func NewConversationRepoAdapter(repo *PostgresRepo) ConversationRepo {
	return &ConversationAdapter{Repo: repo}
}

// NewTemplateRepoAdapter adapts PostgresRepo to TemplateRepo
func NewTemplateRepoAdapter(repo *PostgresRepo) TemplateRepo { return &TemplateAdapter{Repo: repo} }

// NewConnectionRepoAdapter adapts PostgresRepo to ConnectionRepo
func NewConnectionRepoAdapter(repo *PostgresRepo) ConnectionRepo {
	return &ConnectionAdapter{Repo: repo}
}

// NewAuditRepoAdapter adapts PostgresRepo to AuditRepo
func NewAuditRepoAdapter(repo *PostgresRepo) AuditRepo { return &AuditAdapter{Repo: repo} }

// OutboxAdapter adapts PostgresRepo to OutboxRepo
type OutboxAdapter struct{ Repo *PostgresRepo }

func (a *OutboxAdapter) Enqueue(ctx context.Context, msg model.OutboxMessage) (*model.OutboxMessage, error) {
	return a.Repo.EnqueueOutboxMessage(ctx, msg)
}
func (a *OutboxAdapter) ClaimDue(ctx context.Context, lockedBy string, limit int, lockTTL time.Duration) ([]model.OutboxMessage, error) {
	return a.Repo.ClaimDueOutboxMessages(ctx, lockedBy, limit, lockTTL)
}
func (a *OutboxAdapter) MarkSent(ctx context.Context, id string, attempts int) error {
	return a.Repo.MarkOutboxSent(ctx, id, attempts)
}
func (a *OutboxAdapter) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	return a.Repo.MarkOutboxFailed(ctx, id, attempts, lastError)
}
func (a *OutboxAdapter) Requeue(ctx context.Context, id string, attempts int, lastError string, nextAttemptAt time.Time) error {
	return a.Repo.RequeueOutbox(ctx, id, attempts, lastError, nextAttemptAt)
}
func (a *OutboxAdapter) FindByID(ctx context.Context, id string) (*model.OutboxMessage, error) {
	return a.Repo.FindOutboxByID(ctx, id)
}

// SendJobAdapter adapts PostgresRepo to SendJobRepo
type SendJobAdapter struct{ Repo *PostgresRepo }

func (a *SendJobAdapter) CreateWithItems(ctx context.Context, job model.SendJob, items []model.SendJobItem) error {
	return a.Repo.CreateSendJobWithItems(ctx, job, items)
}
func (a *SendJobAdapter) FindByID(ctx context.Context, id string) (*model.SendJob, error) {
	return a.Repo.FindSendJobByID(ctx, id)
}
func (a *SendJobAdapter) FindRunnable(ctx context.Context, limit int) ([]model.SendJob, error) {
	return a.Repo.FindRunnableSendJobs(ctx, limit)
}
func (a *SendJobAdapter) MarkProcessing(ctx context.Context, id string, startedAt time.Time) error {
	return a.Repo.MarkSendJobProcessing(ctx, id, startedAt)
}
func (a *SendJobAdapter) Finalize(ctx context.Context, id string, status string, completedAt time.Time) error {
	return a.Repo.FinalizeSendJob(ctx, id, status, completedAt)
}
func (a *SendJobAdapter) RecountTotals(ctx context.Context, id string) (int, int, int, error) {
	return a.Repo.RecountSendJobTotals(ctx, id)
}
func (a *SendJobAdapter) Cancel(ctx context.Context, id string) error {
	return a.Repo.CancelSendJob(ctx, id)
}
func (a *SendJobAdapter) FetchQueuedItems(ctx context.Context, jobID string, limit int) ([]model.SendJobItem, error) {
	return a.Repo.FetchQueuedSendJobItems(ctx, jobID, limit)
}
func (a *SendJobAdapter) MarkItemSending(ctx context.Context, itemID string) error {
	return a.Repo.MarkSendJobItemSending(ctx, itemID)
}
func (a *SendJobAdapter) MarkItemSent(ctx context.Context, itemID string, waMessageID string, sentAt time.Time) error {
	return a.Repo.MarkSendJobItemSent(ctx, itemID, waMessageID, sentAt)
}
func (a *SendJobAdapter) MarkItemFailed(ctx context.Context, itemID string, errorMessage string) error {
	return a.Repo.MarkSendJobItemFailed(ctx, itemID, errorMessage)
}
func (a *SendJobAdapter) FailQueuedItems(ctx context.Context, jobID string, reason string) (int, error) {
	return a.Repo.FailQueuedSendJobItems(ctx, jobID, reason)
}

// SendLogAdapter adapts PostgresRepo to SendLogRepo
type SendLogAdapter struct{ Repo *PostgresRepo }

func (a *SendLogAdapter) Append(ctx context.Context, entry model.SendLog) error {
	return a.Repo.AppendSendLog(ctx, entry)
}
func (a *SendLogAdapter) CountRecentSent(ctx context.Context, jobID string, window time.Duration) (int, error) {
	return a.Repo.CountRecentSentLogs(ctx, jobID, window)
}

// MessageAdapter adapts PostgresRepo to MessageRepo
type MessageAdapter struct{ Repo *PostgresRepo }

func (a *MessageAdapter) Save(ctx context.Context, message model.Message) error {
	return a.Repo.SaveMessage(ctx, message)
}
func (a *MessageAdapter) FindByID(ctx context.Context, id string) (*model.Message, error) {
	return a.Repo.FindMessageByID(ctx, id)
}
func (a *MessageAdapter) FindByWaMessageID(ctx context.Context, waMessageID string) (*model.Message, error) {
	return a.Repo.FindMessageByWaMessageID(ctx, waMessageID)
}
func (a *MessageAdapter) ExistsByWaMessageID(ctx context.Context, waMessageID string) (bool, error) {
	return a.Repo.MessageExistsByWaMessageID(ctx, waMessageID)
}
func (a *MessageAdapter) MarkSent(ctx context.Context, id string, waMessageID string, sentAt time.Time) error {
	return a.Repo.MarkMessageSent(ctx, id, waMessageID, sentAt)
}
func (a *MessageAdapter) MarkFailed(ctx context.Context, id string, errorReason string) error {
	return a.Repo.MarkMessageFailed(ctx, id, errorReason)
}
func (a *MessageAdapter) UpdateStatus(ctx context.Context, waMessageID string, status string, errorReason string) error {
	return a.Repo.UpdateMessageStatus(ctx, waMessageID, status, errorReason)
}

// ContactAdapter adapts PostgresRepo to ContactRepo
type ContactAdapter struct{ Repo *PostgresRepo }

func (a *ContactAdapter) Save(ctx context.Context, contact model.Contact) error {
	return a.Repo.SaveContact(ctx, contact)
}
func (a *ContactAdapter) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	return a.Repo.FindContactByID(ctx, id)
}
func (a *ContactAdapter) FindByPhone(ctx context.Context, workspaceID, phone string) (*model.Contact, error) {
	return a.Repo.FindContactByPhone(ctx, workspaceID, phone)
}
func (a *ContactAdapter) FindByIDs(ctx context.Context, workspaceID string, ids []string) ([]model.Contact, error) {
	return a.Repo.FindContactsByIDs(ctx, workspaceID, ids)
}
func (a *ContactAdapter) TouchLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	return a.Repo.TouchContactLastSeen(ctx, id, seenAt)
}

// ConversationAdapter adapts PostgresRepo to ConversationRepo
type ConversationAdapter struct{ Repo *PostgresRepo }

func (a *ConversationAdapter) Save(ctx context.Context, conv model.Conversation) error {
	return a.Repo.SaveConversation(ctx, conv)
}
func (a *ConversationAdapter) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	return a.Repo.FindConversationByID(ctx, id)
}
func (a *ConversationAdapter) FindByContact(ctx context.Context, workspaceID, contactID string) (*model.Conversation, error) {
	return a.Repo.FindConversationByContact(ctx, workspaceID, contactID)
}
func (a *ConversationAdapter) RecordInbound(ctx context.Context, id string, messageAt time.Time) error {
	return a.Repo.RecordInboundOnConversation(ctx, id, messageAt)
}
func (a *ConversationAdapter) UpdateSla(ctx context.Context, id string, ticketStatus string, firstResponseDueAt, resolutionDueAt *time.Time) error {
	return a.Repo.UpdateConversationSla(ctx, id, ticketStatus, firstResponseDueAt, resolutionDueAt)
}

// TemplateAdapter adapts PostgresRepo to TemplateRepo
type TemplateAdapter struct{ Repo *PostgresRepo }

func (a *TemplateAdapter) FindByID(ctx context.Context, workspaceID, id string) (*model.Template, error) {
	return a.Repo.FindTemplateByID(ctx, workspaceID, id)
}
func (a *TemplateAdapter) Save(ctx context.Context, tpl model.Template) error {
	return a.Repo.SaveTemplate(ctx, tpl)
}

// ConnectionAdapter adapts PostgresRepo to ConnectionRepo
type ConnectionAdapter struct{ Repo *PostgresRepo }

func (a *ConnectionAdapter) FindActiveByWorkspace(ctx context.Context, workspaceID string) (*model.GatewayConnection, error) {
	return a.Repo.FindActiveConnectionByWorkspace(ctx, workspaceID)
}
func (a *ConnectionAdapter) FindByID(ctx context.Context, id string) (*model.GatewayConnection, error) {
	return a.Repo.FindConnectionByID(ctx, id)
}
func (a *ConnectionAdapter) Save(ctx context.Context, conn model.GatewayConnection) error {
	return a.Repo.SaveConnection(ctx, conn)
}

// AuditAdapter adapts PostgresRepo to AuditRepo
type AuditAdapter struct{ Repo *PostgresRepo }

func (a *AuditAdapter) AppendEvent(ctx context.Context, event model.AuditEvent) error {
	return a.Repo.AppendAuditEvent(ctx, event)
}
func (a *AuditAdapter) SaveHeartbeat(ctx context.Context, hb model.WorkerHeartbeat) error {
	return a.Repo.SaveWorkerHeartbeat(ctx, hb)
}
