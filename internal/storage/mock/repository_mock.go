package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
)

// --- OutboxRepo Mock ---

// OutboxRepoMock mocks the OutboxRepo interface
type OutboxRepoMock struct {
	mock.Mock
}

// Enqueue mocks the Enqueue method
func (m *OutboxRepoMock) Enqueue(ctx context.Context, msg model.OutboxMessage) (*model.OutboxMessage, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OutboxMessage), args.Error(1)
}

// ClaimDue mocks the ClaimDue method
func (m *OutboxRepoMock) ClaimDue(ctx context.Context, lockedBy string, limit int, lockTTL time.Duration) ([]model.OutboxMessage, error) {
	args := m.Called(ctx, lockedBy, limit, lockTTL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OutboxMessage), args.Error(1)
}

// MarkSent mocks the MarkSent method
func (m *OutboxRepoMock) MarkSent(ctx context.Context, id string, attempts int) error {
	args := m.Called(ctx, id, attempts)
	return args.Error(0)
}

// MarkFailed mocks the MarkFailed method
func (m *OutboxRepoMock) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	args := m.Called(ctx, id, attempts, lastError)
	return args.Error(0)
}

// Requeue mocks the Requeue method
func (m *OutboxRepoMock) Requeue(ctx context.Context, id string, attempts int, lastError string, nextAttemptAt time.Time) error {
	args := m.Called(ctx, id, attempts, lastError, nextAttemptAt)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *OutboxRepoMock) FindByID(ctx context.Context, id string) (*model.OutboxMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OutboxMessage), args.Error(1)
}

// --- SendJobRepo Mock ---

// SendJobRepoMock mocks the SendJobRepo interface
type SendJobRepoMock struct {
	mock.Mock
}

// CreateWithItems mocks the CreateWithItems method
func (m *SendJobRepoMock) CreateWithItems(ctx context.Context, job model.SendJob, items []model.SendJobItem) error {
	args := m.Called(ctx, job, items)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *SendJobRepoMock) FindByID(ctx context.Context, id string) (*model.SendJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SendJob), args.Error(1)
}

// FindRunnable mocks the FindRunnable method
func (m *SendJobRepoMock) FindRunnable(ctx context.Context, limit int) ([]model.SendJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SendJob), args.Error(1)
}

// MarkProcessing mocks the MarkProcessing method
func (m *SendJobRepoMock) MarkProcessing(ctx context.Context, id string, startedAt time.Time) error {
	args := m.Called(ctx, id, startedAt)
	return args.Error(0)
}

// Finalize mocks the Finalize method
func (m *SendJobRepoMock) Finalize(ctx context.Context, id string, status string, completedAt time.Time) error {
	args := m.Called(ctx, id, status, completedAt)
	return args.Error(0)
}

// RecountTotals mocks the RecountTotals method
func (m *SendJobRepoMock) RecountTotals(ctx context.Context, id string) (int, int, int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Int(1), args.Int(2), args.Error(3)
}

// Cancel mocks the Cancel method
func (m *SendJobRepoMock) Cancel(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// FetchQueuedItems mocks the FetchQueuedItems method
func (m *SendJobRepoMock) FetchQueuedItems(ctx context.Context, jobID string, limit int) ([]model.SendJobItem, error) {
	args := m.Called(ctx, jobID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SendJobItem), args.Error(1)
}

// MarkItemSending mocks the MarkItemSending method
func (m *SendJobRepoMock) MarkItemSending(ctx context.Context, itemID string) error {
	args := m.Called(ctx, itemID)
	return args.Error(0)
}

// MarkItemSent mocks the MarkItemSent method
func (m *SendJobRepoMock) MarkItemSent(ctx context.Context, itemID string, waMessageID string, sentAt time.Time) error {
	args := m.Called(ctx, itemID, waMessageID, sentAt)
	return args.Error(0)
}

// MarkItemFailed mocks the MarkItemFailed method
func (m *SendJobRepoMock) MarkItemFailed(ctx context.Context, itemID string, errorMessage string) error {
	args := m.Called(ctx, itemID, errorMessage)
	return args.Error(0)
}

// FailQueuedItems mocks the FailQueuedItems method
func (m *SendJobRepoMock) FailQueuedItems(ctx context.Context, jobID string, reason string) (int, error) {
	args := m.Called(ctx, jobID, reason)
	return args.Int(0), args.Error(1)
}

// --- SendLogRepo Mock ---

// SendLogRepoMock mocks the SendLogRepo interface
type SendLogRepoMock struct {
	mock.Mock
}

// Append mocks the Append method
func (m *SendLogRepoMock) Append(ctx context.Context, entry model.SendLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// CountRecentSent mocks the CountRecentSent method
func (m *SendLogRepoMock) CountRecentSent(ctx context.Context, jobID string, window time.Duration) (int, error) {
	args := m.Called(ctx, jobID, window)
	return args.Int(0), args.Error(1)
}

// --- MessageRepo Mock ---

// MessageRepoMock mocks the MessageRepo interface
type MessageRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *MessageRepoMock) Save(ctx context.Context, message model.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *MessageRepoMock) FindByID(ctx context.Context, id string) (*model.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

// FindByWaMessageID mocks the FindByWaMessageID method
func (m *MessageRepoMock) FindByWaMessageID(ctx context.Context, waMessageID string) (*model.Message, error) {
	args := m.Called(ctx, waMessageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

// ExistsByWaMessageID mocks the ExistsByWaMessageID method
func (m *MessageRepoMock) ExistsByWaMessageID(ctx context.Context, waMessageID string) (bool, error) {
	args := m.Called(ctx, waMessageID)
	return args.Bool(0), args.Error(1)
}

// MarkSent mocks the MarkSent method
func (m *MessageRepoMock) MarkSent(ctx context.Context, id string, waMessageID string, sentAt time.Time) error {
	args := m.Called(ctx, id, waMessageID, sentAt)
	return args.Error(0)
}

// MarkFailed mocks the MarkFailed method
func (m *MessageRepoMock) MarkFailed(ctx context.Context, id string, errorReason string) error {
	args := m.Called(ctx, id, errorReason)
	return args.Error(0)
}

// UpdateStatus mocks the UpdateStatus method
func (m *MessageRepoMock) UpdateStatus(ctx context.Context, waMessageID string, status string, errorReason string) error {
	args := m.Called(ctx, waMessageID, status, errorReason)
	return args.Error(0)
}

// --- ContactRepo Mock ---

// ContactRepoMock mocks the ContactRepo interface
type ContactRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *ContactRepoMock) Save(ctx context.Context, contact model.Contact) error {
	args := m.Called(ctx, contact)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *ContactRepoMock) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

// FindByPhone mocks the FindByPhone method
func (m *ContactRepoMock) FindByPhone(ctx context.Context, workspaceID, phone string) (*model.Contact, error) {
	args := m.Called(ctx, workspaceID, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

// FindByIDs mocks the FindByIDs method
func (m *ContactRepoMock) FindByIDs(ctx context.Context, workspaceID string, ids []string) ([]model.Contact, error) {
	args := m.Called(ctx, workspaceID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

// TouchLastSeen mocks the TouchLastSeen method
func (m *ContactRepoMock) TouchLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	args := m.Called(ctx, id, seenAt)
	return args.Error(0)
}

// --- ConversationRepo Mock ---

// ConversationRepoMock mocks the ConversationRepo interface
type ConversationRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *ConversationRepoMock) Save(ctx context.Context, conv model.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

// FindByID mocks the FindByID method
func (m *ConversationRepoMock) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

// FindByContact mocks the FindByContact method
func (m *ConversationRepoMock) FindByContact(ctx context.Context, workspaceID, contactID string) (*model.Conversation, error) {
	args := m.Called(ctx, workspaceID, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

// RecordInbound mocks the RecordInbound method
func (m *ConversationRepoMock) RecordInbound(ctx context.Context, id string, messageAt time.Time) error {
	args := m.Called(ctx, id, messageAt)
	return args.Error(0)
}

// UpdateSla mocks the UpdateSla method
func (m *ConversationRepoMock) UpdateSla(ctx context.Context, id string, ticketStatus string, firstResponseDueAt, resolutionDueAt *time.Time) error {
	args := m.Called(ctx, id, ticketStatus, firstResponseDueAt, resolutionDueAt)
	return args.Error(0)
}

// --- TemplateRepo Mock ---

// TemplateRepoMock mocks the TemplateRepo interface
type TemplateRepoMock struct {
	mock.Mock
}

// FindByID mocks the FindByID method
func (m *TemplateRepoMock) FindByID(ctx context.Context, workspaceID, id string) (*model.Template, error) {
	args := m.Called(ctx, workspaceID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Template), args.Error(1)
}

// Save mocks the Save method
func (m *TemplateRepoMock) Save(ctx context.Context, tpl model.Template) error {
	args := m.Called(ctx, tpl)
	return args.Error(0)
}

// --- ConnectionRepo Mock ---

// ConnectionRepoMock mocks the ConnectionRepo interface
type ConnectionRepoMock struct {
	mock.Mock
}

// FindActiveByWorkspace mocks the FindActiveByWorkspace method
func (m *ConnectionRepoMock) FindActiveByWorkspace(ctx context.Context, workspaceID string) (*model.GatewayConnection, error) {
	args := m.Called(ctx, workspaceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GatewayConnection), args.Error(1)
}

// FindByID mocks the FindByID method
func (m *ConnectionRepoMock) FindByID(ctx context.Context, id string) (*model.GatewayConnection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GatewayConnection), args.Error(1)
}

// Save mocks the Save method
func (m *ConnectionRepoMock) Save(ctx context.Context, conn model.GatewayConnection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

// --- AuditRepo Mock ---

// AuditRepoMock mocks the AuditRepo interface
type AuditRepoMock struct {
	mock.Mock
}

// AppendEvent mocks the AppendEvent method
func (m *AuditRepoMock) AppendEvent(ctx context.Context, event model.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// SaveHeartbeat mocks the SaveHeartbeat method
func (m *AuditRepoMock) SaveHeartbeat(ctx context.Context, hb model.WorkerHeartbeat) error {
	args := m.Called(ctx, hb)
	return args.Error(0)
}
