package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/apperrors"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/utils"
)

func TestSaveConversation(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	// Upsert on (workspace_id, contact_id) leaves agent-owned ticket fields
	// alone when the row already exists.
	mock.ExpectExec(`INSERT INTO "conversations" .* ON CONFLICT \("workspace_id","contact_id"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	conversation := model.Conversation{
		ID:           "conv-1",
		WorkspaceID:  testWorkspaceID,
		ContactID:    "contact-1",
		TicketStatus: model.TicketStatusOpen,
	}
	err := repo.SaveConversation(context.Background(), conversation)
	assert.NoError(t, err)
}

func TestFindConversationByContact(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	mock.ExpectQuery(`SELECT \* FROM "conversations" WHERE workspace_id = \$1 AND contact_id = \$2`).
		WithArgs(testWorkspaceID, "contact-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "workspace_id", "contact_id", "ticket_status", "unread_count"}).
			AddRow("conv-1", testWorkspaceID, "contact-1", model.TicketStatusOpen, 3))

	conversation, err := repo.FindConversationByContact(context.Background(), testWorkspaceID, "contact-1")

	require.NoError(t, err)
	assert.Equal(t, "conv-1", conversation.ID)
	assert.Equal(t, 3, conversation.UnreadCount)
}

func TestFindConversationByContact_NotFound(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	mock.ExpectQuery(`SELECT \* FROM "conversations" WHERE workspace_id = \$1 AND contact_id = \$2`).
		WithArgs(testWorkspaceID, "contact-new", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	conversation, err := repo.FindConversationByContact(context.Background(), testWorkspaceID, "contact-new")

	assert.Nil(t, conversation)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRecordInboundOnConversation(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	// The unread counter is bumped in SQL, not read-modify-write, so
	// concurrent webhook deliveries never lose increments.
	mock.ExpectExec(`UPDATE "conversations" SET .*"unread_count"=unread_count \+ 1`).
		WithArgs(AnyTime{}, AnyTime{}, model.TicketStatusOpen, AnyTime{}, "conv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordInboundOnConversation(context.Background(), "conv-1", utils.Now())
	assert.NoError(t, err)
}

func TestRecordInboundOnConversation_MissingRow(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	mock.ExpectExec(`UPDATE "conversations" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RecordInboundOnConversation(context.Background(), "conv-missing", utils.Now())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateConversationSla(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	firstDue := utils.Now().Add(15 * time.Minute)
	resolutionDue := utils.Now().Add(4 * time.Hour)

	mock.ExpectExec(`UPDATE "conversations" SET`).
		WithArgs(AnyTime{}, AnyTime{}, model.TicketStatusOpen, AnyTime{}, "conv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateConversationSla(context.Background(), "conv-1", model.TicketStatusOpen, &firstDue, &resolutionDue)
	assert.NoError(t, err)
}

func TestUpdateConversationSla_ClearedClocksWithoutStatusChange(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	// Empty ticket status keeps the current one, and nil due times clear
	// both SLA clocks.
	mock.ExpectExec(`UPDATE "conversations" SET "first_response_due_at"=\$1,"resolution_due_at"=\$2,"updated_at"=\$3`).
		WithArgs(nil, nil, AnyTime{}, "conv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateConversationSla(context.Background(), "conv-1", "", nil, nil)
	assert.NoError(t, err)
}
