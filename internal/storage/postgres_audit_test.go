package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/apperrors"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/utils"
)

func TestAppendAuditEvent(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	mock.ExpectExec(`INSERT INTO "audit_events"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	event := model.AuditEvent{
		ID:          "evt-1",
		WorkspaceID: testWorkspaceID,
		Kind:        model.AuditKindInboundMessage,
		WaMessageID: "wamid.INBOUND1",
	}
	err := repo.AppendAuditEvent(context.Background(), event)
	assert.NoError(t, err)
}

func TestSaveWorkerHeartbeat_UpsertsOnWorkerName(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	mock.ExpectExec(`INSERT INTO "worker_heartbeats" .* ON CONFLICT \("worker_name"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	heartbeat := model.WorkerHeartbeat{
		WorkerName: "outbox",
		LastRunAt:  utils.Now(),
	}
	err := repo.SaveWorkerHeartbeat(context.Background(), heartbeat)
	assert.NoError(t, err)
}

func TestFindTemplateByID(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	mock.ExpectQuery(`SELECT \* FROM "wa_templates" WHERE workspace_id = \$1 AND id = \$2`).
		WithArgs(testWorkspaceID, "tpl-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "workspace_id", "name", "language", "param_count", "status"}).
			AddRow("tpl-1", testWorkspaceID, "promo_august", "id", 2, model.TemplateStatusApproved))

	template, err := repo.FindTemplateByID(context.Background(), testWorkspaceID, "tpl-1")

	require.NoError(t, err)
	assert.Equal(t, "promo_august", template.Name)
	assert.Equal(t, 2, template.ParamCount)
}

func TestFindActiveConnectionByWorkspace(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	// The newest active connection wins when a workspace has several.
	mock.ExpectQuery(`SELECT \* FROM "gateway_connections" WHERE workspace_id = \$1 AND status = \$2 ORDER BY created_at DESC`).
		WithArgs(testWorkspaceID, model.ConnectionStatusActive, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "workspace_id", "phone_number_id", "status"}).
			AddRow("conn-1", testWorkspaceID, "1550123456", model.ConnectionStatusActive))

	connection, err := repo.FindActiveConnectionByWorkspace(context.Background(), testWorkspaceID)

	require.NoError(t, err)
	assert.Equal(t, "conn-1", connection.ID)
	assert.Equal(t, "1550123456", connection.PhoneNumberID)
}

func TestFindActiveConnectionByWorkspace_NoneConfigured(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	mock.ExpectQuery(`SELECT \* FROM "gateway_connections" WHERE workspace_id = \$1 AND status = \$2`).
		WithArgs("ws-empty", model.ConnectionStatusActive, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	connection, err := repo.FindActiveConnectionByWorkspace(context.Background(), "ws-empty")

	assert.Nil(t, connection)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
