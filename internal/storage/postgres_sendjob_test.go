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

func TestCreateSendJobWithItems(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	// Job and items commit atomically in one explicit transaction.
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "send_jobs"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "send_job_items"`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	job := model.SendJob{
		ID:                 testJobID,
		WorkspaceID:        testWorkspaceID,
		TemplateID:         "tpl-1",
		Name:               "August promo",
		Status:             model.SendJobStatusPending,
		TotalCount:         2,
		QueuedCount:        2,
		RateLimitPerMinute: 60,
	}
	items := []model.SendJobItem{
		{ID: "item-1", JobID: testJobID, ToPhone: "628111", Status: model.SendJobItemStatusQueued},
		{ID: "item-2", JobID: testJobID, ToPhone: "628222", Status: model.SendJobItemStatusQueued},
	}

	err := repo.CreateSendJobWithItems(context.Background(), job, items)
	assert.NoError(t, err)
}

func TestCreateSendJobWithItems_ItemInsertFailureRollsBack(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "send_jobs"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "send_job_items"`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	job := model.SendJob{ID: testJobID, WorkspaceID: testWorkspaceID, Status: model.SendJobStatusPending}
	items := []model.SendJobItem{{ID: "item-1", JobID: testJobID, ToPhone: "628111"}}

	err := repo.CreateSendJobWithItems(context.Background(), job, items)
	assert.ErrorIs(t, err, apperrors.ErrDatabase)
}

func TestFindRunnableSendJobs(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	mock.ExpectQuery(`SELECT \* FROM "send_jobs" WHERE status IN \(\$1,\$2\) ORDER BY created_at ASC LIMIT \$3`).
		WithArgs(model.SendJobStatusPending, model.SendJobStatusProcessing, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "workspace_id", "status", "rate_limit_per_minute"}).
			AddRow("job-old", testWorkspaceID, model.SendJobStatusProcessing, 60).
			AddRow("job-new", testWorkspaceID, model.SendJobStatusPending, 10))

	jobs, err := repo.FindRunnableSendJobs(context.Background(), 5)

	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-old", jobs[0].ID)
	assert.Equal(t, 10, jobs[1].RateLimitPerMinute)
}

func TestMarkSendJobProcessing(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	mock.ExpectExec(`UPDATE "send_jobs" SET`).
		WithArgs(AnyTime{}, model.SendJobStatusProcessing, AnyTime{}, testJobID, model.SendJobStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkSendJobProcessing(context.Background(), testJobID, utils.Now())
	assert.NoError(t, err)
}

func TestMarkSendJobProcessing_AlreadyProcessingIsNoop(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	mock.ExpectExec(`UPDATE "send_jobs" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkSendJobProcessing(context.Background(), testJobID, utils.Now())
	assert.NoError(t, err)
}

func TestFinalizeSendJob(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	mock.ExpectExec(`UPDATE "send_jobs" SET`).
		WithArgs(AnyTime{}, model.SendJobStatusCompleted, AnyTime{}, testJobID, model.SendJobStatusPending, model.SendJobStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.FinalizeSendJob(context.Background(), testJobID, model.SendJobStatusCompleted, utils.Now())
	assert.NoError(t, err)
}

func TestRecountSendJobTotals(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) AS n FROM "send_job_items" WHERE job_id = \$1 GROUP BY "status"`).
		WithArgs(testJobID).
		WillReturnRows(sqlmock.NewRows([]string{"status", "n"}).
			AddRow(model.SendJobItemStatusQueued, 2).
			AddRow(model.SendJobItemStatusSending, 1).
			AddRow(model.SendJobItemStatusSent, 5).
			AddRow(model.SendJobItemStatusFailed, 1).
			AddRow(model.SendJobItemStatusSkipped, 1))
	mock.ExpectExec(`UPDATE "send_jobs" SET`).
		WithArgs(2, 3, 5, AnyTime{}, testJobID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	queued, sent, failed, err := repo.RecountSendJobTotals(context.Background(), testJobID)

	require.NoError(t, err)
	// sending counts as queued, skipped counts as failed
	assert.Equal(t, 3, queued)
	assert.Equal(t, 5, sent)
	assert.Equal(t, 2, failed)
}

func TestCancelSendJob(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "send_jobs" SET`).
		WithArgs(AnyTime{}, model.SendJobStatusCancelled, AnyTime{}, testJobID, model.SendJobStatusPending, model.SendJobStatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "send_job_items" SET`).
		WithArgs(model.SendJobItemStatusSkipped, AnyTime{}, testJobID, model.SendJobItemStatusQueued).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := repo.CancelSendJob(context.Background(), testJobID)
	assert.NoError(t, err)
}

func TestCancelSendJob_TerminalJobConflicts(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "send_jobs" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.CancelSendJob(context.Background(), testJobID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestFetchQueuedSendJobItems(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	mock.ExpectQuery(`SELECT \* FROM "send_job_items" WHERE job_id = \$1 AND status = \$2 ORDER BY created_at ASC LIMIT \$3`).
		WithArgs(testJobID, model.SendJobItemStatusQueued, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "job_id", "to_phone", "status"}).
			AddRow("item-1", testJobID, "628111", model.SendJobItemStatusQueued).
			AddRow("item-2", testJobID, "628222", model.SendJobItemStatusQueued))

	items, err := repo.FetchQueuedSendJobItems(context.Background(), testJobID, 10)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "628111", items[0].ToPhone)
}

func TestMarkSendJobItemSent(t *testing.T) {
	repo, mock, teardown := newMockRepo(t)
	defer teardown()

	mock.ExpectExec(`UPDATE "send_job_items" SET`).
		WithArgs(AnyTime{}, model.SendJobItemStatusSent, AnyTime{}, "wamid.XYZ", "item-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkSendJobItemSent(context.Background(), "item-1", "wamid.XYZ", utils.Now())
	assert.NoError(t, err)
}
