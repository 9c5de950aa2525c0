package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/apperrors"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/config"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/events"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/gateway"
	gatewaymock "gitlab.com/halodesk/api/halodesk-wa-delivery/internal/gateway/mock"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	storagemock "gitlab.com/halodesk/api/halodesk-wa-delivery/internal/storage/mock"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/utils"
)

type bulkWorkerMocks struct {
	jobs      *storagemock.SendJobRepoMock
	sendLogs  *storagemock.SendLogRepoMock
	templates *storagemock.TemplateRepoMock
	resolver  *gatewaymock.ResolverMock
	client    *gatewaymock.ClientMock
	publisher *PublisherMock
}

func setupBulkSendWorkerTest(t *testing.T) (*BulkSendWorker, *bulkWorkerMocks) {
	m := &bulkWorkerMocks{
		jobs:      new(storagemock.SendJobRepoMock),
		sendLogs:  new(storagemock.SendLogRepoMock),
		templates: new(storagemock.TemplateRepoMock),
		resolver:  new(gatewaymock.ResolverMock),
		client:    new(gatewaymock.ClientMock),
		publisher: new(PublisherMock),
	}
	audit := new(AuditSinkMock)
	audit.On("SubmitHeartbeat", "bulk_send", mock.Anything).Return()

	cfg := config.BulkSendWorkerConfig{
		JobLimit:     5,
		BatchSize:    10,
		SendInterval: time.Millisecond,
	}
	worker := NewBulkSendWorker(m.jobs, m.sendLogs, m.templates, m.resolver, m.client, audit, m.publisher, cfg)
	return worker, m
}

func processingJob(id string, rateLimit int) model.SendJob {
	return *model.NewSendJob(func(j *model.SendJob) {
		j.ID = id
		j.WorkspaceID = "ws-1"
		j.TemplateID = "tpl-1"
		j.Name = "august promo"
		j.Status = model.SendJobStatusProcessing
		j.RateLimitPerMinute = rateLimit
	})
}

func queuedItem(id, jobID, phone string) model.SendJobItem {
	return *model.NewSendJobItem(&model.SendJob{ID: jobID, WorkspaceID: "ws-1"}, func(it *model.SendJobItem) {
		it.ID = id
		it.ToPhone = phone
		it.Params = datatypes.JSON(`["Budi","ORDER-1"]`)
	})
}

func promoTemplate() *model.Template {
	return model.NewTemplate(2, func(tpl *model.Template) {
		tpl.ID = "tpl-1"
		tpl.WorkspaceID = "ws-1"
		tpl.Name = "promo_august"
		tpl.Language = "id"
	})
}

func TestBulkSendWorker_RunBatch_SendsWithinRateWindow(t *testing.T) {
	worker, m := setupBulkSendWorkerTest(t)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	job := processingJob("job-1", 60)
	items := []model.SendJobItem{
		queuedItem("item-1", "job-1", "628111"),
		queuedItem("item-2", "job-1", "628222"),
	}

	m.jobs.On("FindRunnable", mock.Anything, 5).Return([]model.SendJob{job}, nil)
	m.jobs.On("FetchQueuedItems", mock.Anything, "job-1", 10).Return(items, nil)
	m.resolver.On("Resolve", mock.Anything, "ws-1").Return("pn-1", "token-1", nil)
	m.templates.On("FindByID", mock.Anything, "ws-1", "tpl-1").Return(promoTemplate(), nil)
	m.sendLogs.On("CountRecentSent", mock.Anything, "job-1", time.Minute).Return(0, nil)
	m.jobs.On("MarkItemSending", mock.Anything, mock.AnythingOfType("string")).Return(nil)
	m.client.On("SendMessage", mock.Anything, mock.MatchedBy(func(req gateway.SendRequest) bool {
		return req.Kind == model.OutboxKindTemplate && req.TemplateName == "promo_august" &&
			req.TemplateLanguage == "id" && len(req.TemplateParams) == 2
	})).Return(gateway.SendResult{OK: true, MessageID: "wamid.BULK", HTTPStatus: 200}, nil)
	m.jobs.On("MarkItemSent", mock.Anything, mock.AnythingOfType("string"), "wamid.BULK", mock.AnythingOfType("time.Time")).Return(nil)
	m.sendLogs.On("Append", mock.Anything, mock.MatchedBy(func(entry model.SendLog) bool {
		return entry.JobID == "job-1" && entry.Success &&
			entry.RecipientHash != "628111" && entry.RecipientHash != "628222" &&
			entry.TemplateName == "promo_august"
	})).Return(nil)
	m.jobs.On("RecountTotals", mock.Anything, "job-1").Return(0, 2, 0, nil)
	m.jobs.On("Finalize", mock.Anything, "job-1", model.SendJobStatusCompleted, mock.AnythingOfType("time.Time")).Return(nil)
	m.publisher.On("Publish", mock.Anything, "ws-1", events.KindJobCompleted, mock.Anything).Return()

	summary, err := worker.RunBatch(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sent)
	assert.Equal(t, 0, summary.Failed)
	m.jobs.AssertExpectations(t)
	m.sendLogs.AssertExpectations(t)
	m.client.AssertNumberOfCalls(t, "SendMessage", 2)
	m.publisher.AssertExpectations(t)

	// the hash is stable for the same phone
	for _, call := range m.sendLogs.Calls {
		if call.Method != "Append" {
			continue
		}
		entry := call.Arguments.Get(1).(model.SendLog)
		if entry.ItemID == "item-1" {
			assert.Equal(t, utils.HashPhone("628111"), entry.RecipientHash)
		}
	}
}

func TestBulkSendWorker_RunBatch_RateWindowExhaustedSkipsJob(t *testing.T) {
	worker, m := setupBulkSendWorkerTest(t)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	job := processingJob("job-1", 60)
	m.jobs.On("FindRunnable", mock.Anything, 5).Return([]model.SendJob{job}, nil)
	m.jobs.On("FetchQueuedItems", mock.Anything, "job-1", 10).
		Return([]model.SendJobItem{queuedItem("item-1", "job-1", "628111")}, nil)
	m.resolver.On("Resolve", mock.Anything, "ws-1").Return("pn-1", "token-1", nil)
	m.templates.On("FindByID", mock.Anything, "ws-1", "tpl-1").Return(promoTemplate(), nil)
	m.sendLogs.On("CountRecentSent", mock.Anything, "job-1", time.Minute).Return(60, nil)

	summary, err := worker.RunBatch(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0, summary.Processed)
	m.client.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
	m.jobs.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBulkSendWorker_RunBatch_PartialSlotsLimitSlice(t *testing.T) {
	worker, m := setupBulkSendWorkerTest(t)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	job := processingJob("job-1", 60)
	items := []model.SendJobItem{
		queuedItem("item-1", "job-1", "628111"),
		queuedItem("item-2", "job-1", "628222"),
		queuedItem("item-3", "job-1", "628333"),
	}

	m.jobs.On("FindRunnable", mock.Anything, 5).Return([]model.SendJob{job}, nil)
	m.jobs.On("FetchQueuedItems", mock.Anything, "job-1", 10).Return(items, nil)
	m.resolver.On("Resolve", mock.Anything, "ws-1").Return("pn-1", "token-1", nil)
	m.templates.On("FindByID", mock.Anything, "ws-1", "tpl-1").Return(promoTemplate(), nil)
	// 59 already sent this minute leaves exactly one slot
	m.sendLogs.On("CountRecentSent", mock.Anything, "job-1", time.Minute).Return(59, nil)
	m.jobs.On("MarkItemSending", mock.Anything, "item-1").Return(nil)
	m.client.On("SendMessage", mock.Anything, mock.Anything).
		Return(gateway.SendResult{OK: true, MessageID: "wamid.ONE"}, nil)
	m.jobs.On("MarkItemSent", mock.Anything, "item-1", "wamid.ONE", mock.AnythingOfType("time.Time")).Return(nil)
	m.sendLogs.On("Append", mock.Anything, mock.AnythingOfType("model.SendLog")).Return(nil)
	m.jobs.On("RecountTotals", mock.Anything, "job-1").Return(2, 1, 0, nil)

	summary, err := worker.RunBatch(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	m.client.AssertNumberOfCalls(t, "SendMessage", 1)
	// queued items remain, so the job is not finalized
	m.jobs.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBulkSendWorker_RunBatch_PendingJobMarkedProcessing(t *testing.T) {
	worker, m := setupBulkSendWorkerTest(t)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	job := processingJob("job-1", 60)
	job.Status = model.SendJobStatusPending

	m.jobs.On("FindRunnable", mock.Anything, 5).Return([]model.SendJob{job}, nil)
	m.jobs.On("MarkProcessing", mock.Anything, "job-1", mock.AnythingOfType("time.Time")).Return(nil)
	m.jobs.On("FetchQueuedItems", mock.Anything, "job-1", 10).Return([]model.SendJobItem{}, nil)
	m.jobs.On("RecountTotals", mock.Anything, "job-1").Return(0, 0, 0, nil)
	m.jobs.On("Finalize", mock.Anything, "job-1", model.SendJobStatusCompleted, mock.AnythingOfType("time.Time")).Return(nil)
	m.publisher.On("Publish", mock.Anything, "ws-1", events.KindJobCompleted, mock.Anything).Return()

	_, err := worker.RunBatch(ctx)

	require.NoError(t, err)
	m.jobs.AssertCalled(t, "MarkProcessing", mock.Anything, "job-1", mock.AnythingOfType("time.Time"))
}

func TestBulkSendWorker_RunBatch_MissingTemplateFailsJob(t *testing.T) {
	worker, m := setupBulkSendWorkerTest(t)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	job := processingJob("job-1", 60)
	m.jobs.On("FindRunnable", mock.Anything, 5).Return([]model.SendJob{job}, nil)
	m.jobs.On("FetchQueuedItems", mock.Anything, "job-1", 10).
		Return([]model.SendJobItem{queuedItem("item-1", "job-1", "628111")}, nil)
	m.resolver.On("Resolve", mock.Anything, "ws-1").Return("pn-1", "token-1", nil)
	m.templates.On("FindByID", mock.Anything, "ws-1", "tpl-1").Return(nil, apperrors.ErrNotFound)
	m.jobs.On("FailQueuedItems", mock.Anything, "job-1", model.FailReasonTemplateNotFound).Return(1, nil)
	m.jobs.On("RecountTotals", mock.Anything, "job-1").Return(0, 0, 1, nil)
	m.jobs.On("Finalize", mock.Anything, "job-1", model.SendJobStatusFailed, mock.AnythingOfType("time.Time")).Return(nil)
	m.publisher.On("Publish", mock.Anything, "ws-1", events.KindJobFailed, mock.Anything).Return()

	summary, err := worker.RunBatch(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	m.client.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
	m.jobs.AssertExpectations(t)
	m.publisher.AssertExpectations(t)
}

func TestBulkSendWorker_RunBatch_MissingConnectionFailsJob(t *testing.T) {
	worker, m := setupBulkSendWorkerTest(t)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	job := processingJob("job-1", 60)
	m.jobs.On("FindRunnable", mock.Anything, 5).Return([]model.SendJob{job}, nil)
	m.jobs.On("FetchQueuedItems", mock.Anything, "job-1", 10).
		Return([]model.SendJobItem{queuedItem("item-1", "job-1", "628111")}, nil)
	m.resolver.On("Resolve", mock.Anything, "ws-1").Return("", "", apperrors.ErrNotFound)
	m.jobs.On("FailQueuedItems", mock.Anything, "job-1", model.FailReasonConnectionNotFound).Return(1, nil)
	m.jobs.On("RecountTotals", mock.Anything, "job-1").Return(0, 0, 1, nil)
	m.jobs.On("Finalize", mock.Anything, "job-1", model.SendJobStatusFailed, mock.AnythingOfType("time.Time")).Return(nil)
	m.publisher.On("Publish", mock.Anything, "ws-1", events.KindJobFailed, mock.Anything).Return()

	summary, err := worker.RunBatch(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	m.jobs.AssertExpectations(t)
}

func TestBulkSendWorker_RunBatch_MissingTokenFailsJob(t *testing.T) {
	worker, m := setupBulkSendWorkerTest(t)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	job := processingJob("job-1", 60)
	m.jobs.On("FindRunnable", mock.Anything, 5).Return([]model.SendJob{job}, nil)
	m.jobs.On("FetchQueuedItems", mock.Anything, "job-1", 10).
		Return([]model.SendJobItem{queuedItem("item-1", "job-1", "628111")}, nil)
	m.resolver.On("Resolve", mock.Anything, "ws-1").Return("", "", apperrors.ErrUnauthorized)
	m.jobs.On("FailQueuedItems", mock.Anything, "job-1", model.FailReasonTokenNotFound).Return(1, nil)
	m.jobs.On("RecountTotals", mock.Anything, "job-1").Return(0, 0, 1, nil)
	m.jobs.On("Finalize", mock.Anything, "job-1", model.SendJobStatusFailed, mock.AnythingOfType("time.Time")).Return(nil)
	m.publisher.On("Publish", mock.Anything, "ws-1", events.KindJobFailed, mock.Anything).Return()

	_, err := worker.RunBatch(ctx)

	require.NoError(t, err)
	m.jobs.AssertCalled(t, "FailQueuedItems", mock.Anything, "job-1", model.FailReasonTokenNotFound)
}

func TestBulkSendWorker_RunBatch_TransientResolverErrorSkipsCycle(t *testing.T) {
	worker, m := setupBulkSendWorkerTest(t)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	job := processingJob("job-1", 60)
	m.jobs.On("FindRunnable", mock.Anything, 5).Return([]model.SendJob{job}, nil)
	m.jobs.On("FetchQueuedItems", mock.Anything, "job-1", 10).
		Return([]model.SendJobItem{queuedItem("item-1", "job-1", "628111")}, nil)
	m.resolver.On("Resolve", mock.Anything, "ws-1").
		Return("", "", apperrors.NewRetryable(apperrors.ErrDatabase, "connection lookup failed"))

	summary, err := worker.RunBatch(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0, summary.Failed)
	m.jobs.AssertNotCalled(t, "FailQueuedItems", mock.Anything, mock.Anything, mock.Anything)
	m.jobs.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBulkSendWorker_RunBatch_FailedSendLoggedAndItemFailed(t *testing.T) {
	worker, m := setupBulkSendWorkerTest(t)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	job := processingJob("job-1", 60)
	m.jobs.On("FindRunnable", mock.Anything, 5).Return([]model.SendJob{job}, nil)
	m.jobs.On("FetchQueuedItems", mock.Anything, "job-1", 10).
		Return([]model.SendJobItem{queuedItem("item-1", "job-1", "628111")}, nil)
	m.resolver.On("Resolve", mock.Anything, "ws-1").Return("pn-1", "token-1", nil)
	m.templates.On("FindByID", mock.Anything, "ws-1", "tpl-1").Return(promoTemplate(), nil)
	m.sendLogs.On("CountRecentSent", mock.Anything, "job-1", time.Minute).Return(0, nil)
	m.jobs.On("MarkItemSending", mock.Anything, "item-1").Return(nil)
	m.client.On("SendMessage", mock.Anything, mock.Anything).
		Return(gateway.SendResult{OK: false, HTTPStatus: 400, ErrorMessage: "invalid recipient", RawResponse: []byte(`{"error":"invalid"}`)}, nil)
	m.jobs.On("MarkItemFailed", mock.Anything, "item-1", "invalid recipient").Return(nil)
	m.sendLogs.On("Append", mock.Anything, mock.MatchedBy(func(entry model.SendLog) bool {
		return !entry.Success && entry.HTTPStatus == 400 && entry.ItemID == "item-1"
	})).Return(nil)
	m.jobs.On("RecountTotals", mock.Anything, "job-1").Return(0, 0, 1, nil)
	m.jobs.On("Finalize", mock.Anything, "job-1", model.SendJobStatusCompleted, mock.AnythingOfType("time.Time")).Return(nil)
	m.publisher.On("Publish", mock.Anything, "ws-1", events.KindJobCompleted, mock.Anything).Return()

	summary, err := worker.RunBatch(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Sent)
	m.jobs.AssertExpectations(t)
	m.sendLogs.AssertExpectations(t)
}

func TestBulkSendWorker_RunBatch_SelectionFailureReturnsError(t *testing.T) {
	worker, m := setupBulkSendWorkerTest(t)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	m.jobs.On("FindRunnable", mock.Anything, 5).Return(nil, apperrors.ErrDatabase)

	summary, err := worker.RunBatch(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDatabase)
	assert.False(t, summary.OK)
}
