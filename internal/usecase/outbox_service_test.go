package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/apperrors"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/events"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	storagemock "gitlab.com/halodesk/api/halodesk-wa-delivery/internal/storage/mock"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/utils"
)

func setupOutboxServiceTest(t *testing.T) (*OutboxService, *storagemock.OutboxRepoMock, *storagemock.MessageRepoMock, *PublisherMock) {
	outboxRepo := new(storagemock.OutboxRepoMock)
	messageRepo := new(storagemock.MessageRepoMock)
	publisher := new(PublisherMock)
	service := NewOutboxService(outboxRepo, messageRepo, publisher)
	return service, outboxRepo, messageRepo, publisher
}

func validReplyPayload() model.EnqueueReplyPayload {
	return model.EnqueueReplyPayload{
		WorkspaceID: "ws-1",
		ThreadID:    "conv-1",
		ToPhone:     "628111111111",
		MessageType: model.OutboxKindText,
		Text:        "halo",
	}
}

func TestEnqueueReply_Success(t *testing.T) {
	service, outboxRepo, messageRepo, publisher := setupOutboxServiceTest(t)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	// echo the enqueued row back, as a fresh insert would
	echoed := &model.OutboxMessage{}
	outboxRepo.On("Enqueue", mock.Anything, mock.AnythingOfType("model.OutboxMessage")).
		Return(echoed, nil).
		Run(func(args mock.Arguments) {
			row := args.Get(1).(model.OutboxMessage)
			*echoed = row
		})
	messageRepo.On("Save", mock.Anything, mock.MatchedBy(func(msg model.Message) bool {
		return msg.Direction == model.MessageDirectionOut &&
			msg.Status == model.MessageStatusPending &&
			msg.Body == "halo" && msg.ConversationID == "conv-1"
	})).Return(nil)
	publisher.On("Publish", mock.Anything, "ws-1", events.KindStatusChanged, mock.Anything).Return()

	beforeBucket := utils.Now().Unix() / 60
	row, err := service.EnqueueReply(ctx, validReplyPayload())
	afterBucket := utils.Now().Unix() / 60

	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, model.OutboxStatusQueued, row.Status)
	assert.Equal(t, "628111111111", row.ToPhone)
	// the key buckets by minute; the call may straddle a boundary
	assert.Contains(t, []string{
		utils.IdempotencyKey("ws-1", "conv-1", "halo", beforeBucket),
		utils.IdempotencyKey("ws-1", "conv-1", "halo", afterBucket),
	}, row.IdempotencyKey)
	messageRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestEnqueueReply_DuplicateCollapses(t *testing.T) {
	service, outboxRepo, messageRepo, publisher := setupOutboxServiceTest(t)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	existing := &model.OutboxMessage{
		ID:          "existing-1",
		WorkspaceID: "ws-1",
		Status:      model.OutboxStatusQueued,
	}
	outboxRepo.On("Enqueue", mock.Anything, mock.AnythingOfType("model.OutboxMessage")).
		Return(existing, nil)

	row, err := service.EnqueueReply(ctx, validReplyPayload())

	require.NoError(t, err)
	assert.Equal(t, "existing-1", row.ID)
	// collapsed enqueue creates no second message and publishes nothing
	messageRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEnqueueReply_TemplateRequiresName(t *testing.T) {
	service, outboxRepo, _, _ := setupOutboxServiceTest(t)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	payload := validReplyPayload()
	payload.MessageType = model.OutboxKindTemplate
	payload.Text = ""

	_, err := service.EnqueueReply(ctx, payload)

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	outboxRepo.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestEnqueueReply_TextRequiresBody(t *testing.T) {
	service, outboxRepo, _, _ := setupOutboxServiceTest(t)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	payload := validReplyPayload()
	payload.Text = ""

	_, err := service.EnqueueReply(ctx, payload)

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	outboxRepo.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestEnqueueReply_MissingWorkspaceRejected(t *testing.T) {
	service, outboxRepo, _, _ := setupOutboxServiceTest(t)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	payload := validReplyPayload()
	payload.WorkspaceID = ""

	_, err := service.EnqueueReply(ctx, payload)

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	outboxRepo.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestEnqueueReply_StorageErrorPropagates(t *testing.T) {
	service, outboxRepo, messageRepo, _ := setupOutboxServiceTest(t)
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	outboxRepo.On("Enqueue", mock.Anything, mock.AnythingOfType("model.OutboxMessage")).
		Return(nil, apperrors.ErrDatabase)

	_, err := service.EnqueueReply(ctx, validReplyPayload())

	assert.ErrorIs(t, err, apperrors.ErrDatabase)
	messageRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
