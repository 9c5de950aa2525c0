package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/apperrors"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/events"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/storage"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/validator"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/utils"
)

// OutboxService enqueues single outbound messages for the delivery worker.
type OutboxService struct {
	outbox    storage.OutboxRepo
	messages  storage.MessageRepo
	publisher events.Publisher
}

// NewOutboxService creates the enqueue-side service.
func NewOutboxService(outbox storage.OutboxRepo, messages storage.MessageRepo, publisher events.Publisher) *OutboxService {
	return &OutboxService{outbox: outbox, messages: messages, publisher: publisher}
}

// EnqueueReply records a pending Message row and enqueues its delivery.
// Requests within the same minute for the same workspace, thread and content
// collapse onto one outbox row through the idempotency key; the existing row
// is returned in that case and no second Message is created.
func (s *OutboxService) EnqueueReply(ctx context.Context, payload model.EnqueueReplyPayload) (*model.OutboxMessage, error) {
	if err := validator.Validate(payload); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}
	if payload.MessageType == model.OutboxKindText && payload.Text == "" {
		return nil, fmt.Errorf("%w: text is required for text messages", apperrors.ErrValidation)
	}
	if payload.MessageType == model.OutboxKindTemplate && payload.TemplateName == "" {
		return nil, fmt.Errorf("%w: template_name is required for template messages", apperrors.ErrValidation)
	}

	now := utils.Now()
	content := payload.Text
	if payload.MessageType == model.OutboxKindTemplate {
		content = payload.TemplateName + ":" + payload.TemplateLanguage
	}
	idempotencyKey := utils.IdempotencyKey(payload.WorkspaceID, payload.ThreadID, content, now.Unix()/60)

	messageID := uuid.NewString()
	message := model.Message{
		ID:               messageID,
		WorkspaceID:      payload.WorkspaceID,
		ConversationID:   payload.ThreadID,
		Direction:        model.MessageDirectionOut,
		MessageType:      payload.MessageType,
		Body:             payload.Text,
		Status:           model.MessageStatusPending,
		MessageTimestamp: now,
	}

	outboxPayload := model.OutboxPayload{
		Kind:             payload.MessageType,
		MessageID:        messageID,
		Text:             payload.Text,
		TemplateName:     payload.TemplateName,
		TemplateLanguage: payload.TemplateLanguage,
		TemplateParams:   payload.TemplateParams,
	}

	row := model.OutboxMessage{
		ID:             uuid.NewString(),
		WorkspaceID:    payload.WorkspaceID,
		ThreadID:       payload.ThreadID,
		ToPhone:        payload.ToPhone,
		MessageType:    payload.MessageType,
		Payload:        datatypes.JSON(utils.MustMarshalJSON(outboxPayload)),
		Status:         model.OutboxStatusQueued,
		IdempotencyKey: idempotencyKey,
		NextAttemptAt:  now,
	}

	enqueued, err := s.outbox.Enqueue(ctx, row)
	if err != nil {
		return nil, err
	}
	if enqueued.ID != row.ID {
		// collapsed onto an earlier enqueue; no new Message row
		logger.FromContext(ctx).Info("Duplicate enqueue collapsed",
			zap.String("idempotency_key", idempotencyKey),
			zap.String("outbox_id", enqueued.ID))
		return enqueued, nil
	}

	if err := s.messages.Save(ctx, message); err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, payload.WorkspaceID, events.KindStatusChanged, map[string]string{
		"message_id": messageID,
		"status":     model.MessageStatusPending,
	})
	return enqueued, nil
}
