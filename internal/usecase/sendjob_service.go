package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/apperrors"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/events"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/storage"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/validator"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/utils"
)

const defaultRateLimitPerMinute = 60

// SendJobService creates and cancels bulk campaigns. Parameter resolution
// happens here, at creation time, so every later send attempt is
// deterministic and replayable without touching contact data again.
type SendJobService struct {
	jobs      storage.SendJobRepo
	templates storage.TemplateRepo
	contacts  storage.ContactRepo
	publisher events.Publisher
}

// NewSendJobService creates the campaign service.
func NewSendJobService(jobs storage.SendJobRepo, templates storage.TemplateRepo, contacts storage.ContactRepo, publisher events.Publisher) *SendJobService {
	return &SendJobService{jobs: jobs, templates: templates, contacts: contacts, publisher: publisher}
}

// CreateSendJob explodes a campaign into one item per resolvable recipient and
// persists job plus items in one transaction. Recipients whose contact record
// cannot be found are dropped from the job, not failed.
func (s *SendJobService) CreateSendJob(ctx context.Context, payload model.CreateSendJobPayload) (*model.SendJob, error) {
	if err := validator.Validate(payload); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}
	log := logger.FromContext(ctx)

	template, err := s.templates.FindByID(ctx, payload.WorkspaceID, payload.TemplateID)
	if err != nil {
		return nil, err
	}

	mappings := payload.Mappings
	if len(mappings) == 0 && len(template.Mappings) > 0 {
		if err := utils.UnmarshalJSON(template.Mappings, &mappings); err != nil {
			return nil, fmt.Errorf("%w: template %s has malformed mappings: %w", apperrors.ErrValidation, template.ID, err)
		}
	}

	contacts, err := s.contacts.FindByIDs(ctx, payload.WorkspaceID, payload.ContactIDs)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, fmt.Errorf("%w: no resolvable recipients", apperrors.ErrValidation)
	}
	if len(contacts) < len(payload.ContactIDs) {
		log.Warn("Dropping unknown recipients from send job",
			zap.Int("requested", len(payload.ContactIDs)),
			zap.Int("resolved", len(contacts)))
	}

	rateLimit := payload.RateLimitPerMinute
	if rateLimit <= 0 {
		rateLimit = defaultRateLimitPerMinute
	}

	job := model.SendJob{
		ID:                 uuid.NewString(),
		WorkspaceID:        payload.WorkspaceID,
		TemplateID:         template.ID,
		Name:               payload.Name,
		Status:             model.SendJobStatusPending,
		TotalCount:         len(contacts),
		QueuedCount:        len(contacts),
		GlobalValues:       rawJSON(payload.GlobalValues),
		RateLimitPerMinute: rateLimit,
		CreatedBy:          payload.CreatedBy,
	}

	items := make([]model.SendJobItem, 0, len(contacts))
	for i := range contacts {
		contact := &contacts[i]
		params := ResolveItemParams(template.ParamCount, mappings, contact, payload.GlobalValues)
		items = append(items, model.SendJobItem{
			ID:          uuid.NewString(),
			JobID:       job.ID,
			WorkspaceID: payload.WorkspaceID,
			ContactID:   contact.ID,
			ToPhone:     contact.Phone,
			Params:      rawJSON(params),
			Status:      model.SendJobItemStatusQueued,
		})
	}

	if err := s.jobs.CreateWithItems(ctx, job, items); err != nil {
		return nil, err
	}

	log.Info("Send job created",
		zap.String("job_id", job.ID),
		zap.String("template_id", template.ID),
		zap.Int("total", job.TotalCount))
	return &job, nil
}

// CancelSendJob transitions a pending or processing job to cancelled and
// skips every still-queued item. Terminal jobs return ErrConflict.
func (s *SendJobService) CancelSendJob(ctx context.Context, workspaceID, jobID string) error {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.WorkspaceID != workspaceID {
		return fmt.Errorf("%w: job %s", apperrors.ErrNotFound, jobID)
	}

	if err := s.jobs.Cancel(ctx, jobID); err != nil {
		return err
	}
	s.publisher.Publish(ctx, workspaceID, events.KindJobCancelled, map[string]string{"job_id": jobID})
	logger.FromContext(ctx).Info("Send job cancelled", zap.String("job_id", jobID))
	return nil
}
