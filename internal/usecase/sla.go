package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/storage"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
)

// SlaOverrides carries conversation facts that force a recomputation outcome.
type SlaOverrides struct {
	// TicketStatus forces the ticket into a status before computing due
	// times. Empty means keep the current status.
	TicketStatus string
	// LastCustomerMessageAt anchors the due-by computation. Nil means no
	// new customer activity.
	LastCustomerMessageAt *time.Time
}

// SlaRecomputer derives response and resolution due-by timestamps from
// conversation facts.
type SlaRecomputer interface {
	RecomputeSla(ctx context.Context, workspaceID, conversationID string, overrides SlaOverrides) error
}

// ConfigSlaRecomputer computes due times from fixed per-deployment windows.
type ConfigSlaRecomputer struct {
	conversations       storage.ConversationRepo
	firstResponseWindow time.Duration
	resolutionWindow    time.Duration
}

// NewConfigSlaRecomputer builds the default recomputer. Windows are minutes
// from the last customer message.
func NewConfigSlaRecomputer(conversations storage.ConversationRepo, firstResponseMinutes, resolutionMinutes int) *ConfigSlaRecomputer {
	return &ConfigSlaRecomputer{
		conversations:       conversations,
		firstResponseWindow: time.Duration(firstResponseMinutes) * time.Minute,
		resolutionWindow:    time.Duration(resolutionMinutes) * time.Minute,
	}
}

// RecomputeSla rewrites the conversation's due-by timestamps. A new customer
// message always restarts both clocks from its timestamp; without one the due
// times are cleared for resolved tickets and left alone otherwise.
func (s *ConfigSlaRecomputer) RecomputeSla(ctx context.Context, workspaceID, conversationID string, overrides SlaOverrides) error {
	ticketStatus := overrides.TicketStatus

	var firstResponseDue, resolutionDue *time.Time
	if overrides.LastCustomerMessageAt != nil {
		fr := overrides.LastCustomerMessageAt.Add(s.firstResponseWindow)
		res := overrides.LastCustomerMessageAt.Add(s.resolutionWindow)
		firstResponseDue = &fr
		resolutionDue = &res
	} else if ticketStatus == model.TicketStatusResolved {
		// resolved without new activity clears the clocks
		firstResponseDue = nil
		resolutionDue = nil
	} else {
		conv, err := s.conversations.FindByID(ctx, conversationID)
		if err != nil {
			return err
		}
		firstResponseDue = conv.FirstResponseDueAt
		resolutionDue = conv.ResolutionDueAt
	}

	if err := s.conversations.UpdateSla(ctx, conversationID, ticketStatus, firstResponseDue, resolutionDue); err != nil {
		logger.FromContext(ctx).Error("Failed to recompute SLA",
			zap.String("conversation_id", conversationID),
			zap.String("workspace_id", workspaceID),
			zap.Error(err))
		return err
	}
	return nil
}
