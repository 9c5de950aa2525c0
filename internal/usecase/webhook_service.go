package usecase

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/apperrors"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/events"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/gateway"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/observer"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/storage"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/utils"
)

// mediaSentinelPrefix marks a media message whose playable URL could not be
// resolved; the raw media id is kept so the URL can be fetched later.
const mediaSentinelPrefix = "media://"

// WebhookService processes gateway callbacks: delivery receipts and inbound
// customer messages. Processing is idempotent against the gateway's
// at-least-once redelivery; one malformed event never drops the rest of the
// same delivery.
type WebhookService struct {
	messages      storage.MessageRepo
	contacts      storage.ContactRepo
	conversations storage.ConversationRepo
	resolver      gateway.ConnectionResolver
	client        gateway.Client
	sla           SlaRecomputer
	audit         AuditSink
	publisher     events.Publisher
	// workspaceID is the target workspace for inbound messages. Empty means
	// inbound entries are ignored (status receipts are still processed).
	workspaceID string
}

// NewWebhookService wires the webhook processor.
func NewWebhookService(
	messages storage.MessageRepo,
	contacts storage.ContactRepo,
	conversations storage.ConversationRepo,
	resolver gateway.ConnectionResolver,
	client gateway.Client,
	sla SlaRecomputer,
	audit AuditSink,
	publisher events.Publisher,
	workspaceID string,
) *WebhookService {
	return &WebhookService{
		messages:      messages,
		contacts:      contacts,
		conversations: conversations,
		resolver:      resolver,
		client:        client,
		sla:           sla,
		audit:         audit,
		publisher:     publisher,
		workspaceID:   workspaceID,
	}
}

// Process walks every entry in one webhook delivery. It never returns an
// error: everything recoverable is handled per event, and the HTTP layer must
// answer 200 regardless so the gateway does not start a retry storm.
func (s *WebhookService) Process(ctx context.Context, payload model.WebhookPayload) {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, status := range change.Value.Statuses {
				s.processStatus(ctx, status)
			}
			for _, message := range change.Value.Messages {
				s.processInbound(ctx, message, change.Value.Contacts)
			}
		}
	}
}

// processStatus applies one delivery receipt. Re-delivering the same receipt
// rewrites the same value, so this path is idempotent by construction.
func (s *WebhookService) processStatus(ctx context.Context, status model.WebhookStatus) {
	log := logger.FromContext(ctx).With(zap.String("wa_message_id", status.ID))
	defer utils.RecoverWithLog(ctx, "webhook status "+status.ID)

	normalized := model.NormalizeGatewayStatus(status.Status)
	if normalized == "" {
		log.Debug("Ignoring unrecognized gateway status", zap.String("status", status.Status))
		return
	}
	observer.IncWebhookEvent("status")

	message, err := s.messages.FindByWaMessageID(ctx, status.ID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			// receipt for a message this instance never sent; not an error
			log.Debug("Status receipt for unknown message, skipping")
			return
		}
		log.Error("Failed to look up message for status receipt", zap.Error(err))
		return
	}

	errorReason := ""
	if normalized == model.MessageStatusFailed && len(status.Errors) > 0 {
		errorReason = status.Errors[0].Title
		if errorReason == "" {
			errorReason = status.Errors[0].Message
		}
	}

	if err := s.messages.UpdateStatus(ctx, status.ID, normalized, errorReason); err != nil {
		log.Error("Failed to update message status", zap.Error(err))
		return
	}

	s.audit.SubmitEvent(model.AuditEvent{
		ID:          uuid.NewString(),
		WorkspaceID: message.WorkspaceID,
		Kind:        model.AuditKindStatusUpdate,
		WaMessageID: status.ID,
		Payload:     rawJSON(status),
	})
	s.publisher.Publish(ctx, message.WorkspaceID, events.KindStatusChanged, map[string]string{
		"message_id":    message.ID,
		"wa_message_id": status.ID,
		"status":        normalized,
	})
}

// processInbound ingests one customer message exactly once.
func (s *WebhookService) processInbound(ctx context.Context, inbound model.WebhookMessage, profiles []model.WebhookContact) {
	if s.workspaceID == "" {
		return
	}
	log := logger.FromContext(ctx).With(
		zap.String("wa_message_id", inbound.ID),
		zap.String("workspace_id", s.workspaceID))
	defer utils.RecoverWithLog(ctx, "webhook message "+inbound.ID)

	if inbound.ID == "" || inbound.From == "" {
		log.Warn("Inbound message missing id or sender, skipping")
		return
	}

	exists, err := s.messages.ExistsByWaMessageID(ctx, inbound.ID)
	if err != nil {
		log.Error("Dedup check failed", zap.Error(err))
		return
	}
	if exists {
		log.Debug("Duplicate inbound delivery, skipping")
		return
	}
	observer.IncWebhookEvent("inbound_message")

	messageAt := utils.Now()
	if inbound.Timestamp != "" {
		if epoch, err := strconv.ParseInt(inbound.Timestamp, 10, 64); err == nil {
			messageAt = utils.UnixToTime(epoch)
		}
	}

	body, mediaID, mimeType, checksum := extractContent(inbound)
	mediaURL := ""
	if mediaID != "" {
		mediaURL = s.resolveMediaURL(ctx, mediaID)
	}

	contact, err := s.upsertContact(ctx, inbound.From, profiles, messageAt)
	if err != nil {
		log.Error("Contact upsert failed", zap.Error(err))
		return
	}
	conversation, err := s.upsertConversation(ctx, contact.ID)
	if err != nil {
		log.Error("Conversation upsert failed", zap.Error(err))
		return
	}

	waMessageID := inbound.ID
	message := model.Message{
		ID:               uuid.NewString(),
		WorkspaceID:      s.workspaceID,
		ConversationID:   conversation.ID,
		ContactID:        contact.ID,
		WaMessageID:      &waMessageID,
		Direction:        model.MessageDirectionIn,
		MessageType:      inbound.Type,
		Body:             body,
		MediaURL:         mediaURL,
		MediaID:          mediaID,
		MediaMimeType:    mimeType,
		MediaChecksum:    checksum,
		Status:           model.MessageStatusDelivered,
		MessageTimestamp: messageAt,
		Raw:              rawJSON(inbound),
	}
	if err := s.messages.Save(ctx, message); err != nil {
		if apperrors.IsDuplicateError(err) {
			// lost the race against a concurrent delivery of the same id
			log.Debug("Concurrent duplicate inbound delivery, skipping")
			return
		}
		log.Error("Failed to save inbound message", zap.Error(err))
		return
	}

	if err := s.conversations.RecordInbound(ctx, conversation.ID, messageAt); err != nil {
		log.Error("Failed to update conversation counters", zap.Error(err))
	}
	if err := s.contacts.TouchLastSeen(ctx, contact.ID, messageAt); err != nil {
		log.Error("Failed to touch contact last seen", zap.Error(err))
	}

	s.audit.SubmitEvent(model.AuditEvent{
		ID:          uuid.NewString(),
		WorkspaceID: s.workspaceID,
		Kind:        model.AuditKindInboundMessage,
		WaMessageID: inbound.ID,
		Payload:     rawJSON(inbound),
	})

	// a new customer message always reopens SLA tracking, even on a
	// previously resolved conversation
	if err := s.sla.RecomputeSla(ctx, s.workspaceID, conversation.ID, SlaOverrides{
		TicketStatus:          model.TicketStatusOpen,
		LastCustomerMessageAt: &messageAt,
	}); err != nil {
		log.Error("SLA recomputation failed", zap.Error(err))
	}

	s.publisher.Publish(ctx, s.workspaceID, events.KindMessageInbound, map[string]string{
		"message_id":      message.ID,
		"wa_message_id":   inbound.ID,
		"conversation_id": conversation.ID,
		"contact_id":      contact.ID,
	})
}

// resolveMediaURL looks up the playable URL, degrading to a sentinel rather
// than blocking message ingestion.
func (s *WebhookService) resolveMediaURL(ctx context.Context, mediaID string) string {
	log := logger.FromContext(ctx)
	_, accessToken, err := s.resolver.Resolve(ctx, s.workspaceID)
	if err != nil {
		log.Warn("Cannot resolve token for media lookup", zap.Error(err))
		return mediaSentinelPrefix + mediaID
	}
	url, err := s.client.FetchMediaURL(ctx, accessToken, mediaID)
	if err != nil {
		log.Warn("Media URL lookup failed",
			zap.String("media_id", mediaID), zap.Error(err))
		return mediaSentinelPrefix + mediaID
	}
	return url
}

func (s *WebhookService) upsertContact(ctx context.Context, phone string, profiles []model.WebhookContact, seenAt time.Time) (*model.Contact, error) {
	existing, err := s.contacts.FindByPhone(ctx, s.workspaceID, phone)
	if err == nil {
		return existing, nil
	}
	if !apperrors.IsNotFoundError(err) {
		return nil, err
	}

	name := phone
	waID := ""
	for _, profile := range profiles {
		if profile.WaID == phone {
			waID = profile.WaID
			if profile.Profile.Name != "" {
				name = profile.Profile.Name
			}
			break
		}
	}

	contact := model.Contact{
		ID:          uuid.NewString(),
		WorkspaceID: s.workspaceID,
		Phone:       phone,
		Name:        name,
		WaID:        waID,
		LastSeenAt:  &seenAt,
	}
	if err := s.contacts.Save(ctx, contact); err != nil {
		return nil, err
	}
	// re-read to survive a concurrent insert collapsing on (workspace, phone)
	return s.contacts.FindByPhone(ctx, s.workspaceID, phone)
}

func (s *WebhookService) upsertConversation(ctx context.Context, contactID string) (*model.Conversation, error) {
	existing, err := s.conversations.FindByContact(ctx, s.workspaceID, contactID)
	if err == nil {
		return existing, nil
	}
	if !apperrors.IsNotFoundError(err) {
		return nil, err
	}

	conversation := model.Conversation{
		ID:           uuid.NewString(),
		WorkspaceID:  s.workspaceID,
		ContactID:    contactID,
		TicketStatus: model.TicketStatusOpen,
		Priority:     model.PriorityLow,
		UnreadCount:  0,
	}
	if err := s.conversations.Save(ctx, conversation); err != nil {
		return nil, err
	}
	return s.conversations.FindByContact(ctx, s.workspaceID, contactID)
}

// extractContent derives body text and media identity from the message by
// type. Absent or unexpected fields degrade to placeholder labels.
func extractContent(inbound model.WebhookMessage) (body, mediaID, mimeType, checksum string) {
	switch inbound.Type {
	case "text":
		if inbound.Text != nil {
			return inbound.Text.Body, "", "", ""
		}
		return "", "", "", ""
	case "image":
		mediaID, mimeType, checksum = mediaRef(inbound.Image)
		return mediaCaption(inbound.Image, "[image]"), mediaID, mimeType, checksum
	case "document":
		mediaID, mimeType, checksum = mediaRef(inbound.Document)
		return mediaCaption(inbound.Document, "[document]"), mediaID, mimeType, checksum
	case "video":
		mediaID, mimeType, checksum = mediaRef(inbound.Video)
		return mediaCaption(inbound.Video, "[video]"), mediaID, mimeType, checksum
	case "audio":
		mediaID, mimeType, checksum = mediaRef(inbound.Audio)
		return "[audio]", mediaID, mimeType, checksum
	default:
		if inbound.Type == "" {
			return "[unsupported]", "", "", ""
		}
		return "[" + inbound.Type + "]", "", "", ""
	}
}

func mediaCaption(media *model.WebhookMedia, fallback string) string {
	if media != nil && media.Caption != "" {
		return media.Caption
	}
	return fallback
}

func mediaRef(media *model.WebhookMedia) (mediaID, mimeType, checksum string) {
	if media == nil {
		return "", "", ""
	}
	return media.ID, media.MimeType, media.Sha256
}
