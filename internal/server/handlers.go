package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/apperrors"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/model"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/tenant"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/utils"
)

// verifyWebhook answers the gateway's subscription handshake. Non-subscribe
// GETs are liveness probes and get an empty 200.
func (s *Server) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("hub.mode") != "subscribe" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if query.Get("hub.verify_token") != s.cfg.Gateway.VerifyToken || s.cfg.Gateway.VerifyToken == "" {
		logger.FromContext(r.Context()).Warn("Webhook verification with wrong token")
		w.WriteHeader(http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(query.Get("hub.challenge")))
}

// receiveWebhook ingests one gateway delivery. The response is 200 no matter
// what happened internally; a non-2xx would only trigger the gateway's retry
// storm for events already durably recorded or intentionally discarded.
func (s *Server) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var payload model.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.FromContext(ctx).Warn("Malformed webhook body", zap.Error(err))
		utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	s.webhookService.Process(ctx, payload)
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "processed"})
}

func (s *Server) triggerOutboxWorker(w http.ResponseWriter, r *http.Request) {
	summary, err := s.outboxWorker.RunBatch(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("Outbox batch failed", zap.Error(err))
		utils.WriteJSONResponse(w, http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, summary)
}

func (s *Server) triggerBulkSendWorker(w http.ResponseWriter, r *http.Request) {
	summary, err := s.bulkSendWorker.RunBatch(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("Bulk send batch failed", zap.Error(err))
		utils.WriteJSONResponse(w, http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, summary)
}

// enqueueMessage accepts a single reply and queues it for delivery.
func (s *Server) enqueueMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var payload model.EnqueueReplyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.WriteJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}
	ctx = tenant.WithWorkspaceID(ctx, payload.WorkspaceID)

	enqueued, err := s.outboxService.EnqueueReply(ctx, payload)
	if err != nil {
		writeServiceError(w, ctx, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusAccepted, enqueued)
}

// createSendJob accepts a bulk campaign request.
func (s *Server) createSendJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var payload model.CreateSendJobPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.WriteJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}
	ctx = tenant.WithWorkspaceID(ctx, payload.WorkspaceID)

	job, err := s.sendJobService.CreateSendJob(ctx, payload)
	if err != nil {
		writeServiceError(w, ctx, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, job)
}

// cancelSendJob cancels a pending or processing campaign.
func (s *Server) cancelSendJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "id")
	workspaceID := r.URL.Query().Get("workspace_id")
	if workspaceID == "" {
		utils.WriteJSONError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}

	if err := s.sendJobService.CancelSendJob(ctx, workspaceID, jobID); err != nil {
		writeServiceError(w, ctx, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]bool{"ok": true})
}

// writeServiceError maps the error taxonomy onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, ctx context.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrBadRequest):
		utils.WriteJSONError(w, http.StatusBadRequest, err.Error())
	case apperrors.IsNotFoundError(err):
		utils.WriteJSONError(w, http.StatusNotFound, err.Error())
	case apperrors.IsConflictError(err):
		utils.WriteJSONError(w, http.StatusConflict, err.Error())
	default:
		logger.FromContext(ctx).Error("Request failed", zap.Error(err))
		utils.WriteJSONError(w, http.StatusInternalServerError, "internal error")
	}
}
