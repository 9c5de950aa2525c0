package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/config"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/storage"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/usecase"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/utils"
)

// Server hosts the webhook entry point, the worker trigger endpoints and the
// small send API.
type Server struct {
	cfg            *config.Config
	repo           *storage.PostgresRepo
	outboxService  *usecase.OutboxService
	sendJobService *usecase.SendJobService
	webhookService *usecase.WebhookService
	outboxWorker   *usecase.OutboxWorker
	bulkSendWorker *usecase.BulkSendWorker
	httpServer     *http.Server
}

// NewServer wires the HTTP surface.
func NewServer(
	cfg *config.Config,
	repo *storage.PostgresRepo,
	outboxService *usecase.OutboxService,
	sendJobService *usecase.SendJobService,
	webhookService *usecase.WebhookService,
	outboxWorker *usecase.OutboxWorker,
	bulkSendWorker *usecase.BulkSendWorker,
) *Server {
	s := &Server{
		cfg:            cfg,
		repo:           repo,
		outboxService:  outboxService,
		sendJobService: sendJobService,
		webhookService: webhookService,
		outboxWorker:   outboxWorker,
		bulkSendWorker: bulkSendWorker,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer)
	r.Use(s.requestContext)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/webhook", s.verifyWebhook)
	r.Post("/webhook", s.receiveWebhook)

	r.Route("/internal/workers", func(r chi.Router) {
		r.Use(s.requireWorkerSecret)
		r.Post("/outbox", s.triggerOutboxWorker)
		r.Post("/bulk-send", s.triggerBulkSendWorker)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/messages", s.enqueueMessage)
		r.Post("/send-jobs", s.createSendJob)
		r.Post("/send-jobs/{id}/cancel", s.cancelSendJob)
	})

	return r
}

// Start begins serving and blocks until the listener stops.
func (s *Server) Start() error {
	logger.Log.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := s.repo.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		utils.WriteJSONResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}
