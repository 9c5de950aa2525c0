package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/config"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/events"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/gateway"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/observer"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/server"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/storage"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/internal/usecase"
	"gitlab.com/halodesk/api/halodesk-wa-delivery/pkg/logger"
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	observer.InitMetrics(cfg.Metrics.Enabled)

	logger.Log.Info("Starting Halodesk WA Delivery",
		zap.String("environment", cfg.Environment),
		zap.String("workspace", cfg.Workspace.Default),
	)

	postgresRepo, err := storage.NewPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	// Repository adapters
	outboxRepo := storage.NewOutboxRepoAdapter(postgresRepo)
	sendJobRepo := storage.NewSendJobRepoAdapter(postgresRepo)
	sendLogRepo := storage.NewSendLogRepoAdapter(postgresRepo)
	messageRepo := storage.NewMessageRepoAdapter(postgresRepo)
	contactRepo := storage.NewContactRepoAdapter(postgresRepo)
	conversationRepo := storage.NewConversationRepoAdapter(postgresRepo)
	templateRepo := storage.NewTemplateRepoAdapter(postgresRepo)
	connectionRepo := storage.NewConnectionRepoAdapter(postgresRepo)
	auditRepo := storage.NewAuditRepoAdapter(postgresRepo)

	// Domain event publisher; optional, a missing NATS URL disables it
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		natsPublisher, err := events.NewNatsPublisher(cfg.NATS.URL, cfg.NATS.Stream, cfg.NATS.SubjectPrefix)
		if err != nil {
			logger.Log.Fatal("Failed to initialize NATS publisher", zap.Error(err))
		}
		publisher = natsPublisher
	} else {
		logger.Log.Warn("NATS URL not configured, domain events disabled")
	}

	auditWorker, err := usecase.NewAuditWorker(cfg.WorkerPools.Audit, auditRepo, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to initialize audit worker pool", zap.Error(err))
	}

	gatewayClient := gateway.NewHTTPClient(cfg.Gateway.BaseURL, cfg.Gateway.APIVersion, cfg.Gateway.Timeout)
	resolver := gateway.NewStorageResolver(connectionRepo)
	slaRecomputer := usecase.NewConfigSlaRecomputer(conversationRepo, cfg.Sla.FirstResponseMinutes, cfg.Sla.ResolutionMinutes)

	outboxService := usecase.NewOutboxService(outboxRepo, messageRepo, publisher)
	sendJobService := usecase.NewSendJobService(sendJobRepo, templateRepo, contactRepo, publisher)
	webhookService := usecase.NewWebhookService(
		messageRepo, contactRepo, conversationRepo,
		resolver, gatewayClient, slaRecomputer, auditWorker, publisher,
		cfg.Workspace.Default,
	)
	outboxWorker := usecase.NewOutboxWorker(outboxRepo, messageRepo, resolver, gatewayClient, auditWorker, publisher, cfg.Workers.Outbox)
	bulkSendWorker := usecase.NewBulkSendWorker(sendJobRepo, sendLogRepo, templateRepo, resolver, gatewayClient, auditWorker, publisher, cfg.Workers.BulkSend)

	srv := server.NewServer(cfg, postgresRepo, outboxService, sendJobService, webhookService, outboxWorker, bulkSendWorker)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Log.Info("Starting graceful shutdown")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	auditWorker.Stop()
	publisher.Close()
	if err := postgresRepo.Close(shutdownCtx); err != nil {
		logger.Log.Error("Failed to close Postgres connection", zap.Error(err))
	}
	logger.Log.Info("Shutdown complete")
}
