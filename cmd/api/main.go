package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/xavierca1/leadsync/internal/config"
	"github.com/xavierca1/leadsync/internal/infra/database"
	"github.com/xavierca1/leadsync/internal/infra/http/handlers"
	"github.com/xavierca1/leadsync/internal/infra/queue"
	"github.com/xavierca1/leadsync/internal/logger"
	"github.com/xavierca1/leadsync/internal/usecase"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load("8080")
	if err != nil {
		logger.New("info").Error("loading config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDBConnection(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Error("connecting to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Error("migrating schema", "error", err)
		os.Exit(1)
	}

	leadRepo := database.NewLeadRepository(db)
	logRepo := database.NewAutomationLogRepository(db)
	ingestUC := usecase.NewIngestLeadUseCase(leadRepo, logRepo, log)

	var amqpConn *amqp091.Connection
	if cfg.QueueEnabled() {
		rabbitMQ, err := queue.NewRabbitMQ(cfg.AMQPURL)
		if err != nil {
			log.Error("connecting to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		amqpConn = rabbitMQ.Conn

		worker := queue.NewResultWorker(rabbitMQ.Ch, ingestUC, log)
		go func() {
			if err := worker.Start(ctx); err != nil {
				log.Error("result worker stopped", "error", err)
			}
		}()
	}

	webhookHandler := handlers.NewWebhookHandler(ingestUC, log)
	healthHandler := handlers.NewHealthHandler(db, amqpConn, version)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(webhookHandler, healthHandler, cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("webhook server listening", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}
}
