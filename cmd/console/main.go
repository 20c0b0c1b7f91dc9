package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rabbitmq/amqp091-go"

	"github.com/xavierca1/leadsync/internal/config"
	"github.com/xavierca1/leadsync/internal/dashboard"
	"github.com/xavierca1/leadsync/internal/infra/database"
	"github.com/xavierca1/leadsync/internal/infra/http/handlers"
	"github.com/xavierca1/leadsync/internal/infra/http/middleware"
	"github.com/xavierca1/leadsync/internal/infra/mail"
	"github.com/xavierca1/leadsync/internal/infra/queue"
	"github.com/xavierca1/leadsync/internal/infra/worker"
	"github.com/xavierca1/leadsync/internal/logger"
	"github.com/xavierca1/leadsync/internal/usecase"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load("8090")
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

	var orchOpts []usecase.OrchestratorOption

	var amqpConn *amqp091.Connection
	if cfg.QueueEnabled() {
		rabbitMQ, err := queue.NewRabbitMQ(cfg.AMQPURL)
		if err != nil {
			log.Error("connecting to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		amqpConn = rabbitMQ.Conn
		orchOpts = append(orchOpts, usecase.WithSignals(queue.NewSignalProducer(rabbitMQ.Ch, log)))
	}

	if cfg.AlertsEnabled() {
		alerts := mail.NewAlertSender(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPass, cfg.AlertEmail, log)
		orchOpts = append(orchOpts, usecase.WithAlerter(alerts))
	}

	session := dashboard.NewSession(
		database.NewChangeSource(db, cfg.DatabaseURL, log),
		dashboard.Repositories{
			Leads:    database.NewLeadRepository(db),
			Triggers: database.NewTriggerRepository(db),
			Logs:     database.NewAutomationLogRepository(db),
		},
		dashboard.WithSessionLogger(log),
		dashboard.WithOrchestratorOptions(orchOpts...),
	)

	if cfg.DashboardUserID != "" {
		if err := session.SetUser(ctx, cfg.DashboardUserID); err != nil {
			log.Error("signing in dashboard user", "user_id", cfg.DashboardUserID, "error", err)
			os.Exit(1)
		}
	}

	resync, err := worker.NewResyncWorker(session, cfg.ResyncSchedule, log)
	if err != nil {
		log.Error("configuring resync", "error", err)
		os.Exit(1)
	}
	resync.Start()

	dashboardHandler := handlers.NewDashboardHandler(session, log)
	healthHandler := handlers.NewHealthHandler(db, amqpConn, version)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(handlers.CORS(cfg.CORSAllowedOrigins))
	r.Get("/health", healthHandler.Handle)
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/api", dashboardHandler.Routes())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("console listening", "addr", srv.Addr, "user_id", cfg.DashboardUserID)
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
	<-resync.Stop().Done()
	dashboardHandler.Close()

	// Flags raised in the last few seconds still get cleared.
	if err := session.Orchestrator.Shutdown(shutdownCtx); err != nil {
		log.Error("waiting for pending disarms", "error", err)
	}
	session.Close()
}
