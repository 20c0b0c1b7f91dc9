package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xavierca1/leadsync/internal/infra/http/handlers"
	"github.com/xavierca1/leadsync/internal/infra/http/middleware"
)

func newRouter(webhook *handlers.WebhookHandler, health *handlers.HealthHandler, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(handlers.CORS(origins))

	r.Get("/health", health.Handle)
	r.Handle("/metrics", promhttp.Handler())

	// Every method reaches the handler; it answers 405 itself.
	r.With(handlers.WebhookHeaders).HandleFunc(handlers.WebhookPath, webhook.Handle)

	return r
}
