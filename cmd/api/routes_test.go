package main

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xavierca1/leadsync/internal/infra/http/handlers"
	"github.com/xavierca1/leadsync/internal/usecase"
)

func TestRouterServesWebhookAndHealth(t *testing.T) {
	uc := usecase.NewIngestLeadUseCase(nil, nil, slog.Default())
	r := newRouter(handlers.NewWebhookHandler(uc, slog.Default()), handlers.NewHealthHandler(nil, nil, "test"), nil)

	tests := []struct {
		method string
		path   string
		want   int
		cors   bool
	}{
		{http.MethodGet, "/health", http.StatusOK, true},
		{http.MethodGet, "/metrics", http.StatusOK, true},
		{http.MethodGet, handlers.WebhookPath, http.StatusOK, true},
		{http.MethodOptions, handlers.WebhookPath, http.StatusOK, true},
		{http.MethodPatch, handlers.WebhookPath, http.StatusMethodNotAllowed, true},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("Origin", "https://agents.example")
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.cors {
				assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestRouterWebhookHeadersWithoutOrigin(t *testing.T) {
	uc := usecase.NewIngestLeadUseCase(nil, nil, slog.Default())
	r := newRouter(handlers.NewWebhookHandler(uc, slog.Default()), handlers.NewHealthHandler(nil, nil, "test"), []string{"https://app.example"})

	req := httptest.NewRequest(http.MethodPost, handlers.WebhookPath, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization, X-Client-Info, Apikey", rec.Header().Get("Access-Control-Allow-Headers"))
}
