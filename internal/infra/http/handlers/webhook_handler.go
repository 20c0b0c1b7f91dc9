package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/metrics"
	"github.com/xavierca1/leadsync/internal/usecase"
)

const WebhookPath = "/qualification-webhook"

// WebhookHandler receives qualification results from external workflows.
// It keeps no state between requests.
type WebhookHandler struct {
	IngestUC *usecase.IngestLeadUseCase
	Logger   *slog.Logger
}

func NewWebhookHandler(ingestUC *usecase.IngestLeadUseCase, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{IngestUC: ingestUC, Logger: logger.With("component", "webhook")}
}

type WebhookResponse struct {
	Success bool         `json:"success"`
	Lead    *entity.Lead `json:"lead"`
	Message string       `json:"message"`
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		Preflight(w, r)
	case http.MethodGet:
		h.describe(w)
	case http.MethodPost:
		h.ingest(w, r)
	default:
		metrics.RecordWebhook(WebhookPath, "method_not_allowed")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	}
}

func (h *WebhookHandler) describe(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Qualification Webhook Endpoint",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"POST": "Update lead status based on qualification results",
		},
		"payload_example": map[string]any{
			"lead_id":     "uuid-string",
			"status":      "hot | warm | cold | uninterested",
			"action_type": "calling | qualifying",
			"transcript":  "optional transcript text",
			"metadata":    map[string]string{"key": "optional metadata"},
		},
	})
}

func (h *WebhookHandler) ingest(w http.ResponseWriter, r *http.Request) {
	var payload usecase.QualificationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		metrics.RecordWebhook(WebhookPath, "invalid")
		writeError(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	res, err := h.IngestUC.Execute(r.Context(), payload)
	if err != nil {
		h.fail(w, payload, err)
		return
	}

	outcome := "updated"
	if res.Created {
		outcome = "created"
	}
	metrics.RecordWebhook(WebhookPath, outcome)
	h.Logger.Info("qualification result applied", "lead_id", res.Lead.ID, "outcome", outcome)

	writeJSON(w, http.StatusOK, WebhookResponse{Success: true, Lead: res.Lead, Message: res.Message})
}

func (h *WebhookHandler) fail(w http.ResponseWriter, payload usecase.QualificationPayload, err error) {
	var (
		ve *usecase.ValidationError
		pe *usecase.PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		metrics.RecordWebhook(WebhookPath, "invalid")
		writeError(w, http.StatusBadRequest, ve.Message, "")
	case usecase.IsNotFound(err):
		metrics.RecordWebhook(WebhookPath, "not_found")
		writeError(w, http.StatusNotFound, "Lead not found", "")
	case errors.As(err, &pe):
		metrics.RecordWebhook(WebhookPath, "failed")
		h.Logger.Error("webhook write failed", "lead_id", payload.LeadID, "error", err)
		msg := "Failed to update lead"
		if payload.IsCreate() {
			msg = "Failed to create lead"
		}
		writeError(w, http.StatusInternalServerError, msg, pe.Err.Error())
	default:
		metrics.RecordWebhook(WebhookPath, "failed")
		h.Logger.Error("webhook error", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error", err.Error())
	}
}
