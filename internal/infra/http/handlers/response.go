package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/cors"

	"github.com/xavierca1/leadsync/internal/usecase"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

var (
	corsMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsHeaders = []string{"Content-Type", "Authorization", "X-Client-Info", "Apikey"}
)

// CORS is the permissive cross-origin policy shared by both servers.
// Preflights reach the handlers so they can answer 200 with no body.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:     origins,
		AllowedMethods:     corsMethods,
		AllowedHeaders:     corsHeaders,
		OptionsPassthrough: true,
		MaxAge:             300,
	})
}

// WebhookHeaders stamps the open cross-origin headers on every webhook
// response, errors and requests without an Origin included. It runs inside
// CORS and overrides what CORS set.
func WebhookHeaders(next http.Handler) http.Handler {
	methods := strings.Join(corsMethods, ", ")
	headers := strings.Join(corsHeaders, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", headers)
		next.ServeHTTP(w, r)
	})
}

// Preflight answers OPTIONS with an empty 200.
func Preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// writeUsecaseError maps the error taxonomy onto status codes. failed is
// the message used for persistence failures.
func writeUsecaseError(w http.ResponseWriter, err error, failed string) {
	var ve *usecase.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error(), "")
	case usecase.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", "")
	case errors.Is(err, usecase.ErrArmInFlight), errors.Is(err, usecase.ErrAlreadyArmed):
		writeError(w, http.StatusConflict, err.Error(), "")
	case usecase.IsPersistenceError(err):
		writeError(w, http.StatusInternalServerError, failed, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error", err.Error())
	}
}
