package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/usecase"
)

type webhookFixture struct {
	leads  *memLeads
	logs   *memLogs
	router http.Handler
}

func newWebhookFixture(leads ...entity.Lead) *webhookFixture {
	f := &webhookFixture{leads: newMemLeads(leads...), logs: &memLogs{}}
	uc := usecase.NewIngestLeadUseCase(f.leads, f.logs, slog.Default())

	r := chi.NewRouter()
	r.Use(CORS(nil))
	r.With(WebhookHeaders).HandleFunc(WebhookPath, NewWebhookHandler(uc, slog.Default()).Handle)
	f.router = r
	return f
}

func (f *webhookFixture) do(method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, WebhookPath, strings.NewReader(body))
	req.Header.Set("Origin", "https://agents.example")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func existingLead() entity.Lead {
	return entity.Lead{
		ID:        "lead-1",
		UserID:    "user-1",
		Name:      "Ada",
		Status:    entity.StatusCold,
		LeadType:  entity.LeadTypeOutbound,
		Metadata:  map[string]any{"a": 1.0},
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestWebhookPreflight(t *testing.T) {
	f := newWebhookFixture()

	req := httptest.NewRequest(http.MethodOptions, WebhookPath, nil)
	req.Header.Set("Origin", "https://agents.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebhookDescribe(t *testing.T) {
	rec := newWebhookFixture().do(http.MethodGet, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1.0.0", body["version"])
	assert.Contains(t, body, "payload_example")
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	rec := newWebhookFixture().do(http.MethodPatch, "{}")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", decodeError(t, rec).Error)
	assertWebhookHeaders(t, rec)
}

func assertWebhookHeaders(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization, X-Client-Info, Apikey", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestWebhookHeadersWithoutOrigin(t *testing.T) {
	f := newWebhookFixture(existingLead())

	for _, tc := range []struct {
		method string
		body   string
		want   int
	}{
		{http.MethodGet, "", http.StatusOK},
		{http.MethodPost, `{"lead_id":"lead-1","status":"bogus"}`, http.StatusBadRequest},
		{http.MethodPost, `{"lead_id":"missing","status":"hot"}`, http.StatusNotFound},
		{http.MethodPatch, "{}", http.StatusMethodNotAllowed},
	} {
		req := httptest.NewRequest(tc.method, WebhookPath, strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, tc.want, rec.Code, tc.method+" "+tc.body)
		assertWebhookHeaders(t, rec)
	}
}

func TestWebhookRejectsBogusStatus(t *testing.T) {
	f := newWebhookFixture(existingLead())

	rec := f.do(http.MethodPost, `{"lead_id":"lead-1","status":"bogus"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid status. Must be: hot, warm, cold, or uninterested", decodeError(t, rec).Error)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, existingLead(), f.leads.get("lead-1"))
	assert.Zero(t, f.logs.count())
}

func TestWebhookMergesMetadata(t *testing.T) {
	f := newWebhookFixture(existingLead())

	rec := f.do(http.MethodPost, `{"lead_id":"lead-1","status":"hot","action_type":"qualifying","metadata":{"b":2}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "Lead status updated to hot", body.Message)

	stored := f.leads.get("lead-1")
	assert.Equal(t, map[string]any{"a": 1.0, "b": 2.0}, stored.Metadata)
	assert.Equal(t, entity.StatusHot, stored.Status)
	assert.Equal(t, 1, f.logs.count())

	var raw struct {
		Lead map[string]any `json:"lead"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	callResult, ok := raw.Lead["call_result"]
	assert.True(t, ok, "call_result is present")
	assert.Nil(t, callResult)
	assert.Contains(t, raw.Lead, "email")
	assert.Nil(t, raw.Lead["email"])
}

func TestWebhookUnknownLead(t *testing.T) {
	rec := newWebhookFixture().do(http.MethodPost, `{"lead_id":"nope","status":"warm"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Lead not found", decodeError(t, rec).Error)
}

func TestWebhookMalformedJSON(t *testing.T) {
	rec := newWebhookFixture().do(http.MethodPost, `{"lead_id":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON", decodeError(t, rec).Error)
}

func TestWebhookCreateRequiresUser(t *testing.T) {
	rec := newWebhookFixture().do(http.MethodPost, `{"name":"Ada","phone":"5551234567"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "user_id is required for creating new leads", decodeError(t, rec).Error)
}

func TestWebhookCreatesLead(t *testing.T) {
	f := newWebhookFixture()

	rec := f.do(http.MethodPost, `{"name":"Ada","phone":"5551234567","user_id":"user-1","email":"ada@example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Lead created successfully", body.Message)
	assert.Equal(t, "+15551234567", body.Lead.Phone)
	assert.Equal(t, entity.ChannelInboundCall, body.Lead.SourceChannel)
	assert.Equal(t, entity.LeadTypeInbound, f.leads.get(body.Lead.ID).LeadType)
}

func TestWebhookStoreFailure(t *testing.T) {
	f := newWebhookFixture(existingLead())
	f.leads.err = errors.New("connection reset")

	rec := f.do(http.MethodPost, `{"lead_id":"lead-1","status":"warm"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "Failed to update lead", body.Error)
	assert.Equal(t, "connection reset", body.Details)
}
