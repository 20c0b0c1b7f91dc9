package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xavierca1/leadsync/internal/dashboard"
	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/usecase"
)

type mountable interface {
	Mount(ctx context.Context) error
	Unmount()
}

// DashboardHandler exposes one operator session over JSON. A view is
// mounted by its first read and stays mounted until DELETE /views/{name}.
type DashboardHandler struct {
	Session *dashboard.Session
	Logger  *slog.Logger

	leads      *dashboard.LeadsView
	inbound    *dashboard.InboundView
	stats      *dashboard.DashboardView
	analytics  *dashboard.AnalyticsView
	automation *dashboard.AutomationView
}

func NewDashboardHandler(s *dashboard.Session, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{
		Session:    s,
		Logger:     logger.With("component", "dashboard_api"),
		leads:      s.LeadsView(),
		inbound:    s.InboundView(),
		stats:      s.DashboardView(),
		analytics:  s.AnalyticsView(),
		automation: s.AutomationView(),
	}
}

func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/session", h.GetSession)
	r.Put("/session", h.PutSession)

	r.Get("/leads", h.ListLeads)
	r.Post("/leads", h.CreateLead)
	r.Put("/leads/{id}", h.UpdateLead)
	r.Delete("/leads/{id}", h.DeleteLead)

	r.Get("/inbound", h.Inbound)
	r.Get("/stats", h.Stats)
	r.Get("/analytics", h.Analytics)

	r.Get("/automation", h.Automation)
	r.Post("/automation/{flag}/arm", h.Arm)
	r.Delete("/automation/logs", h.DeleteAllLogs)
	r.Delete("/automation/logs/{id}", h.DeleteLog)

	r.Delete("/views/{name}", h.Unmount)

	r.Get("/notifications", h.Notifications)
	r.Delete("/notifications/{id}", h.DismissNotification)

	return r
}

// Close unmounts every view.
func (h *DashboardHandler) Close() {
	for _, v := range h.views() {
		v.Unmount()
	}
}

func (h *DashboardHandler) views() map[string]mountable {
	return map[string]mountable{
		"leads":      h.leads,
		"inbound":    h.inbound,
		"stats":      h.stats,
		"analytics":  h.analytics,
		"automation": h.automation,
	}
}

func (h *DashboardHandler) mount(w http.ResponseWriter, r *http.Request, v mountable) bool {
	err := v.Mount(r.Context())
	switch {
	case err == nil:
		return true
	case errors.Is(err, dashboard.ErrNoUser):
		writeError(w, http.StatusUnauthorized, "No signed-in user", "")
	default:
		h.Logger.Error("mounting view", "error", err)
		writeUsecaseError(w, err, "Failed to load data")
	}
	return false
}

type sessionBody struct {
	UserID  string   `json:"user_id"`
	Mounted []string `json:"mounted"`
}

func (h *DashboardHandler) GetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sessionBody{UserID: h.Session.UserID(), Mounted: h.Session.Mounted()})
}

func (h *DashboardHandler) PutSession(w http.ResponseWriter, r *http.Request) {
	var body sessionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.Session.SetUser(r.Context(), body.UserID); err != nil {
		h.Logger.Error("switching user", "user_id", body.UserID, "error", err)
		writeUsecaseError(w, err, "Failed to reload data")
		return
	}
	h.GetSession(w, r)
}

func (h *DashboardHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	if !h.mount(w, r, h.leads) {
		return
	}
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, h.leads.Page(dashboard.LeadFilter{
		Status:    q.Get("status"),
		LeadType:  q.Get("lead_type"),
		Qualified: q.Get("qualified"),
		Search:    q.Get("search"),
	}))
}

func (h *DashboardHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var input usecase.LeadInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	lead, err := h.leads.Create(r.Context(), input)
	if err != nil {
		writeUsecaseError(w, err, "Failed to add lead")
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

func (h *DashboardHandler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	var input usecase.LeadInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	lead, err := h.leads.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		writeUsecaseError(w, err, "Failed to update lead")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *DashboardHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	if err := h.leads.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeUsecaseError(w, err, "Failed to delete lead")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DashboardHandler) Inbound(w http.ResponseWriter, r *http.Request) {
	if !h.mount(w, r, h.inbound) {
		return
	}
	filter := r.URL.Query().Get("filter")
	writeJSON(w, http.StatusOK, h.inbound.Page(filter))
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.mount(w, r, h.stats) {
		return
	}
	writeJSON(w, http.StatusOK, h.stats.Stats())
}

func (h *DashboardHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	if !h.mount(w, r, h.analytics) {
		return
	}
	writeJSON(w, http.StatusOK, h.analytics.Analytics())
}

func (h *DashboardHandler) Automation(w http.ResponseWriter, r *http.Request) {
	if !h.mount(w, r, h.automation) {
		return
	}
	writeJSON(w, http.StatusOK, h.automation.State())
}

func (h *DashboardHandler) Arm(w http.ResponseWriter, r *http.Request) {
	if !h.mount(w, r, h.automation) {
		return
	}
	flag := entity.Flag(chi.URLParam(r, "flag"))
	if err := h.automation.Arm(r.Context(), flag); err != nil {
		writeUsecaseError(w, err, "Failed to trigger automation")
		return
	}
	writeJSON(w, http.StatusOK, h.automation.State())
}

func (h *DashboardHandler) DeleteLog(w http.ResponseWriter, r *http.Request) {
	if err := h.automation.DeleteLog(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeUsecaseError(w, err, "Failed to delete log")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DashboardHandler) DeleteAllLogs(w http.ResponseWriter, r *http.Request) {
	n, err := h.automation.DeleteAllLogs(r.Context())
	if err != nil {
		writeUsecaseError(w, err, "Failed to delete all logs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *DashboardHandler) Unmount(w http.ResponseWriter, r *http.Request) {
	v, ok := h.views()[chi.URLParam(r, "name")]
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown view", "")
		return
	}
	v.Unmount()
	w.WriteHeader(http.StatusNoContent)
}

func (h *DashboardHandler) Notifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Session.Notifications.List())
}

func (h *DashboardHandler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	if !h.Session.Notifications.Dismiss(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "Not found", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
