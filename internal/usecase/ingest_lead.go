package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/phone"
)

// QualificationPayload is what external calling/qualifying workflows send
// back, either over HTTP or through the results queue.
type QualificationPayload struct {
	LeadID     string         `json:"lead_id,omitempty"`
	Status     string         `json:"status,omitempty"`
	ActionType string         `json:"action_type,omitempty"` // calling | qualifying
	Transcript string         `json:"transcript,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Name       string         `json:"name,omitempty"`
	Email      string         `json:"email,omitempty"`
	Phone      string         `json:"phone,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
}

// IsCreate reports whether the payload describes a brand-new inbound lead.
func (p QualificationPayload) IsCreate() bool {
	return p.Name != "" && p.Phone != "" && p.LeadID == ""
}

type IngestResult struct {
	Lead    *entity.Lead
	Message string
	Created bool
}

// IngestLeadUseCase creates or updates leads on behalf of external workflows.
// It holds no state between calls and does not deduplicate: replaying an
// update rewrites the same values and appends another audit entry.
type IngestLeadUseCase struct {
	Leads    entity.LeadRepositoryInterface
	Logs     entity.AutomationLogRepositoryInterface
	Logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewIngestLeadUseCase(leads entity.LeadRepositoryInterface, logs entity.AutomationLogRepositoryInterface, logger *slog.Logger) *IngestLeadUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestLeadUseCase{
		Leads:    leads,
		Logs:     logs,
		Logger:   logger.With("component", "ingest"),
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var qualificationStatusTag = func() string {
	names := make([]string, len(entity.QualificationStatuses))
	for i, s := range entity.QualificationStatuses {
		names[i] = string(s)
	}
	return "oneof=" + strings.Join(names, " ")
}()

func (uc *IngestLeadUseCase) Execute(ctx context.Context, p QualificationPayload) (*IngestResult, error) {
	if p.IsCreate() {
		return uc.create(ctx, p)
	}
	return uc.update(ctx, p)
}

func (uc *IngestLeadUseCase) create(ctx context.Context, p QualificationPayload) (*IngestResult, error) {
	if p.UserID == "" {
		return nil, &ValidationError{Field: "user_id", Message: "user_id is required for creating new leads"}
	}

	lead, err := entity.NewLead(p.UserID, p.Name, entity.LeadTypeInbound)
	if err != nil {
		return nil, &ValidationError{Field: "name", Message: err.Error()}
	}
	if p.Status != "" {
		lead.Status = entity.LeadStatus(p.Status)
		if !lead.Status.Valid() {
			return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("Invalid status: %s", p.Status)}
		}
	}
	lead.Email = p.Email
	lead.Phone = phone.Normalize(p.Phone)
	lead.SourceChannel = entity.ChannelInboundCall
	lead.CallResult = ""

	if err := uc.Leads.Create(ctx, lead); err != nil {
		uc.Logger.Error("creating lead", "user_id", p.UserID, "error", err)
		return nil, persistence("create lead", err)
	}

	return &IngestResult{Lead: lead, Message: "Lead created successfully", Created: true}, nil
}

func (uc *IngestLeadUseCase) update(ctx context.Context, p QualificationPayload) (*IngestResult, error) {
	if p.LeadID == "" || p.Status == "" {
		return nil, &ValidationError{Message: "Missing required fields: lead_id and status"}
	}
	if err := uc.validate.Var(p.Status, qualificationStatusTag); err != nil {
		return nil, &ValidationError{Field: "status", Message: "Invalid status. Must be: hot, warm, cold, or uninterested"}
	}

	status := entity.LeadStatus(p.Status)
	patch := entity.LeadPatch{
		Status:    &status,
		UpdatedAt: uc.now(),
	}
	if p.Phone != "" {
		formatted := phone.Normalize(p.Phone)
		patch.Phone = &formatted
	}
	if p.Transcript != "" {
		patch.Transcript = &p.Transcript
	}
	if p.Metadata != nil {
		current, err := uc.Leads.FindByID(ctx, p.LeadID)
		if err != nil {
			return nil, persistence("load lead metadata", err)
		}
		patch.Metadata = mergeMetadata(current.Metadata, p.Metadata)
	}

	lead, err := uc.Leads.Update(ctx, p.LeadID, patch)
	if err != nil {
		uc.Logger.Error("updating lead", "lead_id", p.LeadID, "error", err)
		return nil, persistence("update lead", err)
	}

	if lead.UserID != "" {
		uc.appendLog(ctx, lead, p)
	}

	return &IngestResult{Lead: lead, Message: fmt.Sprintf("Lead status updated to %s", p.Status)}, nil
}

// appendLog records the result against the lead's owner. Failures are
// reported and swallowed; the lead update already happened.
func (uc *IngestLeadUseCase) appendLog(ctx context.Context, lead *entity.Lead, p QualificationPayload) {
	action := entity.ActionStartQualifying
	if p.ActionType == "calling" {
		action = entity.ActionStartCalling
	}

	details := map[string]any{
		"lead_id":    p.LeadID,
		"new_status": p.Status,
	}
	if p.ActionType != "" {
		details["action"] = p.ActionType
	}

	entry := entity.NewAutomationLog(action, entity.LogSuccess, lead.UserID, details)
	if err := uc.Logs.Append(ctx, entry); err != nil {
		uc.Logger.Error("logging automation", "lead_id", p.LeadID, "error", err)
	}
}

// mergeMetadata returns a shallow merge where incoming keys win.
func mergeMetadata(existing, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}
