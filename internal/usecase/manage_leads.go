package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/phone"
)

type ManageLeadsUseCase struct {
	Repo   entity.LeadRepositoryInterface
	Logger *slog.Logger
}

func NewManageLeadsUseCase(repo entity.LeadRepositoryInterface, logger *slog.Logger) *ManageLeadsUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ManageLeadsUseCase{Repo: repo, Logger: logger.With("component", "leads")}
}

// Create stores a new lead for userID. The source channel defaults from the
// lead type only when the form leaves it empty.
func (uc *ManageLeadsUseCase) Create(ctx context.Context, userID string, input LeadInput, sink LeadSink) (*entity.Lead, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Message: "is required"}
	}
	if err := joinValidation(ValidateLeadInput(input)); err != nil {
		return nil, err
	}

	lead, err := entity.NewLead(userID, input.Name, entity.LeadType(input.LeadType))
	if err != nil {
		return nil, &ValidationError{Field: "name", Message: err.Error()}
	}
	lead.Email = strings.TrimSpace(input.Email)
	lead.Phone = phone.Normalize(input.Phone)
	if input.Status != "" {
		lead.Status = entity.LeadStatus(input.Status)
	}
	if input.SourceChannel != "" {
		lead.SourceChannel = entity.SourceChannel(input.SourceChannel)
	}
	lead.CallResult = entity.CallResult(input.CallResult)
	lead.Qualified = input.Qualified

	if err := uc.Repo.Create(ctx, lead); err != nil {
		return nil, persistence("create lead", err)
	}
	if sink != nil {
		sink.Insert(*lead)
	}

	uc.Logger.Info("lead created", "lead_id", lead.ID, "user_id", userID)
	return lead, nil
}

// Update rewrites every form field. lead_type and source_channel are
// written as given; they are never re-derived from each other.
func (uc *ManageLeadsUseCase) Update(ctx context.Context, id string, input LeadInput, sink LeadSink) (*entity.Lead, error) {
	if err := joinValidation(ValidateLeadInput(input)); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	formatted := phone.Normalize(input.Phone)
	status := entity.LeadStatus(input.Status)
	if status == "" {
		status = entity.StatusCold
	}
	leadType := entity.LeadType(input.LeadType)
	if leadType == "" {
		leadType = entity.LeadTypeOutbound
	}
	channel := entity.SourceChannel(input.SourceChannel)
	result := entity.CallResult(input.CallResult)

	lead, err := uc.Repo.Update(ctx, id, entity.LeadPatch{
		Name:          &name,
		Email:         &email,
		Phone:         &formatted,
		Status:        &status,
		LeadType:      &leadType,
		SourceChannel: &channel,
		CallResult:    &result,
		Qualified:     &input.Qualified,
		UpdatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return nil, persistence("update lead", err)
	}
	if sink != nil {
		sink.Upsert(*lead)
	}
	return lead, nil
}

func (uc *ManageLeadsUseCase) Delete(ctx context.Context, id string, sink LeadSink) error {
	if id == "" {
		return &ValidationError{Field: "id", Message: "is required"}
	}
	if err := uc.Repo.Delete(ctx, id); err != nil {
		return persistence("delete lead", err)
	}
	if sink != nil {
		sink.Remove(id)
	}
	return nil
}

// List is the full reload a view performs on mount.
func (uc *ManageLeadsUseCase) List(ctx context.Context, q entity.LeadQuery) ([]entity.Lead, error) {
	leads, err := uc.Repo.List(ctx, q)
	if err != nil {
		return nil, persistence(fmt.Sprintf("list leads for %s", q.UserID), err)
	}
	return leads, nil
}
