package entity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ActionType string

const (
	ActionStartCalling    ActionType = "start_calling"
	ActionStartQualifying ActionType = "start_qualifying"
	ActionStopCalling     ActionType = "stop_calling"
	ActionStopQualifying  ActionType = "stop_qualifying"
)

type LogStatus string

const (
	LogSuccess LogStatus = "success"
	LogFailed  LogStatus = "failed"
)

// AutomationLog is an append-only audit row. UserID is empty for orphaned entries.
type AutomationLog struct {
	ID         string         `json:"id"`
	ActionType ActionType     `json:"action_type"`
	Status     LogStatus      `json:"status"`
	UserID     string         `json:"user_id,omitempty"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}

func NewAutomationLog(action ActionType, status LogStatus, userID string, details map[string]any) *AutomationLog {
	if details == nil {
		details = map[string]any{}
	}
	return &AutomationLog{
		ID:         uuid.New().String(),
		ActionType: action,
		Status:     status,
		UserID:     userID,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}
}

func (l AutomationLog) RecordID() string   { return l.ID }
func (l AutomationLog) OwnerID() string    { return l.UserID }
func (l AutomationLog) Created() time.Time { return l.CreatedAt }
func (l AutomationLog) Version() time.Time { return l.CreatedAt }

type AutomationLogRepositoryInterface interface {
	Append(ctx context.Context, log *AutomationLog) error
	ListByUser(ctx context.Context, userID string, limit int) ([]AutomationLog, error)
	Delete(ctx context.Context, id string) error
	// DeleteByUser removes every log owned by userID and reports how many went.
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}
