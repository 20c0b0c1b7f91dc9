package entity

import (
	"context"
	"time"
)

// TriggerID is the fixed key of the deployment-wide trigger row.
const TriggerID = "00000000-0000-0000-0000-000000000001"

// Flag names a boolean column of the trigger row that external workflows watch.
type Flag string

const (
	FlagStartCalling    Flag = "start_calling"
	FlagStartQualifying Flag = "start_qualifying"
)

var Flags = []Flag{FlagStartCalling, FlagStartQualifying}

func (f Flag) Valid() bool {
	return f == FlagStartCalling || f == FlagStartQualifying
}

// StartAction is the audit action recorded when the flag is raised.
func (f Flag) StartAction() ActionType {
	if f == FlagStartCalling {
		return ActionStartCalling
	}
	return ActionStartQualifying
}

// StopAction is the audit action recorded when the flag is cleared.
func (f Flag) StopAction() ActionType {
	if f == FlagStartCalling {
		return ActionStopCalling
	}
	return ActionStopQualifying
}

// Label is the human name used in notifications.
func (f Flag) Label() string {
	if f == FlagStartCalling {
		return "Calling"
	}
	return "Qualifying"
}

type Trigger struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id,omitempty"`
	StartCalling    bool      `json:"start_calling"`
	StartQualifying bool      `json:"start_qualifying"`
	UpdatedBy       string    `json:"updated_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (t Trigger) Flag(f Flag) bool {
	switch f {
	case FlagStartCalling:
		return t.StartCalling
	case FlagStartQualifying:
		return t.StartQualifying
	}
	return false
}

func (t Trigger) RecordID() string   { return t.ID }
func (t Trigger) OwnerID() string    { return t.UserID }
func (t Trigger) Created() time.Time { return t.CreatedAt }
func (t Trigger) Version() time.Time { return t.UpdatedAt }

type TriggerRepositoryInterface interface {
	FindByID(ctx context.Context, id string) (*Trigger, error)
	// Create inserts the row if absent and returns whatever is stored.
	Create(ctx context.Context, t *Trigger) (*Trigger, error)
	// SetFlag writes one flag and returns the post-image; nil when no row matched.
	SetFlag(ctx context.Context, id string, flag Flag, value bool, updatedBy string) (*Trigger, error)
}
