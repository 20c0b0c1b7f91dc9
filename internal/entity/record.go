package entity

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

const (
	TableLeads          = "leads"
	TableTriggers       = "triggers"
	TableAutomationLogs = "automation_logs"
)

// Record is a row owned by the durable store and mirrored by client replicas.
// Version is the row's updated_at; append-only rows report created_at.
type Record interface {
	RecordID() string
	OwnerID() string
	Created() time.Time
	Version() time.Time
}
