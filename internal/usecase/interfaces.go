package usecase

import (
	"context"

	"github.com/xavierca1/leadsync/internal/entity"
)

// Notifier surfaces short-lived messages to the operator who started an action.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

type discardNotifier struct{}

func (discardNotifier) Success(string) {}
func (discardNotifier) Error(string)   {}

// The sinks receive records the dashboard wrote itself, ahead of their echo
// on the change feed. A replica.Store satisfies all three.

type LeadSink interface {
	Insert(entity.Lead) bool
	Upsert(entity.Lead) bool
	Remove(id string) bool
}

type TriggerSink interface {
	Get(id string) (entity.Trigger, bool)
	Upsert(entity.Trigger) bool
}

type LogSink interface {
	Remove(id string) bool
	RemoveWhere(pred func(entity.AutomationLog) bool) int
}

type SignalPublisher interface {
	PublishSignal(ctx context.Context, s AutomationSignal) error
}

// Alerter is told about arms that never reached the store.
type Alerter interface {
	ArmFailed(ctx context.Context, flag entity.Flag, userID string, cause error) error
}
