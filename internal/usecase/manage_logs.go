package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xavierca1/leadsync/internal/entity"
)

// LogsPageSize is how many recent logs the automation view shows.
const LogsPageSize = 50

type ManageLogsUseCase struct {
	Repo     entity.AutomationLogRepositoryInterface
	Notifier Notifier
	Logger   *slog.Logger
}

func NewManageLogsUseCase(repo entity.AutomationLogRepositoryInterface, notifier Notifier, logger *slog.Logger) *ManageLogsUseCase {
	if notifier == nil {
		notifier = discardNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ManageLogsUseCase{Repo: repo, Notifier: notifier, Logger: logger.With("component", "logs")}
}

// WithNotifier returns a copy of uc that reports to n.
func (uc *ManageLogsUseCase) WithNotifier(n Notifier) *ManageLogsUseCase {
	if n == nil {
		n = discardNotifier{}
	}
	out := *uc
	out.Notifier = n
	return &out
}

func (uc *ManageLogsUseCase) List(ctx context.Context, userID string) ([]entity.AutomationLog, error) {
	logs, err := uc.Repo.ListByUser(ctx, userID, LogsPageSize)
	if err != nil {
		return nil, persistence("list automation logs", err)
	}
	return logs, nil
}

func (uc *ManageLogsUseCase) Delete(ctx context.Context, id string, sink LogSink) error {
	if err := uc.Repo.Delete(ctx, id); err != nil {
		uc.Logger.Error("deleting log", "log_id", id, "error", err)
		uc.Notifier.Error("Failed to delete log")
		return persistence("delete automation log", err)
	}
	if sink != nil {
		sink.Remove(id)
	}
	uc.Notifier.Success("Log deleted successfully")
	return nil
}

// DeleteAll removes every log owned by userID and nothing else.
func (uc *ManageLogsUseCase) DeleteAll(ctx context.Context, userID string, sink LogSink) (int64, error) {
	if userID == "" {
		return 0, &ValidationError{Field: "user_id", Message: "is required"}
	}

	n, err := uc.Repo.DeleteByUser(ctx, userID)
	if err != nil {
		uc.Logger.Error("deleting all logs", "user_id", userID, "error", err)
		uc.Notifier.Error(fmt.Sprintf("Failed to delete all logs: %v", err))
		return 0, persistence("delete automation logs", err)
	}
	if sink != nil {
		sink.RemoveWhere(func(l entity.AutomationLog) bool { return l.UserID == userID })
	}

	uc.Logger.Info("logs deleted", "user_id", userID, "count", n)
	uc.Notifier.Success("All logs deleted successfully")
	return n, nil
}
