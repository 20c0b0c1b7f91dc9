package database

import (
	"context"
	"database/sql"

	"github.com/xavierca1/leadsync/internal/entity"
)

type AutomationLogRepository struct {
	DB *sql.DB
}

func NewAutomationLogRepository(db *sql.DB) *AutomationLogRepository {
	return &AutomationLogRepository{DB: db}
}

func (r *AutomationLogRepository) Append(ctx context.Context, l *entity.AutomationLog) error {
	details, err := marshalMap(l.Details)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO automation_logs (id, action_type, status, user_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	return r.DB.QueryRowContext(ctx, query,
		l.ID,
		string(l.ActionType),
		string(l.Status),
		nullString(l.UserID),
		details,
		l.CreatedAt,
	).Scan(&l.CreatedAt)
}

func (r *AutomationLogRepository) ListByUser(ctx context.Context, userID string, limit int) ([]entity.AutomationLog, error) {
	query := `
		SELECT id, action_type, status, user_id, details, created_at
		FROM automation_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]entity.AutomationLog, 0)
	for rows.Next() {
		var (
			l       entity.AutomationLog
			owner   sql.NullString
			details []byte
		)
		if err := rows.Scan(&l.ID, &l.ActionType, &l.Status, &owner, &details, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.UserID = owner.String
		if l.Details, err = unmarshalMap(details); err != nil {
			return nil, err
		}
		if l.Details == nil {
			l.Details = map[string]any{}
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (r *AutomationLogRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM automation_logs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *AutomationLogRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM automation_logs WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
