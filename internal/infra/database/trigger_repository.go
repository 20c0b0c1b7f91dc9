package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xavierca1/leadsync/internal/entity"
)

const triggerColumns = `id, user_id, start_calling, start_qualifying, updated_by, created_at, updated_at`

type TriggerRepository struct {
	DB *sql.DB
}

func NewTriggerRepository(db *sql.DB) *TriggerRepository {
	return &TriggerRepository{DB: db}
}

func (r *TriggerRepository) FindByID(ctx context.Context, id string) (*entity.Trigger, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+triggerColumns+` FROM triggers WHERE id = $1`, id)
	t, err := scanTrigger(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	return t, err
}

// Create inserts t unless a row with its id exists, then returns the stored row.
func (r *TriggerRepository) Create(ctx context.Context, t *entity.Trigger) (*entity.Trigger, error) {
	query := `
		INSERT INTO triggers (id, user_id, start_calling, start_qualifying, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.DB.ExecContext(ctx, query,
		t.ID,
		nullString(t.UserID),
		t.StartCalling,
		t.StartQualifying,
		nullString(t.UpdatedBy),
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, t.ID)
}

// SetFlag writes a single flag. It returns nil, nil when no row has id.
func (r *TriggerRepository) SetFlag(ctx context.Context, id string, flag entity.Flag, value bool, updatedBy string) (*entity.Trigger, error) {
	if !flag.Valid() {
		return nil, fmt.Errorf("unknown trigger flag %q", flag)
	}

	// flag is one of two known column names
	query := fmt.Sprintf(`
		UPDATE triggers SET %s = $2, updated_by = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, string(flag), triggerColumns)

	t, err := scanTrigger(r.DB.QueryRowContext(ctx, query, id, value, nullString(updatedBy)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func scanTrigger(s scanner) (*entity.Trigger, error) {
	var (
		t                 entity.Trigger
		userID, updatedBy sql.NullString
	)
	if err := s.Scan(&t.ID, &userID, &t.StartCalling, &t.StartQualifying, &updatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.UserID = userID.String
	t.UpdatedBy = updatedBy.String
	return &t, nil
}
