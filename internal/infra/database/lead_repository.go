package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xavierca1/leadsync/internal/entity"
)

const leadColumns = `id, user_id, name, email, phone, status, lead_type, source_channel,
	call_result, qualified, transcript, metadata, created_at, updated_at`

type LeadRepository struct {
	DB *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{DB: db}
}

func (r *LeadRepository) Create(ctx context.Context, lead *entity.Lead) error {
	metadata, err := marshalMap(lead.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO leads (id, user_id, name, email, phone, status, lead_type, source_channel,
			call_result, qualified, transcript, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`

	return r.DB.QueryRowContext(ctx, query,
		lead.ID,
		nullString(lead.UserID),
		lead.Name,
		nullString(lead.Email),
		nullString(lead.Phone),
		lead.Status,
		lead.LeadType,
		nullString(string(lead.SourceChannel)),
		nullString(string(lead.CallResult)),
		lead.Qualified,
		nullString(lead.Transcript),
		metadata,
		lead.CreatedAt,
		lead.UpdatedAt,
	).Scan(&lead.CreatedAt, &lead.UpdatedAt)
}

func (r *LeadRepository) FindByID(ctx context.Context, id string) (*entity.Lead, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	return lead, err
}

func (r *LeadRepository) Update(ctx context.Context, id string, patch entity.LeadPatch) (*entity.Lead, error) {
	sets, args, err := leadPatchSet(patch)
	if err != nil {
		return nil, err
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE leads SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), leadColumns)

	lead, err := scanLead(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	return lead, err
}

// leadPatchSet renders the SET clause for the non-nil fields of p.
// updated_at is always written.
func leadPatchSet(p entity.LeadPatch) ([]string, []any, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Email != nil {
		add("email", nullString(*p.Email))
	}
	if p.Phone != nil {
		add("phone", nullString(*p.Phone))
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.LeadType != nil {
		add("lead_type", string(*p.LeadType))
	}
	if p.SourceChannel != nil {
		add("source_channel", nullString(string(*p.SourceChannel)))
	}
	if p.CallResult != nil {
		add("call_result", nullString(string(*p.CallResult)))
	}
	if p.Qualified != nil {
		add("qualified", *p.Qualified)
	}
	if p.Transcript != nil {
		add("transcript", nullString(*p.Transcript))
	}
	if p.Metadata != nil {
		raw, err := marshalMap(p.Metadata)
		if err != nil {
			return nil, nil, err
		}
		add("metadata", raw)
	}

	if p.UpdatedAt.IsZero() {
		sets = append(sets, "updated_at = NOW()")
	} else {
		add("updated_at", p.UpdatedAt)
	}
	return sets, args, nil
}

func (r *LeadRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *LeadRepository) List(ctx context.Context, q entity.LeadQuery) ([]entity.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE user_id = $1`
	args := []any{q.UserID}
	if q.LeadType != "" {
		query += ` AND lead_type = $2`
		args = append(args, string(q.LeadType))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]entity.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *lead)
	}
	return leads, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(s scanner) (*entity.Lead, error) {
	var (
		lead                                  entity.Lead
		userID, email, phone, channel, result sql.NullString
		transcript                            sql.NullString
		metadata                              []byte
	)

	err := s.Scan(
		&lead.ID,
		&userID,
		&lead.Name,
		&email,
		&phone,
		&lead.Status,
		&lead.LeadType,
		&channel,
		&result,
		&lead.Qualified,
		&transcript,
		&metadata,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	lead.UserID = userID.String
	lead.Email = email.String
	lead.Phone = phone.String
	lead.SourceChannel = entity.SourceChannel(channel.String)
	lead.CallResult = entity.CallResult(result.String)
	lead.Transcript = transcript.String
	if lead.Metadata, err = unmarshalMap(metadata); err != nil {
		return nil, err
	}
	return &lead, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func marshalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(m)
}

func unmarshalMap(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode jsonb: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}
