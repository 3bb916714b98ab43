package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"activity-compliance-plane/backend/internal/alert/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an alert repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the alert. The alert must have ID set; CreatedAt is set by
// the database and written back.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Alert) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx,
		`INSERT INTO alerts (id, subject_id, session_id, category, severity, title, description, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`,
		a.ID, a.SubjectID, a.SessionID, a.Category, a.Severity, a.Title, a.Description, payload,
	).Scan(&a.CreatedAt)
}

// GetByID returns the alert for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, subject_id, session_id, category, severity, title, description, payload, created_at
		 FROM alerts WHERE id = $1`, id)
	a, err := scanAlert(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// ListBySubject returns alerts for the subject, newest first, paginated by limit and offset.
func (r *PostgresRepository) ListBySubject(ctx context.Context, subjectID string, limit, offset int32) ([]*domain.Alert, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, subject_id, session_id, category, severity, title, description, payload, created_at
		 FROM alerts WHERE subject_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		subjectID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAlert(scan func(dest ...any) error) (*domain.Alert, error) {
	var a domain.Alert
	var payload []byte
	if err := scan(&a.ID, &a.SubjectID, &a.SessionID, &a.Category, &a.Severity,
		&a.Title, &a.Description, &payload, &a.CreatedAt); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &a.Payload); err != nil {
			return nil, err
		}
	}
	return &a, nil
}
