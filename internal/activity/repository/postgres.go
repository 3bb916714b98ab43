package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"activity-compliance-plane/backend/internal/activity/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an activity repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// SaveBatch inserts all records in a single multi-row INSERT inside one
// transaction. Returns an error without partial writes, so a failed batch
// can be retried whole.
func (r *PostgresRepository) SaveBatch(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO activities
		(subject_id, session_id, url, title, domain, path, is_active, source, occurred_at)
		VALUES `)
	args := make([]any, 0, len(records)*9)
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 9
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9)
		args = append(args,
			rec.SubjectID, rec.SessionID, rec.URL, rec.Title,
			rec.Domain, rec.Path, rec.IsActive, rec.Source, rec.OccurredAt)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ListBySubject returns activity records for the subject, newest first, paginated by limit and offset.
func (r *PostgresRepository) ListBySubject(ctx context.Context, subjectID string, limit, offset int32) ([]*domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT subject_id, session_id, url, title, domain, path, is_active, source, occurred_at
		FROM activities WHERE subject_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		subjectID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		var rec domain.Record
		if err := rows.Scan(&rec.SubjectID, &rec.SessionID, &rec.URL, &rec.Title,
			&rec.Domain, &rec.Path, &rec.IsActive, &rec.Source, &rec.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
