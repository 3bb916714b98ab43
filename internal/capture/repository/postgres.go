package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"activity-compliance-plane/backend/internal/analysis"
	"activity-compliance-plane/backend/internal/capture/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a capture repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the capture. The capture must have ID set; CreatedAt is
// set by the database and written back.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Capture) error {
	var analysisJSON []byte
	if c.Analysis != nil {
		b, err := json.Marshal(c.Analysis)
		if err != nil {
			return err
		}
		analysisJSON = b
	}
	return r.db.QueryRowContext(ctx,
		`INSERT INTO captures
		 (id, subject_id, session_id, trigger, storage_url, content_id, byte_size,
		  width, height, page_url, page_title, app_name, captured_at, analysis)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING created_at`,
		c.ID, c.SubjectID, c.SessionID, c.Trigger, c.StorageURL, c.ContentID, c.ByteSize,
		c.Width, c.Height, c.PageURL, c.PageTitle, c.AppName, c.CapturedAt, nullBytes(analysisJSON),
	).Scan(&c.CreatedAt)
}

// SetAnalysis attaches the analysis result to the capture with the given id.
func (r *PostgresRepository) SetAnalysis(ctx context.Context, id string, result *analysis.Result) error {
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE captures SET analysis = $2 WHERE id = $1`, id, b)
	return err
}

// GetByID returns the capture for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Capture, error) {
	row := r.db.QueryRowContext(ctx, selectCapture+` WHERE id = $1`, id)
	c, err := scanCapture(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// ListBySubject returns captures for the subject, newest first, paginated by limit and offset.
func (r *PostgresRepository) ListBySubject(ctx context.Context, subjectID string, limit, offset int32) ([]*domain.Capture, error) {
	rows, err := r.db.QueryContext(ctx,
		selectCapture+` WHERE subject_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		subjectID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Capture
	for rows.Next() {
		c, err := scanCapture(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const selectCapture = `SELECT id, subject_id, session_id, trigger, storage_url, content_id,
	byte_size, width, height, page_url, page_title, app_name, captured_at, analysis, created_at
	FROM captures`

func scanCapture(scan func(dest ...any) error) (*domain.Capture, error) {
	var c domain.Capture
	var analysisJSON []byte
	if err := scan(&c.ID, &c.SubjectID, &c.SessionID, &c.Trigger, &c.StorageURL, &c.ContentID,
		&c.ByteSize, &c.Width, &c.Height, &c.PageURL, &c.PageTitle, &c.AppName,
		&c.CapturedAt, &analysisJSON, &c.CreatedAt); err != nil {
		return nil, err
	}
	if len(analysisJSON) > 0 {
		var res analysis.Result
		if err := json.Unmarshal(analysisJSON, &res); err != nil {
			return nil, err
		}
		c.Analysis = &res
	}
	return &c, nil
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
