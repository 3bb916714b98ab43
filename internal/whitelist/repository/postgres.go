package repository

import (
	"context"
	"database/sql"

	"activity-compliance-plane/backend/internal/whitelist/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a whitelist repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// List returns all whitelist entries, oldest first.
func (r *PostgresRepository) List(ctx context.Context) ([]domain.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, pattern, kind, note, created_at FROM whitelist_entries ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Entry
	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(&e.ID, &e.Pattern, &e.Kind, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Find returns the first entry matching the URL or domain, or nil if none
// match. Matching runs in memory because regex/substring kinds cannot be
// expressed in a single portable SQL predicate.
func (r *PostgresRepository) Find(ctx context.Context, urlOrDomain string) (*domain.Entry, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].Matches(urlOrDomain, urlOrDomain) {
			return &entries[i], nil
		}
	}
	return nil, nil
}

// Create persists the entry and sets e.ID.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Entry) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO whitelist_entries (pattern, kind, note) VALUES ($1, $2, $3) RETURNING id, created_at`,
		e.Pattern, e.Kind, e.Note).Scan(&e.ID, &e.CreatedAt)
}

// Delete removes the entry with the given id. Deleting a missing id is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM whitelist_entries WHERE id = $1`, id)
	return err
}
