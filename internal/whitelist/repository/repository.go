package repository

import (
	"context"

	"activity-compliance-plane/backend/internal/whitelist/domain"
)

// Repository defines persistence for whitelist entries.
type Repository interface {
	// List returns all configured allow-entries.
	List(ctx context.Context) ([]domain.Entry, error)
	// Find returns the first entry matching the URL or domain, or nil if none match.
	Find(ctx context.Context, urlOrDomain string) (*domain.Entry, error)
	Create(ctx context.Context, e *domain.Entry) error
	Delete(ctx context.Context, id int64) error
}
