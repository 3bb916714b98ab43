package repository

import (
	"context"

	"activity-compliance-plane/backend/internal/alert/domain"
)

// Repository defines append-only persistence for alerts.
type Repository interface {
	Create(ctx context.Context, a *domain.Alert) error
	GetByID(ctx context.Context, id string) (*domain.Alert, error)
	ListBySubject(ctx context.Context, subjectID string, limit, offset int32) ([]*domain.Alert, error)
}
