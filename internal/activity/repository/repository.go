package repository

import (
	"context"

	"activity-compliance-plane/backend/internal/activity/domain"
)

// Repository defines persistence for activity records.
type Repository interface {
	// SaveBatch persists the records as one batch. All-or-nothing: on error
	// nothing is considered persisted and the caller may retry the batch.
	SaveBatch(ctx context.Context, records []domain.Record) error
	ListBySubject(ctx context.Context, subjectID string, limit, offset int32) ([]*domain.Record, error)
}
