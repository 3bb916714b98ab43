package repository

import (
	"context"

	"activity-compliance-plane/backend/internal/analysis"
	"activity-compliance-plane/backend/internal/capture/domain"
)

// Repository defines persistence for capture records.
type Repository interface {
	Create(ctx context.Context, c *domain.Capture) error
	// SetAnalysis attaches the analysis result to an existing capture.
	SetAnalysis(ctx context.Context, id string, result *analysis.Result) error
	GetByID(ctx context.Context, id string) (*domain.Capture, error)
	ListBySubject(ctx context.Context, subjectID string, limit, offset int32) ([]*domain.Capture, error)
}
