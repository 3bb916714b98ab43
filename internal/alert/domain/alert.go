package domain

import (
	"time"

	policydomain "activity-compliance-plane/backend/internal/policy/domain"
)

// Payload carries the source activity behind an alert, stored as JSONB.
type Payload struct {
	URL       string    `json:"url"`
	Domain    string    `json:"domain"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	Matched   string    `json:"matched,omitempty"`
}

// Alert is a persisted notification derived from a violation verdict.
// Append-only; never mutated after creation.
type Alert struct {
	ID          string
	SubjectID   string
	SessionID   string
	Category    policydomain.Category
	Severity    policydomain.Severity
	Title       string
	Description string
	Payload     Payload
	CreatedAt   time.Time
}
