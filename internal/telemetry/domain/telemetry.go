package domain

import (
	"encoding/json"
	"time"
)

// Event is one internal observability event (session lifecycle, violation
// alert, capture processed). Distinct from subject activity telemetry, which
// the activity pipeline persists; these events feed the operator's
// log/metric backends best-effort.
type Event struct {
	SubjectID string          `json:"subjectId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
