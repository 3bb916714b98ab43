package domain

import (
	"time"

	"activity-compliance-plane/backend/internal/analysis"
)

// Trigger records why a screenshot was taken.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
	TriggerViolation Trigger = "violation"
	TriggerURLChange Trigger = "url_change"
)

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerScheduled, TriggerManual, TriggerViolation, TriggerURLChange:
		return true
	}
	return false
}

// Capture is the persisted metadata for one screenshot. The Analysis
// sub-object is the only field mutated after creation, by the single
// analysis writer.
type Capture struct {
	ID         string
	SubjectID  string
	SessionID  string
	Trigger    Trigger
	StorageURL string
	ContentID  string
	ByteSize   int64
	Width      int
	Height     int
	PageURL    string
	PageTitle  string
	AppName    string
	CapturedAt time.Time
	Analysis   *analysis.Result // nil until analysis runs, if it ever does
	CreatedAt  time.Time
}
