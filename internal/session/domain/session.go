package domain

import (
	"time"

	activitydomain "activity-compliance-plane/backend/internal/activity/domain"
)

// Conn is the transport handle for a subject's agent connection. Implemented
// by the gateway; the registry only needs to push server-initiated messages
// and compare handles on disconnect.
type Conn interface {
	Send(messageType string, payload any) error
}

// Capabilities are the features the agent declared when monitoring started.
type Capabilities struct {
	CanCaptureScreen bool `json:"canCaptureScreen"`
	CanTrackActivity bool `json:"canTrackActivity"`
}

// Session tracks one subject's active monitoring state. Sessions are owned
// exclusively by the registry: handlers read copies, only the registry
// mutates.
type Session struct {
	SubjectID       string
	SessionID       string
	Conn            Conn
	Capabilities    Capabilities
	StartedAt       time.Time
	LastActivity    *activitydomain.Snapshot // nil until the first activity update
	ViolationCount  int
	LastViolationAt time.Time // zero until the first recorded violation
}
