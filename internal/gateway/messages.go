package gateway

import (
	"encoding/json"
	"fmt"

	"activity-compliance-plane/backend/internal/capture"
	sessiondomain "activity-compliance-plane/backend/internal/session/domain"
)

// Inbound event types. Each has exactly one handler in the read loop.
const (
	TypeMonitoringStarted  = "monitoring-started"
	TypeMonitoringStopped  = "monitoring-stopped"
	TypeActivityUpdate     = "activity-update"
	TypeScreenshotCaptured = "screenshot-captured"
	TypeVisibilityChange   = "visibility-change"
	TypeFocusChange        = "focus-change"
)

// Outbound event types.
const (
	TypeMonitoringStartedAck = "monitoring-started-ack"
	TypeMonitoringStoppedAck = "monitoring-stopped-ack"
	TypeScreenshotProcessed  = "screenshot-processed"
	TypeScreenshotError      = "screenshot-error"
	TypeMonitoringRequest    = "monitoring-request"
)

// Envelope is the tagged union on the wire: a type discriminator plus the
// variant's payload, validated at the boundary before entering the core.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MonitoringStarted opens a session for a subject.
type MonitoringStarted struct {
	SubjectID    string                     `json:"subjectId"`
	SessionID    string                     `json:"sessionId"`
	Capabilities sessiondomain.Capabilities `json:"capabilities"`
}

// MonitoringStopped closes the subject's session.
type MonitoringStopped struct {
	SubjectID string `json:"subjectId"`
	SessionID string `json:"sessionId"`
}

// ActivityPayload is one browsing snapshot as the agent reports it.
type ActivityPayload struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Domain    string `json:"domain"`
	Path      string `json:"path"`
	IsActive  bool   `json:"isActive"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

// ActivityUpdate reports a browsing change for an active session.
type ActivityUpdate struct {
	SubjectID        string           `json:"subjectId"`
	SessionID        string           `json:"sessionId"`
	Activity         ActivityPayload  `json:"activity"`
	PreviousActivity *ActivityPayload `json:"previousActivity,omitempty"`
}

// ScreenshotCaptured carries one screenshot from the agent.
type ScreenshotCaptured struct {
	SubjectID string            `json:"subjectId"`
	SessionID string            `json:"sessionId"`
	Trigger   string            `json:"trigger"`
	ImageData string            `json:"imageData"`
	Metadata  *capture.Metadata `json:"metadata"`
}

// VisibilityChange reports the monitored window becoming visible or hidden.
type VisibilityChange struct {
	SubjectID string `json:"subjectId"`
	IsVisible bool   `json:"isVisible"`
	Timestamp string `json:"timestamp"`
}

// FocusChange reports the monitored window gaining or losing focus.
type FocusChange struct {
	SubjectID string `json:"subjectId"`
	HasFocus  bool   `json:"hasFocus"`
	Timestamp string `json:"timestamp"`
}

// Acks and error payloads sent back to the agent.

type monitoringAck struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
}

type screenshotProcessed struct {
	Success   bool   `json:"success"`
	CaptureID string `json:"captureId"`
	UploadID  string `json:"uploadId"`
	Trigger   string `json:"trigger"`
}

type screenshotError struct {
	Error   string `json:"error"`
	Trigger string `json:"trigger"`
	Details any    `json:"details,omitempty"`
}

// decodePayload unmarshals an envelope payload into the variant type,
// rejecting events with no payload at all.
func decodePayload(env *Envelope, v any) error {
	if len(env.Payload) == 0 {
		return fmt.Errorf("gateway: %s event has no payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("gateway: malformed %s payload: %w", env.Type, err)
	}
	return nil
}
