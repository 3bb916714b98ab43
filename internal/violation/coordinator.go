// Package violation turns classifier verdicts into side effects: a capture
// request to the agent and a persisted alert, gated by the per-subject
// cooldown.
package violation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	activitydomain "activity-compliance-plane/backend/internal/activity/domain"
	alertdomain "activity-compliance-plane/backend/internal/alert/domain"
	alertrepo "activity-compliance-plane/backend/internal/alert/repository"
	policydomain "activity-compliance-plane/backend/internal/policy/domain"
	"activity-compliance-plane/backend/internal/policy/engine"
	sessiondomain "activity-compliance-plane/backend/internal/session/domain"
	"activity-compliance-plane/backend/internal/telemetry"
)

// ViolationGate is the cooldown check. Satisfied by registry.Registry.
type ViolationGate interface {
	RecordViolation(subjectID string, now time.Time) bool
}

// Coordinator reacts to violation verdicts. The capture request and the
// alert write are independent side effects: a failed alert write never rolls
// back the capture request.
type Coordinator struct {
	gate    ViolationGate
	alerts  alertrepo.Repository
	emitter telemetry.EventEmitter
	now     func() time.Time
}

// New builds a coordinator. emitter may be nil (telemetry disabled).
func New(gate ViolationGate, alerts alertrepo.Repository, emitter telemetry.EventEmitter) *Coordinator {
	return &Coordinator{gate: gate, alerts: alerts, emitter: emitter, now: time.Now}
}

// captureRequest is the payload of the server-initiated monitoring-request.
type captureRequest struct {
	Action    string `json:"action"`
	Reason    string `json:"reason"`
	URL       string `json:"url"`
	Domain    string `json:"domain"`
	Title     string `json:"title"`
	Timestamp string `json:"timestamp"`
}

// Handle processes one violation verdict for the given session. Returns true
// when the violation passed the cooldown gate and side effects were issued.
func (c *Coordinator) Handle(ctx context.Context, sess *sessiondomain.Session, activity *activitydomain.Record, verdict engine.Verdict) bool {
	if sess == nil || activity == nil || verdict.Allowed {
		return false
	}
	now := c.now()
	if !c.gate.RecordViolation(sess.SubjectID, now) {
		// In cooldown: discard silently, no duplicate alerts.
		return false
	}

	reason := reasonFor(verdict)
	if sess.Conn != nil {
		req := captureRequest{
			Action:    "capture_screenshot",
			Reason:    reason,
			URL:       activity.URL,
			Domain:    activity.Domain,
			Title:     activity.Title,
			Timestamp: now.UTC().Format(time.RFC3339),
		}
		if err := sess.Conn.Send("monitoring-request", req); err != nil {
			log.Printf("violation: capture request to %s failed: %v", sess.SubjectID, err)
		}
	}

	alert := &alertdomain.Alert{
		ID:          uuid.NewString(),
		SubjectID:   sess.SubjectID,
		SessionID:   sess.SessionID,
		Category:    verdict.Category,
		Severity:    verdict.Severity,
		Title:       titleFor(verdict.Category),
		Description: descriptionFor(verdict, activity),
		Payload: alertdomain.Payload{
			URL:       activity.URL,
			Domain:    activity.Domain,
			Title:     activity.Title,
			Timestamp: activity.OccurredAt,
			Matched:   verdict.Matched,
		},
	}
	if err := c.alerts.Create(ctx, alert); err != nil {
		log.Printf("violation: persisting alert for %s failed: %v", sess.SubjectID, err)
	}

	meta, _ := json.Marshal(map[string]string{
		"category": string(verdict.Category),
		"severity": string(verdict.Severity),
		"domain":   activity.Domain,
	})
	telemetry.EmitAsync(c.emitter, ctx, telemetry.NewEvent(sess.SubjectID, sess.SessionID, "violation_alert", "violation-coordinator", meta))
	return true
}

func reasonFor(v engine.Verdict) string {
	if v.Kind == policydomain.KindExplicit {
		return fmt.Sprintf("explicit violation: %s", v.Category)
	}
	return "non-work activity detected"
}

var categoryTitles = map[policydomain.Category]string{
	policydomain.CategorySocialMedia:   "Social media usage detected",
	policydomain.CategoryGaming:        "Gaming activity detected",
	policydomain.CategoryEntertainment: "Entertainment content detected",
	policydomain.CategoryShopping:      "Shopping activity detected",
	policydomain.CategoryDating:        "Dating site usage detected",
	policydomain.CategoryAdultContent:  "Inappropriate content detected",
	policydomain.CategoryGeneric:       "Non-work activity detected",
}

func titleFor(cat policydomain.Category) string {
	if t, ok := categoryTitles[cat]; ok {
		return t
	}
	return categoryTitles[policydomain.CategoryGeneric]
}

func descriptionFor(v engine.Verdict, a *activitydomain.Record) string {
	target := a.Domain
	if target == "" {
		target = a.URL
	}
	if v.Matched != "" {
		return fmt.Sprintf("Visited %s (matched %s, severity %s)", target, v.Matched, v.Severity)
	}
	return fmt.Sprintf("Visited %s (severity %s)", target, v.Severity)
}
