package violation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	activitydomain "activity-compliance-plane/backend/internal/activity/domain"
	alertdomain "activity-compliance-plane/backend/internal/alert/domain"
	policydomain "activity-compliance-plane/backend/internal/policy/domain"
	"activity-compliance-plane/backend/internal/policy/engine"
	sessiondomain "activity-compliance-plane/backend/internal/session/domain"
)

type fakeGate struct {
	allow bool
	calls int
}

func (g *fakeGate) RecordViolation(string, time.Time) bool {
	g.calls++
	return g.allow
}

type recordingAlerts struct {
	mu      sync.Mutex
	created []*alertdomain.Alert
	err     error
}

func (r *recordingAlerts) Create(_ context.Context, a *alertdomain.Alert) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, a)
	return nil
}

func (r *recordingAlerts) GetByID(context.Context, string) (*alertdomain.Alert, error) {
	return nil, nil
}

func (r *recordingAlerts) ListBySubject(context.Context, string, int32, int32) ([]*alertdomain.Alert, error) {
	return nil, nil
}

type sentMessage struct {
	messageType string
	payload     any
}

type recordingConn struct {
	sent []sentMessage
	err  error
}

func (c *recordingConn) Send(messageType string, payload any) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sentMessage{messageType, payload})
	return nil
}

func testSession(conn sessiondomain.Conn) *sessiondomain.Session {
	return &sessiondomain.Session{SubjectID: "subject-1", SessionID: "session-1", Conn: conn}
}

func testActivity() *activitydomain.Record {
	return &activitydomain.Record{
		SubjectID:  "subject-1",
		SessionID:  "session-1",
		URL:        "https://facebook.com/feed",
		Title:      "Facebook",
		Domain:     "facebook.com",
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func explicitVerdict() engine.Verdict {
	return engine.Verdict{
		Kind:     policydomain.KindExplicit,
		Category: policydomain.CategorySocialMedia,
		Severity: policydomain.SeverityHigh,
		Matched:  "facebook.com",
	}
}

func TestHandleSendsCaptureRequestAndPersistsAlert(t *testing.T) {
	gate := &fakeGate{allow: true}
	alerts := &recordingAlerts{}
	conn := &recordingConn{}
	c := New(gate, alerts, nil)

	fixed := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	if !c.Handle(context.Background(), testSession(conn), testActivity(), explicitVerdict()) {
		t.Fatal("expected violation to pass the gate")
	}

	if len(conn.sent) != 1 {
		t.Fatalf("expected 1 capture request, got %d", len(conn.sent))
	}
	if conn.sent[0].messageType != "monitoring-request" {
		t.Fatalf("message type = %q", conn.sent[0].messageType)
	}
	req := conn.sent[0].payload.(captureRequest)
	if req.Action != "capture_screenshot" || req.URL != "https://facebook.com/feed" || req.Domain != "facebook.com" {
		t.Fatalf("unexpected capture request: %+v", req)
	}
	if req.Timestamp != fixed.Format(time.RFC3339) {
		t.Fatalf("timestamp = %q", req.Timestamp)
	}

	if len(alerts.created) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts.created))
	}
	a := alerts.created[0]
	if a.Category != policydomain.CategorySocialMedia || a.Severity != policydomain.SeverityHigh {
		t.Fatalf("alert category/severity = %s/%s", a.Category, a.Severity)
	}
	if a.Title != "Social media usage detected" {
		t.Fatalf("alert title = %q", a.Title)
	}
	if a.Payload.URL != "https://facebook.com/feed" || a.Payload.Matched != "facebook.com" {
		t.Fatalf("alert payload = %+v", a.Payload)
	}
	if a.ID == "" {
		t.Fatal("alert must carry a generated id")
	}
}

func TestHandleCooldownDiscardsSilently(t *testing.T) {
	gate := &fakeGate{allow: false}
	alerts := &recordingAlerts{}
	conn := &recordingConn{}
	c := New(gate, alerts, nil)

	if c.Handle(context.Background(), testSession(conn), testActivity(), explicitVerdict()) {
		t.Fatal("expected cooldown to suppress the violation")
	}
	if len(conn.sent) != 0 || len(alerts.created) != 0 {
		t.Fatal("cooldown must produce no side effects")
	}
}

func TestHandleAllowedVerdictIgnored(t *testing.T) {
	gate := &fakeGate{allow: true}
	c := New(gate, &recordingAlerts{}, nil)

	if c.Handle(context.Background(), testSession(&recordingConn{}), testActivity(), engine.Verdict{Allowed: true}) {
		t.Fatal("allowed verdict must not trigger the coordinator")
	}
	if gate.calls != 0 {
		t.Fatal("gate must not be consulted for allowed verdicts")
	}
}

func TestHandleAlertFailureKeepsCaptureRequest(t *testing.T) {
	gate := &fakeGate{allow: true}
	alerts := &recordingAlerts{err: errors.New("db down")}
	conn := &recordingConn{}
	c := New(gate, alerts, nil)

	if !c.Handle(context.Background(), testSession(conn), testActivity(), explicitVerdict()) {
		t.Fatal("alert persistence failure must not fail the handle")
	}
	if len(conn.sent) != 1 {
		t.Fatal("capture request must be sent even when the alert write fails")
	}
}

func TestHandleSendFailureStillPersistsAlert(t *testing.T) {
	gate := &fakeGate{allow: true}
	alerts := &recordingAlerts{}
	conn := &recordingConn{err: errors.New("connection gone")}
	c := New(gate, alerts, nil)

	if !c.Handle(context.Background(), testSession(conn), testActivity(), explicitVerdict()) {
		t.Fatal("send failure must not fail the handle")
	}
	if len(alerts.created) != 1 {
		t.Fatal("alert must be persisted even when the capture request fails")
	}
}

func TestHandleNonWorkReasonAndTitle(t *testing.T) {
	gate := &fakeGate{allow: true}
	alerts := &recordingAlerts{}
	conn := &recordingConn{}
	c := New(gate, alerts, nil)

	v := engine.Verdict{
		Kind:     policydomain.KindNonWork,
		Category: policydomain.CategoryGeneric,
		Severity: policydomain.SeverityMedium,
	}
	if !c.Handle(context.Background(), testSession(conn), testActivity(), v) {
		t.Fatal("Handle failed")
	}
	req := conn.sent[0].payload.(captureRequest)
	if req.Reason != "non-work activity detected" {
		t.Fatalf("reason = %q", req.Reason)
	}
	if alerts.created[0].Title != "Non-work activity detected" {
		t.Fatalf("title = %q", alerts.created[0].Title)
	}
}
