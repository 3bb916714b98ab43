// Package gateway terminates agent websocket connections and dispatches the
// inbound event stream into the session registry, activity buffer,
// classifier, and capture pipeline.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"activity-compliance-plane/backend/internal/activity/buffer"
	activitydomain "activity-compliance-plane/backend/internal/activity/domain"
	"activity-compliance-plane/backend/internal/capability"
	"activity-compliance-plane/backend/internal/capture"
	capturedomain "activity-compliance-plane/backend/internal/capture/domain"
	"activity-compliance-plane/backend/internal/policy/engine"
	"activity-compliance-plane/backend/internal/session/registry"
	"activity-compliance-plane/backend/internal/telemetry"
	"activity-compliance-plane/backend/internal/violation"
	"activity-compliance-plane/backend/internal/whitelist"
	whitelistdomain "activity-compliance-plane/backend/internal/whitelist/domain"
)

// Server owns the agent-facing HTTP surface: the websocket endpoint and a
// health probe.
type Server struct {
	registry    *registry.Registry
	buffer      *buffer.Buffer
	classifier  engine.Classifier
	whitelist   *whitelist.Cache
	coordinator *violation.Coordinator
	captures    *capture.Service
	emitter     telemetry.EventEmitter
	caps        capability.Capabilities

	upgrader websocket.Upgrader

	eventsTotal     metric.Int64Counter
	violationsTotal metric.Int64Counter
	capturesTotal   metric.Int64Counter
}

// New wires the gateway. emitter may be nil (telemetry disabled); whitelist
// may be nil (empty allow-list).
func New(reg *registry.Registry, buf *buffer.Buffer, cls engine.Classifier, wl *whitelist.Cache,
	coord *violation.Coordinator, captures *capture.Service, emitter telemetry.EventEmitter,
	caps capability.Capabilities) *Server {

	meter := otel.Meter("gateway")
	s := &Server{
		registry:    reg,
		buffer:      buf,
		classifier:  cls,
		whitelist:   wl,
		coordinator: coord,
		captures:    captures,
		emitter:     emitter,
		caps:        caps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Agents connect from desktop processes, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.eventsTotal, _ = meter.Int64Counter("gateway.events.total")
	s.violationsTotal, _ = meter.Int64Counter("gateway.violations.total")
	s.capturesTotal, _ = meter.Int64Counter("gateway.captures.total")
	return s
}

// Routes returns the gateway's HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/agent", s.handleAgent)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.registry.Len(),
		"headless": s.caps.Headless,
	})
}

// handleAgent upgrades the connection and runs the read loop until the agent
// disconnects. Connection loss triggers the same cleanup as an explicit stop.
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("gateway: upgrade failed from %s: %v", r.RemoteAddr, err)
		return
	}
	conn := newWSConn(ws)
	defer func() {
		if subjectID, ok := s.registry.OnDisconnect(context.Background(), conn); ok {
			log.Printf("gateway: connection lost, cleaned up session for subject %s", subjectID)
		}
		_ = conn.close()
	}()

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					return
				}
			case <-stopPing:
				return
			}
		}
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("gateway: read error from %s: %v", r.RemoteAddr, err)
			}
			return
		}
		s.dispatch(r.Context(), conn, raw)
	}
}

// dispatch validates one frame and routes it to its handler. Unknown types
// and malformed payloads are logged and dropped; they never tear down the
// connection.
func (s *Server) dispatch(ctx context.Context, conn *wsConn, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("gateway: dropping malformed frame: %v", err)
		return
	}
	s.eventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("event.type", env.Type)))

	switch env.Type {
	case TypeMonitoringStarted:
		s.handleMonitoringStarted(ctx, conn, &env)
	case TypeMonitoringStopped:
		s.handleMonitoringStopped(ctx, conn, &env)
	case TypeActivityUpdate:
		s.handleActivityUpdate(ctx, &env)
	case TypeScreenshotCaptured:
		s.handleScreenshotCaptured(ctx, conn, &env)
	case TypeVisibilityChange:
		s.handleVisibilityChange(ctx, &env)
	case TypeFocusChange:
		s.handleFocusChange(ctx, &env)
	default:
		log.Printf("gateway: dropping unknown event type %q", env.Type)
	}
}

func (s *Server) handleMonitoringStarted(ctx context.Context, conn *wsConn, env *Envelope) {
	var msg MonitoringStarted
	if err := decodePayload(env, &msg); err != nil {
		log.Print(err)
		return
	}
	if msg.SubjectID == "" || msg.SessionID == "" {
		_ = conn.Send(TypeMonitoringStartedAck, monitoringAck{Success: false, SessionID: msg.SessionID})
		return
	}
	s.registry.Start(msg.SubjectID, msg.SessionID, conn, msg.Capabilities)
	telemetry.EmitAsync(s.emitter, ctx, telemetry.NewEvent(msg.SubjectID, msg.SessionID, "session_started", "gateway", nil))
	_ = conn.Send(TypeMonitoringStartedAck, monitoringAck{Success: true, SessionID: msg.SessionID})
}

func (s *Server) handleMonitoringStopped(ctx context.Context, conn *wsConn, env *Envelope) {
	var msg MonitoringStopped
	if err := decodePayload(env, &msg); err != nil {
		log.Print(err)
		return
	}
	existed := s.registry.Stop(ctx, msg.SubjectID)
	if existed {
		telemetry.EmitAsync(s.emitter, ctx, telemetry.NewEvent(msg.SubjectID, msg.SessionID, "session_stopped", "gateway", nil))
	}
	_ = conn.Send(TypeMonitoringStoppedAck, monitoringAck{Success: existed, SessionID: msg.SessionID})
}

func (s *Server) handleActivityUpdate(ctx context.Context, env *Envelope) {
	var msg ActivityUpdate
	if err := decodePayload(env, &msg); err != nil {
		log.Print(err)
		return
	}
	rec := activityRecord(msg.SubjectID, msg.SessionID, msg.Activity)

	// No session means no consumer for this activity: drop, don't buffer.
	if !s.registry.UpdateLastActivity(msg.SubjectID, rec.Snapshot()) {
		return
	}
	s.buffer.Enqueue(ctx, rec)

	verdict := s.classifier.Classify(&rec, s.whitelistEntries(ctx))
	if verdict.Allowed {
		return
	}
	s.violationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("violation.category", string(verdict.Category))))
	if sess := s.registry.Get(msg.SubjectID); sess != nil {
		s.coordinator.Handle(ctx, sess, &rec, verdict)
	}
}

func (s *Server) handleScreenshotCaptured(ctx context.Context, conn *wsConn, env *Envelope) {
	var msg ScreenshotCaptured
	if err := decodePayload(env, &msg); err != nil {
		log.Print(err)
		return
	}

	// Agents without real capture capability send empty payloads; substitute
	// a diagnostic placeholder so the rest of the pipeline is unaffected.
	// A capture-capable agent sending no image is an input error, not a
	// placeholder case, and falls through to ingest validation.
	if msg.ImageData == "" && msg.SubjectID != "" && !s.canCapture(msg.SubjectID) {
		if img := s.placeholderFor(msg.SubjectID); img != "" {
			msg.ImageData = img
		}
	}

	req := &capture.IngestRequest{
		SubjectID: msg.SubjectID,
		SessionID: msg.SessionID,
		Trigger:   capturedomain.Trigger(msg.Trigger),
		ImageData: msg.ImageData,
		Metadata:  msg.Metadata,
	}
	rec, err := s.captures.Ingest(ctx, req)
	if err != nil {
		var invalid *capture.InvalidInputError
		if errors.As(err, &invalid) {
			_ = conn.Send(TypeScreenshotError, screenshotError{Error: "invalid input", Trigger: msg.Trigger, Details: invalid})
			return
		}
		log.Printf("gateway: capture ingest for %s failed: %v", msg.SubjectID, err)
		_ = conn.Send(TypeScreenshotError, screenshotError{Error: err.Error(), Trigger: msg.Trigger})
		return
	}
	s.capturesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("capture.trigger", string(rec.Trigger))))
	_ = conn.Send(TypeScreenshotProcessed, screenshotProcessed{
		Success:   true,
		CaptureID: rec.ID,
		UploadID:  rec.ContentID,
		Trigger:   string(rec.Trigger),
	})
}

func (s *Server) handleVisibilityChange(ctx context.Context, env *Envelope) {
	var msg VisibilityChange
	if err := decodePayload(env, &msg); err != nil {
		log.Print(err)
		return
	}
	s.recordPresence(ctx, msg.SubjectID, "visibility", msg.IsVisible, msg.Timestamp)
}

func (s *Server) handleFocusChange(ctx context.Context, env *Envelope) {
	var msg FocusChange
	if err := decodePayload(env, &msg); err != nil {
		log.Print(err)
		return
	}
	s.recordPresence(ctx, msg.SubjectID, "focus", msg.HasFocus, msg.Timestamp)
}

// recordPresence buffers a visibility/focus transition against the session's
// last-seen page context. Presence events carry no URL of their own, so a
// subject with no session or no prior activity yields nothing to record.
func (s *Server) recordPresence(ctx context.Context, subjectID, source string, active bool, timestamp string) {
	sess := s.registry.Get(subjectID)
	if sess == nil {
		log.Printf("gateway: %s change for unknown subject %s dropped", source, subjectID)
		return
	}
	if sess.LastActivity == nil {
		return
	}
	last := *sess.LastActivity
	rec := activitydomain.Record{
		SubjectID:  subjectID,
		SessionID:  sess.SessionID,
		URL:        last.URL,
		Title:      last.Title,
		Domain:     last.Domain,
		Path:       last.Path,
		IsActive:   active,
		Source:     source,
		OccurredAt: parseEventTime(timestamp),
	}
	s.registry.UpdateLastActivity(subjectID, rec.Snapshot())
	s.buffer.Enqueue(ctx, rec)
}

func (s *Server) whitelistEntries(ctx context.Context) []whitelistdomain.Entry {
	if s.whitelist == nil {
		return nil
	}
	return s.whitelist.Entries(ctx)
}

// canCapture reports whether real screenshots are possible for the subject:
// the host must not be headless and the session, when present, must have
// declared screen-capture capability.
func (s *Server) canCapture(subjectID string) bool {
	if s.caps.Headless {
		return false
	}
	if sess := s.registry.Get(subjectID); sess != nil {
		return sess.Capabilities.CanCaptureScreen
	}
	return true
}

// placeholderFor renders the headless placeholder, base64-encoded for the
// ingest pipeline. Empty on render failure.
func (s *Server) placeholderFor(subjectID string) string {
	reason := s.caps.Reason
	if reason == "" {
		reason = "capture unavailable"
	}
	img, err := capture.PlaceholderImage(subjectID, reason, time.Now())
	if err != nil {
		log.Printf("gateway: placeholder render failed for %s: %v", subjectID, err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(img)
}

func activityRecord(subjectID, sessionID string, p ActivityPayload) activitydomain.Record {
	return activitydomain.Record{
		SubjectID:  subjectID,
		SessionID:  sessionID,
		URL:        p.URL,
		Title:      p.Title,
		Domain:     p.Domain,
		Path:       p.Path,
		IsActive:   p.IsActive,
		Source:     p.Source,
		OccurredAt: parseEventTime(p.Timestamp),
	}
}

// parseEventTime accepts RFC3339; anything else becomes now.
func parseEventTime(raw string) time.Time {
	if raw == "" {
		return time.Now()
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	return time.Now()
}
