// Package registry owns the in-memory map of subject to monitoring session.
// It is the single writer for session state; locks are sharded by subject so
// unrelated subjects never contend.
package registry

import (
	"context"
	"hash/fnv"
	"log"
	"sync"
	"time"

	activitydomain "activity-compliance-plane/backend/internal/activity/domain"
	"activity-compliance-plane/backend/internal/session/domain"
)

const shardCount = 16

// Flusher drains a subject's pending activity. Satisfied by buffer.Buffer.
type Flusher interface {
	Flush(ctx context.Context, subjectID string)
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// Registry is the authoritative session map. A session either exists with
// valid capabilities or does not exist; there are no intermediate states.
type Registry struct {
	shards   [shardCount]shard
	cooldown time.Duration
	flusher  Flusher
}

// New returns a registry with the given violation cooldown window. flusher
// may be nil (no final flush on stop), mainly for tests.
func New(cooldown time.Duration, flusher Flusher) *Registry {
	r := &Registry{cooldown: cooldown, flusher: flusher}
	for i := range r.shards {
		r.shards[i].sessions = make(map[string]*domain.Session)
	}
	return r
}

func (r *Registry) shardFor(subjectID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(subjectID))
	return &r.shards[h.Sum32()%shardCount]
}

// Start creates the session, replacing any existing entry for the subject so
// a lost stop event never leaves half-cleaned state behind.
func (r *Registry) Start(subjectID, sessionID string, conn domain.Conn, caps domain.Capabilities) {
	s := r.shardFor(subjectID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.sessions[subjectID]; ok {
		log.Printf("registry: replacing session %s for subject %s", old.SessionID, subjectID)
	}
	s.sessions[subjectID] = &domain.Session{
		SubjectID:    subjectID,
		SessionID:    sessionID,
		Conn:         conn,
		Capabilities: caps,
		StartedAt:    time.Now(),
	}
}

// Stop flushes the subject's pending activity, then removes the session.
// Always succeeds: stopping an unknown subject or flushing an empty buffer
// is a no-op. Returns false when no session existed.
func (r *Registry) Stop(ctx context.Context, subjectID string) bool {
	// Flush before taking the shard lock; the buffer has its own locking and
	// the final drain must not serialize other subjects on this shard.
	if r.flusher != nil {
		r.flusher.Flush(ctx, subjectID)
	}
	s := r.shardFor(subjectID)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[subjectID]
	delete(s.sessions, subjectID)
	return ok
}

// UpdateLastActivity records the subject's latest activity snapshot.
// A missing session is logged and ignored, not an error.
func (r *Registry) UpdateLastActivity(subjectID string, snap activitydomain.Snapshot) bool {
	s := r.shardFor(subjectID)
	s.mu.Lock()
	defer s.mu.Unlock()
	ses, ok := s.sessions[subjectID]
	if !ok {
		log.Printf("registry: activity update for unknown subject %s dropped", subjectID)
		return false
	}
	ses.LastActivity = &snap
	return true
}

// RecordViolation returns false when the subject is still inside the
// cooldown window since its last violation, or has no session. Otherwise it
// bumps the violation counter, stamps the violation time, and returns true,
// all atomically under the subject's shard lock.
func (r *Registry) RecordViolation(subjectID string, now time.Time) bool {
	s := r.shardFor(subjectID)
	s.mu.Lock()
	defer s.mu.Unlock()
	ses, ok := s.sessions[subjectID]
	if !ok {
		return false
	}
	if !ses.LastViolationAt.IsZero() && now.Sub(ses.LastViolationAt) < r.cooldown {
		return false
	}
	ses.ViolationCount++
	ses.LastViolationAt = now
	return true
}

// OnDisconnect finds the session bound to conn and performs the same cleanup
// as Stop. Returns the subject id and true when a session was cleaned up.
func (r *Registry) OnDisconnect(ctx context.Context, conn domain.Conn) (string, bool) {
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		var subjectID string
		for id, ses := range s.sessions {
			if ses.Conn == conn {
				subjectID = id
				break
			}
		}
		s.mu.Unlock()
		if subjectID != "" {
			r.Stop(ctx, subjectID)
			return subjectID, true
		}
	}
	return "", false
}

// Get returns a copy of the subject's session, or nil when absent. The copy
// keeps callers from racing the registry's single-writer mutations.
func (r *Registry) Get(subjectID string) *domain.Session {
	s := r.shardFor(subjectID)
	s.mu.Lock()
	defer s.mu.Unlock()
	ses, ok := s.sessions[subjectID]
	if !ok {
		return nil
	}
	cp := *ses
	return &cp
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		n += len(s.sessions)
		s.mu.Unlock()
	}
	return n
}
