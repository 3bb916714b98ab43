package domain

import "time"

// Record is one observed browsing snapshot for a subject. Records are
// immutable once created; they are appended to the subject's buffer and
// removed only by a successful flush.
type Record struct {
	SubjectID  string
	SessionID  string
	URL        string
	Title      string
	Domain     string
	Path       string
	IsActive   bool
	Source     string // free-form origin tag, e.g. "url_change", "visibility", "focus"
	OccurredAt time.Time
}

// Snapshot is the subset of a record kept on the session as last-seen activity.
type Snapshot struct {
	URL        string
	Title      string
	Domain     string
	Path       string
	IsActive   bool
	OccurredAt time.Time
}

// Snapshot returns the last-seen view of the record.
func (r *Record) Snapshot() Snapshot {
	return Snapshot{
		URL:        r.URL,
		Title:      r.Title,
		Domain:     r.Domain,
		Path:       r.Path,
		IsActive:   r.IsActive,
		OccurredAt: r.OccurredAt,
	}
}
