// Package buffer batches activity records per subject before persistence.
package buffer

import (
	"context"
	"log"
	"sync"
	"time"

	"activity-compliance-plane/backend/internal/activity/domain"
	"activity-compliance-plane/backend/internal/activity/repository"
)

// Indexer receives successfully persisted batches for best-effort search
// indexing. Failures are logged and never re-queue records.
type Indexer interface {
	IndexBatch(ctx context.Context, records []domain.Record) error
}

// Buffer holds per-subject queues of pending activity records. Enqueue
// appends; a queue reaching max triggers an immediate flush for that subject
// only. Drains are snapshot-and-clear, so a timer flush and a size-triggered
// flush may run concurrently for the same subject without loss or
// duplication: a failed snapshot is re-queued ahead of records enqueued
// during the attempt, preserving enqueue order.
type Buffer struct {
	mu     sync.Mutex
	queues map[string][]domain.Record
	// flushing serializes drains per subject: without it, a failed drain
	// re-queued while a concurrent drain succeeds would persist later
	// records before earlier ones.
	flushing map[string]*sync.Mutex

	max     int
	repo    repository.Repository
	indexer Indexer // nil means no search indexing
}

// New returns a buffer that persists through repo when a subject's queue
// reaches max records or on explicit flush. indexer may be nil.
func New(repo repository.Repository, max int, indexer Indexer) *Buffer {
	if max <= 0 {
		max = 100
	}
	return &Buffer{
		queues:   make(map[string][]domain.Record),
		flushing: make(map[string]*sync.Mutex),
		max:      max,
		repo:     repo,
		indexer:  indexer,
	}
}

// Enqueue appends the record to its subject's queue. When the queue reaches
// the configured max, the subject is flushed immediately; the flush error, if
// any, is logged and the records stay queued for the next attempt.
func (b *Buffer) Enqueue(ctx context.Context, rec domain.Record) {
	b.mu.Lock()
	b.queues[rec.SubjectID] = append(b.queues[rec.SubjectID], rec)
	full := len(b.queues[rec.SubjectID]) >= b.max
	b.mu.Unlock()

	if full {
		b.Flush(ctx, rec.SubjectID)
	}
}

// Len returns the number of queued records for the subject.
func (b *Buffer) Len(subjectID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[subjectID])
}

// Flush persists the subject's queued records then clears them. On persist
// failure the snapshot is re-queued and the error is logged; callers never
// see flush failures (at-least-once delivery to storage). Concurrent calls
// for the same subject serialize so records reach storage in enqueue order.
func (b *Buffer) Flush(ctx context.Context, subjectID string) {
	fl := b.flushLock(subjectID)
	fl.Lock()
	defer fl.Unlock()

	b.mu.Lock()
	snapshot := b.queues[subjectID]
	if len(snapshot) == 0 {
		b.mu.Unlock()
		return
	}
	delete(b.queues, subjectID)
	b.mu.Unlock()

	if err := b.repo.SaveBatch(ctx, snapshot); err != nil {
		log.Printf("buffer: flush failed for subject %s (%d records retained): %v", subjectID, len(snapshot), err)
		b.requeue(subjectID, snapshot)
		return
	}

	if b.indexer != nil {
		if err := b.indexer.IndexBatch(ctx, snapshot); err != nil {
			log.Printf("buffer: search indexing failed for subject %s: %v", subjectID, err)
		}
	}
}

// FlushAll flushes every non-empty subject queue independently. One subject's
// failure does not block or drop the others.
func (b *Buffer) FlushAll(ctx context.Context) {
	b.mu.Lock()
	subjects := make([]string, 0, len(b.queues))
	for id := range b.queues {
		subjects = append(subjects, id)
	}
	b.mu.Unlock()

	for _, id := range subjects {
		b.Flush(ctx, id)
	}
}

// requeue puts a failed snapshot back ahead of anything enqueued while the
// flush attempt was in flight, so per-subject order is preserved on retry.
func (b *Buffer) requeue(subjectID string, snapshot []domain.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues[subjectID] = append(snapshot, b.queues[subjectID]...)
}

func (b *Buffer) flushLock(subjectID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	fl, ok := b.flushing[subjectID]
	if !ok {
		fl = &sync.Mutex{}
		b.flushing[subjectID] = fl
	}
	return fl
}

// Scheduler runs FlushAll on a fixed interval until the context is cancelled.
type Scheduler struct {
	buffer   *Buffer
	interval time.Duration
}

// NewScheduler returns a scheduler flushing buf every interval (30s if non-positive).
func NewScheduler(buf *Buffer, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{buffer: buf, interval: interval}
}

// Run blocks, flushing all subjects on each tick, until ctx is cancelled.
// A final flush runs on shutdown so pending records are not lost.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.buffer.FlushAll(ctx)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			s.buffer.FlushAll(flushCtx)
			cancel()
			return
		}
	}
}
