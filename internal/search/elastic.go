// Package search indexes activity records into Elasticsearch for ad-hoc
// querying. Indexing is best-effort; the Postgres batch write is the source
// of truth.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"activity-compliance-plane/backend/internal/activity/domain"
)

const activityIndex = "subject-activities"

// ElasticIndexer implements buffer.Indexer on an Elasticsearch cluster.
type ElasticIndexer struct {
	client *elasticsearch.Client
}

// NewElasticIndexer connects to the cluster at addr. Returns an error if the
// client cannot be constructed; connectivity failures surface per-call.
func NewElasticIndexer(addr string) (*ElasticIndexer, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{addr},
	})
	if err != nil {
		return nil, err
	}
	return &ElasticIndexer{client: es}, nil
}

// IndexBatch indexes each record as a document. Stops at the first transport
// error; an ES-side indexing error for one document does not abort the rest.
func (e *ElasticIndexer) IndexBatch(ctx context.Context, records []domain.Record) error {
	for i := range records {
		if err := e.indexOne(ctx, &records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *ElasticIndexer) indexOne(ctx context.Context, rec *domain.Record) error {
	doc := map[string]any{
		"subject_id":       rec.SubjectID,
		"session_id":       rec.SessionID,
		"url":              rec.URL,
		"title":            rec.Title,
		"domain":           rec.Domain,
		"path":             rec.Path,
		"is_active":        rec.IsActive,
		"source":           rec.Source,
		"occurred_at":      rec.OccurredAt.Format(time.RFC3339),
		"server_timestamp": time.Now().Format(time.RFC3339),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	indexCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := e.client.Index(
		activityIndex,
		bytes.NewReader(body),
		e.client.Index.WithContext(indexCtx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Printf("search: index %s rejected document: %s", activityIndex, res.String())
	}
	return nil
}
