package capture

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"activity-compliance-plane/backend/internal/analysis"
	"activity-compliance-plane/backend/internal/capture/domain"
	"activity-compliance-plane/backend/internal/media"
)

type mockRepo struct {
	mu       sync.Mutex
	created  []*domain.Capture
	analysis map[string]*analysis.Result
	analyzed chan string

	createErr error
	setErr    error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		analysis: make(map[string]*analysis.Result),
		analyzed: make(chan string, 4),
	}
}

func (m *mockRepo) Create(_ context.Context, c *domain.Capture) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, c)
	return nil
}

func (m *mockRepo) SetAnalysis(_ context.Context, id string, res *analysis.Result) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.mu.Lock()
	m.analysis[id] = res
	m.mu.Unlock()
	m.analyzed <- id
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*domain.Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.created {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) ListBySubject(_ context.Context, subjectID string, limit, offset int32) ([]*domain.Capture, error) {
	return nil, nil
}

type mockUploader struct {
	lastVariant media.Variant
	lastData    []byte
	err         error
}

func (m *mockUploader) Upload(_ context.Context, data []byte, subjectID string, variant media.Variant, _ media.UploadMetadata) (*media.UploadResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.lastVariant = variant
	m.lastData = data
	return &media.UploadResult{
		StorageURL: "https://media.example.com/" + subjectID + "/img.png",
		ContentID:  "img-1",
		ByteSize:   int64(len(data)),
		Width:      1920,
		Height:     1080,
	}, nil
}

type mockOCR struct {
	text string
	err  error
}

func (m *mockOCR) ExtractText(context.Context, string) (string, error) { return m.text, m.err }

type mockAnalyzer struct {
	result *analysis.Result
	err    error
}

func (m *mockAnalyzer) Analyze(context.Context, analysis.AnalyzeRequest) (*analysis.Result, error) {
	return m.result, m.err
}

func validRequest(trigger domain.Trigger) *IngestRequest {
	return &IngestRequest{
		SubjectID: "subject-1",
		SessionID: "session-1",
		Trigger:   trigger,
		ImageData: base64.StdEncoding.EncodeToString([]byte("png-bytes")),
		Metadata: &Metadata{
			Timestamp: "2026-02-10T09:30:00Z",
			PageURL:   "https://facebook.com/feed",
			PageTitle: "Facebook",
			AppName:   "chrome",
		},
	}
}

func waitAnalyzed(t *testing.T, repo *mockRepo) string {
	t.Helper()
	select {
	case id := <-repo.analyzed:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("analysis was never persisted")
		return ""
	}
}

func TestIngestValidationReportsMissingFields(t *testing.T) {
	svc := NewService(newMockRepo(), &mockUploader{}, nil, nil)

	_, err := svc.Ingest(context.Background(), &IngestRequest{SubjectID: "subject-1"})
	var invalid *InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
	if !invalid.HasSubjectID || invalid.HasSessionID || invalid.HasImageData || invalid.HasMetadata {
		t.Fatalf("unexpected field flags: %+v", invalid)
	}
}

func TestIngestPersistsRegularCapture(t *testing.T) {
	repo := newMockRepo()
	up := &mockUploader{}
	svc := NewService(repo, up, nil, nil)

	rec, err := svc.Ingest(context.Background(), validRequest(domain.TriggerScheduled))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if up.lastVariant != media.VariantRegular {
		t.Fatalf("expected regular variant, got %s", up.lastVariant)
	}
	if rec.StorageURL == "" || rec.ID == "" {
		t.Fatalf("incomplete record: %+v", rec)
	}
	want := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	if !rec.CapturedAt.Equal(want) {
		t.Fatalf("capturedAt = %v, want %v", rec.CapturedAt, want)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected 1 persisted capture, got %d", len(repo.created))
	}
}

func TestIngestToleratesDataURLPrefix(t *testing.T) {
	repo := newMockRepo()
	up := &mockUploader{}
	svc := NewService(repo, up, nil, nil)

	req := validRequest(domain.TriggerManual)
	req.ImageData = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("raw"))

	if _, err := svc.Ingest(context.Background(), req); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if string(up.lastData) != "raw" {
		t.Fatalf("decoded payload = %q", up.lastData)
	}
}

func TestIngestRejectsUndecodableImage(t *testing.T) {
	svc := NewService(newMockRepo(), &mockUploader{}, nil, nil)

	req := validRequest(domain.TriggerManual)
	req.ImageData = "%%not-base64%%"
	if _, err := svc.Ingest(context.Background(), req); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestIngestNormalizesTimestamps(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		raw  string
		want func(got time.Time) bool
	}{
		{"millisEpoch", "1760000000000", func(got time.Time) bool {
			return got.Equal(time.UnixMilli(1760000000000))
		}},
		{"invalid", "yesterday-ish", func(got time.Time) bool {
			return !got.Before(now)
		}},
		{"empty", "", func(got time.Time) bool {
			return !got.Before(now)
		}},
		{"future", time.Now().Add(48 * time.Hour).Format(time.RFC3339), func(got time.Time) bool {
			return !got.After(time.Now())
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMockRepo()
			svc := NewService(repo, &mockUploader{}, nil, nil)
			req := validRequest(domain.TriggerManual)
			req.Metadata.Timestamp = tc.raw
			rec, err := svc.Ingest(context.Background(), req)
			if err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			if !tc.want(rec.CapturedAt) {
				t.Fatalf("capturedAt = %v for raw %q", rec.CapturedAt, tc.raw)
			}
		})
	}
}

func TestIngestFillsUnknownMetadata(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &mockUploader{}, nil, nil)

	req := validRequest(domain.TriggerManual)
	req.Metadata.PageURL = ""
	req.Metadata.PageTitle = "  "
	req.Metadata.AppName = ""

	rec, err := svc.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rec.PageURL != "unknown" || rec.PageTitle != "unknown" || rec.AppName != "unknown" {
		t.Fatalf("fallbacks not applied: %+v", rec)
	}
}

func TestIngestUploadFailureSurfaces(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &mockUploader{err: errors.New("storage down")}, nil, nil)

	if _, err := svc.Ingest(context.Background(), validRequest(domain.TriggerScheduled)); err == nil {
		t.Fatal("expected upload error")
	}
	if len(repo.created) != 0 {
		t.Fatal("capture must not be persisted when upload fails")
	}
}

func TestViolationCaptureRunsAnalysis(t *testing.T) {
	repo := newMockRepo()
	ocr := &mockOCR{text: "50% off everything"}
	az := &mockAnalyzer{result: &analysis.Result{Confidence: 0.9, IsViolation: true, Category: "shopping", Description: "storefront"}}
	svc := NewService(repo, &mockUploader{}, ocr, az)

	rec, err := svc.Ingest(context.Background(), validRequest(domain.TriggerViolation))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	id := waitAnalyzed(t, repo)
	if id != rec.ID {
		t.Fatalf("analysis saved for %s, want %s", id, rec.ID)
	}
	repo.mu.Lock()
	res := repo.analysis[id]
	repo.mu.Unlock()
	if res.Category != "shopping" || res.OCRText != "50% off everything" || res.Degraded {
		t.Fatalf("unexpected analysis result: %+v", res)
	}
}

func TestViolationAnalysisDegradesOnFailure(t *testing.T) {
	repo := newMockRepo()
	ocr := &mockOCR{err: errors.New("ocr backend down")}
	az := &mockAnalyzer{err: errors.New("model timeout")}
	svc := NewService(repo, &mockUploader{}, ocr, az)

	if _, err := svc.Ingest(context.Background(), validRequest(domain.TriggerViolation)); err != nil {
		t.Fatalf("Ingest must succeed despite analysis failures: %v", err)
	}

	id := waitAnalyzed(t, repo)
	repo.mu.Lock()
	res := repo.analysis[id]
	repo.mu.Unlock()
	if !res.Degraded || !res.IsViolation || res.Confidence != 0.5 {
		t.Fatalf("expected degraded default, got %+v", res)
	}
	if !strings.Contains(res.Description, "assumed violation") {
		t.Fatalf("unexpected description: %q", res.Description)
	}
}

func TestViolationAnalysisWithoutCollaborators(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &mockUploader{}, nil, nil)

	if _, err := svc.Ingest(context.Background(), validRequest(domain.TriggerViolation)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	id := waitAnalyzed(t, repo)
	repo.mu.Lock()
	res := repo.analysis[id]
	repo.mu.Unlock()
	if !res.Degraded {
		t.Fatalf("expected degraded default when no analyzers configured, got %+v", res)
	}
}

func TestScheduledCaptureSkipsAnalysis(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &mockUploader{}, &mockOCR{text: "x"}, &mockAnalyzer{result: analysis.DefaultResult()})

	if _, err := svc.Ingest(context.Background(), validRequest(domain.TriggerScheduled)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	select {
	case id := <-repo.analyzed:
		t.Fatalf("analysis ran for scheduled capture %s", id)
	case <-time.After(100 * time.Millisecond):
	}
}
