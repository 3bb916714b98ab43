// Package capture implements the screenshot ingest pipeline: validate,
// decode, normalize, upload, persist, and optionally analyze.
package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"activity-compliance-plane/backend/internal/analysis"
	"activity-compliance-plane/backend/internal/capture/domain"
	"activity-compliance-plane/backend/internal/capture/repository"
	"activity-compliance-plane/backend/internal/media"
)

// Metadata is the agent-supplied context for one screenshot.
type Metadata struct {
	Timestamp string `json:"timestamp,omitempty"`
	PageURL   string `json:"pageUrl,omitempty"`
	PageTitle string `json:"pageTitle,omitempty"`
	AppName   string `json:"appName,omitempty"`
}

// IngestRequest is one screenshot handed to the pipeline.
type IngestRequest struct {
	SubjectID string
	SessionID string
	Trigger   domain.Trigger
	ImageData string // transport-encoded (base64, optionally a data URL)
	Metadata  *Metadata
}

// InvalidInputError reports which required ingest fields were present, so
// the agent's error payload can say exactly what was missing.
type InvalidInputError struct {
	HasSubjectID bool `json:"hasSubjectId"`
	HasSessionID bool `json:"hasSessionId"`
	HasImageData bool `json:"hasImageData"`
	HasMetadata  bool `json:"hasMetadata"`
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("capture: missing required fields (subject=%v session=%v image=%v metadata=%v)",
		e.HasSubjectID, e.HasSessionID, e.HasImageData, e.HasMetadata)
}

// Service runs the capture pipeline. ocr and analyzer are optional; nil
// means the collaborator is absent and the degraded default is used.
type Service struct {
	repo     repository.Repository
	uploader media.Uploader
	ocr      analysis.OCR
	analyzer analysis.Analyzer

	// analysisTimeout bounds the async OCR+AI step.
	analysisTimeout time.Duration
}

// NewService wires the pipeline. repo and uploader are required.
func NewService(repo repository.Repository, uploader media.Uploader, ocr analysis.OCR, analyzer analysis.Analyzer) *Service {
	return &Service{
		repo:            repo,
		uploader:        uploader,
		ocr:             ocr,
		analyzer:        analyzer,
		analysisTimeout: 60 * time.Second,
	}
}

// Ingest accepts one screenshot and returns the persisted record. Validation
// failures return *InvalidInputError; upload and persistence failures return
// plain errors. Analysis (violation captures only) runs asynchronously and
// never delays or fails the ingest acknowledgment.
func (s *Service) Ingest(ctx context.Context, req *IngestRequest) (*domain.Capture, error) {
	if req == nil {
		return nil, &InvalidInputError{}
	}
	invalid := &InvalidInputError{
		HasSubjectID: req.SubjectID != "",
		HasSessionID: req.SessionID != "",
		HasImageData: req.ImageData != "",
		HasMetadata:  req.Metadata != nil,
	}
	if !invalid.HasSubjectID || !invalid.HasSessionID || !invalid.HasImageData || !invalid.HasMetadata {
		return nil, invalid
	}

	raw, err := decodeImage(req.ImageData)
	if err != nil {
		return nil, fmt.Errorf("capture: decode image: %w", err)
	}

	capturedAt := normalizeTimestamp(req.Metadata.Timestamp, time.Now())

	variant := media.VariantRegular
	if req.Trigger == domain.TriggerViolation {
		variant = media.VariantViolation
	}
	uploaded, err := s.uploader.Upload(ctx, raw, req.SubjectID, variant, media.UploadMetadata{
		SessionID: req.SessionID,
		PageURL:   req.Metadata.PageURL,
		PageTitle: req.Metadata.PageTitle,
	})
	if err != nil {
		return nil, fmt.Errorf("capture: upload: %w", err)
	}

	trigger := req.Trigger
	if !trigger.Valid() {
		trigger = domain.TriggerManual
	}
	rec := &domain.Capture{
		ID:         uuid.NewString(),
		SubjectID:  req.SubjectID,
		SessionID:  req.SessionID,
		Trigger:    trigger,
		StorageURL: uploaded.StorageURL,
		ContentID:  uploaded.ContentID,
		ByteSize:   uploaded.ByteSize,
		Width:      uploaded.Width,
		Height:     uploaded.Height,
		PageURL:    orUnknown(req.Metadata.PageURL),
		PageTitle:  orUnknown(req.Metadata.PageTitle),
		AppName:    orUnknown(req.Metadata.AppName),
		CapturedAt: capturedAt,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("capture: persist: %w", err)
	}

	if trigger == domain.TriggerViolation {
		go s.analyze(rec)
	}
	return rec, nil
}

// analyze runs the optional OCR and AI steps with a background context so
// connection teardown cannot abort them. Every failure degrades to the
// default payload; the capture is already acknowledged by the time this runs.
func (s *Service) analyze(rec *domain.Capture) {
	ctx, cancel := context.WithTimeout(context.Background(), s.analysisTimeout)
	defer cancel()

	var ocrText string
	if s.ocr != nil {
		text, err := s.ocr.ExtractText(ctx, rec.StorageURL)
		if err != nil {
			log.Printf("capture: ocr failed for %s: %v", rec.ID, err)
		} else {
			ocrText = text
		}
	}

	result := analysis.DefaultResult()
	if s.analyzer != nil {
		out, err := s.analyzer.Analyze(ctx, analysis.AnalyzeRequest{
			StorageURL: rec.StorageURL,
			OCRText:    ocrText,
			PageURL:    rec.PageURL,
			PageTitle:  rec.PageTitle,
		})
		if err != nil {
			log.Printf("capture: analysis failed for %s, using default: %v", rec.ID, err)
		} else if out != nil {
			result = out
		}
	}
	result.OCRText = ocrText

	if err := s.repo.SetAnalysis(ctx, rec.ID, result); err != nil {
		log.Printf("capture: saving analysis for %s failed: %v", rec.ID, err)
	}
}

// decodeImage strips an optional data-URL prefix and base64-decodes the rest.
func decodeImage(encoded string) ([]byte, error) {
	if i := strings.Index(encoded, ","); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Some agents send URL-safe base64.
		raw, err = base64.URLEncoding.DecodeString(encoded)
	}
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	return raw, nil
}

// normalizeTimestamp parses RFC3339 or millisecond-epoch timestamps. Absent,
// unparseable, or future values are replaced with now so an invalid
// timestamp never reaches storage.
func normalizeTimestamp(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return capFuture(t, now)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return capFuture(t, now)
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
		return capFuture(time.UnixMilli(ms), now)
	}
	return now
}

func capFuture(t, now time.Time) time.Time {
	if t.After(now) {
		return now
	}
	return t
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
