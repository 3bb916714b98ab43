// Package analysis defines the optional OCR and AI content-analysis
// collaborators. Absence is a typed nil, not a runtime probe: the capture
// pipeline checks for nil and substitutes a degraded default result.
package analysis

import "context"

// OCR extracts visible text from a stored image.
type OCR interface {
	ExtractText(ctx context.Context, storageURL string) (string, error)
}

// Analyzer judges whether a stored image shows a policy violation.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*Result, error)
}

// AnalyzeRequest carries the image locator plus whatever context is known.
type AnalyzeRequest struct {
	StorageURL string `json:"storageUrl"`
	OCRText    string `json:"ocrText,omitempty"`
	PageURL    string `json:"pageUrl,omitempty"`
	PageTitle  string `json:"pageTitle,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Result is the analysis verdict attached to a capture record.
type Result struct {
	Confidence  float64 `json:"confidence"`
	IsViolation bool    `json:"isViolation"`
	Category    string  `json:"category,omitempty"`
	Description string  `json:"description,omitempty"`
	OCRText     string  `json:"ocrText,omitempty"`
	Degraded    bool    `json:"degraded,omitempty"`
}

// DefaultResult is the degraded payload used when collaborators are absent
// or failing: moderate confidence, assumed violation (the capture was
// triggered by one).
func DefaultResult() *Result {
	return &Result{
		Confidence:  0.5,
		IsViolation: true,
		Description: "analysis unavailable; assumed violation from trigger",
		Degraded:    true,
	}
}
