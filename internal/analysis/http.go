package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPOCR calls a text-extraction service.
type HTTPOCR struct {
	baseURL string
	client  *http.Client
}

// NewHTTPOCR returns an OCR client for baseURL, which must be non-empty.
// Callers leave the OCR interface nil when the service is unconfigured.
func NewHTTPOCR(baseURL string) *HTTPOCR {
	return &HTTPOCR{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

// ExtractText asks the service for the text visible at storageURL.
func (o *HTTPOCR) ExtractText(ctx context.Context, storageURL string) (string, error) {
	body, err := json.Marshal(map[string]string{"url": storageURL})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/ocr", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("analysis: ocr returned %s", resp.Status)
	}
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.Text, nil
}

// HTTPAnalyzer calls an AI content-analysis service.
type HTTPAnalyzer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAnalyzer returns an analyzer client for baseURL, which must be
// non-empty. Callers leave the Analyzer interface nil when unconfigured.
func NewHTTPAnalyzer(baseURL string) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Analyze submits the request and decodes the verdict.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, reqBody AnalyzeRequest) (*Result, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("analysis: analyze returned %s", resp.Status)
	}
	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
