package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPUploader talks to the media host's JSON API.
type HTTPUploader struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPUploader returns an uploader posting to baseURL. apiKey may be empty.
func NewHTTPUploader(baseURL, apiKey string) *HTTPUploader {
	return &HTTPUploader{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type uploadRequest struct {
	SubjectID string `json:"subjectId"`
	SessionID string `json:"sessionId"`
	PageURL   string `json:"pageUrl,omitempty"`
	PageTitle string `json:"pageTitle,omitempty"`
	Image     string `json:"image"` // base64
}

// uploadResponse mirrors the known response field spellings across media
// host versions; absent fields decode to zero values.
type uploadResponse struct {
	URL      string `json:"url"`
	Location string `json:"location"`
	ID       string `json:"id"`
	PublicID string `json:"public_id"`
	Bytes    int64  `json:"bytes"`
	Size     int64  `json:"size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Upload posts the image and reads the result defensively: locator and
// content id accept either field spelling, missing dimensions fall back to
// the assumed default resolution, missing size falls back to the payload
// length.
func (u *HTTPUploader) Upload(ctx context.Context, data []byte, subjectID string, variant Variant, meta UploadMetadata) (*UploadResult, error) {
	if u.baseURL == "" {
		return nil, fmt.Errorf("media: no base URL configured")
	}
	endpoint := u.baseURL + "/v1/screenshots"
	if variant == VariantViolation {
		endpoint += "/violation"
	}

	body, err := json.Marshal(uploadRequest{
		SubjectID: subjectID,
		SessionID: meta.SessionID,
		PageURL:   meta.PageURL,
		PageTitle: meta.PageTitle,
		Image:     base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if u.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.apiKey)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("media: upload returned %s", resp.Status)
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("media: decode upload response: %w", err)
	}
	return normalizeResult(&parsed, int64(len(data))), nil
}

func normalizeResult(parsed *uploadResponse, payloadLen int64) *UploadResult {
	out := &UploadResult{
		StorageURL: parsed.URL,
		ContentID:  parsed.ID,
		ByteSize:   parsed.Bytes,
		Width:      parsed.Width,
		Height:     parsed.Height,
	}
	if out.StorageURL == "" {
		out.StorageURL = parsed.Location
	}
	if out.ContentID == "" {
		out.ContentID = parsed.PublicID
	}
	if out.ByteSize <= 0 {
		out.ByteSize = parsed.Size
	}
	if out.ByteSize <= 0 {
		out.ByteSize = payloadLen
	}
	if out.Width <= 0 || out.Height <= 0 {
		out.Width = DefaultWidth
		out.Height = DefaultHeight
	}
	return out
}
