package media

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUploadVariantSelectsEndpoint(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"url": "https://cdn.example/abc.png", "id": "abc", "bytes": 42, "width": 800, "height": 600,
		})
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.URL, "secret")
	res, err := u.Upload(context.Background(), []byte("png-bytes"), "u1", VariantViolation, UploadMetadata{SessionID: "s1"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if gotPath != "/v1/screenshots/violation" {
		t.Errorf("path = %q, want violation endpoint", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth = %q", gotAuth)
	}
	if res.StorageURL != "https://cdn.example/abc.png" || res.ContentID != "abc" ||
		res.ByteSize != 42 || res.Width != 800 || res.Height != 600 {
		t.Errorf("result = %+v", res)
	}

	if _, err := u.Upload(context.Background(), []byte("x"), "u1", VariantRegular, UploadMetadata{}); err != nil {
		t.Fatalf("Upload regular: %v", err)
	}
	if gotPath != "/v1/screenshots" {
		t.Errorf("path = %q, want regular endpoint", gotPath)
	}
}

func TestUploadDefensiveDefaults(t *testing.T) {
	tests := []struct {
		name     string
		response map[string]any
		wantURL  string
		wantID   string
		wantSize int64
		wantW    int
		wantH    int
	}{
		{
			name:     "alternate field spellings",
			response: map[string]any{"location": "https://cdn.example/x.png", "public_id": "x", "size": 7},
			wantURL:  "https://cdn.example/x.png", wantID: "x", wantSize: 7,
			wantW: DefaultWidth, wantH: DefaultHeight,
		},
		{
			name:     "missing everything",
			response: map[string]any{},
			wantURL:  "", wantID: "", wantSize: 9, // payload length
			wantW: DefaultWidth, wantH: DefaultHeight,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(tt.response)
			}))
			defer srv.Close()

			u := NewHTTPUploader(srv.URL, "")
			res, err := u.Upload(context.Background(), []byte("png-bytes"), "u1", VariantRegular, UploadMetadata{})
			if err != nil {
				t.Fatalf("Upload: %v", err)
			}
			if res.StorageURL != tt.wantURL || res.ContentID != tt.wantID ||
				res.ByteSize != tt.wantSize || res.Width != tt.wantW || res.Height != tt.wantH {
				t.Errorf("result = %+v", res)
			}
		})
	}
}

func TestUploadServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	u := NewHTTPUploader(srv.URL, "")
	if _, err := u.Upload(context.Background(), []byte("x"), "u1", VariantRegular, UploadMetadata{}); err == nil {
		t.Fatal("expected error on 502")
	}
}
