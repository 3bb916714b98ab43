// Package media delegates screenshot storage to the external image-hosting
// service. The service's response shape varies between deployments, so the
// result is read defensively with fallback defaults.
package media

import "context"

// Variant selects the upload endpoint by why the capture was taken.
type Variant string

const (
	VariantRegular   Variant = "regular"
	VariantViolation Variant = "violation"
)

// UploadMetadata travels with the image payload.
type UploadMetadata struct {
	SessionID string
	PageURL   string
	PageTitle string
}

// UploadResult is the collaborator's answer: where the image lives and what
// is known about it. Width/Height are zero when the service omits them.
type UploadResult struct {
	StorageURL string
	ContentID  string
	ByteSize   int64
	Width      int
	Height     int
}

// Uploader stores an image and returns its locator. Implementations own
// their timeouts; the capture pipeline imposes none of its own.
type Uploader interface {
	Upload(ctx context.Context, data []byte, subjectID string, variant Variant, meta UploadMetadata) (*UploadResult, error)
}

// Default resolution assumed when the service does not report dimensions.
const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
)
