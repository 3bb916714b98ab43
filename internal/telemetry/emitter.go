package telemetry

import (
	"context"

	"activity-compliance-plane/backend/internal/telemetry/domain"
)

// EventEmitter emits internal telemetry events (e.g. to OTel Logs or Kafka).
// Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}
