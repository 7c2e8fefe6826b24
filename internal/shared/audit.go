package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditRecord captures a business action for the audit trail. Records
// are handed off after the business transaction commits and are never
// allowed to fail it.
type AuditRecord struct {
	Action     string         `json:"action"`
	ActorID    uuid.UUID      `json:"actor_id"`
	BaseID     uuid.UUID      `json:"base_id,omitempty"`
	EntityType string         `json:"entity_type,omitempty"`
	EntityID   uuid.UUID      `json:"entity_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// AuditRecorder hands records off to the audit sink. Implementations
// must be best-effort: a failed hand-off is logged, never returned to
// the business flow.
type AuditRecorder interface {
	Record(ctx context.Context, rec AuditRecord)
}
