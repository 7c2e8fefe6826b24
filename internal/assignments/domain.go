package assignments

import (
	"time"

	"github.com/google/uuid"
)

// Assignment hands base stock to a person. Creation posts one negative
// ASSIGN ledger entry per line; linked expenditures later consume from
// the lines without touching the ledger again.
type Assignment struct {
	ID         uuid.UUID        `json:"id"`
	BaseID     uuid.UUID        `json:"base_id"`
	AssignedTo string           `json:"assigned_to"`
	AssignedAt time.Time        `json:"assigned_at"`
	Notes      *string          `json:"notes,omitempty"`
	CreatedBy  uuid.UUID        `json:"created_by"`
	CreatedAt  time.Time        `json:"created_at"`
	Items      []AssignmentItem `json:"items,omitempty"`
}

// AssignmentItem is one equipment line on an assignment.
type AssignmentItem struct {
	ID              uuid.UUID `json:"id"`
	AssignmentID    uuid.UUID `json:"assignment_id"`
	EquipmentTypeID uuid.UUID `json:"equipment_type_id"`
	Quantity        int64     `json:"quantity"`
}
