package expenditures

import (
	"time"

	"github.com/google/uuid"
)

// Expenditure consumes stock. A direct expenditure draws from base
// stock and posts EXPEND ledger entries; one linked to an assignment
// consumes the assignment's remaining quantity and posts nothing, the
// stock having already left the base when it was assigned.
type Expenditure struct {
	ID           uuid.UUID         `json:"id"`
	BaseID       uuid.UUID         `json:"base_id"`
	AssignmentID *uuid.UUID        `json:"assignment_id,omitempty"`
	ExpendedAt   time.Time         `json:"expended_at"`
	Reason       *string           `json:"reason,omitempty"`
	CreatedBy    uuid.UUID         `json:"created_by"`
	CreatedAt    time.Time         `json:"created_at"`
	Items        []ExpenditureItem `json:"items,omitempty"`
}

// ExpenditureItem is one equipment line on an expenditure.
type ExpenditureItem struct {
	ID              uuid.UUID `json:"id"`
	ExpenditureID   uuid.UUID `json:"expenditure_id"`
	EquipmentTypeID uuid.UUID `json:"equipment_type_id"`
	Quantity        int64     `json:"quantity"`
}
