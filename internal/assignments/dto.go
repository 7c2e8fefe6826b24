package assignments

import (
	"time"

	"github.com/google/uuid"

	"github.com/garrison-ops/garrison/internal/shared"
)

type CreateAssignmentRequest struct {
	BaseID     uuid.UUID                 `json:"base_id" validate:"required"`
	AssignedTo string                    `json:"assigned_to" validate:"required"`
	AssignedAt *time.Time                `json:"assigned_at,omitempty"`
	Notes      *string                   `json:"notes,omitempty"`
	Items      []CreateAssignmentItemReq `json:"items" validate:"required,min=1,dive"`
}

type CreateAssignmentItemReq struct {
	EquipmentTypeID uuid.UUID `json:"equipment_type_id" validate:"required"`
	Quantity        int64     `json:"quantity" validate:"required,gt=0"`
}

type ListAssignmentsRequest struct {
	BaseID          uuid.UUID
	EquipmentTypeID uuid.UUID
	From            *time.Time
	To              *time.Time
	Window          shared.ListWindow
}
