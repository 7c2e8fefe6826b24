package expenditures

import (
	"time"

	"github.com/google/uuid"

	"github.com/garrison-ops/garrison/internal/shared"
)

type CreateExpenditureRequest struct {
	BaseID       uuid.UUID                  `json:"base_id" validate:"required"`
	AssignmentID *uuid.UUID                 `json:"assignment_id,omitempty"`
	ExpendedAt   *time.Time                 `json:"expended_at,omitempty"`
	Reason       *string                    `json:"reason,omitempty"`
	Items        []CreateExpenditureItemReq `json:"items" validate:"required,min=1,dive"`
}

type CreateExpenditureItemReq struct {
	EquipmentTypeID uuid.UUID `json:"equipment_type_id" validate:"required"`
	Quantity        int64     `json:"quantity" validate:"required,gt=0"`
}

type ListExpendituresRequest struct {
	BaseID          uuid.UUID
	AssignmentID    uuid.UUID
	EquipmentTypeID uuid.UUID
	From            *time.Time
	To              *time.Time
	Window          shared.ListWindow
}
