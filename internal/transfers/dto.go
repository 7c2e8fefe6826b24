package transfers

import (
	"time"

	"github.com/google/uuid"

	"github.com/garrison-ops/garrison/internal/shared"
)

type CreateTransferRequest struct {
	FromBaseID uuid.UUID               `json:"from_base_id" validate:"required"`
	ToBaseID   uuid.UUID               `json:"to_base_id" validate:"required"`
	Notes      *string                 `json:"notes,omitempty"`
	Items      []CreateTransferItemReq `json:"items" validate:"required,min=1,dive"`
}

type CreateTransferItemReq struct {
	EquipmentTypeID uuid.UUID `json:"equipment_type_id" validate:"required"`
	Quantity        int64     `json:"quantity" validate:"required,gt=0"`
}

type ListTransfersRequest struct {
	BaseID     uuid.UUID
	FromBaseID uuid.UUID
	ToBaseID   uuid.UUID
	From       *time.Time
	To         *time.Time
	Window     shared.ListWindow
}
