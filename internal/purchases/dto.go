package purchases

import (
	"time"

	"github.com/google/uuid"

	"github.com/garrison-ops/garrison/internal/shared"
)

type CreatePurchaseRequest struct {
	BaseID          uuid.UUID  `json:"base_id" validate:"required"`
	EquipmentTypeID uuid.UUID  `json:"equipment_type_id" validate:"required"`
	Quantity        int64      `json:"quantity" validate:"required,gt=0"`
	PurchasedAt     *time.Time `json:"purchased_at,omitempty"`
	Vendor          *string    `json:"vendor,omitempty"`
	Reference       *string    `json:"reference,omitempty"`
}

type ListPurchasesRequest struct {
	BaseID          uuid.UUID
	EquipmentTypeID uuid.UUID
	From            *time.Time
	To              *time.Time
	Window          shared.ListWindow
}
