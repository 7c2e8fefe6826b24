package purchases

import (
	"time"

	"github.com/google/uuid"
)

// Purchase is a single-item stock increase. Creating one always posts
// a PURCHASE ledger entry in the same transaction.
type Purchase struct {
	ID              uuid.UUID `json:"id"`
	BaseID          uuid.UUID `json:"base_id"`
	EquipmentTypeID uuid.UUID `json:"equipment_type_id"`
	Quantity        int64     `json:"quantity"`
	PurchasedAt     time.Time `json:"purchased_at"`
	Vendor          *string   `json:"vendor,omitempty"`
	Reference       *string   `json:"reference,omitempty"`
	CreatedBy       uuid.UUID `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}
