package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MovementType classifies a ledger entry.
type MovementType string

const (
	MovementPurchase    MovementType = "PURCHASE"
	MovementAssign      MovementType = "ASSIGN"
	MovementExpend      MovementType = "EXPEND"
	MovementTransferIn  MovementType = "TRANSFER_IN"
	MovementTransferOut MovementType = "TRANSFER_OUT"
)

// Valid reports whether t is a member of the closed movement enumeration.
func (t MovementType) Valid() bool {
	switch t {
	case MovementPurchase, MovementAssign, MovementExpend, MovementTransferIn, MovementTransferOut:
		return true
	}
	return false
}

// MovementKinds lists the kinds counted as net stock movement for
// period reporting (consumption excluded).
func MovementKinds() []MovementType {
	return []MovementType{MovementPurchase, MovementTransferIn, MovementTransferOut}
}

// Entry is one immutable signed quantity change for a
// (base, equipment type) pair, tied to its causing entity. Entries are
// never updated or deleted; corrections are offsetting entries.
type Entry struct {
	ID              uuid.UUID    `json:"id"`
	BaseID          uuid.UUID    `json:"base_id"`
	EquipmentTypeID uuid.UUID    `json:"equipment_type_id"`
	Movement        MovementType `json:"movement_type"`
	QtyChange       int64        `json:"qty_change"`
	RefType         string       `json:"ref_type"`
	RefID           uuid.UUID    `json:"ref_id"`
	OccurredAt      time.Time    `json:"occurred_at"`
	CreatedBy       uuid.UUID    `json:"created_by"`
	CreatedAt       time.Time    `json:"created_at"`
}

// StockKey identifies one serialization unit for stock-reducing writes.
type StockKey struct {
	BaseID          uuid.UUID
	EquipmentTypeID uuid.UUID
}

// BalanceQuery selects the entries summed by the balance calculator.
// A zero EquipmentTypeID matches every type at the base; an empty
// Movements slice matches every movement kind.
type BalanceQuery struct {
	BaseID          uuid.UUID
	EquipmentTypeID uuid.UUID
	Movements       []MovementType
	Before          *time.Time // occurred_at < Before
	UpTo            *time.Time // occurred_at <= UpTo
	From            *time.Time // occurred_at >= From
	To              *time.Time // occurred_at <= To
}

// ErrZeroQuantity indicates an entry with qty_change = 0.
var ErrZeroQuantity = errors.New("ledger: qty_change must be non zero")

// ErrUnknownMovement indicates a movement type outside the enumeration.
var ErrUnknownMovement = errors.New("ledger: unknown movement type")
