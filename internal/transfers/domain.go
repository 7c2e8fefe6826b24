package transfers

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garrison-ops/garrison/internal/shared"
)

// Status is the transfer lifecycle state.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusApproved   Status = "APPROVED"
	StatusDispatched Status = "DISPATCHED"
	StatusReceived   Status = "RECEIVED"
)

// predecessor maps each non-initial status to the exact state a
// transfer must be in before entering it. The lifecycle only moves
// forward; RECEIVED is terminal.
var predecessor = map[Status]Status{
	StatusApproved:   StatusDraft,
	StatusDispatched: StatusApproved,
	StatusReceived:   StatusDispatched,
}

// ValidateTransition rejects any move that is not the single forward
// step from the current state.
func ValidateTransition(current, target Status) error {
	want, ok := predecessor[target]
	if !ok {
		return fmt.Errorf("cannot transition to %s: %w", target, shared.ErrStateConflict)
	}
	if current != want {
		return fmt.Errorf("only %s can become %s, transfer is %s: %w", want, target, current, shared.ErrStateConflict)
	}
	return nil
}

// Transfer is a cross-base movement. Status and the per-transition
// actor/timestamp columns are its only mutable fields; ledger effects
// post exactly once, on the transition into RECEIVED.
type Transfer struct {
	ID           uuid.UUID      `json:"id"`
	FromBaseID   uuid.UUID      `json:"from_base_id"`
	ToBaseID     uuid.UUID      `json:"to_base_id"`
	Status       Status         `json:"status"`
	Notes        *string        `json:"notes,omitempty"`
	CreatedBy    uuid.UUID      `json:"created_by"`
	CreatedAt    time.Time      `json:"created_at"`
	ApprovedBy   *uuid.UUID     `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time     `json:"approved_at,omitempty"`
	DispatchedBy *uuid.UUID     `json:"dispatched_by,omitempty"`
	DispatchedAt *time.Time     `json:"dispatched_at,omitempty"`
	ReceivedBy   *uuid.UUID     `json:"received_by,omitempty"`
	ReceivedAt   *time.Time     `json:"received_at,omitempty"`
	Items        []TransferItem `json:"items,omitempty"`
}

// TransferItem is one equipment line on a transfer.
type TransferItem struct {
	ID              uuid.UUID `json:"id"`
	TransferID      uuid.UUID `json:"transfer_id"`
	EquipmentTypeID uuid.UUID `json:"equipment_type_id"`
	Quantity        int64     `json:"quantity"`
}
