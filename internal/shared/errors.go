package shared

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors shared across modules. Handlers map these to HTTP
// responses in platform/httpx.
var (
	// ErrValidation indicates malformed or missing input. No side effects.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates a role or base-scope denial.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates a referenced entity is absent.
	ErrNotFound = errors.New("not found")
	// ErrStateConflict indicates the entity is not in the state the
	// requested operation needs (wrong transfer state, overdrawn stock).
	ErrStateConflict = errors.New("state conflict")
	// ErrDuplicate indicates a replayed event was rejected.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// StockError reports that a stock-reducing movement would overdraw the
// ledger balance for one equipment type.
type StockError struct {
	EquipmentTypeID uuid.UUID
	Required        int64
	Available       int64
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock: equipment type %s requires %d, available %d",
		e.EquipmentTypeID, e.Required, e.Available)
}

// Unwrap makes StockError match ErrStateConflict via errors.Is.
func (e *StockError) Unwrap() error { return ErrStateConflict }

// Meta returns the structured detail exposed to callers.
func (e *StockError) Meta() map[string]any {
	return map[string]any{
		"equipment_type_id": e.EquipmentTypeID.String(),
		"required":          e.Required,
		"available":         e.Available,
	}
}

// RemainingError reports that a linked expenditure exceeds the quantity
// still remaining on its assignment for one equipment type.
type RemainingError struct {
	EquipmentTypeID uuid.UUID
	Assigned        int64
	AlreadyExpended int64
	Remaining       int64
	Requested       int64
}

func (e *RemainingError) Error() string {
	return fmt.Sprintf("expenditure exceeds remaining assigned quantity: equipment type %s remaining %d, requested %d",
		e.EquipmentTypeID, e.Remaining, e.Requested)
}

func (e *RemainingError) Unwrap() error { return ErrStateConflict }

// Meta returns the structured detail exposed to callers.
func (e *RemainingError) Meta() map[string]any {
	return map[string]any{
		"equipment_type_id": e.EquipmentTypeID.String(),
		"assigned":          e.Assigned,
		"already_expended":  e.AlreadyExpended,
		"remaining":         e.Remaining,
		"requested":         e.Requested,
	}
}
