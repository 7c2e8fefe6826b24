package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/garrison-ops/garrison/internal/ledger"
	"github.com/garrison-ops/garrison/internal/scope"
	"github.com/garrison-ops/garrison/internal/shared"
)

// LedgerReader sums ledger entries.
type LedgerReader interface {
	Sum(ctx context.Context, q ledger.BalanceQuery) (int64, error)
}

// ItemReader sums assignment and expenditure line items by their event
// timestamps. These figures intentionally come from the entities, not
// the ledger, so linked expenditures (which post no ledger entry) are
// counted.
type ItemReader interface {
	AssignedTotal(ctx context.Context, baseID, equipmentTypeID uuid.UUID, from, to time.Time) (int64, error)
	ExpendedTotal(ctx context.Context, baseID, equipmentTypeID uuid.UUID, from, to time.Time) (int64, error)
}

// ScopeResolver narrows callers to their permitted bases.
type ScopeResolver interface {
	Resolve(ctx context.Context, ident shared.Identity) (scope.Scope, error)
}

// SummaryRequest selects one base and window; equipment type optional.
type SummaryRequest struct {
	BaseID          uuid.UUID
	EquipmentTypeID uuid.UUID
	From            time.Time
	To              time.Time
}

// Summary is the period stock picture for one base.
type Summary struct {
	BaseID          uuid.UUID  `json:"base_id"`
	EquipmentTypeID *uuid.UUID `json:"equipment_type_id,omitempty"`
	From            time.Time  `json:"from"`
	To              time.Time  `json:"to"`
	OpeningBalance  int64      `json:"opening_balance"`
	ClosingBalance  int64      `json:"closing_balance"`
	NetMovement
	Assigned int64 `json:"assigned"`
	Expended int64 `json:"expended"`
}

// NetMovement is the movement breakdown inside the window.
type NetMovement struct {
	Purchases   int64 `json:"purchases"`
	TransferIn  int64 `json:"transfer_in"`
	TransferOut int64 `json:"transfer_out"`
	Net         int64 `json:"net_movement"`
}

// Service aggregates period figures from the ledger and the entities.
type Service struct {
	entries LedgerReader
	items   ItemReader
	scopes  ScopeResolver
}

// NewService constructs a Service.
func NewService(entries LedgerReader, items ItemReader, scopes ScopeResolver) *Service {
	return &Service{entries: entries, items: items, scopes: scopes}
}

// Summary computes opening and closing balances from the full ledger
// and the movement breakdown over the window. Opening is the sum
// strictly before the window; closing includes everything up to its
// end.
func (s *Service) Summary(ctx context.Context, ident shared.Identity, req SummaryRequest) (Summary, error) {
	callerScope, err := s.scopes.Resolve(ctx, ident)
	if err != nil {
		return Summary{}, err
	}
	if err := callerScope.Require(req.BaseID); err != nil {
		return Summary{}, err
	}

	result := Summary{BaseID: req.BaseID, From: req.From, To: req.To}
	if req.EquipmentTypeID != uuid.Nil {
		id := req.EquipmentTypeID
		result.EquipmentTypeID = &id
	}

	base := ledger.BalanceQuery{BaseID: req.BaseID, EquipmentTypeID: req.EquipmentTypeID}

	opening := base
	opening.Before = &req.From
	if result.OpeningBalance, err = s.entries.Sum(ctx, opening); err != nil {
		return Summary{}, err
	}

	closing := base
	closing.UpTo = &req.To
	if result.ClosingBalance, err = s.entries.Sum(ctx, closing); err != nil {
		return Summary{}, err
	}

	if result.NetMovement, err = s.netMovement(ctx, req); err != nil {
		return Summary{}, err
	}

	if result.Assigned, err = s.items.AssignedTotal(ctx, req.BaseID, req.EquipmentTypeID, req.From, req.To); err != nil {
		return Summary{}, err
	}
	if result.Expended, err = s.items.ExpendedTotal(ctx, req.BaseID, req.EquipmentTypeID, req.From, req.To); err != nil {
		return Summary{}, err
	}
	return result, nil
}

// NetMovement returns just the movement breakdown for the window.
func (s *Service) NetMovement(ctx context.Context, ident shared.Identity, req SummaryRequest) (NetMovement, error) {
	callerScope, err := s.scopes.Resolve(ctx, ident)
	if err != nil {
		return NetMovement{}, err
	}
	if err := callerScope.Require(req.BaseID); err != nil {
		return NetMovement{}, err
	}
	return s.netMovement(ctx, req)
}

func (s *Service) netMovement(ctx context.Context, req SummaryRequest) (NetMovement, error) {
	var nm NetMovement

	sum := func(movement ledger.MovementType) (int64, error) {
		return s.entries.Sum(ctx, ledger.BalanceQuery{
			BaseID:          req.BaseID,
			EquipmentTypeID: req.EquipmentTypeID,
			Movements:       []ledger.MovementType{movement},
			From:            &req.From,
			To:              &req.To,
		})
	}

	var err error
	if nm.Purchases, err = sum(ledger.MovementPurchase); err != nil {
		return NetMovement{}, err
	}
	if nm.TransferIn, err = sum(ledger.MovementTransferIn); err != nil {
		return NetMovement{}, err
	}
	out, err := sum(ledger.MovementTransferOut)
	if err != nil {
		return NetMovement{}, err
	}
	// TRANSFER_OUT entries are negative; report the magnitude.
	if out < 0 {
		out = -out
	}
	nm.TransferOut = out
	nm.Net = nm.Purchases + nm.TransferIn - nm.TransferOut
	return nm, nil
}
