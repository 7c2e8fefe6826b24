package transfers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garrison-ops/garrison/internal/ledger"
	"github.com/garrison-ops/garrison/internal/scope"
	"github.com/garrison-ops/garrison/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, store TxStore) error) error
	Get(ctx context.Context, id uuid.UUID) (Transfer, error)
	List(ctx context.Context, req ListTransfersRequest, allowedBases []uuid.UUID) ([]Transfer, error)
}

// ScopeResolver narrows callers to their permitted bases.
type ScopeResolver interface {
	Resolve(ctx context.Context, ident shared.Identity) (scope.Scope, error)
}

// Service drives the transfer lifecycle. Stock leaves the source base
// and arrives at the destination only on the transition into RECEIVED;
// everything before that is paperwork.
type Service struct {
	repo   RepositoryPort
	scopes ScopeResolver
	audit  shared.AuditRecorder
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, scopes ScopeResolver, audit shared.AuditRecorder) *Service {
	return &Service{repo: repo, scopes: scopes, audit: audit}
}

var movementRoles = map[shared.Role]struct{}{
	shared.RoleAdmin:            {},
	shared.RoleLogisticsOfficer: {},
}

// Create opens a DRAFT transfer. The source base must be in the
// caller's scope; stock is not checked or reserved yet.
func (s *Service) Create(ctx context.Context, ident shared.Identity, req CreateTransferRequest) (Transfer, error) {
	if _, ok := movementRoles[ident.Role]; !ok {
		return Transfer{}, fmt.Errorf("role %s may not create transfers: %w", ident.Role, shared.ErrForbidden)
	}
	if req.FromBaseID == req.ToBaseID {
		return Transfer{}, fmt.Errorf("source and destination base must differ: %w", shared.ErrValidation)
	}
	if len(req.Items) == 0 {
		return Transfer{}, fmt.Errorf("a transfer needs at least one item: %w", shared.ErrValidation)
	}
	seen := make(map[uuid.UUID]struct{}, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return Transfer{}, fmt.Errorf("quantity must be > 0: %w", shared.ErrValidation)
		}
		if _, dup := seen[item.EquipmentTypeID]; dup {
			return Transfer{}, fmt.Errorf("duplicate equipment type %s: %w", item.EquipmentTypeID, shared.ErrValidation)
		}
		seen[item.EquipmentTypeID] = struct{}{}
	}

	callerScope, err := s.scopes.Resolve(ctx, ident)
	if err != nil {
		return Transfer{}, err
	}
	if err := callerScope.Require(req.FromBaseID); err != nil {
		return Transfer{}, err
	}

	var created Transfer
	err = s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		created, err = store.InsertTransfer(ctx, Transfer{
			FromBaseID: req.FromBaseID,
			ToBaseID:   req.ToBaseID,
			Status:     StatusDraft,
			Notes:      req.Notes,
			CreatedBy:  ident.UserID,
		})
		if err != nil {
			return err
		}
		items := make([]TransferItem, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, TransferItem{
				EquipmentTypeID: item.EquipmentTypeID,
				Quantity:        item.Quantity,
			})
		}
		created.Items, err = store.InsertItems(ctx, created.ID, items)
		return err
	})
	if err != nil {
		return Transfer{}, err
	}

	s.record(ctx, ident, "TRANSFER_CREATED", created, nil)
	return created, nil
}

// Approve moves DRAFT to APPROVED. Only an admin or the commander of
// the source base signs off release of its stock.
func (s *Service) Approve(ctx context.Context, ident shared.Identity, id uuid.UUID) (Transfer, error) {
	return s.transition(ctx, ident, id, StatusApproved, func(t Transfer) error {
		if ident.Role == shared.RoleAdmin {
			return nil
		}
		if ident.Role == shared.RoleBaseCommander && ident.BaseID == t.FromBaseID {
			return nil
		}
		return fmt.Errorf("only the source base commander may approve: %w", shared.ErrForbidden)
	})
}

// Dispatch moves APPROVED to DISPATCHED.
func (s *Service) Dispatch(ctx context.Context, ident shared.Identity, id uuid.UUID) (Transfer, error) {
	return s.transition(ctx, ident, id, StatusDispatched, func(t Transfer) error {
		if _, ok := movementRoles[ident.Role]; !ok {
			return fmt.Errorf("role %s may not dispatch transfers: %w", ident.Role, shared.ErrForbidden)
		}
		if ident.Role == shared.RoleLogisticsOfficer {
			callerScope, err := s.scopes.Resolve(ctx, ident)
			if err != nil {
				return err
			}
			if err := callerScope.Require(t.FromBaseID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Receive moves DISPATCHED to RECEIVED and posts the ledger effect:
// one TRANSFER_OUT and one TRANSFER_IN per item, all in the same
// transaction as the status flip. Source stock is re-validated here,
// under locks, because it may have been drawn down since approval.
func (s *Service) Receive(ctx context.Context, ident shared.Identity, id uuid.UUID) (Transfer, error) {
	return s.transition(ctx, ident, id, StatusReceived, func(t Transfer) error {
		if ident.Role == shared.RoleAdmin {
			return nil
		}
		if ident.Role == shared.RoleBaseCommander && ident.BaseID == t.ToBaseID {
			return nil
		}
		return fmt.Errorf("only the destination base commander may receive: %w", shared.ErrForbidden)
	})
}

// transition runs one lifecycle step: load the row under lock, check
// the actor, check the state machine, flip the status, and for the
// RECEIVED step validate and post stock.
func (s *Service) transition(ctx context.Context, ident shared.Identity, id uuid.UUID, target Status, allow func(Transfer) error) (Transfer, error) {
	var result Transfer
	now := time.Now().UTC()

	err := s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		t, err := store.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := allow(t); err != nil {
			return err
		}
		if err := ValidateTransition(t.Status, target); err != nil {
			return err
		}

		if target == StatusReceived {
			if err := postReceipt(ctx, store, t, ident.UserID, now); err != nil {
				return err
			}
		}
		if err := store.UpdateStatus(ctx, id, target, ident.UserID, now); err != nil {
			return err
		}

		t.Status = target
		switch target {
		case StatusApproved:
			t.ApprovedBy, t.ApprovedAt = &ident.UserID, &now
		case StatusDispatched:
			t.DispatchedBy, t.DispatchedAt = &ident.UserID, &now
		case StatusReceived:
			t.ReceivedBy, t.ReceivedAt = &ident.UserID, &now
		}
		result = t
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}

	s.record(ctx, ident, "TRANSFER_"+string(target), result, nil)
	return result, nil
}

// postReceipt locks the source stock keys, verifies every line is
// still covered, and appends the paired ledger entries. The pairs sum
// to zero per equipment type so global stock is conserved.
func postReceipt(ctx context.Context, store TxStore, t Transfer, actorID uuid.UUID, receivedAt time.Time) error {
	keys := make([]ledger.StockKey, 0, len(t.Items))
	for _, item := range t.Items {
		keys = append(keys, ledger.StockKey{BaseID: t.FromBaseID, EquipmentTypeID: item.EquipmentTypeID})
	}
	if err := store.LockStock(ctx, keys); err != nil {
		return err
	}

	for _, item := range t.Items {
		available, err := store.Balance(ctx, ledger.StockKey{BaseID: t.FromBaseID, EquipmentTypeID: item.EquipmentTypeID})
		if err != nil {
			return err
		}
		if available < item.Quantity {
			return &shared.StockError{
				EquipmentTypeID: item.EquipmentTypeID,
				Required:        item.Quantity,
				Available:       available,
			}
		}
	}

	entries := make([]ledger.Entry, 0, 2*len(t.Items))
	for _, item := range t.Items {
		entries = append(entries,
			ledger.Entry{
				BaseID:          t.FromBaseID,
				EquipmentTypeID: item.EquipmentTypeID,
				Movement:        ledger.MovementTransferOut,
				QtyChange:       -item.Quantity,
				RefType:         "transfer",
				RefID:           t.ID,
				OccurredAt:      receivedAt,
				CreatedBy:       actorID,
			},
			ledger.Entry{
				BaseID:          t.ToBaseID,
				EquipmentTypeID: item.EquipmentTypeID,
				Movement:        ledger.MovementTransferIn,
				QtyChange:       item.Quantity,
				RefType:         "transfer",
				RefID:           t.ID,
				OccurredAt:      receivedAt,
				CreatedBy:       actorID,
			},
		)
	}
	return store.AppendLedger(ctx, entries)
}

// Get returns one transfer if either side is in the caller's scope.
func (s *Service) Get(ctx context.Context, ident shared.Identity, id uuid.UUID) (Transfer, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return Transfer{}, err
	}
	callerScope, err := s.scopes.Resolve(ctx, ident)
	if err != nil {
		return Transfer{}, err
	}
	if !callerScope.Allows(t.FromBaseID) && !callerScope.Allows(t.ToBaseID) {
		return Transfer{}, fmt.Errorf("transfer outside caller scope: %w", shared.ErrForbidden)
	}
	return t, nil
}

// List returns transfers touching the caller's scope on either side.
func (s *Service) List(ctx context.Context, ident shared.Identity, req ListTransfersRequest) ([]Transfer, error) {
	callerScope, err := s.scopes.Resolve(ctx, ident)
	if err != nil {
		return nil, err
	}
	if callerScope.Empty() {
		return []Transfer{}, nil
	}
	if req.BaseID != uuid.Nil {
		if err := callerScope.Require(req.BaseID); err != nil {
			return nil, err
		}
	}

	var allowed []uuid.UUID
	if !callerScope.Unrestricted() {
		allowed = callerScope.BaseIDs()
	}
	result, err := s.repo.List(ctx, req, allowed)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []Transfer{}
	}
	return result, nil
}

func (s *Service) record(ctx context.Context, ident shared.Identity, action string, t Transfer, extra map[string]any) {
	if s.audit == nil {
		return
	}
	meta := map[string]any{
		"from_base_id": t.FromBaseID.String(),
		"to_base_id":   t.ToBaseID.String(),
		"items":        len(t.Items),
	}
	for k, v := range extra {
		meta[k] = v
	}
	s.audit.Record(ctx, shared.AuditRecord{
		Action:     action,
		ActorID:    ident.UserID,
		BaseID:     t.FromBaseID,
		EntityType: "transfer",
		EntityID:   t.ID,
		Metadata:   meta,
	})
}
