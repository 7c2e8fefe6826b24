package expenditures

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/garrison-ops/garrison/internal/ledger"
	"github.com/garrison-ops/garrison/internal/scope"
	"github.com/garrison-ops/garrison/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, store TxStore) error) error
	List(ctx context.Context, req ListExpendituresRequest, allowedBases []uuid.UUID) ([]Expenditure, error)
}

// ScopeResolver narrows callers to their permitted bases.
type ScopeResolver interface {
	Resolve(ctx context.Context, ident shared.Identity) (scope.Scope, error)
}

// Service validates and records expenditures, direct or linked.
type Service struct {
	repo   RepositoryPort
	scopes ScopeResolver
	audit  shared.AuditRecorder
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, scopes ScopeResolver, audit shared.AuditRecorder) *Service {
	return &Service{repo: repo, scopes: scopes, audit: audit}
}

var createRoles = map[shared.Role]struct{}{
	shared.RoleAdmin:         {},
	shared.RoleBaseCommander: {},
}

// Create records an expenditure. Direct expenditures check base stock
// under advisory locks and post EXPEND ledger entries; linked ones
// check the assignment's remaining quantity under the assignment row
// lock and post nothing.
func (s *Service) Create(ctx context.Context, ident shared.Identity, req CreateExpenditureRequest) (Expenditure, error) {
	if _, ok := createRoles[ident.Role]; !ok {
		return Expenditure{}, fmt.Errorf("role %s may not record expenditures: %w", ident.Role, shared.ErrForbidden)
	}
	if len(req.Items) == 0 {
		return Expenditure{}, fmt.Errorf("an expenditure needs at least one item: %w", shared.ErrValidation)
	}

	requested := make(map[uuid.UUID]int64, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return Expenditure{}, fmt.Errorf("quantity must be > 0: %w", shared.ErrValidation)
		}
		requested[item.EquipmentTypeID] += item.Quantity
	}

	callerScope, err := s.scopes.Resolve(ctx, ident)
	if err != nil {
		return Expenditure{}, err
	}
	if err := callerScope.Require(req.BaseID); err != nil {
		return Expenditure{}, err
	}

	expendedAt := time.Now().UTC()
	if req.ExpendedAt != nil {
		expendedAt = req.ExpendedAt.UTC()
	}

	types := make([]uuid.UUID, 0, len(requested))
	for typeID := range requested {
		types = append(types, typeID)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].String() < types[j].String() })

	var created Expenditure
	err = s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		if req.AssignmentID != nil {
			if err := checkRemaining(ctx, store, *req.AssignmentID, req.BaseID, types, requested); err != nil {
				return err
			}
		} else {
			if err := checkStock(ctx, store, req.BaseID, types, requested); err != nil {
				return err
			}
		}

		created, err = store.InsertExpenditure(ctx, Expenditure{
			BaseID:       req.BaseID,
			AssignmentID: req.AssignmentID,
			ExpendedAt:   expendedAt,
			Reason:       req.Reason,
			CreatedBy:    ident.UserID,
		})
		if err != nil {
			return err
		}
		items := make([]ExpenditureItem, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, ExpenditureItem{
				EquipmentTypeID: item.EquipmentTypeID,
				Quantity:        item.Quantity,
			})
		}
		created.Items, err = store.InsertItems(ctx, created.ID, items)
		if err != nil {
			return err
		}

		// Linked expenditures consume the assignment, not base
		// stock; the ASSIGN entry already moved it out.
		if req.AssignmentID != nil {
			return nil
		}
		entries := make([]ledger.Entry, 0, len(types))
		for _, typeID := range types {
			entries = append(entries, ledger.Entry{
				BaseID:          req.BaseID,
				EquipmentTypeID: typeID,
				Movement:        ledger.MovementExpend,
				QtyChange:       -requested[typeID],
				RefType:         "expenditure",
				RefID:           created.ID,
				OccurredAt:      expendedAt,
				CreatedBy:       ident.UserID,
			})
		}
		return store.AppendLedger(ctx, entries)
	})
	if err != nil {
		return Expenditure{}, err
	}

	if s.audit != nil {
		meta := map[string]any{"items": len(created.Items)}
		if created.AssignmentID != nil {
			meta["assignment_id"] = created.AssignmentID.String()
		}
		s.audit.Record(ctx, shared.AuditRecord{
			Action:     "EXPENDITURE_CREATED",
			ActorID:    ident.UserID,
			BaseID:     created.BaseID,
			EntityType: "expenditure",
			EntityID:   created.ID,
			Metadata:   meta,
		})
	}
	return created, nil
}

func checkStock(ctx context.Context, store TxStore, baseID uuid.UUID, types []uuid.UUID, requested map[uuid.UUID]int64) error {
	keys := make([]ledger.StockKey, 0, len(types))
	for _, typeID := range types {
		keys = append(keys, ledger.StockKey{BaseID: baseID, EquipmentTypeID: typeID})
	}
	if err := store.LockStock(ctx, keys); err != nil {
		return err
	}
	for _, typeID := range types {
		available, err := store.Balance(ctx, ledger.StockKey{BaseID: baseID, EquipmentTypeID: typeID})
		if err != nil {
			return err
		}
		if available < requested[typeID] {
			return &shared.StockError{
				EquipmentTypeID: typeID,
				Required:        requested[typeID],
				Available:       available,
			}
		}
	}
	return nil
}

func checkRemaining(ctx context.Context, store TxStore, assignmentID, baseID uuid.UUID, types []uuid.UUID, requested map[uuid.UUID]int64) error {
	snap, err := store.LockAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if snap.BaseID != baseID {
		return fmt.Errorf("assignment %s belongs to a different base: %w", assignmentID, shared.ErrValidation)
	}
	expended, err := store.ExpendedAgainst(ctx, assignmentID)
	if err != nil {
		return err
	}
	for _, typeID := range types {
		assigned, ok := snap.Assigned[typeID]
		if !ok {
			return fmt.Errorf("equipment type %s was never assigned: %w", typeID, shared.ErrStateConflict)
		}
		remaining := assigned - expended[typeID]
		if requested[typeID] > remaining {
			return &shared.RemainingError{
				EquipmentTypeID: typeID,
				Assigned:        assigned,
				AlreadyExpended: expended[typeID],
				Remaining:       remaining,
				Requested:       requested[typeID],
			}
		}
	}
	return nil
}

// List returns expenditures visible inside the caller's scope.
func (s *Service) List(ctx context.Context, ident shared.Identity, req ListExpendituresRequest) ([]Expenditure, error) {
	callerScope, err := s.scopes.Resolve(ctx, ident)
	if err != nil {
		return nil, err
	}
	if callerScope.Empty() {
		return []Expenditure{}, nil
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
		result = []Expenditure{}
	}
	return result, nil
}
