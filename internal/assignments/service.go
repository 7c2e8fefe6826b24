package assignments

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
	List(ctx context.Context, req ListAssignmentsRequest, allowedBases []uuid.UUID) ([]Assignment, error)
}

// ScopeResolver narrows callers to their permitted bases.
type ScopeResolver interface {
	Resolve(ctx context.Context, ident shared.Identity) (scope.Scope, error)
}

// Service validates and records assignments.
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

// Create validates stock per equipment type under advisory locks and
// commits the assignment with its negative ASSIGN ledger entries as one
// unit. Lines are grouped by equipment type before the check so two
// lines for the same type cannot each pass individually.
func (s *Service) Create(ctx context.Context, ident shared.Identity, req CreateAssignmentRequest) (Assignment, error) {
	if _, ok := createRoles[ident.Role]; !ok {
		return Assignment{}, fmt.Errorf("role %s may not create assignments: %w", ident.Role, shared.ErrForbidden)
	}
	if req.AssignedTo == "" {
		return Assignment{}, fmt.Errorf("assigned_to is required: %w", shared.ErrValidation)
	}
	if len(req.Items) == 0 {
		return Assignment{}, fmt.Errorf("an assignment needs at least one item: %w", shared.ErrValidation)
	}

	required := make(map[uuid.UUID]int64, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return Assignment{}, fmt.Errorf("quantity must be > 0: %w", shared.ErrValidation)
		}
		required[item.EquipmentTypeID] += item.Quantity
	}

	callerScope, err := s.scopes.Resolve(ctx, ident)
	if err != nil {
		return Assignment{}, err
	}
	if err := callerScope.Require(req.BaseID); err != nil {
		return Assignment{}, err
	}

	assignedAt := time.Now().UTC()
	if req.AssignedAt != nil {
		assignedAt = req.AssignedAt.UTC()
	}

	types := make([]uuid.UUID, 0, len(required))
	for typeID := range required {
		types = append(types, typeID)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].String() < types[j].String() })

	var created Assignment
	err = s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		keys := make([]ledger.StockKey, 0, len(types))
		for _, typeID := range types {
			keys = append(keys, ledger.StockKey{BaseID: req.BaseID, EquipmentTypeID: typeID})
		}
		if err := store.LockStock(ctx, keys); err != nil {
			return err
		}
		for _, typeID := range types {
			available, err := store.Balance(ctx, ledger.StockKey{BaseID: req.BaseID, EquipmentTypeID: typeID})
			if err != nil {
				return err
			}
			if available < required[typeID] {
				return &shared.StockError{
					EquipmentTypeID: typeID,
					Required:        required[typeID],
					Available:       available,
				}
			}
		}

		created, err = store.InsertAssignment(ctx, Assignment{
			BaseID:     req.BaseID,
			AssignedTo: req.AssignedTo,
			AssignedAt: assignedAt,
			Notes:      req.Notes,
			CreatedBy:  ident.UserID,
		})
		if err != nil {
			return err
		}
		items := make([]AssignmentItem, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, AssignmentItem{
				EquipmentTypeID: item.EquipmentTypeID,
				Quantity:        item.Quantity,
			})
		}
		created.Items, err = store.InsertItems(ctx, created.ID, items)
		if err != nil {
			return err
		}

		entries := make([]ledger.Entry, 0, len(types))
		for _, typeID := range types {
			entries = append(entries, ledger.Entry{
				BaseID:          req.BaseID,
				EquipmentTypeID: typeID,
				Movement:        ledger.MovementAssign,
				QtyChange:       -required[typeID],
				RefType:         "assignment",
				RefID:           created.ID,
				OccurredAt:      assignedAt,
				CreatedBy:       ident.UserID,
			})
		}
		return store.AppendLedger(ctx, entries)
	})
	if err != nil {
		return Assignment{}, err
	}

	if s.audit != nil {
		s.audit.Record(ctx, shared.AuditRecord{
			Action:     "ASSIGNMENT_CREATED",
			ActorID:    ident.UserID,
			BaseID:     created.BaseID,
			EntityType: "assignment",
			EntityID:   created.ID,
			Metadata: map[string]any{
				"assigned_to": created.AssignedTo,
				"items":       len(created.Items),
			},
		})
	}
	return created, nil
}

// List returns assignments visible inside the caller's scope.
func (s *Service) List(ctx context.Context, ident shared.Identity, req ListAssignmentsRequest) ([]Assignment, error) {
	callerScope, err := s.scopes.Resolve(ctx, ident)
	if err != nil {
		return nil, err
	}
	if callerScope.Empty() {
		return []Assignment{}, nil
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
		result = []Assignment{}
	}
	return result, nil
}
