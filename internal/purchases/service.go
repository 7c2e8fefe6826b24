package purchases

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
	List(ctx context.Context, req ListPurchasesRequest, allowedBases []uuid.UUID) ([]Purchase, error)
}

// ScopeResolver narrows callers to their permitted bases.
type ScopeResolver interface {
	Resolve(ctx context.Context, ident shared.Identity) (scope.Scope, error)
}

// Service records purchases and their ledger effect.
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
	shared.RoleAdmin:            {},
	shared.RoleLogisticsOfficer: {},
	shared.RoleBaseCommander:    {},
}

// Create validates and commits a purchase plus its PURCHASE ledger
// entry as one atomic unit. Purchases only add stock, so no balance
// check is needed.
func (s *Service) Create(ctx context.Context, ident shared.Identity, req CreatePurchaseRequest) (Purchase, error) {
	if _, ok := createRoles[ident.Role]; !ok {
		return Purchase{}, fmt.Errorf("role %s may not record purchases: %w", ident.Role, shared.ErrForbidden)
	}
	if req.Quantity <= 0 {
		return Purchase{}, fmt.Errorf("quantity must be > 0: %w", shared.ErrValidation)
	}

	callerScope, err := s.scopes.Resolve(ctx, ident)
	if err != nil {
		return Purchase{}, err
	}
	if err := callerScope.Require(req.BaseID); err != nil {
		return Purchase{}, err
	}

	purchasedAt := time.Now().UTC()
	if req.PurchasedAt != nil {
		purchasedAt = req.PurchasedAt.UTC()
	}

	var created Purchase
	err = s.repo.WithTx(ctx, func(ctx context.Context, store TxStore) error {
		created, err = store.InsertPurchase(ctx, Purchase{
			BaseID:          req.BaseID,
			EquipmentTypeID: req.EquipmentTypeID,
			Quantity:        req.Quantity,
			PurchasedAt:     purchasedAt,
			Vendor:          req.Vendor,
			Reference:       req.Reference,
			CreatedBy:       ident.UserID,
		})
		if err != nil {
			return err
		}
		return store.AppendLedger(ctx, []ledger.Entry{{
			BaseID:          created.BaseID,
			EquipmentTypeID: created.EquipmentTypeID,
			Movement:        ledger.MovementPurchase,
			QtyChange:       created.Quantity,
			RefType:         "purchase",
			RefID:           created.ID,
			OccurredAt:      created.PurchasedAt,
			CreatedBy:       ident.UserID,
		}})
	})
	if err != nil {
		return Purchase{}, err
	}

	if s.audit != nil {
		s.audit.Record(ctx, shared.AuditRecord{
			Action:     "PURCHASE_CREATED",
			ActorID:    ident.UserID,
			BaseID:     created.BaseID,
			EntityType: "purchase",
			EntityID:   created.ID,
			Metadata: map[string]any{
				"equipment_type_id": created.EquipmentTypeID.String(),
				"quantity":          created.Quantity,
			},
		})
	}
	return created, nil
}

// List returns purchases visible inside the caller's scope.
func (s *Service) List(ctx context.Context, ident shared.Identity, req ListPurchasesRequest) ([]Purchase, error) {
	callerScope, err := s.scopes.Resolve(ctx, ident)
	if err != nil {
		return nil, err
	}
	if callerScope.Empty() {
		return []Purchase{}, nil
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
		result = []Purchase{}
	}
	return result, nil
}
