package purchases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/garrison-ops/garrison/internal/ledger"
	"github.com/garrison-ops/garrison/internal/scope"
	"github.com/garrison-ops/garrison/internal/shared"
)

type memoryRepo struct {
	purchases []Purchase
	entries   []ledger.Entry
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) List(ctx context.Context, req ListPurchasesRequest, allowedBases []uuid.UUID) ([]Purchase, error) {
	var result []Purchase
	for _, p := range r.purchases {
		if req.BaseID != uuid.Nil && p.BaseID != req.BaseID {
			continue
		}
		if allowedBases != nil && !containsBase(allowedBases, p.BaseID) {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

func containsBase(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func (tx *memoryTx) InsertPurchase(ctx context.Context, p Purchase) (Purchase, error) {
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	tx.repo.purchases = append(tx.repo.purchases, p)
	return p, nil
}

func (tx *memoryTx) AppendLedger(ctx context.Context, entries []ledger.Entry) error {
	tx.repo.entries = append(tx.repo.entries, entries...)
	return nil
}

type staticScopes struct {
	scope scope.Scope
}

func (s staticScopes) Resolve(context.Context, shared.Identity) (scope.Scope, error) {
	return s.scope, nil
}

func TestCreatePostsLedgerEntry(t *testing.T) {
	repo := &memoryRepo{}
	baseID := uuid.New()
	typeID := uuid.New()
	svc := NewService(repo, staticScopes{scope: scope.Unrestricted()}, nil)
	ident := shared.Identity{UserID: uuid.New(), Role: shared.RoleLogisticsOfficer}

	created, err := svc.Create(context.Background(), ident, CreatePurchaseRequest{
		BaseID:          baseID,
		EquipmentTypeID: typeID,
		Quantity:        100,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	require.Equal(t, ledger.MovementPurchase, entry.Movement)
	require.Equal(t, int64(100), entry.QtyChange)
	require.Equal(t, "purchase", entry.RefType)
	require.Equal(t, created.ID, entry.RefID)
	require.Equal(t, baseID, entry.BaseID)
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, staticScopes{scope: scope.Unrestricted()}, nil)
	ident := shared.Identity{UserID: uuid.New(), Role: shared.Role("GUEST")}

	_, err := svc.Create(context.Background(), ident, CreatePurchaseRequest{
		BaseID:          uuid.New(),
		EquipmentTypeID: uuid.New(),
		Quantity:        5,
	})
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Empty(t, repo.entries)
}

func TestCreateRejectsOutOfScopeBase(t *testing.T) {
	homeBase := uuid.New()
	otherBase := uuid.New()
	repo := &memoryRepo{}
	svc := NewService(repo, staticScopes{scope: scope.Restricted(homeBase)}, nil)
	ident := shared.Identity{UserID: uuid.New(), Role: shared.RoleBaseCommander, BaseID: homeBase}

	_, err := svc.Create(context.Background(), ident, CreatePurchaseRequest{
		BaseID:          otherBase,
		EquipmentTypeID: uuid.New(),
		Quantity:        5,
	})
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Empty(t, repo.purchases)
}

func TestCreateRejectsNonPositiveQuantity(t *testing.T) {
	svc := NewService(&memoryRepo{}, staticScopes{scope: scope.Unrestricted()}, nil)
	ident := shared.Identity{UserID: uuid.New(), Role: shared.RoleAdmin}

	_, err := svc.Create(context.Background(), ident, CreatePurchaseRequest{
		BaseID:          uuid.New(),
		EquipmentTypeID: uuid.New(),
		Quantity:        0,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestListEmptyScopeReturnsNothing(t *testing.T) {
	repo := &memoryRepo{purchases: []Purchase{{ID: uuid.New(), BaseID: uuid.New()}}}
	svc := NewService(repo, staticScopes{scope: scope.Restricted()}, nil)
	ident := shared.Identity{UserID: uuid.New(), Role: shared.RoleBaseCommander}

	result, err := svc.List(context.Background(), ident, ListPurchasesRequest{})
	require.NoError(t, err)
	require.Empty(t, result)
}

func TestListScopesToAllowedBases(t *testing.T) {
	visible := uuid.New()
	hidden := uuid.New()
	repo := &memoryRepo{purchases: []Purchase{
		{ID: uuid.New(), BaseID: visible},
		{ID: uuid.New(), BaseID: hidden},
	}}
	svc := NewService(repo, staticScopes{scope: scope.Restricted(visible)}, nil)
	ident := shared.Identity{UserID: uuid.New(), Role: shared.RoleLogisticsOfficer}

	result, err := svc.List(context.Background(), ident, ListPurchasesRequest{})
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, visible, result[0].BaseID)

	_, err = svc.List(context.Background(), ident, ListPurchasesRequest{BaseID: hidden})
	require.True(t, errors.Is(err, shared.ErrForbidden))
}
