package assignments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/garrison-ops/garrison/internal/ledger"
	"github.com/garrison-ops/garrison/internal/scope"
	"github.com/garrison-ops/garrison/internal/shared"
)

type memoryRepo struct {
	assignments []Assignment
	entries     []ledger.Entry
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) seed(baseID, typeID uuid.UUID, qty int64) {
	r.entries = append(r.entries, ledger.Entry{
		BaseID:          baseID,
		EquipmentTypeID: typeID,
		Movement:        ledger.MovementPurchase,
		QtyChange:       qty,
		RefType:         "purchase",
		RefID:           uuid.New(),
	})
}

func (r *memoryRepo) balance(key ledger.StockKey) int64 {
	var total int64
	for _, e := range r.entries {
		if e.BaseID == key.BaseID && e.EquipmentTypeID == key.EquipmentTypeID {
			total += e.QtyChange
		}
	}
	return total
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) List(ctx context.Context, req ListAssignmentsRequest, allowedBases []uuid.UUID) ([]Assignment, error) {
	result := make([]Assignment, len(r.assignments))
	copy(result, r.assignments)
	return result, nil
}

func (tx *memoryTx) InsertAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()
	tx.repo.assignments = append(tx.repo.assignments, a)
	return a, nil
}

func (tx *memoryTx) InsertItems(ctx context.Context, assignmentID uuid.UUID, items []AssignmentItem) ([]AssignmentItem, error) {
	for i := range items {
		items[i].ID = uuid.New()
		items[i].AssignmentID = assignmentID
	}
	return items, nil
}

func (tx *memoryTx) LockStock(ctx context.Context, keys []ledger.StockKey) error {
	return nil
}

func (tx *memoryTx) Balance(ctx context.Context, key ledger.StockKey) (int64, error) {
	return tx.repo.balance(key), nil
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

func TestCreateAssignmentPostsNegativeEntries(t *testing.T) {
	repo := &memoryRepo{}
	baseID, typeID := uuid.New(), uuid.New()
	repo.seed(baseID, typeID, 60)

	svc := NewService(repo, staticScopes{scope: scope.Unrestricted()}, nil)
	ident := shared.Identity{UserID: uuid.New(), Role: shared.RoleBaseCommander, BaseID: baseID}

	created, err := svc.Create(context.Background(), ident, CreateAssignmentRequest{
		BaseID:     baseID,
		AssignedTo: "Sgt Delgado",
		Items:      []CreateAssignmentItemReq{{EquipmentTypeID: typeID, Quantity: 50}},
	})
	require.NoError(t, err)
	require.Len(t, created.Items, 1)

	require.Len(t, repo.entries, 2)
	entry := repo.entries[1]
	require.Equal(t, ledger.MovementAssign, entry.Movement)
	require.Equal(t, int64(-50), entry.QtyChange)
	require.Equal(t, "assignment", entry.RefType)
	require.Equal(t, created.ID, entry.RefID)
	require.Equal(t, int64(10), repo.balance(ledger.StockKey{BaseID: baseID, EquipmentTypeID: typeID}))
}

func TestCreateAssignmentRejectsInsufficientStock(t *testing.T) {
	repo := &memoryRepo{}
	baseID, typeID := uuid.New(), uuid.New()
	repo.seed(baseID, typeID, 10)

	svc := NewService(repo, staticScopes{scope: scope.Unrestricted()}, nil)
	ident := shared.Identity{UserID: uuid.New(), Role: shared.RoleAdmin}

	_, err := svc.Create(context.Background(), ident, CreateAssignmentRequest{
		BaseID:     baseID,
		AssignedTo: "Cpl Reyes",
		Items:      []CreateAssignmentItemReq{{EquipmentTypeID: typeID, Quantity: 15}},
	})
	var stockErr *shared.StockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, int64(15), stockErr.Required)
	require.Equal(t, int64(10), stockErr.Available)
	require.Empty(t, repo.assignments)
	require.Len(t, repo.entries, 1, "rejected assignment must not post ledger rows")
}

func TestCreateAssignmentGroupsLinesBeforeCheck(t *testing.T) {
	repo := &memoryRepo{}
	baseID, typeID := uuid.New(), uuid.New()
	repo.seed(baseID, typeID, 10)

	svc := NewService(repo, staticScopes{scope: scope.Unrestricted()}, nil)
	ident := shared.Identity{UserID: uuid.New(), Role: shared.RoleAdmin}

	// Each line alone fits within stock; together they overdraw.
	_, err := svc.Create(context.Background(), ident, CreateAssignmentRequest{
		BaseID:     baseID,
		AssignedTo: "Lt Okafor",
		Items: []CreateAssignmentItemReq{
			{EquipmentTypeID: typeID, Quantity: 7},
			{EquipmentTypeID: typeID, Quantity: 7},
		},
	})
	var stockErr *shared.StockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, int64(14), stockErr.Required)
}

func TestCreateAssignmentRoleAndScope(t *testing.T) {
	repo := &memoryRepo{}
	baseID, typeID := uuid.New(), uuid.New()
	repo.seed(baseID, typeID, 100)

	svc := NewService(repo, staticScopes{scope: scope.Restricted(baseID)}, nil)

	logistics := shared.Identity{UserID: uuid.New(), Role: shared.RoleLogisticsOfficer}
	_, err := svc.Create(context.Background(), logistics, CreateAssignmentRequest{
		BaseID:     baseID,
		AssignedTo: "Pvt Kim",
		Items:      []CreateAssignmentItemReq{{EquipmentTypeID: typeID, Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrForbidden, "logistics officers do not issue to personnel")

	commander := shared.Identity{UserID: uuid.New(), Role: shared.RoleBaseCommander, BaseID: baseID}
	_, err = svc.Create(context.Background(), commander, CreateAssignmentRequest{
		BaseID:     uuid.New(),
		AssignedTo: "Pvt Kim",
		Items:      []CreateAssignmentItemReq{{EquipmentTypeID: typeID, Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrForbidden, "commander cannot issue at a foreign base")
}
