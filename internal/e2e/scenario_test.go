package e2e

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/garrison-ops/garrison/internal/assignments"
	"github.com/garrison-ops/garrison/internal/expenditures"
	"github.com/garrison-ops/garrison/internal/ledger"
	"github.com/garrison-ops/garrison/internal/purchases"
	"github.com/garrison-ops/garrison/internal/scope"
	"github.com/garrison-ops/garrison/internal/shared"
	"github.com/garrison-ops/garrison/internal/transfers"
)

// store is a single in-memory backing store shared by every module's
// service, so the scenario exercises the same ledger the way the real
// database would. WithTx serializes on one mutex, standing in for the
// per-key advisory locks.
type store struct {
	mu           sync.Mutex
	entries      []ledger.Entry
	purchases    []purchases.Purchase
	transfers    map[uuid.UUID]transfers.Transfer
	assignments  map[uuid.UUID]assignments.Assignment
	expenditures []expenditures.Expenditure
}

func newStore() *store {
	return &store{
		transfers:   make(map[uuid.UUID]transfers.Transfer),
		assignments: make(map[uuid.UUID]assignments.Assignment),
	}
}

func (s *store) balance(key ledger.StockKey) int64 {
	var total int64
	for _, e := range s.entries {
		if e.BaseID == key.BaseID && e.EquipmentTypeID == key.EquipmentTypeID {
			total += e.QtyChange
		}
	}
	return total
}

func (s *store) append(entries []ledger.Entry) {
	s.entries = append(s.entries, entries...)
}

type purchaseRepo struct{ core *store }

func (r purchaseRepo) WithTx(ctx context.Context, fn func(context.Context, purchases.TxStore) error) error {
	r.core.mu.Lock()
	defer r.core.mu.Unlock()
	return fn(ctx, purchaseTx{core: r.core})
}

func (r purchaseRepo) List(ctx context.Context, req purchases.ListPurchasesRequest, allowed []uuid.UUID) ([]purchases.Purchase, error) {
	result := make([]purchases.Purchase, len(r.core.purchases))
	copy(result, r.core.purchases)
	return result, nil
}

type purchaseTx struct{ core *store }

func (t purchaseTx) InsertPurchase(ctx context.Context, p purchases.Purchase) (purchases.Purchase, error) {
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	t.core.purchases = append(t.core.purchases, p)
	return p, nil
}

func (t purchaseTx) AppendLedger(ctx context.Context, entries []ledger.Entry) error {
	t.core.append(entries)
	return nil
}

type transferRepo struct{ core *store }

func (r transferRepo) WithTx(ctx context.Context, fn func(context.Context, transfers.TxStore) error) error {
	r.core.mu.Lock()
	defer r.core.mu.Unlock()
	return fn(ctx, transferTx{core: r.core})
}

func (r transferRepo) Get(ctx context.Context, id uuid.UUID) (transfers.Transfer, error) {
	t, ok := r.core.transfers[id]
	if !ok {
		return transfers.Transfer{}, shared.ErrNotFound
	}
	return t, nil
}

func (r transferRepo) List(ctx context.Context, req transfers.ListTransfersRequest, allowed []uuid.UUID) ([]transfers.Transfer, error) {
	var result []transfers.Transfer
	for _, t := range r.core.transfers {
		result = append(result, t)
	}
	return result, nil
}

type transferTx struct{ core *store }

func (t transferTx) InsertTransfer(ctx context.Context, tr transfers.Transfer) (transfers.Transfer, error) {
	tr.ID = uuid.New()
	tr.CreatedAt = time.Now().UTC()
	t.core.transfers[tr.ID] = tr
	return tr, nil
}

func (t transferTx) InsertItems(ctx context.Context, transferID uuid.UUID, items []transfers.TransferItem) ([]transfers.TransferItem, error) {
	tr := t.core.transfers[transferID]
	for i := range items {
		items[i].ID = uuid.New()
		items[i].TransferID = transferID
	}
	tr.Items = items
	t.core.transfers[transferID] = tr
	return items, nil
}

func (t transferTx) GetForUpdate(ctx context.Context, id uuid.UUID) (transfers.Transfer, error) {
	tr, ok := t.core.transfers[id]
	if !ok {
		return transfers.Transfer{}, shared.ErrNotFound
	}
	return tr, nil
}

func (t transferTx) UpdateStatus(ctx context.Context, id uuid.UUID, target transfers.Status, actorID uuid.UUID, at time.Time) error {
	tr, ok := t.core.transfers[id]
	if !ok {
		return shared.ErrNotFound
	}
	tr.Status = target
	t.core.transfers[id] = tr
	return nil
}

func (t transferTx) LockStock(ctx context.Context, keys []ledger.StockKey) error { return nil }

func (t transferTx) Balance(ctx context.Context, key ledger.StockKey) (int64, error) {
	return t.core.balance(key), nil
}

func (t transferTx) AppendLedger(ctx context.Context, entries []ledger.Entry) error {
	t.core.append(entries)
	return nil
}

type assignmentRepo struct{ core *store }

func (r assignmentRepo) WithTx(ctx context.Context, fn func(context.Context, assignments.TxStore) error) error {
	r.core.mu.Lock()
	defer r.core.mu.Unlock()
	return fn(ctx, assignmentTx{core: r.core})
}

func (r assignmentRepo) List(ctx context.Context, req assignments.ListAssignmentsRequest, allowed []uuid.UUID) ([]assignments.Assignment, error) {
	var result []assignments.Assignment
	for _, a := range r.core.assignments {
		result = append(result, a)
	}
	return result, nil
}

type assignmentTx struct{ core *store }

func (t assignmentTx) InsertAssignment(ctx context.Context, a assignments.Assignment) (assignments.Assignment, error) {
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()
	t.core.assignments[a.ID] = a
	return a, nil
}

func (t assignmentTx) InsertItems(ctx context.Context, assignmentID uuid.UUID, items []assignments.AssignmentItem) ([]assignments.AssignmentItem, error) {
	a := t.core.assignments[assignmentID]
	for i := range items {
		items[i].ID = uuid.New()
		items[i].AssignmentID = assignmentID
	}
	a.Items = items
	t.core.assignments[assignmentID] = a
	return items, nil
}

func (t assignmentTx) LockStock(ctx context.Context, keys []ledger.StockKey) error { return nil }

func (t assignmentTx) Balance(ctx context.Context, key ledger.StockKey) (int64, error) {
	return t.core.balance(key), nil
}

func (t assignmentTx) AppendLedger(ctx context.Context, entries []ledger.Entry) error {
	t.core.append(entries)
	return nil
}

type expenditureRepo struct{ core *store }

func (r expenditureRepo) WithTx(ctx context.Context, fn func(context.Context, expenditures.TxStore) error) error {
	r.core.mu.Lock()
	defer r.core.mu.Unlock()
	return fn(ctx, expenditureTx{core: r.core})
}

func (r expenditureRepo) List(ctx context.Context, req expenditures.ListExpendituresRequest, allowed []uuid.UUID) ([]expenditures.Expenditure, error) {
	result := make([]expenditures.Expenditure, len(r.core.expenditures))
	copy(result, r.core.expenditures)
	return result, nil
}

type expenditureTx struct{ core *store }

func (t expenditureTx) InsertExpenditure(ctx context.Context, e expenditures.Expenditure) (expenditures.Expenditure, error) {
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC()
	t.core.expenditures = append(t.core.expenditures, e)
	return e, nil
}

func (t expenditureTx) InsertItems(ctx context.Context, expenditureID uuid.UUID, items []expenditures.ExpenditureItem) ([]expenditures.ExpenditureItem, error) {
	for i := range items {
		items[i].ID = uuid.New()
		items[i].ExpenditureID = expenditureID
	}
	for j := range t.core.expenditures {
		if t.core.expenditures[j].ID == expenditureID {
			t.core.expenditures[j].Items = items
		}
	}
	return items, nil
}

func (t expenditureTx) LockAssignment(ctx context.Context, assignmentID uuid.UUID) (expenditures.AssignmentSnapshot, error) {
	a, ok := t.core.assignments[assignmentID]
	if !ok {
		return expenditures.AssignmentSnapshot{}, shared.ErrNotFound
	}
	snap := expenditures.AssignmentSnapshot{
		ID:       a.ID,
		BaseID:   a.BaseID,
		Assigned: make(map[uuid.UUID]int64),
	}
	for _, item := range a.Items {
		snap.Assigned[item.EquipmentTypeID] += item.Quantity
	}
	return snap, nil
}

func (t expenditureTx) ExpendedAgainst(ctx context.Context, assignmentID uuid.UUID) (map[uuid.UUID]int64, error) {
	expended := make(map[uuid.UUID]int64)
	for _, e := range t.core.expenditures {
		if e.AssignmentID == nil || *e.AssignmentID != assignmentID {
			continue
		}
		for _, item := range e.Items {
			expended[item.EquipmentTypeID] += item.Quantity
		}
	}
	return expended, nil
}

func (t expenditureTx) LockStock(ctx context.Context, keys []ledger.StockKey) error { return nil }

func (t expenditureTx) Balance(ctx context.Context, key ledger.StockKey) (int64, error) {
	return t.core.balance(key), nil
}

func (t expenditureTx) AppendLedger(ctx context.Context, entries []ledger.Entry) error {
	t.core.append(entries)
	return nil
}

type adminScopes struct{}

func (adminScopes) Resolve(context.Context, shared.Identity) (scope.Scope, error) {
	return scope.Unrestricted(), nil
}

// TestFullStockLifecycle walks one stock of equipment through purchase,
// transfer, assignment and expenditure, checking the ledger balance at
// each step.
func TestFullStockLifecycle(t *testing.T) {
	core := newStore()
	ctx := context.Background()
	admin := shared.Identity{UserID: uuid.New(), Role: shared.RoleAdmin}

	purchaseSvc := purchases.NewService(purchaseRepo{core}, adminScopes{}, nil)
	transferSvc := transfers.NewService(transferRepo{core}, adminScopes{}, nil)
	assignmentSvc := assignments.NewService(assignmentRepo{core}, adminScopes{}, nil)
	expenditureSvc := expenditures.NewService(expenditureRepo{core}, adminScopes{}, nil)

	baseB, baseC := uuid.New(), uuid.New()
	typeT := uuid.New()
	keyB := ledger.StockKey{BaseID: baseB, EquipmentTypeID: typeT}
	keyC := ledger.StockKey{BaseID: baseC, EquipmentTypeID: typeT}

	// Purchase 100 at B.
	_, err := purchaseSvc.Create(ctx, admin, purchases.CreatePurchaseRequest{
		BaseID:          baseB,
		EquipmentTypeID: typeT,
		Quantity:        100,
	})
	require.NoError(t, err)
	require.Equal(t, int64(100), core.balance(keyB))

	// Transfer 40 to C through the full lifecycle.
	tr, err := transferSvc.Create(ctx, admin, transfers.CreateTransferRequest{
		FromBaseID: baseB,
		ToBaseID:   baseC,
		Items:      []transfers.CreateTransferItemReq{{EquipmentTypeID: typeT, Quantity: 40}},
	})
	require.NoError(t, err)
	_, err = transferSvc.Approve(ctx, admin, tr.ID)
	require.NoError(t, err)
	_, err = transferSvc.Dispatch(ctx, admin, tr.ID)
	require.NoError(t, err)
	_, err = transferSvc.Receive(ctx, admin, tr.ID)
	require.NoError(t, err)

	require.Equal(t, int64(60), core.balance(keyB))
	require.Equal(t, int64(40), core.balance(keyC))
	require.Len(t, core.entries, 3, "purchase + one TRANSFER_OUT/TRANSFER_IN pair")

	// Assign 50 at B.
	asg, err := assignmentSvc.Create(ctx, admin, assignments.CreateAssignmentRequest{
		BaseID:     baseB,
		AssignedTo: "Sgt Varga",
		Items:      []assignments.CreateAssignmentItemReq{{EquipmentTypeID: typeT, Quantity: 50}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(10), core.balance(keyB))

	// Direct expenditure of 15 overdraws the 10 on hand.
	_, err = expenditureSvc.Create(ctx, admin, expenditures.CreateExpenditureRequest{
		BaseID: baseB,
		Items:  []expenditures.CreateExpenditureItemReq{{EquipmentTypeID: typeT, Quantity: 15}},
	})
	var stockErr *shared.StockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, int64(10), stockErr.Available)
	require.Equal(t, int64(10), core.balance(keyB), "rejected expenditure must not move stock")

	// Linked expenditure of the full 50 consumes the assignment without
	// touching the ledger.
	_, err = expenditureSvc.Create(ctx, admin, expenditures.CreateExpenditureRequest{
		BaseID:       baseB,
		AssignmentID: &asg.ID,
		Items:        []expenditures.CreateExpenditureItemReq{{EquipmentTypeID: typeT, Quantity: 50}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(10), core.balance(keyB))

	// One more unit exceeds the exhausted assignment.
	_, err = expenditureSvc.Create(ctx, admin, expenditures.CreateExpenditureRequest{
		BaseID:       baseB,
		AssignmentID: &asg.ID,
		Items:        []expenditures.CreateExpenditureItemReq{{EquipmentTypeID: typeT, Quantity: 1}},
	})
	var remErr *shared.RemainingError
	require.ErrorAs(t, err, &remErr)
	require.Equal(t, int64(0), remErr.Remaining)

	// Listing is idempotent absent writes.
	first, err := purchaseSvc.List(ctx, admin, purchases.ListPurchasesRequest{})
	require.NoError(t, err)
	second, err := purchaseSvc.List(ctx, admin, purchases.ListPurchasesRequest{})
	require.NoError(t, err)
	require.Equal(t, first, second)
}

// TestConcurrentExpendituresSingleWinner races two direct expenditures
// whose combined quantity overdraws the balance. The serialized
// transaction boundary admits at most one.
func TestConcurrentExpendituresSingleWinner(t *testing.T) {
	core := newStore()
	ctx := context.Background()
	admin := shared.Identity{UserID: uuid.New(), Role: shared.RoleAdmin}

	baseID, typeID := uuid.New(), uuid.New()
	core.append([]ledger.Entry{{
		BaseID:          baseID,
		EquipmentTypeID: typeID,
		Movement:        ledger.MovementPurchase,
		QtyChange:       10,
		RefType:         "purchase",
		RefID:           uuid.New(),
	}})

	svc := expenditures.NewService(expenditureRepo{core}, adminScopes{}, nil)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, admin, expenditures.CreateExpenditureRequest{
				BaseID: baseID,
				Items:  []expenditures.CreateExpenditureItemReq{{EquipmentTypeID: typeID, Quantity: 7}},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var failures int
	for err := range results {
		if err != nil {
			require.ErrorIs(t, err, shared.ErrStateConflict)
			failures++
		}
	}
	require.Equal(t, 1, failures, "exactly one request must lose")
	require.Equal(t, int64(3), core.balance(ledger.StockKey{BaseID: baseID, EquipmentTypeID: typeID}))
	require.GreaterOrEqual(t, core.balance(ledger.StockKey{BaseID: baseID, EquipmentTypeID: typeID}), int64(0))
}
