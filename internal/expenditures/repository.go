package expenditures

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garrison-ops/garrison/internal/ledger"
	"github.com/garrison-ops/garrison/internal/platform/db"
	"github.com/garrison-ops/garrison/internal/shared"
)

// AssignmentSnapshot is the slice of an assignment the linked-expenditure
// validator needs: where it lives and how much of each type was handed
// out.
type AssignmentSnapshot struct {
	ID       uuid.UUID
	BaseID   uuid.UUID
	Assigned map[uuid.UUID]int64
}

// TxStore exposes the operations used inside one expenditure transaction.
type TxStore interface {
	InsertExpenditure(ctx context.Context, e Expenditure) (Expenditure, error)
	InsertItems(ctx context.Context, expenditureID uuid.UUID, items []ExpenditureItem) ([]ExpenditureItem, error)
	// LockAssignment row-locks the assignment so concurrent linked
	// expenditures against it serialize on the remaining computation.
	LockAssignment(ctx context.Context, assignmentID uuid.UUID) (AssignmentSnapshot, error)
	// ExpendedAgainst sums prior linked expenditure quantities per
	// equipment type for the assignment.
	ExpendedAgainst(ctx context.Context, assignmentID uuid.UUID) (map[uuid.UUID]int64, error)
	LockStock(ctx context.Context, keys []ledger.StockKey) error
	Balance(ctx context.Context, key ledger.StockKey) (int64, error)
	AppendLedger(ctx context.Context, entries []ledger.Entry) error
}

// Repository persists expenditures in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txStore struct {
	tx pgx.Tx
}

// WithTx runs fn inside one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, store TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

func (s *txStore) InsertExpenditure(ctx context.Context, e Expenditure) (Expenditure, error) {
	row := s.tx.QueryRow(ctx, `
		INSERT INTO expenditures (base_id, assignment_id, expended_at, reason, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		e.BaseID, e.AssignmentID, e.ExpendedAt, e.Reason, e.CreatedBy)
	if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
		return Expenditure{}, fmt.Errorf("expenditures: insert: %w", err)
	}
	return e, nil
}

func (s *txStore) InsertItems(ctx context.Context, expenditureID uuid.UUID, items []ExpenditureItem) ([]ExpenditureItem, error) {
	inserted := make([]ExpenditureItem, 0, len(items))
	for _, item := range items {
		row := s.tx.QueryRow(ctx, `
			INSERT INTO expenditure_items (expenditure_id, equipment_type_id, quantity)
			VALUES ($1, $2, $3)
			RETURNING id`,
			expenditureID, item.EquipmentTypeID, item.Quantity)
		if err := row.Scan(&item.ID); err != nil {
			return nil, fmt.Errorf("expenditures: insert item: %w", err)
		}
		item.ExpenditureID = expenditureID
		inserted = append(inserted, item)
	}
	return inserted, nil
}

func (s *txStore) LockAssignment(ctx context.Context, assignmentID uuid.UUID) (AssignmentSnapshot, error) {
	snap := AssignmentSnapshot{Assigned: make(map[uuid.UUID]int64)}
	row := s.tx.QueryRow(ctx, `SELECT id, base_id FROM assignments WHERE id = $1 FOR UPDATE`, assignmentID)
	if err := row.Scan(&snap.ID, &snap.BaseID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AssignmentSnapshot{}, fmt.Errorf("assignment: %w", shared.ErrNotFound)
		}
		return AssignmentSnapshot{}, fmt.Errorf("expenditures: lock assignment: %w", err)
	}

	rows, err := s.tx.Query(ctx, `
		SELECT equipment_type_id, SUM(quantity)
		FROM assignment_items WHERE assignment_id = $1
		GROUP BY equipment_type_id`, assignmentID)
	if err != nil {
		return AssignmentSnapshot{}, fmt.Errorf("expenditures: assignment items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			typeID uuid.UUID
			qty    int64
		)
		if err := rows.Scan(&typeID, &qty); err != nil {
			return AssignmentSnapshot{}, fmt.Errorf("expenditures: scan assignment item: %w", err)
		}
		snap.Assigned[typeID] = qty
	}
	return snap, rows.Err()
}

func (s *txStore) ExpendedAgainst(ctx context.Context, assignmentID uuid.UUID) (map[uuid.UUID]int64, error) {
	rows, err := s.tx.Query(ctx, `
		SELECT i.equipment_type_id, SUM(i.quantity)
		FROM expenditure_items i
		JOIN expenditures e ON e.id = i.expenditure_id
		WHERE e.assignment_id = $1
		GROUP BY i.equipment_type_id`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("expenditures: expended against: %w", err)
	}
	defer rows.Close()

	expended := make(map[uuid.UUID]int64)
	for rows.Next() {
		var (
			typeID uuid.UUID
			qty    int64
		)
		if err := rows.Scan(&typeID, &qty); err != nil {
			return nil, fmt.Errorf("expenditures: scan expended: %w", err)
		}
		expended[typeID] = qty
	}
	return expended, rows.Err()
}

func (s *txStore) LockStock(ctx context.Context, keys []ledger.StockKey) error {
	return ledger.LockKeys(ctx, s.tx, keys)
}

func (s *txStore) Balance(ctx context.Context, key ledger.StockKey) (int64, error) {
	return ledger.BalanceTx(ctx, s.tx, key)
}

func (s *txStore) AppendLedger(ctx context.Context, entries []ledger.Entry) error {
	return ledger.AppendTx(ctx, s.tx, entries)
}

// List returns expenditures inside the scope filter, newest first,
// items nested.
func (r *Repository) List(ctx context.Context, req ListExpendituresRequest, allowedBases []uuid.UUID) ([]Expenditure, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, base_id, assignment_id, expended_at, reason, created_by, created_at
		FROM expenditures WHERE 1=1`)
	var args []any

	if req.BaseID != uuid.Nil {
		args = append(args, req.BaseID)
		fmt.Fprintf(&sb, " AND base_id = $%d", len(args))
	} else if allowedBases != nil {
		args = append(args, allowedBases)
		fmt.Fprintf(&sb, " AND base_id = ANY($%d)", len(args))
	}
	if req.AssignmentID != uuid.Nil {
		args = append(args, req.AssignmentID)
		fmt.Fprintf(&sb, " AND assignment_id = $%d", len(args))
	}
	if req.EquipmentTypeID != uuid.Nil {
		args = append(args, req.EquipmentTypeID)
		fmt.Fprintf(&sb, " AND id IN (SELECT expenditure_id FROM expenditure_items WHERE equipment_type_id = $%d)", len(args))
	}
	if req.From != nil {
		args = append(args, *req.From)
		fmt.Fprintf(&sb, " AND expended_at >= $%d", len(args))
	}
	if req.To != nil {
		args = append(args, *req.To)
		fmt.Fprintf(&sb, " AND expended_at <= $%d", len(args))
	}
	sb.WriteString(" ORDER BY expended_at DESC")
	args = append(args, req.Window.Limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	args = append(args, req.Window.Offset)
	fmt.Fprintf(&sb, " OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("expenditures: list: %w", err)
	}
	defer rows.Close()

	var result []Expenditure
	for rows.Next() {
		var e Expenditure
		if err := rows.Scan(&e.ID, &e.BaseID, &e.AssignmentID, &e.ExpendedAt, &e.Reason, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("expenditures: scan: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		result[i].Items, err = r.loadItems(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *Repository) loadItems(ctx context.Context, expenditureID uuid.UUID) ([]ExpenditureItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, expenditure_id, equipment_type_id, quantity
		FROM expenditure_items WHERE expenditure_id = $1`, expenditureID)
	if err != nil {
		return nil, fmt.Errorf("expenditures: load items: %w", err)
	}
	defer rows.Close()

	var items []ExpenditureItem
	for rows.Next() {
		var item ExpenditureItem
		if err := rows.Scan(&item.ID, &item.ExpenditureID, &item.EquipmentTypeID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("expenditures: scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
