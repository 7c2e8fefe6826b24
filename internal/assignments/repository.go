package assignments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garrison-ops/garrison/internal/ledger"
	"github.com/garrison-ops/garrison/internal/platform/db"
)

// TxStore exposes the operations used inside one assignment transaction.
type TxStore interface {
	InsertAssignment(ctx context.Context, a Assignment) (Assignment, error)
	InsertItems(ctx context.Context, assignmentID uuid.UUID, items []AssignmentItem) ([]AssignmentItem, error)
	LockStock(ctx context.Context, keys []ledger.StockKey) error
	Balance(ctx context.Context, key ledger.StockKey) (int64, error)
	AppendLedger(ctx context.Context, entries []ledger.Entry) error
}

// Repository persists assignments in PostgreSQL.
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

func (s *txStore) InsertAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	row := s.tx.QueryRow(ctx, `
		INSERT INTO assignments (base_id, assigned_to, assigned_at, notes, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		a.BaseID, a.AssignedTo, a.AssignedAt, a.Notes, a.CreatedBy)
	if err := row.Scan(&a.ID, &a.CreatedAt); err != nil {
		return Assignment{}, fmt.Errorf("assignments: insert: %w", err)
	}
	return a, nil
}

func (s *txStore) InsertItems(ctx context.Context, assignmentID uuid.UUID, items []AssignmentItem) ([]AssignmentItem, error) {
	inserted := make([]AssignmentItem, 0, len(items))
	for _, item := range items {
		row := s.tx.QueryRow(ctx, `
			INSERT INTO assignment_items (assignment_id, equipment_type_id, quantity)
			VALUES ($1, $2, $3)
			RETURNING id`,
			assignmentID, item.EquipmentTypeID, item.Quantity)
		if err := row.Scan(&item.ID); err != nil {
			return nil, fmt.Errorf("assignments: insert item: %w", err)
		}
		item.AssignmentID = assignmentID
		inserted = append(inserted, item)
	}
	return inserted, nil
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

// List returns assignments inside the scope filter, newest first,
// items nested.
func (r *Repository) List(ctx context.Context, req ListAssignmentsRequest, allowedBases []uuid.UUID) ([]Assignment, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, base_id, assigned_to, assigned_at, notes, created_by, created_at
		FROM assignments WHERE 1=1`)
	var args []any

	if req.BaseID != uuid.Nil {
		args = append(args, req.BaseID)
		fmt.Fprintf(&sb, " AND base_id = $%d", len(args))
	} else if allowedBases != nil {
		args = append(args, allowedBases)
		fmt.Fprintf(&sb, " AND base_id = ANY($%d)", len(args))
	}
	if req.EquipmentTypeID != uuid.Nil {
		args = append(args, req.EquipmentTypeID)
		fmt.Fprintf(&sb, " AND id IN (SELECT assignment_id FROM assignment_items WHERE equipment_type_id = $%d)", len(args))
	}
	if req.From != nil {
		args = append(args, *req.From)
		fmt.Fprintf(&sb, " AND assigned_at >= $%d", len(args))
	}
	if req.To != nil {
		args = append(args, *req.To)
		fmt.Fprintf(&sb, " AND assigned_at <= $%d", len(args))
	}
	sb.WriteString(" ORDER BY assigned_at DESC")
	args = append(args, req.Window.Limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	args = append(args, req.Window.Offset)
	fmt.Fprintf(&sb, " OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("assignments: list: %w", err)
	}
	defer rows.Close()

	var result []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.BaseID, &a.AssignedTo, &a.AssignedAt, &a.Notes, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("assignments: scan: %w", err)
		}
		result = append(result, a)
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

func (r *Repository) loadItems(ctx context.Context, assignmentID uuid.UUID) ([]AssignmentItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, assignment_id, equipment_type_id, quantity
		FROM assignment_items WHERE assignment_id = $1`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("assignments: load items: %w", err)
	}
	defer rows.Close()

	var items []AssignmentItem
	for rows.Next() {
		var item AssignmentItem
		if err := rows.Scan(&item.ID, &item.AssignmentID, &item.EquipmentTypeID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("assignments: scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
