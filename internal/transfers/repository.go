package transfers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garrison-ops/garrison/internal/ledger"
	"github.com/garrison-ops/garrison/internal/platform/db"
	"github.com/garrison-ops/garrison/internal/shared"
)

// TxStore exposes the operations used inside one transfer transaction.
type TxStore interface {
	InsertTransfer(ctx context.Context, t Transfer) (Transfer, error)
	InsertItems(ctx context.Context, transferID uuid.UUID, items []TransferItem) ([]TransferItem, error)
	// GetForUpdate row-locks the transfer so concurrent transitions
	// serialize; a second receiver waits here and then fails the
	// state check instead of double-posting.
	GetForUpdate(ctx context.Context, id uuid.UUID) (Transfer, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, target Status, actorID uuid.UUID, at time.Time) error
	LockStock(ctx context.Context, keys []ledger.StockKey) error
	Balance(ctx context.Context, key ledger.StockKey) (int64, error)
	AppendLedger(ctx context.Context, entries []ledger.Entry) error
}

// Repository persists transfers in PostgreSQL.
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

const transferColumns = `id, from_base_id, to_base_id, status, notes, created_by, created_at,
	approved_by, approved_at, dispatched_by, dispatched_at, received_by, received_at`

func scanTransfer(row pgx.Row) (Transfer, error) {
	var (
		t      Transfer
		status string
	)
	err := row.Scan(&t.ID, &t.FromBaseID, &t.ToBaseID, &status, &t.Notes, &t.CreatedBy, &t.CreatedAt,
		&t.ApprovedBy, &t.ApprovedAt, &t.DispatchedBy, &t.DispatchedAt, &t.ReceivedBy, &t.ReceivedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, fmt.Errorf("transfer: %w", shared.ErrNotFound)
		}
		return Transfer{}, fmt.Errorf("transfers: scan: %w", err)
	}
	t.Status = Status(status)
	return t, nil
}

func (s *txStore) InsertTransfer(ctx context.Context, t Transfer) (Transfer, error) {
	row := s.tx.QueryRow(ctx, `
		INSERT INTO transfers (from_base_id, to_base_id, status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+transferColumns,
		t.FromBaseID, t.ToBaseID, string(t.Status), t.Notes, t.CreatedBy)
	return scanTransfer(row)
}

func (s *txStore) InsertItems(ctx context.Context, transferID uuid.UUID, items []TransferItem) ([]TransferItem, error) {
	inserted := make([]TransferItem, 0, len(items))
	for _, item := range items {
		row := s.tx.QueryRow(ctx, `
			INSERT INTO transfer_items (transfer_id, equipment_type_id, quantity)
			VALUES ($1, $2, $3)
			RETURNING id`,
			transferID, item.EquipmentTypeID, item.Quantity)
		if err := row.Scan(&item.ID); err != nil {
			return nil, fmt.Errorf("transfers: insert item: %w", err)
		}
		item.TransferID = transferID
		inserted = append(inserted, item)
	}
	return inserted, nil
}

func (s *txStore) GetForUpdate(ctx context.Context, id uuid.UUID) (Transfer, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1 FOR UPDATE`, id)
	t, err := scanTransfer(row)
	if err != nil {
		return Transfer{}, err
	}
	t.Items, err = loadItems(ctx, s.tx, id)
	return t, err
}

func (s *txStore) UpdateStatus(ctx context.Context, id uuid.UUID, target Status, actorID uuid.UUID, at time.Time) error {
	var query string
	switch target {
	case StatusApproved:
		query = `UPDATE transfers SET status = $2, approved_by = $3, approved_at = $4 WHERE id = $1`
	case StatusDispatched:
		query = `UPDATE transfers SET status = $2, dispatched_by = $3, dispatched_at = $4 WHERE id = $1`
	case StatusReceived:
		query = `UPDATE transfers SET status = $2, received_by = $3, received_at = $4 WHERE id = $1`
	default:
		return fmt.Errorf("transfers: no transition into %s", target)
	}
	tag, err := s.tx.Exec(ctx, query, id, string(target), actorID, at)
	if err != nil {
		return fmt.Errorf("transfers: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transfer: %w", shared.ErrNotFound)
	}
	return nil
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

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, transferID uuid.UUID) ([]TransferItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, transfer_id, equipment_type_id, quantity
		FROM transfer_items WHERE transfer_id = $1`, transferID)
	if err != nil {
		return nil, fmt.Errorf("transfers: load items: %w", err)
	}
	defer rows.Close()

	var items []TransferItem
	for rows.Next() {
		var item TransferItem
		if err := rows.Scan(&item.ID, &item.TransferID, &item.EquipmentTypeID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("transfers: scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get fetches a transfer with its items.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Transfer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id)
	t, err := scanTransfer(row)
	if err != nil {
		return Transfer{}, err
	}
	t.Items, err = loadItems(ctx, r.pool, id)
	return t, err
}

// List returns transfers where either side falls in the scope filter,
// newest first.
func (r *Repository) List(ctx context.Context, req ListTransfersRequest, allowedBases []uuid.UUID) ([]Transfer, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + transferColumns + ` FROM transfers WHERE 1=1`)
	var args []any

	if req.BaseID != uuid.Nil {
		args = append(args, req.BaseID)
		fmt.Fprintf(&sb, " AND (from_base_id = $%d OR to_base_id = $%d)", len(args), len(args))
	} else if allowedBases != nil {
		args = append(args, allowedBases)
		fmt.Fprintf(&sb, " AND (from_base_id = ANY($%d) OR to_base_id = ANY($%d))", len(args), len(args))
	}
	if req.FromBaseID != uuid.Nil {
		args = append(args, req.FromBaseID)
		fmt.Fprintf(&sb, " AND from_base_id = $%d", len(args))
	}
	if req.ToBaseID != uuid.Nil {
		args = append(args, req.ToBaseID)
		fmt.Fprintf(&sb, " AND to_base_id = $%d", len(args))
	}
	if req.From != nil {
		args = append(args, *req.From)
		fmt.Fprintf(&sb, " AND created_at >= $%d", len(args))
	}
	if req.To != nil {
		args = append(args, *req.To)
		fmt.Fprintf(&sb, " AND created_at <= $%d", len(args))
	}
	sb.WriteString(" ORDER BY created_at DESC")
	args = append(args, req.Window.Limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	args = append(args, req.Window.Offset)
	fmt.Fprintf(&sb, " OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("transfers: list: %w", err)
	}
	defer rows.Close()

	var result []Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		result[i].Items, err = loadItems(ctx, r.pool, result[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}
