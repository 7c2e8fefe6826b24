package purchases

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

// TxStore exposes the writes committed as one atomic unit.
type TxStore interface {
	InsertPurchase(ctx context.Context, p Purchase) (Purchase, error)
	AppendLedger(ctx context.Context, entries []ledger.Entry) error
}

// Repository persists purchases in PostgreSQL.
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

// WithTx runs fn inside one transaction; the purchase row and its
// ledger entry commit together or not at all.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, store TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

func (s *txStore) InsertPurchase(ctx context.Context, p Purchase) (Purchase, error) {
	row := s.tx.QueryRow(ctx, `
		INSERT INTO purchases (base_id, equipment_type_id, quantity, purchased_at, vendor, reference, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		p.BaseID, p.EquipmentTypeID, p.Quantity, p.PurchasedAt, p.Vendor, p.Reference, p.CreatedBy)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return Purchase{}, fmt.Errorf("purchases: insert: %w", err)
	}
	return p, nil
}

func (s *txStore) AppendLedger(ctx context.Context, entries []ledger.Entry) error {
	return ledger.AppendTx(ctx, s.tx, entries)
}

// List returns purchases inside the scope filter, newest first.
func (r *Repository) List(ctx context.Context, req ListPurchasesRequest, allowedBases []uuid.UUID) ([]Purchase, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, base_id, equipment_type_id, quantity, purchased_at, vendor, reference, created_by, created_at
		FROM purchases WHERE 1=1`)
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
		fmt.Fprintf(&sb, " AND equipment_type_id = $%d", len(args))
	}
	if req.From != nil {
		args = append(args, *req.From)
		fmt.Fprintf(&sb, " AND purchased_at >= $%d", len(args))
	}
	if req.To != nil {
		args = append(args, *req.To)
		fmt.Fprintf(&sb, " AND purchased_at <= $%d", len(args))
	}
	sb.WriteString(" ORDER BY purchased_at DESC")
	args = append(args, req.Window.Limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	args = append(args, req.Window.Offset)
	fmt.Fprintf(&sb, " OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("purchases: list: %w", err)
	}
	defer rows.Close()

	var result []Purchase
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.BaseID, &p.EquipmentTypeID, &p.Quantity, &p.PurchasedAt,
			&p.Vendor, &p.Reference, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("purchases: scan: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
