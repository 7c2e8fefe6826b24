package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garrison-ops/garrison/internal/shared"
)

// Repository reads the movement ledger outside of write transactions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a ledger repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Sum computes the signed quantity total for the query. The unrestricted
// sum (no movement filter, no time bounds) is the current stock level.
func (r *Repository) Sum(ctx context.Context, q BalanceQuery) (int64, error) {
	query, args := buildSumQuery(q)
	var total int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("ledger: sum: %w", err)
	}
	return total, nil
}

func buildSumQuery(q BalanceQuery) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT COALESCE(SUM(qty_change), 0) FROM inventory_ledger WHERE base_id = $1`)
	args := []any{q.BaseID}

	if q.EquipmentTypeID != uuid.Nil {
		args = append(args, q.EquipmentTypeID)
		fmt.Fprintf(&sb, " AND equipment_type_id = $%d", len(args))
	}
	if len(q.Movements) > 0 {
		kinds := make([]string, 0, len(q.Movements))
		for _, m := range q.Movements {
			kinds = append(kinds, string(m))
		}
		args = append(args, kinds)
		fmt.Fprintf(&sb, " AND movement_type = ANY($%d)", len(args))
	}
	if q.Before != nil {
		args = append(args, *q.Before)
		fmt.Fprintf(&sb, " AND occurred_at < $%d", len(args))
	}
	if q.UpTo != nil {
		args = append(args, *q.UpTo)
		fmt.Fprintf(&sb, " AND occurred_at <= $%d", len(args))
	}
	if q.From != nil {
		args = append(args, *q.From)
		fmt.Fprintf(&sb, " AND occurred_at >= $%d", len(args))
	}
	if q.To != nil {
		args = append(args, *q.To)
		fmt.Fprintf(&sb, " AND occurred_at <= $%d", len(args))
	}
	return sb.String(), args
}

// LockKeys serializes the transaction against every (base, equipment
// type) pair in keys. Keys are locked in sorted order so concurrent
// writers touching overlapping key sets cannot deadlock. Locks are
// advisory and released at commit or rollback.
func LockKeys(ctx context.Context, tx pgx.Tx, keys []StockKey) error {
	sorted := make([]StockKey, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].BaseID != sorted[j].BaseID {
			return sorted[i].BaseID.String() < sorted[j].BaseID.String()
		}
		return sorted[i].EquipmentTypeID.String() < sorted[j].EquipmentTypeID.String()
	})
	for _, key := range sorted {
		tag := key.BaseID.String() + ":" + key.EquipmentTypeID.String()
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, tag); err != nil {
			return fmt.Errorf("ledger: lock %s: %w", tag, err)
		}
	}
	return nil
}

// BalanceTx derives the current stock level for one key inside the
// caller's transaction. Combined with LockKeys this is the atomic
// check half of every check-then-append write.
func BalanceTx(ctx context.Context, tx pgx.Tx, key StockKey) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(qty_change), 0)
		FROM inventory_ledger
		WHERE base_id = $1 AND equipment_type_id = $2`
	var total int64
	if err := tx.QueryRow(ctx, query, key.BaseID, key.EquipmentTypeID).Scan(&total); err != nil {
		return 0, fmt.Errorf("ledger: balance: %w", err)
	}
	return total, nil
}

// AppendTx writes entries inside the caller's transaction. A replay of
// an already-posted (ref, movement, base, equipment type) pairing is
// rejected by the ledger's unique index and surfaces as ErrDuplicate.
func AppendTx(ctx context.Context, tx pgx.Tx, entries []Entry) error {
	const query = `
		INSERT INTO inventory_ledger
			(base_id, equipment_type_id, movement_type, qty_change, ref_type, ref_id, occurred_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, e := range entries {
		if e.QtyChange == 0 {
			return ErrZeroQuantity
		}
		if !e.Movement.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownMovement, e.Movement)
		}
		_, err := tx.Exec(ctx, query,
			e.BaseID, e.EquipmentTypeID, string(e.Movement), e.QtyChange,
			e.RefType, e.RefID, e.OccurredAt, e.CreatedBy)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("ledger: %s already posted for %s %s: %w",
					e.Movement, e.RefType, e.RefID, shared.ErrDuplicate)
			}
			return fmt.Errorf("ledger: append: %w", err)
		}
	}
	return nil
}
