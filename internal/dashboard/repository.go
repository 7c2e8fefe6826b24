package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository sums assignment and expenditure line items directly from
// their tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) AssignedTotal(ctx context.Context, baseID, equipmentTypeID uuid.UUID, from, to time.Time) (int64, error) {
	return r.itemTotal(ctx, "assignment_items", "assignments", "assignment_id", "assigned_at",
		baseID, equipmentTypeID, from, to)
}

func (r *Repository) ExpendedTotal(ctx context.Context, baseID, equipmentTypeID uuid.UUID, from, to time.Time) (int64, error) {
	return r.itemTotal(ctx, "expenditure_items", "expenditures", "expenditure_id", "expended_at",
		baseID, equipmentTypeID, from, to)
}

func (r *Repository) itemTotal(ctx context.Context, itemTable, parentTable, fkColumn, tsColumn string,
	baseID, equipmentTypeID uuid.UUID, from, to time.Time) (int64, error) {

	var sb strings.Builder
	fmt.Fprintf(&sb, `SELECT COALESCE(SUM(i.quantity), 0)
		FROM %s i JOIN %s p ON p.id = i.%s
		WHERE p.base_id = $1 AND p.%s >= $2 AND p.%s <= $3`,
		itemTable, parentTable, fkColumn, tsColumn, tsColumn)
	args := []any{baseID, from, to}

	if equipmentTypeID != uuid.Nil {
		args = append(args, equipmentTypeID)
		fmt.Fprintf(&sb, " AND i.equipment_type_id = $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, sb.String(), args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("dashboard: %s total: %w", parentTable, err)
	}
	return total, nil
}
