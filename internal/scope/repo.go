package scope

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads user_base_access grants from PostgreSQL. The
// mapping is read-only from this core; admin tooling mutates it.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// BasesForUser lists the bases granted to the user.
func (r *Repository) BasesForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT base_id FROM user_base_access WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("scope: query access: %w", err)
	}
	defer rows.Close()

	var baseIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scope: scan access: %w", err)
		}
		baseIDs = append(baseIDs, id)
	}
	return baseIDs, rows.Err()
}
