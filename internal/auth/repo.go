package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garrison-ops/garrison/internal/shared"
)

// Repository persists users in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, role, base_id, password_hash, created_at`

func scanUser(row pgx.Row) (User, error) {
	var (
		u      User
		role   string
		baseID pgtype.UUID
	)
	if err := row.Scan(&u.ID, &u.Email, &role, &baseID, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, fmt.Errorf("auth: scan user: %w", err)
	}
	u.Role = shared.Role(role)
	if baseID.Valid {
		u.BaseID = uuid.UUID(baseID.Bytes)
	}
	return u, nil
}

// GetByID fetches the authoritative user row.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail fetches a user by normalized email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, normalizeEmail(email))
	return scanUser(row)
}

// Create inserts a user. Duplicate emails surface as ErrDuplicate.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	baseID := pgtype.UUID{Bytes: u.BaseID, Valid: u.BaseID != uuid.Nil}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, role, base_id, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		normalizeEmail(u.Email), string(u.Role), baseID, u.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, fmt.Errorf("email already registered: %w", shared.ErrDuplicate)
		}
		return User{}, err
	}
	return created, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
