// Package bases holds the base registry. Bases are reference data:
// created by admins, read by everyone inside their scope.
package bases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garrison-ops/garrison/internal/scope"
	"github.com/garrison-ops/garrison/internal/shared"
)

// Base is one installation that holds stock.
type Base struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Location  *string   `json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateBaseRequest carries the admin create payload.
type CreateBaseRequest struct {
	Code     string  `json:"code" validate:"required,min=2,max=16"`
	Name     string  `json:"name" validate:"required"`
	Location *string `json:"location,omitempty"`
}

// Repository persists bases in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, b Base) (Base, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO bases (code, name, location)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		b.Code, b.Name, b.Location)
	if err := row.Scan(&b.ID, &b.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Base{}, fmt.Errorf("base code %s: %w", b.Code, shared.ErrDuplicate)
		}
		return Base{}, fmt.Errorf("bases: insert: %w", err)
	}
	return b, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Base, error) {
	var b Base
	row := r.pool.QueryRow(ctx, `SELECT id, code, name, location, created_at FROM bases WHERE id = $1`, id)
	if err := row.Scan(&b.ID, &b.Code, &b.Name, &b.Location, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Base{}, fmt.Errorf("base: %w", shared.ErrNotFound)
		}
		return Base{}, fmt.Errorf("bases: get: %w", err)
	}
	return b, nil
}

// List returns bases restricted to allowed ids; nil means every base.
func (r *Repository) List(ctx context.Context, allowed []uuid.UUID) ([]Base, error) {
	query := `SELECT id, code, name, location, created_at FROM bases`
	var args []any
	if allowed != nil {
		query += ` WHERE id = ANY($1)`
		args = append(args, allowed)
	}
	query += ` ORDER BY code`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bases: list: %w", err)
	}
	defer rows.Close()

	var result []Base
	for rows.Next() {
		var b Base
		if err := rows.Scan(&b.ID, &b.Code, &b.Name, &b.Location, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("bases: scan: %w", err)
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// ScopeResolver narrows callers to their permitted bases.
type ScopeResolver interface {
	Resolve(ctx context.Context, ident shared.Identity) (scope.Scope, error)
}

// Service applies scope and role rules over the repository.
type Service struct {
	repo   *Repository
	scopes ScopeResolver
}

// NewService constructs a Service.
func NewService(repo *Repository, scopes ScopeResolver) *Service {
	return &Service{repo: repo, scopes: scopes}
}

// Create registers a base. Admin only.
func (s *Service) Create(ctx context.Context, ident shared.Identity, req CreateBaseRequest) (Base, error) {
	if ident.Role != shared.RoleAdmin {
		return Base{}, fmt.Errorf("only admins may create bases: %w", shared.ErrForbidden)
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" || req.Name == "" {
		return Base{}, fmt.Errorf("code and name are required: %w", shared.ErrValidation)
	}
	return s.repo.Create(ctx, Base{Code: code, Name: req.Name, Location: req.Location})
}

// List returns the bases inside the caller's scope.
func (s *Service) List(ctx context.Context, ident shared.Identity) ([]Base, error) {
	callerScope, err := s.scopes.Resolve(ctx, ident)
	if err != nil {
		return nil, err
	}
	if callerScope.Empty() {
		return []Base{}, nil
	}
	var allowed []uuid.UUID
	if !callerScope.Unrestricted() {
		allowed = callerScope.BaseIDs()
	}
	result, err := s.repo.List(ctx, allowed)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []Base{}
	}
	return result, nil
}
