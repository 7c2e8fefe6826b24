// Package equipment holds the equipment type catalogue.
package equipment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garrison-ops/garrison/internal/shared"
)

// Type is one catalogued kind of equipment. Serialized types are
// tracked per individual item downstream; the flag is carried on the
// catalogue entry.
type Type struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Unit         *string   `json:"unit,omitempty"`
	IsSerialized bool      `json:"is_serialized"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateTypeRequest carries the admin create payload.
type CreateTypeRequest struct {
	Name         string  `json:"name" validate:"required"`
	Category     string  `json:"category" validate:"required"`
	Unit         *string `json:"unit,omitempty"`
	IsSerialized bool    `json:"is_serialized"`
}

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, t Type) (Type, error)
	List(ctx context.Context) ([]Type, error)
}

// Repository persists equipment types in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, t Type) (Type, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO equipment_types (name, category, unit, is_serialized)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		t.Name, t.Category, t.Unit, t.IsSerialized)
	if err := row.Scan(&t.ID, &t.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Type{}, fmt.Errorf("equipment type %s: %w", t.Name, shared.ErrDuplicate)
		}
		return Type{}, fmt.Errorf("equipment: insert: %w", err)
	}
	return t, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Type, error) {
	var t Type
	row := r.pool.QueryRow(ctx, `SELECT id, name, category, unit, is_serialized, created_at FROM equipment_types WHERE id = $1`, id)
	if err := row.Scan(&t.ID, &t.Name, &t.Category, &t.Unit, &t.IsSerialized, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Type{}, fmt.Errorf("equipment type: %w", shared.ErrNotFound)
		}
		return Type{}, fmt.Errorf("equipment: get: %w", err)
	}
	return t, nil
}

func (r *Repository) List(ctx context.Context) ([]Type, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, category, unit, is_serialized, created_at FROM equipment_types ORDER BY category, name`)
	if err != nil {
		return nil, fmt.Errorf("equipment: list: %w", err)
	}
	defer rows.Close()

	var result []Type
	for rows.Next() {
		var t Type
		if err := rows.Scan(&t.ID, &t.Name, &t.Category, &t.Unit, &t.IsSerialized, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("equipment: scan: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// Service applies role rules over the store. The catalogue is global,
// so reads are unscoped.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create registers an equipment type. Admin only.
func (s *Service) Create(ctx context.Context, ident shared.Identity, req CreateTypeRequest) (Type, error) {
	if ident.Role != shared.RoleAdmin {
		return Type{}, fmt.Errorf("only admins may create equipment types: %w", shared.ErrForbidden)
	}
	if req.Name == "" || req.Category == "" {
		return Type{}, fmt.Errorf("name and category are required: %w", shared.ErrValidation)
	}
	return s.store.Create(ctx, Type{
		Name:         req.Name,
		Category:     req.Category,
		Unit:         req.Unit,
		IsSerialized: req.IsSerialized,
	})
}

// List returns the full catalogue.
func (s *Service) List(ctx context.Context) ([]Type, error) {
	result, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = []Type{}
	}
	return result, nil
}
