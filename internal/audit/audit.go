// Package audit stores the audit trail. Records arrive through the job
// queue after the business transaction has committed; losing one never
// fails the business flow.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garrison-ops/garrison/internal/shared"
)

// Log is one persisted audit record.
type Log struct {
	ID         uuid.UUID      `json:"id"`
	Action     string         `json:"action"`
	ActorID    uuid.UUID      `json:"actor_id"`
	BaseID     *uuid.UUID     `json:"base_id,omitempty"`
	EntityType *string        `json:"entity_type,omitempty"`
	EntityID   *uuid.UUID     `json:"entity_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ListRequest filters the audit trail.
type ListRequest struct {
	ActorID uuid.UUID
	Action  string
	BaseID  uuid.UUID
	From    *time.Time
	To      *time.Time
	Window  shared.ListWindow
}

// Repository persists audit logs in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert stores one record.
func (r *Repository) Insert(ctx context.Context, rec shared.AuditRecord) error {
	var metadata []byte
	if rec.Metadata != nil {
		var err error
		if metadata, err = json.Marshal(rec.Metadata); err != nil {
			return fmt.Errorf("audit: marshal metadata: %w", err)
		}
	}

	var baseID, entityID *uuid.UUID
	if rec.BaseID != uuid.Nil {
		baseID = &rec.BaseID
	}
	if rec.EntityID != uuid.Nil {
		entityID = &rec.EntityID
	}
	var entityType *string
	if rec.EntityType != "" {
		entityType = &rec.EntityType
	}

	occurredAt := rec.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (action, actor_id, base_id, entity_type, entity_id, metadata, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.Action, rec.ActorID, baseID, entityType, entityID, metadata, occurredAt)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// List returns audit logs newest first.
func (r *Repository) List(ctx context.Context, req ListRequest) ([]Log, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, action, actor_id, base_id, entity_type, entity_id, metadata, occurred_at, created_at
		FROM audit_logs WHERE 1=1`)
	var args []any

	if req.ActorID != uuid.Nil {
		args = append(args, req.ActorID)
		fmt.Fprintf(&sb, " AND actor_id = $%d", len(args))
	}
	if req.Action != "" {
		args = append(args, req.Action)
		fmt.Fprintf(&sb, " AND action = $%d", len(args))
	}
	if req.BaseID != uuid.Nil {
		args = append(args, req.BaseID)
		fmt.Fprintf(&sb, " AND base_id = $%d", len(args))
	}
	if req.From != nil {
		args = append(args, *req.From)
		fmt.Fprintf(&sb, " AND occurred_at >= $%d", len(args))
	}
	if req.To != nil {
		args = append(args, *req.To)
		fmt.Fprintf(&sb, " AND occurred_at <= $%d", len(args))
	}
	sb.WriteString(" ORDER BY occurred_at DESC")
	args = append(args, req.Window.Limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	args = append(args, req.Window.Offset)
	fmt.Fprintf(&sb, " OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var result []Log
	for rows.Next() {
		var (
			l        Log
			metadata []byte
		)
		if err := rows.Scan(&l.ID, &l.Action, &l.ActorID, &l.BaseID, &l.EntityType, &l.EntityID, &metadata, &l.OccurredAt, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &l.Metadata); err != nil {
				return nil, fmt.Errorf("audit: unmarshal metadata: %w", err)
			}
		}
		result = append(result, l)
	}
	return result, rows.Err()
}
