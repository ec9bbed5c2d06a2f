// Package repository provides append-only storage for the audit trail.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one immutable audit record. Rows are only ever inserted;
// there is no update or delete path.
type Entry struct {
	ID         uuid.UUID      `db:"id"`
	EntityType string         `db:"entity_type"`
	EntityID   uuid.UUID      `db:"entity_id"`
	Action     string         `db:"action"`
	Actor      string         `db:"actor"`
	Metadata   map[string]any `db:"metadata"`
	CreatedAt  time.Time      `db:"created_at"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends an audit entry. Metadata is stored as jsonb.
func (r *Repository) Insert(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO audit_log (id, entity_type, entity_id, action, actor, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.EntityType, e.EntityID, e.Action, e.Actor, e.Metadata, e.CreatedAt)
	return err
}

// ListByEntity returns the audit trail for one entity, oldest first.
func (r *Repository) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]Entry, error) {
	query := `
		SELECT id, entity_type, entity_id, action, actor, metadata, created_at
		FROM audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, entityType, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.Actor, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
