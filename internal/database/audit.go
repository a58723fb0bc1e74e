package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type CreateAuditEntryParams struct {
	RestaurantID uuid.UUID
	Entity       string
	EntityID     uuid.UUID
	Action       string
	Detail       string
	ActorID      pgtype.UUID
}

const createAuditEntry = `
INSERT INTO audit_log (restaurant_id, entity, entity_id, action, detail, actor_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, restaurant_id, entity, entity_id, action, detail, actor_id, created_at
`

func (q *Queries) CreateAuditEntry(ctx context.Context, arg CreateAuditEntryParams) (AuditEntry, error) {
	var e AuditEntry
	err := q.db.QueryRow(ctx, createAuditEntry,
		arg.RestaurantID, arg.Entity, arg.EntityID, arg.Action, arg.Detail, arg.ActorID,
	).Scan(&e.ID, &e.RestaurantID, &e.Entity, &e.EntityID, &e.Action, &e.Detail, &e.ActorID, &e.CreatedAt)
	return e, err
}

type ListAuditByRestaurantParams struct {
	RestaurantID uuid.UUID
	Limit        int32
	Offset       int32
}

const listAuditByRestaurant = `
SELECT id, restaurant_id, entity, entity_id, action, detail, actor_id, created_at
FROM audit_log
WHERE restaurant_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

func (q *Queries) ListAuditByRestaurant(ctx context.Context, arg ListAuditByRestaurantParams) ([]AuditEntry, error) {
	rows, err := q.db.Query(ctx, listAuditByRestaurant, arg.RestaurantID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.RestaurantID, &e.Entity, &e.EntityID, &e.Action, &e.Detail, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
