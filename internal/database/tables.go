package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type CreateTableParams struct {
	RestaurantID uuid.UUID
	Number       int32
	Label        string
}

const createTable = `
INSERT INTO restaurant_tables (restaurant_id, number, label)
VALUES ($1, $2, $3)
RETURNING id, restaurant_id, number, label
`

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (RestaurantTable, error) {
	var t RestaurantTable
	err := q.db.QueryRow(ctx, createTable, arg.RestaurantID, arg.Number, arg.Label).
		Scan(&t.ID, &t.RestaurantID, &t.Number, &t.Label)
	return t, err
}

const getTable = `
SELECT id, restaurant_id, number, label FROM restaurant_tables WHERE id = $1
`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (RestaurantTable, error) {
	var t RestaurantTable
	err := q.db.QueryRow(ctx, getTable, id).Scan(&t.ID, &t.RestaurantID, &t.Number, &t.Label)
	return t, err
}

type GetTableByNumberParams struct {
	RestaurantID uuid.UUID
	Number       int32
}

const getTableByNumber = `
SELECT id, restaurant_id, number, label
FROM restaurant_tables
WHERE restaurant_id = $1 AND number = $2
`

func (q *Queries) GetTableByNumber(ctx context.Context, arg GetTableByNumberParams) (RestaurantTable, error) {
	var t RestaurantTable
	err := q.db.QueryRow(ctx, getTableByNumber, arg.RestaurantID, arg.Number).
		Scan(&t.ID, &t.RestaurantID, &t.Number, &t.Label)
	return t, err
}

// TableWithVisitRow is a table plus its active visit, if any. Status is
// FREE when no active visit exists.
type TableWithVisitRow struct {
	Table      RestaurantTable
	VisitID    pgtype.UUID
	Status     string
	WaiterName pgtype.Text
	OpenedAt   pgtype.Timestamptz
}

const listTablesWithVisit = `
SELECT t.id, t.restaurant_id, t.number, t.label,
       v.id, COALESCE(v.status, 'FREE'), u.full_name, v.opened_at
FROM restaurant_tables t
LEFT JOIN table_visits v ON v.table_id = t.id AND v.status <> 'CLOSED'
LEFT JOIN users u ON u.id = v.waiter_id
WHERE t.restaurant_id = $1
ORDER BY t.number
`

func (q *Queries) ListTablesWithVisit(ctx context.Context, restaurantID uuid.UUID) ([]TableWithVisitRow, error) {
	rows, err := q.db.Query(ctx, listTablesWithVisit, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TableWithVisitRow
	for rows.Next() {
		var r TableWithVisitRow
		if err := rows.Scan(&r.Table.ID, &r.Table.RestaurantID, &r.Table.Number, &r.Table.Label,
			&r.VisitID, &r.Status, &r.WaiterName, &r.OpenedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type CreateVisitParams struct {
	TableID  uuid.UUID
	WaiterID pgtype.UUID
	Status   string
}

const createVisit = `
INSERT INTO table_visits (table_id, waiter_id, status)
VALUES ($1, $2, $3)
RETURNING id, table_id, waiter_id, status, opened_at, closed_at
`

func (q *Queries) CreateVisit(ctx context.Context, arg CreateVisitParams) (TableVisit, error) {
	var v TableVisit
	err := q.db.QueryRow(ctx, createVisit, arg.TableID, arg.WaiterID, arg.Status).
		Scan(&v.ID, &v.TableID, &v.WaiterID, &v.Status, &v.OpenedAt, &v.ClosedAt)
	return v, err
}

const getVisit = `
SELECT id, table_id, waiter_id, status, opened_at, closed_at
FROM table_visits WHERE id = $1
`

func (q *Queries) GetVisit(ctx context.Context, id uuid.UUID) (TableVisit, error) {
	var v TableVisit
	err := q.db.QueryRow(ctx, getVisit, id).
		Scan(&v.ID, &v.TableID, &v.WaiterID, &v.Status, &v.OpenedAt, &v.ClosedAt)
	return v, err
}

const getVisitForUpdate = `
SELECT id, table_id, waiter_id, status, opened_at, closed_at
FROM table_visits WHERE id = $1
FOR NO KEY UPDATE
`

// GetVisitForUpdate locks the visit row for the duration of the enclosing
// transaction, serializing concurrent close attempts.
func (q *Queries) GetVisitForUpdate(ctx context.Context, id uuid.UUID) (TableVisit, error) {
	var v TableVisit
	err := q.db.QueryRow(ctx, getVisitForUpdate, id).
		Scan(&v.ID, &v.TableID, &v.WaiterID, &v.Status, &v.OpenedAt, &v.ClosedAt)
	return v, err
}

const getActiveVisitByTable = `
SELECT id, table_id, waiter_id, status, opened_at, closed_at
FROM table_visits
WHERE table_id = $1 AND status <> 'CLOSED'
`

func (q *Queries) GetActiveVisitByTable(ctx context.Context, tableID uuid.UUID) (TableVisit, error) {
	var v TableVisit
	err := q.db.QueryRow(ctx, getActiveVisitByTable, tableID).
		Scan(&v.ID, &v.TableID, &v.WaiterID, &v.Status, &v.OpenedAt, &v.ClosedAt)
	return v, err
}

type UpdateVisitStatusParams struct {
	ID       uuid.UUID
	Status   string
	Expected string
}

const updateVisitStatus = `
UPDATE table_visits
SET status = $2
WHERE id = $1 AND status = $3
RETURNING id, table_id, waiter_id, status, opened_at, closed_at
`

// UpdateVisitStatus applies a compare-and-swap on the visit status.
// Returns pgx.ErrNoRows when the current status no longer matches Expected.
func (q *Queries) UpdateVisitStatus(ctx context.Context, arg UpdateVisitStatusParams) (TableVisit, error) {
	var v TableVisit
	err := q.db.QueryRow(ctx, updateVisitStatus, arg.ID, arg.Status, arg.Expected).
		Scan(&v.ID, &v.TableID, &v.WaiterID, &v.Status, &v.OpenedAt, &v.ClosedAt)
	return v, err
}

type CloseVisitParams struct {
	ID       uuid.UUID
	Expected string
}

const closeVisit = `
UPDATE table_visits
SET status = 'CLOSED', closed_at = now()
WHERE id = $1 AND status = $2
RETURNING id, table_id, waiter_id, status, opened_at, closed_at
`

func (q *Queries) CloseVisit(ctx context.Context, arg CloseVisitParams) (TableVisit, error) {
	var v TableVisit
	err := q.db.QueryRow(ctx, closeVisit, arg.ID, arg.Expected).
		Scan(&v.ID, &v.TableID, &v.WaiterID, &v.Status, &v.OpenedAt, &v.ClosedAt)
	return v, err
}
