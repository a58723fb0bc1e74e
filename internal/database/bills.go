package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const sumOrderTotalsByVisit = `
SELECT COALESCE(SUM(total), 0)
FROM orders
WHERE visit_id = $1 AND status <> 'CANCELLED'
`

// SumOrderTotalsByVisit is the authoritative bill total: every order under
// the visit except cancelled ones.
func (q *Queries) SumOrderTotalsByVisit(ctx context.Context, visitID uuid.UUID) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	err := q.db.QueryRow(ctx, sumOrderTotalsByVisit, visitID).Scan(&n)
	return n, err
}

type CreateBillParams struct {
	VisitID uuid.UUID
	Total   pgtype.Numeric
}

const createBill = `
INSERT INTO bills (visit_id, total)
VALUES ($1, $2)
RETURNING id, visit_id, total, paid_at
`

func (q *Queries) CreateBill(ctx context.Context, arg CreateBillParams) (Bill, error) {
	var b Bill
	err := q.db.QueryRow(ctx, createBill, arg.VisitID, arg.Total).
		Scan(&b.ID, &b.VisitID, &b.Total, &b.PaidAt)
	return b, err
}

const getBillByVisit = `
SELECT id, visit_id, total, paid_at FROM bills WHERE visit_id = $1
`

func (q *Queries) GetBillByVisit(ctx context.Context, visitID uuid.UUID) (Bill, error) {
	var b Bill
	err := q.db.QueryRow(ctx, getBillByVisit, visitID).
		Scan(&b.ID, &b.VisitID, &b.Total, &b.PaidAt)
	return b, err
}

// ── Reports ──

type ReportRangeParams struct {
	RestaurantID uuid.UUID
	Start        time.Time
	End          time.Time
}

type EarningsByDayRow struct {
	Day   time.Time
	Bills int64
	Total pgtype.Numeric
}

const earningsByDay = `
SELECT date_trunc('day', b.paid_at) AS day, COUNT(*), COALESCE(SUM(b.total), 0)
FROM bills b
JOIN table_visits v ON v.id = b.visit_id
JOIN restaurant_tables t ON t.id = v.table_id
WHERE t.restaurant_id = $1 AND b.paid_at >= $2 AND b.paid_at < $3
GROUP BY day
ORDER BY day
`

func (q *Queries) EarningsByDay(ctx context.Context, arg ReportRangeParams) ([]EarningsByDayRow, error) {
	rows, err := q.db.Query(ctx, earningsByDay, arg.RestaurantID, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EarningsByDayRow
	for rows.Next() {
		var r EarningsByDayRow
		if err := rows.Scan(&r.Day, &r.Bills, &r.Total); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type SalesByCategoryRow struct {
	CategoryID   uuid.UUID
	CategoryName string
	Quantity     int64
	Revenue      pgtype.Numeric
}

const salesByCategory = `
SELECT c.id, c.name, COALESCE(SUM(l.quantity), 0),
       COALESCE(SUM(l.unit_price * l.quantity), 0)
FROM order_lines l
JOIN orders o ON o.id = l.order_id
JOIN table_visits v ON v.id = o.visit_id
JOIN restaurant_tables t ON t.id = v.table_id
JOIN menu_items m ON m.id = l.menu_item_id
JOIN categories c ON c.id = m.category_id
WHERE t.restaurant_id = $1
  AND o.status <> 'CANCELLED'
  AND o.created_at >= $2 AND o.created_at < $3
GROUP BY c.id, c.name
ORDER BY c.name
`

func (q *Queries) SalesByCategory(ctx context.Context, arg ReportRangeParams) ([]SalesByCategoryRow, error) {
	rows, err := q.db.Query(ctx, salesByCategory, arg.RestaurantID, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SalesByCategoryRow
	for rows.Next() {
		var r SalesByCategoryRow
		if err := rows.Scan(&r.CategoryID, &r.CategoryName, &r.Quantity, &r.Revenue); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
