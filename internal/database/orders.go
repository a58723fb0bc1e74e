package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type CreateOrderParams struct {
	VisitID  uuid.UUID
	PersonID uuid.UUID
	Status   string
	Notes    pgtype.Text
	Total    pgtype.Numeric
}

const createOrder = `
INSERT INTO orders (visit_id, person_id, status, notes, total)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, visit_id, person_id, status, notes, total, created_at, updated_at
`

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	var o Order
	err := q.db.QueryRow(ctx, createOrder,
		arg.VisitID, arg.PersonID, arg.Status, arg.Notes, arg.Total,
	).Scan(&o.ID, &o.VisitID, &o.PersonID, &o.Status, &o.Notes, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

type CreateOrderLineParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int32
	UnitPrice  pgtype.Numeric
}

const createOrderLine = `
INSERT INTO order_lines (order_id, menu_item_id, quantity, unit_price)
VALUES ($1, $2, $3, $4)
RETURNING id, order_id, menu_item_id, quantity, unit_price
`

func (q *Queries) CreateOrderLine(ctx context.Context, arg CreateOrderLineParams) (OrderLine, error) {
	var l OrderLine
	err := q.db.QueryRow(ctx, createOrderLine,
		arg.OrderID, arg.MenuItemID, arg.Quantity, arg.UnitPrice,
	).Scan(&l.ID, &l.OrderID, &l.MenuItemID, &l.Quantity, &l.UnitPrice)
	return l, err
}

const getOrder = `
SELECT id, visit_id, person_id, status, notes, total, created_at, updated_at
FROM orders WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	var o Order
	err := q.db.QueryRow(ctx, getOrder, id).
		Scan(&o.ID, &o.VisitID, &o.PersonID, &o.Status, &o.Notes, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

const getOrderRestaurant = `
SELECT t.restaurant_id
FROM orders o
JOIN table_visits v ON v.id = o.visit_id
JOIN restaurant_tables t ON t.id = v.table_id
WHERE o.id = $1
`

func (q *Queries) GetOrderRestaurant(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var restaurantID uuid.UUID
	err := q.db.QueryRow(ctx, getOrderRestaurant, id).Scan(&restaurantID)
	return restaurantID, err
}

const listOrdersByVisit = `
SELECT id, visit_id, person_id, status, notes, total, created_at, updated_at
FROM orders
WHERE visit_id = $1
ORDER BY created_at
`

func (q *Queries) ListOrdersByVisit(ctx context.Context, visitID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByVisit, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.VisitID, &o.PersonID, &o.Status, &o.Notes, &o.Total, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// KitchenOrderRow is an order joined with its table for the kitchen view.
type KitchenOrderRow struct {
	Order       Order
	TableNumber int32
	TableLabel  string
}

const listOrdersByRestaurant = `
SELECT o.id, o.visit_id, o.person_id, o.status, o.notes, o.total, o.created_at, o.updated_at,
       t.number, t.label
FROM orders o
JOIN table_visits v ON v.id = o.visit_id
JOIN restaurant_tables t ON t.id = v.table_id
WHERE t.restaurant_id = $1
  AND o.status NOT IN ('DELIVERED', 'CANCELLED')
ORDER BY o.created_at
`

func (q *Queries) ListOrdersByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]KitchenOrderRow, error) {
	rows, err := q.db.Query(ctx, listOrdersByRestaurant, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KitchenOrderRow
	for rows.Next() {
		var r KitchenOrderRow
		if err := rows.Scan(&r.Order.ID, &r.Order.VisitID, &r.Order.PersonID, &r.Order.Status,
			&r.Order.Notes, &r.Order.Total, &r.Order.CreatedAt, &r.Order.UpdatedAt,
			&r.TableNumber, &r.TableLabel); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// OrderLineDetail carries the line with its menu item description for
// bill and order rendering.
type OrderLineDetail struct {
	Line        OrderLine
	Description string
}

const listOrderLinesByOrder = `
SELECT l.id, l.order_id, l.menu_item_id, l.quantity, l.unit_price, m.description
FROM order_lines l
JOIN menu_items m ON m.id = l.menu_item_id
WHERE l.order_id = $1
ORDER BY m.description
`

func (q *Queries) ListOrderLinesByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderLineDetail, error) {
	rows, err := q.db.Query(ctx, listOrderLinesByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []OrderLineDetail
	for rows.Next() {
		var d OrderLineDetail
		if err := rows.Scan(&d.Line.ID, &d.Line.OrderID, &d.Line.MenuItemID,
			&d.Line.Quantity, &d.Line.UnitPrice, &d.Description); err != nil {
			return nil, err
		}
		lines = append(lines, d)
	}
	return lines, rows.Err()
}

type UpdateOrderStatusParams struct {
	ID       uuid.UUID
	Status   string
	Expected string
}

const updateOrderStatus = `
UPDATE orders
SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING id, visit_id, person_id, status, notes, total, created_at, updated_at
`

// UpdateOrderStatus applies a compare-and-swap on the order status.
// Returns pgx.ErrNoRows when the current status no longer matches Expected.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	var o Order
	err := q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.Expected).
		Scan(&o.ID, &o.VisitID, &o.PersonID, &o.Status, &o.Notes, &o.Total, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

const listOpenOrdersByVisit = `
SELECT id, visit_id, person_id, status, notes, total, created_at, updated_at
FROM orders
WHERE visit_id = $1 AND status IN ('PENDING', 'ACCEPTED')
ORDER BY created_at
`

// ListOpenOrdersByVisit returns the orders still in the kitchen pipeline,
// the ones that block closing the visit.
func (q *Queries) ListOpenOrdersByVisit(ctx context.Context, visitID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOpenOrdersByVisit, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.VisitID, &o.PersonID, &o.Status, &o.Notes, &o.Total, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
