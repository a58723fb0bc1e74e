package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/qr-efficient/api/internal/database"
	"github.com/qr-efficient/api/internal/enum"
	"github.com/shopspring/decimal"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the order state machine needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	GetVisit(ctx context.Context, id uuid.UUID) (database.TableVisit, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderLine(ctx context.Context, arg database.CreateOrderLineParams) (database.OrderLine, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateVisitStatus(ctx context.Context, arg database.UpdateVisitStatusParams) (database.TableVisit, error)
	CreateAuditEntry(ctx context.Context, arg database.CreateAuditEntryParams) (database.AuditEntry, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for submitting a cart.
type CreateOrderRequest struct {
	VisitID  uuid.UUID
	PersonID uuid.UUID
	Notes    string
	Lines    []CreateOrderLineRequest
}

// CreateOrderLineRequest is one frozen cart line. UnitPrice is the price
// captured when the item entered the cart; it is stored as-is so later
// catalog changes never rewrite history.
type CreateOrderLineRequest struct {
	MenuItemID uuid.UUID
	Quantity   int32
	UnitPrice  decimal.Decimal
}

// CreateOrderResult is the created order with its lines and the
// restaurant it belongs to (for event routing).
type CreateOrderResult struct {
	Order        database.Order
	Lines        []database.OrderLine
	RestaurantID uuid.UUID
}

// TransitionResult is an applied status change.
type TransitionResult struct {
	Order        database.Order
	RestaurantID uuid.UUID
}

// orderTransitions defines the order state machine. Key is current
// status, value is the set of statuses it may move to.
var orderTransitions = map[string][]string{
	enum.OrderStatusPending:   {enum.OrderStatusAccepted, enum.OrderStatusCancelled},
	enum.OrderStatusAccepted:  {enum.OrderStatusFinalized, enum.OrderStatusCancelled},
	enum.OrderStatusFinalized: {enum.OrderStatusAccepted, enum.OrderStatusDelivered},
}

func isOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusAccepted, enum.OrderStatusFinalized,
		enum.OrderStatusDelivered, enum.OrderStatusCancelled:
		return true
	}
	return false
}

func orderTransitionAllowed(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OrderService owns the order lifecycle.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// Create validates and persists a submitted cart as a PENDING order, in
// one transaction. Line prices are frozen at submission; the stored total
// is the exact decimal sum of the lines. A successful submission raises
// the visit's NEW_ORDER flag when the table sits plainly occupied; an
// outstanding service request is left in place.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyLines
	}
	for i, line := range req.Lines {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("lines[%d]: %w", i, ErrInvalidQuantity)
		}
		if line.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("lines[%d]: %w", i, ErrNegativeUnitPrice)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	visit, err := store.GetVisit(ctx, req.VisitID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVisitNotFound
		}
		return nil, fmt.Errorf("get visit: %w", err)
	}
	if visit.Status == enum.TableStatusClosed {
		return nil, ErrVisitClosed
	}

	table, err := store.GetTable(ctx, visit.TableID)
	if err != nil {
		return nil, fmt.Errorf("get table: %w", err)
	}

	total := decimal.Zero
	for i, line := range req.Lines {
		item, err := store.GetMenuItem(ctx, line.MenuItemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("lines[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, fmt.Errorf("lines[%d]: get menu item: %w", i, err)
		}
		if !item.Active {
			return nil, fmt.Errorf("lines[%d]: %w", i, ErrMenuItemInactive)
		}
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt32(line.Quantity)))
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		VisitID:  req.VisitID,
		PersonID: req.PersonID,
		Status:   enum.OrderStatusPending,
		Notes:    notes,
		Total:    decimalToNumeric(total),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	lines := make([]database.OrderLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		l, err := store.CreateOrderLine(ctx, database.CreateOrderLineParams{
			OrderID:    order.ID,
			MenuItemID: line.MenuItemID,
			Quantity:   line.Quantity,
			UnitPrice:  decimalToNumeric(line.UnitPrice),
		})
		if err != nil {
			return nil, fmt.Errorf("create order line: %w", err)
		}
		lines = append(lines, l)
	}

	// Flag the table for staff. Only OCCUPIED flips to NEW_ORDER; a lost
	// race or a pending service request leaves the visit status alone.
	if visit.Status == enum.TableStatusOccupied {
		_, err = store.UpdateVisitStatus(ctx, database.UpdateVisitStatusParams{
			ID:       visit.ID,
			Status:   enum.TableStatusNewOrder,
			Expected: enum.TableStatusOccupied,
		})
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("flag new order: %w", err)
		}
	}

	_, err = store.CreateAuditEntry(ctx, database.CreateAuditEntryParams{
		RestaurantID: table.RestaurantID,
		Entity:       "order",
		EntityID:     order.ID,
		Action:       enum.AuditOrderCreated,
		Detail:       fmt.Sprintf("total %s", total.StringFixed(2)),
		ActorID:      pgtype.UUID{Bytes: req.PersonID, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("audit order created: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{
		Order:        order,
		Lines:        lines,
		RestaurantID: table.RestaurantID,
	}, nil
}

// ChangeStatus applies one transition of the order state machine. The
// check-and-apply is a compare-and-swap on the current status, so two
// actors racing on the same order cannot both win; the loser gets an
// InvalidTransitionError and must re-read before acting again.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID uuid.UUID, next string, actorID uuid.UUID) (*TransitionResult, error) {
	if !isOrderStatus(next) {
		return nil, ErrInvalidStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if !orderTransitionAllowed(current.Status, next) {
		return nil, &InvalidTransitionError{Entity: "order", From: current.Status, To: next}
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:       orderID,
		Status:   next,
		Expected: current.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Raced: the status moved between read and write.
			return nil, &InvalidTransitionError{Entity: "order", From: current.Status, To: next}
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	visit, err := store.GetVisit(ctx, updated.VisitID)
	if err != nil {
		return nil, fmt.Errorf("get visit: %w", err)
	}
	table, err := store.GetTable(ctx, visit.TableID)
	if err != nil {
		return nil, fmt.Errorf("get table: %w", err)
	}

	_, err = store.CreateAuditEntry(ctx, database.CreateAuditEntryParams{
		RestaurantID: table.RestaurantID,
		Entity:       "order",
		EntityID:     updated.ID,
		Action:       enum.AuditOrderTransitioned,
		Detail:       fmt.Sprintf("%s -> %s", current.Status, next),
		ActorID:      pgtype.UUID{Bytes: actorID, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("audit order transition: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &TransitionResult{Order: updated, RestaurantID: table.RestaurantID}, nil
}

// Cancel retires an order through the CANCELLED status. Orders are never
// hard-deleted; the audit trail keeps the record.
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID) (*TransitionResult, error) {
	return s.ChangeStatus(ctx, orderID, enum.OrderStatusCancelled, actorID)
}
