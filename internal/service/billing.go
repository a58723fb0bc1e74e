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

// BillStore defines the DB methods billing needs.
type BillStore interface {
	GetVisit(ctx context.Context, id uuid.UUID) (database.TableVisit, error)
	GetVisitForUpdate(ctx context.Context, id uuid.UUID) (database.TableVisit, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error)
	ListOrdersByVisit(ctx context.Context, visitID uuid.UUID) ([]database.Order, error)
	ListOrderLinesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderLineDetail, error)
	ListOpenOrdersByVisit(ctx context.Context, visitID uuid.UUID) ([]database.Order, error)
	SumOrderTotalsByVisit(ctx context.Context, visitID uuid.UUID) (pgtype.Numeric, error)
	CreateBill(ctx context.Context, arg database.CreateBillParams) (database.Bill, error)
	GetBillByVisit(ctx context.Context, visitID uuid.UUID) (database.Bill, error)
	CloseVisit(ctx context.Context, arg database.CloseVisitParams) (database.TableVisit, error)
	CreateAuditEntry(ctx context.Context, arg database.CreateAuditEntryParams) (database.AuditEntry, error)
}

// NewBillStore creates a BillStore from a DBTX (pool or tx).
type NewBillStore func(db database.DBTX) BillStore

// BillLine is one item row on the rendered bill.
type BillLine struct {
	Description string
	Quantity    int32
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// BillOrder is one non-cancelled order with its lines.
type BillOrder struct {
	Order database.Order
	Lines []BillLine
	Total decimal.Decimal
}

// BillSummary is the running bill for a visit.
type BillSummary struct {
	VisitID uuid.UUID
	Orders  []BillOrder
	Total   decimal.Decimal
}

// PaymentResult is a committed close: the visit, its bill, and routing
// info for the staff dashboard.
type PaymentResult struct {
	Visit        database.TableVisit
	Bill         database.Bill
	RestaurantID uuid.UUID
}

// BillingService aggregates order totals into the bill and owns
// payment finalization.
type BillingService struct {
	pool     TxBeginner
	newStore NewBillStore
}

func NewBillingService(pool TxBeginner, newStore NewBillStore) *BillingService {
	return &BillingService{pool: pool, newStore: newStore}
}

// BillTotal renders the running bill for a visit. Cancelled orders are
// excluded; every other status counts, delivered or not.
func (s *BillingService) BillTotal(ctx context.Context, store BillStore, visitID uuid.UUID) (*BillSummary, error) {
	if _, err := store.GetVisit(ctx, visitID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVisitNotFound
		}
		return nil, fmt.Errorf("get visit: %w", err)
	}

	orders, err := store.ListOrdersByVisit(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	summary := &BillSummary{VisitID: visitID, Total: decimal.Zero}
	for _, o := range orders {
		if o.Status == enum.OrderStatusCancelled {
			continue
		}
		details, err := store.ListOrderLinesByOrder(ctx, o.ID)
		if err != nil {
			return nil, fmt.Errorf("list order lines: %w", err)
		}
		bo := BillOrder{Order: o, Total: numericToDecimal(o.Total)}
		for _, d := range details {
			price := numericToDecimal(d.Line.UnitPrice)
			bo.Lines = append(bo.Lines, BillLine{
				Description: d.Description,
				Quantity:    d.Line.Quantity,
				UnitPrice:   price,
				Subtotal:    price.Mul(decimal.NewFromInt32(d.Line.Quantity)),
			})
		}
		summary.Orders = append(summary.Orders, bo)
		summary.Total = summary.Total.Add(bo.Total)
	}
	return summary, nil
}

// SplitEvenly divides a bill total across people, rounding each share
// half up to cents. Shares may sum to slightly more than the total.
func SplitEvenly(total decimal.Decimal, people int64) (decimal.Decimal, error) {
	if people < 1 {
		return decimal.Zero, ErrInvalidSplit
	}
	return total.DivRound(decimal.NewFromInt(people), 2), nil
}

// FinalizePayment closes the visit and writes its bill in one
// transaction. The visit row is locked first so two staff closing at
// once serialize; the loser sees CLOSED and gets ErrAlreadyPaid, which
// handlers report as a no-op confirmation. PENDING or ACCEPTED orders
// block the close.
func (s *BillingService) FinalizePayment(ctx context.Context, visitID uuid.UUID, actorID uuid.UUID) (*PaymentResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	visit, err := store.GetVisitForUpdate(ctx, visitID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVisitNotFound
		}
		return nil, fmt.Errorf("lock visit: %w", err)
	}

	switch visit.Status {
	case enum.TableStatusClosed:
		return nil, ErrAlreadyPaid
	case enum.TableStatusOccupied, enum.TableStatusBillRequested:
		// closable
	default:
		return nil, &InvalidTransitionError{Entity: "visit", From: visit.Status, To: enum.TableStatusClosed}
	}

	open, err := store.ListOpenOrdersByVisit(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	if len(open) > 0 {
		ids := make([]uuid.UUID, len(open))
		for i, o := range open {
			ids[i] = o.ID
		}
		return nil, &OpenOrdersError{OrderIDs: ids}
	}

	total, err := store.SumOrderTotalsByVisit(ctx, visitID)
	if err != nil {
		return nil, fmt.Errorf("sum order totals: %w", err)
	}

	bill, err := store.CreateBill(ctx, database.CreateBillParams{
		VisitID: visitID,
		Total:   total,
	})
	if err != nil {
		return nil, fmt.Errorf("create bill: %w", err)
	}

	closed, err := store.CloseVisit(ctx, database.CloseVisitParams{
		ID:       visitID,
		Expected: visit.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyPaid
		}
		return nil, fmt.Errorf("close visit: %w", err)
	}

	table, err := store.GetTable(ctx, closed.TableID)
	if err != nil {
		return nil, fmt.Errorf("get table: %w", err)
	}

	_, err = store.CreateAuditEntry(ctx, database.CreateAuditEntryParams{
		RestaurantID: table.RestaurantID,
		Entity:       "visit",
		EntityID:     closed.ID,
		Action:       enum.AuditVisitClosed,
		Detail:       fmt.Sprintf("paid %s", numericToDecimal(bill.Total).StringFixed(2)),
		ActorID:      pgtype.UUID{Bytes: actorID, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("audit visit closed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &PaymentResult{Visit: closed, Bill: bill, RestaurantID: table.RestaurantID}, nil
}

// Bill fetches the persisted bill for a closed visit.
func (s *BillingService) Bill(ctx context.Context, store BillStore, visitID uuid.UUID) (database.Bill, error) {
	bill, err := store.GetBillByVisit(ctx, visitID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Bill{}, ErrBillNotFound
		}
		return database.Bill{}, fmt.Errorf("get bill: %w", err)
	}
	return bill, nil
}
