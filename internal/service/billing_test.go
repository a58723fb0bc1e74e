package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/qr-efficient/api/internal/database"
	"github.com/qr-efficient/api/internal/enum"
	"github.com/shopspring/decimal"
)

// mockBillStore implements BillStore with configurable behavior.
type mockBillStore struct {
	getVisitFn              func(ctx context.Context, id uuid.UUID) (database.TableVisit, error)
	getVisitForUpdateFn     func(ctx context.Context, id uuid.UUID) (database.TableVisit, error)
	getTableFn              func(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error)
	listOrdersByVisitFn     func(ctx context.Context, visitID uuid.UUID) ([]database.Order, error)
	listOrderLinesByOrderFn func(ctx context.Context, orderID uuid.UUID) ([]database.OrderLineDetail, error)
	listOpenOrdersByVisitFn func(ctx context.Context, visitID uuid.UUID) ([]database.Order, error)
	sumOrderTotalsByVisitFn func(ctx context.Context, visitID uuid.UUID) (pgtype.Numeric, error)
	createBillFn            func(ctx context.Context, arg database.CreateBillParams) (database.Bill, error)
	getBillByVisitFn        func(ctx context.Context, visitID uuid.UUID) (database.Bill, error)
	closeVisitFn            func(ctx context.Context, arg database.CloseVisitParams) (database.TableVisit, error)
	createAuditEntryFn      func(ctx context.Context, arg database.CreateAuditEntryParams) (database.AuditEntry, error)
}

func (m *mockBillStore) GetVisit(ctx context.Context, id uuid.UUID) (database.TableVisit, error) {
	return m.getVisitFn(ctx, id)
}
func (m *mockBillStore) GetVisitForUpdate(ctx context.Context, id uuid.UUID) (database.TableVisit, error) {
	return m.getVisitForUpdateFn(ctx, id)
}
func (m *mockBillStore) GetTable(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error) {
	return m.getTableFn(ctx, id)
}
func (m *mockBillStore) ListOrdersByVisit(ctx context.Context, visitID uuid.UUID) ([]database.Order, error) {
	return m.listOrdersByVisitFn(ctx, visitID)
}
func (m *mockBillStore) ListOrderLinesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderLineDetail, error) {
	return m.listOrderLinesByOrderFn(ctx, orderID)
}
func (m *mockBillStore) ListOpenOrdersByVisit(ctx context.Context, visitID uuid.UUID) ([]database.Order, error) {
	return m.listOpenOrdersByVisitFn(ctx, visitID)
}
func (m *mockBillStore) SumOrderTotalsByVisit(ctx context.Context, visitID uuid.UUID) (pgtype.Numeric, error) {
	return m.sumOrderTotalsByVisitFn(ctx, visitID)
}
func (m *mockBillStore) CreateBill(ctx context.Context, arg database.CreateBillParams) (database.Bill, error) {
	return m.createBillFn(ctx, arg)
}
func (m *mockBillStore) GetBillByVisit(ctx context.Context, visitID uuid.UUID) (database.Bill, error) {
	return m.getBillByVisitFn(ctx, visitID)
}
func (m *mockBillStore) CloseVisit(ctx context.Context, arg database.CloseVisitParams) (database.TableVisit, error) {
	return m.closeVisitFn(ctx, arg)
}
func (m *mockBillStore) CreateAuditEntry(ctx context.Context, arg database.CreateAuditEntryParams) (database.AuditEntry, error) {
	return m.createAuditEntryFn(ctx, arg)
}

func newTestBillingService(store *mockBillStore) (*BillingService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) BillStore { return store }
	return NewBillingService(pool, newStore), tx
}

// defaultBillStore wires a store around one visit with two settled
// orders (10.00 and 3.50) and no open kitchen work.
func defaultBillStore(visitID uuid.UUID, visitStatus string) *mockBillStore {
	tableID := uuid.New()
	restaurantID := uuid.New()
	orders := []database.Order{
		{ID: uuid.New(), VisitID: visitID, Status: enum.OrderStatusDelivered, Total: makeNumeric("10.00")},
		{ID: uuid.New(), VisitID: visitID, Status: enum.OrderStatusDelivered, Total: makeNumeric("3.50")},
	}
	return &mockBillStore{
		getVisitFn: func(ctx context.Context, id uuid.UUID) (database.TableVisit, error) {
			if id == visitID {
				return database.TableVisit{ID: visitID, TableID: tableID, Status: visitStatus}, nil
			}
			return database.TableVisit{}, pgx.ErrNoRows
		},
		getVisitForUpdateFn: func(ctx context.Context, id uuid.UUID) (database.TableVisit, error) {
			if id == visitID {
				return database.TableVisit{ID: visitID, TableID: tableID, Status: visitStatus}, nil
			}
			return database.TableVisit{}, pgx.ErrNoRows
		},
		getTableFn: func(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error) {
			return database.RestaurantTable{ID: tableID, RestaurantID: restaurantID, Number: 4}, nil
		},
		listOrdersByVisitFn: func(ctx context.Context, id uuid.UUID) ([]database.Order, error) {
			return orders, nil
		},
		listOrderLinesByOrderFn: func(ctx context.Context, orderID uuid.UUID) ([]database.OrderLineDetail, error) {
			return []database.OrderLineDetail{
				{Line: database.OrderLine{OrderID: orderID, Quantity: 1, UnitPrice: makeNumeric("1.00")}, Description: "Item"},
			}, nil
		},
		listOpenOrdersByVisitFn: func(ctx context.Context, id uuid.UUID) ([]database.Order, error) {
			return nil, nil
		},
		sumOrderTotalsByVisitFn: func(ctx context.Context, id uuid.UUID) (pgtype.Numeric, error) {
			return makeNumeric("13.50"), nil
		},
		createBillFn: func(ctx context.Context, arg database.CreateBillParams) (database.Bill, error) {
			return database.Bill{ID: uuid.New(), VisitID: arg.VisitID, Total: arg.Total}, nil
		},
		getBillByVisitFn: func(ctx context.Context, id uuid.UUID) (database.Bill, error) {
			return database.Bill{}, pgx.ErrNoRows
		},
		closeVisitFn: func(ctx context.Context, arg database.CloseVisitParams) (database.TableVisit, error) {
			return database.TableVisit{ID: arg.ID, TableID: tableID, Status: enum.TableStatusClosed}, nil
		},
		createAuditEntryFn: func(ctx context.Context, arg database.CreateAuditEntryParams) (database.AuditEntry, error) {
			return database.AuditEntry{ID: uuid.New()}, nil
		},
	}
}

// =====================
// BillTotal tests
// =====================

func TestBillTotal_SumsOrders(t *testing.T) {
	visitID := uuid.New()
	store := defaultBillStore(visitID, enum.TableStatusOccupied)
	svc, _ := newTestBillingService(store)

	summary, err := svc.BillTotal(context.Background(), store, visitID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !summary.Total.Equal(price("13.50")) {
		t.Errorf("expected total 13.50, got %s", summary.Total)
	}
	if len(summary.Orders) != 2 {
		t.Errorf("expected 2 orders on the bill, got %d", len(summary.Orders))
	}
}

func TestBillTotal_ExcludesCancelled(t *testing.T) {
	visitID := uuid.New()
	store := defaultBillStore(visitID, enum.TableStatusOccupied)
	store.listOrdersByVisitFn = func(ctx context.Context, id uuid.UUID) ([]database.Order, error) {
		return []database.Order{
			{ID: uuid.New(), VisitID: visitID, Status: enum.OrderStatusDelivered, Total: makeNumeric("10.00")},
			{ID: uuid.New(), VisitID: visitID, Status: enum.OrderStatusCancelled, Total: makeNumeric("99.00")},
			{ID: uuid.New(), VisitID: visitID, Status: enum.OrderStatusAccepted, Total: makeNumeric("3.50")},
		}, nil
	}
	svc, _ := newTestBillingService(store)

	summary, err := svc.BillTotal(context.Background(), store, visitID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !summary.Total.Equal(price("13.50")) {
		t.Errorf("expected total 13.50, got %s", summary.Total)
	}
	if len(summary.Orders) != 2 {
		t.Errorf("expected cancelled order off the bill, got %d orders", len(summary.Orders))
	}
}

func TestBillTotal_EmptyVisit(t *testing.T) {
	visitID := uuid.New()
	store := defaultBillStore(visitID, enum.TableStatusOccupied)
	store.listOrdersByVisitFn = func(ctx context.Context, id uuid.UUID) ([]database.Order, error) {
		return nil, nil
	}
	svc, _ := newTestBillingService(store)

	summary, err := svc.BillTotal(context.Background(), store, visitID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !summary.Total.IsZero() {
		t.Errorf("expected zero total, got %s", summary.Total)
	}
}

func TestBillTotal_VisitNotFound(t *testing.T) {
	store := defaultBillStore(uuid.New(), enum.TableStatusOccupied)
	svc, _ := newTestBillingService(store)

	_, err := svc.BillTotal(context.Background(), store, uuid.New())
	if !errors.Is(err, ErrVisitNotFound) {
		t.Fatalf("expected ErrVisitNotFound, got: %v", err)
	}
}

// =====================
// SplitEvenly tests
// =====================

func TestSplitEvenly(t *testing.T) {
	cases := []struct {
		total  string
		people int64
		share  string
	}{
		{"13.50", 1, "13.50"},
		{"13.50", 2, "6.75"},
		{"13.50", 3, "4.50"},
		{"13.50", 4, "3.38"},
		{"0.00", 3, "0.00"},
		{"10.00", 3, "3.33"},
	}
	for _, tc := range cases {
		total, _ := decimal.NewFromString(tc.total)
		share, err := SplitEvenly(total, tc.people)
		if err != nil {
			t.Errorf("%s / %d: unexpected error: %v", tc.total, tc.people, err)
			continue
		}
		if share.StringFixed(2) != tc.share {
			t.Errorf("%s / %d: expected %s, got %s", tc.total, tc.people, tc.share, share.StringFixed(2))
		}
	}
}

func TestSplitEvenly_InvalidPeople(t *testing.T) {
	for _, people := range []int64{0, -1} {
		_, err := SplitEvenly(price("13.50"), people)
		if !errors.Is(err, ErrInvalidSplit) {
			t.Errorf("people=%d: expected ErrInvalidSplit, got: %v", people, err)
		}
	}
}

// =====================
// FinalizePayment tests
// =====================

func TestFinalizePayment_ClosesVisit(t *testing.T) {
	visitID := uuid.New()
	store := defaultBillStore(visitID, enum.TableStatusBillRequested)
	svc, tx := newTestBillingService(store)

	res, err := svc.FinalizePayment(context.Background(), visitID, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Visit.Status != enum.TableStatusClosed {
		t.Errorf("expected CLOSED, got %s", res.Visit.Status)
	}
	if !numericEquals(res.Bill.Total, "13.50") {
		t.Errorf("expected bill total 13.50, got %s", numericToDecimal(res.Bill.Total))
	}
	if !tx.committed {
		t.Error("expected transaction commit")
	}
}

func TestFinalizePayment_FromOccupied(t *testing.T) {
	visitID := uuid.New()
	store := defaultBillStore(visitID, enum.TableStatusOccupied)
	svc, _ := newTestBillingService(store)

	if _, err := svc.FinalizePayment(context.Background(), visitID, uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFinalizePayment_AlreadyPaid(t *testing.T) {
	visitID := uuid.New()
	store := defaultBillStore(visitID, enum.TableStatusClosed)
	svc, _ := newTestBillingService(store)

	_, err := svc.FinalizePayment(context.Background(), visitID, uuid.New())
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got: %v", err)
	}
}

func TestFinalizePayment_UnacknowledgedOrderFlag(t *testing.T) {
	visitID := uuid.New()
	store := defaultBillStore(visitID, enum.TableStatusNewOrder)
	svc, _ := newTestBillingService(store)

	_, err := svc.FinalizePayment(context.Background(), visitID, uuid.New())
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got: %v", err)
	}
}

func TestFinalizePayment_OpenOrdersBlock(t *testing.T) {
	visitID := uuid.New()
	blocking := uuid.New()
	store := defaultBillStore(visitID, enum.TableStatusBillRequested)
	store.listOpenOrdersByVisitFn = func(ctx context.Context, id uuid.UUID) ([]database.Order, error) {
		return []database.Order{
			{ID: blocking, VisitID: visitID, Status: enum.OrderStatusAccepted},
		}, nil
	}
	svc, tx := newTestBillingService(store)

	_, err := svc.FinalizePayment(context.Background(), visitID, uuid.New())
	var open *OpenOrdersError
	if !errors.As(err, &open) {
		t.Fatalf("expected OpenOrdersError, got: %v", err)
	}
	if len(open.OrderIDs) != 1 || open.OrderIDs[0] != blocking {
		t.Errorf("expected blocking order %s named, got %v", blocking, open.OrderIDs)
	}
	if tx.committed {
		t.Error("expected no commit")
	}
}

func TestFinalizePayment_VisitNotFound(t *testing.T) {
	store := defaultBillStore(uuid.New(), enum.TableStatusOccupied)
	svc, _ := newTestBillingService(store)

	_, err := svc.FinalizePayment(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrVisitNotFound) {
		t.Fatalf("expected ErrVisitNotFound, got: %v", err)
	}
}

func TestFinalizePayment_LostCloseRace(t *testing.T) {
	visitID := uuid.New()
	store := defaultBillStore(visitID, enum.TableStatusBillRequested)
	store.closeVisitFn = func(ctx context.Context, arg database.CloseVisitParams) (database.TableVisit, error) {
		return database.TableVisit{}, pgx.ErrNoRows
	}
	svc, _ := newTestBillingService(store)

	_, err := svc.FinalizePayment(context.Background(), visitID, uuid.New())
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got: %v", err)
	}
}

func TestBill_NotFound(t *testing.T) {
	visitID := uuid.New()
	store := defaultBillStore(visitID, enum.TableStatusOccupied)
	svc, _ := newTestBillingService(store)

	_, err := svc.Bill(context.Background(), store, visitID)
	if !errors.Is(err, ErrBillNotFound) {
		t.Fatalf("expected ErrBillNotFound, got: %v", err)
	}
}
