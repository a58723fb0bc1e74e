package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/qr-efficient/api/internal/database"
	"github.com/qr-efficient/api/internal/enum"
	"github.com/qr-efficient/api/internal/handler"
	"github.com/qr-efficient/api/internal/qr"
	"github.com/qr-efficient/api/internal/service"
)

// --- Mock VisitServicer ---

type mockVisitService struct {
	resolveScanFn    func(ctx context.Context, tableID uuid.UUID) (database.RestaurantTable, database.TableVisit, error)
	requestServiceFn func(ctx context.Context, visitID uuid.UUID, kind string) (*service.VisitResult, error)
	acknowledgeFn    func(ctx context.Context, visitID, actorID uuid.UUID) (*service.VisitResult, error)
}

func (m *mockVisitService) ResolveScan(ctx context.Context, store service.TableStore, tableID uuid.UUID) (database.RestaurantTable, database.TableVisit, error) {
	return m.resolveScanFn(ctx, tableID)
}

func (m *mockVisitService) RequestService(ctx context.Context, visitID uuid.UUID, kind string) (*service.VisitResult, error) {
	return m.requestServiceFn(ctx, visitID, kind)
}

func (m *mockVisitService) Acknowledge(ctx context.Context, visitID, actorID uuid.UUID) (*service.VisitResult, error) {
	return m.acknowledgeFn(ctx, visitID, actorID)
}

// --- Mock VisitBillServicer ---

type mockVisitBilling struct {
	finalizeFn func(ctx context.Context, visitID, actorID uuid.UUID) (*service.PaymentResult, error)
}

func (m *mockVisitBilling) FinalizePayment(ctx context.Context, visitID, actorID uuid.UUID) (*service.PaymentResult, error) {
	return m.finalizeFn(ctx, visitID, actorID)
}

// --- Mock VisitStore ---

type mockVisitStore struct {
	getVisitFn   func(ctx context.Context, id uuid.UUID) (database.TableVisit, error)
	getTableFn   func(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error)
	listOrdersFn func(ctx context.Context, visitID uuid.UUID) ([]database.Order, error)
}

func (m *mockVisitStore) GetVisit(ctx context.Context, id uuid.UUID) (database.TableVisit, error) {
	if m.getVisitFn != nil {
		return m.getVisitFn(ctx, id)
	}
	return database.TableVisit{}, pgx.ErrNoRows
}

func (m *mockVisitStore) GetTable(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error) {
	if m.getTableFn != nil {
		return m.getTableFn(ctx, id)
	}
	return database.RestaurantTable{}, pgx.ErrNoRows
}

func (m *mockVisitStore) ListOrdersByVisit(ctx context.Context, visitID uuid.UUID) ([]database.Order, error) {
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, visitID)
	}
	return []database.Order{}, nil
}

// --- Test helpers ---

func setupVisitRouter(t *testing.T, svc *mockVisitService, billing *mockVisitBilling, store *mockVisitStore) *chi.Mux {
	t.Helper()
	h := handler.NewVisitHandler(svc, billing, store, nil, testHub(t), testJWTSecret)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func testVisit(tableID uuid.UUID, status string) database.TableVisit {
	return database.TableVisit{
		ID:       uuid.New(),
		TableID:  tableID,
		Status:   status,
		OpenedAt: time.Now(),
	}
}

func testTable(restaurantID uuid.UUID, number int32) database.RestaurantTable {
	return database.RestaurantTable{
		ID:           uuid.New(),
		RestaurantID: restaurantID,
		Number:       number,
		Label:        "Table",
	}
}

// visitStoreScopedTo resolves the visit and its table within the given
// restaurant.
func visitStoreScopedTo(restaurantID uuid.UUID, visit database.TableVisit) *mockVisitStore {
	table := testTable(restaurantID, 1)
	table.ID = visit.TableID
	return &mockVisitStore{
		getVisitFn: func(ctx context.Context, id uuid.UUID) (database.TableVisit, error) {
			return visit, nil
		},
		getTableFn: func(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error) {
			return table, nil
		},
	}
}

// --- Tests ---

func TestScan_HappyPath(t *testing.T) {
	restaurantID := uuid.New()
	table := testTable(restaurantID, 4)
	visit := testVisit(table.ID, enum.TableStatusOccupied)

	svc := &mockVisitService{
		resolveScanFn: func(ctx context.Context, tableID uuid.UUID) (database.RestaurantTable, database.TableVisit, error) {
			if tableID != table.ID {
				t.Errorf("table id: got %v, want %v", tableID, table.ID)
			}
			return table, visit, nil
		},
	}

	router := setupVisitRouter(t, svc, &mockVisitBilling{}, &mockVisitStore{})
	rr := doRequest(t, router, "POST", "/client/scan", map[string]interface{}{
		"payload": qr.Payload(table.ID),
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	v, ok := resp["visit"].(map[string]interface{})
	if !ok {
		t.Fatal("visit not present in response")
	}
	if v["status"] != "OCCUPIED" {
		t.Errorf("visit status: got %v, want OCCUPIED", v["status"])
	}
}

func TestScan_ForeignPayload(t *testing.T) {
	router := setupVisitRouter(t, &mockVisitService{}, &mockVisitBilling{}, &mockVisitStore{})
	rr := doRequest(t, router, "POST", "/client/scan", map[string]interface{}{
		"payload": "https://example.com/menu.pdf",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	resp := decodeJSON(t, rr)
	if resp["error"] != "invalid QR payload" {
		t.Errorf("error: got %v", resp["error"])
	}
}

func TestScan_NoActiveVisit(t *testing.T) {
	svc := &mockVisitService{
		resolveScanFn: func(ctx context.Context, tableID uuid.UUID) (database.RestaurantTable, database.TableVisit, error) {
			return database.RestaurantTable{}, database.TableVisit{}, service.ErrVisitNotFound
		},
	}

	router := setupVisitRouter(t, svc, &mockVisitBilling{}, &mockVisitStore{})
	rr := doRequest(t, router, "POST", "/client/scan", map[string]interface{}{
		"payload": qr.Payload(uuid.New()),
	})

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestVisitAction_RequestBill(t *testing.T) {
	restaurantID := uuid.New()
	visit := testVisit(uuid.New(), enum.TableStatusBillRequested)

	svc := &mockVisitService{
		requestServiceFn: func(ctx context.Context, visitID uuid.UUID, kind string) (*service.VisitResult, error) {
			if kind != enum.ServiceKindBill {
				t.Errorf("kind: got %s, want %s", kind, enum.ServiceKindBill)
			}
			return &service.VisitResult{Visit: visit, RestaurantID: restaurantID}, nil
		},
	}

	router := setupVisitRouter(t, svc, &mockVisitBilling{}, &mockVisitStore{})
	rr := doRequest(t, router, "PUT", "/table-visits/"+visit.ID.String(), map[string]interface{}{
		"action": "request_bill",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	if resp["status"] != "BILL_REQUESTED" {
		t.Errorf("status: got %v, want BILL_REQUESTED", resp["status"])
	}
}

func TestVisitAction_RequestWaiterOnClosedVisit(t *testing.T) {
	svc := &mockVisitService{
		requestServiceFn: func(ctx context.Context, visitID uuid.UUID, kind string) (*service.VisitResult, error) {
			return nil, service.ErrVisitClosed
		},
	}

	router := setupVisitRouter(t, svc, &mockVisitBilling{}, &mockVisitStore{})
	rr := doRequest(t, router, "PUT", "/table-visits/"+uuid.New().String(), map[string]interface{}{
		"action": "request_waiter",
	})

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestVisitAction_AcknowledgeWithoutToken(t *testing.T) {
	router := setupVisitRouter(t, &mockVisitService{}, &mockVisitBilling{}, &mockVisitStore{})
	rr := doRequest(t, router, "PUT", "/table-visits/"+uuid.New().String(), map[string]interface{}{
		"action": "acknowledge",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestVisitAction_AcknowledgeAsWaiter(t *testing.T) {
	restaurantID := uuid.New()
	claims := waiterClaims(restaurantID)
	visit := testVisit(uuid.New(), enum.TableStatusOccupied)

	svc := &mockVisitService{
		acknowledgeFn: func(ctx context.Context, visitID, actorID uuid.UUID) (*service.VisitResult, error) {
			if actorID != claims.UserID {
				t.Errorf("actor: got %v, want %v", actorID, claims.UserID)
			}
			return &service.VisitResult{Visit: visit, RestaurantID: restaurantID}, nil
		},
	}

	router := setupVisitRouter(t, svc, &mockVisitBilling{}, visitStoreScopedTo(restaurantID, visit))
	rr := doAuthRequest(t, router, "PUT", "/table-visits/"+visit.ID.String(), map[string]interface{}{
		"action": "acknowledge",
	}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	if resp["status"] != "OCCUPIED" {
		t.Errorf("status: got %v, want OCCUPIED", resp["status"])
	}
}

func TestVisitAction_CloseBlockedByOpenOrders(t *testing.T) {
	restaurantID := uuid.New()
	claims := waiterClaims(restaurantID)
	visit := testVisit(uuid.New(), enum.TableStatusBillRequested)

	billing := &mockVisitBilling{
		finalizeFn: func(ctx context.Context, visitID, actorID uuid.UUID) (*service.PaymentResult, error) {
			return nil, &service.OpenOrdersError{OrderIDs: []uuid.UUID{uuid.New()}}
		},
	}

	router := setupVisitRouter(t, &mockVisitService{}, billing, visitStoreScopedTo(restaurantID, visit))
	rr := doAuthRequest(t, router, "PUT", "/table-visits/"+visit.ID.String(), map[string]interface{}{
		"action": "close",
	}, claims)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestVisitAction_CloseForeignRestaurant(t *testing.T) {
	claims := waiterClaims(uuid.New())
	visit := testVisit(uuid.New(), enum.TableStatusBillRequested)

	billing := &mockVisitBilling{
		finalizeFn: func(ctx context.Context, visitID, actorID uuid.UUID) (*service.PaymentResult, error) {
			t.Error("close reached the billing service")
			return nil, service.ErrVisitNotFound
		},
	}

	router := setupVisitRouter(t, &mockVisitService{}, billing, visitStoreScopedTo(uuid.New(), visit))
	rr := doAuthRequest(t, router, "PUT", "/table-visits/"+visit.ID.String(), map[string]interface{}{
		"action": "close",
	}, claims)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestVisitAction_CloseTwiceConfirms(t *testing.T) {
	restaurantID := uuid.New()
	claims := waiterClaims(restaurantID)
	visit := testVisit(uuid.New(), enum.TableStatusClosed)

	billing := &mockVisitBilling{
		finalizeFn: func(ctx context.Context, visitID, actorID uuid.UUID) (*service.PaymentResult, error) {
			return nil, service.ErrAlreadyPaid
		},
	}

	router := setupVisitRouter(t, &mockVisitService{}, billing, visitStoreScopedTo(restaurantID, visit))
	rr := doAuthRequest(t, router, "PUT", "/table-visits/"+visit.ID.String(), map[string]interface{}{
		"action": "close",
	}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	if resp["notice"] == nil {
		t.Error("expected a notice for the repeated close")
	}
}

func TestVisitAction_Unknown(t *testing.T) {
	router := setupVisitRouter(t, &mockVisitService{}, &mockVisitBilling{}, &mockVisitStore{})
	rr := doRequest(t, router, "PUT", "/table-visits/"+uuid.New().String(), map[string]interface{}{
		"action": "dance",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestVisitGet_IncludesOrders(t *testing.T) {
	restaurantID := uuid.New()
	table := testTable(restaurantID, 2)
	visit := testVisit(table.ID, enum.TableStatusNewOrder)

	store := &mockVisitStore{
		getVisitFn: func(ctx context.Context, id uuid.UUID) (database.TableVisit, error) {
			return visit, nil
		},
		getTableFn: func(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error) {
			return table, nil
		},
		listOrdersFn: func(ctx context.Context, visitID uuid.UUID) ([]database.Order, error) {
			return []database.Order{
				testOrder(visit.ID, enum.OrderStatusPending, "13.50"),
				testOrder(visit.ID, enum.OrderStatusCancelled, "4.00"),
			}, nil
		},
	}

	router := setupVisitRouter(t, &mockVisitService{}, &mockVisitBilling{}, store)
	rr := doRequest(t, router, "GET", "/table-visits/"+visit.ID.String(), nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	orders, ok := resp["orders"].([]interface{})
	if !ok || len(orders) != 2 {
		t.Fatalf("orders: got %v", resp["orders"])
	}
}

func TestVisitGet_NotFound(t *testing.T) {
	router := setupVisitRouter(t, &mockVisitService{}, &mockVisitBilling{}, &mockVisitStore{})
	rr := doRequest(t, router, "GET", "/table-visits/"+uuid.New().String(), nil)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
