package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/qr-efficient/api/internal/auth"
	"github.com/qr-efficient/api/internal/database"
	"github.com/qr-efficient/api/internal/enum"
	"github.com/qr-efficient/api/internal/middleware"
	"github.com/qr-efficient/api/internal/qr"
	"github.com/qr-efficient/api/internal/service"
	"github.com/qr-efficient/api/internal/ws"
)

// VisitServicer defines the service methods needed by visit handlers.
type VisitServicer interface {
	ResolveScan(ctx context.Context, store service.TableStore, tableID uuid.UUID) (database.RestaurantTable, database.TableVisit, error)
	RequestService(ctx context.Context, visitID uuid.UUID, kind string) (*service.VisitResult, error)
	Acknowledge(ctx context.Context, visitID, actorID uuid.UUID) (*service.VisitResult, error)
}

// VisitBillServicer is the billing side of visit actions.
type VisitBillServicer interface {
	FinalizePayment(ctx context.Context, visitID, actorID uuid.UUID) (*service.PaymentResult, error)
}

// VisitStore defines the database methods needed by visit read handlers.
type VisitStore interface {
	GetVisit(ctx context.Context, id uuid.UUID) (database.TableVisit, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error)
	ListOrdersByVisit(ctx context.Context, visitID uuid.UUID) ([]database.Order, error)
}

// VisitHandler handles the table-visit endpoints shared by diners and
// staff.
type VisitHandler struct {
	svc        VisitServicer
	billing    VisitBillServicer
	store      VisitStore
	tableStore service.TableStore
	hub        *ws.Hub
	jwtSecret  string
}

func NewVisitHandler(svc VisitServicer, billing VisitBillServicer, store VisitStore, tableStore service.TableStore, hub *ws.Hub, jwtSecret string) *VisitHandler {
	return &VisitHandler{svc: svc, billing: billing, store: store, tableStore: tableStore, hub: hub, jwtSecret: jwtSecret}
}

// RegisterRoutes registers visit endpoints. The PUT action endpoint is
// public: diner actions pass through, staff actions authenticate inside
// the handler so the route matches the one contract both sides use.
func (h *VisitHandler) RegisterRoutes(r chi.Router) {
	r.Post("/client/scan", h.Scan)
	r.Get("/table-visits/{id}", h.Get)
	r.Put("/table-visits/{id}", h.Action)
}

// --- Request / Response types ---

type scanRequest struct {
	Payload string `json:"payload"`
}

type scanResponse struct {
	Table tableResponse `json:"table"`
	Visit visitResponse `json:"visit"`
}

type visitDetailResponse struct {
	visitResponse
	Table  tableResponse   `json:"table"`
	Orders []orderResponse `json:"orders"`
}

type visitActionRequest struct {
	Action string `json:"action"`
}

// --- Handlers ---

// Scan handles POST /client/scan: a diner's scanned QR payload resolved
// to the table and its active visit.
func (h *VisitHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	tableID, err := qr.Parse(req.Payload)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid QR payload"})
		return
	}

	table, visit, err := h.svc.ResolveScan(r.Context(), h.tableStore, tableID)
	if err != nil {
		writeServiceError(w, err, "resolve scan")
		return
	}

	writeJSON(w, http.StatusOK, scanResponse{
		Table: toTableResponse(table),
		Visit: toVisitResponse(visit),
	})
}

// Get handles GET /table-visits/{id}: the visit with its table and
// every order placed under it, cancelled ones included.
func (h *VisitHandler) Get(w http.ResponseWriter, r *http.Request) {
	visitID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid visit ID"})
		return
	}

	visit, err := h.store.GetVisit(r.Context(), visitID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table visit not found"})
			return
		}
		log.Printf("ERROR: get visit: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	table, err := h.store.GetTable(r.Context(), visit.TableID)
	if err != nil {
		log.Printf("ERROR: get table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	orders, err := h.store.ListOrdersByVisit(r.Context(), visitID)
	if err != nil {
		log.Printf("ERROR: list visit orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := visitDetailResponse{
		visitResponse: toVisitResponse(visit),
		Table:         toTableResponse(table),
		Orders:        make([]orderResponse, len(orders)),
	}
	for i, o := range orders {
		resp.Orders[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Action handles PUT /table-visits/{id}. Diners may request the bill or
// a waiter; acknowledge and close require a staff token.
func (h *VisitHandler) Action(w http.ResponseWriter, r *http.Request) {
	visitID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid visit ID"})
		return
	}

	var req visitActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	switch req.Action {
	case "request_bill":
		h.request(w, r, visitID, enum.ServiceKindBill)
	case "request_waiter":
		h.request(w, r, visitID, enum.ServiceKindWaiter)
	case "acknowledge":
		claims, ok := h.staffClaims(w, r)
		if !ok {
			return
		}
		if !h.authorizeVisit(w, r, visitID, claims) {
			return
		}
		result, err := h.svc.Acknowledge(r.Context(), visitID, claims.UserID)
		if err != nil {
			writeServiceError(w, err, "acknowledge visit")
			return
		}
		resp := toVisitResponse(result.Visit)
		h.hub.Notify(result.RestaurantID, "table.updated", resp)
		writeJSON(w, http.StatusOK, resp)
	case "close":
		claims, ok := h.staffClaims(w, r)
		if !ok {
			return
		}
		if !h.authorizeVisit(w, r, visitID, claims) {
			return
		}
		result, err := h.billing.FinalizePayment(r.Context(), visitID, claims.UserID)
		if err != nil {
			// A second close confirms rather than fails.
			if errors.Is(err, service.ErrAlreadyPaid) {
				writeJSON(w, http.StatusOK, map[string]string{"notice": "visit is already closed and paid"})
				return
			}
			writeServiceError(w, err, "close visit")
			return
		}
		resp := toVisitResponse(result.Visit)
		h.hub.Notify(result.RestaurantID, "table.updated", resp)
		writeJSON(w, http.StatusOK, resp)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown action"})
	}
}

func (h *VisitHandler) request(w http.ResponseWriter, r *http.Request, visitID uuid.UUID, kind string) {
	result, err := h.svc.RequestService(r.Context(), visitID, kind)
	if err != nil {
		writeServiceError(w, err, "request service")
		return
	}
	resp := toVisitResponse(result.Visit)
	h.hub.Notify(result.RestaurantID, "table.updated", resp)
	writeJSON(w, http.StatusOK, resp)
}

// authorizeVisit resolves the visit's restaurant and rejects staff
// whose token belongs to another one.
func (h *VisitHandler) authorizeVisit(w http.ResponseWriter, r *http.Request, visitID uuid.UUID, claims *auth.Claims) bool {
	visit, err := h.store.GetVisit(r.Context(), visitID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table visit not found"})
			return false
		}
		log.Printf("ERROR: get visit: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return false
	}

	table, err := h.store.GetTable(r.Context(), visit.TableID)
	if err != nil {
		log.Printf("ERROR: get table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return false
	}

	if !ownsRestaurant(claims, table.RestaurantID) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied for this restaurant"})
		return false
	}
	return true
}

// staffClaims authenticates the staff-only visit actions. The route is
// public for diner actions, so the usual middleware cannot guard it.
func (h *VisitHandler) staffClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "staff authentication required"})
		return nil, false
	}

	claims, err := auth.ValidateToken(h.jwtSecret, parts[1])
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return nil, false
	}

	if !middleware.HasCapability(claims.Role, enum.CapManageTables) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
		return nil, false
	}

	return claims, true
}
