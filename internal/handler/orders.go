package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/qr-efficient/api/internal/auth"
	"github.com/qr-efficient/api/internal/database"
	"github.com/qr-efficient/api/internal/middleware"
	"github.com/qr-efficient/api/internal/service"
	"github.com/qr-efficient/api/internal/ws"
	"github.com/shopspring/decimal"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Create(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	ChangeStatus(ctx context.Context, orderID uuid.UUID, next string, actorID uuid.UUID) (*service.TransitionResult, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID) (*service.TransitionResult, error)
}

// OrderReadStore defines the database methods needed by order read
// handlers. Satisfied by *database.Queries.
type OrderReadStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderRestaurant(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ListOrdersByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]database.KitchenOrderRow, error)
	ListOrderLinesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderLineDetail, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderReadStore
	hub   *ws.Hub
}

func NewOrderHandler(svc OrderServicer, store OrderReadStore, hub *ws.Hub) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub}
}

// RegisterClientRoutes registers the unauthenticated order endpoint.
func (h *OrderHandler) RegisterClientRoutes(r chi.Router) {
	r.Post("/orders", h.Create)
}

// RegisterStaffRoutes registers the authenticated order endpoints.
func (h *OrderHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/orders/{id}", h.Get)
	r.Put("/orders/{id}", h.UpdateStatus)
	r.Delete("/orders/{id}", h.Cancel)
}

// --- Request / Response types ---

type createOrderRequest struct {
	VisitID  string                   `json:"visit_id"`
	PersonID string                   `json:"person_id"`
	Notes    string                   `json:"notes"`
	Lines    []createOrderLineRequest `json:"lines"`
}

type createOrderLineRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	UnitPrice  string `json:"unit_price"`
}

type orderResponse struct {
	ID        uuid.UUID           `json:"id"`
	VisitID   uuid.UUID           `json:"visit_id"`
	PersonID  uuid.UUID           `json:"person_id"`
	Status    string              `json:"status"`
	Notes     *string             `json:"notes"`
	Total     string              `json:"total"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	Lines     []orderLineResponse `json:"lines,omitempty"`
}

type orderLineResponse struct {
	ID          uuid.UUID `json:"id"`
	MenuItemID  uuid.UUID `json:"menu_item_id"`
	Description string    `json:"description,omitempty"`
	Quantity    int32     `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
}

type kitchenOrderResponse struct {
	orderResponse
	TableNumber int32  `json:"table_number"`
	TableLabel  string `json:"table_label"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// Create handles POST /orders. Diners are anonymous; person_id is a
// client-generated session ID that groups their orders on the bill.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	visitID, err := uuid.Parse(req.VisitID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid visit_id"})
		return
	}
	personID, err := uuid.Parse(req.PersonID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid person_id"})
		return
	}

	if len(req.Lines) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lines are required"})
		return
	}

	lines := make([]service.CreateOrderLineRequest, len(req.Lines))
	for i, line := range req.Lines {
		itemID, err := uuid.Parse(line.MenuItemID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatLineError(i, "invalid menu_item_id"),
			})
			return
		}
		price, err := decimal.NewFromString(line.UnitPrice)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatLineError(i, "invalid unit_price"),
			})
			return
		}
		lines[i] = service.CreateOrderLineRequest{
			MenuItemID: itemID,
			Quantity:   line.Quantity,
			UnitPrice:  price,
		}
	}

	result, err := h.svc.Create(r.Context(), service.CreateOrderRequest{
		VisitID:  visitID,
		PersonID: personID,
		Notes:    req.Notes,
		Lines:    lines,
	})
	if err != nil {
		writeServiceError(w, err, "create order")
		return
	}

	resp := toOrderResponse(result.Order)
	for _, l := range result.Lines {
		resp.Lines = append(resp.Lines, orderLineResponse{
			ID:         l.ID,
			MenuItemID: l.MenuItemID,
			Quantity:   l.Quantity,
			UnitPrice:  numericToString(l.UnitPrice),
		})
	}

	h.hub.Notify(result.RestaurantID, "order.created", resp)
	writeJSON(w, http.StatusCreated, resp)
}

// authorizeOrder resolves the order's restaurant and rejects callers
// whose token belongs to another one. Writes the response and returns
// false on rejection.
func (h *OrderHandler) authorizeOrder(w http.ResponseWriter, r *http.Request, orderID uuid.UUID, claims *auth.Claims) bool {
	restaurantID, err := h.store.GetOrderRestaurant(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return false
		}
		log.Printf("ERROR: resolve order restaurant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return false
	}
	if !ownsRestaurant(claims, restaurantID) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied for this restaurant"})
		return false
	}
	return true
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	if !h.authorizeOrder(w, r, orderID, claims) {
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	details, err := h.store.ListOrderLinesByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order lines: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toOrderResponse(order)
	for _, d := range details {
		resp.Lines = append(resp.Lines, toOrderLineResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListKitchen handles GET /restaurants/{rid}/orders: every order still
// in the kitchen pipeline, joined with its table.
func (h *OrderHandler) ListKitchen(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	rows, err := h.store.ListOrdersByRestaurant(r.Context(), restaurantID)
	if err != nil {
		log.Printf("ERROR: list kitchen orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]kitchenOrderResponse, len(rows))
	for i, row := range rows {
		resp[i] = kitchenOrderResponse{
			orderResponse: toOrderResponse(row.Order),
			TableNumber:   row.TableNumber,
			TableLabel:    row.TableLabel,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PUT /orders/{id}.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req updateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	if !h.authorizeOrder(w, r, orderID, claims) {
		return
	}

	result, err := h.svc.ChangeStatus(r.Context(), orderID, req.Status, claims.UserID)
	if err != nil {
		writeServiceError(w, err, "update order status")
		return
	}

	resp := toOrderResponse(result.Order)
	h.hub.Notify(result.RestaurantID, "order.transitioned", resp)
	writeJSON(w, http.StatusOK, resp)
}

// Cancel handles DELETE /orders/{id}. The order is transitioned to
// CANCELLED, never removed.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	if !h.authorizeOrder(w, r, orderID, claims) {
		return
	}

	result, err := h.svc.Cancel(r.Context(), orderID, claims.UserID)
	if err != nil {
		writeServiceError(w, err, "cancel order")
		return
	}

	resp := toOrderResponse(result.Order)
	h.hub.Notify(result.RestaurantID, "order.transitioned", resp)
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func formatLineError(idx int, msg string) string {
	return "lines[" + strconv.Itoa(idx) + "]: " + msg
}

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyLines) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrNegativeUnitPrice) ||
		errors.Is(err, service.ErrMenuItemInactive) ||
		errors.Is(err, service.ErrInvalidStatus) ||
		errors.Is(err, service.ErrInvalidServiceKind) ||
		errors.Is(err, service.ErrInvalidSplit)
}

func isNotFoundError(err error) bool {
	return errors.Is(err, service.ErrOrderNotFound) ||
		errors.Is(err, service.ErrVisitNotFound) ||
		errors.Is(err, service.ErrTableNotFound) ||
		errors.Is(err, service.ErrMenuItemNotFound) ||
		errors.Is(err, service.ErrBillNotFound)
}

// writeServiceError maps service errors onto the HTTP status taxonomy:
// 400 validation, 404 stale reference, 409 state conflict.
func writeServiceError(w http.ResponseWriter, err error, op string) {
	var invalid *service.InvalidTransitionError
	var open *service.OpenOrdersError
	switch {
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case isNotFoundError(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &invalid), errors.As(err, &open),
		errors.Is(err, service.ErrTableBusy), errors.Is(err, service.ErrVisitClosed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:        o.ID,
		VisitID:   o.VisitID,
		PersonID:  o.PersonID,
		Status:    o.Status,
		Total:     numericToString(o.Total),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	return resp
}

func toOrderLineResponse(d database.OrderLineDetail) orderLineResponse {
	return orderLineResponse{
		ID:          d.Line.ID,
		MenuItemID:  d.Line.MenuItemID,
		Description: d.Description,
		Quantity:    d.Line.Quantity,
		UnitPrice:   numericToString(d.Line.UnitPrice),
	}
}
