package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/qr-efficient/api/internal/database"
	"github.com/qr-efficient/api/internal/middleware"
	"github.com/qr-efficient/api/internal/qr"
	"github.com/qr-efficient/api/internal/service"
	"github.com/qr-efficient/api/internal/ws"
)

// TableServicer defines the service methods needed by table handlers.
type TableServicer interface {
	AssignWaiter(ctx context.Context, tableID, waiterID, actorID uuid.UUID) (*service.VisitResult, error)
}

// TableStore defines the database methods needed by table handlers.
type TableStore interface {
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.RestaurantTable, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.RestaurantTable, error)
	ListTablesWithVisit(ctx context.Context, restaurantID uuid.UUID) ([]database.TableWithVisitRow, error)
}

// TableHandler handles table endpoints.
type TableHandler struct {
	svc   TableServicer
	store TableStore
	hub   *ws.Hub
}

func NewTableHandler(svc TableServicer, store TableStore, hub *ws.Hub) *TableHandler {
	return &TableHandler{svc: svc, store: store, hub: hub}
}

// RegisterStaffRoutes registers table endpoints outside the restaurant
// scope; restaurant-scoped listing is wired in the router.
func (h *TableHandler) RegisterStaffRoutes(r chi.Router) {
	r.Post("/tables/{id}/assign", h.Assign)
	r.Get("/tables/{id}/qr", h.QR)
}

// --- Request / Response types ---

type createTableRequest struct {
	Number int32  `json:"number"`
	Label  string `json:"label"`
}

type tableResponse struct {
	ID     uuid.UUID `json:"id"`
	Number int32     `json:"number"`
	Label  string    `json:"label"`
}

type tableStateResponse struct {
	tableResponse
	Status     string     `json:"status"`
	VisitID    *uuid.UUID `json:"visit_id"`
	WaiterName *string    `json:"waiter_name"`
	OpenedAt   *time.Time `json:"opened_at"`
}

type assignRequest struct {
	WaiterID string `json:"waiter_id"`
}

type visitResponse struct {
	ID       uuid.UUID  `json:"id"`
	TableID  uuid.UUID  `json:"table_id"`
	WaiterID *uuid.UUID `json:"waiter_id"`
	Status   string     `json:"status"`
	OpenedAt time.Time  `json:"opened_at"`
	ClosedAt *time.Time `json:"closed_at"`
}

type qrResponse struct {
	TableID uuid.UUID `json:"table_id"`
	Number  int32     `json:"number"`
	Payload string    `json:"payload"`
}

// --- Handlers ---

// List handles GET /restaurants/{rid}/tables: the floor view, each
// table with its active visit state or FREE.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	rows, err := h.store.ListTablesWithVisit(r.Context(), restaurantID)
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tableStateResponse, len(rows))
	for i, row := range rows {
		resp[i] = toTableStateResponse(row)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /restaurants/{rid}/tables.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Number < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "number must be >= 1"})
		return
	}

	table, err := h.store.CreateTable(r.Context(), database.CreateTableParams{
		RestaurantID: restaurantID,
		Number:       req.Number,
		Label:        req.Label,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "table number already in use"})
			return
		}
		log.Printf("ERROR: create table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toTableResponse(table))
}

// Assign handles POST /tables/{id}/assign: a waiter takes the table,
// opening a fresh visit.
func (h *TableHandler) Assign(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	table, err := h.store.GetTable(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Printf("ERROR: get table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if !ownsRestaurant(claims, table.RestaurantID) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied for this restaurant"})
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	// Default to self-assignment.
	waiterID := claims.UserID
	if req.WaiterID != "" {
		waiterID, err = uuid.Parse(req.WaiterID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid waiter_id"})
			return
		}
	}

	result, err := h.svc.AssignWaiter(r.Context(), tableID, waiterID, claims.UserID)
	if err != nil {
		writeServiceError(w, err, "assign waiter")
		return
	}

	resp := toVisitResponse(result.Visit)
	h.hub.Notify(result.RestaurantID, "table.updated", resp)
	writeJSON(w, http.StatusCreated, resp)
}

// QR handles GET /tables/{id}/qr: the payload to print on the table's
// QR code. Image rendering is the front end's problem.
func (h *TableHandler) QR(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	table, err := h.store.GetTable(r.Context(), tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Printf("ERROR: get table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if claims := middleware.ClaimsFromContext(r.Context()); claims == nil || !ownsRestaurant(claims, table.RestaurantID) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied for this restaurant"})
		return
	}

	writeJSON(w, http.StatusOK, qrResponse{
		TableID: table.ID,
		Number:  table.Number,
		Payload: qr.Payload(table.ID),
	})
}

// --- Helpers ---

func toTableResponse(t database.RestaurantTable) tableResponse {
	return tableResponse{ID: t.ID, Number: t.Number, Label: t.Label}
}

func toTableStateResponse(row database.TableWithVisitRow) tableStateResponse {
	resp := tableStateResponse{
		tableResponse: toTableResponse(row.Table),
		Status:        row.Status,
	}
	if row.VisitID.Valid {
		id := uuid.UUID(row.VisitID.Bytes)
		resp.VisitID = &id
	}
	if row.WaiterName.Valid {
		resp.WaiterName = &row.WaiterName.String
	}
	if row.OpenedAt.Valid {
		resp.OpenedAt = &row.OpenedAt.Time
	}
	return resp
}

func toVisitResponse(v database.TableVisit) visitResponse {
	resp := visitResponse{
		ID:       v.ID,
		TableID:  v.TableID,
		Status:   v.Status,
		OpenedAt: v.OpenedAt,
	}
	if v.WaiterID.Valid {
		id := uuid.UUID(v.WaiterID.Bytes)
		resp.WaiterID = &id
	}
	if v.ClosedAt.Valid {
		resp.ClosedAt = &v.ClosedAt.Time
	}
	return resp
}
