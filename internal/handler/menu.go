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
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/qr-efficient/api/internal/database"
	"github.com/shopspring/decimal"
)

// MenuStore defines the database methods needed by menu handlers.
type MenuStore interface {
	ListMenuByRestaurant(ctx context.Context, arg database.ListMenuByRestaurantParams) ([]database.MenuItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
}

// MenuHandler handles the menu catalog.
type MenuHandler struct {
	store MenuStore
}

func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// --- Request / Response types ---

type menuItemRequest struct {
	CategoryID  string `json:"category_id"`
	Description string `json:"description"`
	Price       string `json:"price"`
	PhotoURL    string `json:"photo_url"`
	Active      *bool  `json:"active"`
}

type menuItemResponse struct {
	ID          uuid.UUID `json:"id"`
	CategoryID  uuid.UUID `json:"category_id"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	PhotoURL    *string   `json:"photo_url"`
	Active      bool      `json:"active"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// --- Handlers ---

// ListPublic handles GET /restaurants/{rid}/menu: what diners see,
// active items only.
func (h *MenuHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

// ListAll handles the staff catalog view, inactive items included.
func (h *MenuHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

func (h *MenuHandler) list(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	items, err := h.store.ListMenuByRestaurant(r.Context(), database.ListMenuByRestaurantParams{
		RestaurantID: restaurantID,
		ActiveOnly:   activeOnly,
	})
	if err != nil {
		log.Printf("ERROR: list menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, item := range items {
		resp[i] = toMenuItemResponse(item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /restaurants/{rid}/menu-items.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	categoryID, price, photo, errMsg := parseMenuItemRequest(req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	item, err := h.store.CreateMenuItem(r.Context(), database.CreateMenuItemParams{
		RestaurantID: restaurantID,
		CategoryID:   categoryID,
		Description:  req.Description,
		Price:        price,
		PhotoURL:     photo,
	})
	if err != nil {
		log.Printf("ERROR: create menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toMenuItemResponse(item))
}

// Update handles PUT /menu-items/{id}. Deactivation happens here too:
// an inactive item leaves the client menu but stays on past order
// lines.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	current, err := h.store.GetMenuItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	categoryID, price, photo, errMsg := parseMenuItemRequest(req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	active := current.Active
	if req.Active != nil {
		active = *req.Active
	}

	item, err := h.store.UpdateMenuItem(r.Context(), database.UpdateMenuItemParams{
		ID:          itemID,
		CategoryID:  categoryID,
		Description: req.Description,
		Price:       price,
		PhotoURL:    photo,
		Active:      active,
	})
	if err != nil {
		log.Printf("ERROR: update menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// --- Helpers ---

func parseMenuItemRequest(req menuItemRequest) (uuid.UUID, pgtype.Numeric, pgtype.Text, string) {
	var none pgtype.Numeric
	if req.Description == "" {
		return uuid.Nil, none, pgtype.Text{}, "description is required"
	}
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return uuid.Nil, none, pgtype.Text{}, "invalid category_id"
	}
	d, err := decimal.NewFromString(req.Price)
	if err != nil || d.IsNegative() {
		return uuid.Nil, none, pgtype.Text{}, "price must be a non-negative decimal"
	}
	var price pgtype.Numeric
	_ = price.Scan(d.StringFixed(2))

	photo := pgtype.Text{}
	if req.PhotoURL != "" {
		photo = pgtype.Text{String: req.PhotoURL, Valid: true}
	}
	return categoryID, price, photo, ""
}

func toMenuItemResponse(m database.MenuItem) menuItemResponse {
	resp := menuItemResponse{
		ID:          m.ID,
		CategoryID:  m.CategoryID,
		Description: m.Description,
		Price:       numericToString(m.Price),
		Active:      m.Active,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.PhotoURL.Valid {
		resp.PhotoURL = &m.PhotoURL.String
	}
	return resp
}
