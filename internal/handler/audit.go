package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/qr-efficient/api/internal/database"
)

// AuditStore defines the database methods needed by the audit handler.
type AuditStore interface {
	ListAuditByRestaurant(ctx context.Context, arg database.ListAuditByRestaurantParams) ([]database.AuditEntry, error)
}

type AuditHandler struct {
	store AuditStore
}

func NewAuditHandler(store AuditStore) *AuditHandler {
	return &AuditHandler{store: store}
}

type auditEntryResponse struct {
	ID        uuid.UUID  `json:"id"`
	Entity    string     `json:"entity"`
	EntityID  uuid.UUID  `json:"entity_id"`
	Action    string     `json:"action"`
	Detail    string     `json:"detail"`
	ActorID   *uuid.UUID `json:"actor_id"`
	CreatedAt time.Time  `json:"created_at"`
}

// List handles GET /restaurants/{rid}/audit.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return
	}

	limit := int32(20)
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		if n > 100 {
			n = 100
		}
		limit = int32(n)
	}

	offset := int32(0)
	if s := r.URL.Query().Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "offset must be a non-negative integer"})
			return
		}
		offset = int32(n)
	}

	entries, err := h.store.ListAuditByRestaurant(r.Context(), database.ListAuditByRestaurantParams{
		RestaurantID: restaurantID,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		log.Printf("ERROR: list audit log: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]auditEntryResponse, len(entries))
	for i, e := range entries {
		resp[i] = auditEntryResponse{
			ID:        e.ID,
			Entity:    e.Entity,
			EntityID:  e.EntityID,
			Action:    e.Action,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		}
		if e.ActorID.Valid {
			actor := uuid.UUID(e.ActorID.Bytes)
			resp[i].ActorID = &actor
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
