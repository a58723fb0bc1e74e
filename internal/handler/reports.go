package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/qr-efficient/api/internal/database"
)

// ReportStore defines the database methods needed by report handlers.
type ReportStore interface {
	EarningsByDay(ctx context.Context, arg database.ReportRangeParams) ([]database.EarningsByDayRow, error)
	SalesByCategory(ctx context.Context, arg database.ReportRangeParams) ([]database.SalesByCategoryRow, error)
}

type ReportHandler struct {
	store ReportStore
}

func NewReportHandler(store ReportStore) *ReportHandler {
	return &ReportHandler{store: store}
}

type earningsResponse struct {
	Day   string `json:"day"`
	Bills int64  `json:"bills"`
	Total string `json:"total"`
}

type categorySalesResponse struct {
	CategoryID   uuid.UUID `json:"category_id"`
	CategoryName string    `json:"category_name"`
	Quantity     int64     `json:"quantity"`
	Revenue      string    `json:"revenue"`
}

// Earnings handles GET /restaurants/{rid}/reports/earnings.
func (h *ReportHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	arg, ok := reportParams(w, r)
	if !ok {
		return
	}

	rows, err := h.store.EarningsByDay(r.Context(), arg)
	if err != nil {
		log.Printf("ERROR: earnings report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]earningsResponse, len(rows))
	for i, row := range rows {
		resp[i] = earningsResponse{
			Day:   row.Day.Format("2006-01-02"),
			Bills: row.Bills,
			Total: numericToString(row.Total),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Categories handles GET /restaurants/{rid}/reports/categories.
func (h *ReportHandler) Categories(w http.ResponseWriter, r *http.Request) {
	arg, ok := reportParams(w, r)
	if !ok {
		return
	}

	rows, err := h.store.SalesByCategory(r.Context(), arg)
	if err != nil {
		log.Printf("ERROR: category report: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]categorySalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = categorySalesResponse{
			CategoryID:   row.CategoryID,
			CategoryName: row.CategoryName,
			Quantity:     row.Quantity,
			Revenue:      numericToString(row.Revenue),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// reportParams parses the restaurant ID and the start/end query
// params. The range defaults to the last 30 days and end is
// exclusive at the following midnight.
func reportParams(w http.ResponseWriter, r *http.Request) (database.ReportRangeParams, bool) {
	restaurantID, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid restaurant ID"})
		return database.ReportRangeParams{}, false
	}

	now := time.Now().UTC()
	start := now.AddDate(0, 0, -30).Truncate(24 * time.Hour)
	end := now

	if s := r.URL.Query().Get("start"); s != "" {
		start, err = time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start must be YYYY-MM-DD"})
			return database.ReportRangeParams{}, false
		}
	}
	if s := r.URL.Query().Get("end"); s != "" {
		end, err = time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end must be YYYY-MM-DD"})
			return database.ReportRangeParams{}, false
		}
		end = end.AddDate(0, 0, 1)
	}
	if !end.After(start) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end must be after start"})
		return database.ReportRangeParams{}, false
	}

	return database.ReportRangeParams{RestaurantID: restaurantID, Start: start, End: end}, true
}
