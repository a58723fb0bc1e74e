package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/qr-efficient/api/internal/database"
	"github.com/qr-efficient/api/internal/service"
)

// BillServicer defines the service methods needed by bill handlers.
type BillServicer interface {
	BillTotal(ctx context.Context, store service.BillStore, visitID uuid.UUID) (*service.BillSummary, error)
	Bill(ctx context.Context, store service.BillStore, visitID uuid.UUID) (database.Bill, error)
}

// BillHandler renders the running bill for a visit.
type BillHandler struct {
	svc   BillServicer
	store service.BillStore
}

func NewBillHandler(svc BillServicer, store service.BillStore) *BillHandler {
	return &BillHandler{svc: svc, store: store}
}

func (h *BillHandler) RegisterRoutes(r chi.Router) {
	r.Get("/table-visits/{id}/bill", h.Get)
}

// --- Response types ---

type billLineResponse struct {
	Description string `json:"description"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

type billOrderResponse struct {
	OrderID uuid.UUID          `json:"order_id"`
	Status  string             `json:"status"`
	Total   string             `json:"total"`
	Lines   []billLineResponse `json:"lines"`
}

type billResponse struct {
	VisitID  uuid.UUID           `json:"visit_id"`
	Total    string              `json:"total"`
	Orders   []billOrderResponse `json:"orders"`
	Split    *splitResponse      `json:"split,omitempty"`
	PaidAt   *time.Time          `json:"paid_at,omitempty"`
	PaidBill *string             `json:"paid_total,omitempty"`
}

type splitResponse struct {
	People int64  `json:"people"`
	Share  string `json:"share"`
}

// --- Handlers ---

// Get handles GET /table-visits/{id}/bill. With ?split=N the response
// includes a per-person share rounded to cents.
func (h *BillHandler) Get(w http.ResponseWriter, r *http.Request) {
	visitID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid visit ID"})
		return
	}

	summary, err := h.svc.BillTotal(r.Context(), h.store, visitID)
	if err != nil {
		writeServiceError(w, err, "bill total")
		return
	}

	resp := billResponse{
		VisitID: summary.VisitID,
		Total:   summary.Total.StringFixed(2),
		Orders:  make([]billOrderResponse, len(summary.Orders)),
	}
	for i, bo := range summary.Orders {
		order := billOrderResponse{
			OrderID: bo.Order.ID,
			Status:  bo.Order.Status,
			Total:   bo.Total.StringFixed(2),
			Lines:   make([]billLineResponse, len(bo.Lines)),
		}
		for j, l := range bo.Lines {
			order.Lines[j] = billLineResponse{
				Description: l.Description,
				Quantity:    l.Quantity,
				UnitPrice:   l.UnitPrice.StringFixed(2),
				Subtotal:    l.Subtotal.StringFixed(2),
			}
		}
		resp.Orders[i] = order
	}

	if s := r.URL.Query().Get("split"); s != "" {
		people, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid split"})
			return
		}
		share, err := service.SplitEvenly(summary.Total, people)
		if err != nil {
			writeServiceError(w, err, "split bill")
			return
		}
		resp.Split = &splitResponse{People: people, Share: share.StringFixed(2)}
	}

	// A settled visit also carries the persisted bill.
	if bill, err := h.svc.Bill(r.Context(), h.store, visitID); err == nil {
		paid := numericToString(bill.Total)
		resp.PaidBill = &paid
		resp.PaidAt = &bill.PaidAt
	} else if !errors.Is(err, service.ErrBillNotFound) {
		writeServiceError(w, err, "get bill")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
