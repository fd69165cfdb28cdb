package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tableside/api/internal/lifecycle"
)

// ReportsServicer defines the service methods needed by report handlers.
// Satisfied by *service.OrderService.
type ReportsServicer interface {
	Revenue(ctx context.Context, f lifecycle.RevenueFilter) (lifecycle.RevenueReport, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	svc ReportsServicer
}

func NewReportsHandler(svc ReportsServicer) *ReportsHandler {
	return &ReportsHandler{svc: svc}
}

func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/reports/revenue", h.Revenue)
}

// --- Response types ---

type revenueFilterOptions struct {
	Years  []int `json:"years"`
	Months []int `json:"months"`
	Days   []int `json:"days"`
}

type revenueResponse struct {
	Year          int                  `json:"year,omitempty"`
	Month         int                  `json:"month,omitempty"`
	Day           int                  `json:"day,omitempty"`
	Total         int64                `json:"total"`
	OrderCount    int                  `json:"order_count"`
	AverageTicket string               `json:"average_ticket"`
	ByMethod      map[string]int64     `json:"by_payment_method"`
	AllTimeTotal  int64                `json:"all_time_total"`
	Options       revenueFilterOptions `json:"options"`
}

// Revenue handles GET /reports/revenue?year=&month=&day=. Omitted parts
// mean "all"; options lists the values available for the next selection.
func (h *ReportsHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	var f lifecycle.RevenueFilter
	var ok bool

	if f.Year, ok = intQuery(w, r, "year", 1, 9999); !ok {
		return
	}
	if f.Month, ok = intQuery(w, r, "month", 1, 12); !ok {
		return
	}
	if f.Day, ok = intQuery(w, r, "day", 1, 31); !ok {
		return
	}

	report, err := h.svc.Revenue(r.Context(), f)
	if err != nil {
		writeServiceError(w, err, "revenue report")
		return
	}

	writeJSON(w, http.StatusOK, revenueResponse{
		Year:          f.Year,
		Month:         f.Month,
		Day:           f.Day,
		Total:         report.Total,
		OrderCount:    report.OrderCount,
		AverageTicket: report.AverageTicket.StringFixed(2),
		ByMethod:      report.ByMethod,
		AllTimeTotal:  report.AllTimeTotal,
		Options: revenueFilterOptions{
			Years:  report.Years,
			Months: report.Months,
			Days:   report.Days,
		},
	})
}

// intQuery reads an optional integer query parameter within [lo, hi].
// Absent means 0.
func intQuery(w http.ResponseWriter, r *http.Request, name string, lo, hi int) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, true
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < lo || v > hi {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid %s", name)})
		return 0, false
	}
	return v, true
}
