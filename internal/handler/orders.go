package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/lifecycle"
	"github.com/tableside/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	ListOrders(ctx context.Context, f service.OrderFilter) ([]service.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*service.Order, error)
	AdvanceStatus(ctx context.Context, orderID uuid.UUID, target string) (*service.Order, error)
	CompleteItem(ctx context.Context, orderID, itemID uuid.UUID) (*service.Order, error)
	UpdateItems(ctx context.Context, orderID uuid.UUID, items []lifecycle.Item) (*service.EditResult, error)
	AdjustQty(ctx context.Context, orderID, itemID uuid.UUID, delta int32) (*service.EditResult, error)
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
}

// OrderHandler handles the kitchen and admin order endpoints.
type OrderHandler struct {
	svc OrderServicer
}

func NewOrderHandler(svc OrderServicer) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// RegisterStaffRoutes registers the endpoints the kitchen display uses.
func (h *OrderHandler) RegisterStaffRoutes(r chi.Router) {
	r.Get("/orders", h.List)
	r.Get("/orders/{id}", h.Get)
	r.Patch("/orders/{id}/status", h.UpdateStatus)
	r.Post("/orders/{id}/items/{itemId}/complete", h.CompleteItem)
}

// RegisterAdminRoutes registers order editing.
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Put("/orders/{id}/items", h.UpdateItems)
	r.Post("/orders/{id}/items/{itemId}/adjust", h.AdjustQty)
	r.Delete("/orders/{id}", h.Delete)
}

// --- Request types ---

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderItemRequest struct {
	ID    string `json:"id" validate:"required,uuid"`
	Name  string `json:"name" validate:"required"`
	Price int64  `json:"price" validate:"gte=0"`
	Qty   int32  `json:"qty" validate:"lte=9999"`
}

type updateItemsRequest struct {
	Items []orderItemRequest `json:"items" validate:"required,dive"`
}

type adjustQtyRequest struct {
	Delta int32 `json:"delta" validate:"required,gte=-9999,lte=9999"`
}

// --- Handlers ---

// List handles GET /orders?table_id=&payment_status=&status=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f service.OrderFilter

	if s := q.Get("table_id"); s != "" {
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil || v <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
			return
		}
		f.TableID = int32(v)
	}
	if s := q.Get("payment_status"); s != "" {
		if s != enum.PaymentStatusUnpaid && s != enum.PaymentStatusPaid {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment_status"})
			return
		}
		f.PaymentStatus = s
	}
	if s := q.Get("status"); s != "" {
		switch s {
		case enum.OrderStatusPending, enum.OrderStatusPreparing, enum.OrderStatusCompleted:
			f.Status = s
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
	}

	orders, err := h.svc.ListOrders(r.Context(), f)
	if err != nil {
		writeServiceError(w, err, "list orders")
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get order")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// UpdateStatus handles PATCH /orders/{id}/status. Only "preparing" is a
// valid target; anything else is an invalid transition.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	o, err := h.svc.AdvanceStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, err, "update order status")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// CompleteItem handles POST /orders/{id}/items/{itemId}/complete.
func (h *OrderHandler) CompleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "itemId")
	if !ok {
		return
	}

	o, err := h.svc.CompleteItem(r.Context(), id, itemID)
	if err != nil {
		writeServiceError(w, err, "complete item")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// UpdateItems handles PUT /orders/{id}/items.
func (h *OrderHandler) UpdateItems(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req updateItemsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	items := make([]lifecycle.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = lifecycle.Item{
			ID:    uuid.MustParse(it.ID),
			Name:  it.Name,
			Price: it.Price,
			Qty:   it.Qty,
		}
	}

	res, err := h.svc.UpdateItems(r.Context(), id, items)
	if err != nil {
		writeServiceError(w, err, "update order items")
		return
	}
	writeEditResult(w, res)
}

// AdjustQty handles POST /orders/{id}/items/{itemId}/adjust.
func (h *OrderHandler) AdjustQty(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	itemID, ok := uuidParam(w, r, "itemId")
	if !ok {
		return
	}
	var req adjustQtyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.svc.AdjustQty(r.Context(), id, itemID, req.Delta)
	if err != nil {
		writeServiceError(w, err, "adjust item qty")
		return
	}
	writeEditResult(w, res)
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteOrder(r.Context(), id); err != nil {
		writeServiceError(w, err, "delete order")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func writeEditResult(w http.ResponseWriter, res *service.EditResult) {
	if res.Deleted {
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
		return
	}
	writeJSON(w, http.StatusOK, res.Order)
}
