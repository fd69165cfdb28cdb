package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/media"
	"github.com/tableside/api/internal/service"
)

const maxQRSize = 2048

// TableServicer defines the table service methods needed by table handlers.
// Satisfied by *service.TableService.
type TableServicer interface {
	ListTables(ctx context.Context) ([]database.Table, error)
	GetTable(ctx context.Context, id int32) (*database.Table, error)
	UpdateTable(ctx context.Context, id int32, name string, seats int32) (*database.Table, error)
	SetCount(ctx context.Context, count int) ([]database.Table, error)
}

// TableOrderServicer defines the order operations addressed by table.
// Satisfied by *service.OrderService.
type TableOrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.Order, error)
	AddItemToTable(ctx context.Context, tableID int32, menuItemID uuid.UUID, qty int32) (*service.Order, error)
	Checkout(ctx context.Context, tableID int32, method string) (*service.CheckoutResult, error)
}

// TableHandler handles table endpoints, including the customer cart
// submission and admin checkout.
type TableHandler struct {
	tables        TableServicer
	orders        TableOrderServicer
	publicBaseURL string
}

func NewTableHandler(tables TableServicer, orders TableOrderServicer, publicBaseURL string) *TableHandler {
	return &TableHandler{tables: tables, orders: orders, publicBaseURL: publicBaseURL}
}

// RegisterPublicRoutes registers what a customer at a table can reach.
func (h *TableHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/tables/{id}", h.Get)
	r.Post("/tables/{id}/orders", h.SubmitCart)
}

// RegisterAdminRoutes registers table management and checkout.
func (h *TableHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/tables", h.List)
	r.Put("/tables/count", h.SetCount)
	r.Patch("/tables/{id}", h.Update)
	r.Get("/tables/{id}/qrcode", h.QRCode)
	r.Post("/tables/{id}/checkout", h.Checkout)
	r.Post("/tables/{id}/items", h.AddItem)
}

// --- Request types ---

type cartLineRequest struct {
	MenuItemID string `json:"menu_item_id" validate:"required,uuid"`
	Qty        int32  `json:"qty" validate:"lte=9999"`
}

type submitCartRequest struct {
	Items      []cartLineRequest `json:"items" validate:"dive"`
	TotalPrice int64             `json:"total_price" validate:"gte=0"`
}

type setCountRequest struct {
	Count *int `json:"count" validate:"required,lte=500"`
}

type updateTableRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1"`
	Seats *int32  `json:"seats" validate:"omitempty,gt=0"`
}

type checkoutRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required"`
}

type addItemRequest struct {
	MenuItemID string `json:"menu_item_id" validate:"required,uuid"`
	Qty        *int32 `json:"qty" validate:"omitempty,gt=0,lte=9999"`
}

// --- Handlers ---

// Get handles GET /tables/{id}; customers use it for the page header.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := tableIDParam(w, r)
	if !ok {
		return
	}

	t, err := h.tables.GetTable(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get table")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// SubmitCart handles POST /tables/{id}/orders.
func (h *TableHandler) SubmitCart(w http.ResponseWriter, r *http.Request) {
	id, ok := tableIDParam(w, r)
	if !ok {
		return
	}
	var req submitCartRequest
	if !decodeBody(w, r, &req) {
		return
	}

	lines := make([]service.CartLine, len(req.Items))
	for i, it := range req.Items {
		lines[i] = service.CartLine{MenuItemID: uuid.MustParse(it.MenuItemID), Qty: it.Qty}
	}

	order, err := h.orders.CreateOrder(r.Context(), service.CreateOrderRequest{
		TableID:    id,
		Items:      lines,
		TotalPrice: req.TotalPrice,
	})
	if err != nil {
		writeServiceError(w, err, "submit cart")
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.tables.ListTables(r.Context())
	if err != nil {
		writeServiceError(w, err, "list tables")
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

// SetCount handles PUT /tables/count. Negative counts clear every table.
func (h *TableHandler) SetCount(w http.ResponseWriter, r *http.Request) {
	var req setCountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tables, err := h.tables.SetCount(r.Context(), *req.Count)
	if err != nil {
		writeServiceError(w, err, "set table count")
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

// Update handles PATCH /tables/{id}. Omitted fields keep their value.
func (h *TableHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := tableIDParam(w, r)
	if !ok {
		return
	}
	var req updateTableRequest
	if !decodeBody(w, r, &req) {
		return
	}

	current, err := h.tables.GetTable(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get table")
		return
	}
	name, seats := current.Name, current.Seats
	if req.Name != nil {
		name = *req.Name
	}
	if req.Seats != nil {
		seats = *req.Seats
	}

	t, err := h.tables.UpdateTable(r.Context(), id, name, seats)
	if err != nil {
		writeServiceError(w, err, "update table")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// QRCode handles GET /tables/{id}/qrcode?size=N and returns a PNG that
// opens the table's ordering page.
func (h *TableHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	id, ok := tableIDParam(w, r)
	if !ok {
		return
	}

	size := media.DefaultQRSize
	if s := r.URL.Query().Get("size"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 || v > maxQRSize {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("size must be between 1 and %d", maxQRSize)})
			return
		}
		size = v
	}

	t, err := h.tables.GetTable(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get table")
		return
	}

	png, err := media.QRCode(media.TableURL(h.publicBaseURL, t.ID), size)
	if err != nil {
		writeServiceError(w, err, "render qr code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, media.QRFilename(t.ID, t.Name)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		log.WithError(err).Warn("write qr code")
	}
}

// Checkout handles POST /tables/{id}/checkout.
func (h *TableHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, ok := tableIDParam(w, r)
	if !ok {
		return
	}
	var req checkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.orders.Checkout(r.Context(), id, req.PaymentMethod)
	if err != nil {
		writeServiceError(w, err, "checkout")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AddItem handles POST /tables/{id}/items: qty (default 1) of a menu item
// goes onto the table's latest unpaid order.
func (h *TableHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := tableIDParam(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	qty := int32(1)
	if req.Qty != nil {
		qty = *req.Qty
	}

	order, err := h.orders.AddItemToTable(r.Context(), id, uuid.MustParse(req.MenuItemID), qty)
	if err != nil {
		writeServiceError(w, err, "add item to table")
		return
	}
	writeJSON(w, http.StatusOK, order)
}
