package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/service"
)

// MenuServicer defines the service methods needed by menu handlers.
// Satisfied by *service.MenuService.
type MenuServicer interface {
	Menu(ctx context.Context) (*service.Menu, error)

	ListCategories(ctx context.Context) ([]database.Category, error)
	CreateCategory(ctx context.Context, name string) (*database.Category, error)
	RenameCategory(ctx context.Context, id uuid.UUID, name string) (*database.Category, error)
	ReorderCategories(ctx context.Context, ids []uuid.UUID) ([]database.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	ListMenuItems(ctx context.Context) ([]database.MenuItem, error)
	CreateMenuItem(ctx context.Context, in service.MenuItemInput) (*database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, id uuid.UUID, in service.MenuItemInput) (*database.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id uuid.UUID) error
}

// MenuHandler serves the public menu and the admin category and item CRUD.
type MenuHandler struct {
	svc MenuServicer
}

func NewMenuHandler(svc MenuServicer) *MenuHandler {
	return &MenuHandler{svc: svc}
}

// RegisterPublicRoutes registers the customer-facing menu.
func (h *MenuHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/menu", h.Menu)
}

// RegisterAdminRoutes registers category and menu item management.
func (h *MenuHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/categories", h.ListCategories)
	r.Post("/categories", h.CreateCategory)
	r.Put("/categories/order", h.ReorderCategories)
	r.Put("/categories/{id}", h.RenameCategory)
	r.Delete("/categories/{id}", h.DeleteCategory)

	r.Get("/menu-items", h.ListMenuItems)
	r.Post("/menu-items", h.CreateMenuItem)
	r.Put("/menu-items/{id}", h.UpdateMenuItem)
	r.Delete("/menu-items/{id}", h.DeleteMenuItem)
}

// --- Request types ---

type categoryRequest struct {
	Name string `json:"name" validate:"required"`
}

type reorderCategoriesRequest struct {
	IDs []string `json:"ids" validate:"required,dive,uuid"`
}

type menuItemRequest struct {
	CategoryID  string `json:"category_id" validate:"required,uuid"`
	Name        string `json:"name" validate:"required"`
	Price       *int64 `json:"price" validate:"required,gte=0"`
	Image       string `json:"image"`
	Description string `json:"description"`
}

func (req menuItemRequest) input() service.MenuItemInput {
	return service.MenuItemInput{
		CategoryID:  uuid.MustParse(req.CategoryID), // validated
		Name:        req.Name,
		Price:       *req.Price,
		Image:       req.Image,
		Description: req.Description,
	}
}

// --- Menu ---

// Menu handles GET /menu.
func (h *MenuHandler) Menu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.svc.Menu(r.Context())
	if err != nil {
		writeServiceError(w, err, "load menu")
		return
	}
	writeJSON(w, http.StatusOK, menu)
}

// --- Categories ---

func (h *MenuHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.ListCategories(r.Context())
	if err != nil {
		writeServiceError(w, err, "list categories")
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *MenuHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := h.svc.CreateCategory(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, err, "create category")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *MenuHandler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req categoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := h.svc.RenameCategory(r.Context(), id, req.Name)
	if err != nil {
		writeServiceError(w, err, "rename category")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ReorderCategories handles PUT /categories/order. ids must list every
// category once, in the new display order.
func (h *MenuHandler) ReorderCategories(w http.ResponseWriter, r *http.Request) {
	var req reorderCategoriesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ids := make([]uuid.UUID, len(req.IDs))
	for i, s := range req.IDs {
		ids[i] = uuid.MustParse(s)
	}

	categories, err := h.svc.ReorderCategories(r.Context(), ids)
	if err != nil {
		writeServiceError(w, err, "reorder categories")
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *MenuHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteCategory(r.Context(), id); err != nil {
		writeServiceError(w, err, "delete category")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// --- Menu items ---

func (h *MenuHandler) ListMenuItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListMenuItems(r.Context())
	if err != nil {
		writeServiceError(w, err, "list menu items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *MenuHandler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	m, err := h.svc.CreateMenuItem(r.Context(), req.input())
	if err != nil {
		writeServiceError(w, err, "create menu item")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MenuHandler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req menuItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	m, err := h.svc.UpdateMenuItem(r.Context(), id, req.input())
	if err != nil {
		writeServiceError(w, err, "update menu item")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MenuHandler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteMenuItem(r.Context(), id); err != nil {
		writeServiceError(w, err, "delete menu item")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
