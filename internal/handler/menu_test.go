package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/handler"
	"github.com/tableside/api/internal/service"
)

// --- Mock MenuServicer ---

type mockMenuService struct {
	categories []database.Category
	items      []database.MenuItem

	createItemFn    func(ctx context.Context, in service.MenuItemInput) (*database.MenuItem, error)
	deleteCatErr    error
	reorderReceived []uuid.UUID
	reorderErr      error
}

func (m *mockMenuService) Menu(context.Context) (*service.Menu, error) {
	return &service.Menu{Categories: m.categories, Items: m.items}, nil
}

func (m *mockMenuService) ListCategories(context.Context) ([]database.Category, error) {
	return m.categories, nil
}

func (m *mockMenuService) CreateCategory(_ context.Context, name string) (*database.Category, error) {
	c := database.Category{ID: uuid.New(), Name: name, OrderIndex: int32(len(m.categories) + 1)}
	m.categories = append(m.categories, c)
	return &c, nil
}

func (m *mockMenuService) RenameCategory(_ context.Context, id uuid.UUID, name string) (*database.Category, error) {
	for i := range m.categories {
		if m.categories[i].ID == id {
			m.categories[i].Name = name
			return &m.categories[i], nil
		}
	}
	return nil, service.ErrCategoryNotFound
}

func (m *mockMenuService) ReorderCategories(_ context.Context, ids []uuid.UUID) ([]database.Category, error) {
	m.reorderReceived = ids
	if m.reorderErr != nil {
		return nil, m.reorderErr
	}
	return m.categories, nil
}

func (m *mockMenuService) DeleteCategory(context.Context, uuid.UUID) error {
	return m.deleteCatErr
}

func (m *mockMenuService) ListMenuItems(context.Context) ([]database.MenuItem, error) {
	return m.items, nil
}

func (m *mockMenuService) CreateMenuItem(ctx context.Context, in service.MenuItemInput) (*database.MenuItem, error) {
	if m.createItemFn != nil {
		return m.createItemFn(ctx, in)
	}
	it := database.MenuItem{ID: uuid.New(), CategoryID: in.CategoryID, Name: in.Name, Price: in.Price}
	return &it, nil
}

func (m *mockMenuService) UpdateMenuItem(_ context.Context, id uuid.UUID, in service.MenuItemInput) (*database.MenuItem, error) {
	return nil, service.ErrMenuItemNotFound
}

func (m *mockMenuService) DeleteMenuItem(context.Context, uuid.UUID) error {
	return nil
}

func setupMenuRouter(svc *mockMenuService) chi.Router {
	h := handler.NewMenuHandler(svc)
	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	h.RegisterAdminRoutes(r)
	return r
}

// --- Tests ---

func TestMenu_Public(t *testing.T) {
	svc := &mockMenuService{
		categories: []database.Category{{ID: uuid.New(), Name: "Mains", OrderIndex: 1}},
		items:      []database.MenuItem{{ID: uuid.New(), Name: "Rice", Price: 60}},
	}

	rr := doRequest(t, setupMenuRouter(svc), "GET", "/menu", nil)
	expectStatus(t, rr, http.StatusOK)

	resp := decodeResponse(t, rr)
	if len(resp["categories"].([]interface{})) != 1 || len(resp["items"].([]interface{})) != 1 {
		t.Errorf("unexpected menu: %v", resp)
	}
}

func TestCategoryCreate(t *testing.T) {
	svc := &mockMenuService{}
	router := setupMenuRouter(svc)

	rr := doRequest(t, router, "POST", "/categories", map[string]string{"name": "Drinks"})
	expectStatus(t, rr, http.StatusCreated)
	if decodeResponse(t, rr)["name"] != "Drinks" {
		t.Error("expected created category in response")
	}

	rr = doRequest(t, router, "POST", "/categories", map[string]string{})
	expectStatus(t, rr, http.StatusBadRequest)
	if msg := decodeResponse(t, rr)["error"]; msg != "name is required" {
		t.Errorf("error: got %v", msg)
	}
}

func TestCategoryRename_NotFound(t *testing.T) {
	rr := doRequest(t, setupMenuRouter(&mockMenuService{}), "PUT", "/categories/"+uuid.NewString(), map[string]string{"name": "X"})
	expectStatus(t, rr, http.StatusNotFound)
}

func TestCategoryDelete_InUse(t *testing.T) {
	svc := &mockMenuService{deleteCatErr: service.ErrCategoryInUse}

	rr := doRequest(t, setupMenuRouter(svc), "DELETE", "/categories/"+uuid.NewString(), nil)
	expectStatus(t, rr, http.StatusConflict)
}

func TestCategoryReorder(t *testing.T) {
	svc := &mockMenuService{}
	router := setupMenuRouter(svc)
	a, b := uuid.New(), uuid.New()

	rr := doRequest(t, router, "PUT", "/categories/order", map[string][]string{"ids": {b.String(), a.String()}})
	expectStatus(t, rr, http.StatusOK)
	if len(svc.reorderReceived) != 2 || svc.reorderReceived[0] != b {
		t.Errorf("ids not forwarded in order: %v", svc.reorderReceived)
	}

	rr = doRequest(t, router, "PUT", "/categories/order", map[string][]string{"ids": {"not-a-uuid"}})
	expectStatus(t, rr, http.StatusBadRequest)

	svc.reorderErr = service.ErrReorderMismatch
	rr = doRequest(t, router, "PUT", "/categories/order", map[string][]string{"ids": {a.String()}})
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestMenuItemCreate(t *testing.T) {
	var got service.MenuItemInput
	svc := &mockMenuService{
		createItemFn: func(_ context.Context, in service.MenuItemInput) (*database.MenuItem, error) {
			got = in
			return &database.MenuItem{ID: uuid.New(), Name: in.Name, Price: in.Price}, nil
		},
	}
	catID := uuid.New()

	rr := doRequest(t, setupMenuRouter(svc), "POST", "/menu-items", map[string]interface{}{
		"category_id": catID.String(),
		"name":        "Tea",
		"price":       0,
		"image":       "data:image/png;base64,AAAA",
	})
	expectStatus(t, rr, http.StatusCreated)

	if got.CategoryID != catID || got.Price != 0 || got.Image != "data:image/png;base64,AAAA" {
		t.Errorf("unexpected input: %+v", got)
	}
}

func TestMenuItemCreate_Validation(t *testing.T) {
	router := setupMenuRouter(&mockMenuService{})
	catID := uuid.NewString()

	tests := []struct {
		name string
		body map[string]interface{}
		want string
	}{
		{"missing price", map[string]interface{}{"category_id": catID, "name": "Tea"}, "price is required"},
		{"negative price", map[string]interface{}{"category_id": catID, "name": "Tea", "price": -5}, "price must be >= 0"},
		{"bad category", map[string]interface{}{"category_id": "x", "name": "Tea", "price": 5}, "invalid category_id"},
		{"missing name", map[string]interface{}{"category_id": catID, "price": 5}, "name is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, router, "POST", "/menu-items", tc.body)
			expectStatus(t, rr, http.StatusBadRequest)
			if msg := decodeResponse(t, rr)["error"]; msg != tc.want {
				t.Errorf("error: got %v, want %q", msg, tc.want)
			}
		})
	}
}

func TestMenuItemCreate_UnknownCategory(t *testing.T) {
	svc := &mockMenuService{
		createItemFn: func(context.Context, service.MenuItemInput) (*database.MenuItem, error) {
			return nil, service.ErrInvalidCategoryID
		},
	}

	rr := doRequest(t, setupMenuRouter(svc), "POST", "/menu-items", map[string]interface{}{
		"category_id": uuid.NewString(), "name": "Tea", "price": 5,
	})
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestMenuItemUpdate_NotFound(t *testing.T) {
	rr := doRequest(t, setupMenuRouter(&mockMenuService{}), "PUT", "/menu-items/"+uuid.NewString(), map[string]interface{}{
		"category_id": uuid.NewString(), "name": "Tea", "price": 5,
	})
	expectStatus(t, rr, http.StatusNotFound)
}

func TestMenuItemDelete(t *testing.T) {
	router := setupMenuRouter(&mockMenuService{})

	rr := doRequest(t, router, "DELETE", "/menu-items/"+uuid.NewString(), nil)
	expectStatus(t, rr, http.StatusOK)
	if decodeResponse(t, rr)["deleted"] != true {
		t.Error("expected deleted: true")
	}

	rr = doRequest(t, router, "DELETE", "/menu-items/abc", nil)
	expectStatus(t, rr, http.StatusBadRequest)
}
