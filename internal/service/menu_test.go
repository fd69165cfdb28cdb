package service

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/tableside/api/internal/database"
)

type stubImageStore struct {
	calls []string
}

func (s *stubImageStore) Store(_ context.Context, image, name string) (string, error) {
	s.calls = append(s.calls, name)
	return "https://cdn.example/" + name + ".png", nil
}

func newTestMenuService(store *fakeStore, images ImageStore) (*MenuService, *recordingBroker) {
	broker := &recordingBroker{}
	newStore := func(db database.DBTX) MenuStore { return store }
	return NewMenuService(&mockTxBeginner{tx: &mockTx{}}, store, newStore, images, broker), broker
}

func TestCreateCategory_AppendsAfterLast(t *testing.T) {
	store := newFakeStore()
	svc, broker := newTestMenuService(store, nil)

	first, err := svc.CreateCategory(context.Background(), "  Mains ")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := svc.CreateCategory(context.Background(), "Drinks")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	if first.Name != "Mains" {
		t.Errorf("name should be trimmed, got %q", first.Name)
	}
	if first.OrderIndex != 1 || second.OrderIndex != 2 {
		t.Errorf("expected order indexes 1 and 2, got %d and %d", first.OrderIndex, second.OrderIndex)
	}
	if got := broker.kinds(); !reflect.DeepEqual(got, []string{"INSERT categories", "INSERT categories"}) {
		t.Errorf("events: got %v", got)
	}
}

func TestCreateCategory_BlankName(t *testing.T) {
	svc, _ := newTestMenuService(newFakeStore(), nil)

	if _, err := svc.CreateCategory(context.Background(), "   "); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
}

func TestDeleteCategory_InUse(t *testing.T) {
	store := newFakeStore()
	svc, broker := newTestMenuService(store, nil)

	c, _ := svc.CreateCategory(context.Background(), "Mains")
	m := store.addMenuItem("Rice", 60)
	m.CategoryID = c.ID
	store.menu[m.ID] = m
	broker.changes = nil

	if err := svc.DeleteCategory(context.Background(), c.ID); !errors.Is(err, ErrCategoryInUse) {
		t.Fatalf("expected ErrCategoryInUse, got %v", err)
	}
	if _, ok := store.categories[c.ID]; !ok {
		t.Error("category must not be deleted")
	}
	if len(broker.changes) != 0 {
		t.Errorf("nothing should be published, got %v", broker.kinds())
	}

	delete(store.menu, m.ID)
	if err := svc.DeleteCategory(context.Background(), c.ID); err != nil {
		t.Fatalf("delete empty category: %v", err)
	}
	if err := svc.DeleteCategory(context.Background(), c.ID); !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestReorderCategories(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestMenuService(store, nil)

	a, _ := svc.CreateCategory(context.Background(), "A")
	b, _ := svc.CreateCategory(context.Background(), "B")
	c, _ := svc.CreateCategory(context.Background(), "C")

	got, err := svc.ReorderCategories(context.Background(), []uuid.UUID{c.ID, a.ID, b.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].ID != c.ID || got[0].OrderIndex != 1 || got[2].ID != b.ID || got[2].OrderIndex != 3 {
		t.Errorf("unexpected order: %+v", got)
	}

	listed, _ := svc.ListCategories(context.Background())
	if listed[0].Name != "C" || listed[1].Name != "A" || listed[2].Name != "B" {
		t.Errorf("listing should follow new order, got %s %s %s", listed[0].Name, listed[1].Name, listed[2].Name)
	}
}

func TestReorderCategories_Mismatch(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestMenuService(store, nil)

	a, _ := svc.CreateCategory(context.Background(), "A")
	svc.CreateCategory(context.Background(), "B") //nolint:errcheck

	cases := map[string][]uuid.UUID{
		"missing":   {a.ID},
		"duplicate": {a.ID, a.ID},
		"unknown":   {a.ID, uuid.New()},
	}
	for name, ids := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.ReorderCategories(context.Background(), ids); !errors.Is(err, ErrReorderMismatch) {
				t.Errorf("expected ErrReorderMismatch, got %v", err)
			}
		})
	}
}

func TestCreateMenuItem_UploadsImage(t *testing.T) {
	store := newFakeStore()
	images := &stubImageStore{}
	svc, broker := newTestMenuService(store, images)

	c, _ := svc.CreateCategory(context.Background(), "Mains")
	broker.changes = nil

	m, err := svc.CreateMenuItem(context.Background(), MenuItemInput{
		CategoryID: c.ID,
		Name:       "Beef noodles",
		Price:      180,
		Image:      "data:image/png;base64,iVBORw0KGgo=",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Image != "https://cdn.example/Beef noodles.png" {
		t.Errorf("image should be replaced by the stored URI, got %q", m.Image)
	}
	if len(images.calls) != 1 {
		t.Errorf("expected one upload, got %d", len(images.calls))
	}
	if got := broker.kinds(); !reflect.DeepEqual(got, []string{"INSERT menu_items"}) {
		t.Errorf("events: got %v", got)
	}
}

func TestCreateMenuItem_Validation(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestMenuService(store, nil)
	c, _ := svc.CreateCategory(context.Background(), "Mains")

	tests := []struct {
		name string
		in   MenuItemInput
		want error
	}{
		{"blank name", MenuItemInput{CategoryID: c.ID, Name: " ", Price: 10}, ErrNameRequired},
		{"negative price", MenuItemInput{CategoryID: c.ID, Name: "Tea", Price: -1}, ErrInvalidPrice},
		{"unknown category", MenuItemInput{CategoryID: uuid.New(), Name: "Tea", Price: 10}, ErrInvalidCategoryID},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateMenuItem(context.Background(), tc.in); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUpdateAndDeleteMenuItem_NotFound(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestMenuService(store, nil)
	c, _ := svc.CreateCategory(context.Background(), "Mains")

	_, err := svc.UpdateMenuItem(context.Background(), uuid.New(), MenuItemInput{CategoryID: c.ID, Name: "Tea", Price: 10})
	if !errors.Is(err, ErrMenuItemNotFound) {
		t.Errorf("update: expected ErrMenuItemNotFound, got %v", err)
	}
	if err := svc.DeleteMenuItem(context.Background(), uuid.New()); !errors.Is(err, ErrMenuItemNotFound) {
		t.Errorf("delete: expected ErrMenuItemNotFound, got %v", err)
	}
}
