package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/notify"
)

// Errors returned by the menu service.
var (
	ErrCategoryNotFound  = errors.New("category not found")
	ErrCategoryInUse     = errors.New("category still has menu items")
	ErrMenuItemNotFound  = errors.New("menu item not found")
	ErrNameRequired      = errors.New("name is required")
	ErrInvalidPrice      = errors.New("price must be >= 0")
	ErrInvalidCategoryID = errors.New("category_id does not exist")
	ErrReorderMismatch   = errors.New("ids must list every category exactly once")
)

// MenuStore defines the DB methods needed by the menu service.
// Satisfied by *database.Queries (and its WithTx variant).
type MenuStore interface {
	ListCategories(ctx context.Context) ([]database.Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (database.Category, error)
	GetMaxCategoryOrderIndex(ctx context.Context) (int32, error)
	CreateCategory(ctx context.Context, arg database.CreateCategoryParams) (database.Category, error)
	UpdateCategoryName(ctx context.Context, arg database.UpdateCategoryNameParams) (database.Category, error)
	UpdateCategoryOrderIndex(ctx context.Context, arg database.UpdateCategoryOrderIndexParams) (database.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) (database.Category, error)
	CountMenuItemsByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error)

	ListMenuItems(ctx context.Context) ([]database.MenuItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
}

// NewMenuStore creates a MenuStore from a DBTX (pool or tx).
type NewMenuStore func(db database.DBTX) MenuStore

// ImageStore persists a menu image and returns the URI to keep on the row.
// Satisfied by *media.Cloudinary.
type ImageStore interface {
	Store(ctx context.Context, image, name string) (string, error)
}

// Menu is the public menu: categories in display order plus every item.
type Menu struct {
	Categories []database.Category `json:"categories"`
	Items      []database.MenuItem `json:"items"`
}

// MenuItemInput is the validated body for creating or updating a menu item.
type MenuItemInput struct {
	CategoryID  uuid.UUID
	Name        string
	Price       int64
	Image       string
	Description string
}

// MenuService manages categories and menu items.
type MenuService struct {
	pool     TxBeginner
	queries  MenuStore
	newStore NewMenuStore
	images   ImageStore
	pub      publisher
}

// NewMenuService creates a new MenuService. images and broker may be nil.
func NewMenuService(pool TxBeginner, queries MenuStore, newStore NewMenuStore, images ImageStore, broker notify.Broker) *MenuService {
	return &MenuService{
		pool:     pool,
		queries:  queries,
		newStore: newStore,
		images:   images,
		pub:      publisher{broker: broker},
	}
}

func (s *MenuService) Menu(ctx context.Context) (*Menu, error) {
	categories, err := s.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	items, err := s.queries.ListMenuItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	return &Menu{Categories: categories, Items: items}, nil
}

// ── Categories ──

func (s *MenuService) ListCategories(ctx context.Context) ([]database.Category, error) {
	categories, err := s.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// CreateCategory appends a category after the current last one.
func (s *MenuService) CreateCategory(ctx context.Context, name string) (*database.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	maxIndex, err := store.GetMaxCategoryOrderIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("max order index: %w", err)
	}
	c, err := store.CreateCategory(ctx, database.CreateCategoryParams{Name: name, OrderIndex: maxIndex + 1})
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.pub.publish(ctx, []event{{typ: enum.ChangeInsert, topic: enum.TopicCategories, row: c}})
	return &c, nil
}

func (s *MenuService) RenameCategory(ctx context.Context, id uuid.UUID, name string) (*database.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	c, err := s.queries.UpdateCategoryName(ctx, database.UpdateCategoryNameParams{ID: id, Name: name})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("rename category: %w", err)
	}

	s.pub.publish(ctx, []event{{typ: enum.ChangeUpdate, topic: enum.TopicCategories, row: c}})
	return &c, nil
}

// ReorderCategories sets order_index to 1..n following ids, which must name
// every category exactly once.
func (s *MenuService) ReorderCategories(ctx context.Context, ids []uuid.UUID) ([]database.Category, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	existing, err := store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if len(existing) != len(ids) {
		return nil, ErrReorderMismatch
	}
	known := make(map[uuid.UUID]bool, len(existing))
	for _, c := range existing {
		known[c.ID] = true
	}

	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]database.Category, 0, len(ids))
	events := make([]event, 0, len(ids))
	for i, id := range ids {
		if !known[id] || seen[id] {
			return nil, ErrReorderMismatch
		}
		seen[id] = true

		c, err := store.UpdateCategoryOrderIndex(ctx, database.UpdateCategoryOrderIndexParams{
			ID:         id,
			OrderIndex: int32(i + 1),
		})
		if err != nil {
			return nil, fmt.Errorf("update order index: %w", err)
		}
		out = append(out, c)
		events = append(events, event{typ: enum.ChangeUpdate, topic: enum.TopicCategories, row: c})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.pub.publish(ctx, events)
	return out, nil
}

// DeleteCategory refuses to delete a category that still has menu items.
func (s *MenuService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	n, err := store.CountMenuItemsByCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("count menu items: %w", err)
	}
	if n > 0 {
		return ErrCategoryInUse
	}

	c, err := store.DeleteCategory(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("delete category: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	s.pub.publish(ctx, []event{{typ: enum.ChangeDelete, topic: enum.TopicCategories, row: c}})
	return nil
}

// ── Menu items ──

func (s *MenuService) ListMenuItems(ctx context.Context) ([]database.MenuItem, error) {
	items, err := s.queries.ListMenuItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	return items, nil
}

func (s *MenuService) CreateMenuItem(ctx context.Context, in MenuItemInput) (*database.MenuItem, error) {
	in, err := s.prepareItem(ctx, in)
	if err != nil {
		return nil, err
	}

	m, err := s.queries.CreateMenuItem(ctx, database.CreateMenuItemParams{
		CategoryID:  in.CategoryID,
		Name:        in.Name,
		Price:       in.Price,
		Image:       in.Image,
		Description: in.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("create menu item: %w", err)
	}

	s.pub.publish(ctx, []event{{typ: enum.ChangeInsert, topic: enum.TopicMenuItems, row: m}})
	return &m, nil
}

func (s *MenuService) UpdateMenuItem(ctx context.Context, id uuid.UUID, in MenuItemInput) (*database.MenuItem, error) {
	in, err := s.prepareItem(ctx, in)
	if err != nil {
		return nil, err
	}

	m, err := s.queries.UpdateMenuItem(ctx, database.UpdateMenuItemParams{
		ID:          id,
		CategoryID:  in.CategoryID,
		Name:        in.Name,
		Price:       in.Price,
		Image:       in.Image,
		Description: in.Description,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("update menu item: %w", err)
	}

	s.pub.publish(ctx, []event{{typ: enum.ChangeUpdate, topic: enum.TopicMenuItems, row: m}})
	return &m, nil
}

// DeleteMenuItem removes a menu item. Orders keep their snapshot of it.
func (s *MenuService) DeleteMenuItem(ctx context.Context, id uuid.UUID) error {
	m, err := s.queries.DeleteMenuItem(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMenuItemNotFound
		}
		return fmt.Errorf("delete menu item: %w", err)
	}

	s.pub.publish(ctx, []event{{typ: enum.ChangeDelete, topic: enum.TopicMenuItems, row: m}})
	return nil
}

// prepareItem validates the input, checks the category and hands the image
// to the image store when one is configured.
func (s *MenuService) prepareItem(ctx context.Context, in MenuItemInput) (MenuItemInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, ErrNameRequired
	}
	if in.Price < 0 {
		return in, ErrInvalidPrice
	}

	if _, err := s.queries.GetCategory(ctx, in.CategoryID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return in, ErrInvalidCategoryID
		}
		return in, fmt.Errorf("get category: %w", err)
	}

	if s.images != nil && in.Image != "" {
		uri, err := s.images.Store(ctx, in.Image, in.Name)
		if err != nil {
			return in, fmt.Errorf("store image: %w", err)
		}
		in.Image = uri
	}
	return in, nil
}
