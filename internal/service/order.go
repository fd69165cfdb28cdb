package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	log "github.com/sirupsen/logrus"
	"github.com/tableside/api/internal/database"
	"github.com/tableside/api/internal/enum"
	"github.com/tableside/api/internal/lifecycle"
	"github.com/tableside/api/internal/notify"
)

const maxCASRetries = 3

// Errors returned by the order service.
var (
	ErrConflict             = errors.New("order was modified concurrently, please retry")
	ErrOrderNotFound        = errors.New("order not found")
	ErrTableNotFound        = errors.New("table not found")
	ErrUnknownMenuItem      = errors.New("unknown menu item")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")

	// errVersionMismatch means the order row moved on between read and
	// write; the whole transaction is retried.
	errVersionMismatch = errors.New("order version mismatch")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetTableForUpdate(ctx context.Context, id int32) (database.Table, error)
	SyncTableStatus(ctx context.Context, id int32) (database.Table, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.Table, error)
	ListMenuItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]database.MenuItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetLatestUnpaidOrderByTable(ctx context.Context, tableID int32) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListUnpaidOrdersByTableForUpdate(ctx context.Context, tableID int32) ([]database.Order, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	UpdateOrderSnapshot(ctx context.Context, arg database.UpdateOrderSnapshotParams) (database.Order, error)
	MarkOrdersPaid(ctx context.Context, arg database.MarkOrdersPaidParams) ([]database.Order, error)
	DeleteOrder(ctx context.Context, arg database.DeleteOrderParams) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// Order is the API and change-feed shape of an order row.
type Order struct {
	ID            uuid.UUID        `json:"id"`
	TableID       int32            `json:"table_id"`
	Items         []lifecycle.Item `json:"items"`
	TotalPrice    int64            `json:"total_price"`
	Status        string           `json:"status"`
	PaymentStatus string           `json:"payment_status"`
	PaymentMethod *string          `json:"payment_method"`
	Version       int32            `json:"version"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// CartLine is one submitted cart entry. Name and price come from the menu.
type CartLine struct {
	MenuItemID uuid.UUID
	Qty        int32
}

// CreateOrderRequest is the input for submitting a cart.
type CreateOrderRequest struct {
	TableID    int32
	Items      []CartLine
	TotalPrice int64 // advisory, only used when the recomputed total is 0
}

// EditResult is the outcome of an item edit. When Deleted is set, Order is
// the last snapshot before the row was removed.
type EditResult struct {
	Order   Order
	Deleted bool
}

// CheckoutResult lists the orders that became paid and the freed table.
type CheckoutResult struct {
	Orders []Order        `json:"orders"`
	Table  database.Table `json:"table"`
}

// OrderFilter narrows ListOrders. Zero values mean "any".
type OrderFilter struct {
	TableID       int32
	PaymentStatus string
	Status        string
}

// OrderService runs the lifecycle engine inside transactions. Every write
// to an existing order is a compare-and-swap on its version.
type OrderService struct {
	pool     TxBeginner
	queries  OrderStore
	newStore NewOrderStore
	pub      publisher
	loc      *time.Location

	now   func() time.Time
	newID func() uuid.UUID
}

// NewOrderService creates a new OrderService. loc is the calendar location
// used by revenue reports; broker may be nil.
func NewOrderService(pool TxBeginner, queries OrderStore, newStore NewOrderStore, broker notify.Broker, loc *time.Location) *OrderService {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderService{
		pool:     pool,
		queries:  queries,
		newStore: newStore,
		pub:      publisher{broker: broker},
		loc:      loc,
		now:      time.Now,
		newID:    uuid.New,
	}
}

// ── Reads ──

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	row, err := s.queries.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	o, err := toOrder(row)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders returns matching orders sorted by created_at ascending.
func (s *OrderService) ListOrders(ctx context.Context, f OrderFilter) ([]Order, error) {
	arg := database.ListOrdersParams{}
	if f.TableID != 0 {
		arg.TableID = pgtype.Int4{Int32: f.TableID, Valid: true}
	}
	if f.PaymentStatus != "" {
		arg.PaymentStatus = pgtype.Text{String: f.PaymentStatus, Valid: true}
	}
	if f.Status != "" {
		arg.Status = pgtype.Text{String: f.Status, Valid: true}
	}

	rows, err := s.queries.ListOrders(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]Order, 0, len(rows))
	for _, row := range rows {
		o, err := toOrder(row)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// Revenue aggregates paid orders for the selected period.
func (s *OrderService) Revenue(ctx context.Context, f lifecycle.RevenueFilter) (lifecycle.RevenueReport, error) {
	rows, err := s.queries.ListOrders(ctx, database.ListOrdersParams{
		PaymentStatus: pgtype.Text{String: enum.PaymentStatusPaid, Valid: true},
	})
	if err != nil {
		return lifecycle.RevenueReport{}, fmt.Errorf("list paid orders: %w", err)
	}
	orders := make([]lifecycle.Order, 0, len(rows))
	for _, row := range rows {
		o, err := decodeOrder(row)
		if err != nil {
			return lifecycle.RevenueReport{}, err
		}
		orders = append(orders, o)
	}
	return lifecycle.Revenue(orders, f, s.loc), nil
}

// ── Create ──

// CreateOrder submits a cart for a table. Entries with qty <= 0 are
// dropped; names and prices are snapshotted from the current menu.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	lines := make([]CartLine, 0, len(req.Items))
	for _, l := range req.Items {
		if l.Qty > 0 {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return nil, lifecycle.ErrEmptyCart
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := lockTable(ctx, store, req.TableID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.MenuItemID)
	}
	menuRows, err := store.ListMenuItemsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load menu items: %w", err)
	}
	menu := make(map[uuid.UUID]database.MenuItem, len(menuRows))
	for _, m := range menuRows {
		menu[m.ID] = m
	}

	cart := make([]lifecycle.CartItem, 0, len(lines))
	for i, l := range lines {
		m, ok := menu[l.MenuItemID]
		if !ok {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrUnknownMenuItem)
		}
		cart = append(cart, lifecycle.CartItem{
			MenuItemID: m.ID,
			Name:       m.Name,
			Price:      m.Price,
			Qty:        l.Qty,
		})
	}

	next, err := lifecycle.SubmitCart(s.newID(), req.TableID, cart, req.TotalPrice, s.now())
	if err != nil {
		return nil, err
	}

	order, err := insertOrder(ctx, store, next)
	if err != nil {
		return nil, err
	}
	events := []event{{typ: enum.ChangeInsert, topic: enum.TopicOrders, row: order}}

	tableEvents, err := syncTable(ctx, store, table)
	if err != nil {
		return nil, err
	}
	events = append(events, tableEvents...)

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.pub.publish(ctx, events)
	return &order, nil
}

// AddItemToTable adds qty of a menu item to the table's most recent unpaid
// order, or opens a new order when the table has none.
func (s *OrderService) AddItemToTable(ctx context.Context, tableID int32, menuItemID uuid.UUID, qty int32) (*Order, error) {
	if qty <= 0 || qty > lifecycle.MaxQty {
		return nil, lifecycle.ErrInvalidQuantity
	}

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		order, events, err := s.addItemTx(ctx, tableID, menuItemID, qty)
		if errors.Is(err, errVersionMismatch) {
			log.WithField("table_id", tableID).Debug("order changed during add, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		s.pub.publish(ctx, events)
		return order, nil
	}
	return nil, ErrConflict
}

func (s *OrderService) addItemTx(ctx context.Context, tableID int32, menuItemID uuid.UUID, qty int32) (*Order, []event, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := lockTable(ctx, store, tableID)
	if err != nil {
		return nil, nil, err
	}

	m, err := store.GetMenuItem(ctx, menuItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrUnknownMenuItem
		}
		return nil, nil, fmt.Errorf("get menu item: %w", err)
	}

	var (
		order  Order
		events []event
	)

	latest, err := store.GetLatestUnpaidOrderByTable(ctx, tableID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		next, err := lifecycle.SubmitCart(s.newID(), tableID, []lifecycle.CartItem{{
			MenuItemID: m.ID,
			Name:       m.Name,
			Price:      m.Price,
			Qty:        qty,
		}}, 0, s.now())
		if err != nil {
			return nil, nil, err
		}
		order, err = insertOrder(ctx, store, next)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, event{typ: enum.ChangeInsert, topic: enum.TopicOrders, row: order})

	case err != nil:
		return nil, nil, fmt.Errorf("get latest unpaid order: %w", err)

	default:
		current, err := decodeOrder(latest)
		if err != nil {
			return nil, nil, err
		}
		out, err := lifecycle.AddItem(current, lifecycle.Item{ID: m.ID, Name: m.Name, Price: m.Price, Qty: qty})
		if err != nil {
			return nil, nil, err
		}
		order, err = writeSnapshot(ctx, store, latest.Version, out.Order)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, event{typ: enum.ChangeUpdate, topic: enum.TopicOrders, row: order})
	}

	tableEvents, err := syncTable(ctx, store, table)
	if err != nil {
		return nil, nil, err
	}
	events = append(events, tableEvents...)

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}
	return &order, events, nil
}

// ── Edits ──

// UpdateItems replaces the order's item list. An empty result deletes the
// order.
func (s *OrderService) UpdateItems(ctx context.Context, orderID uuid.UUID, items []lifecycle.Item) (*EditResult, error) {
	return s.edit(ctx, orderID, func(o lifecycle.Order) (lifecycle.Outcome, error) {
		return lifecycle.MergeItems(o, items)
	})
}

// AdjustQty changes one item's qty by delta.
func (s *OrderService) AdjustQty(ctx context.Context, orderID, itemID uuid.UUID, delta int32) (*EditResult, error) {
	return s.edit(ctx, orderID, func(o lifecycle.Order) (lifecycle.Outcome, error) {
		return lifecycle.AdjustQty(o, itemID, delta)
	})
}

// CompleteItem marks one unit of an item as done in the kitchen.
func (s *OrderService) CompleteItem(ctx context.Context, orderID, itemID uuid.UUID) (*Order, error) {
	res, err := s.edit(ctx, orderID, func(o lifecycle.Order) (lifecycle.Outcome, error) {
		next, err := lifecycle.CompleteOneUnit(o, itemID)
		return lifecycle.Outcome{Order: next}, err
	})
	if err != nil {
		return nil, err
	}
	return &res.Order, nil
}

// AdvanceStatus applies a kitchen status change.
func (s *OrderService) AdvanceStatus(ctx context.Context, orderID uuid.UUID, target string) (*Order, error) {
	res, err := s.edit(ctx, orderID, func(o lifecycle.Order) (lifecycle.Outcome, error) {
		next, err := lifecycle.AdvanceStatus(o, target)
		return lifecycle.Outcome{Order: next}, err
	})
	if err != nil {
		return nil, err
	}
	return &res.Order, nil
}

// DeleteOrder removes an order and re-derives its table's occupancy.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.edit(ctx, orderID, func(o lifecycle.Order) (lifecycle.Outcome, error) {
		return lifecycle.Outcome{Order: o, Deleted: true}, nil
	})
	return err
}

type editFunc func(o lifecycle.Order) (lifecycle.Outcome, error)

// edit runs fetch, compute and compare-and-swap in one transaction and
// retries the whole thing up to maxCASRetries times on a version mismatch.
func (s *OrderService) edit(ctx context.Context, orderID uuid.UUID, fn editFunc) (*EditResult, error) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		res, events, err := s.editTx(ctx, orderID, fn)
		if errors.Is(err, errVersionMismatch) {
			log.WithField("order_id", orderID).Debug("order changed during edit, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		s.pub.publish(ctx, events)
		return res, nil
	}
	return nil, ErrConflict
}

func (s *OrderService) editTx(ctx context.Context, orderID uuid.UUID, fn editFunc) (*EditResult, []event, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	row, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrOrderNotFound
		}
		return nil, nil, fmt.Errorf("get order: %w", err)
	}

	// Table before order, same lock order as create and checkout.
	table, err := lockTable(ctx, store, row.TableID)
	if err != nil {
		if errors.Is(err, ErrTableNotFound) {
			return nil, nil, ErrOrderNotFound
		}
		return nil, nil, err
	}

	current, err := decodeOrder(row)
	if err != nil {
		return nil, nil, err
	}
	out, err := fn(current)
	if err != nil {
		return nil, nil, err
	}

	var (
		result EditResult
		events []event
	)
	if out.Deleted {
		deleted, err := store.DeleteOrder(ctx, database.DeleteOrderParams{ID: row.ID, Version: row.Version})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, errVersionMismatch
			}
			return nil, nil, fmt.Errorf("delete order: %w", err)
		}
		view, err := toOrder(deleted)
		if err != nil {
			return nil, nil, err
		}
		result = EditResult{Order: view, Deleted: true}
		events = append(events, event{typ: enum.ChangeDelete, topic: enum.TopicOrders, row: view})
	} else {
		view, err := writeSnapshot(ctx, store, row.Version, out.Order)
		if err != nil {
			return nil, nil, err
		}
		result = EditResult{Order: view}
		events = append(events, event{typ: enum.ChangeUpdate, topic: enum.TopicOrders, row: view})
	}

	tableEvents, err := syncTable(ctx, store, table)
	if err != nil {
		return nil, nil, err
	}
	events = append(events, tableEvents...)

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}
	return &result, events, nil
}

// ── Checkout ──

// Checkout marks every unpaid order of the table as paid with method and
// frees the table.
func (s *OrderService) Checkout(ctx context.Context, tableID int32, method string) (*CheckoutResult, error) {
	if !enum.IsPaymentMethod(method) {
		return nil, ErrInvalidPaymentMethod
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := lockTable(ctx, store, tableID); err != nil {
		return nil, err
	}

	rows, err := store.ListUnpaidOrdersByTableForUpdate(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("list unpaid orders: %w", err)
	}
	orders := make([]lifecycle.Order, 0, len(rows))
	for _, row := range rows {
		o, err := decodeOrder(row)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	res := lifecycle.CheckoutTable(tableID, orders, method)

	result := &CheckoutResult{Orders: []Order{}}
	var events []event

	if len(res.Paid) > 0 {
		ids := make([]uuid.UUID, 0, len(res.Paid))
		for _, o := range res.Paid {
			ids = append(ids, o.ID)
		}
		paid, err := store.MarkOrdersPaid(ctx, database.MarkOrdersPaidParams{IDs: ids, PaymentMethod: method})
		if err != nil {
			return nil, fmt.Errorf("mark orders paid: %w", err)
		}
		for _, row := range paid {
			view, err := toOrder(row)
			if err != nil {
				return nil, err
			}
			result.Orders = append(result.Orders, view)
			events = append(events, event{typ: enum.ChangeUpdate, topic: enum.TopicOrders, row: view})
		}
	}

	table, err := store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{ID: tableID, Status: res.TableStatus})
	if err != nil {
		return nil, fmt.Errorf("update table status: %w", err)
	}
	result.Table = table
	events = append(events, event{typ: enum.ChangeUpdate, topic: enum.TopicTables, row: table})

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.pub.publish(ctx, events)
	return result, nil
}

// ── Helpers ──

func lockTable(ctx context.Context, store OrderStore, id int32) (database.Table, error) {
	t, err := store.GetTableForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Table{}, ErrTableNotFound
		}
		return database.Table{}, fmt.Errorf("lock table: %w", err)
	}
	return t, nil
}

// syncTable re-derives occupancy and returns an event when it changed.
func syncTable(ctx context.Context, store OrderStore, before database.Table) ([]event, error) {
	after, err := store.SyncTableStatus(ctx, before.ID)
	if err != nil {
		return nil, fmt.Errorf("sync table status: %w", err)
	}
	if after.Status == before.Status {
		return nil, nil
	}
	return []event{{typ: enum.ChangeUpdate, topic: enum.TopicTables, row: after}}, nil
}

func insertOrder(ctx context.Context, store OrderStore, o lifecycle.Order) (Order, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return Order{}, fmt.Errorf("encode items: %w", err)
	}
	row, err := store.CreateOrder(ctx, database.CreateOrderParams{
		ID:            o.ID,
		TableID:       o.TableID,
		Items:         items,
		TotalPrice:    o.TotalPrice,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		CreatedAt:     o.CreatedAt,
	})
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	return toOrder(row)
}

func writeSnapshot(ctx context.Context, store OrderStore, version int32, o lifecycle.Order) (Order, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return Order{}, fmt.Errorf("encode items: %w", err)
	}
	row, err := store.UpdateOrderSnapshot(ctx, database.UpdateOrderSnapshotParams{
		ID:         o.ID,
		Version:    version,
		Items:      items,
		TotalPrice: o.TotalPrice,
		Status:     o.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, errVersionMismatch
		}
		return Order{}, fmt.Errorf("update order: %w", err)
	}
	return toOrder(row)
}

func decodeOrder(row database.Order) (lifecycle.Order, error) {
	items := []lifecycle.Item{}
	if len(row.Items) > 0 {
		if err := json.Unmarshal(row.Items, &items); err != nil {
			return lifecycle.Order{}, fmt.Errorf("decode items of order %s: %w", row.ID, err)
		}
	}
	return lifecycle.Order{
		ID:            row.ID,
		TableID:       row.TableID,
		Items:         items,
		TotalPrice:    row.TotalPrice,
		Status:        row.Status,
		PaymentStatus: row.PaymentStatus,
		PaymentMethod: row.PaymentMethod.String,
		CreatedAt:     row.CreatedAt,
	}, nil
}

func toOrder(row database.Order) (Order, error) {
	o, err := decodeOrder(row)
	if err != nil {
		return Order{}, err
	}
	out := Order{
		ID:            row.ID,
		TableID:       row.TableID,
		Items:         o.Items,
		TotalPrice:    row.TotalPrice,
		Status:        row.Status,
		PaymentStatus: row.PaymentStatus,
		Version:       row.Version,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.PaymentMethod.Valid {
		m := row.PaymentMethod.String
		out.PaymentMethod = &m
	}
	return out, nil
}
