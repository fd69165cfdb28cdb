// Package lifecycle holds the order state machine: pure transition functions
// that take the current order/table snapshot and return the next one.
// Nothing here performs I/O or reads the clock; callers persist the result.
package lifecycle

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tableside/api/internal/enum"
)

// Errors returned by the engine.
var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidQuantity   = errors.New("qty must be between 1 and 9999")
	ErrItemNotFound      = errors.New("order item not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// MaxQty bounds the qty of a single order line.
const MaxQty = 9999

// Item is one line of an order: a priced snapshot of a menu item plus
// requested and completed quantities. ID equals the menu item ID.
type Item struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Price        int64     `json:"price"`
	Qty          int32     `json:"qty"`
	CompletedQty int32     `json:"completed_qty"`
}

// Order is the engine's view of an order row.
type Order struct {
	ID            uuid.UUID
	TableID       int32
	Items         []Item
	TotalPrice    int64
	Status        string
	PaymentStatus string
	PaymentMethod string // empty until checkout
	CreatedAt     time.Time
}

// CartItem is a single cart entry submitted by a customer or admin.
type CartItem struct {
	MenuItemID uuid.UUID
	Name       string
	Price      int64
	Qty        int32
}

// Outcome is the result of an item edit: either the next snapshot, or a
// signal that the order has no items left and must be deleted.
type Outcome struct {
	Order   Order
	Deleted bool
}

// CheckoutResult carries the orders that became paid and the table status
// to persist.
type CheckoutResult struct {
	Paid        []Order
	TableStatus string
}

// SubmitCart builds a new pending, unpaid order from a cart.
// Repeated menu items are folded into one line. advisoryTotal is only used
// when the recomputed total is zero.
func SubmitCart(id uuid.UUID, tableID int32, cart []CartItem, advisoryTotal int64, now time.Time) (Order, error) {
	if len(cart) == 0 {
		return Order{}, ErrEmptyCart
	}

	items := make([]Item, 0, len(cart))
	for _, c := range cart {
		if c.Qty <= 0 {
			return Order{}, ErrInvalidQuantity
		}
		if i := indexOf(items, c.MenuItemID); i >= 0 {
			q, err := addQty(items[i].Qty, c.Qty)
			if err != nil {
				return Order{}, err
			}
			items[i].Qty = q
			continue
		}
		if c.Qty > MaxQty {
			return Order{}, ErrInvalidQuantity
		}
		items = append(items, Item{
			ID:    c.MenuItemID,
			Name:  c.Name,
			Price: c.Price,
			Qty:   c.Qty,
		})
	}

	total := TotalPrice(items)
	if total == 0 && advisoryTotal > 0 {
		total = advisoryTotal
	}

	return Order{
		ID:            id,
		TableID:       tableID,
		Items:         items,
		TotalPrice:    total,
		Status:        enum.OrderStatusPending,
		PaymentStatus: enum.PaymentStatusUnpaid,
		CreatedAt:     now,
	}, nil
}

// MergeItems replaces the item list of an order. Completed work is kept for
// items that survive, clamped to the new qty; new items start at zero.
// Lines with qty <= 0 are dropped, and an empty result signals deletion.
// A line above MaxQty is rejected with ErrInvalidQuantity.
func MergeItems(existing Order, next []Item) (Outcome, error) {
	merged := make([]Item, 0, len(next))
	for _, it := range next {
		if it.Qty <= 0 {
			continue
		}
		if i := indexOf(merged, it.ID); i >= 0 {
			q, err := addQty(merged[i].Qty, it.Qty)
			if err != nil {
				return Outcome{}, err
			}
			merged[i].Qty = q
			continue
		}
		if it.Qty > MaxQty {
			return Outcome{}, ErrInvalidQuantity
		}
		merged = append(merged, Item{ID: it.ID, Name: it.Name, Price: it.Price, Qty: it.Qty})
	}

	if len(merged) == 0 {
		return Outcome{Order: existing, Deleted: true}, nil
	}

	for i := range merged {
		if j := indexOf(existing.Items, merged[i].ID); j >= 0 {
			merged[i].CompletedQty = min(existing.Items[j].CompletedQty, merged[i].Qty)
		}
	}

	out := existing
	out.Items = merged
	out.TotalPrice = TotalPrice(merged)
	out.Status = nextStatus(existing.Status, merged)
	return Outcome{Order: out}, nil
}

// AdjustQty adds delta to one item's qty, removing the item when it drops
// to zero or below.
func AdjustQty(o Order, itemID uuid.UUID, delta int32) (Outcome, error) {
	i := indexOf(o.Items, itemID)
	if i < 0 {
		return Outcome{}, ErrItemNotFound
	}

	sum := int64(o.Items[i].Qty) + int64(delta)
	if sum > MaxQty {
		return Outcome{}, ErrInvalidQuantity
	}

	next := cloneItems(o.Items)
	next[i].Qty = int32(max(sum, 0))
	return MergeItems(o, next)
}

// AddItem appends a menu item to an open order, or bumps its qty when the
// order already contains it.
func AddItem(o Order, it Item) (Outcome, error) {
	if it.Qty <= 0 {
		return Outcome{}, ErrInvalidQuantity
	}

	next := cloneItems(o.Items)
	if i := indexOf(next, it.ID); i >= 0 {
		q, err := addQty(next[i].Qty, it.Qty)
		if err != nil {
			return Outcome{}, err
		}
		next[i].Qty = q
	} else {
		next = append(next, Item{ID: it.ID, Name: it.Name, Price: it.Price, Qty: it.Qty})
	}
	return MergeItems(o, next)
}

// CompleteOneUnit marks one more unit of an item as done by the kitchen.
// It is a no-op for the counter once the item is fully completed.
func CompleteOneUnit(o Order, itemID uuid.UUID) (Order, error) {
	i := indexOf(o.Items, itemID)
	if i < 0 {
		return Order{}, ErrItemNotFound
	}

	items := cloneItems(o.Items)
	items[i].CompletedQty = min(items[i].Qty, items[i].CompletedQty+1)

	out := o
	out.Items = items
	if AllCompleted(items) {
		out.Status = enum.OrderStatusCompleted
	} else {
		out.Status = enum.OrderStatusPreparing
	}
	return out, nil
}

// AdvanceStatus applies the kitchen's "start preparing" action. Only
// pending -> preparing is allowed; preparing -> preparing is a no-op.
func AdvanceStatus(o Order, target string) (Order, error) {
	if target != enum.OrderStatusPreparing {
		return Order{}, ErrInvalidTransition
	}
	switch o.Status {
	case enum.OrderStatusPending:
		out := o
		out.Items = cloneItems(o.Items)
		out.Status = enum.OrderStatusPreparing
		return out, nil
	case enum.OrderStatusPreparing:
		return o, nil
	}
	return Order{}, ErrInvalidTransition
}

// CheckoutTable marks every unpaid order of the table as paid with method.
// The table is freed regardless of what else is going on.
func CheckoutTable(tableID int32, orders []Order, method string) CheckoutResult {
	var paid []Order
	for _, o := range orders {
		if o.TableID != tableID || o.PaymentStatus != enum.PaymentStatusUnpaid {
			continue
		}
		o.Items = cloneItems(o.Items)
		o.PaymentStatus = enum.PaymentStatusPaid
		o.PaymentMethod = method
		paid = append(paid, o)
	}
	return CheckoutResult{Paid: paid, TableStatus: enum.TableStatusAvailable}
}

// DeriveTableStatus returns occupied iff the table has an unpaid order.
func DeriveTableStatus(orders []Order, tableID int32) string {
	for _, o := range orders {
		if o.TableID == tableID && o.PaymentStatus == enum.PaymentStatusUnpaid {
			return enum.TableStatusOccupied
		}
	}
	return enum.TableStatusAvailable
}

// TotalPrice sums price*qty over items.
func TotalPrice(items []Item) int64 {
	var total int64
	for _, it := range items {
		total += it.Price * int64(it.Qty)
	}
	return total
}

// AllCompleted reports whether every item has completed_qty >= qty.
func AllCompleted(items []Item) bool {
	for _, it := range items {
		if it.CompletedQty < it.Qty {
			return false
		}
	}
	return true
}

// nextStatus derives the status after an item edit. Editing never demotes
// to pending and never promotes pending to preparing.
func nextStatus(prev string, items []Item) string {
	if AllCompleted(items) {
		return enum.OrderStatusCompleted
	}
	if prev == enum.OrderStatusCompleted {
		return enum.OrderStatusPreparing
	}
	return prev
}

// addQty sums two positive quantities, refusing results above MaxQty.
func addQty(a, b int32) (int32, error) {
	sum := int64(a) + int64(b)
	if sum > MaxQty {
		return 0, ErrInvalidQuantity
	}
	return int32(sum), nil
}

func indexOf(items []Item, id uuid.UUID) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
