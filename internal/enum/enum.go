package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "pending"
	OrderStatusPreparing = "preparing"
	OrderStatusCompleted = "completed"
)

const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleKitchen = "KITCHEN"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash    = "cash"
	PaymentMethodLinePay = "linepay"
	PaymentMethodJkoPay  = "jkopay"

	// PaymentMethodUnknown buckets paid orders that carry no method.
	PaymentMethodUnknown = "unknown"
)

// IsPaymentMethod reports whether m is accepted at checkout.
func IsPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodLinePay, PaymentMethodJkoPay:
		return true
	}
	return false
}

// ── Change feed ──

const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// Logical table names used as change-feed topics.
const (
	TopicOrders     = "orders"
	TopicTables     = "tables"
	TopicCategories = "categories"
	TopicMenuItems  = "menu_items"
)

// IsTopic reports whether t is a subscribable change-feed topic.
func IsTopic(t string) bool {
	switch t {
	case TopicOrders, TopicTables, TopicCategories, TopicMenuItems:
		return true
	}
	return false
}
