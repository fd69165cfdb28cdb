package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, table_id, items, total_price, status, payment_status, payment_method, version, created_at, updated_at`

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::int IS NULL OR table_id = $1)
  AND ($2::text IS NULL OR payment_status = $2)
  AND ($3::text IS NULL OR status = $3)
ORDER BY created_at ASC, id ASC
`

type ListOrdersParams struct {
	TableID       pgtype.Int4 `json:"table_id"`
	PaymentStatus pgtype.Text `json:"payment_status"`
	Status        pgtype.Text `json:"status"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.TableID, arg.PaymentStatus, arg.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

const listUnpaidOrdersByTableForUpdate = `-- name: ListUnpaidOrdersByTableForUpdate :many
SELECT ` + orderColumns + ` FROM orders
WHERE table_id = $1 AND payment_status = 'unpaid'
ORDER BY created_at ASC, id ASC
FOR UPDATE
`

func (q *Queries) ListUnpaidOrdersByTableForUpdate(ctx context.Context, tableID int32) ([]Order, error) {
	rows, err := q.db.Query(ctx, listUnpaidOrdersByTableForUpdate, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getLatestUnpaidOrderByTable = `-- name: GetLatestUnpaidOrderByTable :one
SELECT ` + orderColumns + ` FROM orders
WHERE table_id = $1 AND payment_status = 'unpaid'
ORDER BY created_at DESC, id DESC
LIMIT 1
`

func (q *Queries) GetLatestUnpaidOrderByTable(ctx context.Context, tableID int32) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getLatestUnpaidOrderByTable, tableID))
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (id, table_id, items, total_price, status, payment_status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	ID            uuid.UUID `json:"id"`
	TableID       int32     `json:"table_id"`
	Items         []byte    `json:"items"`
	TotalPrice    int64     `json:"total_price"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	CreatedAt     time.Time `json:"created_at"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.ID,
		arg.TableID,
		arg.Items,
		arg.TotalPrice,
		arg.Status,
		arg.PaymentStatus,
		arg.CreatedAt,
	))
}

const updateOrderSnapshot = `-- name: UpdateOrderSnapshot :one
UPDATE orders
SET items = $3, total_price = $4, status = $5, version = version + 1, updated_at = now()
WHERE id = $1 AND version = $2
RETURNING ` + orderColumns

type UpdateOrderSnapshotParams struct {
	ID         uuid.UUID `json:"id"`
	Version    int32     `json:"version"`
	Items      []byte    `json:"items"`
	TotalPrice int64     `json:"total_price"`
	Status     string    `json:"status"`
}

// UpdateOrderSnapshot is a compare-and-swap on version. It returns
// pgx.ErrNoRows when the row changed since it was read (or is gone).
func (q *Queries) UpdateOrderSnapshot(ctx context.Context, arg UpdateOrderSnapshotParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderSnapshot,
		arg.ID,
		arg.Version,
		arg.Items,
		arg.TotalPrice,
		arg.Status,
	))
}

const markOrdersPaid = `-- name: MarkOrdersPaid :many
UPDATE orders
SET payment_status = 'paid', payment_method = $2, version = version + 1, updated_at = now()
WHERE id = ANY($1::uuid[]) AND payment_status = 'unpaid'
RETURNING ` + orderColumns

type MarkOrdersPaidParams struct {
	IDs           []uuid.UUID `json:"ids"`
	PaymentMethod string      `json:"payment_method"`
}

func (q *Queries) MarkOrdersPaid(ctx context.Context, arg MarkOrdersPaidParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, markOrdersPaid, arg.IDs, arg.PaymentMethod)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

const deleteOrder = `-- name: DeleteOrder :one
DELETE FROM orders
WHERE id = $1 AND version = $2
RETURNING ` + orderColumns

type DeleteOrderParams struct {
	ID      uuid.UUID `json:"id"`
	Version int32     `json:"version"`
}

// DeleteOrder removes the order only if it is still at the given version.
func (q *Queries) DeleteOrder(ctx context.Context, arg DeleteOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, deleteOrder, arg.ID, arg.Version))
}

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.Items,
		&i.TotalPrice,
		&i.Status,
		&i.PaymentStatus,
		&i.PaymentMethod,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanOrders(rows pgx.Rows) ([]Order, error) {
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
