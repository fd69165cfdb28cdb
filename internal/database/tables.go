package database

import (
	"context"
)

const listTables = `-- name: ListTables :many
SELECT id, name, seats, status, updated_at FROM tables
ORDER BY id ASC
`

func (q *Queries) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Table{}
	for rows.Next() {
		var i Table
		if err := rows.Scan(&i.ID, &i.Name, &i.Seats, &i.Status, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTable = `-- name: GetTable :one
SELECT id, name, seats, status, updated_at FROM tables
WHERE id = $1
`

func (q *Queries) GetTable(ctx context.Context, id int32) (Table, error) {
	row := q.db.QueryRow(ctx, getTable, id)
	var i Table
	err := row.Scan(&i.ID, &i.Name, &i.Seats, &i.Status, &i.UpdatedAt)
	return i, err
}

const getTableForUpdate = `-- name: GetTableForUpdate :one
SELECT id, name, seats, status, updated_at FROM tables
WHERE id = $1
FOR UPDATE
`

// GetTableForUpdate locks the table row until the surrounding transaction
// ends. Order creation and checkout take this lock so they serialize per table.
func (q *Queries) GetTableForUpdate(ctx context.Context, id int32) (Table, error) {
	row := q.db.QueryRow(ctx, getTableForUpdate, id)
	var i Table
	err := row.Scan(&i.ID, &i.Name, &i.Seats, &i.Status, &i.UpdatedAt)
	return i, err
}

const createTable = `-- name: CreateTable :one
INSERT INTO tables (id, name, seats, status)
VALUES ($1, $2, $3, 'available')
RETURNING id, name, seats, status, updated_at
`

type CreateTableParams struct {
	ID    int32  `json:"id"`
	Name  string `json:"name"`
	Seats int32  `json:"seats"`
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	row := q.db.QueryRow(ctx, createTable, arg.ID, arg.Name, arg.Seats)
	var i Table
	err := row.Scan(&i.ID, &i.Name, &i.Seats, &i.Status, &i.UpdatedAt)
	return i, err
}

const updateTable = `-- name: UpdateTable :one
UPDATE tables SET name = $2, seats = $3, updated_at = now()
WHERE id = $1
RETURNING id, name, seats, status, updated_at
`

type UpdateTableParams struct {
	ID    int32  `json:"id"`
	Name  string `json:"name"`
	Seats int32  `json:"seats"`
}

func (q *Queries) UpdateTable(ctx context.Context, arg UpdateTableParams) (Table, error) {
	row := q.db.QueryRow(ctx, updateTable, arg.ID, arg.Name, arg.Seats)
	var i Table
	err := row.Scan(&i.ID, &i.Name, &i.Seats, &i.Status, &i.UpdatedAt)
	return i, err
}

const updateTableStatus = `-- name: UpdateTableStatus :one
UPDATE tables SET status = $2, updated_at = now()
WHERE id = $1
RETURNING id, name, seats, status, updated_at
`

type UpdateTableStatusParams struct {
	ID     int32  `json:"id"`
	Status string `json:"status"`
}

func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (Table, error) {
	row := q.db.QueryRow(ctx, updateTableStatus, arg.ID, arg.Status)
	var i Table
	err := row.Scan(&i.ID, &i.Name, &i.Seats, &i.Status, &i.UpdatedAt)
	return i, err
}

const deleteTablesByIDs = `-- name: DeleteTablesByIDs :many
DELETE FROM tables
WHERE id = ANY($1::int[])
RETURNING id, name, seats, status, updated_at
`

func (q *Queries) DeleteTablesByIDs(ctx context.Context, ids []int32) ([]Table, error) {
	rows, err := q.db.Query(ctx, deleteTablesByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Table{}
	for rows.Next() {
		var i Table
		if err := rows.Scan(&i.ID, &i.Name, &i.Seats, &i.Status, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const syncTableStatus = `-- name: SyncTableStatus :one
UPDATE tables t
SET status = CASE
        WHEN EXISTS (
            SELECT 1 FROM orders o
            WHERE o.table_id = t.id AND o.payment_status = 'unpaid'
        ) THEN 'occupied'
        ELSE 'available'
    END,
    updated_at = now()
WHERE t.id = $1
RETURNING t.id, t.name, t.seats, t.status, t.updated_at
`

// SyncTableStatus re-derives the table's occupancy from its unpaid orders.
func (q *Queries) SyncTableStatus(ctx context.Context, id int32) (Table, error) {
	row := q.db.QueryRow(ctx, syncTableStatus, id)
	var i Table
	err := row.Scan(&i.ID, &i.Name, &i.Seats, &i.Status, &i.UpdatedAt)
	return i, err
}

const reconcileTableStatuses = `-- name: ReconcileTableStatuses :many
WITH derived AS (
    SELECT t.id,
           CASE
               WHEN EXISTS (
                   SELECT 1 FROM orders o
                   WHERE o.table_id = t.id AND o.payment_status = 'unpaid'
               ) THEN 'occupied'
               ELSE 'available'
           END AS status
    FROM tables t
)
UPDATE tables t
SET status = d.status, updated_at = now()
FROM derived d
WHERE t.id = d.id AND t.status <> d.status
RETURNING t.id, t.name, t.seats, t.status, t.updated_at
`

// ReconcileTableStatuses fixes every table whose stored status disagrees with
// its orders and returns only the rows that changed.
func (q *Queries) ReconcileTableStatuses(ctx context.Context) ([]Table, error) {
	rows, err := q.db.Query(ctx, reconcileTableStatuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Table{}
	for rows.Next() {
		var i Table
		if err := rows.Scan(&i.ID, &i.Name, &i.Seats, &i.Status, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
