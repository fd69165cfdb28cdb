package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const listMenuItems = `-- name: ListMenuItems :many
SELECT id, category_id, name, price, image, description, created_at, updated_at FROM menu_items
ORDER BY created_at ASC
`

func (q *Queries) ListMenuItems(ctx context.Context) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMenuItems(rows)
}

const listMenuItemsByIDs = `-- name: ListMenuItemsByIDs :many
SELECT id, category_id, name, price, image, description, created_at, updated_at FROM menu_items
WHERE id = ANY($1::uuid[])
`

func (q *Queries) ListMenuItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItemsByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMenuItems(rows)
}

const getMenuItem = `-- name: GetMenuItem :one
SELECT id, category_id, name, price, image, description, created_at, updated_at FROM menu_items
WHERE id = $1
`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	row := q.db.QueryRow(ctx, getMenuItem, id)
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.CategoryID,
		&i.Name,
		&i.Price,
		&i.Image,
		&i.Description,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createMenuItem = `-- name: CreateMenuItem :one
INSERT INTO menu_items (category_id, name, price, image, description)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, category_id, name, price, image, description, created_at, updated_at
`

type CreateMenuItemParams struct {
	CategoryID  uuid.UUID `json:"category_id"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	Image       string    `json:"image"`
	Description string    `json:"description"`
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem,
		arg.CategoryID,
		arg.Name,
		arg.Price,
		arg.Image,
		arg.Description,
	)
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.CategoryID,
		&i.Name,
		&i.Price,
		&i.Image,
		&i.Description,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateMenuItem = `-- name: UpdateMenuItem :one
UPDATE menu_items
SET category_id = $2, name = $3, price = $4, image = $5, description = $6, updated_at = now()
WHERE id = $1
RETURNING id, category_id, name, price, image, description, created_at, updated_at
`

type UpdateMenuItemParams struct {
	ID          uuid.UUID `json:"id"`
	CategoryID  uuid.UUID `json:"category_id"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	Image       string    `json:"image"`
	Description string    `json:"description"`
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, updateMenuItem,
		arg.ID,
		arg.CategoryID,
		arg.Name,
		arg.Price,
		arg.Image,
		arg.Description,
	)
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.CategoryID,
		&i.Name,
		&i.Price,
		&i.Image,
		&i.Description,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const deleteMenuItem = `-- name: DeleteMenuItem :one
DELETE FROM menu_items
WHERE id = $1
RETURNING id, category_id, name, price, image, description, created_at, updated_at
`

func (q *Queries) DeleteMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	row := q.db.QueryRow(ctx, deleteMenuItem, id)
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.CategoryID,
		&i.Name,
		&i.Price,
		&i.Image,
		&i.Description,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanMenuItems(rows pgx.Rows) ([]MenuItem, error) {
	items := []MenuItem{}
	for rows.Next() {
		var i MenuItem
		if err := rows.Scan(
			&i.ID,
			&i.CategoryID,
			&i.Name,
			&i.Price,
			&i.Image,
			&i.Description,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
