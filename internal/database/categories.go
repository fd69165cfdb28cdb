package database

import (
	"context"

	"github.com/google/uuid"
)

const listCategories = `-- name: ListCategories :many
SELECT id, name, order_index, created_at FROM categories
ORDER BY order_index ASC, created_at ASC
`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Category{}
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.Name, &i.OrderIndex, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCategory = `-- name: GetCategory :one
SELECT id, name, order_index, created_at FROM categories
WHERE id = $1
`

func (q *Queries) GetCategory(ctx context.Context, id uuid.UUID) (Category, error) {
	row := q.db.QueryRow(ctx, getCategory, id)
	var i Category
	err := row.Scan(&i.ID, &i.Name, &i.OrderIndex, &i.CreatedAt)
	return i, err
}

const getMaxCategoryOrderIndex = `-- name: GetMaxCategoryOrderIndex :one
SELECT COALESCE(MAX(order_index), 0)::int AS max_order_index FROM categories
`

func (q *Queries) GetMaxCategoryOrderIndex(ctx context.Context) (int32, error) {
	row := q.db.QueryRow(ctx, getMaxCategoryOrderIndex)
	var maxOrderIndex int32
	err := row.Scan(&maxOrderIndex)
	return maxOrderIndex, err
}

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (name, order_index)
VALUES ($1, $2)
RETURNING id, name, order_index, created_at
`

type CreateCategoryParams struct {
	Name       string `json:"name"`
	OrderIndex int32  `json:"order_index"`
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, createCategory, arg.Name, arg.OrderIndex)
	var i Category
	err := row.Scan(&i.ID, &i.Name, &i.OrderIndex, &i.CreatedAt)
	return i, err
}

const updateCategoryName = `-- name: UpdateCategoryName :one
UPDATE categories SET name = $2
WHERE id = $1
RETURNING id, name, order_index, created_at
`

type UpdateCategoryNameParams struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (q *Queries) UpdateCategoryName(ctx context.Context, arg UpdateCategoryNameParams) (Category, error) {
	row := q.db.QueryRow(ctx, updateCategoryName, arg.ID, arg.Name)
	var i Category
	err := row.Scan(&i.ID, &i.Name, &i.OrderIndex, &i.CreatedAt)
	return i, err
}

const updateCategoryOrderIndex = `-- name: UpdateCategoryOrderIndex :one
UPDATE categories SET order_index = $2
WHERE id = $1
RETURNING id, name, order_index, created_at
`

type UpdateCategoryOrderIndexParams struct {
	ID         uuid.UUID `json:"id"`
	OrderIndex int32     `json:"order_index"`
}

func (q *Queries) UpdateCategoryOrderIndex(ctx context.Context, arg UpdateCategoryOrderIndexParams) (Category, error) {
	row := q.db.QueryRow(ctx, updateCategoryOrderIndex, arg.ID, arg.OrderIndex)
	var i Category
	err := row.Scan(&i.ID, &i.Name, &i.OrderIndex, &i.CreatedAt)
	return i, err
}

const deleteCategory = `-- name: DeleteCategory :one
DELETE FROM categories
WHERE id = $1
RETURNING id, name, order_index, created_at
`

func (q *Queries) DeleteCategory(ctx context.Context, id uuid.UUID) (Category, error) {
	row := q.db.QueryRow(ctx, deleteCategory, id)
	var i Category
	err := row.Scan(&i.ID, &i.Name, &i.OrderIndex, &i.CreatedAt)
	return i, err
}

const countMenuItemsByCategory = `-- name: CountMenuItemsByCategory :one
SELECT COUNT(*) FROM menu_items
WHERE category_id = $1
`

func (q *Queries) CountMenuItemsByCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countMenuItemsByCategory, categoryID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
