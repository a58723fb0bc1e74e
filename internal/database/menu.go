package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listCategories = `
SELECT id, name FROM categories ORDER BY name
`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

const createCategory = `
INSERT INTO categories (name) VALUES ($1)
RETURNING id, name
`

func (q *Queries) CreateCategory(ctx context.Context, name string) (Category, error) {
	var c Category
	err := q.db.QueryRow(ctx, createCategory, name).Scan(&c.ID, &c.Name)
	return c, err
}

type ListMenuByRestaurantParams struct {
	RestaurantID uuid.UUID
	ActiveOnly   bool
}

const listMenuByRestaurant = `
SELECT id, restaurant_id, category_id, description, price, photo_url, active, created_at, updated_at
FROM menu_items
WHERE restaurant_id = $1 AND (NOT $2::boolean OR active)
ORDER BY description
`

func (q *Queries) ListMenuByRestaurant(ctx context.Context, arg ListMenuByRestaurantParams) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuByRestaurant, arg.RestaurantID, arg.ActiveOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		var m MenuItem
		if err := rows.Scan(&m.ID, &m.RestaurantID, &m.CategoryID, &m.Description,
			&m.Price, &m.PhotoURL, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const getMenuItem = `
SELECT id, restaurant_id, category_id, description, price, photo_url, active, created_at, updated_at
FROM menu_items WHERE id = $1
`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	var m MenuItem
	err := q.db.QueryRow(ctx, getMenuItem, id).
		Scan(&m.ID, &m.RestaurantID, &m.CategoryID, &m.Description,
			&m.Price, &m.PhotoURL, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

type CreateMenuItemParams struct {
	RestaurantID uuid.UUID
	CategoryID   uuid.UUID
	Description  string
	Price        pgtype.Numeric
	PhotoURL     pgtype.Text
}

const createMenuItem = `
INSERT INTO menu_items (restaurant_id, category_id, description, price, photo_url)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, restaurant_id, category_id, description, price, photo_url, active, created_at, updated_at
`

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	var m MenuItem
	err := q.db.QueryRow(ctx, createMenuItem,
		arg.RestaurantID, arg.CategoryID, arg.Description, arg.Price, arg.PhotoURL,
	).Scan(&m.ID, &m.RestaurantID, &m.CategoryID, &m.Description,
		&m.Price, &m.PhotoURL, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

type UpdateMenuItemParams struct {
	ID          uuid.UUID
	CategoryID  uuid.UUID
	Description string
	Price       pgtype.Numeric
	PhotoURL    pgtype.Text
	Active      bool
}

const updateMenuItem = `
UPDATE menu_items
SET category_id = $2, description = $3, price = $4, photo_url = $5, active = $6, updated_at = now()
WHERE id = $1
RETURNING id, restaurant_id, category_id, description, price, photo_url, active, created_at, updated_at
`

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	var m MenuItem
	err := q.db.QueryRow(ctx, updateMenuItem,
		arg.ID, arg.CategoryID, arg.Description, arg.Price, arg.PhotoURL, arg.Active,
	).Scan(&m.ID, &m.RestaurantID, &m.CategoryID, &m.Description,
		&m.Price, &m.PhotoURL, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}
