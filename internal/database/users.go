package database

import (
	"context"

	"github.com/google/uuid"
)

const createRestaurant = `
INSERT INTO restaurants (name)
VALUES ($1)
RETURNING id, name, created_at
`

func (q *Queries) CreateRestaurant(ctx context.Context, name string) (Restaurant, error) {
	var r Restaurant
	err := q.db.QueryRow(ctx, createRestaurant, name).Scan(&r.ID, &r.Name, &r.CreatedAt)
	return r, err
}

const getRestaurant = `
SELECT id, name, created_at FROM restaurants WHERE id = $1
`

func (q *Queries) GetRestaurant(ctx context.Context, id uuid.UUID) (Restaurant, error) {
	var r Restaurant
	err := q.db.QueryRow(ctx, getRestaurant, id).Scan(&r.ID, &r.Name, &r.CreatedAt)
	return r, err
}

type CreateUserParams struct {
	RestaurantID uuid.UUID
	Email        string
	PasswordHash string
	FullName     string
	Role         string
}

const createUser = `
INSERT INTO users (restaurant_id, email, password_hash, full_name, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, restaurant_id, email, password_hash, full_name, role, active, created_at
`

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, createUser,
		arg.RestaurantID, arg.Email, arg.PasswordHash, arg.FullName, arg.Role,
	).Scan(&u.ID, &u.RestaurantID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.Active, &u.CreatedAt)
	return u, err
}

const getUser = `
SELECT id, restaurant_id, email, password_hash, full_name, role, active, created_at
FROM users WHERE id = $1
`

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, getUser, id).
		Scan(&u.ID, &u.RestaurantID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.Active, &u.CreatedAt)
	return u, err
}

const getUserByEmail = `
SELECT id, restaurant_id, email, password_hash, full_name, role, active, created_at
FROM users WHERE email = $1
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, getUserByEmail, email).
		Scan(&u.ID, &u.RestaurantID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.Active, &u.CreatedAt)
	return u, err
}

const listWaitersByRestaurant = `
SELECT id, restaurant_id, email, password_hash, full_name, role, active, created_at
FROM users
WHERE restaurant_id = $1 AND role = 'WAITER'
ORDER BY full_name
`

func (q *Queries) ListWaitersByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]User, error) {
	rows, err := q.db.Query(ctx, listWaitersByRestaurant, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.RestaurantID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type SetUserActiveParams struct {
	ID     uuid.UUID
	Active bool
}

const setUserActive = `
UPDATE users SET active = $2 WHERE id = $1
RETURNING id, restaurant_id, email, password_hash, full_name, role, active, created_at
`

func (q *Queries) SetUserActive(ctx context.Context, arg SetUserActiveParams) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, setUserActive, arg.ID, arg.Active).
		Scan(&u.ID, &u.RestaurantID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.Active, &u.CreatedAt)
	return u, err
}
