package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuColumns = `id, restaurant_id, name, description, is_active, created_at, updated_at`

func scanMenu(row interface{ Scan(...interface{}) error }) (Menu, error) {
	var m Menu
	err := row.Scan(&m.ID, &m.RestaurantID, &m.Name, &m.Description, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const dishColumns = `id, menu_id, name, description, price, category, is_available, created_at, updated_at`

func scanDish(row interface{ Scan(...interface{}) error }) (Dish, error) {
	var d Dish
	err := row.Scan(&d.ID, &d.MenuID, &d.Name, &d.Description, &d.Price, &d.Category, &d.IsAvailable, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

type CreateMenuParams struct {
	RestaurantID uuid.UUID
	Name         string
	Description  pgtype.Text
	IsActive     bool
}

func (q *Queries) CreateMenu(ctx context.Context, arg CreateMenuParams) (Menu, error) {
	const sql = `
		INSERT INTO menus (restaurant_id, name, description, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + menuColumns
	return scanMenu(q.db.QueryRow(ctx, sql, arg.RestaurantID, arg.Name, arg.Description, arg.IsActive))
}

type GetMenuParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetMenu(ctx context.Context, arg GetMenuParams) (Menu, error) {
	const sql = `SELECT ` + menuColumns + ` FROM menus WHERE id = $1 AND restaurant_id = $2`
	return scanMenu(q.db.QueryRow(ctx, sql, arg.ID, arg.RestaurantID))
}

func (q *Queries) ListMenus(ctx context.Context, restaurantID uuid.UUID) ([]Menu, error) {
	const sql = `SELECT ` + menuColumns + ` FROM menus WHERE restaurant_id = $1 ORDER BY created_at`
	rows, err := q.db.Query(ctx, sql, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var menus []Menu
	for rows.Next() {
		m, err := scanMenu(rows)
		if err != nil {
			return nil, err
		}
		menus = append(menus, m)
	}
	return menus, rows.Err()
}

type UpdateMenuParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Name         string
	Description  pgtype.Text
	IsActive     bool
}

func (q *Queries) UpdateMenu(ctx context.Context, arg UpdateMenuParams) (Menu, error) {
	const sql = `
		UPDATE menus
		SET name = $3, description = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1 AND restaurant_id = $2
		RETURNING ` + menuColumns
	return scanMenu(q.db.QueryRow(ctx, sql, arg.ID, arg.RestaurantID, arg.Name, arg.Description, arg.IsActive))
}

type DeleteMenuParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) DeleteMenu(ctx context.Context, arg DeleteMenuParams) (uuid.UUID, error) {
	const sql = `DELETE FROM menus WHERE id = $1 AND restaurant_id = $2 RETURNING id`
	var id uuid.UUID
	err := q.db.QueryRow(ctx, sql, arg.ID, arg.RestaurantID).Scan(&id)
	return id, err
}

type CreateDishParams struct {
	MenuID      uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Category    string
	IsAvailable bool
}

func (q *Queries) CreateDish(ctx context.Context, arg CreateDishParams) (Dish, error) {
	const sql = `
		INSERT INTO dishes (menu_id, name, description, price, category, is_available)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + dishColumns
	return scanDish(q.db.QueryRow(ctx, sql, arg.MenuID, arg.Name, arg.Description, arg.Price, arg.Category, arg.IsAvailable))
}

type GetDishForOrderParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

// GetDishForOrder resolves the dish through its menu so a dish from another
// restaurant's menu is simply not found here.
func (q *Queries) GetDishForOrder(ctx context.Context, arg GetDishForOrderParams) (Dish, error) {
	const sql = `
		SELECT d.id, d.menu_id, d.name, d.description, d.price, d.category, d.is_available, d.created_at, d.updated_at
		FROM dishes d
		JOIN menus m ON m.id = d.menu_id
		WHERE d.id = $1 AND m.restaurant_id = $2`
	return scanDish(q.db.QueryRow(ctx, sql, arg.ID, arg.RestaurantID))
}

type ListDishesParams struct {
	MenuID       uuid.UUID
	RestaurantID uuid.UUID
	Limit        int32
	Offset       int32
}

func (q *Queries) ListDishes(ctx context.Context, arg ListDishesParams) ([]Dish, error) {
	const sql = `
		SELECT d.id, d.menu_id, d.name, d.description, d.price, d.category, d.is_available, d.created_at, d.updated_at
		FROM dishes d
		JOIN menus m ON m.id = d.menu_id
		WHERE d.menu_id = $1 AND m.restaurant_id = $2
		ORDER BY d.category, d.name
		LIMIT $3 OFFSET $4`
	rows, err := q.db.Query(ctx, sql, arg.MenuID, arg.RestaurantID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dishes []Dish
	for rows.Next() {
		d, err := scanDish(rows)
		if err != nil {
			return nil, err
		}
		dishes = append(dishes, d)
	}
	return dishes, rows.Err()
}

type CountDishesParams struct {
	MenuID       uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) CountDishes(ctx context.Context, arg CountDishesParams) (int64, error) {
	const sql = `
		SELECT COUNT(*)
		FROM dishes d
		JOIN menus m ON m.id = d.menu_id
		WHERE d.menu_id = $1 AND m.restaurant_id = $2`
	var n int64
	err := q.db.QueryRow(ctx, sql, arg.MenuID, arg.RestaurantID).Scan(&n)
	return n, err
}

type UpdateDishParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Name         string
	Description  pgtype.Text
	Price        pgtype.Numeric
	Category     string
	IsAvailable  bool
}

func (q *Queries) UpdateDish(ctx context.Context, arg UpdateDishParams) (Dish, error) {
	const sql = `
		UPDATE dishes d
		SET name = $3, description = $4, price = $5, category = $6, is_available = $7, updated_at = NOW()
		FROM menus m
		WHERE d.id = $1 AND m.id = d.menu_id AND m.restaurant_id = $2
		RETURNING d.id, d.menu_id, d.name, d.description, d.price, d.category, d.is_available, d.created_at, d.updated_at`
	return scanDish(q.db.QueryRow(ctx, sql, arg.ID, arg.RestaurantID, arg.Name, arg.Description, arg.Price, arg.Category, arg.IsAvailable))
}

type DeleteDishParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) DeleteDish(ctx context.Context, arg DeleteDishParams) (uuid.UUID, error) {
	const sql = `
		DELETE FROM dishes d
		USING menus m
		WHERE d.id = $1 AND m.id = d.menu_id AND m.restaurant_id = $2
		RETURNING d.id`
	var id uuid.UUID
	err := q.db.QueryRow(ctx, sql, arg.ID, arg.RestaurantID).Scan(&id)
	return id, err
}
