package database

import (
	"context"

	"github.com/google/uuid"
)

const tableColumns = `id, restaurant_id, number, capacity, status, created_at, updated_at`

func scanTable(row interface{ Scan(...interface{}) error }) (Table, error) {
	var t Table
	err := row.Scan(&t.ID, &t.RestaurantID, &t.Number, &t.Capacity, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

type CreateTableParams struct {
	RestaurantID uuid.UUID
	Number       string
	Capacity     int32
	Status       string
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	const sql = `
		INSERT INTO tables (restaurant_id, number, capacity, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + tableColumns
	return scanTable(q.db.QueryRow(ctx, sql, arg.RestaurantID, arg.Number, arg.Capacity, arg.Status))
}

type GetTableParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetTable(ctx context.Context, arg GetTableParams) (Table, error) {
	const sql = `SELECT ` + tableColumns + ` FROM tables WHERE id = $1 AND restaurant_id = $2`
	return scanTable(q.db.QueryRow(ctx, sql, arg.ID, arg.RestaurantID))
}

type ListTablesParams struct {
	RestaurantID uuid.UUID
	Limit        int32
	Offset       int32
}

func (q *Queries) ListTables(ctx context.Context, arg ListTablesParams) ([]Table, error) {
	const sql = `
		SELECT ` + tableColumns + `
		FROM tables
		WHERE restaurant_id = $1
		ORDER BY number
		LIMIT $2 OFFSET $3`
	rows, err := q.db.Query(ctx, sql, arg.RestaurantID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (q *Queries) CountTables(ctx context.Context, restaurantID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM tables WHERE restaurant_id = $1`, restaurantID).Scan(&n)
	return n, err
}

type UpdateTableParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Number       string
	Capacity     int32
	Status       string
}

func (q *Queries) UpdateTable(ctx context.Context, arg UpdateTableParams) (Table, error) {
	const sql = `
		UPDATE tables
		SET number = $3, capacity = $4, status = $5, updated_at = NOW()
		WHERE id = $1 AND restaurant_id = $2
		RETURNING ` + tableColumns
	return scanTable(q.db.QueryRow(ctx, sql, arg.ID, arg.RestaurantID, arg.Number, arg.Capacity, arg.Status))
}

type DeleteTableParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) DeleteTable(ctx context.Context, arg DeleteTableParams) (uuid.UUID, error) {
	const sql = `DELETE FROM tables WHERE id = $1 AND restaurant_id = $2 RETURNING id`
	var id uuid.UUID
	err := q.db.QueryRow(ctx, sql, arg.ID, arg.RestaurantID).Scan(&id)
	return id, err
}
