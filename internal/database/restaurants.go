package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type CreateOrganizationParams struct {
	Name        string
	Description pgtype.Text
}

func (q *Queries) CreateOrganization(ctx context.Context, arg CreateOrganizationParams) (Organization, error) {
	const sql = `
		INSERT INTO organizations (name, description)
		VALUES ($1, $2)
		RETURNING id, name, description, created_at, updated_at`
	var o Organization
	err := q.db.QueryRow(ctx, sql, arg.Name, arg.Description).
		Scan(&o.ID, &o.Name, &o.Description, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

type CreateRestaurantParams struct {
	OrganizationID uuid.UUID
	Name           string
	Address        pgtype.Text
	Phone          pgtype.Text
	Email          pgtype.Text
}

func (q *Queries) CreateRestaurant(ctx context.Context, arg CreateRestaurantParams) (Restaurant, error) {
	const sql = `
		INSERT INTO restaurants (organization_id, name, address, phone, email)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, organization_id, name, address, phone, email, created_at, updated_at`
	var r Restaurant
	err := q.db.QueryRow(ctx, sql, arg.OrganizationID, arg.Name, arg.Address, arg.Phone, arg.Email).
		Scan(&r.ID, &r.OrganizationID, &r.Name, &r.Address, &r.Phone, &r.Email, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (q *Queries) GetRestaurant(ctx context.Context, id uuid.UUID) (Restaurant, error) {
	const sql = `
		SELECT id, organization_id, name, address, phone, email, created_at, updated_at
		FROM restaurants
		WHERE id = $1`
	var r Restaurant
	err := q.db.QueryRow(ctx, sql, id).
		Scan(&r.ID, &r.OrganizationID, &r.Name, &r.Address, &r.Phone, &r.Email, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}
