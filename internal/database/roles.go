package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const roleColumns = `id, restaurant_id, name, description, is_default, permissions, created_at, updated_at`

func scanRole(row interface{ Scan(...interface{}) error }) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.RestaurantID, &r.Name, &r.Description, &r.IsDefault, &r.Permissions, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

type CreateRoleParams struct {
	RestaurantID uuid.UUID
	Name         string
	Description  pgtype.Text
	IsDefault    bool
	Permissions  []byte
}

func (q *Queries) CreateRole(ctx context.Context, arg CreateRoleParams) (Role, error) {
	const sql = `
		INSERT INTO roles (restaurant_id, name, description, is_default, permissions)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + roleColumns
	return scanRole(q.db.QueryRow(ctx, sql, arg.RestaurantID, arg.Name, arg.Description, arg.IsDefault, arg.Permissions))
}

// GetRoleByID looks a role up without tenant scoping; used by principal
// resolution, where the caller compares tenants itself.
func (q *Queries) GetRoleByID(ctx context.Context, id uuid.UUID) (Role, error) {
	const sql = `SELECT ` + roleColumns + ` FROM roles WHERE id = $1`
	return scanRole(q.db.QueryRow(ctx, sql, id))
}

type GetRoleParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetRole(ctx context.Context, arg GetRoleParams) (Role, error) {
	const sql = `SELECT ` + roleColumns + ` FROM roles WHERE id = $1 AND restaurant_id = $2`
	return scanRole(q.db.QueryRow(ctx, sql, arg.ID, arg.RestaurantID))
}

type ListRolesParams struct {
	RestaurantID uuid.UUID
	Limit        int32
	Offset       int32
}

func (q *Queries) ListRoles(ctx context.Context, arg ListRolesParams) ([]Role, error) {
	const sql = `
		SELECT ` + roleColumns + `
		FROM roles
		WHERE restaurant_id = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3`
	rows, err := q.db.Query(ctx, sql, arg.RestaurantID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (q *Queries) CountRoles(ctx context.Context, restaurantID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM roles WHERE restaurant_id = $1`, restaurantID).Scan(&n)
	return n, err
}

type UpdateRoleParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Name         string
	Description  pgtype.Text
	Permissions  []byte
}

func (q *Queries) UpdateRole(ctx context.Context, arg UpdateRoleParams) (Role, error) {
	const sql = `
		UPDATE roles
		SET name = $3, description = $4, permissions = $5, updated_at = NOW()
		WHERE id = $1 AND restaurant_id = $2
		RETURNING ` + roleColumns
	return scanRole(q.db.QueryRow(ctx, sql, arg.ID, arg.RestaurantID, arg.Name, arg.Description, arg.Permissions))
}

type DeleteRoleParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) DeleteRole(ctx context.Context, arg DeleteRoleParams) (uuid.UUID, error) {
	const sql = `DELETE FROM roles WHERE id = $1 AND restaurant_id = $2 RETURNING id`
	var id uuid.UUID
	err := q.db.QueryRow(ctx, sql, arg.ID, arg.RestaurantID).Scan(&id)
	return id, err
}
