package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, restaurant_id, role_id, email, password_hash, first_name, last_name, phone, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.RestaurantID, &u.RoleID, &u.Email, &u.PasswordHash,
		&u.FirstName, &u.LastName, &u.Phone, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

type CreateUserParams struct {
	RestaurantID uuid.UUID
	RoleID       uuid.UUID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        pgtype.Text
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	const sql = `
		INSERT INTO users (restaurant_id, role_id, email, password_hash, first_name, last_name, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns
	return scanUser(q.db.QueryRow(ctx, sql, arg.RestaurantID, arg.RoleID, arg.Email,
		arg.PasswordHash, arg.FirstName, arg.LastName, arg.Phone))
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_active = true`
	return scanUser(q.db.QueryRow(ctx, sql, email))
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_active = true`
	return scanUser(q.db.QueryRow(ctx, sql, id))
}

type ListUsersParams struct {
	RestaurantID uuid.UUID
	Limit        int32
	Offset       int32
}

func (q *Queries) ListUsers(ctx context.Context, arg ListUsersParams) ([]User, error) {
	const sql = `
		SELECT ` + userColumns + `
		FROM users
		WHERE restaurant_id = $1 AND is_active = true
		ORDER BY created_at
		LIMIT $2 OFFSET $3`
	rows, err := q.db.Query(ctx, sql, arg.RestaurantID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (q *Queries) CountUsers(ctx context.Context, restaurantID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE restaurant_id = $1 AND is_active = true`, restaurantID).Scan(&n)
	return n, err
}

type UpdateUserParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	RoleID       uuid.UUID
	Email        string
	FirstName    string
	LastName     string
	Phone        pgtype.Text
}

// UpdateUser covers role reassignment: changing RoleID moves the user to
// another role within the same restaurant.
func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	const sql = `
		UPDATE users
		SET role_id = $3, email = $4, first_name = $5, last_name = $6, phone = $7, updated_at = NOW()
		WHERE id = $1 AND restaurant_id = $2 AND is_active = true
		RETURNING ` + userColumns
	return scanUser(q.db.QueryRow(ctx, sql, arg.ID, arg.RestaurantID, arg.RoleID,
		arg.Email, arg.FirstName, arg.LastName, arg.Phone))
}

type SoftDeleteUserParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) SoftDeleteUser(ctx context.Context, arg SoftDeleteUserParams) (uuid.UUID, error) {
	const sql = `
		UPDATE users
		SET is_active = false, updated_at = NOW()
		WHERE id = $1 AND restaurant_id = $2 AND is_active = true
		RETURNING id`
	var id uuid.UUID
	err := q.db.QueryRow(ctx, sql, arg.ID, arg.RestaurantID).Scan(&id)
	return id, err
}
