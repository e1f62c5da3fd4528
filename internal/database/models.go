package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Organization struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Restaurant struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Address        pgtype.Text
	Phone          pgtype.Text
	Email          pgtype.Text
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Role carries its permission grid as raw JSON; callers decode it through
// permission.ParseGrid so unknown keys are rejected, never ignored.
type Role struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Name         string
	Description  pgtype.Text
	IsDefault    bool
	Permissions  []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type User struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	RoleID       uuid.UUID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        pgtype.Text
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Table struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Number       string
	Capacity     int32
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Menu struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Name         string
	Description  pgtype.Text
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Dish struct {
	ID          uuid.UUID
	MenuID      uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Category    string
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Order rows are always read joined to their table, so RestaurantID is the
// tenant resolved through the ownership chain (Order -> Table -> Restaurant).
type Order struct {
	ID           uuid.UUID
	TableID      uuid.UUID
	RestaurantID uuid.UUID
	Status       string
	TotalAmount  pgtype.Numeric
	CreatedBy    uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderItem snapshots the dish price at creation; later dish price changes
// never alter historical totals.
type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	DishID    uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
	CreatedAt time.Time
}

// Payment is append-only; there is no update or delete query for it.
type Payment struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Amount      pgtype.Numeric
	Method      string
	ProcessedBy uuid.UUID
	CreatedAt   time.Time
}
