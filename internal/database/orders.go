package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Order reads join tables so every Order carries its resolved tenant; the
// guard compares that against the principal instead of trusting the caller.
const orderSelect = `
	SELECT o.id, o.table_id, t.restaurant_id, o.status, o.total_amount, o.created_by, o.created_at, o.updated_at
	FROM orders o
	JOIN tables t ON t.id = o.table_id`

func scanOrder(row interface{ Scan(...interface{}) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.TableID, &o.RestaurantID, &o.Status, &o.TotalAmount, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

type CreateOrderParams struct {
	TableID     uuid.UUID
	Status      string
	TotalAmount pgtype.Numeric
	CreatedBy   uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	const sql = `
		WITH ins AS (
			INSERT INTO orders (table_id, status, total_amount, created_by)
			VALUES ($1, $2, $3, $4)
			RETURNING id, table_id, status, total_amount, created_by, created_at, updated_at
		)
		SELECT ins.id, ins.table_id, t.restaurant_id, ins.status, ins.total_amount, ins.created_by, ins.created_at, ins.updated_at
		FROM ins
		JOIN tables t ON t.id = ins.table_id`
	return scanOrder(q.db.QueryRow(ctx, sql, arg.TableID, arg.Status, arg.TotalAmount, arg.CreatedBy))
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, orderSelect+` WHERE o.id = $1`, id))
}

// GetOrderForUpdate locks the order row for the rest of the transaction,
// serializing concurrent transitions and payments on the same order.
// Orders on other rows are not blocked.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, orderSelect+` WHERE o.id = $1 FOR NO KEY UPDATE OF o`, id))
}

type ListOrdersParams struct {
	RestaurantID uuid.UUID
	Status       pgtype.Text
	Limit        int32
	Offset       int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	const sql = orderSelect + `
		WHERE t.restaurant_id = $1
		  AND ($2::text IS NULL OR o.status = $2)
		ORDER BY o.created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := q.db.Query(ctx, sql, arg.RestaurantID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type CountOrdersParams struct {
	RestaurantID uuid.UUID
	Status       pgtype.Text
}

func (q *Queries) CountOrders(ctx context.Context, arg CountOrdersParams) (int64, error) {
	const sql = `
		SELECT COUNT(*)
		FROM orders o
		JOIN tables t ON t.id = o.table_id
		WHERE t.restaurant_id = $1
		  AND ($2::text IS NULL OR o.status = $2)`
	var n int64
	err := q.db.QueryRow(ctx, sql, arg.RestaurantID, arg.Status).Scan(&n)
	return n, err
}

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	Status     string
	FromStatus string
}

// UpdateOrderStatus is a compare-and-set: it only writes when the order is
// still in FromStatus, returning pgx.ErrNoRows otherwise.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	const sql = `
		WITH upd AS (
			UPDATE orders
			SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = $3
			RETURNING id, table_id, status, total_amount, created_by, created_at, updated_at
		)
		SELECT upd.id, upd.table_id, t.restaurant_id, upd.status, upd.total_amount, upd.created_by, upd.created_at, upd.updated_at
		FROM upd
		JOIN tables t ON t.id = upd.table_id`
	return scanOrder(q.db.QueryRow(ctx, sql, arg.ID, arg.Status, arg.FromStatus))
}

type UpdateOrderTotalParams struct {
	ID          uuid.UUID
	TotalAmount pgtype.Numeric
}

func (q *Queries) UpdateOrderTotal(ctx context.Context, arg UpdateOrderTotalParams) (Order, error) {
	const sql = `
		WITH upd AS (
			UPDATE orders
			SET total_amount = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING id, table_id, status, total_amount, created_by, created_at, updated_at
		)
		SELECT upd.id, upd.table_id, t.restaurant_id, upd.status, upd.total_amount, upd.created_by, upd.created_at, upd.updated_at
		FROM upd
		JOIN tables t ON t.id = upd.table_id`
	return scanOrder(q.db.QueryRow(ctx, sql, arg.ID, arg.TotalAmount))
}

const orderItemColumns = `id, order_id, dish_id, quantity, unit_price, created_at`

func scanOrderItem(row interface{ Scan(...interface{}) error }) (OrderItem, error) {
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.DishID, &it.Quantity, &it.UnitPrice, &it.CreatedAt)
	return it, err
}

type CreateOrderItemParams struct {
	OrderID   uuid.UUID
	DishID    uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	const sql = `
		INSERT INTO order_items (order_id, dish_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + orderItemColumns
	return scanOrderItem(q.db.QueryRow(ctx, sql, arg.OrderID, arg.DishID, arg.Quantity, arg.UnitPrice))
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	const sql = `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY created_at`
	rows, err := q.db.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type DeleteOrderItemParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
}

func (q *Queries) DeleteOrderItem(ctx context.Context, arg DeleteOrderItemParams) (uuid.UUID, error) {
	const sql = `DELETE FROM order_items WHERE id = $1 AND order_id = $2 RETURNING id`
	var id uuid.UUID
	err := q.db.QueryRow(ctx, sql, arg.ID, arg.OrderID).Scan(&id)
	return id, err
}

type OrderStatsRow struct {
	OrderCount int64
	Revenue    pgtype.Numeric
}

// GetOrderStats summarizes settled orders for a restaurant.
func (q *Queries) GetOrderStats(ctx context.Context, restaurantID uuid.UUID) (OrderStatsRow, error) {
	const sql = `
		SELECT COUNT(*) FILTER (WHERE o.status = 'PAID'),
		       COALESCE(SUM(o.total_amount) FILTER (WHERE o.status = 'PAID'), 0)
		FROM orders o
		JOIN tables t ON t.id = o.table_id
		WHERE t.restaurant_id = $1`
	var s OrderStatsRow
	err := q.db.QueryRow(ctx, sql, restaurantID).Scan(&s.OrderCount, &s.Revenue)
	return s, err
}
