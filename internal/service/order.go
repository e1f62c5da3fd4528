package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/gourmet-pos/api/internal/authz"
	"github.com/gourmet-pos/api/internal/database"
	"github.com/gourmet-pos/api/internal/enum"
	"github.com/gourmet-pos/api/internal/permission"
)

// Errors returned by the order service.
var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrTableNotFound        = errors.New("table not found")
	ErrDishNotFound         = errors.New("dish not found")
	ErrDishUnavailable      = errors.New("dish is not available")
	ErrItemNotFound         = errors.New("order item not found")
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// ErrInvalidTransition means the requested status change is not an
	// edge of the order state machine, including a request for the
	// order's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrOrderLocked means items cannot be mutated at the order's
	// current status.
	ErrOrderLocked = errors.New("order items are locked")

	// ErrOrderNotReady / ErrOrderClosed bound the payment window:
	// payments are accepted only while the order is SERVED.
	ErrOrderNotReady = errors.New("order is not served yet")
	ErrOrderClosed   = errors.New("order is closed")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order lifecycle.
// Satisfied by *database.Queries (and its transaction-bound variant).
type OrderStore interface {
	GetTable(ctx context.Context, arg database.GetTableParams) (database.Table, error)
	GetDishForOrder(ctx context.Context, arg database.GetDishForOrderParams) (database.Dish, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	UpdateOrderTotal(ctx context.Context, arg database.UpdateOrderTotalParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	DeleteOrderItem(ctx context.Context, arg database.DeleteOrderItemParams) (uuid.UUID, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	SumPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// Notifier pushes order events to connected clients. Calls are
// fire-and-forget: a failed notification never rolls back the operation.
type Notifier interface {
	NotifyOrder(restaurantID uuid.UUID, event string, order database.Order)
}

// Notification event names.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// transition is one edge of the order state machine together with the
// permission the caller must hold to take it.
type transition struct {
	to   string
	perm permission.Permission
}

// transitions is the full table. SERVED -> PAID is deliberately absent:
// that edge is only taken internally when a payment settles the order.
var transitions = map[string][]transition{
	enum.OrderStatusPending: {
		{enum.OrderStatusPreparing, permission.OrdersUpdate},
		{enum.OrderStatusCancelled, permission.OrdersDelete},
	},
	enum.OrderStatusPreparing: {
		{enum.OrderStatusReady, permission.OrdersUpdate},
		{enum.OrderStatusCancelled, permission.OrdersDelete},
	},
	enum.OrderStatusReady: {
		{enum.OrderStatusServed, permission.OrdersUpdate},
	},
}

// itemsMutable reports whether order items may still be added or removed.
func itemsMutable(status string) bool {
	return status == enum.OrderStatusPending || status == enum.OrderStatusPreparing
}

// OrderService owns the order state machine and payment reconciliation.
// Every mutation runs in one transaction with the order row locked, so no
// two concurrent operations on the same order can both succeed.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	authz    *authz.Evaluator
	guard    *authz.Guard
	notify   Notifier
}

// NewOrderService creates a new OrderService. notify may be nil.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, ev *authz.Evaluator, guard *authz.Guard, notify Notifier) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, authz: ev, guard: guard, notify: notify}
}

// CreateOrderItemRequest is a single line in a new or amended order.
type CreateOrderItemRequest struct {
	DishID   uuid.UUID
	Quantity int32
}

// CreateOrderRequest is the validated input for placing an order.
type CreateOrderRequest struct {
	TableID uuid.UUID
	Items   []CreateOrderItemRequest
}

// OrderResult is an order with its items.
type OrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// PaymentResult is the outcome of recording a payment, including the
// reconciled totals. Surplus is zero unless the ledger exceeds the order
// total; overpayment is recorded as-is and surfaced here for operational
// handling.
type PaymentResult struct {
	Payment   database.Payment
	Order     database.Order
	TotalPaid decimal.Decimal
	Surplus   decimal.Decimal
	Settled   bool
}

// CreateOrder places a new PENDING order on a table in the principal's
// restaurant, snapshotting each dish's current price into its item.
func (s *OrderService) CreateOrder(ctx context.Context, p *authz.Principal, req CreateOrderRequest) (*OrderResult, error) {
	if err := s.authz.Authorize(p, permission.OrdersCreate); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	table, err := store.GetTable(ctx, database.GetTableParams{ID: req.TableID, RestaurantID: p.RestaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}
	if err := s.guard.SameTenant(p.RestaurantID, table.RestaurantID); err != nil {
		return nil, err
	}

	// Validate dishes and compute the total before any insert.
	total := decimal.Zero
	prices := make([]decimal.Decimal, len(req.Items))
	for i, item := range req.Items {
		dish, err := store.GetDishForOrder(ctx, database.GetDishForOrderParams{
			ID:           item.DishID,
			RestaurantID: p.RestaurantID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("items[%d]: %w", i, ErrDishNotFound)
			}
			return nil, fmt.Errorf("items[%d]: get dish: %w", i, err)
		}
		if !dish.IsAvailable {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrDishUnavailable)
		}
		prices[i] = numericToDecimal(dish.Price)
		total = total.Add(prices[i].Mul(decimal.NewFromInt32(item.Quantity)))
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TableID:     req.TableID,
		Status:      enum.OrderStatusPending,
		TotalAmount: decimalToNumeric(total),
		CreatedBy:   p.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]database.OrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i], err = store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:   order.ID,
			DishID:    item.DishID,
			Quantity:  item.Quantity,
			UnitPrice: decimalToNumeric(prices[i]),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	if s.notify != nil {
		s.notify.NotifyOrder(order.RestaurantID, EventOrderCreated, order)
	}

	return &OrderResult{Order: order, Items: items}, nil
}

// TransitionOrder moves an order along the state machine. The tenant guard
// and the edge's permission check run inside the same transaction as the
// state write; a denied request changes nothing.
func (s *OrderService) TransitionOrder(ctx context.Context, p *authz.Principal, orderID uuid.UUID, target string) (*database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := s.guard.SameTenant(p.RestaurantID, order.RestaurantID); err != nil {
		return nil, err
	}

	// Requesting the current status is a client bug, not a no-op.
	if target == order.Status {
		return nil, fmt.Errorf("%w: order is already %s", ErrInvalidTransition, order.Status)
	}

	var edge *transition
	for i := range transitions[order.Status] {
		if transitions[order.Status][i].to == target {
			edge = &transitions[order.Status][i]
			break
		}
	}
	if edge == nil {
		return nil, fmt.Errorf("%w: cannot go from %s to %s", ErrInvalidTransition, order.Status, target)
	}

	if err := s.authz.Authorize(p, edge.perm); err != nil {
		return nil, err
	}

	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:         orderID,
		Status:     target,
		FromStatus: order.Status,
	})
	if err != nil {
		// The row is locked, so a miss here means the status check
		// in SQL disagreed with our read; surface it as a conflict.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: cannot go from %s to %s", ErrInvalidTransition, order.Status, target)
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	if s.notify != nil {
		s.notify.NotifyOrder(updated.RestaurantID, EventOrderStatusChanged, updated)
	}

	return &updated, nil
}

// AddItems appends items to an order that is still PENDING or PREPARING
// and recomputes the total from the snapshotted item prices.
func (s *OrderService) AddItems(ctx context.Context, p *authz.Principal, orderID uuid.UUID, reqs []CreateOrderItemRequest) (*OrderResult, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyItems
	}
	for i, r := range reqs {
		if r.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
	}

	return s.mutateItems(ctx, p, orderID, func(store OrderStore, order database.Order) error {
		for i, r := range reqs {
			dish, err := store.GetDishForOrder(ctx, database.GetDishForOrderParams{
				ID:           r.DishID,
				RestaurantID: order.RestaurantID,
			})
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("items[%d]: %w", i, ErrDishNotFound)
				}
				return fmt.Errorf("items[%d]: get dish: %w", i, err)
			}
			if !dish.IsAvailable {
				return fmt.Errorf("items[%d]: %w", i, ErrDishUnavailable)
			}
			if _, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
				OrderID:   orderID,
				DishID:    r.DishID,
				Quantity:  r.Quantity,
				UnitPrice: dish.Price,
			}); err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}
		return nil
	})
}

// RemoveItem removes a single item from an order that is still PENDING or
// PREPARING and recomputes the total.
func (s *OrderService) RemoveItem(ctx context.Context, p *authz.Principal, orderID, itemID uuid.UUID) (*OrderResult, error) {
	return s.mutateItems(ctx, p, orderID, func(store OrderStore, order database.Order) error {
		if _, err := store.DeleteOrderItem(ctx, database.DeleteOrderItemParams{ID: itemID, OrderID: orderID}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrItemNotFound
			}
			return fmt.Errorf("delete order item: %w", err)
		}
		return nil
	})
}

// mutateItems runs an item mutation under the order row lock, enforcing
// the tenant guard, orders.update, and the editable-status window, then
// recomputes the order total from its remaining items.
func (s *OrderService) mutateItems(ctx context.Context, p *authz.Principal, orderID uuid.UUID, mutate func(OrderStore, database.Order) error) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := s.guard.SameTenant(p.RestaurantID, order.RestaurantID); err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(p, permission.OrdersUpdate); err != nil {
		return nil, err
	}
	if !itemsMutable(order.Status) {
		return nil, fmt.Errorf("%w: order is %s", ErrOrderLocked, order.Status)
	}

	if err := mutate(store, order); err != nil {
		return nil, err
	}

	items, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(numericToDecimal(it.UnitPrice).Mul(decimal.NewFromInt32(it.Quantity)))
	}

	updated, err := store.UpdateOrderTotal(ctx, database.UpdateOrderTotalParams{
		ID:          orderID,
		TotalAmount: decimalToNumeric(total),
	})
	if err != nil {
		return nil, fmt.Errorf("update order total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderResult{Order: updated, Items: items}, nil
}

// RecordPayment appends a payment to a SERVED order's ledger and settles
// the order to PAID once total payments reach the order total. The row
// lock taken before reading the status makes double settlement impossible:
// the second of two concurrent calls re-reads PAID and fails with
// ErrOrderClosed.
func (s *OrderService) RecordPayment(ctx context.Context, p *authz.Principal, orderID uuid.UUID, amount decimal.Decimal, method string) (*PaymentResult, error) {
	if !isValidPaymentMethod(method) {
		return nil, ErrInvalidPaymentMethod
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := s.guard.SameTenant(p.RestaurantID, order.RestaurantID); err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(p, permission.PaymentsCreate); err != nil {
		return nil, err
	}

	switch order.Status {
	case enum.OrderStatusServed:
		// payment window open
	case enum.OrderStatusPaid, enum.OrderStatusCancelled:
		return nil, fmt.Errorf("%w: order is %s", ErrOrderClosed, order.Status)
	default:
		return nil, fmt.Errorf("%w: order is %s", ErrOrderNotReady, order.Status)
	}

	payment, err := store.CreatePayment(ctx, database.CreatePaymentParams{
		OrderID:     orderID,
		Amount:      decimalToNumeric(amount),
		Method:      method,
		ProcessedBy: p.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	paidNumeric, err := store.SumPaymentsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("sum payments: %w", err)
	}
	totalPaid := numericToDecimal(paidNumeric)
	orderTotal := numericToDecimal(order.TotalAmount)

	result := &PaymentResult{
		Payment:   payment,
		Order:     order,
		TotalPaid: totalPaid,
	}

	// Settlement: the PAID edge is taken here, not by TransitionOrder.
	// The permission gate was already satisfied by payments.create.
	if totalPaid.GreaterThanOrEqual(orderTotal) {
		settled, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:         orderID,
			Status:     enum.OrderStatusPaid,
			FromStatus: enum.OrderStatusServed,
		})
		if err != nil {
			return nil, fmt.Errorf("settle order: %w", err)
		}
		result.Order = settled
		result.Settled = true
		result.Surplus = totalPaid.Sub(orderTotal)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	if result.Settled && s.notify != nil {
		s.notify.NotifyOrder(result.Order.RestaurantID, EventOrderStatusChanged, result.Order)
	}

	return result, nil
}

// --- Helpers ---

func isValidPaymentMethod(m string) bool {
	switch m {
	case enum.PaymentMethodCash:
		return true
	}
	return false
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
