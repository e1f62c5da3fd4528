package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/gourmet-pos/api/internal/database"
)

// OrderNotifier bridges the order service to the hub. Notifications are
// fire-and-forget; a marshal failure is logged and dropped.
type OrderNotifier struct {
	hub *Hub
}

// NewOrderNotifier creates an OrderNotifier backed by the given hub.
func NewOrderNotifier(hub *Hub) *OrderNotifier {
	return &OrderNotifier{hub: hub}
}

type orderEventPayload struct {
	ID          uuid.UUID `json:"id"`
	TableID     uuid.UUID `json:"table_id"`
	Status      string    `json:"status"`
	TotalAmount string    `json:"total_amount"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NotifyOrder broadcasts an order event to the restaurant's room.
func (n *OrderNotifier) NotifyOrder(restaurantID uuid.UUID, event string, order database.Order) {
	payload, err := json.Marshal(orderEventPayload{
		ID:          order.ID,
		TableID:     order.TableID,
		Status:      order.Status,
		TotalAmount: amountString(order.TotalAmount),
		UpdatedAt:   order.UpdatedAt,
	})
	if err != nil {
		log.Printf("ERROR: marshal order event: %v", err)
		return
	}
	n.hub.BroadcastToRestaurant(restaurantID, Event{Type: event, Payload: payload})
}

func amountString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
