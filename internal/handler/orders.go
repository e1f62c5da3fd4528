package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/gourmet-pos/api/internal/authz"
	"github.com/gourmet-pos/api/internal/database"
	"github.com/gourmet-pos/api/internal/enum"
	"github.com/gourmet-pos/api/internal/permission"
	"github.com/gourmet-pos/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, p *authz.Principal, req service.CreateOrderRequest) (*service.OrderResult, error)
	TransitionOrder(ctx context.Context, p *authz.Principal, orderID uuid.UUID, target string) (*database.Order, error)
	AddItems(ctx context.Context, p *authz.Principal, orderID uuid.UUID, items []service.CreateOrderItemRequest) (*service.OrderResult, error)
	RemoveItem(ctx context.Context, p *authz.Principal, orderID, itemID uuid.UUID) (*service.OrderResult, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	CountOrders(ctx context.Context, arg database.CountOrdersParams) (int64, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
	authz *authz.Evaluator
	guard *authz.Guard
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore, ev *authz.Evaluator, guard *authz.Guard) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, authz: ev, guard: guard}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/items", h.AddItems)
	r.Delete("/{id}/items/{itemID}", h.RemoveItem)
}

// --- Request / Response types ---

type createOrderRequest struct {
	TableID string                   `json:"table_id"`
	Items   []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	DishID   string `json:"dish_id"`
	Quantity int32  `json:"quantity"`
}

type orderResponse struct {
	ID          uuid.UUID           `json:"id"`
	TableID     uuid.UUID           `json:"table_id"`
	Status      string              `json:"status"`
	TotalAmount string              `json:"total_amount"`
	CreatedBy   uuid.UUID           `json:"created_by"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Items       []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID        uuid.UUID `json:"id"`
	DishID    uuid.UUID `json:"dish_id"`
	Quantity  int32     `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
}

// orderDetailResponse extends orderResponse with payments for the GET
// detail endpoint.
type orderDetailResponse struct {
	orderResponse
	Payments []paymentResponse `json:"payments"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Meta   pageMeta        `json:"meta"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
		return
	}

	items, ok := parseOrderItems(w, req.Items)
	if !ok {
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), p, service.CreateOrderRequest{
		TableID: tableID,
		Items:   items,
	})
	if err != nil {
		respondOrderError(w, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, orderResultToResponse(result))
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.OrdersRead); err != nil {
		respondAuthzError(w, err)
		return
	}

	page, limit := parsePage(r)

	var status pgtype.Text
	if s := r.URL.Query().Get("status"); s != "" {
		if !isValidOrderStatus(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
			return
		}
		status = pgtype.Text{String: s, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		RestaurantID: p.RestaurantID,
		Status:       status,
		Limit:        int32(limit),
		Offset:       int32((page - 1) * limit),
	})
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	total, err := h.store.CountOrders(r.Context(), database.CountOrdersParams{
		RestaurantID: p.RestaurantID,
		Status:       status,
	})
	if err != nil {
		log.Printf("ERROR: count orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Meta: newPageMeta(total, page, limit)})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.OrdersRead); err != nil {
		respondAuthzError(w, err)
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if err := h.guard.SameTenant(p.RestaurantID, order.RestaurantID); err != nil {
		respondForeignAsMissing(w, err, "order")
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	payments, err := h.store.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	orderResp := dbOrderToResponse(order)
	orderResp.Items = make([]orderItemResponse, len(items))
	for i, it := range items {
		orderResp.Items[i] = dbOrderItemToResponse(it)
	}
	paymentResps := make([]paymentResponse, len(payments))
	for i, pay := range payments {
		paymentResps[i] = dbPaymentToResponse(pay)
	}

	writeJSON(w, http.StatusOK, orderDetailResponse{
		orderResponse: orderResp,
		Payments:      paymentResps,
	})
}

// UpdateStatus handles PATCH /orders/{id}/status. The service enforces the
// transition table, the per-edge permission, and the tenant boundary.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}
	if !isValidOrderStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	order, err := h.svc.TransitionOrder(r.Context(), p, orderID, req.Status)
	if err != nil {
		respondOrderError(w, "update order status", err)
		return
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(*order))
}

// AddItems handles POST /orders/{id}/items.
func (h *OrderHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req struct {
		Items []createOrderItemRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	items, ok := parseOrderItems(w, req.Items)
	if !ok {
		return
	}

	result, err := h.svc.AddItems(r.Context(), p, orderID, items)
	if err != nil {
		respondOrderError(w, "add order items", err)
		return
	}

	writeJSON(w, http.StatusOK, orderResultToResponse(result))
}

// RemoveItem handles DELETE /orders/{id}/items/{itemID}.
func (h *OrderHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	result, err := h.svc.RemoveItem(r.Context(), p, orderID, itemID)
	if err != nil {
		respondOrderError(w, "remove order item", err)
		return
	}

	writeJSON(w, http.StatusOK, orderResultToResponse(result))
}

// --- Helpers ---

func parseOrderItems(w http.ResponseWriter, reqs []createOrderItemRequest) ([]service.CreateOrderItemRequest, bool) {
	items := make([]service.CreateOrderItemRequest, len(reqs))
	for i, item := range reqs {
		dishID, err := uuid.Parse(item.DishID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dish_id"})
			return nil, false
		}
		items[i] = service.CreateOrderItemRequest{DishID: dishID, Quantity: item.Quantity}
	}
	return items, true
}

// respondOrderError maps service errors to HTTP statuses: authorization
// failures collapse to forbidden, lifecycle conflicts answer 409 with the
// current-state explanation, validation failures answer 400.
func respondOrderError(w http.ResponseWriter, op string, err error) {
	switch {
	case authz.IsForbidden(err) || errors.Is(err, permission.ErrInvalidSpec):
		respondAuthzError(w, err)
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrItemNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrOrderLocked),
		errors.Is(err, service.ErrOrderNotReady),
		errors.Is(err, service.ErrOrderClosed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrTableNotFound),
		errors.Is(err, service.ErrDishNotFound),
		errors.Is(err, service.ErrDishUnavailable),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidPaymentMethod):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func isValidOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending,
		enum.OrderStatusPreparing,
		enum.OrderStatusReady,
		enum.OrderStatusServed,
		enum.OrderStatusPaid,
		enum.OrderStatusCancelled:
		return true
	}
	return false
}

func orderResultToResponse(result *service.OrderResult) orderResponse {
	resp := dbOrderToResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, it := range result.Items {
		resp.Items[i] = dbOrderItemToResponse(it)
	}
	return resp
}

func dbOrderToResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:          o.ID,
		TableID:     o.TableID,
		Status:      o.Status,
		TotalAmount: numericToString(o.TotalAmount),
		CreatedBy:   o.CreatedBy,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
}

func dbOrderItemToResponse(it database.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:        it.ID,
		DishID:    it.DishID,
		Quantity:  it.Quantity,
		UnitPrice: numericToString(it.UnitPrice),
	}
}

func numericToString(n pgtype.Numeric) string {
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
