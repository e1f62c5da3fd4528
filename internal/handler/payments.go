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
	"github.com/shopspring/decimal"

	"github.com/gourmet-pos/api/internal/authz"
	"github.com/gourmet-pos/api/internal/database"
	"github.com/gourmet-pos/api/internal/permission"
	"github.com/gourmet-pos/api/internal/service"
)

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type PaymentServicer interface {
	RecordPayment(ctx context.Context, p *authz.Principal, orderID uuid.UUID, amount decimal.Decimal, method string) (*service.PaymentResult, error)
}

// PaymentStore defines the database methods needed by payment read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type PaymentStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	svc   PaymentServicer
	store PaymentStore
	authz *authz.Evaluator
	guard *authz.Guard
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc PaymentServicer, store PaymentStore, ev *authz.Evaluator, guard *authz.Guard) *PaymentHandler {
	return &PaymentHandler{svc: svc, store: store, authz: ev, guard: guard}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Mounted under /orders/{id}.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Record)
	r.Get("/", h.List)
}

// --- Request / Response types ---

type recordPaymentRequest struct {
	Amount string `json:"amount"`
	Method string `json:"method"`
}

type paymentResponse struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"order_id"`
	Amount      string    `json:"amount"`
	Method      string    `json:"method"`
	ProcessedBy uuid.UUID `json:"processed_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// recordPaymentResponse carries the reconciled totals alongside the
// payment so the client sees settlement and any surplus immediately.
type recordPaymentResponse struct {
	Payment     paymentResponse `json:"payment"`
	OrderStatus string          `json:"order_status"`
	TotalPaid   string          `json:"total_paid"`
	Surplus     string          `json:"surplus"`
	Settled     bool            `json:"settled"`
}

// --- Handlers ---

// Record handles POST /orders/{id}/payments.
func (h *PaymentHandler) Record(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be a number"})
		return
	}

	result, err := h.svc.RecordPayment(r.Context(), p, orderID, amount, req.Method)
	if err != nil {
		respondOrderError(w, "record payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, recordPaymentResponse{
		Payment:     dbPaymentToResponse(result.Payment),
		OrderStatus: result.Order.Status,
		TotalPaid:   result.TotalPaid.StringFixed(2),
		Surplus:     result.Surplus.StringFixed(2),
		Settled:     result.Settled,
	})
}

// List handles GET /orders/{id}/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.PaymentsRead); err != nil {
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
		log.Printf("ERROR: get order for payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if err := h.guard.SameTenant(p.RestaurantID, order.RestaurantID); err != nil {
		respondForeignAsMissing(w, err, "order")
		return
	}

	payments, err := h.store.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, pay := range payments {
		resp[i] = dbPaymentToResponse(pay)
	}
	writeJSON(w, http.StatusOK, map[string][]paymentResponse{"payments": resp})
}

// --- Helpers ---

func dbPaymentToResponse(pay database.Payment) paymentResponse {
	return paymentResponse{
		ID:          pay.ID,
		OrderID:     pay.OrderID,
		Amount:      numericToString(pay.Amount),
		Method:      pay.Method,
		ProcessedBy: pay.ProcessedBy,
		CreatedAt:   pay.CreatedAt,
	}
}
