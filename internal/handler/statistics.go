package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gourmet-pos/api/internal/authz"
	"github.com/gourmet-pos/api/internal/database"
	"github.com/gourmet-pos/api/internal/permission"
)

// StatisticsStore defines the database methods needed by the statistics
// handler. Satisfied by *database.Queries.
type StatisticsStore interface {
	GetOrderStats(ctx context.Context, restaurantID uuid.UUID) (database.OrderStatsRow, error)
}

// StatisticsHandler serves the revenue summary. Statistics is a read-only
// resource; there is nothing to create, update or delete here.
type StatisticsHandler struct {
	store StatisticsStore
	authz *authz.Evaluator
}

// NewStatisticsHandler creates a new StatisticsHandler.
func NewStatisticsHandler(store StatisticsStore, ev *authz.Evaluator) *StatisticsHandler {
	return &StatisticsHandler{store: store, authz: ev}
}

// RegisterRoutes registers statistics endpoints on the given Chi router.
func (h *StatisticsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Summary)
}

type statisticsResponse struct {
	PaidOrderCount int64  `json:"paid_order_count"`
	Revenue        string `json:"revenue"`
}

// Summary handles GET /statistics.
func (h *StatisticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.StatisticsRead); err != nil {
		respondAuthzError(w, err)
		return
	}

	stats, err := h.store.GetOrderStats(r.Context(), p.RestaurantID)
	if err != nil {
		log.Printf("ERROR: get order stats: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, statisticsResponse{
		PaidOrderCount: stats.OrderCount,
		Revenue:        numericToString(stats.Revenue),
	})
}
