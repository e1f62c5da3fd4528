package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gourmet-pos/api/internal/authz"
	"github.com/gourmet-pos/api/internal/config"
	"github.com/gourmet-pos/api/internal/database"
	"github.com/gourmet-pos/api/internal/handler"
	mw "github.com/gourmet-pos/api/internal/middleware"
	"github.com/gourmet-pos/api/internal/service"
	"github.com/gourmet-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Every authenticated route carries the caller's principal; permission
// and tenancy checks live in the handlers and services behind it.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	ev := authz.NewEvaluator()
	guard := authz.NewGuard()

	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newOrderStore, ev, guard, ws.NewOrderNotifier(hub))

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret, queries))

		roleHandler := handler.NewRoleHandler(queries, ev)
		r.Route("/roles", roleHandler.RegisterRoutes)

		userHandler := handler.NewUserHandler(queries, ev, guard)
		r.Route("/users", userHandler.RegisterRoutes)

		tableHandler := handler.NewTableHandler(queries, ev)
		r.Route("/tables", tableHandler.RegisterRoutes)

		menuHandler := handler.NewMenuHandler(queries, ev)
		r.Route("/menus", menuHandler.RegisterRoutes)

		orderHandler := handler.NewOrderHandler(orderService, queries, ev, guard)
		r.Route("/orders", func(r chi.Router) {
			orderHandler.RegisterRoutes(r)

			// Payments (nested under orders)
			paymentHandler := handler.NewPaymentHandler(orderService, queries, ev, guard)
			r.Route("/{id}/payments", paymentHandler.RegisterRoutes)
		})

		statisticsHandler := handler.NewStatisticsHandler(queries, ev)
		r.Route("/statistics", statisticsHandler.RegisterRoutes)
	})

	return r
}
