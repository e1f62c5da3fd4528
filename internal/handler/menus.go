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
	"github.com/gourmet-pos/api/internal/permission"
)

// MenuStore defines the database methods needed by menu and dish handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	CreateMenu(ctx context.Context, arg database.CreateMenuParams) (database.Menu, error)
	GetMenu(ctx context.Context, arg database.GetMenuParams) (database.Menu, error)
	ListMenus(ctx context.Context, restaurantID uuid.UUID) ([]database.Menu, error)
	UpdateMenu(ctx context.Context, arg database.UpdateMenuParams) (database.Menu, error)
	DeleteMenu(ctx context.Context, arg database.DeleteMenuParams) (uuid.UUID, error)
	CreateDish(ctx context.Context, arg database.CreateDishParams) (database.Dish, error)
	ListDishes(ctx context.Context, arg database.ListDishesParams) ([]database.Dish, error)
	CountDishes(ctx context.Context, arg database.CountDishesParams) (int64, error)
	UpdateDish(ctx context.Context, arg database.UpdateDishParams) (database.Dish, error)
	DeleteDish(ctx context.Context, arg database.DeleteDishParams) (uuid.UUID, error)
}

// MenuHandler handles menu and dish endpoints.
type MenuHandler struct {
	store MenuStore
	authz *authz.Evaluator
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore, ev *authz.Evaluator) *MenuHandler {
	return &MenuHandler{store: store, authz: ev}
}

// RegisterRoutes registers menu and dish endpoints on the given Chi router.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/dishes", h.CreateDish)
	r.Get("/{id}/dishes", h.ListDishes)
	r.Put("/{id}/dishes/{dishID}", h.UpdateDish)
	r.Delete("/{id}/dishes/{dishID}", h.DeleteDish)
}

// --- Request / Response types ---

type menuRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

type menuResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type dishRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Category    string `json:"category"`
	IsAvailable *bool  `json:"is_available"`
}

type dishResponse struct {
	ID          uuid.UUID `json:"id"`
	MenuID      uuid.UUID `json:"menu_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Price       string    `json:"price"`
	Category    string    `json:"category"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type dishListResponse struct {
	Dishes []dishResponse `json:"dishes"`
	Meta   pageMeta       `json:"meta"`
}

// --- Menu handlers ---

// Create handles POST /menus.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.MenuCreate); err != nil {
		respondAuthzError(w, err)
		return
	}

	var req menuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	menu, err := h.store.CreateMenu(r.Context(), database.CreateMenuParams{
		RestaurantID: p.RestaurantID,
		Name:         req.Name,
		Description:  textOrNull(req.Description),
		IsActive:     isActive,
	})
	if err != nil {
		log.Printf("ERROR: create menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbMenuToResponse(menu))
}

// List handles GET /menus.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.MenuRead); err != nil {
		respondAuthzError(w, err)
		return
	}

	menus, err := h.store.ListMenus(r.Context(), p.RestaurantID)
	if err != nil {
		log.Printf("ERROR: list menus: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuResponse, len(menus))
	for i, m := range menus {
		resp[i] = dbMenuToResponse(m)
	}
	writeJSON(w, http.StatusOK, map[string][]menuResponse{"menus": resp})
}

// Get handles GET /menus/{id}.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.MenuRead); err != nil {
		respondAuthzError(w, err)
		return
	}

	menuID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu ID"})
		return
	}

	menu, err := h.store.GetMenu(r.Context(), database.GetMenuParams{ID: menuID, RestaurantID: p.RestaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu not found"})
			return
		}
		log.Printf("ERROR: get menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbMenuToResponse(menu))
}

// Update handles PUT /menus/{id}.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.MenuUpdate); err != nil {
		respondAuthzError(w, err)
		return
	}

	menuID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu ID"})
		return
	}

	var req menuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	menu, err := h.store.UpdateMenu(r.Context(), database.UpdateMenuParams{
		ID:           menuID,
		RestaurantID: p.RestaurantID,
		Name:         req.Name,
		Description:  textOrNull(req.Description),
		IsActive:     isActive,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu not found"})
			return
		}
		log.Printf("ERROR: update menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbMenuToResponse(menu))
}

// Delete handles DELETE /menus/{id}.
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.MenuDelete); err != nil {
		respondAuthzError(w, err)
		return
	}

	menuID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu ID"})
		return
	}

	if _, err := h.store.DeleteMenu(r.Context(), database.DeleteMenuParams{ID: menuID, RestaurantID: p.RestaurantID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu not found"})
			return
		}
		log.Printf("ERROR: delete menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Dish handlers ---

// CreateDish handles POST /menus/{id}/dishes.
func (h *MenuHandler) CreateDish(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.MenuCreate); err != nil {
		respondAuthzError(w, err)
		return
	}

	menuID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu ID"})
		return
	}

	// Verify the menu belongs to the caller's restaurant before writing.
	if _, err := h.store.GetMenu(r.Context(), database.GetMenuParams{ID: menuID, RestaurantID: p.RestaurantID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu not found"})
			return
		}
		log.Printf("ERROR: get menu for dish: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	req, price, ok := decodeDishRequest(w, r)
	if !ok {
		return
	}

	isAvailable := true
	if req.IsAvailable != nil {
		isAvailable = *req.IsAvailable
	}

	dish, err := h.store.CreateDish(r.Context(), database.CreateDishParams{
		MenuID:      menuID,
		Name:        req.Name,
		Description: textOrNull(req.Description),
		Price:       price,
		Category:    req.Category,
		IsAvailable: isAvailable,
	})
	if err != nil {
		log.Printf("ERROR: create dish: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbDishToResponse(dish))
}

// ListDishes handles GET /menus/{id}/dishes.
func (h *MenuHandler) ListDishes(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.MenuRead); err != nil {
		respondAuthzError(w, err)
		return
	}

	menuID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu ID"})
		return
	}

	page, limit := parsePage(r)

	dishes, err := h.store.ListDishes(r.Context(), database.ListDishesParams{
		MenuID:       menuID,
		RestaurantID: p.RestaurantID,
		Limit:        int32(limit),
		Offset:       int32((page - 1) * limit),
	})
	if err != nil {
		log.Printf("ERROR: list dishes: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	total, err := h.store.CountDishes(r.Context(), database.CountDishesParams{MenuID: menuID, RestaurantID: p.RestaurantID})
	if err != nil {
		log.Printf("ERROR: count dishes: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]dishResponse, len(dishes))
	for i, d := range dishes {
		resp[i] = dbDishToResponse(d)
	}
	writeJSON(w, http.StatusOK, dishListResponse{Dishes: resp, Meta: newPageMeta(total, page, limit)})
}

// UpdateDish handles PUT /menus/{id}/dishes/{dishID}.
func (h *MenuHandler) UpdateDish(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.MenuUpdate); err != nil {
		respondAuthzError(w, err)
		return
	}

	dishID, err := uuid.Parse(chi.URLParam(r, "dishID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dish ID"})
		return
	}

	req, price, ok := decodeDishRequest(w, r)
	if !ok {
		return
	}

	isAvailable := true
	if req.IsAvailable != nil {
		isAvailable = *req.IsAvailable
	}

	dish, err := h.store.UpdateDish(r.Context(), database.UpdateDishParams{
		ID:           dishID,
		RestaurantID: p.RestaurantID,
		Name:         req.Name,
		Description:  textOrNull(req.Description),
		Price:        price,
		Category:     req.Category,
		IsAvailable:  isAvailable,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "dish not found"})
			return
		}
		log.Printf("ERROR: update dish: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbDishToResponse(dish))
}

// DeleteDish handles DELETE /menus/{id}/dishes/{dishID}.
func (h *MenuHandler) DeleteDish(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.MenuDelete); err != nil {
		respondAuthzError(w, err)
		return
	}

	dishID, err := uuid.Parse(chi.URLParam(r, "dishID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dish ID"})
		return
	}

	if _, err := h.store.DeleteDish(r.Context(), database.DeleteDishParams{ID: dishID, RestaurantID: p.RestaurantID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "dish not found"})
			return
		}
		log.Printf("ERROR: delete dish: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func decodeDishRequest(w http.ResponseWriter, r *http.Request) (dishRequest, pgtype.Numeric, bool) {
	var req dishRequest
	var price pgtype.Numeric
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return req, price, false
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return req, price, false
	}
	d, err := decimal.NewFromString(req.Price)
	if err != nil || d.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be a non-negative number"})
		return req, price, false
	}
	if err := price.Scan(d.StringFixed(2)); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be a non-negative number"})
		return req, price, false
	}
	return req, price, true
}

func dbMenuToResponse(m database.Menu) menuResponse {
	resp := menuResponse{
		ID:        m.ID,
		Name:      m.Name,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Description.Valid {
		resp.Description = &m.Description.String
	}
	return resp
}

func dbDishToResponse(d database.Dish) dishResponse {
	resp := dishResponse{
		ID:          d.ID,
		MenuID:      d.MenuID,
		Name:        d.Name,
		Price:       numericToString(d.Price),
		Category:    d.Category,
		IsAvailable: d.IsAvailable,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.Description.Valid {
		resp.Description = &d.Description.String
	}
	return resp
}
