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

	"github.com/gourmet-pos/api/internal/authz"
	"github.com/gourmet-pos/api/internal/database"
	"github.com/gourmet-pos/api/internal/permission"
)

// RoleStore defines the database methods needed by role handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type RoleStore interface {
	CreateRole(ctx context.Context, arg database.CreateRoleParams) (database.Role, error)
	GetRole(ctx context.Context, arg database.GetRoleParams) (database.Role, error)
	ListRoles(ctx context.Context, arg database.ListRolesParams) ([]database.Role, error)
	CountRoles(ctx context.Context, restaurantID uuid.UUID) (int64, error)
	UpdateRole(ctx context.Context, arg database.UpdateRoleParams) (database.Role, error)
	DeleteRole(ctx context.Context, arg database.DeleteRoleParams) (uuid.UUID, error)
}

// RoleHandler handles role endpoints. Role administration is gated by the
// users resource: whoever manages staff manages their roles.
type RoleHandler struct {
	store RoleStore
	authz *authz.Evaluator
}

// NewRoleHandler creates a new RoleHandler.
func NewRoleHandler(store RoleStore, ev *authz.Evaluator) *RoleHandler {
	return &RoleHandler{store: store, authz: ev}
}

// RegisterRoutes registers role endpoints on the given Chi router.
func (h *RoleHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type roleRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	IsDefault   bool            `json:"is_default"`
	Permissions json.RawMessage `json:"permissions"`
}

type roleResponse struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	IsDefault   bool            `json:"is_default"`
	Permissions permission.Grid `json:"permissions"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type roleListResponse struct {
	Roles []roleResponse `json:"roles"`
	Meta  pageMeta       `json:"meta"`
}

// --- Handlers ---

// Create handles POST /roles.
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.UsersCreate); err != nil {
		respondAuthzError(w, err)
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	// Grids are validated on the way in; a stored grid is always parseable.
	grid, err := parseGridField(req.Permissions)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	raw, err := json.Marshal(grid)
	if err != nil {
		log.Printf("ERROR: marshal grid: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	role, err := h.store.CreateRole(r.Context(), database.CreateRoleParams{
		RestaurantID: p.RestaurantID,
		Name:         req.Name,
		Description:  textOrNull(req.Description),
		IsDefault:    req.IsDefault,
		Permissions:  raw,
	})
	if err != nil {
		log.Printf("ERROR: create role: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbRoleToResponse(role))
}

// List handles GET /roles.
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.UsersRead); err != nil {
		respondAuthzError(w, err)
		return
	}

	page, limit := parsePage(r)

	roles, err := h.store.ListRoles(r.Context(), database.ListRolesParams{
		RestaurantID: p.RestaurantID,
		Limit:        int32(limit),
		Offset:       int32((page - 1) * limit),
	})
	if err != nil {
		log.Printf("ERROR: list roles: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	total, err := h.store.CountRoles(r.Context(), p.RestaurantID)
	if err != nil {
		log.Printf("ERROR: count roles: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]roleResponse, len(roles))
	for i, role := range roles {
		resp[i] = dbRoleToResponse(role)
	}
	writeJSON(w, http.StatusOK, roleListResponse{Roles: resp, Meta: newPageMeta(total, page, limit)})
}

// Get handles GET /roles/{id}.
func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.UsersRead); err != nil {
		respondAuthzError(w, err)
		return
	}

	roleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role ID"})
		return
	}

	role, err := h.store.GetRole(r.Context(), database.GetRoleParams{ID: roleID, RestaurantID: p.RestaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "role not found"})
			return
		}
		log.Printf("ERROR: get role: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbRoleToResponse(role))
}

// Update handles PUT /roles/{id}.
func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.UsersUpdate); err != nil {
		respondAuthzError(w, err)
		return
	}

	roleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role ID"})
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	grid, err := parseGridField(req.Permissions)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	raw, err := json.Marshal(grid)
	if err != nil {
		log.Printf("ERROR: marshal grid: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	role, err := h.store.UpdateRole(r.Context(), database.UpdateRoleParams{
		ID:           roleID,
		RestaurantID: p.RestaurantID,
		Name:         req.Name,
		Description:  textOrNull(req.Description),
		Permissions:  raw,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "role not found"})
			return
		}
		log.Printf("ERROR: update role: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbRoleToResponse(role))
}

// Delete handles DELETE /roles/{id}.
func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.UsersDelete); err != nil {
		respondAuthzError(w, err)
		return
	}

	roleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role ID"})
		return
	}

	if _, err := h.store.DeleteRole(r.Context(), database.DeleteRoleParams{ID: roleID, RestaurantID: p.RestaurantID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "role not found"})
			return
		}
		log.Printf("ERROR: delete role: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func parseGridField(raw json.RawMessage) (permission.Grid, error) {
	if len(raw) == 0 {
		return permission.Grid{}, errors.New("permissions is required")
	}
	return permission.ParseGrid(raw)
}

func dbRoleToResponse(role database.Role) roleResponse {
	resp := roleResponse{
		ID:        role.ID,
		Name:      role.Name,
		IsDefault: role.IsDefault,
		CreatedAt: role.CreatedAt,
		UpdatedAt: role.UpdatedAt,
	}
	if role.Description.Valid {
		resp.Description = &role.Description.String
	}
	// A grid that fails to parse here was written before validation
	// existed; render it as deny-all rather than failing the read.
	grid, err := permission.ParseGrid(role.Permissions)
	if err != nil {
		log.Printf("ERROR: stored grid for role %s: %v", role.ID, err)
	}
	resp.Permissions = grid
	return resp
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
