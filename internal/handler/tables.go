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

	"github.com/gourmet-pos/api/internal/authz"
	"github.com/gourmet-pos/api/internal/database"
	"github.com/gourmet-pos/api/internal/enum"
	"github.com/gourmet-pos/api/internal/permission"
)

// TableStore defines the database methods needed by table handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TableStore interface {
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	GetTable(ctx context.Context, arg database.GetTableParams) (database.Table, error)
	ListTables(ctx context.Context, arg database.ListTablesParams) ([]database.Table, error)
	CountTables(ctx context.Context, restaurantID uuid.UUID) (int64, error)
	UpdateTable(ctx context.Context, arg database.UpdateTableParams) (database.Table, error)
	DeleteTable(ctx context.Context, arg database.DeleteTableParams) (uuid.UUID, error)
}

// TableHandler handles dining table endpoints.
type TableHandler struct {
	store TableStore
	authz *authz.Evaluator
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(store TableStore, ev *authz.Evaluator) *TableHandler {
	return &TableHandler{store: store, authz: ev}
}

// RegisterRoutes registers table endpoints on the given Chi router.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type tableRequest struct {
	Number   string `json:"number"`
	Capacity int32  `json:"capacity"`
	Status   string `json:"status"`
}

type tableResponse struct {
	ID        uuid.UUID `json:"id"`
	Number    string    `json:"number"`
	Capacity  int32     `json:"capacity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type tableListResponse struct {
	Tables []tableResponse `json:"tables"`
	Meta   pageMeta        `json:"meta"`
}

// --- Handlers ---

// Create handles POST /tables.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.TablesCreate); err != nil {
		respondAuthzError(w, err)
		return
	}

	req, ok := decodeTableRequest(w, r)
	if !ok {
		return
	}

	table, err := h.store.CreateTable(r.Context(), database.CreateTableParams{
		RestaurantID: p.RestaurantID,
		Number:       req.Number,
		Capacity:     req.Capacity,
		Status:       req.Status,
	})
	if err != nil {
		log.Printf("ERROR: create table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbTableToResponse(table))
}

// List handles GET /tables.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.TablesRead); err != nil {
		respondAuthzError(w, err)
		return
	}

	page, limit := parsePage(r)

	tables, err := h.store.ListTables(r.Context(), database.ListTablesParams{
		RestaurantID: p.RestaurantID,
		Limit:        int32(limit),
		Offset:       int32((page - 1) * limit),
	})
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	total, err := h.store.CountTables(r.Context(), p.RestaurantID)
	if err != nil {
		log.Printf("ERROR: count tables: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = dbTableToResponse(t)
	}
	writeJSON(w, http.StatusOK, tableListResponse{Tables: resp, Meta: newPageMeta(total, page, limit)})
}

// Get handles GET /tables/{id}.
func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.TablesRead); err != nil {
		respondAuthzError(w, err)
		return
	}

	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	table, err := h.store.GetTable(r.Context(), database.GetTableParams{ID: tableID, RestaurantID: p.RestaurantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Printf("ERROR: get table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbTableToResponse(table))
}

// Update handles PUT /tables/{id}.
func (h *TableHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.TablesUpdate); err != nil {
		respondAuthzError(w, err)
		return
	}

	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	req, ok := decodeTableRequest(w, r)
	if !ok {
		return
	}

	table, err := h.store.UpdateTable(r.Context(), database.UpdateTableParams{
		ID:           tableID,
		RestaurantID: p.RestaurantID,
		Number:       req.Number,
		Capacity:     req.Capacity,
		Status:       req.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Printf("ERROR: update table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbTableToResponse(table))
}

// Delete handles DELETE /tables/{id}.
func (h *TableHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(w, r)
	if p == nil {
		return
	}
	if err := h.authz.Authorize(p, permission.TablesDelete); err != nil {
		respondAuthzError(w, err)
		return
	}

	tableID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	if _, err := h.store.DeleteTable(r.Context(), database.DeleteTableParams{ID: tableID, RestaurantID: p.RestaurantID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		log.Printf("ERROR: delete table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func decodeTableRequest(w http.ResponseWriter, r *http.Request) (tableRequest, bool) {
	var req tableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return req, false
	}
	if req.Number == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "number is required"})
		return req, false
	}
	if req.Capacity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "capacity must be > 0"})
		return req, false
	}
	if req.Status == "" {
		req.Status = enum.TableStatusAvailable
	}
	if !isValidTableStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return req, false
	}
	return req, true
}

func isValidTableStatus(s string) bool {
	switch s {
	case enum.TableStatusAvailable, enum.TableStatusOccupied, enum.TableStatusReserved:
		return true
	}
	return false
}

func dbTableToResponse(t database.Table) tableResponse {
	return tableResponse{
		ID:        t.ID,
		Number:    t.Number,
		Capacity:  t.Capacity,
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
