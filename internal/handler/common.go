package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gourmet-pos/api/internal/authz"
	"github.com/gourmet-pos/api/internal/middleware"
	"github.com/gourmet-pos/api/internal/permission"
)

// parsePage reads page/limit query params. Defaults are page 1, limit 10;
// limit is capped at 100. Out-of-range values fall back to the defaults.
func parsePage(r *http.Request) (page, limit int) {
	page, limit = 1, 10
	if s := r.URL.Query().Get("page"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			page = v
		}
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

// pageMeta is the pagination envelope carried by every list response.
type pageMeta struct {
	Total           int64 `json:"total"`
	Page            int   `json:"page"`
	Limit           int   `json:"limit"`
	TotalPages      int   `json:"totalPages"`
	HasNextPage     bool  `json:"hasNextPage"`
	HasPreviousPage bool  `json:"hasPreviousPage"`
}

func newPageMeta(total int64, page, limit int) pageMeta {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return pageMeta{
		Total:           total,
		Page:            page,
		Limit:           limit,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1 && total > 0,
	}
}

// requirePrincipal pulls the authenticated principal from the request,
// answering 401 itself when there is none.
func requirePrincipal(w http.ResponseWriter, r *http.Request) *authz.Principal {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return nil
	}
	return p
}

// respondAuthzError answers an evaluator or guard failure. Permission
// denials and cross-tenant hits collapse into the same forbidden response
// so callers cannot probe other restaurants; the distinction is only
// logged. An invalid permission value is a misconfigured call site and
// surfaces as a 500.
func respondAuthzError(w http.ResponseWriter, err error) {
	if errors.Is(err, permission.ErrInvalidSpec) {
		log.Printf("ERROR: permission misconfiguration: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	log.Printf("authz: %v", err)
	writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
}

// respondForeignAsMissing masks a guard failure on a read as a missing
// resource. A 403 here would confirm the id exists in another restaurant;
// answering with the same 404 as a genuine miss closes that probe.
func respondForeignAsMissing(w http.ResponseWriter, err error, resource string) {
	log.Printf("authz: %v", err)
	writeJSON(w, http.StatusNotFound, map[string]string{"error": resource + " not found"})
}
