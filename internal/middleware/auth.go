package middleware

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/gourmet-pos/api/internal/auth"
	"github.com/gourmet-pos/api/internal/authz"
	"github.com/gourmet-pos/api/internal/database"
	"github.com/gourmet-pos/api/internal/permission"
)

type contextKey string

const principalKey contextKey = "principal"

// RoleStore defines the database methods needed to resolve a principal's
// permission grid. Satisfied by *database.Queries.
type RoleStore interface {
	GetRoleByID(ctx context.Context, id uuid.UUID) (database.Role, error)
}

// Authenticate validates the bearer token and resolves the caller into an
// authz.Principal, loading the role's permission grid from the database.
// A role that cannot be resolved, belongs to another restaurant, or holds
// a malformed grid yields a principal with a nil grid, which denies every
// permission check downstream.
func Authenticate(jwtSecret string, store RoleStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing authorization header"})
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid authorization format"})
				return
			}

			claims, err := auth.ValidateToken(jwtSecret, parts[1])
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
				return
			}

			p := &authz.Principal{
				UserID:       claims.UserID,
				RestaurantID: claims.RestaurantID,
				RoleID:       claims.RoleID,
				Grid:         resolveGrid(r.Context(), store, claims),
			}

			ctx := context.WithValue(r.Context(), principalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveGrid loads and parses the role's grid, returning nil on any
// failure so the caller stays authenticated but fully denied.
func resolveGrid(ctx context.Context, store RoleStore, claims *auth.Claims) *permission.Grid {
	role, err := store.GetRoleByID(ctx, claims.RoleID)
	if err != nil {
		log.Printf("ERROR: resolve role %s: %v", claims.RoleID, err)
		return nil
	}
	if role.RestaurantID != claims.RestaurantID {
		log.Printf("ERROR: role %s does not belong to restaurant %s", claims.RoleID, claims.RestaurantID)
		return nil
	}
	grid, err := permission.ParseGrid(role.Permissions)
	if err != nil {
		log.Printf("ERROR: parse grid for role %s: %v", claims.RoleID, err)
		return nil
	}
	return &grid
}

// PrincipalFromContext returns the authenticated principal, or nil when
// the request did not pass through Authenticate.
func PrincipalFromContext(ctx context.Context) *authz.Principal {
	p, _ := ctx.Value(principalKey).(*authz.Principal)
	return p
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
