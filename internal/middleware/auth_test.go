package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gourmet-pos/api/internal/auth"
	"github.com/gourmet-pos/api/internal/database"
	"github.com/gourmet-pos/api/internal/middleware"
	"github.com/gourmet-pos/api/internal/permission"
)

const testSecret = "test-secret"

type mockRoleStore struct {
	getRoleByIDFunc func(ctx context.Context, id uuid.UUID) (database.Role, error)
}

func (m *mockRoleStore) GetRoleByID(ctx context.Context, id uuid.UUID) (database.Role, error) {
	return m.getRoleByIDFunc(ctx, id)
}

func roleWithGrid(t *testing.T, restaurantID uuid.UUID, grid permission.Grid) database.Role {
	t.Helper()
	raw, err := json.Marshal(grid)
	if err != nil {
		t.Fatalf("marshal grid: %v", err)
	}
	return database.Role{
		ID:           uuid.New(),
		RestaurantID: restaurantID,
		Name:         "Waiter",
		Permissions:  raw,
	}
}

func TestAuthenticate_ValidToken(t *testing.T) {
	userID := uuid.New()
	restaurantID := uuid.New()
	roleID := uuid.New()
	token, _ := auth.GenerateToken(testSecret, userID, restaurantID, roleID)

	store := &mockRoleStore{
		getRoleByIDFunc: func(ctx context.Context, id uuid.UUID) (database.Role, error) {
			if id != roleID {
				t.Errorf("role ID: got %v, want %v", id, roleID)
			}
			role := roleWithGrid(t, restaurantID, permission.Grid{
				Orders: permission.ActionSet{Create: true, Read: true},
			})
			role.ID = roleID
			return role, nil
		},
	}

	handler := middleware.Authenticate(testSecret, store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := middleware.PrincipalFromContext(r.Context())
		if p == nil {
			t.Fatal("expected principal in context")
		}
		if p.UserID != userID {
			t.Errorf("user ID: got %v, want %v", p.UserID, userID)
		}
		if p.Grid == nil {
			t.Fatal("expected grid to be resolved")
		}
		if !p.Grid.Allows(permission.OrdersCreate) {
			t.Error("expected orders.create to be granted")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestAuthenticate_MissingToken(t *testing.T) {
	store := &mockRoleStore{
		getRoleByIDFunc: func(ctx context.Context, id uuid.UUID) (database.Role, error) {
			t.Fatal("store should not be called")
			return database.Role{}, nil
		},
	}

	handler := middleware.Authenticate(testSecret, store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	store := &mockRoleStore{
		getRoleByIDFunc: func(ctx context.Context, id uuid.UUID) (database.Role, error) {
			return database.Role{}, nil
		},
	}

	handler := middleware.Authenticate(testSecret, store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthenticate_RoleLookupFailureDeniesWithoutBlockingAuth(t *testing.T) {
	token, _ := auth.GenerateToken(testSecret, uuid.New(), uuid.New(), uuid.New())

	store := &mockRoleStore{
		getRoleByIDFunc: func(ctx context.Context, id uuid.UUID) (database.Role, error) {
			return database.Role{}, pgx.ErrNoRows
		},
	}

	handler := middleware.Authenticate(testSecret, store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := middleware.PrincipalFromContext(r.Context())
		if p == nil {
			t.Fatal("expected principal in context")
		}
		// No grid means every permission check downstream denies.
		if p.Grid != nil {
			t.Error("expected nil grid when role cannot be resolved")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestAuthenticate_ForeignRoleYieldsNilGrid(t *testing.T) {
	restaurantID := uuid.New()
	roleID := uuid.New()
	token, _ := auth.GenerateToken(testSecret, uuid.New(), restaurantID, roleID)

	store := &mockRoleStore{
		getRoleByIDFunc: func(ctx context.Context, id uuid.UUID) (database.Role, error) {
			// Role exists but belongs to another restaurant.
			role := roleWithGrid(t, uuid.New(), permission.FullAccess())
			role.ID = roleID
			return role, nil
		},
	}

	handler := middleware.Authenticate(testSecret, store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := middleware.PrincipalFromContext(r.Context())
		if p == nil {
			t.Fatal("expected principal in context")
		}
		if p.Grid != nil {
			t.Error("expected nil grid for a foreign role")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestAuthenticate_MalformedGridYieldsNilGrid(t *testing.T) {
	restaurantID := uuid.New()
	roleID := uuid.New()
	token, _ := auth.GenerateToken(testSecret, uuid.New(), restaurantID, roleID)

	store := &mockRoleStore{
		getRoleByIDFunc: func(ctx context.Context, id uuid.UUID) (database.Role, error) {
			return database.Role{
				ID:           roleID,
				RestaurantID: restaurantID,
				Name:         "Broken",
				Permissions:  []byte(`{"reservations": {"read": true}}`),
			}, nil
		},
	}

	handler := middleware.Authenticate(testSecret, store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := middleware.PrincipalFromContext(r.Context())
		if p == nil {
			t.Fatal("expected principal in context")
		}
		if p.Grid != nil {
			t.Error("expected nil grid for a malformed permissions document")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}
