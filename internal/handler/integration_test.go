//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/gourmet-pos/api/internal/config"
	"github.com/gourmet-pos/api/internal/database"
	"github.com/gourmet-pos/api/internal/permission"
	"github.com/gourmet-pos/api/internal/router"
	"github.com/gourmet-pos/api/internal/ws"
)

// TestIntegrationFlow exercises the full API lifecycle against a real
// PostgreSQL database: login, table and menu setup, order creation with
// price snapshotting, the status transitions, split payment with
// auto-settlement, and the revenue summary — all through the wired router.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	// Run migrations
	runMigrations(t, connStr)

	// Create pgxpool connection
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	// Initialize dependencies
	cfg := &config.Config{
		Port:        "8081",
		DatabaseURL: connStr,
		JWTSecret:   "integration-test-secret",
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	// NOTE: hub.Run() goroutine leaks on test exit — Hub has no shutdown
	// mechanism. Acceptable for tests.
	go hub.Run()

	// Build router
	r := router.New(cfg, queries, pool, hub)

	// Create HTTP test server
	server := httptest.NewServer(r)
	defer server.Close()

	// --- 1. Bootstrap the tenant (manual DB inserts - no signup endpoint) ---
	restaurantID := createRestaurant(t, ctx, pool)
	roleID := createAdminRole(t, ctx, pool, restaurantID)
	adminID := createAdminUser(t, ctx, pool, restaurantID, roleID)

	// --- 2. Login as the administrator ---
	token := login(t, server, "admin@test.com", "password123")

	// --- 3. Create a table through the API ---
	tableResp := httpPostJSON(t, server, "/tables", map[string]interface{}{
		"number":   "T1",
		"capacity": 4,
	}, token)
	tableID := uuid.MustParse(tableResp["id"].(string))

	// --- 4. Create a menu and a dish ---
	menuResp := httpPostJSON(t, server, "/menus", map[string]interface{}{
		"name":        "Dinner Menu",
		"description": "Evening service",
	}, token)
	menuID := uuid.MustParse(menuResp["id"].(string))

	dishResp := httpPostJSON(t, server, fmt.Sprintf("/menus/%s/dishes", menuID), map[string]interface{}{
		"name":     "Thieboudienne",
		"price":    "3500",
		"category": "Main",
	}, token)
	dishID := uuid.MustParse(dishResp["id"].(string))

	// --- 5. Create an order; the dish price must be snapshotted ---
	orderResp := httpPostJSON(t, server, "/orders", map[string]interface{}{
		"table_id": tableID.String(),
		"items": []map[string]interface{}{
			{"dish_id": dishID.String(), "quantity": 2},
		},
	}, token)
	orderID := uuid.MustParse(orderResp["id"].(string))

	// 3500 * 2 = 7000
	if got := orderResp["total_amount"].(string); got != "7000.00" {
		t.Fatalf("order total_amount: got %s, want 7000.00 (price snapshot verification failed)", got)
	}
	if got := orderResp["status"].(string); got != "PENDING" {
		t.Fatalf("new order status: got %s, want PENDING", got)
	}

	// --- 6. A dish price change must not alter the open order's total ---
	httpPutJSON(t, server, fmt.Sprintf("/menus/%s/dishes/%s", menuID, dishID), map[string]interface{}{
		"name":     "Thieboudienne",
		"price":    "9999",
		"category": "Main",
	}, token)
	afterRepriceResp := httpGetJSON(t, server, fmt.Sprintf("/orders/%s", orderID), token)
	if got := afterRepriceResp["total_amount"].(string); got != "7000.00" {
		t.Fatalf("order total after dish reprice: got %s, want 7000.00", got)
	}

	// --- 7. Walk the status machine to SERVED ---
	for _, status := range []string{"PREPARING", "READY", "SERVED"} {
		resp := httpPatchJSON(t, server, fmt.Sprintf("/orders/%s/status", orderID), map[string]interface{}{
			"status": status,
		}, token)
		if got := resp["status"].(string); got != status {
			t.Fatalf("transition: got %s, want %s", got, status)
		}
	}

	// --- 8. Partial payment must not settle the order ---
	payment1 := httpPostJSON(t, server, fmt.Sprintf("/orders/%s/payments", orderID), map[string]interface{}{
		"amount": "4000",
		"method": "CASH",
	}, token)
	if payment1["settled"].(bool) {
		t.Fatalf("order settled after partial payment of 4000 on 7000")
	}
	if got := payment1["order_status"].(string); got != "SERVED" {
		t.Fatalf("order status after partial payment: got %s, want SERVED", got)
	}

	// --- 9. Second payment overshoots; settles with surplus ---
	payment2 := httpPostJSON(t, server, fmt.Sprintf("/orders/%s/payments", orderID), map[string]interface{}{
		"amount": "3500",
		"method": "CASH",
	}, token)
	if !payment2["settled"].(bool) {
		t.Fatalf("order not settled after payments totalling 7500 on 7000")
	}
	if got := payment2["order_status"].(string); got != "PAID" {
		t.Fatalf("order status after settlement: got %s, want PAID", got)
	}
	if got := payment2["surplus"].(string); got != "500.00" {
		t.Fatalf("surplus: got %s, want 500.00", got)
	}

	// --- 10. The settled order is closed to further payments ---
	closedCode, _ := httpPostJSONStatus(t, server, fmt.Sprintf("/orders/%s/payments", orderID), map[string]interface{}{
		"amount": "100",
		"method": "CASH",
	}, token)
	if closedCode != http.StatusConflict {
		t.Fatalf("payment on settled order: got status %d, want %d", closedCode, http.StatusConflict)
	}

	// --- 11. Revenue summary reflects the settled order ---
	stats := httpGetJSON(t, server, "/statistics", token)
	if got := stats["paid_order_count"].(float64); got != 1 {
		t.Fatalf("paid_order_count: got %v, want 1", got)
	}
	if got := stats["revenue"].(string); got != "7000.00" {
		t.Fatalf("revenue: got %s, want 7000.00", got)
	}

	t.Logf("Integration test passed: container=%s, restaurant=%s, admin=%s, table=%s, dish=%s, order=%s",
		pgContainer.GetContainerID(), restaurantID, adminID, tableID, dishID, orderID)
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("gourmet_test"),
		tcpostgres.WithUsername("gourmet"),
		tcpostgres.WithPassword("gourmet"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return pgContainer, connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	// Connect with stdlib for migrate
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Path relative to this test file's package directory. Go test sets
	// cwd to the package directory.
	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func createRestaurant(t *testing.T, ctx context.Context, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	var orgID uuid.UUID
	err := pool.QueryRow(ctx,
		`INSERT INTO organizations (name) VALUES ($1) RETURNING id`,
		"Test Group",
	).Scan(&orgID)
	if err != nil {
		t.Fatalf("create organization: %v", err)
	}

	var id uuid.UUID
	err = pool.QueryRow(ctx,
		`INSERT INTO restaurants (organization_id, name, address, phone)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		orgID, "Test Restaurant", "123 Test St", "+221770000000",
	).Scan(&id)
	if err != nil {
		t.Fatalf("create restaurant: %v", err)
	}
	return id
}

func createAdminRole(t *testing.T, ctx context.Context, pool *pgxpool.Pool, restaurantID uuid.UUID) uuid.UUID {
	t.Helper()
	grid, err := json.Marshal(permission.FullAccess())
	if err != nil {
		t.Fatalf("marshal grid: %v", err)
	}

	var id uuid.UUID
	err = pool.QueryRow(ctx,
		`INSERT INTO roles (restaurant_id, name, permissions)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		restaurantID, "Administrator", grid,
	).Scan(&id)
	if err != nil {
		t.Fatalf("create admin role: %v", err)
	}
	return id
}

func createAdminUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool, restaurantID, roleID uuid.UUID) uuid.UUID {
	t.Helper()
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	var id uuid.UUID
	err = pool.QueryRow(ctx,
		`INSERT INTO users (restaurant_id, role_id, email, password_hash, first_name, last_name)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		restaurantID, roleID, "admin@test.com", string(hashedPassword), "Test", "Admin",
	).Scan(&id)
	if err != nil {
		t.Fatalf("create admin user: %v", err)
	}
	return id
}

func login(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	resp := httpPostJSON(t, server, "/auth/login", map[string]interface{}{
		"email":    email,
		"password": password,
	}, "")
	token, ok := resp["access_token"].(string)
	if !ok || token == "" {
		t.Fatalf("login failed: no access_token in response: %+v", resp)
	}
	return token
}

// --- HTTP helpers ---

func httpPostJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	code, result := httpPostJSONStatus(t, server, path, body, token)
	if code < 200 || code >= 300 {
		t.Fatalf("POST %s: status %d, body: %v", path, code, result)
	}
	return result
}

func httpPostJSONStatus(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) (int, map[string]interface{}) {
	t.Helper()
	return httpDoJSON(t, server, "POST", path, body, token)
}

func httpPutJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	code, result := httpDoJSON(t, server, "PUT", path, body, token)
	if code < 200 || code >= 300 {
		t.Fatalf("PUT %s: status %d, body: %v", path, code, result)
	}
	return result
}

func httpPatchJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	code, result := httpDoJSON(t, server, "PATCH", path, body, token)
	if code < 200 || code >= 300 {
		t.Fatalf("PATCH %s: status %d, body: %v", path, code, result)
	}
	return result
}

func httpGetJSON(t *testing.T, server *httptest.Server, path string, token string) map[string]interface{} {
	t.Helper()
	code, result := httpDoJSON(t, server, "GET", path, nil, token)
	if code < 200 || code >= 300 {
		t.Fatalf("GET %s: status %d, body: %v", path, code, result)
	}
	return result
}

func httpDoJSON(t *testing.T, server *httptest.Server, method, path string, body map[string]interface{}, token string) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return resp.StatusCode, result
}
