package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gourmet-pos/api/internal/auth"
	"github.com/gourmet-pos/api/internal/authz"
	"github.com/gourmet-pos/api/internal/database"
	"github.com/gourmet-pos/api/internal/enum"
	"github.com/gourmet-pos/api/internal/handler"
	"github.com/gourmet-pos/api/internal/middleware"
	"github.com/gourmet-pos/api/internal/permission"
	"github.com/gourmet-pos/api/internal/service"
)

const testSecret = "test-secret"

// --- Shared fixtures ---

type stubRoleStore struct {
	role database.Role
}

func (s *stubRoleStore) GetRoleByID(ctx context.Context, id uuid.UUID) (database.Role, error) {
	return s.role, nil
}

// newAuthed mounts routes behind the auth middleware and returns the
// handler plus a bearer token for a principal with the given grid.
func newAuthed(t *testing.T, restaurantID uuid.UUID, grid permission.Grid, mount func(chi.Router)) (http.Handler, string) {
	t.Helper()
	raw, err := json.Marshal(grid)
	if err != nil {
		t.Fatalf("marshal grid: %v", err)
	}
	roleID := uuid.New()
	store := &stubRoleStore{role: database.Role{
		ID:           roleID,
		RestaurantID: restaurantID,
		Name:         "Test",
		Permissions:  raw,
	}}

	token, err := auth.GenerateToken(testSecret, uuid.New(), restaurantID, roleID)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret, store))
		mount(r)
	})
	return r, token
}

func doJSON(handler http.Handler, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func makeNumeric(t *testing.T, val string) pgtype.Numeric {
	t.Helper()
	var n pgtype.Numeric
	if err := n.Scan(val); err != nil {
		t.Fatalf("scan numeric: %v", err)
	}
	return n
}

// --- Mock OrderServicer ---

type mockOrderService struct {
	createFn     func(ctx context.Context, p *authz.Principal, req service.CreateOrderRequest) (*service.OrderResult, error)
	transitionFn func(ctx context.Context, p *authz.Principal, orderID uuid.UUID, target string) (*database.Order, error)
	addItemsFn   func(ctx context.Context, p *authz.Principal, orderID uuid.UUID, items []service.CreateOrderItemRequest) (*service.OrderResult, error)
	removeItemFn func(ctx context.Context, p *authz.Principal, orderID, itemID uuid.UUID) (*service.OrderResult, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, p *authz.Principal, req service.CreateOrderRequest) (*service.OrderResult, error) {
	return m.createFn(ctx, p, req)
}

func (m *mockOrderService) TransitionOrder(ctx context.Context, p *authz.Principal, orderID uuid.UUID, target string) (*database.Order, error) {
	return m.transitionFn(ctx, p, orderID, target)
}

func (m *mockOrderService) AddItems(ctx context.Context, p *authz.Principal, orderID uuid.UUID, items []service.CreateOrderItemRequest) (*service.OrderResult, error) {
	return m.addItemsFn(ctx, p, orderID, items)
}

func (m *mockOrderService) RemoveItem(ctx context.Context, p *authz.Principal, orderID, itemID uuid.UUID) (*service.OrderResult, error) {
	return m.removeItemFn(ctx, p, orderID, itemID)
}

// --- Mock OrderStore ---

type mockOrderStore struct {
	getOrderFn              func(ctx context.Context, id uuid.UUID) (database.Order, error)
	listOrdersFn            func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	countOrdersFn           func(ctx context.Context, arg database.CountOrdersParams) (int64, error)
	listOrderItemsByOrderFn func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	listPaymentsByOrderFn   func(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
}

func (m *mockOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, id)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, arg)
	}
	return []database.Order{}, nil
}

func (m *mockOrderStore) CountOrders(ctx context.Context, arg database.CountOrdersParams) (int64, error) {
	if m.countOrdersFn != nil {
		return m.countOrdersFn(ctx, arg)
	}
	return 0, nil
}

func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	if m.listOrderItemsByOrderFn != nil {
		return m.listOrderItemsByOrderFn(ctx, orderID)
	}
	return []database.OrderItem{}, nil
}

func (m *mockOrderStore) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error) {
	if m.listPaymentsByOrderFn != nil {
		return m.listPaymentsByOrderFn(ctx, orderID)
	}
	return []database.Payment{}, nil
}

func mountOrders(h *handler.OrderHandler) func(chi.Router) {
	return func(r chi.Router) {
		r.Route("/orders", h.RegisterRoutes)
	}
}

func fullGrid() permission.Grid {
	return permission.FullAccess()
}

// --- Tests ---

func TestCreateOrder_Created(t *testing.T) {
	restaurantID := uuid.New()
	tableID := uuid.New()
	dishID := uuid.New()

	svc := &mockOrderService{
		createFn: func(ctx context.Context, p *authz.Principal, req service.CreateOrderRequest) (*service.OrderResult, error) {
			if p.RestaurantID != restaurantID {
				t.Errorf("restaurant: got %v, want %v", p.RestaurantID, restaurantID)
			}
			if req.TableID != tableID || len(req.Items) != 1 || req.Items[0].Quantity != 2 {
				t.Errorf("unexpected request: %+v", req)
			}
			return &service.OrderResult{
				Order: database.Order{
					ID:           uuid.New(),
					TableID:      tableID,
					RestaurantID: restaurantID,
					Status:       enum.OrderStatusPending,
					TotalAmount:  makeNumeric(t, "5000.00"),
				},
				Items: []database.OrderItem{
					{ID: uuid.New(), DishID: dishID, Quantity: 2, UnitPrice: makeNumeric(t, "2500.00")},
				},
			}, nil
		},
	}
	h := handler.NewOrderHandler(svc, &mockOrderStore{}, authz.NewEvaluator(), authz.NewGuard())

	router, token := newAuthed(t, restaurantID, fullGrid(), mountOrders(h))
	rr := doJSON(router, "POST", "/orders", token, map[string]interface{}{
		"table_id": tableID.String(),
		"items":    []map[string]interface{}{{"dish_id": dishID.String(), "quantity": 2}},
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var resp struct {
		Status      string `json:"status"`
		TotalAmount string `json:"total_amount"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != enum.OrderStatusPending {
		t.Errorf("status: got %s, want PENDING", resp.Status)
	}
	if resp.TotalAmount != "5000.00" {
		t.Errorf("total: got %s, want 5000.00", resp.TotalAmount)
	}
}

func TestCreateOrder_DeniedAndCrossTenantLookAlike(t *testing.T) {
	// Both failure modes must produce byte-identical forbidden bodies.
	restaurantID := uuid.New()
	bodies := make([]string, 0, 2)

	for _, svcErr := range []error{authz.ErrPermissionDenied, authz.ErrCrossTenantAccess} {
		svc := &mockOrderService{
			createFn: func(ctx context.Context, p *authz.Principal, req service.CreateOrderRequest) (*service.OrderResult, error) {
				return nil, svcErr
			},
		}
		h := handler.NewOrderHandler(svc, &mockOrderStore{}, authz.NewEvaluator(), authz.NewGuard())

		router, token := newAuthed(t, restaurantID, fullGrid(), mountOrders(h))
		rr := doJSON(router, "POST", "/orders", token, map[string]interface{}{
			"table_id": uuid.New().String(),
			"items":    []map[string]interface{}{{"dish_id": uuid.New().String(), "quantity": 1}},
		})

		if rr.Code != http.StatusForbidden {
			t.Fatalf("%v: status: got %d, want %d", svcErr, rr.Code, http.StatusForbidden)
		}
		bodies = append(bodies, rr.Body.String())
	}

	if bodies[0] != bodies[1] {
		t.Errorf("forbidden bodies differ: %q vs %q", bodies[0], bodies[1])
	}
}

func TestCreateOrder_BadDishID(t *testing.T) {
	h := handler.NewOrderHandler(&mockOrderService{}, &mockOrderStore{}, authz.NewEvaluator(), authz.NewGuard())
	router, token := newAuthed(t, uuid.New(), fullGrid(), mountOrders(h))

	rr := doJSON(router, "POST", "/orders", token, map[string]interface{}{
		"table_id": uuid.New().String(),
		"items":    []map[string]interface{}{{"dish_id": "not-a-uuid", "quantity": 1}},
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUpdateStatus_Conflict(t *testing.T) {
	svc := &mockOrderService{
		transitionFn: func(ctx context.Context, p *authz.Principal, orderID uuid.UUID, target string) (*database.Order, error) {
			return nil, service.ErrInvalidTransition
		},
	}
	h := handler.NewOrderHandler(svc, &mockOrderStore{}, authz.NewEvaluator(), authz.NewGuard())
	router, token := newAuthed(t, uuid.New(), fullGrid(), mountOrders(h))

	rr := doJSON(router, "PATCH", "/orders/"+uuid.New().String()+"/status", token,
		map[string]string{"status": enum.OrderStatusReady})
	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestUpdateStatus_UnknownStatusValue(t *testing.T) {
	h := handler.NewOrderHandler(&mockOrderService{}, &mockOrderStore{}, authz.NewEvaluator(), authz.NewGuard())
	router, token := newAuthed(t, uuid.New(), fullGrid(), mountOrders(h))

	rr := doJSON(router, "PATCH", "/orders/"+uuid.New().String()+"/status", token,
		map[string]string{"status": "SHIPPED"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	h := handler.NewOrderHandler(&mockOrderService{}, &mockOrderStore{}, authz.NewEvaluator(), authz.NewGuard())
	router, token := newAuthed(t, uuid.New(), fullGrid(), mountOrders(h))

	rr := doJSON(router, "GET", "/orders/"+uuid.New().String(), token, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestGetOrder_ForeignOrderReadsAsMissing(t *testing.T) {
	// A foreign order must be indistinguishable from one that does not
	// exist, or the response would confirm the id lives in another
	// restaurant.
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, id uuid.UUID) (database.Order, error) {
			return database.Order{ID: id, RestaurantID: uuid.New(), Status: enum.OrderStatusPending}, nil
		},
	}
	h := handler.NewOrderHandler(&mockOrderService{}, store, authz.NewEvaluator(), authz.NewGuard())
	router, token := newAuthed(t, uuid.New(), fullGrid(), mountOrders(h))

	foreign := doJSON(router, "GET", "/orders/"+uuid.New().String(), token, nil)
	if foreign.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", foreign.Code, http.StatusNotFound)
	}

	hMissing := handler.NewOrderHandler(&mockOrderService{}, &mockOrderStore{}, authz.NewEvaluator(), authz.NewGuard())
	routerMissing, tokenMissing := newAuthed(t, uuid.New(), fullGrid(), mountOrders(hMissing))
	missing := doJSON(routerMissing, "GET", "/orders/"+uuid.New().String(), tokenMissing, nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", missing.Code, http.StatusNotFound)
	}

	if foreign.Body.String() != missing.Body.String() {
		t.Errorf("foreign and missing bodies differ: %q vs %q", foreign.Body.String(), missing.Body.String())
	}
}

func TestGetOrder_WithoutReadPermission(t *testing.T) {
	h := handler.NewOrderHandler(&mockOrderService{}, &mockOrderStore{}, authz.NewEvaluator(), authz.NewGuard())
	// Grid grants only orders.create; reads must be denied.
	router, token := newAuthed(t, uuid.New(), permission.Grid{
		Orders: permission.ActionSet{Create: true},
	}, mountOrders(h))

	rr := doJSON(router, "GET", "/orders/"+uuid.New().String(), token, nil)
	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestListOrders_PaginationDefaults(t *testing.T) {
	restaurantID := uuid.New()
	store := &mockOrderStore{
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			if arg.Limit != 10 || arg.Offset != 0 {
				t.Errorf("pagination: got limit %d offset %d, want 10/0", arg.Limit, arg.Offset)
			}
			if arg.RestaurantID != restaurantID {
				t.Errorf("restaurant: got %v, want %v", arg.RestaurantID, restaurantID)
			}
			return []database.Order{
				{ID: uuid.New(), RestaurantID: restaurantID, Status: enum.OrderStatusPending, TotalAmount: makeNumeric(t, "1000.00")},
			}, nil
		},
		countOrdersFn: func(ctx context.Context, arg database.CountOrdersParams) (int64, error) {
			return 25, nil
		},
	}
	h := handler.NewOrderHandler(&mockOrderService{}, store, authz.NewEvaluator(), authz.NewGuard())
	router, token := newAuthed(t, restaurantID, fullGrid(), mountOrders(h))

	rr := doJSON(router, "GET", "/orders", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp struct {
		Meta struct {
			Total       int64 `json:"total"`
			TotalPages  int   `json:"totalPages"`
			HasNextPage bool  `json:"hasNextPage"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Meta.Total != 25 || resp.Meta.TotalPages != 3 || !resp.Meta.HasNextPage {
		t.Errorf("meta: got %+v", resp.Meta)
	}
}

func TestListOrders_LimitCapped(t *testing.T) {
	store := &mockOrderStore{
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			if arg.Limit != 100 {
				t.Errorf("limit: got %d, want 100", arg.Limit)
			}
			return nil, nil
		},
	}
	h := handler.NewOrderHandler(&mockOrderService{}, store, authz.NewEvaluator(), authz.NewGuard())
	router, token := newAuthed(t, uuid.New(), fullGrid(), mountOrders(h))

	rr := doJSON(router, "GET", "/orders?limit=500", token, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestAddItems_LockedConflict(t *testing.T) {
	svc := &mockOrderService{
		addItemsFn: func(ctx context.Context, p *authz.Principal, orderID uuid.UUID, items []service.CreateOrderItemRequest) (*service.OrderResult, error) {
			return nil, service.ErrOrderLocked
		},
	}
	h := handler.NewOrderHandler(svc, &mockOrderStore{}, authz.NewEvaluator(), authz.NewGuard())
	router, token := newAuthed(t, uuid.New(), fullGrid(), mountOrders(h))

	rr := doJSON(router, "POST", "/orders/"+uuid.New().String()+"/items", token, map[string]interface{}{
		"items": []map[string]interface{}{{"dish_id": uuid.New().String(), "quantity": 1}},
	})
	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestRemoveItem_OK(t *testing.T) {
	orderID := uuid.New()
	itemID := uuid.New()
	svc := &mockOrderService{
		removeItemFn: func(ctx context.Context, p *authz.Principal, oID, iID uuid.UUID) (*service.OrderResult, error) {
			if oID != orderID || iID != itemID {
				t.Errorf("ids: got %v/%v, want %v/%v", oID, iID, orderID, itemID)
			}
			return &service.OrderResult{
				Order: database.Order{ID: orderID, Status: enum.OrderStatusPending, TotalAmount: makeNumeric(t, "0.00")},
			}, nil
		},
	}
	h := handler.NewOrderHandler(svc, &mockOrderStore{}, authz.NewEvaluator(), authz.NewGuard())
	router, token := newAuthed(t, uuid.New(), fullGrid(), mountOrders(h))

	rr := doJSON(router, "DELETE", "/orders/"+orderID.String()+"/items/"+itemID.String(), token, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestOrders_Unauthenticated(t *testing.T) {
	h := handler.NewOrderHandler(&mockOrderService{}, &mockOrderStore{}, authz.NewEvaluator(), authz.NewGuard())
	router, _ := newAuthed(t, uuid.New(), fullGrid(), mountOrders(h))

	req := httptest.NewRequest("GET", "/orders", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
