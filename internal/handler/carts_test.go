package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/plateful/plateful/internal/auth"
	"github.com/plateful/plateful/internal/handler"
	"github.com/plateful/plateful/internal/middleware"
	"github.com/plateful/plateful/internal/service"
	"github.com/plateful/plateful/internal/store"
)

const (
	testJWTSecret  = "test-secret-for-carts"
	testPhone      = "5551234567"
	testRestaurant = int64(42)
	testOrder      = "A0000001"
)

// --- Mock CartServicer ---

type mockCartService struct {
	fetchOrCreateFn func(ctx context.Context, phone string, restaurantID int64) (*store.Cart, error)
	getCartFn       func(ctx context.Context, phone string, restaurantID int64) (*store.Cart, error)
	getByNumberFn   func(ctx context.Context, orderNumber string) (*store.Cart, error)
	listCartsFn     func(ctx context.Context, phone string) ([]store.Cart, error)
	setItemFn       func(ctx context.Context, orderNumber string, menuID int64, foodName string, quantity int32) (*store.Cart, error)
	checkoutFn      func(ctx context.Context, orderNumber string) (*store.Cart, error)
	updateStatusFn  func(ctx context.Context, orderNumber, next string) (*store.Cart, error)
	deleteFn        func(ctx context.Context, phone string, restaurantID int64) (*store.Cart, error)
}

func (m *mockCartService) FetchOrCreate(ctx context.Context, phone string, restaurantID int64) (*store.Cart, error) {
	if m.fetchOrCreateFn != nil {
		return m.fetchOrCreateFn(ctx, phone, restaurantID)
	}
	return nil, service.ErrCartNotFound
}

func (m *mockCartService) GetCart(ctx context.Context, phone string, restaurantID int64) (*store.Cart, error) {
	if m.getCartFn != nil {
		return m.getCartFn(ctx, phone, restaurantID)
	}
	return nil, service.ErrCartNotFound
}

func (m *mockCartService) GetCartByNumber(ctx context.Context, orderNumber string) (*store.Cart, error) {
	if m.getByNumberFn != nil {
		return m.getByNumberFn(ctx, orderNumber)
	}
	return nil, service.ErrCartNotFound
}

func (m *mockCartService) ListCarts(ctx context.Context, phone string) ([]store.Cart, error) {
	if m.listCartsFn != nil {
		return m.listCartsFn(ctx, phone)
	}
	return []store.Cart{}, nil
}

func (m *mockCartService) SetItemQuantity(ctx context.Context, orderNumber string, menuID int64, foodName string, quantity int32) (*store.Cart, error) {
	if m.setItemFn != nil {
		return m.setItemFn(ctx, orderNumber, menuID, foodName, quantity)
	}
	return nil, service.ErrCartNotFound
}

func (m *mockCartService) Checkout(ctx context.Context, orderNumber string) (*store.Cart, error) {
	if m.checkoutFn != nil {
		return m.checkoutFn(ctx, orderNumber)
	}
	return nil, service.ErrCartNotFound
}

func (m *mockCartService) UpdateStatus(ctx context.Context, orderNumber, next string) (*store.Cart, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, orderNumber, next)
	}
	return nil, service.ErrOrderNotFound
}

func (m *mockCartService) Delete(ctx context.Context, phone string, restaurantID int64) (*store.Cart, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, phone, restaurantID)
	}
	return nil, service.ErrCartNotFound
}

// --- Mock notifier ---

type mockNotifier struct {
	mu     sync.Mutex
	events []string
}

func (m *mockNotifier) OrderStatusChanged(phone, orderNumber, restaurantName, status string) {
	m.mu.Lock()
	m.events = append(m.events, phone+"/"+orderNumber+"/"+status)
	m.mu.Unlock()
}

// --- Helpers ---

func testNumeric(t *testing.T, s string) pgtype.Numeric {
	t.Helper()
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		t.Fatalf("scan numeric %q: %v", s, err)
	}
	return n
}

func testCart(t *testing.T, phone string) *store.Cart {
	t.Helper()
	return &store.Cart{
		OrderNumber:    testOrder,
		Status:         "cart",
		CustomerPhone:  phone,
		RestaurantID:   testRestaurant,
		RestaurantName: "Thai Basil",
		ItemsCount:     2,
		Subtotal:       testNumeric(t, "16.00"),
		Taxes:          testNumeric(t, "1.60"),
		FoodItems: []store.LineItem{
			{MenuID: 7, FoodName: "Burger", Quantity: 2, UnitPrice: "8.00", LineTotal: "16.00"},
		},
	}
}

func setupCartRouter(svc *mockCartService, notifier *mockNotifier) *chi.Mux {
	var n handler.StatusNotifier
	if notifier != nil {
		n = notifier
	}
	h := handler.NewCartHandler(svc, n)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/carts", h.RegisterRoutes)
	return r
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, phone string) *httptest.ResponseRecorder {
	t.Helper()

	token, err := auth.GenerateToken(testJWTSecret, phone)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// --- Tests ---

func TestCreateOrGetCart(t *testing.T) {
	svc := &mockCartService{
		fetchOrCreateFn: func(ctx context.Context, phone string, restaurantID int64) (*store.Cart, error) {
			if phone != testPhone || restaurantID != testRestaurant {
				t.Errorf("args = %s, %d", phone, restaurantID)
			}
			return testCart(t, testPhone), nil
		},
	}
	router := setupCartRouter(svc, nil)

	body := map[string]interface{}{"phone_number": testPhone, "restaurant_id": testRestaurant}
	rr := doAuthRequest(t, router, http.MethodPost, "/carts", body, testPhone)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	resp := decodeResponse(t, rr)
	if resp["order_number"] != testOrder {
		t.Errorf("order_number = %v", resp["order_number"])
	}
	if resp["subtotal"] != "16.00" || resp["taxes"] != "1.60" {
		t.Errorf("money = %v / %v", resp["subtotal"], resp["taxes"])
	}
}

func TestCreateCartPhoneMismatch(t *testing.T) {
	router := setupCartRouter(&mockCartService{}, nil)

	body := map[string]interface{}{"phone_number": "5559999999", "restaurant_id": testRestaurant}
	rr := doAuthRequest(t, router, http.MethodPost, "/carts", body, testPhone)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestCreateCartUnauthenticated(t *testing.T) {
	router := setupCartRouter(&mockCartService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/carts", bytes.NewReader([]byte(`{"restaurant_id":42}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestGetCartByNumberHidesOtherCustomers(t *testing.T) {
	svc := &mockCartService{
		getByNumberFn: func(ctx context.Context, orderNumber string) (*store.Cart, error) {
			return testCart(t, "5559999999"), nil
		},
	}
	router := setupCartRouter(svc, nil)

	rr := doAuthRequest(t, router, http.MethodGet, "/carts/"+testOrder, nil, testPhone)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for foreign cart", rr.Code)
	}
}

func TestSetItemQuantity(t *testing.T) {
	svc := &mockCartService{
		getByNumberFn: func(ctx context.Context, orderNumber string) (*store.Cart, error) {
			return testCart(t, testPhone), nil
		},
		setItemFn: func(ctx context.Context, orderNumber string, menuID int64, foodName string, quantity int32) (*store.Cart, error) {
			if menuID != 7 || foodName != "Burger" || quantity != 3 {
				t.Errorf("args = %d, %s, %d", menuID, foodName, quantity)
			}
			c := testCart(t, testPhone)
			c.ItemsCount = 3
			return c, nil
		},
	}
	router := setupCartRouter(svc, nil)

	body := map[string]interface{}{"menu_id": 7, "food_name": "Burger", "quantity": 3}
	rr := doAuthRequest(t, router, http.MethodPut, "/carts/"+testOrder+"/items", body, testPhone)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	resp := decodeResponse(t, rr)
	if resp["items_count"] != float64(3) {
		t.Errorf("items_count = %v", resp["items_count"])
	}
}

func TestSetItemQuantityNegativeRejected(t *testing.T) {
	svc := &mockCartService{
		getByNumberFn: func(ctx context.Context, orderNumber string) (*store.Cart, error) {
			return testCart(t, testPhone), nil
		},
		setItemFn: func(ctx context.Context, orderNumber string, menuID int64, foodName string, quantity int32) (*store.Cart, error) {
			return nil, service.ErrNegativeQuantity
		},
	}
	router := setupCartRouter(svc, nil)

	body := map[string]interface{}{"menu_id": 7, "food_name": "Burger", "quantity": -1}
	rr := doAuthRequest(t, router, http.MethodPut, "/carts/"+testOrder+"/items", body, testPhone)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestSetItemUnknownMenuItem(t *testing.T) {
	svc := &mockCartService{
		getByNumberFn: func(ctx context.Context, orderNumber string) (*store.Cart, error) {
			return testCart(t, testPhone), nil
		},
		setItemFn: func(ctx context.Context, orderNumber string, menuID int64, foodName string, quantity int32) (*store.Cart, error) {
			return nil, service.ErrMenuItemNotFound
		},
	}
	router := setupCartRouter(svc, nil)

	body := map[string]interface{}{"menu_id": 99, "food_name": "Nope", "quantity": 1}
	rr := doAuthRequest(t, router, http.MethodPut, "/carts/"+testOrder+"/items", body, testPhone)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc := &mockCartService{
		getByNumberFn: func(ctx context.Context, orderNumber string) (*store.Cart, error) {
			c := testCart(t, testPhone)
			c.ItemsCount = 0
			c.FoodItems = nil
			return c, nil
		},
		checkoutFn: func(ctx context.Context, orderNumber string) (*store.Cart, error) {
			return nil, service.ErrEmptyCart
		},
	}
	notifier := &mockNotifier{}
	router := setupCartRouter(svc, notifier)

	rr := doAuthRequest(t, router, http.MethodPost, "/carts/"+testOrder+"/checkout", nil, testPhone)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if len(notifier.events) != 0 {
		t.Errorf("notified on failed checkout: %v", notifier.events)
	}
}

func TestCheckoutNotifies(t *testing.T) {
	svc := &mockCartService{
		getByNumberFn: func(ctx context.Context, orderNumber string) (*store.Cart, error) {
			return testCart(t, testPhone), nil
		},
		checkoutFn: func(ctx context.Context, orderNumber string) (*store.Cart, error) {
			c := testCart(t, testPhone)
			c.Status = "preparing"
			return c, nil
		},
	}
	notifier := &mockNotifier{}
	router := setupCartRouter(svc, notifier)

	rr := doAuthRequest(t, router, http.MethodPost, "/carts/"+testOrder+"/checkout", nil, testPhone)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.events) != 1 || notifier.events[0] != testPhone+"/"+testOrder+"/preparing" {
		t.Errorf("events = %v", notifier.events)
	}
}

func TestUpdateStatusConflict(t *testing.T) {
	svc := &mockCartService{
		updateStatusFn: func(ctx context.Context, orderNumber, next string) (*store.Cart, error) {
			return nil, service.ErrStatusConflict
		},
	}
	router := setupCartRouter(svc, nil)

	body := map[string]string{"status": "ready"}
	rr := doAuthRequest(t, router, http.MethodPut, "/carts/"+testOrder+"/status", body, testPhone)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}

func TestUpdateStatusIllegalTransition(t *testing.T) {
	svc := &mockCartService{
		updateStatusFn: func(ctx context.Context, orderNumber, next string) (*store.Cart, error) {
			return nil, service.ErrInvalidStatus
		},
	}
	router := setupCartRouter(svc, nil)

	body := map[string]string{"status": "bogus"}
	rr := doAuthRequest(t, router, http.MethodPut, "/carts/"+testOrder+"/status", body, testPhone)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestDeleteCartPathPhoneMustMatch(t *testing.T) {
	router := setupCartRouter(&mockCartService{}, nil)

	rr := doAuthRequest(t, router, http.MethodDelete, "/carts/customer/5559999999/42", nil, testPhone)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestDeleteCartMissing(t *testing.T) {
	svc := &mockCartService{
		deleteFn: func(ctx context.Context, phone string, restaurantID int64) (*store.Cart, error) {
			return nil, service.ErrCartNotFound
		},
	}
	router := setupCartRouter(svc, nil)

	rr := doAuthRequest(t, router, http.MethodDelete, "/carts/customer/"+testPhone+"/42", nil, testPhone)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}
