package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/plateful/plateful/internal/handler"
	"github.com/plateful/plateful/internal/service"
	"github.com/plateful/plateful/internal/store"
)

type mockRestaurantService struct {
	nearbyFn func(ctx context.Context, lat, lng, radiusKM float64) ([]service.NearbyRestaurant, error)
	getFn    func(ctx context.Context, id int64) (*store.Restaurant, *store.Address, error)
	menuFn   func(ctx context.Context, restaurantID int64) ([]store.MenuItem, error)
}

func (m *mockRestaurantService) Nearby(ctx context.Context, lat, lng, radiusKM float64) ([]service.NearbyRestaurant, error) {
	if m.nearbyFn != nil {
		return m.nearbyFn(ctx, lat, lng, radiusKM)
	}
	return nil, nil
}

func (m *mockRestaurantService) Get(ctx context.Context, id int64) (*store.Restaurant, *store.Address, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil, service.ErrRestaurantNotFound
}

func (m *mockRestaurantService) Menu(ctx context.Context, restaurantID int64) ([]store.MenuItem, error) {
	if m.menuFn != nil {
		return m.menuFn(ctx, restaurantID)
	}
	return nil, service.ErrRestaurantNotFound
}

func setupRestaurantRouter(svc *mockRestaurantService) *chi.Mux {
	h := handler.NewRestaurantHandler(svc)
	r := chi.NewRouter()
	r.Route("/restaurants", h.RegisterRoutes)
	return r
}

func TestNearbyParsesQuery(t *testing.T) {
	svc := &mockRestaurantService{
		nearbyFn: func(ctx context.Context, lat, lng, radiusKM float64) ([]service.NearbyRestaurant, error) {
			if lat != 47.6062 || lng != -122.3321 || radiusKM != 10 {
				t.Errorf("args = %v, %v, %v", lat, lng, radiusKM)
			}
			return []service.NearbyRestaurant{
				{
					Restaurant: store.Restaurant{ID: 1, Name: "Thai Basil", Type: pgtype.Text{String: "Thai", Valid: true}},
					Address:    store.Address{RestaurantID: 1, City: "Seattle", Latitude: 47.61, Longitude: -122.33},
					DistanceKM: 1.25,
				},
			}, nil
		},
	}
	router := setupRestaurantRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/restaurants?latitude=47.6062&longitude=-122.3321&radius=10", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}

	var got []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0]["restaurant_name"] != "Thai Basil" {
		t.Errorf("body = %v", got)
	}
	if got[0]["distance_km"] != 1.25 {
		t.Errorf("distance_km = %v", got[0]["distance_km"])
	}
	if got[0]["restaurant_type"] != "Thai" {
		t.Errorf("restaurant_type = %v", got[0]["restaurant_type"])
	}
}

func TestNearbyRequiresCoordinates(t *testing.T) {
	router := setupRestaurantRouter(&mockRestaurantService{})

	req := httptest.NewRequest(http.MethodGet, "/restaurants?latitude=47.6", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestGetRestaurantNotFound(t *testing.T) {
	router := setupRestaurantRouter(&mockRestaurantService{})

	req := httptest.NewRequest(http.MethodGet, "/restaurants/99", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestMenuFormatsPrices(t *testing.T) {
	svc := &mockRestaurantService{
		menuFn: func(ctx context.Context, restaurantID int64) ([]store.MenuItem, error) {
			return []store.MenuItem{
				{MenuID: 7, RestaurantID: restaurantID, FoodName: "Burger", FoodPrice: testNumeric(t, "8"), Category: pgtype.Text{String: "Mains", Valid: true}},
			}, nil
		},
	}
	router := setupRestaurantRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/restaurants/42/menu", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body)
	}
	var got []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0]["food_price"] != "8.00" {
		t.Errorf("body = %v", got)
	}
	if got[0]["category"] != "Mains" {
		t.Errorf("category = %v", got[0]["category"])
	}
}
