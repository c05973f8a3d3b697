package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/plateful/plateful/internal/service"
	"github.com/plateful/plateful/internal/store"
)

// RestaurantServicer defines the service methods needed by restaurant
// handlers. Satisfied by *service.RestaurantService.
type RestaurantServicer interface {
	Nearby(ctx context.Context, lat, lng, radiusKM float64) ([]service.NearbyRestaurant, error)
	Get(ctx context.Context, id int64) (*store.Restaurant, *store.Address, error)
	Menu(ctx context.Context, restaurantID int64) ([]store.MenuItem, error)
}

// RestaurantHandler handles the public restaurant discovery endpoints.
type RestaurantHandler struct {
	svc RestaurantServicer
}

func NewRestaurantHandler(svc RestaurantServicer) *RestaurantHandler {
	return &RestaurantHandler{svc: svc}
}

func (h *RestaurantHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Nearby)
	r.Get("/{restaurantID}", h.Get)
	r.Get("/{restaurantID}/menu", h.Menu)
}

// --- Response types ---

type restaurantResponse struct {
	ID            int64    `json:"restaurant_id"`
	Name          string   `json:"restaurant_name"`
	Ratings       string   `json:"ratings"`
	Type          string   `json:"restaurant_type"`
	PricingLevels *string  `json:"pricing_levels"`
	State         string   `json:"state,omitempty"`
	City          string   `json:"city,omitempty"`
	StreetAddress string   `json:"street_address,omitempty"`
	PostalCode    string   `json:"postal_code,omitempty"`
	Latitude      float64  `json:"latitude,omitempty"`
	Longitude     float64  `json:"longitude,omitempty"`
	DistanceKM    *float64 `json:"distance_km,omitempty"`
}

type menuItemResponse struct {
	MenuID       int64  `json:"menu_id"`
	RestaurantID int64  `json:"restaurant_id"`
	FoodName     string `json:"food_name"`
	FoodPrice    string `json:"food_price"`
	Category     string `json:"category"`
}

func toRestaurantResponse(r store.Restaurant, a *store.Address) restaurantResponse {
	resp := restaurantResponse{
		ID:      r.ID,
		Name:    r.Name,
		Ratings: numericToString(r.Ratings),
		Type:    r.Type.String,
	}
	if r.PricingLevels.Valid {
		resp.PricingLevels = &r.PricingLevels.String
	}
	if a != nil {
		resp.State = a.State
		resp.City = a.City
		resp.StreetAddress = a.StreetAddress
		resp.PostalCode = a.PostalCode
		resp.Latitude = a.Latitude
		resp.Longitude = a.Longitude
	}
	return resp
}

// --- Handlers ---

// Nearby handles GET /restaurants?latitude=..&longitude=..&radius=..
// Radius is in kilometers and defaults to 25.
func (h *RestaurantHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("latitude"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "latitude is required")
		return
	}
	lng, err := strconv.ParseFloat(q.Get("longitude"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "longitude is required")
		return
	}
	radius := 25.0
	if raw := q.Get("radius"); raw != "" {
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 {
			writeError(w, http.StatusBadRequest, "invalid radius")
			return
		}
	}

	nearby, err := h.svc.Nearby(r.Context(), lat, lng, radius)
	if err != nil {
		log.Printf("ERROR: nearby restaurants: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]restaurantResponse, len(nearby))
	for i, n := range nearby {
		addr := n.Address
		resp := toRestaurantResponse(n.Restaurant, &addr)
		d := n.DistanceKM
		resp.DistanceKM = &d
		out[i] = resp
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /restaurants/{restaurantID}.
func (h *RestaurantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "restaurantID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid restaurant ID")
		return
	}

	restaurant, address, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrRestaurantNotFound) {
			writeError(w, http.StatusNotFound, "restaurant not found")
			return
		}
		log.Printf("ERROR: get restaurant: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toRestaurantResponse(*restaurant, address))
}

// Menu handles GET /restaurants/{restaurantID}/menu.
func (h *RestaurantHandler) Menu(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "restaurantID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid restaurant ID")
		return
	}

	menu, err := h.svc.Menu(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrRestaurantNotFound) {
			writeError(w, http.StatusNotFound, "restaurant not found")
			return
		}
		log.Printf("ERROR: restaurant menu: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]menuItemResponse, len(menu))
	for i, m := range menu {
		out[i] = menuItemResponse{
			MenuID:       m.MenuID,
			RestaurantID: m.RestaurantID,
			FoodName:     m.FoodName,
			FoodPrice:    numericToString(m.FoodPrice),
			Category:     m.Category.String,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
