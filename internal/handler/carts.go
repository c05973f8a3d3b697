package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/plateful/plateful/internal/middleware"
	"github.com/plateful/plateful/internal/service"
	"github.com/plateful/plateful/internal/store"
)

// CartServicer defines the service methods needed by cart handlers.
// Satisfied by *service.CartService; narrow interface for testability.
type CartServicer interface {
	FetchOrCreate(ctx context.Context, phone string, restaurantID int64) (*store.Cart, error)
	GetCart(ctx context.Context, phone string, restaurantID int64) (*store.Cart, error)
	GetCartByNumber(ctx context.Context, orderNumber string) (*store.Cart, error)
	ListCarts(ctx context.Context, phone string) ([]store.Cart, error)
	SetItemQuantity(ctx context.Context, orderNumber string, menuID int64, foodName string, quantity int32) (*store.Cart, error)
	Checkout(ctx context.Context, orderNumber string) (*store.Cart, error)
	UpdateStatus(ctx context.Context, orderNumber, next string) (*store.Cart, error)
	Delete(ctx context.Context, phone string, restaurantID int64) (*store.Cart, error)
}

// StatusNotifier pushes order status changes to connected customers.
// Satisfied by *ws.Hub.
type StatusNotifier interface {
	OrderStatusChanged(phone, orderNumber, restaurantName, status string)
}

// CartHandler handles cart endpoints.
type CartHandler struct {
	svc      CartServicer
	notifier StatusNotifier
}

// NewCartHandler creates a new CartHandler. notifier may be nil.
func NewCartHandler(svc CartServicer, notifier StatusNotifier) *CartHandler {
	return &CartHandler{svc: svc, notifier: notifier}
}

// RegisterRoutes registers cart endpoints on the given Chi router.
// All routes require authentication.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.CreateOrGet)
	r.Get("/customer/{phone}/{restaurantID}", h.GetByCustomer)
	r.Delete("/customer/{phone}/{restaurantID}", h.Delete)
	r.Get("/{orderNumber}", h.Get)
	r.Put("/{orderNumber}/items", h.SetItemQuantity)
	r.Post("/{orderNumber}/checkout", h.Checkout)
	r.Put("/{orderNumber}/status", h.UpdateStatus)
}

// --- Request types ---

type createCartRequest struct {
	PhoneNumber  string `json:"phone_number"`
	RestaurantID int64  `json:"restaurant_id"`
}

type setItemRequest struct {
	MenuID   int64  `json:"menu_id"`
	FoodName string `json:"food_name"`
	Quantity int32  `json:"quantity"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// CreateOrGet handles POST /carts. Returns the customer's open cart for the
// restaurant, creating an empty one when none exists.
func (h *CartHandler) CreateOrGet(w http.ResponseWriter, r *http.Request) {
	phone := middleware.PhoneFromContext(r.Context())
	if phone == "" {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RestaurantID == 0 {
		writeError(w, http.StatusBadRequest, "restaurant_id is required")
		return
	}
	if req.PhoneNumber != "" && req.PhoneNumber != phone {
		writeError(w, http.StatusForbidden, "phone number does not match token")
		return
	}

	cart, err := h.svc.FetchOrCreate(r.Context(), phone, req.RestaurantID)
	if err != nil {
		writeServiceError(w, "create or get cart", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// Get handles GET /carts/{orderNumber}.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	phone := middleware.PhoneFromContext(r.Context())
	orderNumber := chi.URLParam(r, "orderNumber")

	cart, err := h.svc.GetCartByNumber(r.Context(), orderNumber)
	if err != nil {
		writeServiceError(w, "get cart", err)
		return
	}
	if cart.CustomerPhone != phone {
		writeError(w, http.StatusNotFound, "cart not found or not open")
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// GetByCustomer handles GET /carts/customer/{phone}/{restaurantID}.
func (h *CartHandler) GetByCustomer(w http.ResponseWriter, r *http.Request) {
	phone, restaurantID, ok := h.customerScope(w, r)
	if !ok {
		return
	}

	cart, err := h.svc.GetCart(r.Context(), phone, restaurantID)
	if err != nil {
		writeServiceError(w, "get cart by customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// Delete handles DELETE /carts/customer/{phone}/{restaurantID}.
func (h *CartHandler) Delete(w http.ResponseWriter, r *http.Request) {
	phone, restaurantID, ok := h.customerScope(w, r)
	if !ok {
		return
	}

	cart, err := h.svc.Delete(r.Context(), phone, restaurantID)
	if err != nil {
		writeServiceError(w, "delete cart", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// SetItemQuantity handles PUT /carts/{orderNumber}/items. The request names
// an absolute quantity for one line entry; quantity 0 removes it.
func (h *CartHandler) SetItemQuantity(w http.ResponseWriter, r *http.Request) {
	phone := middleware.PhoneFromContext(r.Context())
	orderNumber := chi.URLParam(r, "orderNumber")

	var req setItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FoodName == "" {
		writeError(w, http.StatusBadRequest, "food_name is required")
		return
	}

	// Ownership check before mutating.
	current, err := h.svc.GetCartByNumber(r.Context(), orderNumber)
	if err != nil {
		writeServiceError(w, "get cart for mutation", err)
		return
	}
	if current.CustomerPhone != phone {
		writeError(w, http.StatusNotFound, "cart not found or not open")
		return
	}

	cart, err := h.svc.SetItemQuantity(r.Context(), orderNumber, req.MenuID, req.FoodName, req.Quantity)
	if err != nil {
		writeServiceError(w, "set item quantity", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// Checkout handles POST /carts/{orderNumber}/checkout.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	phone := middleware.PhoneFromContext(r.Context())
	orderNumber := chi.URLParam(r, "orderNumber")

	current, err := h.svc.GetCartByNumber(r.Context(), orderNumber)
	if err != nil {
		writeServiceError(w, "get cart for checkout", err)
		return
	}
	if current.CustomerPhone != phone {
		writeError(w, http.StatusNotFound, "cart not found or not open")
		return
	}

	cart, err := h.svc.Checkout(r.Context(), orderNumber)
	if err != nil {
		writeServiceError(w, "checkout cart", err)
		return
	}

	if h.notifier != nil {
		h.notifier.OrderStatusChanged(cart.CustomerPhone, cart.OrderNumber, cart.RestaurantName, cart.Status)
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// UpdateStatus handles PUT /carts/{orderNumber}/status.
func (h *CartHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	cart, err := h.svc.UpdateStatus(r.Context(), orderNumber, req.Status)
	if err != nil {
		writeServiceError(w, "update status", err)
		return
	}

	if h.notifier != nil {
		h.notifier.OrderStatusChanged(cart.CustomerPhone, cart.OrderNumber, cart.RestaurantName, cart.Status)
	}
	writeJSON(w, http.StatusOK, toCartResponse(cart))
}

// --- Helpers ---

// customerScope parses {phone}/{restaurantID} and enforces that the path
// phone matches the authenticated customer.
func (h *CartHandler) customerScope(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	tokenPhone := middleware.PhoneFromContext(r.Context())
	phone := chi.URLParam(r, "phone")

	if phone != tokenPhone {
		writeError(w, http.StatusForbidden, "phone number does not match token")
		return "", 0, false
	}

	restaurantID, err := strconv.ParseInt(chi.URLParam(r, "restaurantID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid restaurant ID")
		return "", 0, false
	}
	return phone, restaurantID, true
}

// writeServiceError maps cart service sentinel errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrCustomerNotFound),
		errors.Is(err, service.ErrRestaurantNotFound),
		errors.Is(err, service.ErrAddressNotFound),
		errors.Is(err, service.ErrCartNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrMenuItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNegativeQuantity),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrStatusConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
