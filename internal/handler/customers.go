package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/plateful/plateful/internal/middleware"
	"github.com/plateful/plateful/internal/store"
)

// CustomerServicer defines the service methods needed by customer-scoped
// handlers.
type CustomerServicer interface {
	ListOrders(ctx context.Context, phone string) ([]store.Cart, error)
	ListCarts(ctx context.Context, phone string) ([]store.Cart, error)
	AppendHistory(ctx context.Context, phone, orderNumber string) error
}

// CustomerHandler serves the authenticated customer's own resources. The
// phone comes from the token, never the request.
type CustomerHandler struct {
	svc CustomerServicer
}

func NewCustomerHandler(svc CustomerServicer) *CustomerHandler {
	return &CustomerHandler{svc: svc}
}

func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders", h.ListOrders)
	r.Get("/carts", h.ListCarts)
	r.Post("/history", h.AppendHistory)
}

type appendHistoryRequest struct {
	OrderNumber string `json:"order_number"`
}

// ListOrders handles GET /customers/orders. Returns placed orders newest
// first, each with the grand total.
func (h *CustomerHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	phone := middleware.PhoneFromContext(r.Context())

	orders, err := h.svc.ListOrders(r.Context(), phone)
	if err != nil {
		writeServiceError(w, "list orders", err)
		return
	}

	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// ListCarts handles GET /customers/carts. Returns the customer's open carts
// across all restaurants.
func (h *CustomerHandler) ListCarts(w http.ResponseWriter, r *http.Request) {
	phone := middleware.PhoneFromContext(r.Context())

	carts, err := h.svc.ListCarts(r.Context(), phone)
	if err != nil {
		writeServiceError(w, "list carts", err)
		return
	}

	out := make([]cartResponse, len(carts))
	for i := range carts {
		out[i] = toCartResponse(&carts[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// AppendHistory handles POST /customers/history. Recording the same order
// twice is a no-op.
func (h *CustomerHandler) AppendHistory(w http.ResponseWriter, r *http.Request) {
	phone := middleware.PhoneFromContext(r.Context())

	var req appendHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderNumber == "" {
		writeError(w, http.StatusBadRequest, "order_number is required")
		return
	}

	if err := h.svc.AppendHistory(r.Context(), phone, req.OrderNumber); err != nil {
		writeServiceError(w, "append history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"order_number": req.OrderNumber})
}
