package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/plateful/plateful/internal/service"
	"github.com/plateful/plateful/internal/store"
	"github.com/shopspring/decimal"
)

// PaymentServicer defines the service methods needed by payment handlers.
type PaymentServicer interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, orderNumber string) (*store.Payment, error)
	Confirm(ctx context.Context, id uuid.UUID) (*store.Payment, error)
}

// PaymentHandler issues and settles payment intents.
type PaymentHandler struct {
	svc PaymentServicer
}

func NewPaymentHandler(svc PaymentServicer) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/intent", h.CreateIntent)
	r.Post("/intent/{intentID}/confirm", h.Confirm)
}

// --- Request / Response types ---

type createIntentRequest struct {
	Amount      string `json:"amount"`
	OrderNumber string `json:"order_number"`
}

type paymentResponse struct {
	ID           string `json:"id"`
	OrderNumber  string `json:"order_number,omitempty"`
	Amount       string `json:"amount"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
}

func toPaymentResponse(p *store.Payment) paymentResponse {
	resp := paymentResponse{
		ID:           p.ID.String(),
		Amount:       numericToString(p.Amount),
		Status:       p.Status,
		ClientSecret: p.ClientSecret,
	}
	if p.OrderNumber.Valid {
		resp.OrderNumber = p.OrderNumber.String
	}
	return resp
}

// --- Handlers ---

// CreateIntent handles POST /payments/intent. Amount is a decimal string in
// dollars, e.g. "18.59".
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	payment, err := h.svc.CreateIntent(r.Context(), amount, req.OrderNumber)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("ERROR: create payment intent: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentResponse(payment))
}

// Confirm handles POST /payments/intent/{intentID}/confirm.
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "intentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid intent ID")
		return
	}

	payment, err := h.svc.Confirm(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrPaymentSettled):
			writeError(w, http.StatusConflict, err.Error())
		default:
			log.Printf("ERROR: confirm payment intent: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}
