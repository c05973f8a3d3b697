package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/plateful/plateful/internal/auth"
	"github.com/plateful/plateful/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// AuthStore defines the database methods needed by auth handlers.
// Satisfied by *store.Store; narrow interface for testability.
type AuthStore interface {
	GetCustomerByPhone(ctx context.Context, phone string) (store.Customer, error)
	CreateCustomer(ctx context.Context, arg store.CreateCustomerParams) (store.Customer, error)
}

// AuthHandler handles customer sign-up and sign-in.
type AuthHandler struct {
	store     AuthStore
	jwtSecret string
}

func NewAuthHandler(store AuthStore, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: store, jwtSecret: jwtSecret}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/signup", h.SignUp)
	r.Post("/auth/signin", h.SignIn)
}

// --- Request / Response types ---

type signUpRequest struct {
	AccountName string `json:"account_name"`
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
	Email       string `json:"email"`
}

type signInRequest struct {
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	PhoneNumber string `json:"phone_number"`
}

// --- Handlers ---

// SignUp handles POST /auth/signup.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.PhoneNumber) != 10 {
		writeError(w, http.StatusBadRequest, "phone_number must be 10 digits")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}
	if req.AccountName == "" {
		writeError(w, http.StatusBadRequest, "account_name is required")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: hash password: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	email := pgtype.Text{}
	if req.Email != "" {
		email = pgtype.Text{String: req.Email, Valid: true}
	}

	customer, err := h.store.CreateCustomer(r.Context(), store.CreateCustomerParams{
		Phone:          req.PhoneNumber,
		Name:           req.AccountName,
		Email:          email,
		HashedPassword: string(hashed),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeError(w, http.StatusConflict, "phone number already registered")
			return
		}
		log.Printf("ERROR: create customer: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.respondWithToken(w, http.StatusCreated, customer.Phone)
}

// SignIn handles POST /auth/signin.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.PhoneNumber == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "phone_number and password are required")
		return
	}

	customer, err := h.store.GetCustomerByPhone(r.Context(), req.PhoneNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("ERROR: get customer: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(customer.HashedPassword), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.respondWithToken(w, http.StatusOK, customer.Phone)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, phone string) {
	token, err := auth.GenerateToken(h.jwtSecret, phone)
	if err != nil {
		log.Printf("ERROR: generate token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, status, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		PhoneNumber: phone,
	})
}
