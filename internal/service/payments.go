package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/plateful/plateful/internal/enum"
	"github.com/plateful/plateful/internal/store"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("amount must be > 0")
	ErrPaymentNotFound = errors.New("payment not found")
	ErrPaymentSettled  = errors.New("payment already settled")
)

// PaymentStore defines the DB methods needed by the payment service.
type PaymentStore interface {
	CreatePayment(ctx context.Context, arg store.CreatePaymentParams) (store.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (store.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, next, expectedCurrent string) (store.Payment, error)
}

// PaymentService issues and settles payment intents. The hosted payment
// provider the mobile app drives is opaque to the rest of the system: an
// intent carries an amount and a client secret, and later reports success
// or failure.
type PaymentService struct {
	store PaymentStore
}

func NewPaymentService(s PaymentStore) *PaymentService {
	return &PaymentService{store: s}
}

// CreateIntent registers a pending payment for the given amount.
func (s *PaymentService) CreateIntent(ctx context.Context, amount decimal.Decimal, orderNumber string) (*store.Payment, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	id := uuid.New()
	orderRef := pgtype.Text{}
	if orderNumber != "" {
		orderRef = pgtype.Text{String: orderNumber, Valid: true}
	}

	p, err := s.store.CreatePayment(ctx, store.CreatePaymentParams{
		ID:           id,
		OrderNumber:  orderRef,
		Amount:       decimalToNumeric(amount),
		Status:       enum.PaymentStatusPending,
		ClientSecret: fmt.Sprintf("pi_%s_secret_%s", id, uuid.NewString()),
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return &p, nil
}

// Confirm settles a pending intent.
func (s *PaymentService) Confirm(ctx context.Context, id uuid.UUID) (*store.Payment, error) {
	p, err := s.store.UpdatePaymentStatus(ctx, id, enum.PaymentStatusSucceeded, enum.PaymentStatusPending)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}

	// Distinguish "unknown intent" from "already settled".
	if _, gerr := s.store.GetPayment(ctx, id); gerr != nil {
		if errors.Is(gerr, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", gerr)
	}
	return nil, ErrPaymentSettled
}
