package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type CreatePaymentParams struct {
	ID           uuid.UUID
	OrderNumber  pgtype.Text
	Amount       pgtype.Numeric
	Status       string
	ClientSecret string
}

func (s *Store) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	var p Payment
	err := s.pool.QueryRow(ctx, `
		INSERT INTO payment_table (id, order_number, amount, status, client_secret)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, order_number, amount, status, client_secret, created_at`,
		arg.ID, arg.OrderNumber, arg.Amount, arg.Status, arg.ClientSecret).
		Scan(&p.ID, &p.OrderNumber, &p.Amount, &p.Status, &p.ClientSecret, &p.CreatedAt)
	return p, err
}

func (s *Store) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	var p Payment
	err := s.pool.QueryRow(ctx, `
		SELECT id, order_number, amount, status, client_secret, created_at
		FROM payment_table
		WHERE id = $1`, id).
		Scan(&p.ID, &p.OrderNumber, &p.Amount, &p.Status, &p.ClientSecret, &p.CreatedAt)
	return p, err
}

// UpdatePaymentStatus moves a payment from expectedCurrent to next.
// pgx.ErrNoRows means the payment does not exist or was already settled.
func (s *Store) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, next, expectedCurrent string) (Payment, error) {
	var p Payment
	err := s.pool.QueryRow(ctx, `
		UPDATE payment_table
		SET status = $2
		WHERE id = $1 AND status = $3
		RETURNING id, order_number, amount, status, client_secret, created_at`,
		id, next, expectedCurrent).
		Scan(&p.ID, &p.OrderNumber, &p.Amount, &p.Status, &p.ClientSecret, &p.CreatedAt)
	return p, err
}
