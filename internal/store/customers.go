package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

func (s *Store) GetCustomerByPhone(ctx context.Context, phone string) (Customer, error) {
	var c Customer
	err := s.pool.QueryRow(ctx, `
		SELECT phone_number, account_name, email, hashed_password, created_at
		FROM customer_table
		WHERE phone_number = $1`, phone).
		Scan(&c.Phone, &c.Name, &c.Email, &c.HashedPassword, &c.CreatedAt)
	return c, err
}

type CreateCustomerParams struct {
	Phone          string
	Name           string
	Email          pgtype.Text
	HashedPassword string
}

func (s *Store) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	var c Customer
	err := s.pool.QueryRow(ctx, `
		INSERT INTO customer_table (phone_number, account_name, email, hashed_password)
		VALUES ($1, $2, $3, $4)
		RETURNING phone_number, account_name, email, hashed_password, created_at`,
		arg.Phone, arg.Name, arg.Email, arg.HashedPassword).
		Scan(&c.Phone, &c.Name, &c.Email, &c.HashedPassword, &c.CreatedAt)
	return c, err
}

func (s *Store) UpdateCustomerPassword(ctx context.Context, phone, hashedPassword string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE customer_table SET hashed_password = $2 WHERE phone_number = $1`,
		phone, hashedPassword)
	return err
}
