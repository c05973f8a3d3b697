package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/plateful/plateful/internal/enum"
)

const cartColumns = `order_number, status, customer_phone, restaurant_id, restaurant_name,
	items_count, subtotal, taxes, fooditems, due_date,
	state, city, street_address, postal_code, created_at, updated_at`

func scanCart(row pgx.Row) (Cart, error) {
	var c Cart
	err := row.Scan(
		&c.OrderNumber, &c.Status, &c.CustomerPhone, &c.RestaurantID, &c.RestaurantName,
		&c.ItemsCount, &c.Subtotal, &c.Taxes, &c.FoodItems, &c.DueDate,
		&c.State, &c.City, &c.StreetAddress, &c.PostalCode, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

// GetOpenCart returns the single open cart for a (customer, restaurant) pair.
func (s *Store) GetOpenCart(ctx context.Context, phone string, restaurantID int64) (Cart, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+cartColumns+`
		FROM order_table
		WHERE customer_phone = $1 AND restaurant_id = $2 AND status = $3`,
		phone, restaurantID, enum.StatusCart)
	return scanCart(row)
}

// GetOpenCartByNumber returns a cart by order number only while it is still open.
func (s *Store) GetOpenCartByNumber(ctx context.Context, orderNumber string) (Cart, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+cartColumns+`
		FROM order_table
		WHERE order_number = $1 AND status = $2`,
		orderNumber, enum.StatusCart)
	return scanCart(row)
}

// GetOrderByNumber returns the row regardless of status.
func (s *Store) GetOrderByNumber(ctx context.Context, orderNumber string) (Cart, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+cartColumns+`
		FROM order_table
		WHERE order_number = $1`,
		orderNumber)
	return scanCart(row)
}

// GetLastOrderNumber returns the highest assigned order number, or
// pgx.ErrNoRows when no orders exist yet. Numbers are "A" + digits;
// ordering by length first keeps "A10000000" above "A9999999" once the
// sequence outgrows its zero-padded width.
func (s *Store) GetLastOrderNumber(ctx context.Context) (string, error) {
	var n string
	err := s.pool.QueryRow(ctx,
		`SELECT order_number FROM order_table
		 ORDER BY LENGTH(order_number) DESC, order_number DESC LIMIT 1`).Scan(&n)
	return n, err
}

type CreateCartParams struct {
	OrderNumber    string
	CustomerPhone  string
	RestaurantID   int64
	RestaurantName string
	State          pgtype.Text
	City           pgtype.Text
	StreetAddress  pgtype.Text
	PostalCode     pgtype.Text
}

func (s *Store) CreateCart(ctx context.Context, arg CreateCartParams) (Cart, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO order_table
			(order_number, status, customer_phone, restaurant_id, restaurant_name,
			 items_count, subtotal, taxes, fooditems, due_date,
			 state, city, street_address, postal_code)
		VALUES ($1, $2, $3, $4, $5, 0, 0, 0, '[]'::jsonb, now(), $6, $7, $8, $9)
		RETURNING `+cartColumns,
		arg.OrderNumber, enum.StatusCart, arg.CustomerPhone, arg.RestaurantID, arg.RestaurantName,
		arg.State, arg.City, arg.StreetAddress, arg.PostalCode)
	return scanCart(row)
}

type UpdateCartItemsParams struct {
	OrderNumber string
	FoodItems   []LineItem
	ItemsCount  int32
	Subtotal    pgtype.Numeric
	Taxes       pgtype.Numeric
}

// UpdateCartItems replaces the fooditems array and derived totals. Only an
// open cart can be mutated; pgx.ErrNoRows means the cart is gone or already
// checked out.
func (s *Store) UpdateCartItems(ctx context.Context, arg UpdateCartItemsParams) (Cart, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE order_table
		SET fooditems = $2, items_count = $3, subtotal = $4, taxes = $5, updated_at = now()
		WHERE order_number = $1 AND status = $6
		RETURNING `+cartColumns,
		arg.OrderNumber, arg.FoodItems, arg.ItemsCount, arg.Subtotal, arg.Taxes, enum.StatusCart)
	return scanCart(row)
}

// UpdateOrderStatus transitions order status with an optimistic guard on the
// expected current status. pgx.ErrNoRows means the row moved underneath us.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderNumber, next, expectedCurrent string) (Cart, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE order_table
		SET status = $2, due_date = now(), updated_at = now()
		WHERE order_number = $1 AND status = $3
		RETURNING `+cartColumns,
		orderNumber, next, expectedCurrent)
	return scanCart(row)
}

// DeleteCart removes an open cart for a (customer, restaurant) pair and
// returns the deleted row.
func (s *Store) DeleteCart(ctx context.Context, phone string, restaurantID int64) (Cart, error) {
	row := s.pool.QueryRow(ctx, `
		DELETE FROM order_table
		WHERE customer_phone = $1 AND restaurant_id = $2 AND status = $3
		RETURNING `+cartColumns,
		phone, restaurantID, enum.StatusCart)
	return scanCart(row)
}

// AddHistory records an order in a customer's history. Duplicate appends are
// a no-op so the post-payment pipeline can be retried safely.
func (s *Store) AddHistory(ctx context.Context, phone, orderNumber string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO customer_history_table (customer_phone, order_number)
		VALUES ($1, $2)
		ON CONFLICT (customer_phone, order_number) DO NOTHING`,
		phone, orderNumber)
	return err
}

// ListOrdersByPhone returns the customer's placed orders (never open carts),
// most recent first.
func (s *Store) ListOrdersByPhone(ctx context.Context, phone string) ([]Cart, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+cartColumns+`
		FROM order_table o
		WHERE o.status <> $2
		  AND o.order_number IN (
			SELECT order_number FROM customer_history_table WHERE customer_phone = $1
		  )
		ORDER BY o.due_date DESC`,
		phone, enum.StatusCart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Cart
	for rows.Next() {
		c, err := scanCart(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, c)
	}
	return orders, rows.Err()
}

// ListOpenCartsByPhone returns every open cart a customer holds, one per
// restaurant at most.
func (s *Store) ListOpenCartsByPhone(ctx context.Context, phone string) ([]Cart, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+cartColumns+`
		FROM order_table
		WHERE customer_phone = $1 AND status = $2
		ORDER BY created_at`,
		phone, enum.StatusCart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var carts []Cart
	for rows.Next() {
		c, err := scanCart(rows)
		if err != nil {
			return nil, err
		}
		carts = append(carts, c)
	}
	return carts, rows.Err()
}
