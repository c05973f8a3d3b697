package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgx pool with hand-written queries for the ordering schema.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewPool connects to postgres and verifies the connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// --- Models ---

// LineItem is one fooditems entry, stored as jsonb inside the cart row.
// Monetary fields are fixed-2 strings to keep the jsonb stable across
// read-modify-write cycles.
type LineItem struct {
	MenuID    int64  `json:"menu_id"`
	FoodName  string `json:"food_name"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

// Cart is a row of order_table. Status "cart" means an open cart; any other
// status means the row is an order. The order_number is stable across that
// transition.
type Cart struct {
	OrderNumber    string
	Status         string
	CustomerPhone  string
	RestaurantID   int64
	RestaurantName string
	ItemsCount     int32
	Subtotal       pgtype.Numeric
	Taxes          pgtype.Numeric
	FoodItems      []LineItem
	DueDate        time.Time
	State          pgtype.Text
	City           pgtype.Text
	StreetAddress  pgtype.Text
	PostalCode     pgtype.Text
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Customer struct {
	Phone          string
	Name           string
	Email          pgtype.Text
	HashedPassword string
	CreatedAt      time.Time
}

type Restaurant struct {
	ID            int64
	Name          string
	Ratings       pgtype.Numeric
	Type          pgtype.Text
	PricingLevels pgtype.Text
}

type Address struct {
	RestaurantID  int64
	State         string
	City          string
	StreetAddress string
	PostalCode    string
	Latitude      float64
	Longitude     float64
}

// RestaurantWithAddress joins restaurant_table and address_table for the
// nearby search.
type RestaurantWithAddress struct {
	Restaurant Restaurant
	Address    Address
}

type MenuItem struct {
	MenuID       int64
	RestaurantID int64
	FoodName     string
	FoodPrice    pgtype.Numeric
	Category     pgtype.Text
}

type Payment struct {
	ID           uuid.UUID
	OrderNumber  pgtype.Text
	Amount       pgtype.Numeric
	Status       string
	ClientSecret string
	CreatedAt    time.Time
}
