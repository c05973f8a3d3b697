package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/plateful/plateful/internal/enum"
	"github.com/plateful/plateful/internal/store"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// firstOrderNumber seeds the "A" + seven digits sequence.
const firstOrderNumber = "A0000001"

// taxRate is applied to the subtotal on every cart mutation. Totals are
// always server-computed; clients only display them.
var taxRate = decimal.NewFromFloat(0.10)

// Errors returned by the cart service.
var (
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrAddressNotFound    = errors.New("restaurant address not found")
	ErrCartNotFound       = errors.New("cart not found or not open")
	ErrOrderNotFound      = errors.New("order not found")
	ErrMenuItemNotFound   = errors.New("menu item not found")
	ErrNegativeQuantity   = errors.New("quantity must be >= 0")
	ErrEmptyCart          = errors.New("cart has no items")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrStatusConflict     = errors.New("order status changed, please retry")
)

// CartStore defines the DB methods needed by the cart service.
// Satisfied by *store.Store; narrow interface for testability.
type CartStore interface {
	GetCustomerByPhone(ctx context.Context, phone string) (store.Customer, error)
	GetRestaurant(ctx context.Context, id int64) (store.Restaurant, error)
	GetAddress(ctx context.Context, restaurantID int64) (store.Address, error)
	GetMenuItem(ctx context.Context, restaurantID, menuID int64, foodName string) (store.MenuItem, error)
	GetOpenCart(ctx context.Context, phone string, restaurantID int64) (store.Cart, error)
	GetOpenCartByNumber(ctx context.Context, orderNumber string) (store.Cart, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (store.Cart, error)
	GetLastOrderNumber(ctx context.Context) (string, error)
	CreateCart(ctx context.Context, arg store.CreateCartParams) (store.Cart, error)
	UpdateCartItems(ctx context.Context, arg store.UpdateCartItemsParams) (store.Cart, error)
	UpdateOrderStatus(ctx context.Context, orderNumber, next, expectedCurrent string) (store.Cart, error)
	DeleteCart(ctx context.Context, phone string, restaurantID int64) (store.Cart, error)
	AddHistory(ctx context.Context, phone, orderNumber string) error
	ListOrdersByPhone(ctx context.Context, phone string) ([]store.Cart, error)
	ListOpenCartsByPhone(ctx context.Context, phone string) ([]store.Cart, error)
}

// CartService owns the cart lifecycle: fetch-or-create, item mutation with
// server-computed totals, checkout and status transitions, history.
type CartService struct {
	store CartStore
}

func NewCartService(s CartStore) *CartService {
	return &CartService{store: s}
}

// FetchOrCreate returns the customer's open cart for a restaurant, creating
// an empty one when none exists. A customer holds at most one open cart per
// restaurant; carts at other restaurants are left untouched.
func (s *CartService) FetchOrCreate(ctx context.Context, phone string, restaurantID int64) (*store.Cart, error) {
	if _, err := s.store.GetCustomerByPhone(ctx, phone); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	restaurant, err := s.store.GetRestaurant(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("get restaurant: %w", err)
	}

	address, err := s.store.GetAddress(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("get address: %w", err)
	}

	existing, err := s.store.GetOpenCart(ctx, phone, restaurantID)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get open cart: %w", err)
	}

	// Retry loop: concurrent creations can race on the same next order
	// number; the unique constraint arbitrates and we re-read MAX.
	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		orderNumber, err := s.nextOrderNumber(ctx)
		if err != nil {
			return nil, err
		}
		cart, err := s.store.CreateCart(ctx, store.CreateCartParams{
			OrderNumber:    orderNumber,
			CustomerPhone:  phone,
			RestaurantID:   restaurantID,
			RestaurantName: restaurant.Name,
			State:          pgtype.Text{String: address.State, Valid: true},
			City:           pgtype.Text{String: address.City, Valid: true},
			StreetAddress:  pgtype.Text{String: address.StreetAddress, Valid: true},
			PostalCode:     pgtype.Text{String: address.PostalCode, Valid: true},
		})
		if err == nil {
			return &cart, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return nil, fmt.Errorf("create cart: %w", lastErr)
}

// nextOrderNumber derives the next "A%07d" number from the highest assigned
// one.
func (s *CartService) nextOrderNumber(ctx context.Context) (string, error) {
	last, err := s.store.GetLastOrderNumber(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return firstOrderNumber, nil
		}
		return "", fmt.Errorf("get last order number: %w", err)
	}

	// Parse the full digit run, not just the padded width, so the sequence
	// keeps counting past A9999999.
	n, convErr := strconv.Atoi(strings.TrimPrefix(last, "A"))
	if !strings.HasPrefix(last, "A") || convErr != nil || n < 0 {
		// Unexpected format in the table; restart the sequence rather
		// than fail cart creation.
		return firstOrderNumber, nil
	}
	return fmt.Sprintf("A%07d", n+1), nil
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "order_table_pkey"
	}
	return false
}

// SetItemQuantity sets the absolute quantity of one line entry in an open
// cart. Quantity 0 removes the entry. The full fooditems array and the
// derived totals are recomputed and written back in one statement.
func (s *CartService) SetItemQuantity(ctx context.Context, orderNumber string, menuID int64, foodName string, quantity int32) (*store.Cart, error) {
	if quantity < 0 {
		return nil, ErrNegativeQuantity
	}

	cart, err := s.store.GetOpenCartByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	menuItem, err := s.store.GetMenuItem(ctx, cart.RestaurantID, menuID, foodName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("get menu item: %w", err)
	}

	unitPrice := numericToDecimal(menuItem.FoodPrice)
	items := setLineQuantity(cart.FoodItems, menuItem, unitPrice, quantity)

	var itemsCount int32
	subtotal := decimal.Zero
	for _, it := range items {
		itemsCount += it.Quantity
		lineTotal, perr := decimal.NewFromString(it.LineTotal)
		if perr != nil {
			return nil, fmt.Errorf("corrupt line total for %q: %w", it.FoodName, perr)
		}
		subtotal = subtotal.Add(lineTotal)
	}
	taxes := subtotal.Mul(taxRate).Round(2)

	updated, err := s.store.UpdateCartItems(ctx, store.UpdateCartItemsParams{
		OrderNumber: orderNumber,
		FoodItems:   items,
		ItemsCount:  itemsCount,
		Subtotal:    decimalToNumeric(subtotal),
		Taxes:       decimalToNumeric(taxes),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("update cart items: %w", err)
	}
	return &updated, nil
}

// setLineQuantity returns a new fooditems slice with the target item set to
// quantity, preserving insertion order. Quantity 0 drops the entry.
func setLineQuantity(items []store.LineItem, menuItem store.MenuItem, unitPrice decimal.Decimal, quantity int32) []store.LineItem {
	out := make([]store.LineItem, 0, len(items)+1)
	found := false
	for _, it := range items {
		if it.MenuID == menuItem.MenuID && it.FoodName == menuItem.FoodName {
			found = true
			if quantity == 0 {
				continue
			}
			it.Quantity = quantity
			it.UnitPrice = unitPrice.StringFixed(2)
			it.LineTotal = unitPrice.Mul(decimal.NewFromInt32(quantity)).StringFixed(2)
		}
		out = append(out, it)
	}
	if !found && quantity > 0 {
		out = append(out, store.LineItem{
			MenuID:    menuItem.MenuID,
			FoodName:  menuItem.FoodName,
			Quantity:  quantity,
			UnitPrice: unitPrice.StringFixed(2),
			LineTotal: unitPrice.Mul(decimal.NewFromInt32(quantity)).StringFixed(2),
		})
	}
	return out
}

// Checkout moves an open cart with at least one item into preparation.
// From this point the row is an order and can no longer be mutated.
func (s *CartService) Checkout(ctx context.Context, orderNumber string) (*store.Cart, error) {
	cart, err := s.store.GetOpenCartByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	if cart.ItemsCount == 0 {
		return nil, ErrEmptyCart
	}

	updated, err := s.store.UpdateOrderStatus(ctx, orderNumber, enum.StatusPreparing, enum.StatusCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("checkout cart: %w", err)
	}
	return &updated, nil
}

// UpdateStatus applies a kitchen-side status transition, validated against
// the transition table.
func (s *CartService) UpdateStatus(ctx context.Context, orderNumber, next string) (*store.Cart, error) {
	if !enum.IsOrderStatus(next) {
		return nil, ErrInvalidStatus
	}

	current, err := s.store.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if !enum.CanTransition(current.Status, next) {
		return nil, fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, current.Status, next)
	}

	updated, err := s.store.UpdateOrderStatus(ctx, orderNumber, next, current.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	return &updated, nil
}

// Delete drops a customer's open cart at a restaurant.
func (s *CartService) Delete(ctx context.Context, phone string, restaurantID int64) (*store.Cart, error) {
	cart, err := s.store.DeleteCart(ctx, phone, restaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("delete cart: %w", err)
	}
	return &cart, nil
}

// GetCart returns a customer's open cart at a restaurant.
func (s *CartService) GetCart(ctx context.Context, phone string, restaurantID int64) (*store.Cart, error) {
	cart, err := s.store.GetOpenCart(ctx, phone, restaurantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return &cart, nil
}

// GetCartByNumber returns an open cart by its order number.
func (s *CartService) GetCartByNumber(ctx context.Context, orderNumber string) (*store.Cart, error) {
	cart, err := s.store.GetOpenCartByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return &cart, nil
}

// ListCarts returns every open cart a customer holds.
func (s *CartService) ListCarts(ctx context.Context, phone string) ([]store.Cart, error) {
	carts, err := s.store.ListOpenCartsByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("list carts: %w", err)
	}
	return carts, nil
}

// AppendHistory records a placed order in the customer's history. The append
// is idempotent so a partially failed checkout pipeline can repeat it.
func (s *CartService) AppendHistory(ctx context.Context, phone, orderNumber string) error {
	if _, err := s.store.GetOrderByNumber(ctx, orderNumber); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("get order: %w", err)
	}
	if err := s.store.AddHistory(ctx, phone, orderNumber); err != nil {
		return fmt.Errorf("add history: %w", err)
	}
	return nil
}

// ListOrders returns the customer's placed orders, most recent first.
func (s *CartService) ListOrders(ctx context.Context, phone string) ([]store.Cart, error) {
	orders, err := s.store.ListOrdersByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
