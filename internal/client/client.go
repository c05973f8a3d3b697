package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds each request when the caller doesn't supply a
// tighter context deadline.
const DefaultTimeout = 15 * time.Second

// Client is the HTTP client for the ordering API. All methods honor
// context cancellation and map responses to the package error kinds:
// ErrNotFound, ErrUnauthorized, *ValidationError, *TransportError.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithToken sets the bearer token up front.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a client for the API at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken installs the bearer token used for authenticated endpoints.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	return c.token
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// --- Wire types ---

// LineItem is one entry in a cart's item list.
type LineItem struct {
	MenuID    int64  `json:"menu_id"`
	FoodName  string `json:"food_name"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

// Cart mirrors the server's cart resource. Money fields are fixed-2
// decimal strings.
type Cart struct {
	OrderNumber    string     `json:"order_number"`
	Status         string     `json:"status"`
	CustomerPhone  string     `json:"customer_phone"`
	RestaurantID   int64      `json:"restaurant_id"`
	RestaurantName string     `json:"restaurant_name"`
	ItemsCount     int32      `json:"items_count"`
	Subtotal       string     `json:"subtotal"`
	Taxes          string     `json:"taxes"`
	FoodItems      []LineItem `json:"fooditems"`
	DueDate        time.Time  `json:"due_date"`
	State          *string    `json:"state"`
	City           *string    `json:"city"`
	StreetAddress  *string    `json:"street_address"`
	PostalCode     *string    `json:"postal_code"`
}

// Order is a placed cart with the server-computed grand total.
type Order struct {
	Cart
	Total string `json:"total"`
}

// Restaurant is a discovery result.
type Restaurant struct {
	ID            int64    `json:"restaurant_id"`
	Name          string   `json:"restaurant_name"`
	Ratings       string   `json:"ratings"`
	Type          string   `json:"restaurant_type"`
	PricingLevels *string  `json:"pricing_levels"`
	State         string   `json:"state"`
	City          string   `json:"city"`
	StreetAddress string   `json:"street_address"`
	PostalCode    string   `json:"postal_code"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	DistanceKM    *float64 `json:"distance_km"`
}

// MenuItem is one dish on a restaurant's menu.
type MenuItem struct {
	MenuID       int64  `json:"menu_id"`
	RestaurantID int64  `json:"restaurant_id"`
	FoodName     string `json:"food_name"`
	FoodPrice    string `json:"food_price"`
	Category     string `json:"category"`
}

// Token is the response to sign-up and sign-in.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	PhoneNumber string `json:"phone_number"`
}

// PaymentIntent is a pending or settled payment.
type PaymentIntent struct {
	ID           string `json:"id"`
	OrderNumber  string `json:"order_number"`
	Amount       string `json:"amount"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
}

// --- Auth ---

// SignUp registers a new customer and returns a bearer token.
func (c *Client) SignUp(ctx context.Context, accountName, phone, password, email string) (*Token, error) {
	body := map[string]string{
		"account_name": accountName,
		"phone_number": phone,
		"password":     password,
		"email":        email,
	}
	var tok Token
	if err := c.do(ctx, http.MethodPost, "/auth/signup", body, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// SignIn exchanges credentials for a bearer token.
func (c *Client) SignIn(ctx context.Context, phone, password string) (*Token, error) {
	body := map[string]string{
		"phone_number": phone,
		"password":     password,
	}
	var tok Token
	if err := c.do(ctx, http.MethodPost, "/auth/signin", body, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// --- Carts ---

// CreateOrGetCart returns the customer's open cart for the restaurant,
// creating an empty one server-side when none exists.
func (c *Client) CreateOrGetCart(ctx context.Context, phone string, restaurantID int64) (*Cart, error) {
	body := map[string]interface{}{
		"phone_number":  phone,
		"restaurant_id": restaurantID,
	}
	var cart Cart
	if err := c.do(ctx, http.MethodPost, "/carts", body, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetCart fetches the customer's open cart for the restaurant.
// Returns ErrNotFound when no open cart exists.
func (c *Client) GetCart(ctx context.Context, phone string, restaurantID int64) (*Cart, error) {
	path := fmt.Sprintf("/carts/customer/%s/%d", url.PathEscape(phone), restaurantID)
	var cart Cart
	if err := c.do(ctx, http.MethodGet, path, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetCartByNumber fetches a cart or order by its order number.
func (c *Client) GetCartByNumber(ctx context.Context, orderNumber string) (*Cart, error) {
	var cart Cart
	if err := c.do(ctx, http.MethodGet, "/carts/"+url.PathEscape(orderNumber), nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// ListCarts returns the customer's open carts across all restaurants.
func (c *Client) ListCarts(ctx context.Context) ([]Cart, error) {
	var carts []Cart
	if err := c.do(ctx, http.MethodGet, "/customers/carts", nil, &carts); err != nil {
		return nil, err
	}
	return carts, nil
}

// SetItemQuantity sets the absolute quantity of one line entry in a cart.
// Quantity 0 removes the entry. Returns the full updated cart.
func (c *Client) SetItemQuantity(ctx context.Context, orderNumber string, menuID int64, foodName string, quantity int32) (*Cart, error) {
	body := map[string]interface{}{
		"menu_id":   menuID,
		"food_name": foodName,
		"quantity":  quantity,
	}
	path := "/carts/" + url.PathEscape(orderNumber) + "/items"
	var cart Cart
	if err := c.do(ctx, http.MethodPut, path, body, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// DeleteCart removes the customer's open cart for the restaurant.
func (c *Client) DeleteCart(ctx context.Context, phone string, restaurantID int64) (*Cart, error) {
	path := fmt.Sprintf("/carts/customer/%s/%d", url.PathEscape(phone), restaurantID)
	var cart Cart
	if err := c.do(ctx, http.MethodDelete, path, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// CheckoutCart transitions a cart to preparing. Fails with a
// *ValidationError when the cart is empty.
func (c *Client) CheckoutCart(ctx context.Context, orderNumber string) (*Cart, error) {
	path := "/carts/" + url.PathEscape(orderNumber) + "/checkout"
	var cart Cart
	if err := c.do(ctx, http.MethodPost, path, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// UpdateOrderStatus transitions a cart or order to the named status.
// Illegal transitions fail with a *ValidationError; losing a transition
// race surfaces as a *ValidationError with status 409.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderNumber, status string) (*Cart, error) {
	body := map[string]string{"status": status}
	path := "/carts/" + url.PathEscape(orderNumber) + "/status"
	var cart Cart
	if err := c.do(ctx, http.MethodPut, path, body, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// --- Customer history ---

// AppendHistory records an order in the customer's history. Recording the
// same order twice is a no-op on the server.
func (c *Client) AppendHistory(ctx context.Context, orderNumber string) error {
	body := map[string]string{"order_number": orderNumber}
	return c.do(ctx, http.MethodPost, "/customers/history", body, nil)
}

// ListOrders returns the customer's placed orders, newest first.
func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := c.do(ctx, http.MethodGet, "/customers/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// --- Restaurants ---

// NearbyRestaurants returns restaurants within radiusKM of the point,
// nearest first.
func (c *Client) NearbyRestaurants(ctx context.Context, lat, lng, radiusKM float64) ([]Restaurant, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%g", lat))
	q.Set("longitude", fmt.Sprintf("%g", lng))
	q.Set("radius", fmt.Sprintf("%g", radiusKM))

	var restaurants []Restaurant
	if err := c.do(ctx, http.MethodGet, "/restaurants?"+q.Encode(), nil, &restaurants); err != nil {
		return nil, err
	}
	return restaurants, nil
}

// GetRestaurant fetches one restaurant with its address.
func (c *Client) GetRestaurant(ctx context.Context, restaurantID int64) (*Restaurant, error) {
	var restaurant Restaurant
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/restaurants/%d", restaurantID), nil, &restaurant); err != nil {
		return nil, err
	}
	return &restaurant, nil
}

// RestaurantMenu fetches a restaurant's menu.
func (c *Client) RestaurantMenu(ctx context.Context, restaurantID int64) ([]MenuItem, error) {
	var menu []MenuItem
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/restaurants/%d/menu", restaurantID), nil, &menu); err != nil {
		return nil, err
	}
	return menu, nil
}

// --- Payments ---

// CreatePaymentIntent registers a pending payment. Amount is a decimal
// string in dollars.
func (c *Client) CreatePaymentIntent(ctx context.Context, amount, orderNumber string) (*PaymentIntent, error) {
	body := map[string]string{
		"amount":       amount,
		"order_number": orderNumber,
	}
	var intent PaymentIntent
	if err := c.do(ctx, http.MethodPost, "/payments/intent", body, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// ConfirmPaymentIntent settles a pending intent.
func (c *Client) ConfirmPaymentIntent(ctx context.Context, intentID string) (*PaymentIntent, error) {
	path := "/payments/intent/" + url.PathEscape(intentID) + "/confirm"
	var intent PaymentIntent
	if err := c.do(ctx, http.MethodPost, path, nil, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// --- Transport ---

type errorResponse struct {
	Error string `json:"error"`
}

// do performs one request and maps the response to the package error
// kinds. out may be nil when the caller ignores the body.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	op := method + " " + path

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}

	var apiErr errorResponse
	json.NewDecoder(resp.Body).Decode(&apiErr)
	msg := apiErr.Error
	if msg == "" {
		msg = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ValidationError{Status: resp.StatusCode, Message: msg}
	default:
		return &TransportError{Op: op, Err: fmt.Errorf("server error (%d): %s", resp.StatusCode, msg)}
	}
}
