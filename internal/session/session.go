// Package session manages one customer's cart for one restaurant against
// the server-owned cart resource. The server is the source of truth: the
// session keeps a local snapshot for reads and rebuilds it wholesale from
// every successful mutation response, never by patching it locally.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/plateful/plateful/internal/client"
	"github.com/shopspring/decimal"
)

// ServiceFee is added on top of the server-reported subtotal and taxes at
// checkout. The server does not know about it; the checkout screen has
// always shown it as a separate line.
var ServiceFee = decimal.NewFromFloat(0.99)

// State is the session lifecycle state.
type State int

const (
	// Absent: no cart has been opened yet.
	Absent State = iota
	// Open: a cart exists and accepts item mutations.
	Open
	// CheckingOut: payment is in flight; mutations are rejected.
	CheckingOut
	// OrderPlaced: checkout finished (fully or partially); terminal.
	OrderPlaced
	// Discarded: the cart was deleted; terminal.
	Discarded
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Open:
		return "open"
	case CheckingOut:
		return "checking_out"
	case OrderPlaced:
		return "order_placed"
	case Discarded:
		return "discarded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrEmptyCart is returned by Checkout before any network call when the
// cached cart has no items.
var ErrEmptyCart = errors.New("cart is empty")

// StateError reports an operation attempted in the wrong session state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: not allowed in state %s", e.Op, e.State)
}

// PaymentError reports a declined or failed payment. The cart is untouched
// and the session stays Open.
type PaymentError struct {
	Err error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment failed: %v", e.Err)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// Checkout pipeline steps, used in PartialCheckoutError.
const (
	StepHistory    = "append_history"
	StepTransition = "cart_transition"
)

// PartialCheckoutError means the payment was captured but a later pipeline
// step failed. The customer has been charged; this error carries everything
// a reconciliation flow needs and must never be retried blindly.
type PartialCheckoutError struct {
	Step        string
	OrderNumber string
	PaymentRef  string
	Err         error
}

func (e *PartialCheckoutError) Error() string {
	return fmt.Sprintf("checkout incomplete after payment (step %s, order %s, payment %s): %v",
		e.Step, e.OrderNumber, e.PaymentRef, e.Err)
}

func (e *PartialCheckoutError) Unwrap() error {
	return e.Err
}

// CartAPI is the slice of the ordering API the session needs.
// Satisfied by *client.Client.
type CartAPI interface {
	CreateOrGetCart(ctx context.Context, phone string, restaurantID int64) (*client.Cart, error)
	GetCartByNumber(ctx context.Context, orderNumber string) (*client.Cart, error)
	SetItemQuantity(ctx context.Context, orderNumber string, menuID int64, foodName string, quantity int32) (*client.Cart, error)
	DeleteCart(ctx context.Context, phone string, restaurantID int64) (*client.Cart, error)
	CheckoutCart(ctx context.Context, orderNumber string) (*client.Cart, error)
	AppendHistory(ctx context.Context, orderNumber string) error
}

// Authorizer collects payment for an amount and returns an opaque payment
// reference. Implementations live in internal/payment.
type Authorizer interface {
	Authorize(ctx context.Context, amount decimal.Decimal, orderNumber string) (string, error)
}

type itemKey struct {
	MenuID   int64
	FoodName string
}

// Session is one customer's cart session for one restaurant. Safe for
// concurrent use; adjustments to the same item serialize, adjustments to
// different items run independently.
type Session struct {
	api          CartAPI
	phone        string
	restaurantID int64

	mu    sync.Mutex
	state State
	cart  *client.Cart
	// inflight holds a gate per item with a mutation on the wire. The
	// channel closes when the mutation settles.
	inflight map[itemKey]chan struct{}
}

// New creates a session in the Absent state.
func New(api CartAPI, phone string, restaurantID int64) *Session {
	return &Session{
		api:          api,
		phone:        phone,
		restaurantID: restaurantID,
		state:        Absent,
		inflight:     make(map[itemKey]chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cart returns a copy of the cached cart snapshot, or nil before Open.
func (s *Session) Cart() *client.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCart(s.cart)
}

// Quantity returns the cached quantity of one item. Zero when absent.
func (s *Session) Quantity(menuID int64, foodName string) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cachedQuantity(s.cart, itemKey{menuID, foodName})
}

// Open fetches the customer's open cart for the restaurant, creating an
// empty one server-side when none exists, and moves the session to Open.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Absent {
		st := s.state
		s.mu.Unlock()
		return &StateError{Op: "open", State: st}
	}
	s.mu.Unlock()

	cart, err := s.api.CreateOrGetCart(ctx, s.phone, s.restaurantID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = cart
	s.state = Open
	return nil
}

// AdjustItem applies a relative quantity change (+1, -1, ...) to one item
// and returns the item's new quantity. The target quantity is computed
// from the snapshot current when this adjustment's turn comes, clamped at
// zero. A clamp that lands on the current quantity is a local no-op and
// makes no network call. The absolute target is sent to the server; the
// snapshot is replaced from the response only on success.
func (s *Session) AdjustItem(ctx context.Context, menuID int64, foodName string, delta int32) (int32, error) {
	key := itemKey{MenuID: menuID, FoodName: foodName}

	s.mu.Lock()
	for {
		if s.state != Open {
			st := s.state
			s.mu.Unlock()
			return 0, &StateError{Op: "adjust_item", State: st}
		}
		gate, busy := s.inflight[key]
		if !busy {
			break
		}
		// Another adjustment of this item is on the wire. Wait for it to
		// settle, then recompute against the fresh snapshot.
		s.mu.Unlock()
		select {
		case <-gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		s.mu.Lock()
	}

	current := cachedQuantity(s.cart, key)
	target := current + delta
	if target < 0 {
		target = 0
	}
	if target == current {
		s.mu.Unlock()
		return current, nil
	}

	gate := make(chan struct{})
	s.inflight[key] = gate
	orderNumber := s.cart.OrderNumber
	s.mu.Unlock()

	cart, err := s.api.SetItemQuantity(ctx, orderNumber, menuID, foodName, target)

	s.mu.Lock()
	delete(s.inflight, key)
	close(gate)
	if err != nil {
		// Snapshot stays as it was; the server never applied the change.
		s.mu.Unlock()
		return 0, err
	}
	// Discard or Checkout may have flipped the state while this mutation was
	// on the wire; a terminal session must not get its snapshot back.
	if s.state == Open {
		s.cart = cart
	}
	s.mu.Unlock()
	return target, nil
}

// Discard deletes the cart and moves the session to Discarded. A cart the
// server no longer has counts as success.
func (s *Session) Discard(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Open {
		st := s.state
		s.mu.Unlock()
		return &StateError{Op: "discard", State: st}
	}
	s.mu.Unlock()

	_, err := s.api.DeleteCart(ctx, s.phone, s.restaurantID)
	if err != nil && !errors.Is(err, client.ErrNotFound) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Discarded
	s.cart = nil
	return nil
}

// Checkout runs the payment and order-placement pipeline:
//
//	refetch cart -> authorize payment -> append history -> place order
//
// An empty cached cart fails with ErrEmptyCart before any network call.
// A failed payment leaves the cart untouched and the session Open. Once
// payment is captured the session is OrderPlaced no matter what; a failure
// in a later step surfaces as *PartialCheckoutError.
func (s *Session) Checkout(ctx context.Context, authorizer Authorizer) (*client.Cart, error) {
	s.mu.Lock()
	if s.state != Open {
		st := s.state
		s.mu.Unlock()
		return nil, &StateError{Op: "checkout", State: st}
	}
	if s.cart == nil || s.cart.ItemsCount == 0 {
		s.mu.Unlock()
		return nil, ErrEmptyCart
	}
	s.state = CheckingOut
	orderNumber := s.cart.OrderNumber
	s.mu.Unlock()

	fail := func(err error) (*client.Cart, error) {
		s.mu.Lock()
		s.state = Open
		s.mu.Unlock()
		return nil, err
	}

	// Refetch so the charge reflects what the server will actually place,
	// not a stale snapshot.
	cart, err := s.api.GetCartByNumber(ctx, orderNumber)
	if err != nil {
		return fail(err)
	}
	s.mu.Lock()
	s.cart = cart
	s.mu.Unlock()
	if cart.ItemsCount == 0 {
		return fail(ErrEmptyCart)
	}

	amount, err := orderTotal(cart)
	if err != nil {
		return fail(err)
	}

	paymentRef, err := authorizer.Authorize(ctx, amount, orderNumber)
	if err != nil {
		return fail(&PaymentError{Err: err})
	}

	// Payment captured. From here the session is OrderPlaced regardless of
	// what the rest of the pipeline does.
	s.mu.Lock()
	s.state = OrderPlaced
	s.mu.Unlock()

	if err := s.api.AppendHistory(ctx, orderNumber); err != nil {
		return nil, &PartialCheckoutError{
			Step:        StepHistory,
			OrderNumber: orderNumber,
			PaymentRef:  paymentRef,
			Err:         err,
		}
	}

	placed, err := s.api.CheckoutCart(ctx, orderNumber)
	if err != nil {
		return nil, &PartialCheckoutError{
			Step:        StepTransition,
			OrderNumber: orderNumber,
			PaymentRef:  paymentRef,
			Err:         err,
		}
	}

	s.mu.Lock()
	s.cart = placed
	s.mu.Unlock()
	return copyCart(placed), nil
}

// Total returns what Checkout would charge for the cached cart:
// subtotal + taxes + ServiceFee.
func (s *Session) Total() (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cart == nil {
		return decimal.Zero, &StateError{Op: "total", State: s.state}
	}
	return orderTotal(s.cart)
}

func orderTotal(cart *client.Cart) (decimal.Decimal, error) {
	subtotal, err := decimal.NewFromString(cart.Subtotal)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse subtotal %q: %w", cart.Subtotal, err)
	}
	taxes, err := decimal.NewFromString(cart.Taxes)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse taxes %q: %w", cart.Taxes, err)
	}
	return subtotal.Add(taxes).Add(ServiceFee), nil
}

func cachedQuantity(cart *client.Cart, key itemKey) int32 {
	if cart == nil {
		return 0
	}
	for _, it := range cart.FoodItems {
		if it.MenuID == key.MenuID && it.FoodName == key.FoodName {
			return it.Quantity
		}
	}
	return 0
}

func copyCart(cart *client.Cart) *client.Cart {
	if cart == nil {
		return nil
	}
	cp := *cart
	cp.FoodItems = make([]client.LineItem, len(cart.FoodItems))
	copy(cp.FoodItems, cart.FoodItems)
	return &cp
}
