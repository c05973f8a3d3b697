// Package payment collects payment for an order total. The session manager
// only sees the Authorizer shape; how the money actually moves is this
// package's business.
package payment

import (
	"context"
	"fmt"

	"github.com/plateful/plateful/internal/client"
	"github.com/shopspring/decimal"
)

// IntentsAPI is the slice of the ordering API the authorizer needs.
// Satisfied by *client.Client.
type IntentsAPI interface {
	CreatePaymentIntent(ctx context.Context, amount, orderNumber string) (*client.PaymentIntent, error)
	ConfirmPaymentIntent(ctx context.Context, intentID string) (*client.PaymentIntent, error)
}

// IntentAuthorizer drives the hosted payment-intent flow: create an intent
// for the amount, then confirm it. Implements session.Authorizer.
type IntentAuthorizer struct {
	api IntentsAPI
}

func NewIntentAuthorizer(api IntentsAPI) *IntentAuthorizer {
	return &IntentAuthorizer{api: api}
}

// Authorize charges the amount and returns the settled intent ID as the
// payment reference.
func (a *IntentAuthorizer) Authorize(ctx context.Context, amount decimal.Decimal, orderNumber string) (string, error) {
	intent, err := a.api.CreatePaymentIntent(ctx, amount.StringFixed(2), orderNumber)
	if err != nil {
		return "", fmt.Errorf("create intent: %w", err)
	}

	confirmed, err := a.api.ConfirmPaymentIntent(ctx, intent.ID)
	if err != nil {
		return "", fmt.Errorf("confirm intent %s: %w", intent.ID, err)
	}
	if confirmed.Status != "succeeded" {
		return "", fmt.Errorf("intent %s not settled: status %s", confirmed.ID, confirmed.Status)
	}
	return confirmed.ID, nil
}
