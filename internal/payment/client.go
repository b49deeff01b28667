// Package payment talks to the hosted payment processor: creating and
// retrieving checkout sessions and verifying webhook signatures. Amounts on
// the wire are integer minor units (cents).
package payment

import (
	"context"
	"fmt"
	"math"
)

// PaymentStatusPaid is the processor's payment_status value for a settled
// session.
const PaymentStatusPaid = "paid"

type LineItem struct {
	Quantity           int
	UnitAmount         int64 // minor units
	Currency           string
	ProductName        string
	ProductDescription string
	ProductImages      []string
}

type SessionParams struct {
	LineItems                []LineItem
	SuccessURL               string
	CancelURL                string
	CustomerEmail            string
	Metadata                 map[string]string
	AllowedShippingCountries []string
}

// Session is the subset of the processor's checkout session this service
// reads. PaymentStatus, AmountTotal and Metadata are only trustworthy when
// the session came from the processor directly or from a verified webhook.
type Session struct {
	ID            string
	URL           string
	PaymentStatus string
	AmountTotal   int64
	CustomerEmail string
	Metadata      map[string]string
}

type Client interface {
	CreateCheckoutSession(ctx context.Context, params SessionParams) (*Session, error)
	RetrieveSession(ctx context.Context, id string) (*Session, error)
}

// Error is a failure reported by the processor's API. The message is kept for
// diagnostics and surfaced to the caller as an internal error.
type Error struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *Error) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("payment: %s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("payment: %s", e.Message)
}

// MinorUnits converts a decimal price to the processor's integer minor-unit
// representation. The rounding is lossy; every recomputation of an amount
// must go through this same conversion.
func MinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}
