package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusPaid       Status = "paid"
	StatusFailed     Status = "failed"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

// IsPaymentTerminal reports whether the reconciliation path makes no further
// transition from this status. Once an order is paid or failed, webhook
// deliveries must not move it again.
func (s Status) IsPaymentTerminal() bool {
	return s == StatusPaid || s == StatusFailed
}

// GuestUserID is the sentinel owner for orders placed without an account.
const GuestUserID = "guest"

type LineItem struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	Image     string    `json:"image,omitempty"`
	UnitPrice float64   `json:"unit_price"`
	Quantity  int       `json:"quantity"`
}

type Address struct {
	Name       string `json:"name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

type Order struct {
	ID              uuid.UUID  `json:"id"`
	UserID          string     `json:"user_id"`
	Items           []LineItem `json:"items"`
	Total           float64    `json:"total"`
	Status          Status     `json:"status"`
	CustomerEmail   string     `json:"customer_email"`
	ShippingAddress Address    `json:"shipping_address"`
	StripeSessionID string     `json:"stripe_session_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
}

// ComputeTotal sums unit price times quantity over the items, subtracts the
// discount and clamps the result at zero. The total is set once at creation
// and never recomputed on the stored order.
func ComputeTotal(items []LineItem, discount float64) float64 {
	total := 0.0
	for _, item := range items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	total -= discount
	if total < 0 {
		return 0
	}
	return total
}
