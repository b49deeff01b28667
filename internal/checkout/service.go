// Package checkout implements the checkout-to-order reconciliation flow: it
// creates hosted payment sessions with a provisional order behind each one,
// reconciles orders against signed payment webhooks, and answers the
// success-page verification read. The durable order store and the payment
// processor are the only coordination points; no ordering is assumed between
// the webhook and the browser's return.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ecomstore/checkout-service/internal/order"
	"github.com/ecomstore/checkout-service/internal/payment"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyCart    = errors.New("cart must contain at least one item")
	ErrInvalidEmail = errors.New("customer email is invalid")
)

// PaymentIncompleteError is returned by VerifySession when the processor
// reports the session as not yet paid. Distinct from a not-found order: the
// caller should render "payment not completed", not an error page.
type PaymentIncompleteError struct {
	PaymentStatus string
}

func (e *PaymentIncompleteError) Error() string {
	return fmt.Sprintf("payment not completed, status %q", e.PaymentStatus)
}

type Config struct {
	SuccessURL               string
	CancelURL                string
	Currency                 string
	AllowedShippingCountries []string
}

type CheckoutInput struct {
	Items           []order.LineItem
	Email           string
	ShippingAddress order.Address
	UserID          string
}

type CheckoutResult struct {
	SessionID   string
	RedirectURL string
	OrderID     uuid.UUID
}

type Service interface {
	CreateCheckout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
	VerifySession(ctx context.Context, sessionID string) (*order.Order, error)
}

type service struct {
	orders   order.Service
	payments payment.Client
	cfg      Config
}

func NewService(orders order.Service, payments payment.Client, cfg Config) Service {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &service{
		orders:   orders,
		payments: payments,
		cfg:      cfg,
	}
}

// CreateCheckout validates the cart, opens a hosted checkout session with the
// processor and only then persists the provisional pending order keyed by the
// session id. The ordering matters: by the time the customer can possibly
// pay, the webhook reconciler already has an order to find.
func (s *service) CreateCheckout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if len(input.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if !strings.Contains(input.Email, "@") {
		return nil, ErrInvalidEmail
	}
	if input.UserID == "" {
		input.UserID = order.GuestUserID
	}

	total := order.ComputeTotal(input.Items, 0)

	lineItems := make([]payment.LineItem, 0, len(input.Items))
	for _, item := range input.Items {
		li := payment.LineItem{
			Quantity:    item.Quantity,
			UnitAmount:  payment.MinorUnits(item.UnitPrice),
			Currency:    s.cfg.Currency,
			ProductName: item.Name,
		}
		if item.Image != "" {
			li.ProductImages = []string{item.Image}
		}
		lineItems = append(lineItems, li)
	}

	metadata, err := EncodeMetadata(SessionMetadata{
		UserID:          input.UserID,
		Email:           input.Email,
		Total:           total,
		Items:           input.Items,
		ShippingAddress: input.ShippingAddress,
	})
	if err != nil {
		return nil, err
	}

	session, err := s.payments.CreateCheckoutSession(ctx, payment.SessionParams{
		LineItems:                lineItems,
		SuccessURL:               s.cfg.SuccessURL,
		CancelURL:                s.cfg.CancelURL,
		CustomerEmail:            input.Email,
		Metadata:                 metadata,
		AllowedShippingCountries: s.cfg.AllowedShippingCountries,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", input.UserID).Msg("checkout: failed to create payment session")
		return nil, fmt.Errorf("checkout: failed to create payment session: %w", err)
	}

	created, err := s.orders.CreateOrder(ctx, &order.Order{
		UserID:          input.UserID,
		Items:           input.Items,
		Total:           total,
		Status:          order.StatusPending,
		CustomerEmail:   input.Email,
		ShippingAddress: input.ShippingAddress,
		StripeSessionID: session.ID,
	})
	if err != nil {
		log.Error().Err(err).Str("session_id", session.ID).Msg("checkout: session created but provisional order write failed")
		return nil, fmt.Errorf("checkout: failed to persist provisional order: %w", err)
	}

	log.Info().
		Stringer("order_id", created.ID).
		Str("session_id", session.ID).
		Str("user_id", input.UserID).
		Msg("checkout: session created, provisional order persisted")

	return &CheckoutResult{
		SessionID:   session.ID,
		RedirectURL: session.URL,
		OrderID:     created.ID,
	}, nil
}

// VerifySession resolves the order for a session id when the browser returns
// from the hosted payment page. The durable store is consulted first; if the
// webhook has not landed yet, the processor is asked directly and a paid
// session yields a synthesized, non-persisted order view. The reconciler
// stays the sole writer of terminal state.
func (s *service) VerifySession(ctx context.Context, sessionID string) (*order.Order, error) {
	stored, err := s.orders.GetOrderBySessionID(ctx, sessionID)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, order.ErrOrderNotFound) {
		return nil, fmt.Errorf("checkout: failed to look up order for session %s: %w", sessionID, err)
	}

	session, err := s.payments.RetrieveSession(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("checkout: failed to retrieve session from processor")
		return nil, fmt.Errorf("checkout: failed to retrieve session: %w", err)
	}

	if session.PaymentStatus != payment.PaymentStatusPaid {
		return nil, &PaymentIncompleteError{PaymentStatus: session.PaymentStatus}
	}

	return synthesizeOrder(session), nil
}

// synthesizeOrder builds a display-only paid order from the session. It gets
// a fresh id and is never written to the store.
func synthesizeOrder(session *payment.Session) *order.Order {
	id, err := uuid.NewV4()
	if err != nil {
		id = uuid.Nil
	}

	o := &order.Order{
		ID:              id,
		Status:          order.StatusPaid,
		StripeSessionID: session.ID,
		CustomerEmail:   session.CustomerEmail,
		Total:           float64(session.AmountTotal) / 100,
	}

	meta, err := DecodeMetadata(session.Metadata)
	if err != nil {
		log.Warn().Err(err).Str("session_id", session.ID).Msg("checkout: paid session has unusable metadata, serving session-level view")
		return o
	}

	o.UserID = meta.UserID
	o.Items = meta.Items
	o.Total = meta.Total
	o.ShippingAddress = meta.ShippingAddress
	if meta.Email != "" {
		o.CustomerEmail = meta.Email
	}
	return o
}
