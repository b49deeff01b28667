package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecomstore/checkout-service/internal/events"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

// allowedTransitions is the full lifecycle state machine. The webhook
// reconciliation path only ever uses pending -> paid and pending -> failed;
// the rest belongs to the administrative fulfilment path and to
// user-initiated cancellation.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusPaid:      true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusPaid: {
		StatusProcessing: true,
	},
	StatusProcessing: {
		StatusShipped:   true,
		StatusCancelled: true,
	},
	StatusShipped: {
		StatusDelivered: true,
	},
	StatusDelivered: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

var (
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrCancelNotAllowed    = errors.New("order can no longer be cancelled")
	ErrNoItems             = errors.New("order must contain at least one item")
	ErrNegativeUnitPrice   = errors.New("order item unit price cannot be negative")
	ErrNonPositiveQuantity = errors.New("order item quantity must be greater than zero")
)

type Service interface {
	CreateOrder(ctx context.Context, orderInput *Order) (*Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrderBySessionID(ctx context.Context, sessionID string) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID string) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error
	CancelOrder(ctx context.Context, orderID uuid.UUID) error
}

type service struct {
	orderRepo Repository
	publisher events.Publisher
}

func NewService(orderRepo Repository, publisher events.Publisher) Service {
	return &service{orderRepo: orderRepo, publisher: publisher}
}

func (s *service) CreateOrder(ctx context.Context, orderInput *Order) (*Order, error) {
	if len(orderInput.Items) == 0 {
		log.Warn().Msg("service: attempt to create order with no items")
		return nil, ErrNoItems
	}

	for i := range orderInput.Items {
		item := &orderInput.Items[i]
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("service: product %s: %w", item.ProductID, ErrNonPositiveQuantity)
		}
		if item.UnitPrice < 0 {
			return nil, fmt.Errorf("service: product %s: %w", item.ProductID, ErrNegativeUnitPrice)
		}
	}

	if orderInput.UserID == "" {
		orderInput.UserID = GuestUserID
	}
	if orderInput.Status == "" {
		orderInput.Status = StatusPending
	}
	if orderInput.Total == 0 {
		orderInput.Total = ComputeTotal(orderInput.Items, 0)
	}

	if err := s.orderRepo.Create(ctx, orderInput); err != nil {
		if errors.Is(err, ErrDuplicateSessionID) {
			return nil, err
		}
		log.Error().Err(err).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().Stringer("order_id", orderInput.ID).Str("user_id", orderInput.UserID).Msg("service: order created")
	return orderInput, nil
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	return o, nil
}

func (s *service) GetOrderBySessionID(ctx context.Context, sessionID string) (*Order, error) {
	o, err := s.orderRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Str("session_id", sessionID).Msg("service: failed to fetch order by session id")
		return nil, fmt.Errorf("service: failed to fetch order by session id: %w", err)
	}
	return o, nil
}

func (s *service) GetOrdersByUserID(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.orderRepo.GetByUserID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("service: failed to fetch user orders")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}
	return orders, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus Status) error {
	current, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("service: failed to get order for status update: %w", err)
	}

	// Same-state updates are a no-op, not an error. Duplicate signals must
	// be absorbed silently.
	if current.Status == newStatus {
		log.Info().Stringer("order_id", orderID).Stringer("status", newStatus).Msg("service: order already in requested status")
		return nil
	}

	if !allowedTransitions[current.Status][newStatus] {
		log.Warn().
			Stringer("order_id", current.ID).
			Stringer("current_status", current.Status).
			Stringer("new_status", newStatus).
			Msg("service: invalid status transition attempt")
		return fmt.Errorf("service: transition from %s to %s: %w", current.Status, newStatus, ErrInvalidTransition)
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, newStatus); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Stringer("old_status", current.Status).Stringer("new_status", newStatus).Msg("service: order status updated")
	return nil
}

func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	current, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("service: failed to get order for cancellation: %w", err)
	}

	if current.Status != StatusPending && current.Status != StatusProcessing {
		return fmt.Errorf("service: order %s is %s: %w", orderID, current.Status, ErrCancelNotAllowed)
	}

	// Conditional on the status observed above so a webhook landing between
	// the read and the write wins instead of being silently overwritten.
	changed, err := s.orderRepo.TransitionStatus(ctx, orderID, current.Status, StatusCancelled)
	if err != nil {
		return fmt.Errorf("service: failed to cancel order: %w", err)
	}
	if !changed {
		return fmt.Errorf("service: order %s changed concurrently: %w", orderID, ErrCancelNotAllowed)
	}

	ev := events.OrderEvent{
		Type:       events.TypeOrderCancelled,
		OrderID:    orderID.String(),
		UserID:     current.UserID,
		SessionID:  current.StripeSessionID,
		Total:      current.Total,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.PublishOrderEvent(ctx, ev); err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to publish cancellation event")
	}

	log.Info().Stringer("order_id", orderID).Msg("service: order cancelled")
	return nil
}
