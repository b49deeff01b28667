package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecomstore/checkout-service/internal/events"
	"github.com/ecomstore/checkout-service/internal/order"
	"github.com/ecomstore/checkout-service/internal/payment"
	"github.com/rs/zerolog/log"
)

// Reconciler moves provisional orders to their terminal payment state from
// at-least-once webhook deliveries. It is the sole writer of paid/failed on
// the durable store; every path through HandleWebhook is idempotent so
// duplicated and racing deliveries converge on the same state.
type Reconciler struct {
	orders        order.Repository
	publisher     events.Publisher
	webhookSecret string
}

func NewReconciler(orders order.Repository, publisher events.Publisher, webhookSecret string) *Reconciler {
	return &Reconciler{
		orders:        orders,
		publisher:     publisher,
		webhookSecret: webhookSecret,
	}
}

// HandleWebhook verifies and applies one webhook delivery.
//
// A payment.ErrSignatureInvalid return means the payload was not
// authenticated and nothing was touched; the handler answers 400 so the
// processor retries elsewhere. Any other error is a store failure after
// successful verification: the handler answers 500 and the processor's retry
// re-enters here, which is safe because handling is idempotent.
func (r *Reconciler) HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) error {
	event, err := payment.ConstructEvent(rawBody, signatureHeader, r.webhookSecret)
	if err != nil {
		if errors.Is(err, payment.ErrSignatureInvalid) {
			log.Warn().Err(err).Msg("reconciler: rejected webhook with invalid signature")
			return err
		}
		return fmt.Errorf("reconciler: failed to construct event: %w", err)
	}

	var outcome order.Status
	var eventType string
	switch event.Type {
	case payment.EventCheckoutSessionCompleted:
		outcome = order.StatusPaid
		eventType = events.TypeOrderPaid
	case payment.EventCheckoutSessionPaymentFailed:
		outcome = order.StatusFailed
		eventType = events.TypeOrderPaymentFailed
	default:
		log.Debug().Str("event_type", event.Type).Str("event_id", event.ID).Msg("reconciler: ignoring event type")
		return nil
	}

	processed, err := r.orders.IsEventProcessed(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("reconciler: failed to check event %s: %w", event.ID, err)
	}
	if processed {
		log.Info().Str("event_id", event.ID).Msg("reconciler: event already processed")
		return nil
	}

	session, err := event.CheckoutSession()
	if err != nil {
		return fmt.Errorf("reconciler: %w", err)
	}

	applied, err := r.applyOutcome(ctx, session, outcome)
	if err != nil {
		return err
	}

	if applied != nil {
		ev := events.OrderEvent{
			Type:       eventType,
			OrderID:    applied.ID.String(),
			UserID:     applied.UserID,
			SessionID:  session.ID,
			Total:      applied.Total,
			OccurredAt: time.Now().UTC(),
		}
		// Event publishing is best-effort; the order state is already durable.
		if err := r.publisher.PublishOrderEvent(ctx, ev); err != nil {
			log.Error().Err(err).Str("event_id", event.ID).Stringer("order_id", applied.ID).Msg("reconciler: failed to publish order event")
		}
	}

	if err := r.orders.MarkEventProcessed(ctx, event.ID, event.Type); err != nil {
		// The processor will redeliver; the monotonic transition absorbs it.
		return fmt.Errorf("reconciler: %w", err)
	}
	return nil
}

// applyOutcome moves the order for the session to the outcome status. The
// returned order is non-nil only when this delivery actually changed state.
func (r *Reconciler) applyOutcome(ctx context.Context, session *payment.Session, outcome order.Status) (*order.Order, error) {
	existing, err := r.orders.GetBySessionID(ctx, session.ID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return r.reconstructOrder(ctx, session, outcome)
		}
		return nil, fmt.Errorf("reconciler: failed to look up order for session %s: %w", session.ID, err)
	}

	if existing.Status.IsPaymentTerminal() {
		log.Info().
			Stringer("order_id", existing.ID).
			Stringer("status", existing.Status).
			Str("session_id", session.ID).
			Msg("reconciler: order already in terminal payment state")
		return nil, nil
	}

	// Conditional on pending so two racing deliveries apply at most once and
	// a terminal state can never regress.
	changed, err := r.orders.TransitionStatus(ctx, existing.ID, order.StatusPending, outcome)
	if err != nil {
		return nil, fmt.Errorf("reconciler: failed to update order %s: %w", existing.ID, err)
	}
	if !changed {
		log.Info().Stringer("order_id", existing.ID).Str("session_id", session.ID).Msg("reconciler: order transitioned concurrently")
		return nil, nil
	}

	existing.Status = outcome
	log.Info().
		Stringer("order_id", existing.ID).
		Str("session_id", session.ID).
		Stringer("status", outcome).
		Msg("reconciler: order reconciled")
	return existing, nil
}

// reconstructOrder rebuilds an order from the session's verified metadata
// when no local record exists, e.g. the provisional write was lost after
// session creation. Sessions this system never created carry no usable
// metadata and are acknowledged with a warning so the processor stops
// retrying them.
func (r *Reconciler) reconstructOrder(ctx context.Context, session *payment.Session, outcome order.Status) (*order.Order, error) {
	meta, err := DecodeMetadata(session.Metadata)
	if err != nil {
		log.Warn().Err(err).Str("session_id", session.ID).Msg("reconciler: no local order and no usable session metadata, dropping event")
		return nil, nil
	}

	reconstructed := &order.Order{
		UserID:          meta.UserID,
		Items:           meta.Items,
		Total:           meta.Total,
		Status:          outcome,
		CustomerEmail:   meta.Email,
		ShippingAddress: meta.ShippingAddress,
		StripeSessionID: session.ID,
	}

	if err := r.orders.Create(ctx, reconstructed); err != nil {
		if errors.Is(err, order.ErrDuplicateSessionID) {
			// Lost the create race against another delivery or the initiator.
			log.Info().Str("session_id", session.ID).Msg("reconciler: order appeared concurrently during reconstruction")
			return nil, nil
		}
		return nil, fmt.Errorf("reconciler: failed to reconstruct order for session %s: %w", session.ID, err)
	}

	log.Warn().
		Stringer("order_id", reconstructed.ID).
		Str("session_id", session.ID).
		Stringer("status", outcome).
		Msg("reconciler: order reconstructed from session metadata")
	return reconstructed, nil
}
