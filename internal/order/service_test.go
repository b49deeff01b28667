package order_test

import (
	"context"
	"testing"

	"github.com/ecomstore/checkout-service/internal/events"
	"github.com/ecomstore/checkout-service/internal/order"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	createFunc           func(ctx context.Context, o *order.Order) error
	getByIDFunc          func(ctx context.Context, id uuid.UUID) (*order.Order, error)
	getBySessionIDFunc   func(ctx context.Context, sessionID string) (*order.Order, error)
	getByUserIDFunc      func(ctx context.Context, userID string) ([]order.Order, error)
	updateStatusFunc     func(ctx context.Context, orderID uuid.UUID, newStatus order.Status) error
	transitionStatusFunc func(ctx context.Context, orderID uuid.UUID, from, to order.Status) (bool, error)
}

func (m *mockRepository) Create(ctx context.Context, o *order.Order) error {
	return m.createFunc(ctx, o)
}

func (m *mockRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockRepository) GetBySessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	return m.getBySessionIDFunc(ctx, sessionID)
}

func (m *mockRepository) GetByUserID(ctx context.Context, userID string) ([]order.Order, error) {
	return m.getByUserIDFunc(ctx, userID)
}

func (m *mockRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus order.Status) error {
	return m.updateStatusFunc(ctx, orderID, newStatus)
}

func (m *mockRepository) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to order.Status) (bool, error) {
	return m.transitionStatusFunc(ctx, orderID, from, to)
}

func (m *mockRepository) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	return false, nil
}

func (m *mockRepository) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	return nil
}

func validItems() []order.LineItem {
	return []order.LineItem{
		{ProductID: "p1", Name: "Desk Lamp", UnitPrice: 19.99, Quantity: 2},
	}
}

func TestService_CreateOrder(t *testing.T) {
	tests := []struct {
		name       string
		order      *order.Order
		createFunc func(ctx context.Context, o *order.Order) error
		wantErrIs  error
	}{
		{
			name:       "no_items",
			order:      &order.Order{},
			createFunc: func(ctx context.Context, o *order.Order) error { return nil },
			wantErrIs:  order.ErrNoItems,
		},
		{
			name: "zero_quantity",
			order: &order.Order{
				Items: []order.LineItem{{ProductID: "p1", Name: "Desk Lamp", UnitPrice: 19.99, Quantity: 0}},
			},
			createFunc: func(ctx context.Context, o *order.Order) error { return nil },
			wantErrIs:  order.ErrNonPositiveQuantity,
		},
		{
			name: "negative_price",
			order: &order.Order{
				Items: []order.LineItem{{ProductID: "p1", Name: "Desk Lamp", UnitPrice: -1, Quantity: 1}},
			},
			createFunc: func(ctx context.Context, o *order.Order) error { return nil },
			wantErrIs:  order.ErrNegativeUnitPrice,
		},
		{
			name:       "duplicate_session",
			order:      &order.Order{Items: validItems(), StripeSessionID: "sess_1"},
			createFunc: func(ctx context.Context, o *order.Order) error { return order.ErrDuplicateSessionID },
			wantErrIs:  order.ErrDuplicateSessionID,
		},
		{
			name:       "success",
			order:      &order.Order{Items: validItems(), StripeSessionID: "sess_1"},
			createFunc: func(ctx context.Context, o *order.Order) error { return nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{createFunc: tt.createFunc}
			svc := order.NewService(repo, events.NoopPublisher{})

			created, err := svc.CreateOrder(context.Background(), tt.order)
			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, order.StatusPending, created.Status)
			assert.Equal(t, order.GuestUserID, created.UserID)
			assert.InDelta(t, 39.98, created.Total, 0.0001)
		})
	}
}

func TestService_UpdateOrderStatus(t *testing.T) {
	orderID := uuid.Must(uuid.FromString("550e8400-e29b-41d4-a716-446655440000"))

	tests := []struct {
		name          string
		currentStatus order.Status
		newStatus     order.Status
		wantErrIs     error
		wantUpdate    bool
	}{
		{name: "pending_to_paid", currentStatus: order.StatusPending, newStatus: order.StatusPaid, wantUpdate: true},
		{name: "pending_to_failed", currentStatus: order.StatusPending, newStatus: order.StatusFailed, wantUpdate: true},
		{name: "paid_to_processing", currentStatus: order.StatusPaid, newStatus: order.StatusProcessing, wantUpdate: true},
		{name: "shipped_to_delivered", currentStatus: order.StatusShipped, newStatus: order.StatusDelivered, wantUpdate: true},
		{name: "same_status_noop", currentStatus: order.StatusPaid, newStatus: order.StatusPaid, wantUpdate: false},
		{name: "paid_back_to_pending", currentStatus: order.StatusPaid, newStatus: order.StatusPending, wantErrIs: order.ErrInvalidTransition},
		{name: "paid_to_failed", currentStatus: order.StatusPaid, newStatus: order.StatusFailed, wantErrIs: order.ErrInvalidTransition},
		{name: "failed_to_paid", currentStatus: order.StatusFailed, newStatus: order.StatusPaid, wantErrIs: order.ErrInvalidTransition},
		{name: "delivered_is_final", currentStatus: order.StatusDelivered, newStatus: order.StatusShipped, wantErrIs: order.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated := false
			repo := &mockRepository{
				getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
					return &order.Order{ID: orderID, Status: tt.currentStatus}, nil
				},
				updateStatusFunc: func(ctx context.Context, id uuid.UUID, newStatus order.Status) error {
					updated = true
					assert.Equal(t, tt.newStatus, newStatus)
					return nil
				},
			}
			svc := order.NewService(repo, events.NoopPublisher{})

			err := svc.UpdateOrderStatus(context.Background(), orderID, tt.newStatus)
			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantUpdate, updated)
		})
	}
}

func TestService_UpdateOrderStatus_NotFound(t *testing.T) {
	repo := &mockRepository{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
			return nil, order.ErrOrderNotFound
		},
	}
	svc := order.NewService(repo, events.NoopPublisher{})

	err := svc.UpdateOrderStatus(context.Background(), uuid.Must(uuid.NewV4()), order.StatusPaid)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestService_CancelOrder(t *testing.T) {
	orderID := uuid.Must(uuid.FromString("550e8400-e29b-41d4-a716-446655440000"))

	tests := []struct {
		name          string
		currentStatus order.Status
		transitioned  bool
		wantErrIs     error
	}{
		{name: "pending_cancellable", currentStatus: order.StatusPending, transitioned: true},
		{name: "processing_cancellable", currentStatus: order.StatusProcessing, transitioned: true},
		{name: "paid_not_cancellable", currentStatus: order.StatusPaid, wantErrIs: order.ErrCancelNotAllowed},
		{name: "shipped_not_cancellable", currentStatus: order.StatusShipped, wantErrIs: order.ErrCancelNotAllowed},
		{name: "lost_race_to_webhook", currentStatus: order.StatusPending, transitioned: false, wantErrIs: order.ErrCancelNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{
				getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
					return &order.Order{ID: orderID, Status: tt.currentStatus}, nil
				},
				transitionStatusFunc: func(ctx context.Context, id uuid.UUID, from, to order.Status) (bool, error) {
					assert.Equal(t, tt.currentStatus, from)
					assert.Equal(t, order.StatusCancelled, to)
					return tt.transitioned, nil
				},
			}
			svc := order.NewService(repo, events.NoopPublisher{})

			err := svc.CancelOrder(context.Background(), orderID)
			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
