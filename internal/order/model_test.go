package order_test

import (
	"testing"

	"github.com/ecomstore/checkout-service/internal/order"
	"github.com/stretchr/testify/assert"
)

func TestComputeTotal(t *testing.T) {
	tests := []struct {
		name     string
		items    []order.LineItem
		discount float64
		want     float64
	}{
		{
			name: "single_line",
			items: []order.LineItem{
				{UnitPrice: 19.99, Quantity: 2},
			},
			want: 39.98,
		},
		{
			name: "multiple_lines",
			items: []order.LineItem{
				{UnitPrice: 10, Quantity: 1},
				{UnitPrice: 2.5, Quantity: 4},
			},
			want: 20,
		},
		{
			name: "discount_applied",
			items: []order.LineItem{
				{UnitPrice: 50, Quantity: 1},
			},
			discount: 10,
			want:     40,
		},
		{
			name: "discount_clamped_to_zero",
			items: []order.LineItem{
				{UnitPrice: 5, Quantity: 1},
			},
			discount: 20,
			want:     0,
		},
		{
			name: "empty_cart",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, order.ComputeTotal(tt.items, tt.discount), 0.0001)
		})
	}
}

func TestStatus_IsPaymentTerminal(t *testing.T) {
	assert.True(t, order.StatusPaid.IsPaymentTerminal())
	assert.True(t, order.StatusFailed.IsPaymentTerminal())
	assert.False(t, order.StatusPending.IsPaymentTerminal())
	assert.False(t, order.StatusCancelled.IsPaymentTerminal())
}
