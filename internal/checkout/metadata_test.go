package checkout

import (
	"testing"

	"github.com/ecomstore/checkout-service/internal/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_Roundtrip(t *testing.T) {
	in := SessionMetadata{
		UserID: "user-42",
		Email:  "a@b.com",
		Total:  39.98,
		Items: []order.LineItem{
			{ProductID: "p1", Name: "Desk Lamp", Image: "https://img.example.com/lamp.png", UnitPrice: 19.99, Quantity: 2},
		},
		ShippingAddress: order.Address{
			Name:       "Ada Lovelace",
			Street:     "1 Analytical Way",
			City:       "London",
			PostalCode: "EC1A 1BB",
		},
	}

	bag, err := EncodeMetadata(in)
	require.NoError(t, err)
	assert.Equal(t, "1", bag["v"])

	out, err := DecodeMetadata(bag)
	require.NoError(t, err)
	assert.Equal(t, in.UserID, out.UserID)
	assert.Equal(t, in.Email, out.Email)
	assert.InDelta(t, in.Total, out.Total, 0.0001)
	assert.Equal(t, in.Items, out.Items)
	assert.Equal(t, in.ShippingAddress, out.ShippingAddress)
}

func TestDecodeMetadata_Rejections(t *testing.T) {
	valid, err := EncodeMetadata(SessionMetadata{
		UserID: "guest",
		Email:  "a@b.com",
		Total:  10,
		Items:  []order.LineItem{{ProductID: "p1", Name: "Lamp", UnitPrice: 10, Quantity: 1}},
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(bag map[string]string)
	}{
		{name: "unknown_version", mutate: func(bag map[string]string) { bag["v"] = "2" }},
		{name: "missing_version", mutate: func(bag map[string]string) { delete(bag, "v") }},
		{name: "corrupt_cart", mutate: func(bag map[string]string) { bag["cart"] = "{not json" }},
		{name: "corrupt_total", mutate: func(bag map[string]string) { bag["total"] = "a lot" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bag := make(map[string]string, len(valid))
			for k, v := range valid {
				bag[k] = v
			}
			tt.mutate(bag)

			_, err := DecodeMetadata(bag)
			assert.Error(t, err)
		})
	}
}

func TestDecodeMetadata_EmptyBag(t *testing.T) {
	_, err := DecodeMetadata(nil)
	assert.Error(t, err)

	_, err = DecodeMetadata(map[string]string{})
	assert.Error(t, err)
}
