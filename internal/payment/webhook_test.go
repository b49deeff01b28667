package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"

var completedPayload = []byte(`{
	"id": "evt_1",
	"type": "checkout.session.completed",
	"data": {
		"object": {
			"id": "sess_1",
			"payment_status": "paid",
			"amount_total": 3998,
			"metadata": {"v": "1"}
		}
	}
}`)

func TestConstructEvent_Valid(t *testing.T) {
	header := SignPayload(completedPayload, testSecret, time.Now())

	event, err := ConstructEvent(completedPayload, header, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventCheckoutSessionCompleted, event.Type)

	session, err := event.CheckoutSession()
	require.NoError(t, err)
	assert.Equal(t, "sess_1", session.ID)
	assert.Equal(t, PaymentStatusPaid, session.PaymentStatus)
	assert.Equal(t, int64(3998), session.AmountTotal)
}

func TestConstructEvent_Rejections(t *testing.T) {
	validHeader := SignPayload(completedPayload, testSecret, time.Now())

	tests := []struct {
		name    string
		payload []byte
		header  string
	}{
		{name: "tampered_body", payload: []byte(`{"id":"evt_1","type":"tampered"}`), header: validHeader},
		{name: "wrong_secret", payload: completedPayload, header: SignPayload(completedPayload, "whsec_other", time.Now())},
		{name: "missing_header", payload: completedPayload, header: ""},
		{name: "malformed_header", payload: completedPayload, header: "not-a-signature"},
		{name: "no_signature_scheme", payload: completedPayload, header: "t=12345"},
		{name: "tampered_signature", payload: completedPayload, header: validHeader[:len(validHeader)-4] + "beef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConstructEvent(tt.payload, tt.header, testSecret)
			assert.ErrorIs(t, err, ErrSignatureInvalid)
		})
	}
}

func TestConstructEvent_StaleTimestamp(t *testing.T) {
	now := time.Now()
	header := SignPayload(completedPayload, testSecret, now.Add(-10*time.Minute))

	_, err := constructEventAt(completedPayload, header, testSecret, now, DefaultTolerance)
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	// Within tolerance the same delivery is accepted.
	_, err = constructEventAt(completedPayload, header, testSecret, now.Add(-8*time.Minute), DefaultTolerance)
	assert.NoError(t, err)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1999), MinorUnits(19.99))
	assert.Equal(t, int64(1000), MinorUnits(10))
	assert.Equal(t, int64(10), MinorUnits(0.1))
	assert.Equal(t, int64(0), MinorUnits(0))
}
