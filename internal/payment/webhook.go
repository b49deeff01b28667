package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook event types this service reacts to.
const (
	EventCheckoutSessionCompleted     = "checkout.session.completed"
	EventCheckoutSessionPaymentFailed = "checkout.session.async_payment_failed"
)

// ErrSignatureInvalid means the webhook payload could not be authenticated.
// Nothing downstream of verification may run when this is returned.
var ErrSignatureInvalid = errors.New("webhook signature verification failed")

// DefaultTolerance bounds how old a signed webhook timestamp may be before it
// is rejected as a replay.
const DefaultTolerance = 5 * time.Minute

// Event is a verified webhook notification.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutSession decodes the event payload as a checkout session object.
func (e *Event) CheckoutSession() (*Session, error) {
	var obj struct {
		ID            string            `json:"id"`
		PaymentStatus string            `json:"payment_status"`
		AmountTotal   int64             `json:"amount_total"`
		Metadata      map[string]string `json:"metadata"`
		CustomerDetails struct {
			Email string `json:"email"`
		} `json:"customer_details"`
	}
	if err := json.Unmarshal(e.Data.Object, &obj); err != nil {
		return nil, fmt.Errorf("payment: failed to decode checkout session from event %s: %w", e.ID, err)
	}
	return &Session{
		ID:            obj.ID,
		PaymentStatus: obj.PaymentStatus,
		AmountTotal:   obj.AmountTotal,
		CustomerEmail: obj.CustomerDetails.Email,
		Metadata:      obj.Metadata,
	}, nil
}

// ConstructEvent verifies the signature header against the shared signing
// secret and parses the payload. The header carries a unix timestamp and one
// or more HMAC-SHA256 signatures over "<timestamp>.<payload>":
//
//	t=1692262000,v1=5257a86...
//
// Verification failure of any kind yields ErrSignatureInvalid.
func ConstructEvent(payload []byte, sigHeader, secret string) (Event, error) {
	return constructEventAt(payload, sigHeader, secret, time.Now(), DefaultTolerance)
}

func constructEventAt(payload []byte, sigHeader, secret string, now time.Time, tolerance time.Duration) (Event, error) {
	var event Event

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return event, err
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(timestamp, 0))
		if age > tolerance || age < -tolerance {
			return event, fmt.Errorf("timestamp %d outside tolerance: %w", timestamp, ErrSignatureInvalid)
		}
	}

	expected := computeSignature(timestamp, payload, secret)
	match := false
	for _, sig := range signatures {
		if hmac.Equal(sig, expected) {
			match = true
			break
		}
	}
	if !match {
		return event, ErrSignatureInvalid
	}

	if err := json.Unmarshal(payload, &event); err != nil {
		return event, fmt.Errorf("payment: failed to parse verified webhook payload: %w", err)
	}
	return event, nil
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	if header == "" {
		return 0, nil, fmt.Errorf("missing signature header: %w", ErrSignatureInvalid)
	}

	var timestamp int64 = -1
	var signatures [][]byte

	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			return 0, nil, fmt.Errorf("malformed signature header: %w", ErrSignatureInvalid)
		}
		switch parts[0] {
		case "t":
			ts, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("malformed timestamp in signature header: %w", ErrSignatureInvalid)
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(parts[1])
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		default:
			// Unknown schemes are ignored for forward compatibility.
		}
	}

	if timestamp == -1 || len(signatures) == 0 {
		return 0, nil, fmt.Errorf("signature header lacks timestamp or signature: %w", ErrSignatureInvalid)
	}
	return timestamp, signatures, nil
}

func computeSignature(timestamp int64, payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// SignPayload produces a valid signature header for the payload, used by
// tests and local tooling to simulate processor deliveries.
func SignPayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	sig := computeSignature(ts, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(sig))
}
