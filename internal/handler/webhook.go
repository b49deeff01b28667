package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/ecomstore/checkout-service/internal/payment"
	"github.com/rs/zerolog/log"
)

const signatureHeader = "Stripe-Signature"

// maxWebhookBodyBytes caps webhook payload reads; processor events are small.
const maxWebhookBodyBytes = 1 << 20

type WebhookReconciler interface {
	HandleWebhook(ctx context.Context, rawBody []byte, signatureHeader string) error
}

type WebhookHandler struct {
	reconciler WebhookReconciler
}

func NewWebhookHandler(reconciler WebhookReconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// HandlePaymentWebhook handles POST /webhooks/payment. The signature header
// is the only authentication on this endpoint. A 400 is returned for a bad
// signature and a 500 for a store failure after verification; in both cases
// the processor retries the delivery.
func (h *WebhookHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read webhook body")
		respondWithError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	err = h.reconciler.HandleWebhook(r.Context(), rawBody, r.Header.Get(signatureHeader))
	if err != nil {
		if errors.Is(err, payment.ErrSignatureInvalid) {
			respondWithError(w, http.StatusBadRequest, "Invalid webhook signature")
			return
		}
		log.Error().Err(err).Msg("Failed to process webhook")
		respondWithError(w, http.StatusInternalServerError, "Failed to process webhook")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}
