package handler

import (
	"errors"
	"net/http"

	"github.com/ecomstore/checkout-service/internal/checkout"
	"github.com/ecomstore/checkout-service/internal/order"
	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type OrderHandler struct {
	orders   order.Service
	checkout checkout.Service
}

func NewOrderHandler(orders order.Service, checkoutSvc checkout.Service) *OrderHandler {
	return &OrderHandler{orders: orders, checkout: checkoutSvc}
}

// VerifySession handles GET /orders/verify?session_id=... — the success-page
// read after the browser returns from the hosted payment page.
func (h *OrderHandler) VerifySession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	o, err := h.checkout.VerifySession(r.Context(), sessionID)
	if err != nil {
		var incomplete *checkout.PaymentIncompleteError
		if errors.As(err, &incomplete) {
			respondWithError(w, http.StatusPaymentRequired, incomplete.Error())
			return
		}
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to verify session")
		respondWithError(w, http.StatusInternalServerError, "Failed to verify session")
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

// GetOrderByID handles GET /orders/{id}.
func (h *OrderHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	orderID, err := uuid.FromString(idParam)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	o, err := h.orders.GetOrderByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			respondWithError(w, http.StatusNotFound, "Order not found")
			return
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("Failed to get order")
		respondWithError(w, http.StatusInternalServerError, "Failed to get order")
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

// ListOrders handles GET /orders?user_id=... — the order-history read.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	orders, err := h.orders.GetOrdersByUserID(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list orders")
		respondWithError(w, http.StatusInternalServerError, "Failed to list orders")
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

// CancelOrder handles POST /orders/{id}/cancel. Valid only while the order
// is pending or processing.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	orderID, err := uuid.FromString(idParam)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	if err := h.orders.CancelOrder(r.Context(), orderID); err != nil {
		statusCode := mapErrorToStatusCode(err)
		switch statusCode {
		case http.StatusNotFound:
			respondWithError(w, statusCode, "Order not found")
		case http.StatusConflict:
			respondWithError(w, statusCode, "Order can no longer be cancelled")
		default:
			log.Error().Err(err).Stringer("order_id", orderID).Msg("Failed to cancel order")
			respondWithError(w, statusCode, "Failed to cancel order")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": order.StatusCancelled.String()})
}
