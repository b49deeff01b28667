package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ecomstore/checkout-service/internal/checkout"
	"github.com/ecomstore/checkout-service/internal/order"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func mapErrorToStatusCode(err error) int {
	var incomplete *checkout.PaymentIncompleteError
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrDuplicateSessionID):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, checkout.ErrInvalidEmail):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrCancelNotAllowed), errors.Is(err, order.ErrInvalidTransition):
		return http.StatusConflict
	case errors.As(err, &incomplete):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func formatValidationErrors(validationErrors validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Field()] = "failed validation on '" + fieldErr.Tag() + "'"
	}
	return details
}
