package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ecomstore/checkout-service/internal/checkout"
	"github.com/ecomstore/checkout-service/internal/order"
	"github.com/ecomstore/checkout-service/internal/payment"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

type CheckoutItemRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	Image     string  `json:"image"`
	Price     float64 `json:"price" validate:"gte=0"`
	Quantity  int     `json:"quantity" validate:"gt=0"`
}

type ShippingAddressRequest struct {
	Name       string `json:"name" validate:"required"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
}

type CreateCheckoutRequest struct {
	Items           []CheckoutItemRequest  `json:"items" validate:"required,min=1,dive"`
	CustomerEmail   string                 `json:"customer_email" validate:"required,contains=@"`
	ShippingAddress ShippingAddressRequest `json:"shipping_address" validate:"required"`
	UserID          string                 `json:"user_id"`
}

type CreateCheckoutResponse struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	OrderID string `json:"order_id"`
}

type CheckoutHandler struct {
	svc      checkout.Service
	validate *validator.Validate
}

func NewCheckoutHandler(svc checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{
		svc:      svc,
		validate: validator.New(),
	}
}

// CreateCheckout handles POST /checkout.
func (h *CheckoutHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req CreateCheckoutRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to decode checkout request body")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
				Error:   "Validation failed",
				Details: formatValidationErrors(validationErrors),
			})
		} else {
			log.Error().Err(err).Msg("Unexpected error type during validation")
			respondWithError(w, http.StatusInternalServerError, "Internal validation error")
		}
		return
	}

	items := make([]order.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, order.LineItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
		})
	}

	result, err := h.svc.CreateCheckout(r.Context(), checkout.CheckoutInput{
		Items: items,
		Email: req.CustomerEmail,
		ShippingAddress: order.Address{
			Name:       req.ShippingAddress.Name,
			Street:     req.ShippingAddress.Street,
			City:       req.ShippingAddress.City,
			PostalCode: req.ShippingAddress.PostalCode,
		},
		UserID: req.UserID,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create checkout session")

		var procErr *payment.Error
		if errors.As(err, &procErr) {
			respondWithError(w, http.StatusInternalServerError, procErr.Message)
			return
		}

		statusCode := mapErrorToStatusCode(err)
		if statusCode == http.StatusBadRequest {
			respondWithError(w, statusCode, err.Error())
			return
		}
		respondWithError(w, statusCode, "Failed to create checkout session")
		return
	}

	respondWithJSON(w, http.StatusCreated, CreateCheckoutResponse{
		ID:      result.SessionID,
		URL:     result.RedirectURL,
		OrderID: result.OrderID.String(),
	})
}
