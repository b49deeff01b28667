package transport

import (
	"net/http"

	"github.com/ecomstore/checkout-service/internal/checkout"
	"github.com/ecomstore/checkout-service/internal/handler"
	"github.com/ecomstore/checkout-service/internal/order"
	"github.com/go-chi/chi/v5"
)

func NewRouter(orderSvc order.Service, checkoutSvc checkout.Service, reconciler handler.WebhookReconciler) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	checkoutHandler := handler.NewCheckoutHandler(checkoutSvc)
	orderHandler := handler.NewOrderHandler(orderSvc, checkoutSvc)
	webhookHandler := handler.NewWebhookHandler(reconciler)

	r.Post("/checkout", checkoutHandler.CreateCheckout)

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", orderHandler.ListOrders)
		r.Get("/verify", orderHandler.VerifySession)
		r.Get("/{id}", orderHandler.GetOrderByID)
		r.Post("/{id}/cancel", orderHandler.CancelOrder)
	})

	r.Post("/webhooks/payment", webhookHandler.HandlePaymentWebhook)

	return r
}
