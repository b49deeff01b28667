package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecomstore/checkout-service/internal/checkout"
	"github.com/ecomstore/checkout-service/internal/config"
	"github.com/ecomstore/checkout-service/internal/db"
	"github.com/ecomstore/checkout-service/internal/events"
	"github.com/ecomstore/checkout-service/internal/order"
	"github.com/ecomstore/checkout-service/internal/payment"
	"github.com/ecomstore/checkout-service/internal/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "checkout-service").Logger()

	log.Info().Msg("Checkout service starting...")

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	dbConn, err := db.New(context.Background(), cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Kafka.Enabled {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Kafka order events enabled")
	}

	orderRepo := order.NewRepository(dbConn.Pool)
	orderSvc := order.NewService(orderRepo, publisher)

	stripeClient := payment.NewStripeClient(cfg.Stripe.SecretKey)
	checkoutSvc := checkout.NewService(orderSvc, stripeClient, checkout.Config{
		SuccessURL:               cfg.Stripe.SuccessURL,
		CancelURL:                cfg.Stripe.CancelURL,
		AllowedShippingCountries: cfg.Stripe.AllowedCountries,
	})
	reconciler := checkout.NewReconciler(orderRepo, publisher, cfg.Stripe.WebhookSecret)

	router := transport.NewRouter(orderSvc, checkoutSvc, reconciler)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
