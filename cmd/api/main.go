package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"digitalstore/internal/config"
	"digitalstore/internal/db"
	"digitalstore/internal/domain"
	"digitalstore/internal/httpserver"
	customerrepo "digitalstore/internal/repository/customer"
	orderrepo "digitalstore/internal/repository/order"
	paymentrepo "digitalstore/internal/repository/payment"
	productrepo "digitalstore/internal/repository/product"
	cartsvc "digitalstore/internal/service/cart"
	checkoutsvc "digitalstore/internal/service/checkout"
	paymentsvc "digitalstore/internal/service/payment"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	productRepo := productrepo.NewPostgres(dbpool, logger)
	customerRepo := customerrepo.NewPostgres(dbpool, logger)
	paymentRepo := paymentrepo.NewPostgres(dbpool, logger)

	sessions := cartsvc.NewSessionStore()
	cartProvider := cartsvc.NewProvider(orderRepo, sessions)
	cartManager := cartsvc.NewManager(orderRepo, cartsvc.NewMatcher())
	checkoutFlow := checkoutsvc.NewFlow(orderRepo, sessions)

	gateway := paymentsvc.NewStripeClient(paymentsvc.StripeConfig{
		SecretKey: cfg.StripeSecretKey,
		BaseURL:   cfg.StripeEndpoint,
		Mode:      domain.GatewayMode(cfg.GatewayMode),
		Timeout:   cfg.GatewayTimeout,
	}, logger)
	paymentProcess := paymentsvc.NewProcess(gateway, orderRepo, paymentRepo, customerRepo, cartProvider, cfg.StripeCapture, logger)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Carts:          cartProvider,
		CartManager:    cartManager,
		Checkout:       checkoutFlow,
		Payments:       paymentProcess,
		OrderRepo:      orderRepo,
		PaymentRepo:    paymentRepo,
		ProductRepo:    productRepo,
		PublishableKey: cfg.StripePublishableKey,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}
