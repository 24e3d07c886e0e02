package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/JivkoJelev91/online-shop/internal/auth"
	"github.com/JivkoJelev91/online-shop/internal/cart"
	"github.com/JivkoJelev91/online-shop/internal/checkout"
	"github.com/JivkoJelev91/online-shop/internal/config"
	"github.com/JivkoJelev91/online-shop/internal/db"
	"github.com/JivkoJelev91/online-shop/internal/events"
	httpserver "github.com/JivkoJelev91/online-shop/internal/http"
	"github.com/JivkoJelev91/online-shop/internal/metrics"
	"github.com/JivkoJelev91/online-shop/internal/order"
	"github.com/JivkoJelev91/online-shop/internal/product"
	"github.com/JivkoJelev91/online-shop/internal/user"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	if cfg.LogJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET must be set")
	}

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			logger.WithError(err).Fatal("run migrations")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.WithError(err).Fatal("connect to database")
	}
	defer pool.Close()

	// Messaging is optional; without AMQP_URL the publisher stays nil and
	// every publish is a no-op.
	var publisher *events.Publisher
	if cfg.AMQPURL != "" {
		conn, err := events.Dial(cfg.AMQPURL)
		if err != nil {
			logger.WithError(err).Fatal("connect to rabbitmq")
		}
		defer conn.Close()

		publisher, err = events.NewPublisher(conn)
		if err != nil {
			logger.WithError(err).Fatal("create event publisher")
		}
		defer publisher.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	userRepo := user.NewPostgresRepository(pool)
	productRepo := product.NewPostgresRepository(pool)
	cartRepo := cart.NewPostgresRepository(pool)
	orderRepo := order.NewPostgresRepository(pool)

	userSvc := user.NewService(userRepo, tokens)
	checkoutSvc := checkout.NewService(pool, logger, publisher, metrics.NewCheckoutMetrics(registry))

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:   logger,
		Tokens:   tokens,
		Users:    userRepo,
		Registry: registry,
		Auth:     httpserver.NewAuthHandler(userSvc),
		Products: httpserver.NewProductHandler(productRepo),
		Cart:     httpserver.NewCartHandler(cartRepo),
		Orders:   httpserver.NewOrderHandler(checkoutSvc, orderRepo, publisher, logger),
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("storefront listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.WithError(err).Fatal("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown error")
	}
}
