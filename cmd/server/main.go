package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/httpserver"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/payment"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/service/search"
	"github.com/Skotchmaster/storefront/pkg/db"
	loggingmw "github.com/Skotchmaster/storefront/pkg/middleware/logging"
)

func main() {
	cfg := config.MustLoad()
	log := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	database, err := db.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Error("db open", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(database); err != nil {
		log.Error("db migrate", "error", err)
		os.Exit(1)
	}

	storeRepo := &repo.GormRepo{DB: database}

	var producer *mykafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = mykafka.NewProducer(cfg.KafkaBrokers)
		defer producer.Close()
	} else {
		log.Warn("kafka disabled, no brokers configured")
	}

	var indexer service.Indexer
	var searchSvc *search.Service
	if cfg.ESURL != "" {
		searchSvc, err = search.New(search.Config{
			URL:      cfg.ESURL,
			User:     cfg.ESUser,
			Password: cfg.ESPassword,
			Index:    cfg.ESIndex,
		})
		if err != nil {
			log.Error("elasticsearch init", "error", err)
			os.Exit(1)
		}
		indexer = searchSvc
	} else {
		log.Warn("search disabled, ES_URL not configured")
	}

	gateway := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey: cfg.StripeSecretKey,
		Timeout:   10 * time.Second,
	})

	catalogSvc := &service.CatalogService{Repo: storeRepo, Producer: producer, Indexer: indexer}
	cartSvc := &service.CartService{Repo: storeRepo}
	checkoutSvc := &service.CheckoutService{
		Repo:           storeRepo,
		Gateway:        gateway,
		Producer:       producer,
		Currency:       cfg.Currency,
		SuccessURL:     cfg.SuccessURL,
		CancelURL:      cfg.CancelURL,
		ReservationTTL: cfg.ReservationTTL,
	}
	orderSvc := &service.OrderService{Repo: storeRepo, Producer: producer}
	reviewSvc := &service.ReviewService{Repo: storeRepo}
	couponSvc := &service.CouponService{Repo: storeRepo}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(loggingmw.RequestLogger(log))

	deps := &httpserver.Deps{
		ProductHandler:  &httpserver.ProductHTTP{Svc: catalogSvc},
		CartHandler:     &httpserver.CartHTTP{Svc: cartSvc},
		CheckoutHandler: &httpserver.CheckoutHTTP{Svc: checkoutSvc, WebhookSecret: cfg.StripeWebhookSecret},
		OrderHandler:    &httpserver.OrderHTTP{Svc: orderSvc},
		ReviewHandler:   &httpserver.ReviewHTTP{Svc: reviewSvc},
		CouponHandler:   &httpserver.CouponHTTP{Svc: couponSvc},
		JWTSecret:       cfg.JWTSecret,
	}
	if searchSvc != nil {
		deps.SearchHandler = &httpserver.SearchHTTP{Svc: searchSvc}
	}
	httpserver.Register(e, deps)

	reaperCtx, stopReaper := context.WithCancel(logging.IntoContext(context.Background(), log))
	go runReaper(reaperCtx, checkoutSvc, log)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.ServerPort)
		log.Info("server starting", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error("server start", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")
	stopReaper()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	if sqlDB, err := database.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info("server stopped")
}

// runReaper periodically releases reservations whose TTL elapsed without
// a payment outcome. Persisted intents make this survive restarts.
func runReaper(ctx context.Context, svc *service.CheckoutService, log *slog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := svc.ExpireStale(ctx)
			if err != nil {
				log.Error("reservation reaper", "error", err)
				continue
			}
			if released > 0 {
				log.Info("reservations expired", "count", released)
			}
		}
	}
}
