package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/storefront/internal/account"
	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/catalog"
	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/handlers"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/storefront/internal/middleware/logging"
	"github.com/Skotchmaster/storefront/internal/mykafka"
	"github.com/Skotchmaster/storefront/internal/order"
	"github.com/Skotchmaster/storefront/internal/storage"
	httpserver "github.com/Skotchmaster/storefront/internal/transport/http"
)

func main() {
	cfg := config.MustLoad()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := storage.Open(initCtx, storage.Options{
		Driver:    cfg.StorageDriver,
		DSN:       cfg.StorageDSN,
		RedisAddr: cfg.RedisAddr,
	})
	if err != nil {
		logger.Error("storage_init_error", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}

	var pub events.Publisher = events.Nop{}
	var prod *mykafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod, err = mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.Error("kafka_init_error", "error", err)
			os.Exit(1)
		}
		pub = prod
	} else {
		logger.Warn("kafka_disabled", "reason", "KAFKA_BROKERS not set")
	}

	products, err := catalog.Connect(initCtx, catalog.Config{
		URL:      cfg.ESURL,
		User:     cfg.ESUser,
		Password: cfg.ESPassword,
		Index:    cfg.ProductIndex,
	})
	if err != nil {
		logger.Error("catalog_init_error", "error", err)
		os.Exit(1)
	}

	carts := cart.NewRegistry(st, func(s *cart.Store) {
		s.Subscribe(events.CartListener(pub, s.Key()))
	})
	sessions := checkout.NewRegistry(st,
		func(ctx context.Context, userID string) checkout.Cart {
			return carts.For(ctx, userID)
		},
		checkout.WithObserver(events.CheckoutObserver(pub)),
	)

	sweepCtx, stopSweep := context.WithCancel(logging.IntoContext(context.Background(), logger))
	defer stopSweep()
	if cfg.CheckoutIdleTTL > 0 {
		sessions.ExpireIdle(cfg.CheckoutIdleTTL)
		go sessions.RunSweeper(sweepCtx, time.Minute)
	}

	accounts := account.NewClient(cfg.AccountURL, cfg.HTTPTimeout)
	orders := order.NewClient(cfg.OrderURL, cfg.HTTPTimeout)

	e := echo.New()
	e.HideBanner = true

	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowCredentials: true,
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept,
			echo.HeaderAuthorization, "X-CSRF-Token",
		},
	}))

	httpserver.Register(e, &httpserver.Deps{
		CartHandler: &handlers.CartHandler{Carts: carts, Products: products},
		CheckoutHandler: &handlers.CheckoutHandler{
			Sessions:  sessions,
			Account:   accounts,
			Addresses: account.NewAddressSelector(accounts),
			Payments:  account.NewPaymentSelector(accounts),
			Submitter: order.NewSubmitter(orders, order.NewDeliveryScheduler(orders)),
		},
		JWTSecret: cfg.JWTSecret,
		CSRF:      csrf.DefaultConfig(),
		Ready: func(ctx context.Context) error {
			return storage.Ping(ctx, st)
		},
	})

	addr := ":" + strconv.Itoa(cfg.ServerPort)
	go func() {
		logger.Info("server_starting", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("server_stopping")
	stopSweep()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}
	if prod != nil {
		if err := prod.Close(); err != nil {
			logger.Error("kafka_close_error", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logger.Error("storage_close_error", "error", err)
	}

	logger.Info("server_stopped")
}
