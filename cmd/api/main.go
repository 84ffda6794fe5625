package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pointstock/internal/accounts"
	"pointstock/internal/auth"
	"pointstock/internal/config"
	"pointstock/internal/db"
	"pointstock/internal/fills"
	"pointstock/internal/health"
	"pointstock/internal/httpserver"
	"pointstock/internal/notices"
	"pointstock/internal/orders"
	"pointstock/internal/quotes"
	"pointstock/internal/reconcile"
	"pointstock/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := newLogger(cfg.Mode)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer pool.Close()

	store := postgres.New(pool)

	opening, err := decimal.NewFromString(cfg.OpeningPoints)
	if err != nil {
		logger.Fatal("invalid OPENING_POINTS", zap.Error(err))
	}

	var source quotes.Source
	if cfg.QuoteURL != "" {
		source = quotes.NewHTTPSource(cfg.QuoteURL)
	} else {
		source = quotes.NewStaticSource()
		logger.Warn("QUOTE_URL is empty, using the static quote source")
	}
	bus := quotes.NewBus()

	accountSvc := accounts.NewService(store, opening, logger)
	orderSvc := orders.NewService(store, source, orders.Config{
		AllowNegativeBalance: cfg.AllowNegativeBalance,
	}, logger)
	authSvc := auth.NewService(pool, cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL)
	authSvc.SetAccountService(accountSvc)
	noticeSvc := notices.NewService(pool)

	scanner := fills.NewScanner(orderSvc, source, bus, fills.LimitRule{}, cfg.ScanInterval, logger)
	go scanner.Start(ctx)

	sweeper, err := reconcile.New(orderSvc, cfg.SweepTime, cfg.SweepTZ, logger)
	if err != nil {
		logger.Fatal("sweep schedule invalid", zap.Error(err))
	}
	go sweeper.Start(ctx)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandler:     auth.NewHandler(authSvc),
		AccountsHandler: accounts.NewHandler(accountSvc),
		OrderHandler:    orders.NewHandler(orderSvc),
		NoticesHandler:  notices.NewHandler(noticeSvc),
		HealthHandler:   health.NewHandler(pool, time.Now(), cfg.HTTPAddr, cfg.InternalToken),
		AuthService:     authSvc,
		InternalToken:   cfg.InternalToken,
		QuotesWS:        quotes.NewWSHandler(bus, cfg.WebSocketOrigin),
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	logger.Info("server listening", zap.String("addr", cfg.HTTPAddr))
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(mode string) (*zap.Logger, error) {
	if mode == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
