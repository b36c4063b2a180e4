package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tradingview-alert-bot/internal/broker"
	"tradingview-alert-bot/internal/config"
	"tradingview-alert-bot/internal/database"
	"tradingview-alert-bot/internal/ledger"
	"tradingview-alert-bot/internal/logger"
	"tradingview-alert-bot/internal/notify"
	"tradingview-alert-bot/internal/pipeline"
	"tradingview-alert-bot/internal/risk"
	"tradingview-alert-bot/internal/router"
	"tradingview-alert-bot/internal/server"
	"tradingview-alert-bot/internal/store"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format, cfg.Logger.File)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database and storage
	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	alertStore := store.NewGormStore(db)
	led := ledger.NewLedger(db)

	// Venue clients and order router
	venues := map[router.VenueKind]router.Venue{
		router.VenueCrypto:   router.NewCryptoVenue(&cfg.Venues.Crypto, log),
		router.VenueFX:       router.NewFXVenue(&cfg.Venues.FX, log),
		router.VenueEquities: router.NewEquitiesVenue(&cfg.Venues.Equities, log),
	}
	lotSteps := map[router.VenueKind]string{
		router.VenueCrypto:   cfg.Venues.Crypto.LotStep,
		router.VenueFX:       cfg.Venues.FX.LotStep,
		router.VenueEquities: cfg.Venues.Equities.LotStep,
	}
	policy := router.RetryPolicy{
		MaxAttempts:    cfg.Router.MaxAttempts,
		BaseDelay:      time.Duration(cfg.Router.BaseDelayMs) * time.Millisecond,
		Factor:         cfg.Router.BackoffFactor,
		MaxDelay:       time.Duration(cfg.Router.MaxDelayMs) * time.Millisecond,
		AttemptTimeout: time.Duration(cfg.Router.AttemptTimeout) * time.Second,
	}
	orderRouter := router.NewRouter(venues, lotSteps, policy, cfg.Trading.PaperMode, log)

	// Operator channel
	var notifier notify.Notifier
	if cfg.Telegram.Enabled {
		notifier = notify.NewTelegramNotifier(&cfg.Telegram, log)
		log.Info("Telegram notifications enabled")
	} else {
		notifier = notify.NewLogNotifier(log)
		log.Warn("Telegram disabled, notifications go to the log only")
	}

	confirmationBroker := broker.NewBroker(
		time.Duration(cfg.Confirmation.TimeoutSeconds)*time.Second, log)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Wire and start the pipeline engine and its HTTP surface
	engine := pipeline.NewEngine(log, &cfg, alertStore, led, risk.NewGate(), confirmationBroker, orderRouter, notifier)
	engine.Start(ctx)

	apiServer := server.NewAPIServer(&cfg.Server, cfg.Webhook.Secret, engine, log)
	apiServer.Start()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}
	engine.Wait()

	log.Info("Bot has been shut down.")
}
