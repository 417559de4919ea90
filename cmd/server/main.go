package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/liquid-btc-yield/internal/api"
	"github.com/yourorg/liquid-btc-yield/internal/auth"
	"github.com/yourorg/liquid-btc-yield/internal/bridge"
	"github.com/yourorg/liquid-btc-yield/internal/catalog"
	"github.com/yourorg/liquid-btc-yield/internal/circuitbreaker"
	"github.com/yourorg/liquid-btc-yield/internal/config"
	"github.com/yourorg/liquid-btc-yield/internal/export"
	"github.com/yourorg/liquid-btc-yield/internal/fetch"
	"github.com/yourorg/liquid-btc-yield/internal/jobs"
	"github.com/yourorg/liquid-btc-yield/internal/ledger"
	"github.com/yourorg/liquid-btc-yield/internal/otel"
	"github.com/yourorg/liquid-btc-yield/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg)

	shutdownTracer := otel.InitTracer(cfg)
	defer shutdownTracer()

	prices := fetch.NewPriceClient(fetch.PriceOptions{
		URLs:     cfg.BTCPriceURLs,
		APIKey:   cfg.BTCPriceAPIKey,
		CacheTTL: cfg.PriceCacheTTL,
		Fallback: decimal.NewFromFloat(cfg.BTCPriceFallback),
	})

	breaker := circuitbreaker.New(circuitbreaker.Thresholds{
		FailureThreshold: cfg.BridgeFailureThreshold,
	}).WithTripCallback(func(reason string) {
		logrus.WithField("reason", reason).Warn("Bridge deposits suspended")
	})
	if cfg.BridgeCooldown > 0 {
		breaker.WithResetDelay(cfg.BridgeCooldown)
	}
	bridgeSvc := bridge.New(bridge.Options{
		Breaker: breaker,
		Prices:  prices,
	})

	exporter, err := export.New(export.Config{
		Enabled:   cfg.WebhookEnabled,
		URL:       cfg.WebhookURL,
		APIKey:    cfg.WebhookAPIKey,
		BatchSize: cfg.WebhookBatchSize,
		Interval:  cfg.WebhookInterval,
		RetryMax:  3,
	})
	if err != nil {
		logrus.Fatalf("Failed to initialize webhook exporter: %v", err)
	}

	signer, err := security.NewReceiptSigner(security.SignerOptions{
		PrivateKeyHex: cfg.ReceiptSigningKey,
		Validity:      cfg.ReceiptValidity,
	})
	if err != nil {
		logrus.Fatalf("Failed to initialize receipt signer: %v", err)
	}

	sessions, err := auth.NewSessions(cfg.JWTSecret, cfg.ServiceName, cfg.SessionTTL)
	if err != nil {
		logrus.Fatalf("Failed to initialize sessions: %v", err)
	}
	passkeys := auth.NewPasskeyStore(auth.RelyingParty{ID: cfg.RPID, Name: cfg.RPName}, 5*time.Minute)
	authSvc := auth.NewService(sessions, passkeys, auth.UnverifiedIDTokens{})

	metrics := api.NewMetrics()
	metrics.WatchBreaker(breaker)

	sim, err := ledger.New(catalog.Default(), ledger.Options{
		Prices:     prices,
		Swaps:      bridgeSvc,
		Observers:  []ledger.Observer{metrics, exporter},
		DelayScale: cfg.ConfirmationDelayScale,
		Seed:       cfg.SeedDemoData,
	})
	if err != nil {
		logrus.Fatalf("Failed to initialize ledger: %v", err)
	}

	scheduler := jobs.New()
	accrual := jobs.AccrualJob{Ledger: sim, Sink: metrics}
	refresh := jobs.PriceRefreshJob{Prices: prices, OnPrice: metrics.ObservePrice}
	for _, job := range []jobs.Job{accrual, refresh} {
		if err := scheduler.AddJob(cfg.GaugeRefreshSpec, job); err != nil {
			logrus.Fatalf("Failed to schedule %s: %v", job.Name(), err)
		}
		_ = scheduler.RunNow(job)
	}
	scheduler.Start()

	server, err := api.NewServer(api.Options{
		Port:           cfg.Port,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
		DevMode:        cfg.DevMode,
	}, api.Deps{
		Ledger:   sim,
		Bridge:   bridgeSvc,
		Auth:     authSvc,
		Receipts: signer,
		Exporter: exporter,
		Breaker:  breaker,
		Metrics:  metrics,
	})
	if err != nil {
		logrus.Fatalf("Failed to initialize server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logrus.Errorf("Server error: %v", err)
	}

	scheduler.Stop()
	sim.Close()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := exporter.Stop(stopCtx); err != nil {
		logrus.Warnf("Webhook exporter did not flush cleanly: %v", err)
	}
}
