package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"riskcore/config"
	"riskcore/internal/adapters/binanceclient"
	"riskcore/internal/adapters/logger"
	"riskcore/internal/adapters/quotecache"
	"riskcore/internal/adapters/sqlite"
	"riskcore/internal/ports"
	"riskcore/internal/pricing"
	"riskcore/internal/risk"
	"riskcore/internal/sched"
	"riskcore/internal/trading"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger (also serves as the event recorder)
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Store (Database Adapter)
	store, err := sqlite.New(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database store")
		log.Fatalf("FATAL: Failed to initialize database store: %v", err) // Also log to stderr
	}
	defer func() {
		if err := store.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database store")
		}
	}()

	// 4. Initialize Pricing (cache, synthetic fallback, source)
	cache := quotecache.New(cfg.PriceCacheTTL)
	fallback := pricing.NewSyntheticWalk(cfg.SyntheticVolatility, time.Now().UnixNano())
	prices, err := pricing.New(pricing.Config{
		Cache:    cache,
		Fallback: fallback,
		Logger:   appLogger,
		TTL:      cfg.PriceCacheTTL,
		Timeout:  cfg.PriceTimeout,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize price source")
		log.Fatalf("FATAL: Failed to initialize price source: %v", err)
	}

	// 5. Initialize the Binance feed if enabled. The synthetic fallback
	// covers its absence, so a disabled feed is not an error.
	var feed ports.PriceFeed
	if cfg.FeedEnabled {
		client, err := binanceclient.New(binanceclient.Config{
			APIKey:     cfg.APIKey,
			SecretKey:  cfg.SecretKey,
			UseTestnet: cfg.IsTestnet,
			Logger:     appLogger,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance feed")
			log.Fatalf("FATAL: Failed to initialize Binance feed: %v", err)
		}
		// An unreachable feed is not fatal; the synthetic fallback keeps
		// quotes flowing until it recovers.
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(pingCtx); err != nil {
			appLogger.Warn(context.Background(), "Binance feed unreachable at startup", map[string]interface{}{"error": err.Error()})
		}
		pingCancel()
		feed = client
		appLogger.Info(context.Background(), "Binance feed initialized")
	}

	// 6. Initialize the trading core
	coordinator, err := trading.NewCoordinator(store, risk.NewValidator(), risk.NewHedgeGuard(), appLogger, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trade coordinator")
		log.Fatalf("FATAL: Failed to initialize trade coordinator: %v", err)
	}
	monitor, err := trading.NewMonitor(trading.MonitorConfig{
		Store:            store,
		Prices:           prices,
		Closer:           coordinator,
		Logger:           appLogger,
		Events:           appLogger,
		Feed:             feed,
		Cache:            cache,
		CloseOnSynthetic: cfg.CloseOnSynthetic,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize position monitor")
		log.Fatalf("FATAL: Failed to initialize position monitor: %v", err)
	}

	// 7. Metrics endpoint
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			appLogger.Info(context.Background(), "Metrics endpoint listening", map[string]interface{}{"addr": cfg.MetricsAddr})
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				appLogger.Error(context.Background(), err, "Metrics endpoint failed")
			}
		}()
	}

	// 8. Schedule the periodic tasks
	scheduler := sched.New(appLogger)
	scheduler.Add(sched.Task{
		Name:     "scan_positions",
		Interval: cfg.ScanInterval,
		Run: func(ctx context.Context) error {
			_, err := monitor.Scan(ctx)
			return err
		},
	})
	scheduler.Add(sched.Task{
		Name:     "refresh_prices",
		Interval: cfg.RefreshInterval,
		Run:      monitor.RefreshPrices,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Start(ctx)
	appLogger.Info(ctx, "Risk core running", map[string]interface{}{
		"scanInterval":    cfg.ScanInterval.String(),
		"refreshInterval": cfg.RefreshInterval.String(),
	})

	// 9. Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	appLogger.Info(ctx, "Shutdown signal received", map[string]interface{}{"signal": sig.String()})

	// Drain the scheduler before cancelling the context: an in-flight
	// scan or close must finish its store writes, not die mid-commit.
	scheduler.Stop()
	cancel()
	appLogger.Info(context.Background(), "Application finished gracefully.")
}
