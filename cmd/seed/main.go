// Command seed populates the database with instrument reference data and a
// demo account so the service has something to trade against locally.
package main

import (
	"context"
	"flag"
	"log"

	"riskcore/config"
	"riskcore/internal/adapters/logger"
	"riskcore/internal/adapters/sqlite"
	"riskcore/internal/domain"
)

var defaultInstruments = []domain.Instrument{
	{Symbol: "EURUSD", MinStopDistance: 0.0005, PointSize: 0.0001},
	{Symbol: "GBPUSD", MinStopDistance: 0.0005, PointSize: 0.0001},
	{Symbol: "USDJPY", MinStopDistance: 0.05, PointSize: 0.01},
	{Symbol: "AUDUSD", MinStopDistance: 0.0005, PointSize: 0.0001},
	{Symbol: "USDCAD", MinStopDistance: 0.0005, PointSize: 0.0001},
	{Symbol: "USDCHF", MinStopDistance: 0.0005, PointSize: 0.0001},
	{Symbol: "NZDUSD", MinStopDistance: 0.0005, PointSize: 0.0001},
	{Symbol: "BTCUSD", MinStopDistance: 50, PointSize: 0.01},
	{Symbol: "ETHUSD", MinStopDistance: 5, PointSize: 0.01},
}

func main() {
	balance := flag.Float64("balance", 10000, "starting balance of the demo account")
	maxRisk := flag.Float64("max-risk", 0.02, "maximum risk fraction per trade")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	store, err := sqlite.New(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database store: %v", err)
	}
	defer store.Close()

	for _, inst := range defaultInstruments {
		inst := inst
		if err := store.UpsertInstrument(ctx, &inst); err != nil {
			log.Fatalf("FATAL: Failed to seed instrument %s: %v", inst.Symbol, err)
		}
	}
	appLogger.Info(ctx, "Instruments seeded", map[string]interface{}{"count": len(defaultInstruments)})

	acc := &domain.Account{Balance: *balance, MaxRiskPerTrade: *maxRisk, IsDemo: true}
	id, err := store.CreateAccount(ctx, acc)
	if err != nil {
		log.Fatalf("FATAL: Failed to seed demo account: %v", err)
	}
	appLogger.Info(ctx, "Demo account created", map[string]interface{}{
		"accountID": id, "balance": *balance, "maxRiskPerTrade": *maxRisk,
	})
}
