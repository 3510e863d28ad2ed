package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"riskcore/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter

	// Monitor
	ScanInterval     time.Duration // How often live positions are checked against SL/TP
	RefreshInterval  time.Duration // How often quotes are warmed and unrealized PNL recomputed
	CloseOnSynthetic bool          // Whether synthetic quotes may trigger closes

	// Pricing
	PriceCacheTTL       time.Duration // Freshness window of cached quotes
	PriceTimeout        time.Duration // Budget for a single cache lookup
	SyntheticVolatility float64       // Per-step volatility of the fallback walk

	// Binance feed (optional; the fallback walk covers feed absence)
	FeedEnabled bool
	APIKey      string
	SecretKey   string
	IsTestnet   bool

	// Metrics
	MetricsAddr string // Empty disables the metrics endpoint
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/riskcore.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Monitor
	scanIntervalSeconds := getEnvAsInt("SCAN_INTERVAL_SECONDS", 5)
	if scanIntervalSeconds <= 0 {
		errs = append(errs, "SCAN_INTERVAL_SECONDS must be positive")
	}
	cfg.ScanInterval = time.Duration(scanIntervalSeconds) * time.Second

	refreshIntervalSeconds := getEnvAsInt("REFRESH_INTERVAL_SECONDS", 30)
	if refreshIntervalSeconds <= 0 {
		errs = append(errs, "REFRESH_INTERVAL_SECONDS must be positive")
	}
	cfg.RefreshInterval = time.Duration(refreshIntervalSeconds) * time.Second

	cfg.CloseOnSynthetic = getEnvAsBool("MONITOR_CLOSE_ON_SYNTHETIC", true)

	// Pricing
	cacheTTLSeconds := getEnvAsInt("PRICE_CACHE_TTL_SECONDS", 10)
	if cacheTTLSeconds <= 0 {
		errs = append(errs, "PRICE_CACHE_TTL_SECONDS must be positive")
	}
	cfg.PriceCacheTTL = time.Duration(cacheTTLSeconds) * time.Second

	priceTimeoutMs := getEnvAsInt("PRICE_TIMEOUT_MS", 2000)
	if priceTimeoutMs <= 0 {
		errs = append(errs, "PRICE_TIMEOUT_MS must be positive")
	}
	cfg.PriceTimeout = time.Duration(priceTimeoutMs) * time.Millisecond

	cfg.SyntheticVolatility, err = getEnvAsFloatRequired("SYNTHETIC_VOLATILITY", 0.001)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SYNTHETIC_VOLATILITY: %v", err))
	} else if cfg.SyntheticVolatility <= 0 || cfg.SyntheticVolatility >= 1.0 {
		errs = append(errs, "SYNTHETIC_VOLATILITY must be between 0.0 and 1.0 (exclusive)")
	}

	// Binance feed
	cfg.FeedEnabled = getEnvAsBool("FEED_ENABLED", false)
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	// The feed works without keys for public market data; nothing to validate.

	// Metrics
	cfg.MetricsAddr = getEnv("METRICS_ADDR", ":9090")

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Log warning? For non-required fields, default is often acceptable.
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
