package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the trader. Everything is explicit:
// the engine receives its thresholds as parameters, never through globals.
type Config struct {
	// Mode
	DryRun bool
	Debug  bool

	// Venues
	Venues       []string // venue IDs to poll (polymarket, kalshi, predictit)
	VenueTimeout time.Duration
	VenueURLs    map[string]string // venue ID -> markets endpoint
	VenueWSURLs  map[string]string // venue ID -> stream endpoint; set switches the venue to streaming

	// Cycle
	CycleInterval time.Duration
	CycleTimeout  time.Duration

	// Matching
	MatchThreshold   float64 // Jaccard token-overlap threshold
	AllowSingleVenue bool

	// Consensus
	Deadband            decimal.Decimal
	DivergenceThreshold decimal.Decimal

	// Signals
	SpreadCap       decimal.Decimal
	ConfidenceFloor decimal.Decimal

	// Risk
	SingleTierFraction decimal.Decimal
	DualTierFraction   decimal.Decimal
	TripleTierFraction decimal.Decimal
	MinFraction        decimal.Decimal
	DailyTradeCap      int
	ExposureCap        decimal.Decimal
	InstrumentCooldown time.Duration

	// Broker
	BrokerBaseURL string
	BrokerKey     string
	BrokerSecret  string

	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Database
	DatabaseDSN string // sqlite path or postgres:// URL; empty disables persistence
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DryRun: getEnvBool("DRY_RUN", true),
		Debug:  getEnvBool("DEBUG", false),

		Venues:       splitList(getEnv("VENUES", "polymarket,kalshi,predictit")),
		VenueTimeout: getEnvDuration("VENUE_TIMEOUT", 10*time.Second),
		VenueURLs: map[string]string{
			"polymarket": getEnv("POLYMARKET_API_URL", "https://gamma-api.polymarket.com"),
			"kalshi":     getEnv("KALSHI_API_URL", "https://api.elections.kalshi.com/trade-api/v2"),
			"predictit":  getEnv("PREDICTIT_API_URL", "https://www.predictit.org/api/marketdata"),
		},
		VenueWSURLs: map[string]string{
			"polymarket": os.Getenv("POLYMARKET_WS_URL"),
			"kalshi":     os.Getenv("KALSHI_WS_URL"),
			"predictit":  os.Getenv("PREDICTIT_WS_URL"),
		},

		CycleInterval: getEnvDuration("CYCLE_INTERVAL", 15*time.Minute),
		CycleTimeout:  getEnvDuration("CYCLE_TIMEOUT", 2*time.Minute),

		MatchThreshold:   getEnvFloat("MATCH_THRESHOLD", 0.6),
		AllowSingleVenue: getEnvBool("ALLOW_SINGLE_VENUE", true),

		Deadband:            getEnvDecimal("CONSENSUS_DEADBAND", decimal.NewFromFloat(0.05)),
		DivergenceThreshold: getEnvDecimal("DIVERGENCE_THRESHOLD", decimal.NewFromFloat(0.10)),

		SpreadCap:       getEnvDecimal("SPREAD_CAP", decimal.NewFromFloat(0.25)),
		ConfidenceFloor: getEnvDecimal("CONFIDENCE_FLOOR", decimal.NewFromFloat(0.50)),

		SingleTierFraction: getEnvDecimal("SINGLE_TIER_PCT", decimal.NewFromFloat(0.010)),
		DualTierFraction:   getEnvDecimal("DUAL_TIER_PCT", decimal.NewFromFloat(0.015)),
		TripleTierFraction: getEnvDecimal("TRIPLE_TIER_PCT", decimal.NewFromFloat(0.020)),
		MinFraction:        getEnvDecimal("MIN_POSITION_PCT", decimal.NewFromFloat(0.0025)),
		DailyTradeCap:      getEnvInt("MAX_DAILY_TRADES", 10),
		ExposureCap:        getEnvDecimal("MAX_TOTAL_EXPOSURE", decimal.NewFromFloat(0.20)),
		InstrumentCooldown: getEnvDuration("INSTRUMENT_COOLDOWN", 0),

		BrokerBaseURL: getEnv("BROKER_API_URL", "https://paper-api.alpaca.markets"),
		BrokerKey:     os.Getenv("BROKER_API_KEY"),
		BrokerSecret:  os.Getenv("BROKER_API_SECRET"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if len(cfg.Venues) == 0 {
		return nil, fmt.Errorf("VENUES must name at least one venue")
	}
	if cfg.MatchThreshold <= 0 || cfg.MatchThreshold > 1 {
		return nil, fmt.Errorf("MATCH_THRESHOLD must be in (0,1], got %v", cfg.MatchThreshold)
	}
	if !cfg.SpreadCap.IsPositive() {
		return nil, fmt.Errorf("SPREAD_CAP must be positive, got %s", cfg.SpreadCap)
	}
	if cfg.Deadband.IsNegative() {
		return nil, fmt.Errorf("CONSENSUS_DEADBAND must not be negative, got %s", cfg.Deadband)
	}
	if cfg.DivergenceThreshold.IsNegative() {
		return nil, fmt.Errorf("DIVERGENCE_THRESHOLD must not be negative, got %s", cfg.DivergenceThreshold)
	}
	if !cfg.ExposureCap.IsPositive() {
		return nil, fmt.Errorf("MAX_TOTAL_EXPOSURE must be positive, got %s", cfg.ExposureCap)
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
