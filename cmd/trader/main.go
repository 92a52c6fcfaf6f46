// Art Trader - Cross-Platform Prediction Market Consensus Engine
//
// Polls prediction-market venues (Polymarket, Kalshi, PredictIt), matches
// quotes that describe the same real-world event, and turns agreement
// between venues into equity trade intents:
//
// 1. Fetch quotes from every configured venue each cycle
// 2. Cluster quotes into cross-venue events by text similarity
// 3. Compute a volume-weighted consensus probability per event
// 4. Generate a directional signal when consensus clears the deadband
// 5. Size and gate the trade through the risk ledger
// 6. Hand approved intents to the broker gateway
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/artbotdev/art-trader/internal/bot"
	"github.com/artbotdev/art-trader/internal/broker"
	"github.com/artbotdev/art-trader/internal/config"
	"github.com/artbotdev/art-trader/internal/consensus"
	"github.com/artbotdev/art-trader/internal/database"
	"github.com/artbotdev/art-trader/internal/engine"
	"github.com/artbotdev/art-trader/internal/feeds"
	"github.com/artbotdev/art-trader/internal/matcher"
	"github.com/artbotdev/art-trader/internal/risk"
	tradesignal "github.com/artbotdev/art-trader/internal/signal"
)

const version = "1.0.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Strs("venues", cfg.Venues).
		Bool("dry_run", cfg.DryRun).
		Msg("⚡ Art Trader starting...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ====== PIPELINE STAGES ======

	providers := make([]feeds.QuoteProvider, 0, len(cfg.Venues))
	var streams []*feeds.StreamProvider
	for _, venue := range cfg.Venues {
		// A configured stream endpoint switches the venue from polling to
		// the live WebSocket feed.
		if wsURL := cfg.VenueWSURLs[venue]; wsURL != "" {
			sp := feeds.NewStreamProvider(venue, wsURL)
			sp.Start()
			streams = append(streams, sp)
			providers = append(providers, sp)
			continue
		}

		url := cfg.VenueURLs[venue]
		switch venue {
		case "polymarket":
			providers = append(providers, feeds.NewPolymarketProvider(url))
		case "kalshi":
			providers = append(providers, feeds.NewKalshiProvider(url))
		case "predictit":
			providers = append(providers, feeds.NewPredictItProvider(url))
		default:
			log.Warn().Str("venue", venue).Msg("⚠️ Unknown venue, skipping")
		}
	}
	if len(providers) == 0 {
		log.Fatal().Msg("No usable venues configured")
	}

	eventMatcher := matcher.New(matcher.Config{
		JaccardThreshold: cfg.MatchThreshold,
		AllowSingleVenue: cfg.AllowSingleVenue,
	})

	consensusEngine := consensus.New(consensus.Config{
		Deadband:            cfg.Deadband,
		DivergenceThreshold: cfg.DivergenceThreshold,
	})

	signalCfg := tradesignal.DefaultConfig()
	signalCfg.SpreadCap = cfg.SpreadCap
	signalCfg.ConfidenceFloor = cfg.ConfidenceFloor
	signalGen := tradesignal.New(signalCfg)

	riskManager := risk.NewManager(risk.Config{
		TierFraction: map[consensus.Tier]decimal.Decimal{
			consensus.TierSingle: cfg.SingleTierFraction,
			consensus.TierDual:   cfg.DualTierFraction,
			consensus.TierTriple: cfg.TripleTierFraction,
		},
		ConfidenceFloor: cfg.ConfidenceFloor,
		MinFraction:     cfg.MinFraction,
		DailyCap:        cfg.DailyTradeCap,
		ExposureCap:     cfg.ExposureCap,
		Cooldown:        cfg.InstrumentCooldown,
	})

	// ====== SINKS ======

	var sinks []engine.IntentSink

	// Audit store (optional)
	if cfg.DatabaseDSN != "" {
		db, err := database.New(cfg.DatabaseDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		sinks = append(sinks, db)
		log.Info().Msg("💾 Audit store connected")
	} else {
		log.Warn().Msg("⚠️ DATABASE_DSN not set - intents will not be persisted")
	}

	// Broker gateway
	gateway := broker.NewClient(cfg.BrokerBaseURL, cfg.BrokerKey, cfg.BrokerSecret, cfg.DryRun)
	sinks = append(sinks, broker.NewExecutor(gateway))

	// ====== ENGINE ======

	eng := engine.New(engine.Config{
		CycleInterval: cfg.CycleInterval,
		CycleTimeout:  cfg.CycleTimeout,
		VenueTimeout:  cfg.VenueTimeout,
	}, providers, eventMatcher, consensusEngine, signalGen, riskManager, sinks...)

	// Telegram bot (optional)
	var telegramBot *bot.TelegramBot
	if cfg.TelegramToken != "" {
		telegramBot, err = bot.New(cfg.TelegramToken, cfg.TelegramChatID, eng, riskManager, gateway)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
		}
		eng.AddSink(telegramBot)
		telegramBot.Start()
	}

	go eng.Run(ctx)

	log.Info().Msg("✅ All systems online")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("🛑 Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("🛑 Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down...")

	eng.Stop()
	if telegramBot != nil {
		telegramBot.Stop()
	}
	for _, sp := range streams {
		sp.Stop()
	}

	log.Info().Msg("👋 Goodbye!")
}
