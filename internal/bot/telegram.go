package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/artbotdev/art-trader/internal/engine"
	"github.com/artbotdev/art-trader/internal/risk"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM BOT - Intent notifications & status
// ═══════════════════════════════════════════════════════════════════════════════
//
// Pushes approved-intent alerts to the configured chat and answers /status
// and /positions with live engine and ledger state. Implements
// engine.IntentSink, so it rides the same stream as the audit store.
//
// ═══════════════════════════════════════════════════════════════════════════════

// StatsProvider exposes the engine state the bot reports on.
type StatsProvider interface {
	GetStats() engine.Stats
}

// LedgerProvider exposes the risk ledger state and the operator close path.
type LedgerProvider interface {
	Exposure() decimal.Decimal
	OpenPositions() map[string]decimal.Decimal
	ApprovedToday() int
	Release(instrument string)
}

// PositionCloser liquidates an open position at the broker.
type PositionCloser interface {
	ClosePosition(ctx context.Context, instrument string) error
}

// TelegramBot manages the Telegram interface.
type TelegramBot struct {
	mu      sync.Mutex
	api     *tgbotapi.BotAPI
	chatID  int64
	running bool
	stopCh  chan struct{}

	stats  StatsProvider
	ledger LedgerProvider
	closer PositionCloser
}

// New creates the bot. Token and chat ID come from config, not env, so the
// caller stays in charge of wiring.
func New(token string, chatID int64, stats StatsProvider, ledger LedgerProvider, closer PositionCloser) (*TelegramBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	bot := &TelegramBot{
		api:    api,
		chatID: chatID,
		stopCh: make(chan struct{}),
		stats:  stats,
		ledger: ledger,
		closer: closer,
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot connected")
	return bot, nil
}

// Start begins polling for commands.
func (b *TelegramBot) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-b.stopCh:
				return
			case update := <-updates:
				if update.Message == nil || !update.Message.IsCommand() {
					continue
				}
				b.handleCommand(update.Message)
			}
		}
	}()

	go b.watchCycles()
}

// watchCycles pushes a short summary to the chat after each completed
// engine cycle.
func (b *TelegramBot) watchCycles() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	last := b.stats.GetStats()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			s := b.stats.GetStats()
			if s.Cycles == last.Cycles {
				continue
			}
			b.send(fmt.Sprintf(
				"🔄 Cycle %d: %d quotes, %d events, %d signals, %d approved / %d rejected",
				s.Cycles,
				s.QuotesSeen-last.QuotesSeen,
				s.EventsMatched-last.EventsMatched,
				s.SignalsEmitted-last.SignalsEmitted,
				s.Approved-last.Approved,
				s.Rejected-last.Rejected,
			))
			last = s
		}
	}
}

// Stop ends command polling.
func (b *TelegramBot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	close(b.stopCh)
	b.api.StopReceivingUpdates()
}

// RecordIntent implements engine.IntentSink. Approved intents become chat
// alerts, rejections stay quiet.
func (b *TelegramBot) RecordIntent(ctx context.Context, intent risk.OrderIntent) error {
	if !intent.Approved() {
		return nil
	}

	msg := fmt.Sprintf(
		"🎯 *%s %s*\n"+
			"Size: %s%% of equity\n"+
			"Tier: %s · Confidence: %s\n"+
			"Consensus: %s across %s\n"+
			"Event: %s",
		strings.ToUpper(string(intent.Side)),
		intent.Instrument,
		intent.PositionFraction.Mul(decimal.NewFromInt(100)).StringFixed(2),
		intent.Signal.Tier,
		intent.Signal.Confidence.StringFixed(2),
		intent.Signal.Rationale.MeanProbability.StringFixed(2),
		strings.Join(intent.Signal.Rationale.Venues, ", "),
		intent.Signal.Rationale.Description,
	)
	return b.send(msg)
}

func (b *TelegramBot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "status":
		b.sendStatus()
	case "positions":
		b.sendPositions()
	case "release":
		b.send(b.releasePosition(msg.CommandArguments()))
	case "help":
		b.send("Commands:\n/status — engine counters\n/positions — open risk ledger\n/release <instrument> — close a position and free its exposure")
	default:
		b.send("Unknown command. Try /help")
	}
}

// releasePosition closes a position at the broker, then frees its ledger
// exposure. A broker failure leaves the ledger untouched so the operator
// can retry.
func (b *TelegramBot) releasePosition(argument string) string {
	instrument := strings.ToUpper(strings.TrimSpace(argument))
	if instrument == "" {
		return "Usage: /release <instrument>"
	}
	if _, held := b.ledger.OpenPositions()[instrument]; !held {
		return fmt.Sprintf("No open position on %s", instrument)
	}

	if b.closer != nil {
		if err := b.closer.ClosePosition(context.Background(), instrument); err != nil {
			log.Error().Err(err).Str("instrument", instrument).Msg("Broker close failed")
			return fmt.Sprintf("Broker close failed for %s: %v — ledger unchanged", instrument, err)
		}
	}
	b.ledger.Release(instrument)
	return fmt.Sprintf("🔓 Released %s", instrument)
}

func (b *TelegramBot) sendStatus() {
	s := b.stats.GetStats()
	text := fmt.Sprintf(
		"📊 *Engine status*\n"+
			"Cycles: %d\n"+
			"Quotes seen/dropped: %d/%d\n"+
			"Events matched: %d\n"+
			"Signals: %d\n"+
			"Intents approved/rejected: %d/%d\n"+
			"Approved today: %d\n"+
			"Exposure: %s%%",
		s.Cycles, s.QuotesSeen, s.QuotesDropped, s.EventsMatched,
		s.SignalsEmitted, s.Approved, s.Rejected,
		b.ledger.ApprovedToday(),
		b.ledger.Exposure().Mul(decimal.NewFromInt(100)).StringFixed(2),
	)
	b.send(text)
}

func (b *TelegramBot) sendPositions() {
	positions := b.ledger.OpenPositions()
	if len(positions) == 0 {
		b.send("No open positions")
		return
	}

	var sb strings.Builder
	sb.WriteString("📈 *Open positions*\n")
	for instrument, fraction := range positions {
		fmt.Fprintf(&sb, "%s: %s%%\n", instrument, fraction.Mul(decimal.NewFromInt(100)).StringFixed(2))
	}
	b.send(sb.String())
}

func (b *TelegramBot) send(text string) error {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Telegram send failed")
		return err
	}
	return nil
}
