package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/artbotdev/art-trader/internal/consensus"
	"github.com/artbotdev/art-trader/internal/feeds"
	"github.com/artbotdev/art-trader/internal/market"
	"github.com/artbotdev/art-trader/internal/matcher"
	"github.com/artbotdev/art-trader/internal/risk"
	"github.com/artbotdev/art-trader/internal/signal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ENGINE - Central orchestrator
// ═══════════════════════════════════════════════════════════════════════════════
//
// Flow, once per cycle:
//   Venues → Matcher → Consensus → Signals → Risk → Sinks
//
// Quote fetching fans out per venue with independent timeouts; a venue that
// errors contributes zero quotes and the cycle proceeds on partial data.
// Consensus and signal generation fan out per matched event — they are pure
// over the batch. Risk decisions run serially in deterministic event order,
// and cancellation is honored before each approval commits.
//
// ═══════════════════════════════════════════════════════════════════════════════

// IntentSink receives every order intent of a cycle, approved and rejected,
// in decision order. Sink failures are logged, never fatal to the cycle.
type IntentSink interface {
	RecordIntent(ctx context.Context, intent risk.OrderIntent) error
}

// Config for cycle pacing.
type Config struct {
	CycleInterval time.Duration // wall-clock between cycle starts
	CycleTimeout  time.Duration // bound on one cycle end-to-end
	VenueTimeout  time.Duration // bound on one venue fetch
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Cycles         int
	QuotesSeen     int
	QuotesDropped  int
	EventsMatched  int
	SignalsEmitted int
	Approved       int
	Rejected       int
	LastCycleAt    time.Time
}

// Engine drives the consensus pipeline.
type Engine struct {
	mu sync.RWMutex

	cfg       Config
	providers []feeds.QuoteProvider
	matcher   *matcher.Matcher
	consensus *consensus.Engine
	signals   *signal.Generator
	risk      *risk.Manager
	sinks     []IntentSink

	running bool
	stopCh  chan struct{}
	stats   Stats
}

// New wires the pipeline stages together.
func New(
	cfg Config,
	providers []feeds.QuoteProvider,
	m *matcher.Matcher,
	c *consensus.Engine,
	g *signal.Generator,
	r *risk.Manager,
	sinks ...IntentSink,
) *Engine {
	return &Engine{
		cfg:       cfg,
		providers: providers,
		matcher:   m,
		consensus: c,
		signals:   g,
		risk:      r,
		sinks:     sinks,
		stopCh:    make(chan struct{}),
	}
}

// AddSink registers another intent sink. Call before Run.
func (e *Engine) AddSink(s IntentSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, s)
}

// Run executes cycles on the configured interval until the context is
// cancelled or Stop is called. The first cycle starts immediately.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.mu.Unlock()

	log.Info().
		Dur("interval", e.cfg.CycleInterval).
		Int("venues", len(e.providers)).
		Msg("⚡ Engine started")

	ticker := time.NewTicker(e.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		if _, err := e.RunCycle(ctx); err != nil {
			log.Error().Err(err).Msg("Cycle aborted")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Engine stopped: context cancelled")
			return
		case <-e.stopCh:
			log.Info().Msg("Engine stopped")
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the Run loop after the current cycle.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	close(e.stopCh)
}

// RunCycle processes one batch end to end and returns the ordered intent
// list, approved and rejected both, for audit. The only error it returns is
// cancellation; everything else degrades.
func (e *Engine) RunCycle(ctx context.Context) ([]risk.OrderIntent, error) {
	if e.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CycleTimeout)
		defer cancel()
	}

	started := time.Now()
	quotes, dropped := e.gatherQuotes(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	events := e.matcher.Match(quotes)
	signals := e.evaluateEvents(events)

	// Risk decisions commit serially, in deterministic event order.
	// Cancellation is checked before each commit: an aborted cycle leaves
	// no half-approved state behind.
	intents := make([]risk.OrderIntent, 0, len(signals))
	for _, sig := range signals {
		if err := ctx.Err(); err != nil {
			return intents, err
		}
		intents = append(intents, e.risk.Evaluate(*sig))
	}

	e.emit(ctx, intents)
	e.recordStats(started, len(quotes), dropped, len(events), len(signals), intents)

	log.Info().
		Int("quotes", len(quotes)).
		Int("dropped", dropped).
		Int("events", len(events)).
		Int("signals", len(signals)).
		Int("intents", len(intents)).
		Dur("took", time.Since(started)).
		Msg("🔄 Cycle complete")

	return intents, nil
}

// gatherQuotes fans out to all venues concurrently. A venue that errors or
// times out simply contributes nothing this cycle. Returned quotes are
// validated; the dropped count covers invalid quotes only.
func (e *Engine) gatherQuotes(ctx context.Context) ([]market.Quote, int) {
	type venueResult struct {
		index  int
		quotes []market.Quote
	}

	results := make(chan venueResult, len(e.providers))
	var wg sync.WaitGroup
	for i, p := range e.providers {
		wg.Add(1)
		go func(index int, provider feeds.QuoteProvider) {
			defer wg.Done()

			fetchCtx := ctx
			if e.cfg.VenueTimeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(ctx, e.cfg.VenueTimeout)
				defer cancel()
			}

			quotes, err := provider.Fetch(fetchCtx)
			if err != nil {
				log.Warn().Err(err).Str("venue", provider.Venue()).Msg("⚠️ Venue unavailable this cycle")
				return
			}
			results <- venueResult{index: index, quotes: quotes}
		}(i, p)
	}
	wg.Wait()
	close(results)

	// Reassemble in provider order so the batch is deterministic regardless
	// of which venue answered first.
	byProvider := make([][]market.Quote, len(e.providers))
	for r := range results {
		byProvider[r.index] = r.quotes
	}

	var valid []market.Quote
	dropped := 0
	for _, batch := range byProvider {
		for _, q := range batch {
			if err := q.Validate(); err != nil {
				dropped++
				log.Warn().
					Err(err).
					Str("venue", q.VenueID).
					Str("event", q.EventKey).
					Msg("Dropping invalid quote")
				continue
			}
			valid = append(valid, q)
		}
	}
	return valid, dropped
}

// evaluateEvents fans consensus scoring and signal generation out per
// matched event. Both stages are pure, so no synchronization beyond the
// result slot per event is needed. Output keeps the matcher's deterministic
// event order, minus the events that produced no signal.
func (e *Engine) evaluateEvents(events []market.MatchedEvent) []*signal.Signal {
	if len(events) == 0 {
		return nil
	}

	slots := make([]*signal.Signal, len(events))
	var wg sync.WaitGroup
	for i, ev := range events {
		wg.Add(1)
		go func(index int, ev market.MatchedEvent) {
			defer wg.Done()
			rec := e.consensus.Evaluate(ev)
			slots[index] = e.signals.Generate(rec)
		}(i, ev)
	}
	wg.Wait()

	signals := make([]*signal.Signal, 0, len(slots))
	for _, s := range slots {
		if s != nil {
			signals = append(signals, s)
		}
	}
	return signals
}

func (e *Engine) emit(ctx context.Context, intents []risk.OrderIntent) {
	for _, sink := range e.sinks {
		for _, intent := range intents {
			if err := sink.RecordIntent(ctx, intent); err != nil {
				log.Error().Err(err).
					Str("instrument", intent.Instrument).
					Msg("Intent sink failed")
			}
		}
	}
}

func (e *Engine) recordStats(started time.Time, quotes, dropped, events, signals int, intents []risk.OrderIntent) {
	approved := 0
	for _, i := range intents {
		if i.Approved() {
			approved++
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.Cycles++
	e.stats.QuotesSeen += quotes
	e.stats.QuotesDropped += dropped
	e.stats.EventsMatched += events
	e.stats.SignalsEmitted += signals
	e.stats.Approved += approved
	e.stats.Rejected += len(intents) - approved
	e.stats.LastCycleAt = started
}

// GetStats returns a snapshot of the engine counters.
func (e *Engine) GetStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}
