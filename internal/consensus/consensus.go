package consensus

import (
	"github.com/shopspring/decimal"

	"github.com/artbotdev/art-trader/internal/market"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CONSENSUS ENGINE - Cross-venue agreement scoring
// ═══════════════════════════════════════════════════════════════════════════════
//
// Turns each MatchedEvent into exactly one Record:
//   mean  = volume-weighted mean probability (unweighted when no volume)
//   spread = max - min probability across venues
//   tier   = single / dual / triple by distinct venue count
//
// High spread is an early warning, not an arbitrage invitation: the record
// carries a Divergent flag and the signal generator penalizes confidence
// for it. We never trade harder on unresolved disagreement.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Tier is the agreement breadth across venues.
type Tier string

const (
	TierSingle Tier = "single"
	TierDual   Tier = "dual"
	TierTriple Tier = "triple" // 3+ venues
)

// TierFor maps a distinct venue count to its tier.
func TierFor(venues int) Tier {
	switch {
	case venues >= 3:
		return TierTriple
	case venues == 2:
		return TierDual
	default:
		return TierSingle
	}
}

// Direction of the consensus relative to the 0.5 midpoint.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// Record summarizes one matched event for one evaluation cycle. Records are
// built fresh every cycle and never mutated.
type Record struct {
	Event           market.MatchedEvent
	MeanProbability decimal.Decimal
	Spread          decimal.Decimal
	Tier            Tier
	Direction       Direction
	Divergent       bool // spread above the divergence threshold
}

// Config for consensus scoring.
type Config struct {
	Deadband            decimal.Decimal // neutral band around 0.5
	DivergenceThreshold decimal.Decimal // spread above this flags divergence
}

func DefaultConfig() Config {
	return Config{
		Deadband:            decimal.NewFromFloat(0.05),
		DivergenceThreshold: decimal.NewFromFloat(0.10),
	}
}

// Engine computes consensus records.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate produces the record for one matched event. Events are guaranteed
// non-empty by the matcher.
func (e *Engine) Evaluate(ev market.MatchedEvent) Record {
	mean := weightedMean(ev.Quotes)
	spread := probabilitySpread(ev.Quotes)

	rec := Record{
		Event:           ev,
		MeanProbability: mean,
		Spread:          spread,
		Tier:            TierFor(ev.Venues()),
		Divergent:       spread.GreaterThan(e.cfg.DivergenceThreshold),
	}

	half := decimal.NewFromFloat(0.5)
	switch {
	case mean.GreaterThan(half.Add(e.cfg.Deadband)):
		rec.Direction = Bullish
	case mean.LessThan(half.Sub(e.cfg.Deadband)):
		rec.Direction = Bearish
	default:
		rec.Direction = Neutral
	}
	return rec
}

// weightedMean is sum(p*v)/sum(v), falling back to the arithmetic mean when
// every contributing volume is zero.
func weightedMean(quotes []market.Quote) decimal.Decimal {
	if len(quotes) == 0 {
		return decimal.Zero
	}

	weighted := decimal.Zero
	totalVolume := decimal.Zero
	plain := decimal.Zero
	for _, q := range quotes {
		weighted = weighted.Add(q.Probability.Mul(q.Volume))
		totalVolume = totalVolume.Add(q.Volume)
		plain = plain.Add(q.Probability)
	}

	if totalVolume.IsZero() {
		return plain.Div(decimal.NewFromInt(int64(len(quotes))))
	}
	return weighted.Div(totalVolume)
}

// probabilitySpread is max - min probability; zero for a lone venue.
func probabilitySpread(quotes []market.Quote) decimal.Decimal {
	if len(quotes) < 2 {
		return decimal.Zero
	}
	min, max := quotes[0].Probability, quotes[0].Probability
	for _, q := range quotes[1:] {
		if q.Probability.LessThan(min) {
			min = q.Probability
		}
		if q.Probability.GreaterThan(max) {
			max = q.Probability
		}
	}
	return max.Sub(min)
}
