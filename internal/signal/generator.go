package signal

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/artbotdev/art-trader/internal/consensus"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SIGNAL GENERATOR - Consensus record → trade candidate
// ═══════════════════════════════════════════════════════════════════════════════
//
// Maps each non-neutral consensus record to zero or one signal:
//
//   confidence = base(tier) × (1 − min(spread / spread_cap, 1))
//
// Lower spread and broader agreement raise confidence. Divergence between
// venues only ever lowers it; signals under the floor are dropped outright,
// never forwarded as hold.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Side of the resulting trade.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Signal is a candidate trade derived from one consensus record.
type Signal struct {
	Instrument string
	Side       Side
	Confidence decimal.Decimal
	Category   Category
	Tier       consensus.Tier
	Rationale  Rationale
}

// Rationale is the structured trace of what produced the signal, kept for
// audit alongside the resulting order intent.
type Rationale struct {
	CanonicalKey    string
	Venues          []string
	Probabilities   []VenueProbability
	MeanProbability decimal.Decimal
	Spread          decimal.Decimal
	Divergent       bool
	Description     string // representative event text
}

// VenueProbability is one venue's contribution.
type VenueProbability struct {
	Venue       string
	Probability decimal.Decimal
}

// Config for signal generation.
type Config struct {
	SpreadCap       decimal.Decimal // spread at which confidence reaches zero
	ConfidenceFloor decimal.Decimal // signals below this are dropped
	TierBase        map[consensus.Tier]decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		SpreadCap:       decimal.NewFromFloat(0.25),
		ConfidenceFloor: decimal.NewFromFloat(0.50),
		TierBase: map[consensus.Tier]decimal.Decimal{
			consensus.TierSingle: decimal.NewFromFloat(0.60),
			consensus.TierDual:   decimal.NewFromFloat(0.80),
			consensus.TierTriple: decimal.NewFromFloat(1.00),
		},
	}
}

// Generator turns consensus records into signals.
type Generator struct {
	cfg Config
}

func New(cfg Config) *Generator {
	return &Generator{cfg: cfg}
}

// Generate returns nil when the record is neutral or the confidence falls
// under the floor. Absence of a signal is a normal outcome, not an error.
func (g *Generator) Generate(rec consensus.Record) *Signal {
	if rec.Direction == consensus.Neutral {
		return nil
	}

	descriptions := rec.Event.Descriptions()
	category := Classify(descriptions)
	instrument := instrumentFor(category, descriptions)

	confidence := g.Confidence(rec.Tier, rec.Spread)
	if confidence.LessThan(g.cfg.ConfidenceFloor) {
		log.Debug().
			Str("event", rec.Event.CanonicalKey).
			Str("tier", string(rec.Tier)).
			Str("spread", rec.Spread.StringFixed(3)).
			Str("confidence", confidence.StringFixed(3)).
			Bool("divergent", rec.Divergent).
			Msg("Signal dropped below confidence floor")
		return nil
	}

	side := Buy
	if rec.Direction == consensus.Bearish {
		side = Sell
	}

	sig := &Signal{
		Instrument: instrument,
		Side:       side,
		Confidence: confidence,
		Category:   category,
		Tier:       rec.Tier,
		Rationale:  buildRationale(rec),
	}

	log.Info().
		Str("instrument", sig.Instrument).
		Str("side", string(sig.Side)).
		Str("category", string(category)).
		Str("tier", string(rec.Tier)).
		Str("confidence", confidence.StringFixed(3)).
		Str("mean_prob", rec.MeanProbability.StringFixed(3)).
		Msg("🎯 Signal generated")

	return sig
}

// Confidence implements the tier/spread formula. Monotone up in tier,
// monotone down in spread, clamped to [0,1].
func (g *Generator) Confidence(tier consensus.Tier, spread decimal.Decimal) decimal.Decimal {
	base, ok := g.cfg.TierBase[tier]
	if !ok {
		return decimal.Zero
	}

	one := decimal.NewFromInt(1)
	// A non-positive cap means no spread is tolerable.
	penalty := one
	if g.cfg.SpreadCap.IsPositive() {
		penalty = spread.Div(g.cfg.SpreadCap)
		if penalty.GreaterThan(one) {
			penalty = one
		}
	}
	conf := base.Mul(one.Sub(penalty))
	if conf.IsNegative() {
		return decimal.Zero
	}
	return conf
}

func buildRationale(rec consensus.Record) Rationale {
	r := Rationale{
		CanonicalKey:    rec.Event.CanonicalKey,
		MeanProbability: rec.MeanProbability,
		Spread:          rec.Spread,
		Divergent:       rec.Divergent,
	}
	for _, q := range rec.Event.Quotes {
		r.Venues = append(r.Venues, q.VenueID)
		r.Probabilities = append(r.Probabilities, VenueProbability{
			Venue:       q.VenueID,
			Probability: q.Probability,
		})
		if r.Description == "" {
			r.Description = q.Description
		}
	}
	return r
}
