package signal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artbotdev/art-trader/internal/consensus"
	"github.com/artbotdev/art-trader/internal/market"
)

func record(tier consensus.Tier, dir consensus.Direction, mean, spread float64, description string) consensus.Record {
	venues := []string{"polymarket", "kalshi", "predictit"}
	n := 1
	switch tier {
	case consensus.TierDual:
		n = 2
	case consensus.TierTriple:
		n = 3
	}

	ev := market.MatchedEvent{CanonicalKey: "abc123"}
	for i := 0; i < n; i++ {
		ev.Quotes = append(ev.Quotes, market.Quote{
			VenueID:     venues[i],
			EventKey:    "ev-1",
			Description: description,
			Probability: decimal.NewFromFloat(mean),
			Volume:      decimal.NewFromInt(1000),
			ObservedAt:  time.Now(),
		})
	}
	return consensus.Record{
		Event:           ev,
		MeanProbability: decimal.NewFromFloat(mean),
		Spread:          decimal.NewFromFloat(spread),
		Tier:            tier,
		Direction:       dir,
		Divergent:       spread > 0.10,
	}
}

func TestGenerate_NeutralYieldsNothing(t *testing.T) {
	g := New(DefaultConfig())
	assert.Nil(t, g.Generate(record(consensus.TierTriple, consensus.Neutral, 0.52, 0.01, "Fed cuts rates")))
}

func TestGenerate_BullishBuysBearishSells(t *testing.T) {
	g := New(DefaultConfig())

	sig := g.Generate(record(consensus.TierTriple, consensus.Bullish, 0.73, 0.02, "Fed cuts rates in March"))
	require.NotNil(t, sig)
	assert.Equal(t, Buy, sig.Side)

	sig = g.Generate(record(consensus.TierTriple, consensus.Bearish, 0.25, 0.02, "Fed cuts rates in March"))
	require.NotNil(t, sig)
	assert.Equal(t, Sell, sig.Side)
}

func TestGenerate_FedScenario(t *testing.T) {
	// Triple tier, spread 0.02: confidence = 1.00 × (1 − 0.02/0.25) = 0.92
	g := New(DefaultConfig())
	sig := g.Generate(record(consensus.TierTriple, consensus.Bullish, 0.73, 0.02, "Will the Fed cut interest rates in March?"))

	require.NotNil(t, sig)
	assert.Equal(t, "TLT", sig.Instrument)
	assert.Equal(t, Buy, sig.Side)
	assert.Equal(t, CategoryMonetaryPolicy, sig.Category)
	assert.True(t, sig.Confidence.Equal(decimal.NewFromFloat(0.92)), "got %s", sig.Confidence)
}

func TestGenerate_DivergentDualDropped(t *testing.T) {
	// Dual tier, spread 0.13: confidence = 0.80 × (1 − 0.52) = 0.384 < 0.50
	g := New(DefaultConfig())
	sig := g.Generate(record(consensus.TierDual, consensus.Bullish, 0.58, 0.13, "TSLA beats delivery estimates"))
	assert.Nil(t, sig)
}

func TestGenerate_RationaleCarriesVenues(t *testing.T) {
	g := New(DefaultConfig())
	sig := g.Generate(record(consensus.TierTriple, consensus.Bullish, 0.73, 0.02, "Fed cuts rates"))

	require.NotNil(t, sig)
	assert.Equal(t, "abc123", sig.Rationale.CanonicalKey)
	assert.Equal(t, []string{"polymarket", "kalshi", "predictit"}, sig.Rationale.Venues)
	assert.Len(t, sig.Rationale.Probabilities, 3)
	assert.NotEmpty(t, sig.Rationale.Description)
}

// --- confidence formula ---

func TestConfidence_MonotoneInTier(t *testing.T) {
	g := New(DefaultConfig())
	spread := decimal.NewFromFloat(0.05)

	single := g.Confidence(consensus.TierSingle, spread)
	dual := g.Confidence(consensus.TierDual, spread)
	triple := g.Confidence(consensus.TierTriple, spread)

	assert.True(t, single.LessThan(dual))
	assert.True(t, dual.LessThan(triple))
}

func TestConfidence_MonotoneDownInSpread(t *testing.T) {
	g := New(DefaultConfig())

	prev := g.Confidence(consensus.TierTriple, decimal.Zero)
	for _, s := range []float64{0.02, 0.05, 0.10, 0.20} {
		cur := g.Confidence(consensus.TierTriple, decimal.NewFromFloat(s))
		assert.True(t, cur.LessThan(prev), "spread %v", s)
		prev = cur
	}
}

func TestConfidence_SpreadCapClampsToZero(t *testing.T) {
	g := New(DefaultConfig())
	assert.True(t, g.Confidence(consensus.TierTriple, decimal.NewFromFloat(0.25)).IsZero())
	assert.True(t, g.Confidence(consensus.TierTriple, decimal.NewFromFloat(0.90)).IsZero())
}

func TestConfidence_ZeroSpreadEqualsBase(t *testing.T) {
	g := New(DefaultConfig())
	assert.True(t, g.Confidence(consensus.TierTriple, decimal.Zero).Equal(decimal.NewFromInt(1)))
	assert.True(t, g.Confidence(consensus.TierDual, decimal.Zero).Equal(decimal.NewFromFloat(0.80)))
	assert.True(t, g.Confidence(consensus.TierSingle, decimal.Zero).Equal(decimal.NewFromFloat(0.60)))
}

func TestConfidence_NonPositiveSpreadCap(t *testing.T) {
	// Misconfigured caps must never panic the scoring path; they collapse
	// confidence to zero instead.
	cfg := DefaultConfig()
	cfg.SpreadCap = decimal.Zero
	g := New(cfg)
	assert.True(t, g.Confidence(consensus.TierTriple, decimal.NewFromFloat(0.02)).IsZero())

	cfg.SpreadCap = decimal.NewFromFloat(-0.1)
	g = New(cfg)
	assert.True(t, g.Confidence(consensus.TierTriple, decimal.Zero).IsZero())
}

func TestConfidence_UnknownTierIsZero(t *testing.T) {
	g := New(DefaultConfig())
	assert.True(t, g.Confidence(consensus.Tier("quadruple"), decimal.Zero).IsZero())
}

// --- classification ---

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want Category
	}{
		{"Will the Fed cut interest rates in March?", CategoryMonetaryPolicy},
		{"FOMC raises rates by 25bps", CategoryMonetaryPolicy},
		{"AAPL beats Q3 earnings estimates", CategoryEarnings},
		{"Republican wins the presidential election", CategoryElection},
		{"Microsoft announces acquisition of gaming studio", CategoryMergerAcq},
		{"Bitcoin reaches $100k by June", CategoryPriceTarget},
		{"Lakers win the NBA championship", CategoryGeneral},
		{"Warriors wins the finals", CategoryElection}, // "wins the" collides; accepted cost of a keyword table
		{"It rains in Seattle tomorrow", CategoryGeneral},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Classify([]string{tc.text}), "text %q", tc.text)
	}
}

func TestClassify_FirstCategoryWins(t *testing.T) {
	// Mentions both the Fed and earnings; monetary policy is checked first.
	got := Classify([]string{"Fed rate cut lifts bank earnings"})
	assert.Equal(t, CategoryMonetaryPolicy, got)
}

// --- instrument mapping ---

func TestInstrumentFor(t *testing.T) {
	tests := []struct {
		category Category
		text     string
		want     string
	}{
		{CategoryEarnings, "AAPL beats Q3 earnings estimates", "AAPL"},
		{CategoryEarnings, "Tesla quarterly deliveries beat estimates", "TSLA"},
		{CategoryEarnings, "Regional bank earnings disappoint", "SPY"},
		{CategoryMonetaryPolicy, "Fed cuts rates in March", "TLT"},
		{CategoryMonetaryPolicy, "Fed hikes rates by 50bps", "XLF"},
		{CategoryElection, "Republican wins the Senate", "RTX"},
		{CategoryElection, "Democrat wins the White House", "XLK"},
		{CategoryElection, "Third party spoils the election", "SPY"},
		{CategoryMergerAcq, "Microsoft acquires gaming studio", "MSFT"},
		{CategoryPriceTarget, "Bitcoin reaches $100k", "COIN"},
		{CategoryPriceTarget, "NVDA hits $200", "NVDA"},
		{CategoryGeneral, "It rains in Seattle", "SPY"},
	}
	for _, tc := range tests {
		got := instrumentFor(tc.category, []string{tc.text})
		assert.Equal(t, tc.want, got, "category %s text %q", tc.category, tc.text)
	}
}

func TestExtractSymbol_IgnoresUnknownUppercase(t *testing.T) {
	_, ok := extractSymbol([]string{"OPEC announces production cut"})
	assert.False(t, ok)

	sym, ok := extractSymbol([]string{"AAPL pops after hours"})
	assert.True(t, ok)
	assert.Equal(t, "AAPL", sym)
}
