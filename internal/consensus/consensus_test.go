package consensus

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artbotdev/art-trader/internal/market"
)

func event(probVols ...float64) market.MatchedEvent {
	venues := []string{"polymarket", "kalshi", "predictit", "venue4"}
	ev := market.MatchedEvent{CanonicalKey: "test-event"}
	for i := 0; i < len(probVols); i += 2 {
		ev.Quotes = append(ev.Quotes, market.Quote{
			VenueID:     venues[i/2],
			EventKey:    "ev-1",
			Description: "test event",
			Probability: decimal.NewFromFloat(probVols[i]),
			Volume:      decimal.NewFromFloat(probVols[i+1]),
			ObservedAt:  time.Now(),
		})
	}
	return ev
}

func TestEvaluate_VolumeWeightedMean(t *testing.T) {
	e := New(DefaultConfig())
	// (0.8*3000 + 0.6*1000) / 4000 = 0.75
	rec := e.Evaluate(event(0.8, 3000, 0.6, 1000))
	assert.True(t, rec.MeanProbability.Equal(decimal.NewFromFloat(0.75)),
		"got %s", rec.MeanProbability)
}

func TestEvaluate_ZeroVolumeFallsBackToArithmeticMean(t *testing.T) {
	e := New(DefaultConfig())
	rec := e.Evaluate(event(0.8, 0, 0.6, 0))
	assert.True(t, rec.MeanProbability.Equal(decimal.NewFromFloat(0.7)),
		"got %s", rec.MeanProbability)
}

func TestEvaluate_SpreadIsMaxMinusMin(t *testing.T) {
	e := New(DefaultConfig())
	rec := e.Evaluate(event(0.73, 1000, 0.72, 1000, 0.74, 1000))
	assert.True(t, rec.Spread.Equal(decimal.NewFromFloat(0.02)), "got %s", rec.Spread)
}

func TestEvaluate_SingleQuoteSpreadZero(t *testing.T) {
	e := New(DefaultConfig())
	rec := e.Evaluate(event(0.73, 1000))
	assert.True(t, rec.Spread.IsZero())
}

// --- tiers ---

func TestTierFor(t *testing.T) {
	assert.Equal(t, TierSingle, TierFor(1))
	assert.Equal(t, TierDual, TierFor(2))
	assert.Equal(t, TierTriple, TierFor(3))
	assert.Equal(t, TierTriple, TierFor(4))
}

func TestEvaluate_TierFollowsVenueCount(t *testing.T) {
	e := New(DefaultConfig())
	assert.Equal(t, TierSingle, e.Evaluate(event(0.7, 100)).Tier)
	assert.Equal(t, TierDual, e.Evaluate(event(0.7, 100, 0.7, 100)).Tier)
	assert.Equal(t, TierTriple, e.Evaluate(event(0.7, 100, 0.7, 100, 0.7, 100)).Tier)
}

// --- direction ---

func TestEvaluate_DirectionDeadband(t *testing.T) {
	e := New(DefaultConfig())

	tests := []struct {
		mean float64
		want Direction
	}{
		{0.73, Bullish},
		{0.56, Bullish},
		{0.55, Neutral}, // exactly at the edge stays neutral
		{0.50, Neutral},
		{0.45, Neutral},
		{0.44, Bearish},
		{0.20, Bearish},
	}
	for _, tc := range tests {
		rec := e.Evaluate(event(tc.mean, 1000))
		assert.Equal(t, tc.want, rec.Direction, "mean %v", tc.mean)
	}
}

// --- divergence ---

func TestEvaluate_DivergenceFlag(t *testing.T) {
	e := New(DefaultConfig())

	rec := e.Evaluate(event(0.58, 1000, 0.45, 1000))
	assert.True(t, rec.Divergent, "spread 0.13 must flag divergence")

	rec = e.Evaluate(event(0.73, 1000, 0.72, 1000, 0.74, 1000))
	assert.False(t, rec.Divergent, "spread 0.02 must not flag divergence")

	// exactly at the threshold is not divergent
	rec = e.Evaluate(event(0.60, 1000, 0.50, 1000))
	assert.False(t, rec.Divergent)
}

func TestEvaluate_FedScenario(t *testing.T) {
	// Three venues in tight agreement on the same event.
	e := New(DefaultConfig())
	rec := e.Evaluate(event(0.73, 1000, 0.72, 1000, 0.74, 1000))

	require.Equal(t, TierTriple, rec.Tier)
	assert.Equal(t, Bullish, rec.Direction)
	assert.False(t, rec.Divergent)
	assert.True(t, rec.Spread.Equal(decimal.NewFromFloat(0.02)))
	assert.True(t, rec.MeanProbability.Equal(decimal.NewFromFloat(0.73)), "got %s", rec.MeanProbability)
}
