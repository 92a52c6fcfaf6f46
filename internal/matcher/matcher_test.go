package matcher

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artbotdev/art-trader/internal/market"
)

var baseTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func quote(venue, key, description string, offset time.Duration) market.Quote {
	return market.Quote{
		VenueID:     venue,
		EventKey:    key,
		Description: description,
		Probability: decimal.NewFromFloat(0.6),
		Volume:      decimal.NewFromInt(1000),
		ObservedAt:  baseTime.Add(offset),
	}
}

func TestMatch_EmptyBatch(t *testing.T) {
	m := New(DefaultConfig())
	assert.Empty(t, m.Match(nil))
	assert.Empty(t, m.Match([]market.Quote{}))
}

func TestMatch_SimilarDescriptionsCluster(t *testing.T) {
	m := New(DefaultConfig())
	events := m.Match([]market.Quote{
		quote("polymarket", "pm-1", "Will the Fed cut interest rates in March?", 0),
		quote("kalshi", "ka-1", "Fed cut interest rates March", 0),
	})

	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Venues())
}

func TestMatch_SharedTickerClusters(t *testing.T) {
	m := New(DefaultConfig())
	events := m.Match([]market.Quote{
		quote("polymarket", "pm-1", "AAPL beats Q3 earnings estimates", 0),
		quote("kalshi", "ka-1", "Apple AAPL quarterly revenue above consensus", 0),
	})

	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Venues())
}

func TestMatch_UnrelatedEventsStaySeparate(t *testing.T) {
	m := New(DefaultConfig())
	events := m.Match([]market.Quote{
		quote("polymarket", "pm-1", "Will the Fed cut interest rates in March?", 0),
		quote("kalshi", "ka-1", "Lakers win the NBA championship", 0),
	})

	assert.Len(t, events, 2)
}

func TestMatch_NeverMergesSameVenue(t *testing.T) {
	m := New(DefaultConfig())
	events := m.Match([]market.Quote{
		quote("polymarket", "pm-1", "Fed cut interest rates March", 0),
		quote("polymarket", "pm-2", "Fed cut interest rates March", time.Minute),
		quote("kalshi", "ka-1", "Fed cut interest rates March", 0),
	})

	// The two polymarket quotes must never share an event.
	for _, ev := range events {
		seen := make(map[string]bool)
		for _, q := range ev.Quotes {
			assert.False(t, seen[q.VenueID], "venue %s appears twice in event %s", q.VenueID, ev.CanonicalKey)
			seen[q.VenueID] = true
		}
	}
}

func TestMatch_DuplicateVenueKeepsMostRecent(t *testing.T) {
	m := New(DefaultConfig())
	events := m.Match([]market.Quote{
		quote("polymarket", "pm-old", "Fed cut interest rates March", 0),
		quote("polymarket", "pm-new", "Fed cut interest rates March", time.Hour),
		quote("kalshi", "ka-1", "Fed cut interest rates March", 0),
	})

	require.NotEmpty(t, events)

	var multi *market.MatchedEvent
	for i := range events {
		if events[i].Venues() == 2 {
			multi = &events[i]
		}
	}
	require.NotNil(t, multi, "expected a two-venue event")

	for _, q := range multi.Quotes {
		if q.VenueID == "polymarket" {
			assert.Equal(t, "pm-new", q.EventKey)
		}
	}
}

func TestMatch_DisplacedQuoteReclusters(t *testing.T) {
	// The older polymarket quote is displaced but survives as its own
	// singleton event when singletons are allowed.
	m := New(DefaultConfig())
	events := m.Match([]market.Quote{
		quote("polymarket", "pm-old", "Fed cut interest rates March", 0),
		quote("polymarket", "pm-new", "Fed cut interest rates March", time.Hour),
		quote("kalshi", "ka-1", "Fed cut interest rates March", 0),
	})

	total := 0
	for _, ev := range events {
		total += len(ev.Quotes)
	}
	assert.Equal(t, 3, total, "no quote should be silently dropped")
}

func TestMatch_SingletonDroppedWhenDisallowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowSingleVenue = false
	m := New(cfg)

	events := m.Match([]market.Quote{
		quote("polymarket", "pm-1", "Lakers win the NBA championship", 0),
		quote("kalshi", "ka-1", "Fed cut interest rates March", 0),
		quote("predictit", "pi-1", "Fed cut interest rates March", 0),
	})

	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Venues())
}

func TestMatch_Deterministic(t *testing.T) {
	quotes := []market.Quote{
		quote("predictit", "pi-1", "Fed cut interest rates March", 0),
		quote("kalshi", "ka-1", "Will the Fed cut interest rates in March?", 0),
		quote("polymarket", "pm-1", "Fed cut interest rates March 2026", 0),
		quote("kalshi", "ka-2", "TSLA deliveries beat estimates", 0),
		quote("polymarket", "pm-2", "Tesla TSLA Q1 deliveries above consensus", 0),
	}
	m := New(DefaultConfig())

	first := m.Match(quotes)
	for i := 0; i < 10; i++ {
		// Input order must not matter.
		shuffled := append([]market.Quote{}, quotes[i%len(quotes):]...)
		shuffled = append(shuffled, quotes[:i%len(quotes)]...)
		assert.Equal(t, first, m.Match(shuffled))
	}
}

func TestMatch_CanonicalKeyStable(t *testing.T) {
	m := New(DefaultConfig())
	batch := []market.Quote{
		quote("polymarket", "pm-1", "Fed cut interest rates March", 0),
		quote("kalshi", "ka-1", "Fed cut interest rates March", 0),
	}

	a := m.Match(batch)
	b := m.Match(batch)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].CanonicalKey, b[0].CanonicalKey)
	assert.Len(t, a[0].CanonicalKey, 16)
}

// --- text features ---

func TestExtractFeatures_StopwordsAndTickers(t *testing.T) {
	f := extractFeatures("Will AAPL beat the estimates?")
	assert.True(t, f.tickers["AAPL"])
	assert.False(t, f.tokens["the"])
	assert.False(t, f.tokens["will"])
	assert.True(t, f.tokens["beat"])
}

func TestExtractFeatures_TickerBlacklist(t *testing.T) {
	f := extractFeatures("WILL GDP rise? YES or NO in USD")
	assert.Empty(t, f.tickers)
}

func TestJaccard_Bounds(t *testing.T) {
	a := map[string]bool{"fed": true, "rates": true}
	b := map[string]bool{"fed": true, "rates": true}
	assert.Equal(t, 1.0, jaccard(a, b))

	c := map[string]bool{"lakers": true}
	assert.Equal(t, 0.0, jaccard(a, c))
	assert.Equal(t, 0.0, jaccard(a, map[string]bool{}))
}
