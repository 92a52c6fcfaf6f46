package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MARKET MODEL - Shared types for the consensus pipeline
// ═══════════════════════════════════════════════════════════════════════════════
//
// Quote → MatchedEvent flow one way through the pipeline.
// Each stage hands its output by value to the next; nothing here is mutated
// after construction.
//
// ═══════════════════════════════════════════════════════════════════════════════

// ErrInvalidQuote marks a quote that cannot enter the pipeline.
// Invalid quotes are dropped and logged, never fatal.
var ErrInvalidQuote = errors.New("invalid quote")

// Quote is one venue's view of one event at one instant.
type Quote struct {
	VenueID     string          // originating platform (polymarket, kalshi, predictit)
	EventKey    string          // venue-local event identifier
	Description string          // free text, used for matching
	Probability decimal.Decimal // implied probability of YES, in [0,1]
	Volume      decimal.Decimal // liquidity/volume indicator, >= 0
	ObservedAt  time.Time
}

// Validate checks the quote invariants. A quote that fails here contributes
// nothing to the cycle.
func (q Quote) Validate() error {
	if q.VenueID == "" {
		return fmt.Errorf("%w: missing venue id", ErrInvalidQuote)
	}
	if q.EventKey == "" {
		return fmt.Errorf("%w: missing event key", ErrInvalidQuote)
	}
	if q.Probability.LessThan(decimal.Zero) || q.Probability.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: probability %s out of [0,1]", ErrInvalidQuote, q.Probability.String())
	}
	if q.Volume.IsNegative() {
		return fmt.Errorf("%w: negative volume %s", ErrInvalidQuote, q.Volume.String())
	}
	return nil
}

// MatchedEvent is a cluster of quotes believed to describe the same
// real-world event. At most one quote per venue.
type MatchedEvent struct {
	CanonicalKey string
	Quotes       []Quote
}

// Venues returns the distinct venue count. Matching guarantees one quote per
// venue, so this is just len(Quotes).
func (m MatchedEvent) Venues() int {
	return len(m.Quotes)
}

// Descriptions concatenates all contributing descriptions, used by the
// signal generator's keyword classifier.
func (m MatchedEvent) Descriptions() []string {
	out := make([]string, 0, len(m.Quotes))
	for _, q := range m.Quotes {
		out = append(out, q.Description)
	}
	return out
}
