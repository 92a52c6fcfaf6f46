package feeds

import (
	"context"

	"github.com/artbotdev/art-trader/internal/market"
)

// QuoteProvider supplies one venue's quote batch per cycle. Implementations
// own authentication, transport, and venue schema translation; the engine
// only sees validated market.Quote values.
//
// A provider that errors or times out contributes zero quotes to the cycle.
type QuoteProvider interface {
	// Venue returns the stable venue identifier.
	Venue() string

	// Fetch returns the venue's current quotes. Must honor ctx cancellation.
	Fetch(ctx context.Context) ([]market.Quote, error)
}
