package matcher

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/artbotdev/art-trader/internal/market"
)

// ═══════════════════════════════════════════════════════════════════════════════
// EVENT MATCHER - Cross-venue event clustering
// ═══════════════════════════════════════════════════════════════════════════════
//
// Groups quotes from different venues that describe the same real-world event.
//
// Two quotes match when they share a ticker-like token ("AAPL", "TSLA") or
// their normalized description token overlap (Jaccard) clears the threshold.
// Matching is transitive within a batch: connected components of the match
// graph become MatchedEvents. A venue contributes at most one quote per
// match; older duplicates are split off and re-clustered among themselves.
//
// Deterministic for a given batch: quotes are sorted by venue then timestamp
// before the graph is built, and output is ordered by canonical key.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Config controls the clustering rules.
type Config struct {
	JaccardThreshold float64 // token-overlap ratio needed for a match edge
	AllowSingleVenue bool    // keep singleton clusters as tier-single events
}

// DefaultConfig mirrors the engine defaults.
func DefaultConfig() Config {
	return Config{
		JaccardThreshold: 0.6,
		AllowSingleVenue: true,
	}
}

// Matcher clusters a quote batch into matched events.
type Matcher struct {
	cfg Config
}

func New(cfg Config) *Matcher {
	return &Matcher{cfg: cfg}
}

// Match clusters the batch. An empty batch yields an empty result, not an
// error. Quotes that end up alone are dropped unless AllowSingleVenue is set.
func (m *Matcher) Match(quotes []market.Quote) []market.MatchedEvent {
	if len(quotes) == 0 {
		return nil
	}

	// Stable ordering so the same batch always builds the same graph.
	sorted := make([]market.Quote, len(quotes))
	copy(sorted, quotes)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].VenueID != sorted[j].VenueID {
			return sorted[i].VenueID < sorted[j].VenueID
		}
		return sorted[i].ObservedAt.Before(sorted[j].ObservedAt)
	})

	events := m.cluster(sorted)

	sort.Slice(events, func(i, j int) bool {
		return events[i].CanonicalKey < events[j].CanonicalKey
	})
	return events
}

// cluster runs one graph pass and recurses on quotes displaced by the
// one-per-venue rule. The displaced set is always strictly smaller than its
// source component, so recursion terminates.
func (m *Matcher) cluster(quotes []market.Quote) []market.MatchedEvent {
	if len(quotes) == 0 {
		return nil
	}

	features := make([]quoteFeatures, len(quotes))
	for i, q := range quotes {
		features[i] = extractFeatures(q.Description)
	}

	uf := newUnionFind(len(quotes))
	for i := 0; i < len(quotes); i++ {
		for j := i + 1; j < len(quotes); j++ {
			if quotes[i].VenueID == quotes[j].VenueID {
				continue
			}
			if features[i].matches(features[j], m.cfg.JaccardThreshold) {
				uf.union(i, j)
			}
		}
	}

	// Collect components keyed by their smallest member index.
	components := make(map[int][]int)
	for i := range quotes {
		root := uf.find(i)
		components[root] = append(components[root], i)
	}
	roots := make([]int, 0, len(components))
	for root := range components {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	var events []market.MatchedEvent
	var displaced []market.Quote

	for _, root := range roots {
		member := components[root]

		// Enforce one quote per venue: keep the most recent, displace the rest.
		latest := make(map[string]int) // venue -> index into quotes
		for _, idx := range member {
			q := quotes[idx]
			prev, ok := latest[q.VenueID]
			if !ok || q.ObservedAt.After(quotes[prev].ObservedAt) {
				if ok {
					displaced = append(displaced, quotes[prev])
				}
				latest[q.VenueID] = idx
			} else {
				displaced = append(displaced, q)
			}
		}

		kept := make([]int, 0, len(latest))
		for _, idx := range latest {
			kept = append(kept, idx)
		}
		sort.Ints(kept)

		if len(kept) == 1 && !m.cfg.AllowSingleVenue {
			log.Debug().
				Str("venue", quotes[kept[0]].VenueID).
				Str("event", quotes[kept[0]].EventKey).
				Msg("Dropping uncorroborated quote")
			continue
		}

		ev := market.MatchedEvent{Quotes: make([]market.Quote, 0, len(kept))}
		for _, idx := range kept {
			ev.Quotes = append(ev.Quotes, quotes[idx])
		}
		ev.CanonicalKey = canonicalKey(ev.Quotes)
		events = append(events, ev)
	}

	if len(displaced) > 0 {
		events = append(events, m.cluster(displaced)...)
	}
	return events
}

// ═══════════════════════════════════════════════════════════════════════════════
// TEXT FEATURES
// ═══════════════════════════════════════════════════════════════════════════════

var (
	tickerPattern = regexp.MustCompile(`\b[A-Z]{2,5}\b`)
	nonAlphaNum   = regexp.MustCompile(`[^a-z0-9\s]+`)

	stopwords = map[string]bool{
		"a": true, "an": true, "and": true, "are": true, "at": true,
		"be": true, "by": true, "for": true, "in": true, "is": true,
		"it": true, "of": true, "on": true, "or": true, "the": true,
		"to": true, "will": true, "with": true,
	}

	// Uppercase words that look like tickers but aren't.
	tickerBlacklist = map[string]bool{
		"YES": true, "NO": true, "THE": true, "AND": true, "FOR": true,
		"WILL": true, "USD": true, "CEO": true, "GDP": true,
	}
)

type quoteFeatures struct {
	tokens  map[string]bool // normalized description tokens
	tickers map[string]bool // ticker-like tokens from the raw text
}

func extractFeatures(description string) quoteFeatures {
	f := quoteFeatures{
		tokens:  make(map[string]bool),
		tickers: make(map[string]bool),
	}

	for _, t := range tickerPattern.FindAllString(description, -1) {
		if !tickerBlacklist[t] {
			f.tickers[t] = true
		}
	}

	normalized := nonAlphaNum.ReplaceAllString(strings.ToLower(description), " ")
	for _, t := range strings.Fields(normalized) {
		if !stopwords[t] {
			f.tokens[t] = true
		}
	}
	return f
}

// matches reports whether two quotes describe the same event: a shared
// ticker token is a direct hit, otherwise token overlap decides.
func (f quoteFeatures) matches(other quoteFeatures, threshold float64) bool {
	for t := range f.tickers {
		if other.tickers[t] {
			return true
		}
	}
	return jaccard(f.tokens, other.tokens) >= threshold
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// canonicalKey derives a stable identifier from the union of normalized
// tokens across the cluster's quotes.
func canonicalKey(quotes []market.Quote) string {
	union := make(map[string]bool)
	for _, q := range quotes {
		for t := range extractFeatures(q.Description).tokens {
			union[t] = true
		}
	}
	tokens := make([]string, 0, len(union))
	for t := range union {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)

	h := sha256.Sum256([]byte(strings.Join(tokens, "|")))
	return hex.EncodeToString(h[:])[:16]
}

// ═══════════════════════════════════════════════════════════════════════════════
// UNION-FIND
// ═══════════════════════════════════════════════════════════════════════════════

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

// union attaches the larger root to the smaller so component roots stay
// stable under the pre-sorted quote order.
func (uf *unionFind) union(i, j int) {
	ri, rj := uf.find(i), uf.find(j)
	if ri == rj {
		return
	}
	if ri < rj {
		uf.parent[rj] = ri
	} else {
		uf.parent[ri] = rj
	}
}
