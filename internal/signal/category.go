package signal

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CATEGORY TAXONOMY - Keyword classification of matched events
// ═══════════════════════════════════════════════════════════════════════════════

// Category of the real-world event behind a matched cluster.
type Category string

const (
	CategoryEarnings       Category = "earnings"
	CategoryMonetaryPolicy Category = "monetary_policy"
	CategoryElection       Category = "election"
	CategoryPriceTarget    Category = "price_target"
	CategoryMergerAcq      Category = "merger_acquisition"
	CategoryGeneral        Category = "general"
)

// categoryKeywords is checked in order; the first category with a hit wins.
// Keeping this an explicit table keeps classification auditable.
var categoryKeywords = []struct {
	category Category
	words    []string
}{
	{CategoryMonetaryPolicy, []string{
		"fed", "federal reserve", "fomc", "interest rate", "rate cut", "rate hike",
		"cuts rates", "raises rates", "monetary policy",
	}},
	{CategoryEarnings, []string{
		"earnings", "revenue", "quarterly", "beats", "beat estimates", "misses",
		"eps", "guidance",
	}},
	{CategoryElection, []string{
		"election", "republican", "democrat", "president", "congress", "senate",
		"house majority", "wins the",
	}},
	{CategoryMergerAcq, []string{
		"merger", "acquisition", "acquire", "acquires", "buyout", "takeover",
	}},
	{CategoryPriceTarget, []string{
		"reaches $", "hits $", "above $", "below $", "all-time high", "price target",
		"bitcoin", "ethereum", "crypto",
	}},
}

// Classify assigns a category from the matched event's descriptions.
// Unrecognized events fall through to general.
func Classify(descriptions []string) Category {
	text := strings.ToLower(strings.Join(descriptions, " "))
	for _, entry := range categoryKeywords {
		for _, w := range entry.words {
			if strings.Contains(text, w) {
				return entry.category
			}
		}
	}
	return CategoryGeneral
}

// ═══════════════════════════════════════════════════════════════════════════════
// INSTRUMENT MAPPING - Static table, not a rule engine
// ═══════════════════════════════════════════════════════════════════════════════

// companySymbols maps company keywords to their tickers, for categories
// that trade the named stock directly.
var companySymbols = []struct {
	symbol string
	words  []string
}{
	{"AAPL", []string{"apple", "iphone"}},
	{"TSLA", []string{"tesla", "musk"}},
	{"MSFT", []string{"microsoft"}},
	{"NVDA", []string{"nvidia"}},
	{"GOOGL", []string{"google", "alphabet"}},
	{"AMZN", []string{"amazon"}},
	{"META", []string{"meta", "facebook"}},
	{"COIN", []string{"coinbase"}},
	{"MSTR", []string{"microstrategy"}},
	{"JPM", []string{"jpmorgan"}},
}

var rawTickerPattern = regexp.MustCompile(`\b[A-Z]{2,5}\b`)

// knownTickers limits raw-token extraction to symbols we actually map, so a
// stray uppercase word never becomes a trade.
var knownTickers = map[string]bool{
	"AAPL": true, "TSLA": true, "MSFT": true, "NVDA": true, "GOOGL": true,
	"AMZN": true, "META": true, "COIN": true, "MSTR": true, "JPM": true,
	"SPY": true, "QQQ": true, "TLT": true, "XLF": true, "XLE": true,
	"XLK": true, "RTX": true,
}

// extractSymbol finds a directly tradable ticker in the event text, either
// as a raw ticker token or via a company-name keyword.
func extractSymbol(descriptions []string) (string, bool) {
	raw := strings.Join(descriptions, " ")
	for _, t := range rawTickerPattern.FindAllString(raw, -1) {
		if knownTickers[t] {
			return t, true
		}
	}

	lower := strings.ToLower(raw)
	for _, entry := range companySymbols {
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				return entry.symbol, true
			}
		}
	}
	return "", false
}

// instrumentFor resolves the tradable instrument for a category.
//
// Some categories imply an inverse relationship between event probability
// and the instrument we trade: a rate-cut consensus buys the bond proxy TLT
// rather than any policy instrument, and an election result trades the
// sector basket the winning side favors.
func instrumentFor(category Category, descriptions []string) string {
	text := strings.ToLower(strings.Join(descriptions, " "))

	switch category {
	case CategoryEarnings, CategoryMergerAcq:
		if sym, ok := extractSymbol(descriptions); ok {
			return sym
		}
		return "SPY"

	case CategoryMonetaryPolicy:
		// Bond proxy for rate direction; the Risk side is decided by the
		// consensus direction on the cut/hike event itself.
		if strings.Contains(text, "hike") || strings.Contains(text, "raise") {
			return "XLF" // banks benefit from hikes
		}
		return "TLT"

	case CategoryElection:
		if strings.Contains(text, "republican") || strings.Contains(text, "gop") {
			return "RTX"
		}
		if strings.Contains(text, "democrat") {
			return "XLK"
		}
		return "SPY"

	case CategoryPriceTarget:
		if sym, ok := extractSymbol(descriptions); ok {
			return sym
		}
		if strings.Contains(text, "bitcoin") || strings.Contains(text, "crypto") || strings.Contains(text, "ethereum") {
			return "COIN"
		}
		return "SPY"

	default:
		return "SPY"
	}
}
