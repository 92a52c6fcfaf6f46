package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/artbotdev/art-trader/internal/market"
)

// ═══════════════════════════════════════════════════════════════════════════════
// HTTP QUOTE PROVIDERS - REST polling adapters per venue
// ═══════════════════════════════════════════════════════════════════════════════
//
// One adapter per venue schema. Each fetch translates the venue's market
// listing into market.Quote values; malformed entries are skipped with a
// debug log, never fatal.
//
// ═══════════════════════════════════════════════════════════════════════════════

const defaultFetchLimit = 100

// HTTPProvider polls a venue REST endpoint.
type HTTPProvider struct {
	venue  string
	url    string
	client *http.Client
	parse  func(venue string, body []byte, now time.Time) ([]market.Quote, error)
}

func (p *HTTPProvider) Venue() string { return p.venue }

// Fetch performs one poll. Context controls the whole request.
func (p *HTTPProvider) Fetch(ctx context.Context) ([]market.Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s fetch: %w", p.venue, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s fetch: status %d", p.venue, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", p.venue, err)
	}

	quotes, err := p.parse(p.venue, body, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%s parse: %w", p.venue, err)
	}

	log.Debug().Str("venue", p.venue).Int("quotes", len(quotes)).Msg("📡 Venue poll complete")
	return quotes, nil
}

// NewPolymarketProvider polls the gamma markets API.
func NewPolymarketProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		venue:  "polymarket",
		url:    fmt.Sprintf("%s/markets?active=true&closed=false&limit=%d", baseURL, defaultFetchLimit),
		client: &http.Client{Timeout: 30 * time.Second},
		parse:  parsePolymarket,
	}
}

// NewKalshiProvider polls the Kalshi trade API.
func NewKalshiProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		venue:  "kalshi",
		url:    fmt.Sprintf("%s/markets?status=open&limit=%d", baseURL, defaultFetchLimit),
		client: &http.Client{Timeout: 30 * time.Second},
		parse:  parseKalshi,
	}
}

// NewPredictItProvider polls the public PredictIt market data feed.
func NewPredictItProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		venue:  "predictit",
		url:    baseURL + "/all/",
		client: &http.Client{Timeout: 30 * time.Second},
		parse:  parsePredictIt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// VENUE SCHEMA TRANSLATION
// ═══════════════════════════════════════════════════════════════════════════════

// parsePolymarket handles the gamma markets listing. outcomePrices arrives
// as a JSON-encoded string array; the first entry is the YES price.
func parsePolymarket(venue string, body []byte, now time.Time) ([]market.Quote, error) {
	var markets []struct {
		ID            string      `json:"id"`
		Question      string      `json:"question"`
		OutcomePrices string      `json:"outcomePrices"`
		Volume24hr    json.Number `json:"volume24hr"`
	}
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, err
	}

	quotes := make([]market.Quote, 0, len(markets))
	for _, m := range markets {
		var prices []string
		if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err != nil || len(prices) == 0 {
			log.Debug().Str("venue", venue).Str("market", m.ID).Msg("Skipping market without prices")
			continue
		}
		prob, err := decimal.NewFromString(prices[0])
		if err != nil {
			continue
		}
		volume, _ := decimal.NewFromString(m.Volume24hr.String())

		quotes = append(quotes, market.Quote{
			VenueID:     venue,
			EventKey:    m.ID,
			Description: m.Question,
			Probability: prob,
			Volume:      volume,
			ObservedAt:  now,
		})
	}
	return quotes, nil
}

// parseKalshi handles the trade-api markets listing. Prices are in cents.
func parseKalshi(venue string, body []byte, now time.Time) ([]market.Quote, error) {
	var payload struct {
		Markets []struct {
			Ticker    string `json:"ticker"`
			Title     string `json:"title"`
			LastPrice int64  `json:"last_price"`
			Volume    int64  `json:"volume"`
		} `json:"markets"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	cents := decimal.NewFromInt(100)
	quotes := make([]market.Quote, 0, len(payload.Markets))
	for _, m := range payload.Markets {
		quotes = append(quotes, market.Quote{
			VenueID:     venue,
			EventKey:    m.Ticker,
			Description: m.Title,
			Probability: decimal.NewFromInt(m.LastPrice).Div(cents),
			Volume:      decimal.NewFromInt(m.Volume),
			ObservedAt:  now,
		})
	}
	return quotes, nil
}

// parsePredictIt handles the public /all/ feed; contracts carry the traded
// price, the first contract stands for the market's YES outcome.
func parsePredictIt(venue string, body []byte, now time.Time) ([]market.Quote, error) {
	var payload struct {
		Markets []struct {
			ID        int64  `json:"id"`
			Name      string `json:"name"`
			Contracts []struct {
				LastTradePrice float64 `json:"lastTradePrice"`
			} `json:"contracts"`
		} `json:"markets"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	quotes := make([]market.Quote, 0, len(payload.Markets))
	for _, m := range payload.Markets {
		if len(m.Contracts) == 0 {
			continue
		}
		quotes = append(quotes, market.Quote{
			VenueID:     venue,
			EventKey:    fmt.Sprintf("%d", m.ID),
			Description: m.Name,
			Probability: decimal.NewFromFloat(m.Contracts[0].LastTradePrice),
			Volume:      decimal.Zero, // feed carries no volume
			ObservedAt:  now,
		})
	}
	return quotes, nil
}
