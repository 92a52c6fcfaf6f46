package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/artbotdev/art-trader/internal/risk"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BROKERAGE EXECUTION CLIENT
// ═══════════════════════════════════════════════════════════════════════════════
//
// Turns approved order intents into market orders against an Alpaca-style
// REST brokerage. Position fractions are sized into notional amounts from
// the live account equity. Dry-run mode logs the order instead of sending it.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Gateway is the execution collaborator the engine hands approved intents to.
type Gateway interface {
	// Submit places the order behind an approved intent and returns the
	// venue's order ID.
	Submit(ctx context.Context, intent risk.OrderIntent) (string, error)
}

// Client is an Alpaca-style REST gateway.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	dryRun     bool
	httpClient *http.Client
}

// NewClient creates the execution client.
func NewClient(baseURL, apiKey, apiSecret string, dryRun bool) *Client {
	mode := "LIVE"
	if dryRun {
		mode = "DRY RUN"
	}
	log.Info().Str("mode", mode).Str("base_url", baseURL).Msg("🚀 Execution client initialized")

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		dryRun:     dryRun,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Submit places a notional market order for the intent's position fraction.
func (c *Client) Submit(ctx context.Context, intent risk.OrderIntent) (string, error) {
	if !intent.Approved() {
		return "", fmt.Errorf("refusing to submit rejected intent for %s", intent.Instrument)
	}

	equity, err := c.GetEquity(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch equity: %w", err)
	}
	notional := equity.Mul(intent.PositionFraction).Round(2)

	if c.dryRun {
		orderID := fmt.Sprintf("DRY_%d", time.Now().UnixNano())
		log.Info().
			Str("order_id", orderID).
			Str("instrument", intent.Instrument).
			Str("side", string(intent.Side)).
			Str("notional", "$"+notional.StringFixed(2)).
			Msg("📝 DRY RUN: Order would be placed")
		return orderID, nil
	}

	order := map[string]interface{}{
		"symbol":        intent.Instrument,
		"side":          string(intent.Side),
		"type":          "market",
		"notional":      notional.String(),
		"time_in_force": "day",
	}

	resp, err := c.post(ctx, "/v2/orders", order)
	if err != nil {
		return "", err
	}

	var result struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", fmt.Errorf("parse order response: %w", err)
	}

	log.Info().
		Str("order_id", result.ID).
		Str("instrument", intent.Instrument).
		Str("status", result.Status).
		Msg("✅ Order placed")

	return result.ID, nil
}

// GetEquity returns the account's current equity.
func (c *Client) GetEquity(ctx context.Context) (decimal.Decimal, error) {
	if c.dryRun && c.apiKey == "" {
		// Paper default so dry runs work without credentials.
		return decimal.NewFromInt(100000), nil
	}

	resp, err := c.get(ctx, "/v2/account")
	if err != nil {
		return decimal.Zero, err
	}

	var account struct {
		Equity string `json:"equity"`
	}
	if err := json.Unmarshal(resp, &account); err != nil {
		return decimal.Zero, fmt.Errorf("parse account: %w", err)
	}
	return decimal.NewFromString(account.Equity)
}

// ClosePosition liquidates an open position, for cooldown-driven exits.
func (c *Client) ClosePosition(ctx context.Context, instrument string) error {
	if c.dryRun {
		log.Info().Str("instrument", instrument).Msg("📝 DRY RUN: Position would be closed")
		return nil
	}
	_, err := c.delete(ctx, "/v2/positions/"+instrument)
	return err
}

// HTTP plumbing

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) delete(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", c.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", c.apiSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(data))
	}
	return data, nil
}
