package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artbotdev/art-trader/internal/risk"
	"github.com/artbotdev/art-trader/internal/signal"
)

func approvedIntent(instrument string, fraction float64) risk.OrderIntent {
	return risk.OrderIntent{
		Instrument:       instrument,
		Side:             signal.Buy,
		PositionFraction: decimal.NewFromFloat(fraction),
		Status:           risk.StatusApproved,
	}
}

func TestSubmit_RefusesRejectedIntent(t *testing.T) {
	c := NewClient("http://localhost:1", "", "", true)
	intent := risk.OrderIntent{
		Instrument: "TLT",
		Status:     risk.StatusRejected,
		Reason:     risk.ReasonLowConfidence,
	}
	_, err := c.Submit(context.Background(), intent)
	assert.Error(t, err)
}

func TestSubmit_DryRunPlacesNothing(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "", true)
	orderID, err := c.Submit(context.Background(), approvedIntent("TLT", 0.0184))

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(orderID, "DRY_"))
	assert.False(t, called, "dry run must not hit the API")
}

func TestSubmit_PlacesNotionalOrder(t *testing.T) {
	var gotOrder map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/account":
			assert.Equal(t, "key", r.Header.Get("APCA-API-KEY-ID"))
			w.Write([]byte(`{"equity": "100000"}`))
		case "/v2/orders":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotOrder))
			w.Write([]byte(`{"id": "ord-1", "status": "accepted"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", false)
	orderID, err := c.Submit(context.Background(), approvedIntent("TLT", 0.0184))

	require.NoError(t, err)
	assert.Equal(t, "ord-1", orderID)
	// 100000 × 0.0184 = 1840
	assert.Equal(t, "1840", gotOrder["notional"])
	assert.Equal(t, "TLT", gotOrder["symbol"])
	assert.Equal(t, "buy", gotOrder["side"])
	assert.Equal(t, "market", gotOrder["type"])
}

func TestGetEquity_DryRunDefault(t *testing.T) {
	c := NewClient("http://localhost:1", "", "", true)
	equity, err := c.GetEquity(context.Background())
	require.NoError(t, err)
	assert.True(t, equity.Equal(decimal.NewFromInt(100000)))
}

func TestGetEquity_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret", false)
	_, err := c.GetEquity(context.Background())
	assert.Error(t, err)
}

// --- executor ---

type fakeGateway struct {
	submitted []risk.OrderIntent
	err       error
}

func (f *fakeGateway) Submit(ctx context.Context, intent risk.OrderIntent) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.submitted = append(f.submitted, intent)
	return "ord-1", nil
}

func TestExecutor_SkipsRejected(t *testing.T) {
	gw := &fakeGateway{}
	ex := NewExecutor(gw)

	err := ex.RecordIntent(context.Background(), risk.OrderIntent{
		Instrument: "TLT",
		Status:     risk.StatusRejected,
	})
	require.NoError(t, err)
	assert.Empty(t, gw.submitted)
}

func TestExecutor_SubmitsApproved(t *testing.T) {
	gw := &fakeGateway{}
	ex := NewExecutor(gw)

	err := ex.RecordIntent(context.Background(), approvedIntent("TLT", 0.0184))
	require.NoError(t, err)
	require.Len(t, gw.submitted, 1)
	assert.Equal(t, "TLT", gw.submitted[0].Instrument)
}

func TestExecutor_PropagatesSubmitError(t *testing.T) {
	gw := &fakeGateway{err: errors.New("insufficient buying power")}
	ex := NewExecutor(gw)

	err := ex.RecordIntent(context.Background(), approvedIntent("TLT", 0.0184))
	assert.Error(t, err)
}
