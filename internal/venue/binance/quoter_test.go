package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"mev_engine/internal/core"
	"mev_engine/internal/mock"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sol  = core.Pubkey{0x50}
	usdc = core.Pubkey{0x55}
	bonk = core.Pubkey{0xb0}

	solUSDC = Market{Symbol: "SOLUSDC", Base: sol, Quote: usdc, BaseDecimals: 9, QuoteDecimals: 6}
)

func newTickerServer(t *testing.T, body string, hits *int) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "SOLUSDC", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestQuote_BothDirections(t *testing.T) {
	hits := 0
	srv := newTickerServer(t, `[{"symbol":"SOLUSDC","price":"150.00000000"}]`, &hits)
	q := NewQuoter("", "", srv.URL, []Market{solUSDC}, &mock.MockLogger{})

	out, err := q.Quote(context.Background(), sol, usdc, 2_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(300_000_000), out)

	out, err = q.Quote(context.Background(), usdc, sol, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(6_666_666), out)
	assert.Equal(t, 2, hits)
}

func TestQuote_UnknownPair(t *testing.T) {
	q := NewQuoter("", "", "http://127.0.0.1:0", []Market{solUSDC}, &mock.MockLogger{})
	_, err := q.Quote(context.Background(), sol, bonk, 1)
	assert.ErrorIs(t, err, ErrNoMarket)
}

func TestQuote_BadPrice(t *testing.T) {
	hits := 0
	srv := newTickerServer(t, `[{"symbol":"SOLUSDC","price":"abc"}]`, &hits)
	q := NewQuoter("", "", srv.URL, []Market{solUSDC}, &mock.MockLogger{})

	_, err := q.Quote(context.Background(), sol, usdc, 1)
	assert.Error(t, err)
}

func TestQuote_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()
	q := NewQuoter("", "", srv.URL, []Market{solUSDC}, &mock.MockLogger{})

	_, err := q.Quote(context.Background(), sol, usdc, 1)
	assert.Error(t, err)
}

func TestConvert_Saturates(t *testing.T) {
	huge := Market{Symbol: "X", Base: sol, Quote: usdc}
	assert.Equal(t, ^uint64(0), Convert(huge, sol, ^uint64(0), decimal.NewFromInt(2)))
	assert.Equal(t, uint64(0), Convert(huge, sol, 1, decimal.RequireFromString("0.5")))
}

func TestQuotedVenue_OverridesQuoteOnly(t *testing.T) {
	hits := 0
	srv := newTickerServer(t, `[{"symbol":"SOLUSDC","price":"2"}]`, &hits)
	q := NewQuoter("", "", srv.URL, []Market{{Symbol: "SOLUSDC", Base: sol, Quote: usdc}}, &mock.MockLogger{})
	base := mock.NewMockVenue()
	v := WithQuotes(base, q)

	out, err := v.Quote(context.Background(), sol, usdc, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), out)
	assert.Empty(t, base.CallsTo("Quote"))

	require.NoError(t, v.Sell(context.Background(), sol, 5))
	assert.Len(t, base.CallsTo("Sell"), 1)
	assert.Equal(t, "mock+binance", v.Name())
}

func TestQuoter_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ping" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	q := NewQuoter("", "", srv.URL, nil, &mock.MockLogger{})
	assert.NoError(t, q.Ping(context.Background()))

	srv.Close()
	assert.Error(t, q.Ping(context.Background()))
}
