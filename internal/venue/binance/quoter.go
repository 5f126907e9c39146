// Package binance prices legs from Binance spot tickers
package binance

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"mev_engine/internal/core"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

var ErrNoMarket = errors.New("no market for token pair")

// Market maps a token pair onto a ticker. Base is the token the ticker prices;
// decimals convert between base units of each token.
type Market struct {
	Symbol        string
	Base          core.Pubkey
	Quote         core.Pubkey
	BaseDecimals  int32
	QuoteDecimals int32
}

// Quoter converts amounts using the last traded price of the mapped ticker
type Quoter struct {
	client  *binance.Client
	markets map[[2]core.Pubkey]Market
	logger  core.ILogger
}

// NewQuoter builds a quoter; an empty baseURL keeps the library default
func NewQuoter(apiKey, secretKey, baseURL string, markets []Market, logger core.ILogger) *Quoter {
	client := binance.NewClient(apiKey, secretKey)
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	q := &Quoter{
		client:  client,
		markets: make(map[[2]core.Pubkey]Market, len(markets)),
		logger:  logger.WithField("component", "binance_quoter"),
	}
	for _, m := range markets {
		q.markets[[2]core.Pubkey{m.Base, m.Quote}] = m
		q.markets[[2]core.Pubkey{m.Quote, m.Base}] = m
	}
	return q
}

// Price fetches the last price for a ticker
func (q *Quoter) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := q.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch price for %s: %w", symbol, err)
	}
	for _, p := range prices {
		if p.Symbol != symbol {
			continue
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid price %q for %s: %w", p.Price, symbol, err)
		}
		return price, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s missing from response", ErrNoMarket, symbol)
}

// Quote returns the floored amount of tokenOut that amountIn of tokenIn buys at the last price
func (q *Quoter) Quote(ctx context.Context, tokenIn, tokenOut core.Pubkey, amountIn uint64) (uint64, error) {
	m, ok := q.markets[[2]core.Pubkey{tokenIn, tokenOut}]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrNoMarket, tokenIn, tokenOut)
	}

	price, err := q.Price(ctx, m.Symbol)
	if err != nil {
		return 0, err
	}
	if price.IsZero() {
		return 0, fmt.Errorf("zero price for %s", m.Symbol)
	}

	out := Convert(m, tokenIn, amountIn, price)
	q.logger.Debug("Quoted leg", "symbol", m.Symbol, "amount_in", amountIn, "amount_out", out, "price", price.String())
	return out, nil
}

// Convert applies a ticker price to an amount in base units of tokenIn.
// Results below zero or beyond uint64 saturate.
func Convert(m Market, tokenIn core.Pubkey, amountIn uint64, price decimal.Decimal) uint64 {
	in := decimal.NewFromBigInt(new(big.Int).SetUint64(amountIn), 0)

	var out decimal.Decimal
	if tokenIn == m.Base {
		out = in.Shift(-m.BaseDecimals).Mul(price).Shift(m.QuoteDecimals)
	} else {
		out = in.Shift(-m.QuoteDecimals).DivRound(price, 18).Shift(m.BaseDecimals)
	}

	out = out.Floor()
	if out.Sign() <= 0 {
		return 0
	}
	if out.GreaterThan(maxUint64) {
		return ^uint64(0)
	}
	return out.BigInt().Uint64()
}

var maxUint64 = decimal.NewFromBigInt(new(big.Int).SetUint64(^uint64(0)), 0)

// QuotedVenue prices through the ticker quoter and delegates everything else
type QuotedVenue struct {
	core.IVenue
	quoter core.IPriceQuoter
}

func WithQuotes(base core.IVenue, quoter core.IPriceQuoter) *QuotedVenue {
	return &QuotedVenue{IVenue: base, quoter: quoter}
}

func (v *QuotedVenue) Quote(ctx context.Context, tokenIn, tokenOut core.Pubkey, amountIn uint64) (uint64, error) {
	return v.quoter.Quote(ctx, tokenIn, tokenOut, amountIn)
}

func (v *QuotedVenue) Name() string {
	return v.IVenue.Name() + "+binance"
}

// Ping checks the exchange is reachable
func (q *Quoter) Ping(ctx context.Context) error {
	return q.client.NewPingService().Do(ctx)
}
