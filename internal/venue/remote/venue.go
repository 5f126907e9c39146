// Package remote speaks to an out-of-process venue over its JSON HTTP API
package remote

import (
	"context"
	"fmt"
	"strconv"

	"mev_engine/internal/core"
	apphttp "mev_engine/pkg/http"
)

const (
	pathQuote     = "/v1/quote"
	pathBalance   = "/v1/balance"
	pathSell      = "/v1/sell"
	pathBuy       = "/v1/buy"
	pathTrade     = "/v1/trade"
	pathLiquidity = "/v1/liquidity"
	pathFlashloan = "/v1/flashloan"
	pathAtomicArb = "/v1/atomic-arbitrage"
)

// TokenAmount is the request body of single-token calls
type TokenAmount struct {
	Token  core.Pubkey `json:"token"`
	Amount uint64      `json:"amount,string"`
}

// PairAmount is the request body of the atomic arbitrage call
type PairAmount struct {
	TokenIn  core.Pubkey `json:"token_in"`
	TokenOut core.Pubkey `json:"token_out"`
	Amount   uint64      `json:"amount,string"`
}

// AmountResponse carries the amount a call produced
type AmountResponse struct {
	Amount uint64 `json:"amount,string"`
}

// Venue implements core.IVenue against a remote endpoint
type Venue struct {
	name   string
	client *apphttp.Client
	logger core.ILogger
}

func New(name, baseURL string, opts apphttp.Options, logger core.ILogger) *Venue {
	return &Venue{
		name:   name,
		client: apphttp.NewClient(name, baseURL, opts),
		logger: logger.WithField("component", "remote_venue").WithField("venue", name),
	}
}

func (v *Venue) Name() string { return v.name }

func (v *Venue) Quote(ctx context.Context, tokenIn, tokenOut core.Pubkey, amountIn uint64) (uint64, error) {
	var resp AmountResponse
	err := v.client.GetJSON(ctx, pathQuote, map[string]string{
		"token_in":  tokenIn.String(),
		"token_out": tokenOut.String(),
		"amount":    strconv.FormatUint(amountIn, 10),
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Amount, nil
}

func (v *Venue) Balance(ctx context.Context, token core.Pubkey) (uint64, error) {
	var resp AmountResponse
	if err := v.client.GetJSON(ctx, pathBalance, map[string]string{"token": token.String()}, &resp); err != nil {
		return 0, err
	}
	return resp.Amount, nil
}

func (v *Venue) Sell(ctx context.Context, token core.Pubkey, amount uint64) error {
	return v.post(ctx, pathSell, TokenAmount{Token: token, Amount: amount}, nil)
}

func (v *Venue) Buy(ctx context.Context, token core.Pubkey, amount uint64) error {
	return v.post(ctx, pathBuy, TokenAmount{Token: token, Amount: amount}, nil)
}

func (v *Venue) ExecuteTrade(ctx context.Context, token core.Pubkey, amount uint64) (uint64, error) {
	return v.amount(ctx, pathTrade, TokenAmount{Token: token, Amount: amount})
}

func (v *Venue) AdjustLiquidity(ctx context.Context, token core.Pubkey, amount uint64) (uint64, error) {
	return v.amount(ctx, pathLiquidity, TokenAmount{Token: token, Amount: amount})
}

func (v *Venue) Flashloan(ctx context.Context, token core.Pubkey, amount uint64) (uint64, error) {
	return v.amount(ctx, pathFlashloan, TokenAmount{Token: token, Amount: amount})
}

func (v *Venue) AtomicArbitrage(ctx context.Context, tokenIn, tokenOut core.Pubkey, amount uint64) (uint64, error) {
	return v.amount(ctx, pathAtomicArb, PairAmount{TokenIn: tokenIn, TokenOut: tokenOut, Amount: amount})
}

func (v *Venue) amount(ctx context.Context, path string, body interface{}) (uint64, error) {
	var resp AmountResponse
	if err := v.post(ctx, path, body, &resp); err != nil {
		return 0, err
	}
	return resp.Amount, nil
}

func (v *Venue) post(ctx context.Context, path string, body, out interface{}) error {
	if err := v.client.PostJSON(ctx, path, body, out); err != nil {
		v.logger.Warn("Venue call failed", "path", path, "error", err)
		return err
	}
	return nil
}

// Ping fails while the circuit breaker is rejecting calls
func (v *Venue) Ping(ctx context.Context) error {
	if v.client.BreakerOpen() {
		return fmt.Errorf("venue %s: circuit breaker open", v.name)
	}
	return nil
}
