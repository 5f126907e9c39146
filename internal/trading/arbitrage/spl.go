package arbitrage

import (
	"context"
	"fmt"

	"mev_engine/internal/core"
	apperrors "mev_engine/pkg/errors"
)

const splTradeRounds = 5

// SwapVenue is what the token arbitrage routine needs from a router
type SwapVenue interface {
	core.ISwapVenue
	core.IBalanceSource
}

// SPLTrade is one round of paired trades
type SPLTrade struct {
	Index   int
	AmountA uint64
	AmountB uint64
	ResultA uint64
	ResultB uint64
}

// SPLReport summarizes a token arbitrage run
type SPLReport struct {
	InitialBalanceA uint64
	InitialBalanceB uint64
	Trades          []SPLTrade
	ProfitA         uint64
	ProfitB         uint64
	FinalProfit     uint64
	Profitable      bool
}

// SPLArbitrage trades both tokens in decreasing and increasing slices and
// averages the proceeds.
type SPLArbitrage struct {
	logger core.ILogger
}

func NewSPLArbitrage(logger core.ILogger) *SPLArbitrage {
	return &SPLArbitrage{logger: logger.WithField("component", "spl_arbitrage")}
}

func (s *SPLArbitrage) Perform(ctx context.Context, venue SwapVenue, tokenA, tokenB core.Pubkey, amount uint64) (*SPLReport, error) {
	r := &SPLReport{Trades: make([]SPLTrade, 0, splTradeRounds)}
	var err error

	if r.InitialBalanceA, err = venue.Balance(ctx, tokenA); err != nil {
		return nil, fmt.Errorf("%w: balance %s: %v", apperrors.ErrTradeExecution, tokenA, err)
	}
	if r.InitialBalanceB, err = venue.Balance(ctx, tokenB); err != nil {
		return nil, fmt.Errorf("%w: balance %s: %v", apperrors.ErrTradeExecution, tokenB, err)
	}

	for i := 0; i < splTradeRounds; i++ {
		t := SPLTrade{
			Index:   i,
			AmountA: amount>>uint(i) + uint64(i),
			AmountB: amount>>uint(splTradeRounds-i) + uint64(i),
		}
		if t.ResultA, err = venue.ExecuteTrade(ctx, tokenA, t.AmountA); err != nil {
			return nil, fmt.Errorf("%w: trade %d token a: %v", apperrors.ErrTradeExecution, i, err)
		}
		if t.ResultB, err = venue.ExecuteTrade(ctx, tokenB, t.AmountB); err != nil {
			return nil, fmt.Errorf("%w: trade %d token b: %v", apperrors.ErrTradeExecution, i, err)
		}
		r.ProfitA += t.ResultA
		r.ProfitB += t.ResultB
		r.Trades = append(r.Trades, t)
		s.logger.Debug("SPL trade", "index", i, "result_a", t.ResultA, "result_b", t.ResultB)
	}

	r.FinalProfit = (r.ProfitA + r.ProfitB) >> 1
	r.Profitable = r.FinalProfit > ProfitThreshold

	s.logger.Info("SPL arbitrage finished", "final_profit", r.FinalProfit, "profitable", r.Profitable)
	return r, nil
}
