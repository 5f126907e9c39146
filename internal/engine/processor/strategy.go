package processor

import (
	"context"
	"fmt"

	"mev_engine/internal/core"
	"mev_engine/internal/state"
	"mev_engine/internal/trading/arbitrage"
	apperrors "mev_engine/pkg/errors"
)

// evaluate is advisory: no slot is read or written
func (p *Processor) evaluate(ctx context.Context, routers, tokens []core.Pubkey, amount uint64) (*Result, error) {
	var legs [3]arbitrage.Leg
	for i := range legs {
		venue, err := p.venues.Resolve(routers[i])
		if err != nil {
			return nil, fmt.Errorf("%w: leg %d: %v", apperrors.ErrPriceQuote, i+1, err)
		}
		legs[i] = arbitrage.Leg{Quoter: venue, TokenIn: tokens[i], TokenOut: tokens[(i+1)%3]}
	}
	d, err := p.evaluator.Evaluate(ctx, legs[0], legs[1], legs[2], amount)
	if err != nil {
		return nil, err
	}
	return &Result{Decision: d}, nil
}

// strategyGate loads the caller's record and checks it allows trading
func (p *Processor) strategyGate(ctx context.Context, caller, slotKey core.Pubkey) (*state.Record, error) {
	_, rec, err := p.authorize(ctx, caller, slotKey)
	if err != nil {
		return nil, err
	}
	if !rec.EnableTrading {
		return nil, fmt.Errorf("%w: slot %s", apperrors.ErrTradingDisabled, slotKey)
	}
	return rec, nil
}

func (p *Processor) rebalance(ctx context.Context, caller, slotKey, router, tokenA, tokenB core.Pubkey, steps uint32) (*Result, error) {
	rec, err := p.strategyGate(ctx, caller, slotKey)
	if err != nil {
		return nil, err
	}
	venue, err := p.venues.Resolve(router)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTradeExecution, err)
	}
	balA, err := venue.Balance(ctx, tokenA)
	if err != nil {
		return nil, fmt.Errorf("%w: balance %s: %v", apperrors.ErrTradeExecution, tokenA, err)
	}
	balB, err := venue.Balance(ctx, tokenB)
	if err != nil {
		return nil, fmt.Errorf("%w: balance %s: %v", apperrors.ErrTradeExecution, tokenB, err)
	}

	plan, err := p.rebalancer.Rebalance(ctx, venue, tokenA, tokenB, balA, balB, steps)
	if err != nil {
		return nil, err
	}
	return &Result{Slot: slotKey, Record: rec, Rebalance: plan}, nil
}

func (p *Processor) provideLiquidity(ctx context.Context, caller, slotKey, router, tokenA, tokenB core.Pubkey, amountA, amountB uint64) (*Result, error) {
	rec, err := p.strategyGate(ctx, caller, slotKey)
	if err != nil {
		return nil, err
	}
	if sum := amountA + amountB; sum < rec.LiquidityThreshold {
		return nil, fmt.Errorf("%w: %d < %d", apperrors.ErrBelowLiquidityThreshold, sum, rec.LiquidityThreshold)
	}
	venue, err := p.venues.Resolve(router)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTradeExecution, err)
	}
	report, err := p.portfolio.ProvideLiquidity(ctx, venue, tokenA, tokenB, amountA, amountB)
	if err != nil {
		return nil, err
	}
	return &Result{Slot: slotKey, Record: rec, Liquidity: report}, nil
}

func (p *Processor) performMEV(ctx context.Context, caller, slotKey, router, tokenIn, tokenOut core.Pubkey, amount uint64) (*Result, error) {
	rec, err := p.strategyGate(ctx, caller, slotKey)
	if err != nil {
		return nil, err
	}
	if !rec.MEVEnabled {
		return nil, fmt.Errorf("%w: slot %s", apperrors.ErrMEVDisabled, slotKey)
	}
	venue, err := p.venues.Resolve(router)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTradeExecution, err)
	}
	report, err := p.mev.Perform(ctx, venue, tokenIn, tokenOut, amount)
	if err != nil {
		return nil, err
	}
	return &Result{Slot: slotKey, Record: rec, MEV: report}, nil
}

func (p *Processor) splArbitrage(ctx context.Context, caller, slotKey, router, tokenA, tokenB core.Pubkey, amount uint64) (*Result, error) {
	rec, err := p.strategyGate(ctx, caller, slotKey)
	if err != nil {
		return nil, err
	}
	venue, err := p.venues.Resolve(router)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTradeExecution, err)
	}
	report, err := p.spl.Perform(ctx, venue, tokenA, tokenB, amount)
	if err != nil {
		return nil, err
	}
	return &Result{Slot: slotKey, Record: rec, SPL: report}, nil
}
