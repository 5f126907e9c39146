package arbitrage

import (
	"context"
	"fmt"

	"mev_engine/internal/core"
	apperrors "mev_engine/pkg/errors"
)

const routeOptimizationRounds = 10

// FlashVenue is what the flashloan routine needs from a router
type FlashVenue interface {
	core.IFlashVenue
	core.IBalanceSource
}

// MEVReport summarizes one flashloan + atomic arbitrage run
type MEVReport struct {
	InitialBalanceIn        uint64
	InitialBalanceOut       uint64
	FlashloanAmount         uint64
	IntermediateAmount      uint64
	Profit                  uint64
	FinalBalanceIn          uint64
	FinalBalanceOut         uint64
	RouteOptimizationFactor uint64
	Successful              bool
}

// MEVPlanner borrows twice the amount, arbitrages the loan atomically and
// reports whether the proceeds beat the loan.
type MEVPlanner struct {
	logger core.ILogger
}

func NewMEVPlanner(logger core.ILogger) *MEVPlanner {
	return &MEVPlanner{logger: logger.WithField("component", "mev_planner")}
}

func (p *MEVPlanner) Perform(ctx context.Context, venue FlashVenue, tokenIn, tokenOut core.Pubkey, amount uint64) (*MEVReport, error) {
	r := &MEVReport{}
	var err error

	if r.InitialBalanceIn, err = venue.Balance(ctx, tokenIn); err != nil {
		return nil, fmt.Errorf("%w: balance %s: %v", apperrors.ErrTradeExecution, tokenIn, err)
	}
	if r.InitialBalanceOut, err = venue.Balance(ctx, tokenOut); err != nil {
		return nil, fmt.Errorf("%w: balance %s: %v", apperrors.ErrTradeExecution, tokenOut, err)
	}

	r.FlashloanAmount = amount << 1
	if r.IntermediateAmount, err = venue.Flashloan(ctx, tokenIn, r.FlashloanAmount); err != nil {
		return nil, fmt.Errorf("%w: flashloan: %v", apperrors.ErrTradeExecution, err)
	}
	if r.Profit, err = venue.AtomicArbitrage(ctx, tokenIn, tokenOut, r.IntermediateAmount); err != nil {
		return nil, fmt.Errorf("%w: atomic arbitrage: %v", apperrors.ErrTradeExecution, err)
	}

	if r.FinalBalanceIn, err = venue.Balance(ctx, tokenIn); err != nil {
		return nil, fmt.Errorf("%w: balance %s: %v", apperrors.ErrTradeExecution, tokenIn, err)
	}
	if r.FinalBalanceOut, err = venue.Balance(ctx, tokenOut); err != nil {
		return nil, fmt.Errorf("%w: balance %s: %v", apperrors.ErrTradeExecution, tokenOut, err)
	}

	r.RouteOptimizationFactor = RouteOptimizationFactor()
	r.Successful = r.Profit > r.FlashloanAmount

	p.logger.Info("MEV run finished",
		"flashloan", r.FlashloanAmount,
		"intermediate", r.IntermediateAmount,
		"profit", r.Profit,
		"route_factor", r.RouteOptimizationFactor,
		"successful", r.Successful)
	return r, nil
}

// RouteOptimizationFactor doubles-and-increments from 1 for a fixed number of rounds
func RouteOptimizationFactor() uint64 {
	f := uint64(1)
	for i := 0; i < routeOptimizationRounds; i++ {
		f = f*2 + 1
	}
	return f
}
