package portfolio

import (
	"context"
	"fmt"

	"mev_engine/internal/core"
	apperrors "mev_engine/pkg/errors"

	"github.com/shopspring/decimal"
)

// LiquiditySteps is the number of decaying provision slices
const LiquiditySteps = 5

// ratioScale keeps three decimal places in the integer liquidity ratio
const ratioScale = 1000

// Provision is one slice of a liquidity run
type Provision struct {
	Step    int
	AmountA uint64
	AmountB uint64
}

// LiquidityReport describes a completed provisioning run. Ratio is
// TotalA*1000/TotalB with the multiplication wrapping.
type LiquidityReport struct {
	Provisions []Provision
	TotalA     uint64
	TotalB     uint64
	Ratio      uint64
	AdjustedA  uint64
	AdjustedB  uint64
}

// RatioDecimal renders Ratio as a plain fraction
func (r *LiquidityReport) RatioDecimal() decimal.Decimal {
	return decimal.NewFromUint64(r.Ratio).Div(decimal.NewFromInt(ratioScale))
}

// ProvideLiquidity slices both amounts into halving provisions, each biased by
// its step index, checks the pair ratio and hands each total to the router.
// Sums wrap. A zero token-b total is ErrDivisionByZero and no router call is made.
func (e *Engine) ProvideLiquidity(ctx context.Context, router core.ILiquidityRouter, tokenA, tokenB core.Pubkey, amountA, amountB uint64) (*LiquidityReport, error) {
	r := &LiquidityReport{Provisions: make([]Provision, 0, LiquiditySteps)}
	for step := 0; step < LiquiditySteps; step++ {
		p := Provision{
			Step:    step,
			AmountA: amountA>>uint(step) + uint64(step),
			AmountB: amountB>>uint(step) + uint64(step),
		}
		r.TotalA += p.AmountA
		r.TotalB += p.AmountB
		r.Provisions = append(r.Provisions, p)
	}

	var err error
	if r.Ratio, err = liquidityRatio(r.TotalA, r.TotalB); err != nil {
		return nil, err
	}

	if r.AdjustedA, err = router.AdjustLiquidity(ctx, tokenA, r.TotalA); err != nil {
		return nil, fmt.Errorf("%w: adjust liquidity a: %v", apperrors.ErrTradeExecution, err)
	}
	if r.AdjustedB, err = router.AdjustLiquidity(ctx, tokenB, r.TotalB); err != nil {
		return nil, fmt.Errorf("%w: adjust liquidity b: %v", apperrors.ErrTradeExecution, err)
	}

	e.logger.Info("Liquidity provided",
		"total_a", r.TotalA, "total_b", r.TotalB,
		"ratio", r.RatioDecimal().String(),
		"adjusted_a", r.AdjustedA, "adjusted_b", r.AdjustedB)
	return r, nil
}

// liquidityRatio is totalA*1000/totalB with the multiplication wrapping
func liquidityRatio(totalA, totalB uint64) (uint64, error) {
	if totalB == 0 {
		return 0, fmt.Errorf("%w: token b liquidity total is zero", apperrors.ErrDivisionByZero)
	}
	return totalA * ratioScale / totalB, nil
}
