// Package portfolio converges a two-asset holding towards an even split and
// provisions liquidity in decaying slices.
package portfolio

import (
	"context"
	"fmt"

	"mev_engine/internal/core"
	apperrors "mev_engine/pkg/errors"
	"mev_engine/pkg/telemetry"
)

// Side identifies which asset of the pair a step trades
type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// RebalanceStep is one trade issued by a rebalance run
type RebalanceStep struct {
	Index     int
	Side      Side
	Token     core.Pubkey
	Amount    uint64
	Direction core.TradeDirection
}

// RebalancePlan is the full trade sequence plus the signed running adjustments
type RebalancePlan struct {
	TokenA      core.Pubkey
	TokenB      core.Pubkey
	Total       uint64
	Target      uint64
	DifferenceA uint64
	DifferenceB uint64
	DirectionA  core.TradeDirection
	DirectionB  core.TradeDirection
	Steps       []RebalanceStep
	AdjustmentA int64
	AdjustmentB int64
}

// Engine runs rebalances and liquidity provisioning against injected venues
type Engine struct {
	logger  core.ILogger
	metrics *telemetry.MetricsHolder
}

func NewEngine(logger core.ILogger) *Engine {
	return &Engine{
		logger:  logger.WithField("component", "rebalance_engine"),
		metrics: telemetry.GetGlobalMetrics(),
	}
}

// PlanRebalance computes the trade sequence without executing anything.
// Steps run side A then side B per index; the direction of each side is fixed
// up front and the step amount halves every index.
func PlanRebalance(tokenA, tokenB core.Pubkey, balanceA, balanceB uint64, steps uint32) (*RebalancePlan, error) {
	if steps == 0 {
		return nil, apperrors.ErrZeroSteps
	}

	p := &RebalancePlan{TokenA: tokenA, TokenB: tokenB}
	p.Total = balanceA + balanceB
	p.Target = p.Total / 2
	p.DifferenceA, p.DirectionA = sideDifference(balanceA, p.Target)
	p.DifferenceB, p.DirectionB = sideDifference(balanceB, p.Target)

	n := uint64(steps)
	p.Steps = make([]RebalanceStep, 0, 2*int(steps))
	for i := 0; i < int(steps); i++ {
		amountA := (p.DifferenceA / n) >> uint(i)
		amountB := (p.DifferenceB / n) >> uint(i)

		p.Steps = append(p.Steps,
			RebalanceStep{Index: i, Side: SideA, Token: tokenA, Amount: amountA, Direction: p.DirectionA},
			RebalanceStep{Index: i, Side: SideB, Token: tokenB, Amount: amountB, Direction: p.DirectionB},
		)
		p.AdjustmentA = adjust(p.AdjustmentA, amountA, p.DirectionA)
		p.AdjustmentB = adjust(p.AdjustmentB, amountB, p.DirectionB)
	}
	return p, nil
}

// Rebalance plans and then executes every step in order. The first failing
// trade aborts the run with ErrTradeExecution; earlier trades are not undone.
func (e *Engine) Rebalance(ctx context.Context, exec core.ITradeExecutor, tokenA, tokenB core.Pubkey, balanceA, balanceB uint64, steps uint32) (*RebalancePlan, error) {
	plan, err := PlanRebalance(tokenA, tokenB, balanceA, balanceB, steps)
	if err != nil {
		return nil, err
	}

	for _, step := range plan.Steps {
		if err := ExecuteStep(ctx, exec, step); err != nil {
			e.logger.Error("Rebalance aborted", "index", step.Index, "side", step.Side, "error", err)
			return nil, err
		}
		e.metrics.RecordRebalanceSteps(ctx, string(step.Direction), 1)
		e.logger.Debug("Rebalance step",
			"index", step.Index, "side", step.Side,
			"direction", step.Direction, "amount", step.Amount)
	}

	e.logger.Info("Rebalance finished",
		"total", plan.Total, "target", plan.Target,
		"adjustment_a", plan.AdjustmentA, "adjustment_b", plan.AdjustmentB)
	return plan, nil
}

// ExecuteStep issues the single trade a step describes
func ExecuteStep(ctx context.Context, exec core.ITradeExecutor, step RebalanceStep) error {
	var err error
	if step.Direction == core.DirectionSell {
		err = exec.Sell(ctx, step.Token, step.Amount)
	} else {
		err = exec.Buy(ctx, step.Token, step.Amount)
	}
	if err != nil {
		return fmt.Errorf("%w: step %d side %s: %v", apperrors.ErrTradeExecution, step.Index, step.Side, err)
	}
	return nil
}

func sideDifference(balance, target uint64) (uint64, core.TradeDirection) {
	if balance > target {
		return balance - target, core.DirectionSell
	}
	return target - balance, core.DirectionBuy
}

func adjust(acc int64, amount uint64, dir core.TradeDirection) int64 {
	if dir == core.DirectionSell {
		return acc + int64(amount)
	}
	return acc - int64(amount)
}
