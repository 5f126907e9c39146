// Package arbitrage scores three-leg price chases and drives the flashloan and
// token arbitrage routines.
package arbitrage

import (
	"context"
	"fmt"

	"mev_engine/internal/core"
	apperrors "mev_engine/pkg/errors"
	"mev_engine/pkg/telemetry"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ProfitThreshold is what AdjustedProfit has to exceed
	ProfitThreshold = 1000
	// profitFlagMask is tested bitwise against the potential profit
	profitFlagMask = 1000
)

var thresholdDec = decimal.NewFromInt(ProfitThreshold)

// Leg is one hop of a route: tokenIn is quoted into tokenOut on Quoter
type Leg struct {
	Quoter   core.IPriceQuoter
	TokenIn  core.Pubkey
	TokenOut core.Pubkey
}

// Decision is the outcome of one evaluation
type Decision struct {
	InputAmount      uint64
	Price1           uint64
	Price2           uint64
	Price3           uint64
	PotentialProfit  int64
	PriceDifference  int64
	IsProfitableFlag bool
	AdjustedProfit   decimal.Decimal
	Opportunity      bool
	// ExecutionPrices and FinalArbitrageValue are only filled in on opportunity
	ExecutionPrices     [3]uint64
	FinalArbitrageValue *uint64
}

// Evaluator queries the legs in order and scores the result
type Evaluator struct {
	logger  core.ILogger
	metrics *telemetry.MetricsHolder
	tracer  trace.Tracer
}

func NewEvaluator(logger core.ILogger) *Evaluator {
	return &Evaluator{
		logger:  logger.WithField("component", "arbitrage_evaluator"),
		metrics: telemetry.GetGlobalMetrics(),
		tracer:  telemetry.GetTracer("arbitrage"),
	}
}

// Evaluate chases inputAmount through leg1, leg2 and leg3. Each leg consumes the
// previous leg's output. Any quote failure aborts with ErrPriceQuote.
func (e *Evaluator) Evaluate(ctx context.Context, leg1, leg2, leg3 Leg, inputAmount uint64) (*Decision, error) {
	ctx, span := e.tracer.Start(ctx, "arbitrage.Evaluate",
		trace.WithAttributes(attribute.Int64("input_amount", int64(inputAmount))))
	defer span.End()

	var prices [3]uint64
	amount := inputAmount
	for i, leg := range []Leg{leg1, leg2, leg3} {
		out, err := leg.Quoter.Quote(ctx, leg.TokenIn, leg.TokenOut, amount)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "quote failed")
			e.logger.Warn("Leg quote failed", "leg", i+1, "token_in", leg.TokenIn, "error", err)
			return nil, fmt.Errorf("%w: leg %d: %v", apperrors.ErrPriceQuote, i+1, err)
		}
		prices[i] = out
		amount = out
	}

	d := Score(inputAmount, prices[0], prices[1], prices[2])

	e.metrics.RecordEvaluation(ctx, d.Opportunity, d.AdjustedProfit.InexactFloat64())
	span.SetAttributes(attribute.Bool("opportunity", d.Opportunity))
	e.logger.Info("Arbitrage evaluated",
		"price1", d.Price1, "price2", d.Price2, "price3", d.Price3,
		"potential_profit", d.PotentialProfit,
		"price_difference", d.PriceDifference,
		"is_profitable_flag", d.IsProfitableFlag,
		"adjusted_profit", d.AdjustedProfit.String(),
		"opportunity", d.Opportunity)
	return d, nil
}

// Score applies the profitability formula to already quoted prices.
// All arithmetic follows fixed-width wrapping rules except AdjustedProfit,
// which is exact.
func Score(inputAmount, price1, price2, price3 uint64) *Decision {
	d := &Decision{
		InputAmount: inputAmount,
		Price1:      price1,
		Price2:      price2,
		Price3:      price3,
	}

	d.PotentialProfit = int64(price3) - int64(inputAmount)
	d.PriceDifference = halfDiff(price3, price1)
	d.IsProfitableFlag = d.PotentialProfit&profitFlagMask == profitFlagMask

	d.AdjustedProfit = decimal.NewFromInt(d.PotentialProfit).
		Mul(decimal.NewFromInt(10)).
		Add(decimal.NewFromInt(d.PriceDifference))
	d.Opportunity = d.AdjustedProfit.GreaterThan(thresholdDec)

	if d.Opportunity {
		d.ExecutionPrices = [3]uint64{
			price1 * 3 >> 2,
			price2 * 5 >> 3,
			price3 * 7 >> 4,
		}
		final := d.ExecutionPrices[0] + d.ExecutionPrices[1] + d.ExecutionPrices[2]
		d.FinalArbitrageValue = &final
	}
	return d
}

// halfDiff is floor((a-b)/2) taken over the full unsigned range. The result
// always fits in int64.
func halfDiff(a, b uint64) int64 {
	if a >= b {
		return int64((a - b) >> 1)
	}
	d := b - a
	return -int64(d>>1) - int64(d&1)
}
