// Package token forwards value transfers to an external token program
package token

import (
	"context"

	"mev_engine/internal/core"
	"mev_engine/pkg/telemetry"
)

// Gateway is a thin pass-through to the token program. Errors come back unchanged.
type Gateway struct {
	program core.ITokenProgram
	logger  core.ILogger
	metrics *telemetry.MetricsHolder
}

func NewGateway(program core.ITokenProgram, logger core.ILogger) *Gateway {
	return &Gateway{
		program: program,
		logger:  logger.WithField("component", "token_gateway"),
		metrics: telemetry.GetGlobalMetrics(),
	}
}

// Transfer moves amount from one token account to another under authority
func (g *Gateway) Transfer(ctx context.Context, from, to, authority core.Pubkey, amount uint64) error {
	if err := g.program.Transfer(ctx, from, to, authority, amount); err != nil {
		g.logger.Warn("token transfer rejected", "from", from, "to", to, "amount", amount, "error", err)
		return err
	}
	g.metrics.RecordTransfer(ctx, "transfer", amount)
	g.logger.Debug("token transfer", "from", from, "to", to, "amount", amount)
	return nil
}

// Approve lets delegate spend up to amount from source
func (g *Gateway) Approve(ctx context.Context, source, delegate, owner core.Pubkey, amount uint64) error {
	if err := g.program.Approve(ctx, source, delegate, owner, amount); err != nil {
		g.logger.Warn("token approve rejected", "source", source, "delegate", delegate, "error", err)
		return err
	}
	g.metrics.RecordTransfer(ctx, "approve", amount)
	g.logger.Debug("token approve", "source", source, "delegate", delegate, "amount", amount)
	return nil
}
