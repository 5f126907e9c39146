// Package durable runs rebalances as DBOS workflows so every executed trade is
// checkpointed and a restarted process resumes after the last completed step.
package durable

import (
	"context"
	"fmt"
	"sync"

	"mev_engine/internal/core"
	"mev_engine/internal/trading/portfolio"
	"mev_engine/pkg/telemetry"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/google/uuid"
)

// RebalanceRequest is the workflow input. Executors are not serializable, so
// the request names the executor registered for this run.
type RebalanceRequest struct {
	RunID string
	Plan  portfolio.RebalancePlan
}

// RebalanceWorkflows holds the workflow functions and the executors of runs in flight
type RebalanceWorkflows struct {
	logger    core.ILogger
	metrics   *telemetry.MetricsHolder
	executors sync.Map
}

func NewRebalanceWorkflows(logger core.ILogger) *RebalanceWorkflows {
	return &RebalanceWorkflows{
		logger:  logger.WithField("component", "rebalance_workflows"),
		metrics: telemetry.GetGlobalMetrics(),
	}
}

// Register must run before the DBOS context is launched
func (w *RebalanceWorkflows) Register(dbosCtx dbos.DBOSContext) {
	dbos.RegisterWorkflow(dbosCtx, w.ExecuteRebalance)
}

func (w *RebalanceWorkflows) bind(exec core.ITradeExecutor) string {
	id := uuid.New().String()
	w.executors.Store(id, exec)
	return id
}

func (w *RebalanceWorkflows) release(id string) {
	w.executors.Delete(id)
}

// ExecuteRebalance issues each planned trade as its own durable step
func (w *RebalanceWorkflows) ExecuteRebalance(ctx dbos.DBOSContext, input any) (any, error) {
	req, ok := input.(RebalanceRequest)
	if !ok {
		return nil, fmt.Errorf("invalid input type: %T", input)
	}

	v, ok := w.executors.Load(req.RunID)
	if !ok {
		return nil, fmt.Errorf("no executor bound for run %s", req.RunID)
	}
	exec := v.(core.ITradeExecutor)

	for _, step := range req.Plan.Steps {
		step := step
		_, err := ctx.RunAsStep(ctx, func(stepCtx context.Context) (any, error) {
			return nil, portfolio.ExecuteStep(stepCtx, exec, step)
		})
		if err != nil {
			w.logger.Error("Durable rebalance aborted", "run_id", req.RunID, "index", step.Index, "side", step.Side, "error", err)
			return nil, err
		}
		w.metrics.RecordRebalanceSteps(context.Background(), string(step.Direction), 1)
	}

	w.logger.Info("Durable rebalance finished", "run_id", req.RunID, "steps", len(req.Plan.Steps))
	return &req.Plan, nil
}

// Rebalancer plans in process and executes the plan through a DBOS workflow
type Rebalancer struct {
	dbosCtx   dbos.DBOSContext
	workflows *RebalanceWorkflows
	logger    core.ILogger
}

func NewRebalancer(dbosCtx dbos.DBOSContext, workflows *RebalanceWorkflows, logger core.ILogger) *Rebalancer {
	return &Rebalancer{
		dbosCtx:   dbosCtx,
		workflows: workflows,
		logger:    logger.WithField("component", "durable_rebalancer"),
	}
}

func (r *Rebalancer) Rebalance(ctx context.Context, exec core.ITradeExecutor, tokenA, tokenB core.Pubkey, balanceA, balanceB uint64, steps uint32) (*portfolio.RebalancePlan, error) {
	plan, err := portfolio.PlanRebalance(tokenA, tokenB, balanceA, balanceB, steps)
	if err != nil {
		return nil, err
	}

	runID := r.workflows.bind(exec)
	defer r.workflows.release(runID)

	handle, err := r.dbosCtx.RunWorkflow(r.dbosCtx, r.workflows.ExecuteRebalance, RebalanceRequest{RunID: runID, Plan: *plan})
	if err != nil {
		return nil, fmt.Errorf("failed to start rebalance workflow: %w", err)
	}
	if _, err := handle.GetResult(); err != nil {
		return nil, err
	}
	return plan, nil
}
