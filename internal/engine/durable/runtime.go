package durable

import (
	"context"
	"fmt"
	"time"

	"mev_engine/internal/core"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
)

const shutdownTimeout = 30 * time.Second

// Runtime owns the DBOS context the durable rebalancer runs on
type Runtime struct {
	dbosCtx    dbos.DBOSContext
	rebalancer *Rebalancer
	logger     core.ILogger
}

// NewRuntime connects to the workflow database and registers the rebalance
// workflow. Workflows must be registered before Launch.
func NewRuntime(ctx context.Context, appName, databaseURL string, logger core.ILogger) (*Runtime, error) {
	dbosCtx, err := dbos.NewDBOSContext(ctx, dbos.Config{
		AppName:     appName,
		DatabaseURL: databaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create dbos context: %w", err)
	}

	workflows := NewRebalanceWorkflows(logger)
	workflows.Register(dbosCtx)

	return &Runtime{
		dbosCtx:    dbosCtx,
		rebalancer: NewRebalancer(dbosCtx, workflows, logger),
		logger:     logger.WithField("component", "dbos_runtime"),
	}, nil
}

func (r *Runtime) Rebalancer() *Rebalancer {
	return r.rebalancer
}

// Launch starts the DBOS runtime and recovers pending workflows
func (r *Runtime) Launch() error {
	r.logger.Info("Launching DBOS runtime")
	if err := r.dbosCtx.Launch(); err != nil {
		return fmt.Errorf("failed to launch dbos: %w", err)
	}
	return nil
}

// Run holds a launched runtime until ctx is cancelled
func (r *Runtime) Run(ctx context.Context) error {
	<-ctx.Done()
	r.logger.Info("Stopping DBOS runtime")
	r.dbosCtx.Shutdown(shutdownTimeout)
	return nil
}
