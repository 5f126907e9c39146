package arbitrage

import (
	"context"
	"sort"

	"mev_engine/internal/core"
	"mev_engine/pkg/concurrency"
)

// Route is a candidate triangle evaluated for a fixed input amount
type Route struct {
	Name   string
	Legs   [3]Leg
	Amount uint64
}

// RouteResult pairs a route with its decision or the error that stopped it
type RouteResult struct {
	Route    Route
	Decision *Decision
	Err      error
}

// RouteScanner evaluates independent routes concurrently. Each route is still
// quoted strictly leg by leg.
type RouteScanner struct {
	evaluator *Evaluator
	pool      *concurrency.WorkerPool
	logger    core.ILogger
}

func NewRouteScanner(evaluator *Evaluator, pool *concurrency.WorkerPool, logger core.ILogger) *RouteScanner {
	return &RouteScanner{
		evaluator: evaluator,
		pool:      pool,
		logger:    logger.WithField("component", "route_scanner"),
	}
}

// Scan evaluates every route and returns results ranked with opportunities
// first, then by descending adjusted profit. Failed routes sort last.
func (s *RouteScanner) Scan(ctx context.Context, routes []Route) []RouteResult {
	results := make([]RouteResult, len(routes))
	tasks := make([]func(), len(routes))
	for i, r := range routes {
		i, r := i, r
		results[i].Route = r
		tasks[i] = func() {
			d, err := s.evaluator.Evaluate(ctx, r.Legs[0], r.Legs[1], r.Legs[2], r.Amount)
			results[i].Decision = d
			results[i].Err = err
		}
	}
	s.pool.RunAll(tasks)

	sort.SliceStable(results, func(a, b int) bool {
		return rank(results[a]).less(rank(results[b]))
	})

	var opportunities int
	for _, r := range results {
		if r.Decision != nil && r.Decision.Opportunity {
			opportunities++
		}
	}
	s.logger.Info("Route scan finished", "routes", len(routes), "opportunities", opportunities)
	return results
}

type routeRank struct {
	failed      bool
	opportunity bool
	decision    *Decision
}

func rank(r RouteResult) routeRank {
	if r.Err != nil || r.Decision == nil {
		return routeRank{failed: true}
	}
	return routeRank{opportunity: r.Decision.Opportunity, decision: r.Decision}
}

func (a routeRank) less(b routeRank) bool {
	if a.failed != b.failed {
		return !a.failed
	}
	if a.failed {
		return false
	}
	if a.opportunity != b.opportunity {
		return a.opportunity
	}
	return a.decision.AdjustedProfit.GreaterThan(b.decision.AdjustedProfit)
}
