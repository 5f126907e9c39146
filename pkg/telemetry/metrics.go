package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricOperationsTotal     = "mev_engine_operations_total"
	MetricTransferVolumeTotal = "mev_engine_transfer_volume_total"
	MetricEvaluationsTotal    = "mev_engine_arbitrage_evaluations_total"
	MetricOpportunitiesTotal  = "mev_engine_arbitrage_opportunities_total"
	MetricAdjustedProfit      = "mev_engine_arbitrage_adjusted_profit"
	MetricRebalanceStepsTotal = "mev_engine_rebalance_steps_total"
	MetricVenueCallLatency    = "mev_engine_venue_call_latency_ms"
	MetricTradingBalance      = "mev_engine_trading_balance"
	MetricCircuitBreakerOpen  = "mev_engine_venue_circuit_breaker_open"
)

// MetricsHolder holds initialized instruments. Every recording helper is a
// no-op until InitMetrics has run.
type MetricsHolder struct {
	OperationsTotal     metric.Int64Counter
	TransferVolumeTotal metric.Float64Counter
	EvaluationsTotal    metric.Int64Counter
	OpportunitiesTotal  metric.Int64Counter
	AdjustedProfit      metric.Float64Histogram
	RebalanceStepsTotal metric.Int64Counter
	VenueCallLatency    metric.Float64Histogram
	TradingBalance      metric.Float64ObservableGauge
	CircuitBreakerOpen  metric.Int64ObservableGauge

	mu                sync.RWMutex
	tradingBalanceMap map[string]uint64
	cbOpenMap         map[string]int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// NewMetricsHolder returns an uninitialized holder, used directly by tests
func NewMetricsHolder() *MetricsHolder {
	return &MetricsHolder{
		tradingBalanceMap: make(map[string]uint64),
		cbOpenMap:         make(map[string]int64),
	}
}

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = NewMetricsHolder()
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.OperationsTotal, err = meter.Int64Counter(MetricOperationsTotal, metric.WithDescription("Processed instructions by op and result"))
	if err != nil {
		return err
	}

	m.TransferVolumeTotal, err = meter.Float64Counter(MetricTransferVolumeTotal, metric.WithDescription("Token amount moved through the transfer gateway"))
	if err != nil {
		return err
	}

	m.EvaluationsTotal, err = meter.Int64Counter(MetricEvaluationsTotal, metric.WithDescription("Three-leg arbitrage evaluations"))
	if err != nil {
		return err
	}

	m.OpportunitiesTotal, err = meter.Int64Counter(MetricOpportunitiesTotal, metric.WithDescription("Evaluations that reported an opportunity"))
	if err != nil {
		return err
	}

	m.AdjustedProfit, err = meter.Float64Histogram(MetricAdjustedProfit, metric.WithDescription("Adjusted profit score per evaluation"))
	if err != nil {
		return err
	}

	m.RebalanceStepsTotal, err = meter.Int64Counter(MetricRebalanceStepsTotal, metric.WithDescription("Rebalance trades issued"))
	if err != nil {
		return err
	}

	m.VenueCallLatency, err = meter.Float64Histogram(MetricVenueCallLatency, metric.WithDescription("Latency of remote venue calls"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.TradingBalance, err = meter.Float64ObservableGauge(MetricTradingBalance, metric.WithDescription("Trading balance recorded in each state slot"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for slot, val := range m.tradingBalanceMap {
				obs.Observe(float64(val), metric.WithAttributes(attribute.String("slot", slot)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.CircuitBreakerOpen, err = meter.Int64ObservableGauge(MetricCircuitBreakerOpen, metric.WithDescription("Venue circuit breaker state (1=open, 0=closed)"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for venue, val := range m.cbOpenMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("venue", venue)))
			}
			return nil
		}))
	return err
}

func (m *MetricsHolder) RecordOperation(ctx context.Context, op string, err error) {
	if m.OperationsTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.OperationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("result", result),
	))
}

func (m *MetricsHolder) RecordTransfer(ctx context.Context, kind string, amount uint64) {
	if m.TransferVolumeTotal == nil {
		return
	}
	m.TransferVolumeTotal.Add(ctx, float64(amount), metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *MetricsHolder) RecordEvaluation(ctx context.Context, opportunity bool, adjustedProfit float64) {
	if m.EvaluationsTotal == nil {
		return
	}
	m.EvaluationsTotal.Add(ctx, 1)
	m.AdjustedProfit.Record(ctx, adjustedProfit)
	if opportunity {
		m.OpportunitiesTotal.Add(ctx, 1)
	}
}

func (m *MetricsHolder) RecordRebalanceSteps(ctx context.Context, direction string, n int) {
	if m.RebalanceStepsTotal == nil {
		return
	}
	m.RebalanceStepsTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("direction", direction)))
}

func (m *MetricsHolder) RecordVenueLatency(ctx context.Context, venue, call string, ms float64) {
	if m.VenueCallLatency == nil {
		return
	}
	m.VenueCallLatency.Record(ctx, ms, metric.WithAttributes(
		attribute.String("venue", venue),
		attribute.String("call", call),
	))
}

// Helpers to update observable state

func (m *MetricsHolder) SetTradingBalance(slot string, balance uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tradingBalanceMap[slot] = balance
}

// ClearTradingBalance drops a retired slot from the gauge
func (m *MetricsHolder) ClearTradingBalance(slot string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tradingBalanceMap, slot)
}

func (m *MetricsHolder) SetCircuitBreakerOpen(venue string, open bool) {
	val := int64(0)
	if open {
		val = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cbOpenMap[venue] = val
}

func (m *MetricsHolder) GetTradingBalances() map[string]uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]uint64, len(m.tradingBalanceMap))
	for k, v := range m.tradingBalanceMap {
		res[k] = v
	}
	return res
}
