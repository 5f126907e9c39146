package arbitrage

import (
	"context"
	"errors"
	"testing"

	"mev_engine/internal/core"
	"mev_engine/internal/mock"
	"mev_engine/pkg/concurrency"
	apperrors "mev_engine/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMEVPlanner_Perform(t *testing.T) {
	venue := mock.NewMockVenue()
	venue.Balances[tokenX] = 1000
	venue.Balances[tokenY] = 1000

	r, err := NewMEVPlanner(&mock.MockLogger{}).Perform(context.Background(), venue, tokenX, tokenY, 1000)
	require.NoError(t, err)

	assert.Equal(t, uint64(2000), r.FlashloanAmount)
	assert.Equal(t, uint64(4000), r.IntermediateAmount)
	assert.Equal(t, uint64(5000), r.Profit)
	assert.Equal(t, uint64(2047), r.RouteOptimizationFactor)
	assert.True(t, r.Successful)
	assert.Equal(t, uint64(1000), r.InitialBalanceIn)

	loans := venue.CallsTo("Flashloan")
	require.Len(t, loans, 1)
	assert.Equal(t, uint64(2000), loans[0].Amount)
}

func TestMEVPlanner_FlashloanFailure(t *testing.T) {
	venue := mock.NewMockVenue()
	venue.FailOn["Flashloan"] = errors.New("no liquidity")

	_, err := NewMEVPlanner(&mock.MockLogger{}).Perform(context.Background(), venue, tokenX, tokenY, 1000)
	assert.ErrorIs(t, err, apperrors.ErrTradeExecution)
	assert.Empty(t, venue.CallsTo("AtomicArbitrage"))
}

func TestSPLArbitrage_Perform(t *testing.T) {
	venue := mock.NewMockVenue()

	r, err := NewSPLArbitrage(&mock.MockLogger{}).Perform(context.Background(), venue, tokenX, tokenY, 1000)
	require.NoError(t, err)
	require.Len(t, r.Trades, 5)

	var amountsA, amountsB []uint64
	for _, tr := range r.Trades {
		amountsA = append(amountsA, tr.AmountA)
		amountsB = append(amountsB, tr.AmountB)
	}
	assert.Equal(t, []uint64{1000, 501, 252, 128, 66}, amountsA)
	assert.Equal(t, []uint64{31, 63, 127, 253, 504}, amountsB)
	assert.Equal(t, uint64(1947), r.ProfitA)
	assert.Equal(t, uint64(978), r.ProfitB)
	assert.Equal(t, uint64(1462), r.FinalProfit)
	assert.True(t, r.Profitable)

	// trades alternate token a then token b
	trades := venue.CallsTo("ExecuteTrade")
	require.Len(t, trades, 10)
	assert.Equal(t, tokenX, trades[0].Token)
	assert.Equal(t, tokenY, trades[1].Token)
}

func TestSPLArbitrage_NotProfitable(t *testing.T) {
	venue := mock.NewMockVenue()
	venue.TradeResult = func(token core.Pubkey, amount uint64) uint64 { return amount / 10 }

	r, err := NewSPLArbitrage(&mock.MockLogger{}).Perform(context.Background(), venue, tokenX, tokenY, 1000)
	require.NoError(t, err)
	assert.False(t, r.Profitable)
}

func TestSPLArbitrage_TradeFailure(t *testing.T) {
	venue := mock.NewMockVenue()
	venue.FailOn["ExecuteTrade#3"] = errors.New("slippage")

	_, err := NewSPLArbitrage(&mock.MockLogger{}).Perform(context.Background(), venue, tokenX, tokenY, 1000)
	assert.ErrorIs(t, err, apperrors.ErrTradeExecution)
	assert.Len(t, venue.CallsTo("ExecuteTrade"), 3)
}

func TestRouteScanner_Ranks(t *testing.T) {
	good := mock.NewMockVenue()
	good.SetQuote(tokenX, tokenY, 1100)
	good.SetQuote(tokenY, tokenZ, 1200)
	good.SetQuote(tokenZ, tokenX, 2500)

	better := mock.NewMockVenue()
	better.SetQuote(tokenZ, tokenX, 5000)

	flat := mock.NewMockVenue()

	broken := mock.NewMockVenue()
	broken.FailOn["Quote"] = errors.New("down")

	route := func(name string, v *mock.MockVenue) Route {
		l1, l2, l3 := triangle(v)
		return Route{Name: name, Legs: [3]Leg{l1, l2, l3}, Amount: 1000}
	}

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{Name: "scan", MaxWorkers: 4}, &mock.MockLogger{})
	defer pool.Stop()
	scanner := NewRouteScanner(NewEvaluator(&mock.MockLogger{}), pool, &mock.MockLogger{})

	results := scanner.Scan(context.Background(), []Route{
		route("broken", broken),
		route("flat", flat),
		route("good", good),
		route("better", better),
	})
	require.Len(t, results, 4)

	var names []string
	for _, r := range results {
		names = append(names, r.Route.Name)
	}
	assert.Equal(t, []string{"better", "good", "flat", "broken"}, names)
	assert.ErrorIs(t, results[3].Err, apperrors.ErrPriceQuote)
}
