package arbitrage

import (
	"context"
	"errors"
	"testing"

	"mev_engine/internal/core"
	"mev_engine/internal/mock"
	apperrors "mev_engine/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenX = core.Pubkey{0x01}
	tokenY = core.Pubkey{0x02}
	tokenZ = core.Pubkey{0x03}
)

func triangle(v *mock.MockVenue) (Leg, Leg, Leg) {
	return Leg{Quoter: v, TokenIn: tokenX, TokenOut: tokenY},
		Leg{Quoter: v, TokenIn: tokenY, TokenOut: tokenZ},
		Leg{Quoter: v, TokenIn: tokenZ, TokenOut: tokenX}
}

func TestEvaluator_ReferenceScenario(t *testing.T) {
	venue := mock.NewMockVenue()
	venue.SetQuote(tokenX, tokenY, 1100)
	venue.SetQuote(tokenY, tokenZ, 1200)
	venue.SetQuote(tokenZ, tokenX, 2500)
	l1, l2, l3 := triangle(venue)

	d, err := NewEvaluator(&mock.MockLogger{}).Evaluate(context.Background(), l1, l2, l3, 1000)
	require.NoError(t, err)

	assert.Equal(t, int64(1500), d.PotentialProfit)
	assert.False(t, d.IsProfitableFlag)
	assert.Equal(t, int64(700), d.PriceDifference)
	assert.Equal(t, "15700", d.AdjustedProfit.String())
	assert.True(t, d.Opportunity)
	assert.Equal(t, [3]uint64{825, 750, 1093}, d.ExecutionPrices)
	require.NotNil(t, d.FinalArbitrageValue)
	assert.Equal(t, uint64(2668), *d.FinalArbitrageValue)

	// each leg consumed the previous leg's output
	quotes := venue.CallsTo("Quote")
	require.Len(t, quotes, 3)
	assert.Equal(t, []uint64{1000, 1100, 1200}, []uint64{quotes[0].Amount, quotes[1].Amount, quotes[2].Amount})
}

func TestEvaluator_LegFailureStopsChase(t *testing.T) {
	venue := mock.NewMockVenue()
	venue.FailOn["Quote#2"] = errors.New("pool paused")
	l1, l2, l3 := triangle(venue)

	d, err := NewEvaluator(&mock.MockLogger{}).Evaluate(context.Background(), l1, l2, l3, 1000)
	assert.Nil(t, d)
	assert.ErrorIs(t, err, apperrors.ErrPriceQuote)
	assert.Len(t, venue.CallsTo("Quote"), 2)
}

func TestEvaluator_Deterministic(t *testing.T) {
	venue := mock.NewMockVenue()
	venue.SetQuote(tokenX, tokenY, 7)
	venue.SetQuote(tokenY, tokenZ, 13)
	venue.SetQuote(tokenZ, tokenX, 99999)
	l1, l2, l3 := triangle(venue)
	eval := NewEvaluator(&mock.MockLogger{})

	a, err := eval.Evaluate(context.Background(), l1, l2, l3, 5)
	require.NoError(t, err)
	b, err := eval.Evaluate(context.Background(), l1, l2, l3, 5)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestScore(t *testing.T) {
	tests := []struct {
		name        string
		amount      uint64
		p1, p2, p3  uint64
		profit      int64
		diff        int64
		flag        bool
		adjusted    string
		opportunity bool
	}{
		{name: "flag set", amount: 0, p1: 0, p2: 0, p3: 1000, profit: 1000, diff: 500, flag: true, adjusted: "10500", opportunity: true},
		{name: "flag without opportunity", amount: 0, p1: 30000, p2: 0, p3: 1000, profit: 1000, diff: -14500, flag: true, adjusted: "-4500"},
		{name: "loss rounds difference down", amount: 1000, p1: 3, p2: 0, p3: 0, profit: -1000, diff: -2, adjusted: "-10002"},
		{name: "exactly threshold", amount: 500, p1: 600, p2: 1, p3: 600, profit: 100, diff: 0, adjusted: "1000"},
		{name: "just above threshold", amount: 502, p1: 600, p2: 1, p3: 602, profit: 100, diff: 1, adjusted: "1001", opportunity: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Score(tt.amount, tt.p1, tt.p2, tt.p3)
			assert.Equal(t, tt.profit, d.PotentialProfit)
			assert.Equal(t, tt.diff, d.PriceDifference)
			assert.Equal(t, tt.flag, d.IsProfitableFlag)
			assert.Equal(t, tt.adjusted, d.AdjustedProfit.String())
			assert.Equal(t, tt.opportunity, d.Opportunity)
			if !tt.opportunity {
				assert.Nil(t, d.FinalArbitrageValue)
				assert.Equal(t, [3]uint64{}, d.ExecutionPrices)
			}
		})
	}
}

func TestScore_Wrapping(t *testing.T) {
	top := ^uint64(0)

	d := Score(0, 0, 0, top)
	assert.Equal(t, int64(-1), d.PotentialProfit)
	assert.Equal(t, int64(1<<63-1), d.PriceDifference)
	assert.True(t, d.Opportunity)
	// top*7 wraps to 2^64-7 before the shift
	assert.Equal(t, uint64(1<<60-1), d.ExecutionPrices[2])
	assert.Equal(t, uint64(1<<60-1), *d.FinalArbitrageValue)

	// price3 far below price1 still yields a representable half difference
	d = Score(0, top, 0, 0)
	assert.Equal(t, int64(-1<<63), d.PriceDifference)
}

func TestScore_AdjustedProfitIsExact(t *testing.T) {
	p := uint64(1<<63 - 1)
	d := Score(0, p, 0, p)
	assert.Equal(t, int64(1<<63-1), d.PotentialProfit)
	assert.Equal(t, "92233720368547758070", d.AdjustedProfit.String())
	assert.True(t, d.Opportunity)
}

func TestRouteOptimizationFactor(t *testing.T) {
	assert.Equal(t, uint64(2047), RouteOptimizationFactor())
}
