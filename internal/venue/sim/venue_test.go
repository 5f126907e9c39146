package sim

import (
	"context"
	"math"
	"testing"

	"mev_engine/internal/core"
	apperrors "mev_engine/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenX = core.Pubkey{0x01}
	tokenY = core.Pubkey{0x02}
	tokenZ = core.Pubkey{0x03}
)

func newTestVenue() *Venue {
	return New("sim", Config{
		Pools: []PoolConfig{
			{TokenA: tokenX, TokenB: tokenY, ReserveA: 1_000_000, ReserveB: 2_000_000, FeeBps: 30},
			{TokenA: tokenY, TokenB: tokenZ, ReserveA: 1_000_000, ReserveB: 1_000_000},
		},
		Holdings:     map[core.Pubkey]uint64{tokenX: 500},
		TradeEdgeBps: 100,
		FlashFeeBps:  9,
	})
}

func TestMulDiv(t *testing.T) {
	assert.Equal(t, uint64(6), mulDiv(2, 9, 3))
	assert.Equal(t, uint64(8), mulDiv(1<<63, 4, 1<<62))
	assert.Equal(t, uint64(math.MaxUint64), mulDiv(math.MaxUint64, math.MaxUint64, math.MaxUint64))
	assert.Equal(t, uint64(math.MaxUint64), mulDiv(math.MaxUint64, math.MaxUint64, 1))
	assert.Equal(t, uint64(0), mulDiv(5, 5, 0))
}

func TestVenue_Quote(t *testing.T) {
	v := newTestVenue()
	ctx := context.Background()

	out, err := v.Quote(ctx, tokenX, tokenY, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1992), out)

	// pools are direction agnostic
	back, err := v.Quote(ctx, tokenY, tokenX, 2000)
	require.NoError(t, err)
	assert.Less(t, back, uint64(1000))

	_, err = v.Quote(ctx, tokenX, tokenZ, 1000)
	assert.ErrorIs(t, err, ErrNoPool)
}

func TestVenue_Holdings(t *testing.T) {
	v := newTestVenue()
	ctx := context.Background()

	require.NoError(t, v.Sell(ctx, tokenX, 200))
	assert.ErrorIs(t, v.Sell(ctx, tokenX, 301), apperrors.ErrInsufficientFunds)
	require.NoError(t, v.Buy(ctx, tokenY, 40))

	x, _ := v.Balance(ctx, tokenX)
	y, _ := v.Balance(ctx, tokenY)
	assert.Equal(t, uint64(300), x)
	assert.Equal(t, uint64(40), y)
}

func TestVenue_TradesAndLiquidity(t *testing.T) {
	v := newTestVenue()
	ctx := context.Background()

	out, err := v.ExecuteTrade(ctx, tokenX, 10_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_100), out)

	loan, err := v.Flashloan(ctx, tokenX, 10_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(9_991), loan)

	applied, err := v.AdjustLiquidity(ctx, tokenY, 77)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), applied)
	assert.Equal(t, uint64(77), v.Liquidity(tokenY))
}

func TestVenue_AtomicArbitrageLosesToPriceImpact(t *testing.T) {
	v := newTestVenue()
	out, err := v.AtomicArbitrage(context.Background(), tokenY, tokenZ, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(999), out)
}
