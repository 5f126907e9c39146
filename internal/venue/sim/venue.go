// Package sim is a deterministic in-process venue backed by constant-product pools
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mev_engine/internal/core"
	apperrors "mev_engine/pkg/errors"
)

var ErrNoPool = errors.New("no pool for token pair")

// PoolConfig seeds one constant-product pool
type PoolConfig struct {
	TokenA   core.Pubkey
	TokenB   core.Pubkey
	ReserveA uint64
	ReserveB uint64
	FeeBps   uint32
}

// Config seeds the whole venue. Holdings are the starting balances per token,
// TradeEdgeBps is the edge ExecuteTrade captures and FlashFeeBps is charged on
// flashloans.
type Config struct {
	Pools        []PoolConfig
	Holdings     map[core.Pubkey]uint64
	TradeEdgeBps uint32
	FlashFeeBps  uint32
}

type pool struct {
	reserves map[core.Pubkey]uint64
	feeBps   uint32
}

// Venue implements core.IVenue
type Venue struct {
	name      string
	mu        sync.Mutex
	pools     map[[2]core.Pubkey]*pool
	holdings  map[core.Pubkey]uint64
	liquidity map[core.Pubkey]uint64
	cfg       Config
}

func New(name string, cfg Config) *Venue {
	v := &Venue{
		name:      name,
		pools:     make(map[[2]core.Pubkey]*pool),
		holdings:  make(map[core.Pubkey]uint64),
		liquidity: make(map[core.Pubkey]uint64),
		cfg:       cfg,
	}
	for _, pc := range cfg.Pools {
		p := &pool{
			reserves: map[core.Pubkey]uint64{pc.TokenA: pc.ReserveA, pc.TokenB: pc.ReserveB},
			feeBps:   pc.FeeBps,
		}
		v.pools[pairKey(pc.TokenA, pc.TokenB)] = p
	}
	for token, amount := range cfg.Holdings {
		v.holdings[token] = amount
	}
	return v
}

func (v *Venue) Name() string { return v.name }

func pairKey(a, b core.Pubkey) [2]core.Pubkey {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return [2]core.Pubkey{a, b}
			}
			return [2]core.Pubkey{b, a}
		}
	}
	return [2]core.Pubkey{a, b}
}

func (v *Venue) pool(tokenIn, tokenOut core.Pubkey) (*pool, error) {
	p, ok := v.pools[pairKey(tokenIn, tokenOut)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNoPool, tokenIn, tokenOut)
	}
	return p, nil
}

// Quote prices a swap without moving reserves
func (v *Venue) Quote(ctx context.Context, tokenIn, tokenOut core.Pubkey, amountIn uint64) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, err := v.pool(tokenIn, tokenOut)
	if err != nil {
		return 0, err
	}
	return swapOut(amountIn, p.reserves[tokenIn], p.reserves[tokenOut], p.feeBps), nil
}

func (v *Venue) Sell(ctx context.Context, token core.Pubkey, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.holdings[token] < amount {
		return fmt.Errorf("%w: sell %d of %s, holding %d", apperrors.ErrInsufficientFunds, amount, token, v.holdings[token])
	}
	v.holdings[token] -= amount
	return nil
}

func (v *Venue) Buy(ctx context.Context, token core.Pubkey, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.holdings[token] += amount
	return nil
}

// ExecuteTrade round-trips amount of token and returns the proceeds including the simulated edge
func (v *Venue) ExecuteTrade(ctx context.Context, token core.Pubkey, amount uint64) (uint64, error) {
	return amount + mulDiv(amount, uint64(v.cfg.TradeEdgeBps), bpsScale), nil
}

func (v *Venue) AdjustLiquidity(ctx context.Context, token core.Pubkey, amount uint64) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.liquidity[token] += amount
	return amount, nil
}

// Flashloan lends amount and returns what is usable after the flash fee
func (v *Venue) Flashloan(ctx context.Context, token core.Pubkey, amount uint64) (uint64, error) {
	return applyBps(amount, v.cfg.FlashFeeBps), nil
}

// AtomicArbitrage swaps tokenIn to tokenOut and straight back through the same pool
func (v *Venue) AtomicArbitrage(ctx context.Context, tokenIn, tokenOut core.Pubkey, amount uint64) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	p, err := v.pool(tokenIn, tokenOut)
	if err != nil {
		return 0, err
	}
	rIn, rOut := p.reserves[tokenIn], p.reserves[tokenOut]
	mid := swapOut(amount, rIn, rOut, p.feeBps)
	if mid >= rOut {
		return 0, fmt.Errorf("%w: pool %s/%s drained", apperrors.ErrInsufficientFunds, tokenIn, tokenOut)
	}
	// reserves after the first hop
	return swapOut(mid, rOut-mid, rIn+applyBps(amount, p.feeBps), p.feeBps), nil
}

func (v *Venue) Balance(ctx context.Context, token core.Pubkey) (uint64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.holdings[token], nil
}

// Liquidity reports how much has been provisioned for token
func (v *Venue) Liquidity(token core.Pubkey) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.liquidity[token]
}
