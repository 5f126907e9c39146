// Package core defines the capabilities the engine consumes and the shared logger contract
package core

import "context"

// IPriceQuoter returns how much tokenOut a leg yields for amountIn of tokenIn
type IPriceQuoter interface {
	Quote(ctx context.Context, tokenIn, tokenOut Pubkey, amountIn uint64) (uint64, error)
}

// ITradeExecutor places single-token rebalance trades
type ITradeExecutor interface {
	Sell(ctx context.Context, token Pubkey, amount uint64) error
	Buy(ctx context.Context, token Pubkey, amount uint64) error
}

// ISwapVenue executes a trade of one token and reports the proceeds
type ISwapVenue interface {
	ExecuteTrade(ctx context.Context, token Pubkey, amount uint64) (uint64, error)
}

// ILiquidityRouter adjusts pool liquidity for a token and returns the applied amount
type ILiquidityRouter interface {
	AdjustLiquidity(ctx context.Context, token Pubkey, amount uint64) (uint64, error)
}

// IFlashVenue borrows and arbitrages within a single atomic unit
type IFlashVenue interface {
	Flashloan(ctx context.Context, token Pubkey, amount uint64) (uint64, error)
	AtomicArbitrage(ctx context.Context, tokenIn, tokenOut Pubkey, amount uint64) (uint64, error)
}

// IBalanceSource reports current holdings of a token
type IBalanceSource interface {
	Balance(ctx context.Context, token Pubkey) (uint64, error)
}

// IVenue is everything a router account can stand for
type IVenue interface {
	IPriceQuoter
	ITradeExecutor
	ISwapVenue
	ILiquidityRouter
	IFlashVenue
	IBalanceSource
	Name() string
}

// IVenueResolver maps a router account onto the venue implementing it
type IVenueResolver interface {
	Resolve(router Pubkey) (IVenue, error)
}

// ITokenProgram is the external value-transfer primitive
type ITokenProgram interface {
	Transfer(ctx context.Context, from, to, authority Pubkey, amount uint64) error
	Approve(ctx context.Context, source, delegate, owner Pubkey, amount uint64) error
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

// IHealthMonitor reports per-component health
type IHealthMonitor interface {
	GetStatus() map[string]string
	IsHealthy() bool
}
