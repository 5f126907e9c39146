// Package processor validates and applies instructions against per-owner state slots
package processor

import (
	"context"
	"fmt"
	"sync"

	"mev_engine/internal/core"
	"mev_engine/internal/ledger"
	"mev_engine/internal/state"
	"mev_engine/internal/token"
	"mev_engine/internal/trading/arbitrage"
	"mev_engine/internal/trading/portfolio"
	apperrors "mev_engine/pkg/errors"
	"mev_engine/pkg/telemetry"
)

// DefaultRebalanceSteps is used when a rebalance instruction carries no step count
const DefaultRebalanceSteps = 5

// RebalanceRunner executes a rebalance against a trade executor
type RebalanceRunner interface {
	Rebalance(ctx context.Context, exec core.ITradeExecutor, tokenA, tokenB core.Pubkey, balanceA, balanceB uint64, steps uint32) (*portfolio.RebalancePlan, error)
}

// EventPublisher receives a notification after every successful instruction
type EventPublisher interface {
	Publish(eventType string, data interface{})
}

// Result carries whatever the executed op produced
type Result struct {
	Op        Op                         `json:"op"`
	Slot      core.Pubkey                `json:"slot"`
	Record    *state.Record              `json:"record,omitempty"`
	Withdrawn uint64                     `json:"withdrawn,omitempty"`
	Decision  *arbitrage.Decision        `json:"decision,omitempty"`
	Rebalance *portfolio.RebalancePlan   `json:"rebalance,omitempty"`
	Liquidity *portfolio.LiquidityReport `json:"liquidity,omitempty"`
	MEV       *arbitrage.MEVReport       `json:"mev,omitempty"`
	SPL       *arbitrage.SPLReport       `json:"spl,omitempty"`
}

// Config wires the processor to its collaborators
type Config struct {
	ProgramID      core.Pubkey
	TokenProgramID core.Pubkey
	Rent           ledger.Rent
	RebalanceSteps uint32
}

// Processor runs one instruction at a time. Every state-changing op goes through
// mutate, so a failure at any point leaves the stored slot untouched.
type Processor struct {
	cfg        Config
	retired    core.Pubkey
	store      ledger.Store
	gateway    *token.Gateway
	venues     core.IVenueResolver
	evaluator  *arbitrage.Evaluator
	portfolio  *portfolio.Engine
	rebalancer RebalanceRunner
	mev        *arbitrage.MEVPlanner
	spl        *arbitrage.SPLArbitrage
	events     EventPublisher
	logger     core.ILogger
	metrics    *telemetry.MetricsHolder

	mu sync.Mutex
}

// Option customizes a Processor
type Option func(*Processor)

// WithRebalanceRunner swaps the in-process rebalance for another runner, e.g. a durable workflow
func WithRebalanceRunner(r RebalanceRunner) Option {
	return func(p *Processor) { p.rebalancer = r }
}

// WithEventPublisher streams results to observers
func WithEventPublisher(e EventPublisher) Option {
	return func(p *Processor) { p.events = e }
}

func New(cfg Config, store ledger.Store, gateway *token.Gateway, venues core.IVenueResolver, logger core.ILogger, opts ...Option) *Processor {
	if cfg.RebalanceSteps == 0 {
		cfg.RebalanceSteps = DefaultRebalanceSteps
	}
	if cfg.Rent == (ledger.Rent{}) {
		cfg.Rent = ledger.DefaultRent
	}
	engine := portfolio.NewEngine(logger)
	p := &Processor{
		cfg:        cfg,
		retired:    state.RetiredOwner(cfg.ProgramID),
		store:      store,
		gateway:    gateway,
		venues:     venues,
		evaluator:  arbitrage.NewEvaluator(logger),
		portfolio:  engine,
		rebalancer: engine,
		mev:        arbitrage.NewMEVPlanner(logger),
		spl:        arbitrage.NewSPLArbitrage(logger),
		logger:     logger.WithField("component", "processor"),
		metrics:    telemetry.GetGlobalMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProgramID is the owner assigned to every initialized slot
func (p *Processor) ProgramID() core.Pubkey {
	return p.cfg.ProgramID
}

// Process validates the instruction envelope and dispatches it. Instructions
// are serialized; the processor is not reentrant.
func (p *Processor) Process(ctx context.Context, ix Instruction) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := p.dispatch(ctx, ix)
	p.metrics.RecordOperation(ctx, string(ix.Op), err)
	if err != nil {
		p.logger.Warn("Instruction failed", "op", ix.Op, "signer", ix.Signer, "error", err)
		return nil, err
	}
	res.Op = ix.Op
	if p.events != nil {
		p.events.Publish(string(ix.Op), res)
	}
	return res, nil
}

func (p *Processor) dispatch(ctx context.Context, ix Instruction) (*Result, error) {
	if err := ix.validate(); err != nil {
		return nil, err
	}
	acc := ix.Accounts

	switch ix.Op {
	case OpInitialize:
		return p.initialize(ctx, acc[0], acc[1], ix.Data)
	case OpTransfer:
		amount, err := decodeU64(ix.Data)
		if err != nil {
			return nil, err
		}
		return p.transfer(ctx, acc[0], acc[1], acc[2], acc[3], acc[4], acc[6], amount)
	case OpApprove:
		amount, err := decodeU64(ix.Data)
		if err != nil {
			return nil, err
		}
		return p.approve(ctx, acc[0], acc[1], acc[2], acc[3], acc[4], amount)
	case OpSetSlippage:
		pct, err := decodeU8(ix.Data)
		if err != nil {
			return nil, err
		}
		return p.setSlippage(ctx, acc[0], acc[1], pct)
	case OpEnableMEV:
		on, err := decodeBool(ix.Data)
		if err != nil {
			return nil, err
		}
		return p.setFlag(ctx, acc[0], acc[1], func(r *state.Record) { r.MEVEnabled = on })
	case OpEnableTrading:
		on, err := decodeBool(ix.Data)
		if err != nil {
			return nil, err
		}
		return p.setFlag(ctx, acc[0], acc[1], func(r *state.Record) { r.EnableTrading = on })
	case OpSetLiquidityThreshold:
		v, err := decodeU64(ix.Data)
		if err != nil {
			return nil, err
		}
		return p.setFlag(ctx, acc[0], acc[1], func(r *state.Record) { r.LiquidityThreshold = v })
	case OpUpdateTradingBalance:
		v, err := decodeU64(ix.Data)
		if err != nil {
			return nil, err
		}
		return p.setFlag(ctx, acc[0], acc[1], func(r *state.Record) { r.TradingBalanceInTokens = v })
	case OpWithdraw:
		return p.withdraw(ctx, acc[0], acc[1], acc[2])
	case OpEvaluateArbitrage:
		amount, err := decodeU64(ix.Data)
		if err != nil {
			return nil, err
		}
		return p.evaluate(ctx, acc[0:3], acc[3:6], amount)
	case OpRebalance:
		steps, err := decodeSteps(ix.Data, p.cfg.RebalanceSteps)
		if err != nil {
			return nil, err
		}
		return p.rebalance(ctx, acc[0], acc[1], acc[2], acc[3], acc[4], steps)
	case OpProvideLiquidity:
		a, b, err := decodePair(ix.Data)
		if err != nil {
			return nil, err
		}
		return p.provideLiquidity(ctx, acc[0], acc[1], acc[2], acc[3], acc[4], a, b)
	case OpPerformMEV:
		amount, err := decodeU64(ix.Data)
		if err != nil {
			return nil, err
		}
		return p.performMEV(ctx, acc[0], acc[1], acc[2], acc[3], acc[4], amount)
	default: // OpSPLArbitrage, validate rejected everything else
		amount, err := decodeU64(ix.Data)
		if err != nil {
			return nil, err
		}
		return p.splArbitrage(ctx, acc[0], acc[1], acc[2], acc[3], acc[4], amount)
	}
}

// ReadRecord returns the decoded record stored at slotKey without any ownership check
func (p *Processor) ReadRecord(ctx context.Context, slotKey core.Pubkey) (*state.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, rec, err := p.loadSlot(ctx, slotKey)
	return rec, err
}

// Airdrop credits lamports to a system-owned account, creating it when missing.
// Used to fund payers; engine slots only receive funds through initialize.
func (p *Processor) Airdrop(ctx context.Context, key core.Pubkey, lamports uint64) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, err := ledger.LoadOrEmpty(ctx, p.store, key)
	if err != nil {
		return 0, err
	}
	if acc.Owner != core.SystemProgram {
		return 0, fmt.Errorf("%w: %s is not a system account", apperrors.ErrInvalidAccountData, key)
	}
	acc.Lamports += lamports
	if err := p.store.Save(ctx, acc); err != nil {
		return 0, err
	}
	return acc.Lamports, nil
}

// Lamports reports an account's funding balance, zero for unknown accounts
func (p *Processor) Lamports(ctx context.Context, key core.Pubkey) (uint64, error) {
	acc, err := ledger.LoadOrEmpty(ctx, p.store, key)
	if err != nil {
		return 0, err
	}
	return acc.Lamports, nil
}
