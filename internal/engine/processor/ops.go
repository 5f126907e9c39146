package processor

import (
	"context"
	"fmt"

	"mev_engine/internal/core"
	"mev_engine/internal/ledger"
	"mev_engine/internal/state"
	apperrors "mev_engine/pkg/errors"
)

func (p *Processor) initialize(ctx context.Context, payer, slotKey core.Pubkey, data []byte) (*Result, error) {
	slot, err := ledger.LoadOrEmpty(ctx, p.store, slotKey)
	if err != nil {
		return nil, err
	}
	if slot.Owner != core.SystemProgram {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrAlreadyInitialized, slotKey)
	}

	rec, err := state.Decode(data)
	if err != nil {
		return nil, err
	}

	if payer == slotKey {
		return nil, fmt.Errorf("%w: payer cannot fund itself as the slot", apperrors.ErrInvalidAccountData)
	}
	payerAcc, err := ledger.LoadOrEmpty(ctx, p.store, payer)
	if err != nil {
		return nil, err
	}
	if payerAcc.Owner != core.SystemProgram {
		return nil, fmt.Errorf("%w: payer %s is not a system account", apperrors.ErrInvalidAccountData, payer)
	}
	need := p.cfg.Rent.MinimumBalance(state.RecordLen)
	if payerAcc.Lamports < need {
		return nil, fmt.Errorf("%w: payer has %d lamports, slot needs %d", apperrors.ErrInsufficientFunds, payerAcc.Lamports, need)
	}

	payerAcc.Lamports -= need
	slot.Lamports += need
	slot.Owner = p.cfg.ProgramID
	slot.Data = state.Encode(rec)
	if err := p.store.Save(ctx, payerAcc, slot); err != nil {
		return nil, fmt.Errorf("persist slot %s: %w", slotKey, err)
	}

	p.metrics.SetTradingBalance(slotKey.String(), rec.TradingBalanceInTokens)
	p.logger.Info("Slot initialized", "slot", slotKey, "owner", rec.Owner, "rent", need)
	return &Result{Slot: slotKey, Record: rec}, nil
}

func (p *Processor) transfer(ctx context.Context, caller, tokenProgram, from, to, authority, slotKey core.Pubkey, amount uint64) (*Result, error) {
	if err := p.checkTokenProgram(tokenProgram); err != nil {
		return nil, err
	}
	moved := false
	rec, err := p.update(ctx, caller, slotKey, func(rec *state.Record) error {
		if err := p.gateway.Transfer(ctx, from, to, authority, amount); err != nil {
			return err
		}
		moved = true
		rec.TradingBalanceInTokens += amount
		return nil
	})
	if err != nil && moved {
		// the token program has no undo; the operator reconciles from this log
		p.logger.Error("Transfer applied but trading balance not recorded",
			"slot", slotKey, "from", from, "to", to, "amount", amount, "error", err)
		return nil, fmt.Errorf("transfer of %d applied, trading balance not recorded: %w", amount, err)
	}
	if err != nil {
		return nil, err
	}
	p.logger.Info("Transfer applied", "slot", slotKey, "amount", amount, "trading_balance", rec.TradingBalanceInTokens)
	return &Result{Slot: slotKey, Record: rec}, nil
}

func (p *Processor) approve(ctx context.Context, caller, tokenProgram, source, delegate, slotKey core.Pubkey, amount uint64) (*Result, error) {
	if err := p.checkTokenProgram(tokenProgram); err != nil {
		return nil, err
	}
	rec, err := p.update(ctx, caller, slotKey, func(rec *state.Record) error {
		return p.gateway.Approve(ctx, source, delegate, caller, amount)
	})
	if err != nil {
		return nil, err
	}
	return &Result{Slot: slotKey, Record: rec}, nil
}

func (p *Processor) checkTokenProgram(key core.Pubkey) error {
	if key != p.cfg.TokenProgramID {
		return fmt.Errorf("%w: unexpected token program %s", apperrors.ErrInvalidAccountData, key)
	}
	return nil
}

func (p *Processor) setSlippage(ctx context.Context, caller, slotKey core.Pubkey, pct uint8) (*Result, error) {
	if pct > state.MaxSlippagePercent {
		return nil, fmt.Errorf("%w: slippage %d%% above %d%%", apperrors.ErrInvalidInstructionData, pct, state.MaxSlippagePercent)
	}
	rec, err := p.update(ctx, caller, slotKey, func(rec *state.Record) error {
		rec.SlippagePercent = pct
		rec.IsSlippageSet = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Result{Slot: slotKey, Record: rec}, nil
}

func (p *Processor) setFlag(ctx context.Context, caller, slotKey core.Pubkey, set func(r *state.Record)) (*Result, error) {
	rec, err := p.update(ctx, caller, slotKey, func(rec *state.Record) error {
		set(rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Result{Slot: slotKey, Record: rec}, nil
}

// withdraw moves the slot's whole funding to receiver and hands the slot to the
// retired owner. Both accounts are written in one store transaction.
func (p *Processor) withdraw(ctx context.Context, caller, slotKey, receiver core.Pubkey) (*Result, error) {
	if receiver == slotKey {
		return nil, fmt.Errorf("%w: receiver is the slot itself", apperrors.ErrInvalidAccountData)
	}
	var moved uint64
	rec, err := p.mutate(ctx, caller, slotKey, func(rec *state.Record, slot *ledger.Account) ([]*ledger.Account, error) {
		dst, err := ledger.LoadOrEmpty(ctx, p.store, receiver)
		if err != nil {
			return nil, err
		}
		moved = slot.Lamports
		dst.Lamports += moved
		slot.Lamports = 0
		slot.Owner = p.retired
		return []*ledger.Account{dst}, nil
	})
	if err != nil {
		return nil, err
	}
	p.logger.Info("Funds withdrawn", "slot", slotKey, "receiver", receiver, "lamports", moved)
	return &Result{Slot: slotKey, Record: rec, Withdrawn: moved}, nil
}
