package processor

import (
	"context"
	"fmt"

	"mev_engine/internal/core"
	"mev_engine/internal/ledger"
	"mev_engine/internal/state"
	apperrors "mev_engine/pkg/errors"
)

// loadSlot fetches a slot owned by this program and decodes its record
func (p *Processor) loadSlot(ctx context.Context, slotKey core.Pubkey) (*ledger.Account, *state.Record, error) {
	acc, err := p.store.Load(ctx, slotKey)
	if err != nil {
		return nil, nil, err
	}
	switch acc.Owner {
	case p.cfg.ProgramID:
	case p.retired:
		return nil, nil, fmt.Errorf("%w: %s", apperrors.ErrAccountRetired, slotKey)
	default:
		return nil, nil, fmt.Errorf("%w: slot %s is not owned by the engine", apperrors.ErrInvalidAccountData, slotKey)
	}
	rec, err := state.Decode(acc.Data)
	if err != nil {
		return nil, nil, err
	}
	return acc, rec, nil
}

// authorize loads the slot and checks that caller owns the record
func (p *Processor) authorize(ctx context.Context, caller, slotKey core.Pubkey) (*ledger.Account, *state.Record, error) {
	acc, rec, err := p.loadSlot(ctx, slotKey)
	if err != nil {
		return nil, nil, err
	}
	if rec.Owner != caller {
		return nil, nil, fmt.Errorf("%w: caller %s", apperrors.ErrNotAuthorized, caller)
	}
	return acc, rec, nil
}

// slotMutation edits the record in place and may return further accounts that
// must be written together with the slot.
type slotMutation func(rec *state.Record, slot *ledger.Account) ([]*ledger.Account, error)

// mutate is the single validate-then-apply path: load, decode, check the
// owner, apply fn, re-encode and persist. Nothing is written unless every
// step succeeds.
func (p *Processor) mutate(ctx context.Context, caller, slotKey core.Pubkey, fn slotMutation) (*state.Record, error) {
	slot, rec, err := p.authorize(ctx, caller, slotKey)
	if err != nil {
		return nil, err
	}

	updated := *rec
	extra, err := fn(&updated, slot)
	if err != nil {
		return nil, err
	}

	slot.Data = state.Encode(&updated)
	if err := p.store.Save(ctx, append([]*ledger.Account{slot}, extra...)...); err != nil {
		return nil, fmt.Errorf("persist slot %s: %w", slotKey, err)
	}

	if slot.Owner == p.retired {
		p.metrics.ClearTradingBalance(slotKey.String())
	} else {
		p.metrics.SetTradingBalance(slotKey.String(), updated.TradingBalanceInTokens)
	}
	return &updated, nil
}

// update is mutate for record-only edits
func (p *Processor) update(ctx context.Context, caller, slotKey core.Pubkey, fn func(rec *state.Record) error) (*state.Record, error) {
	return p.mutate(ctx, caller, slotKey, func(rec *state.Record, _ *ledger.Account) ([]*ledger.Account, error) {
		return nil, fn(rec)
	})
}
