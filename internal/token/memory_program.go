package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mev_engine/internal/core"
	apperrors "mev_engine/pkg/errors"
)

var (
	ErrUnknownTokenAccount = errors.New("unknown token account")
	ErrOwnerMismatch       = errors.New("authority does not control token account")
)

type tokenAccount struct {
	owner     core.Pubkey
	amount    uint64
	delegate  core.Pubkey
	allowance uint64
}

// MemoryProgram is an in-process token program holding balances per token account
type MemoryProgram struct {
	mu       sync.Mutex
	accounts map[core.Pubkey]*tokenAccount
}

func NewMemoryProgram() *MemoryProgram {
	return &MemoryProgram{accounts: make(map[core.Pubkey]*tokenAccount)}
}

// CreateAccount opens (or resets) a token account controlled by owner
func (p *MemoryProgram) CreateAccount(key, owner core.Pubkey, amount uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[key] = &tokenAccount{owner: owner, amount: amount}
}

func (p *MemoryProgram) BalanceOf(key core.Pubkey) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.accounts[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTokenAccount, key)
	}
	return acc.amount, nil
}

// Allowance returns the current delegate and remaining delegated amount
func (p *MemoryProgram) Allowance(key core.Pubkey) (core.Pubkey, uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acc, ok := p.accounts[key]
	if !ok {
		return core.Pubkey{}, 0, fmt.Errorf("%w: %s", ErrUnknownTokenAccount, key)
	}
	return acc.delegate, acc.allowance, nil
}

func (p *MemoryProgram) Transfer(ctx context.Context, from, to, authority core.Pubkey, amount uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	src, ok := p.accounts[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTokenAccount, from)
	}
	dst, ok := p.accounts[to]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTokenAccount, to)
	}

	delegated := false
	switch {
	case authority == src.owner:
	case authority == src.delegate && !src.delegate.IsZero():
		if src.allowance < amount {
			return fmt.Errorf("%w: allowance %d < %d", apperrors.ErrInsufficientFunds, src.allowance, amount)
		}
		delegated = true
	default:
		return fmt.Errorf("%w: %s", ErrOwnerMismatch, from)
	}

	if src.amount < amount {
		return fmt.Errorf("%w: balance %d < %d", apperrors.ErrInsufficientFunds, src.amount, amount)
	}

	if delegated {
		src.allowance -= amount
	}
	src.amount -= amount
	dst.amount += amount
	return nil
}

func (p *MemoryProgram) Approve(ctx context.Context, source, delegate, owner core.Pubkey, amount uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	src, ok := p.accounts[source]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTokenAccount, source)
	}
	if src.owner != owner {
		return fmt.Errorf("%w: %s", ErrOwnerMismatch, source)
	}
	src.delegate = delegate
	src.allowance = amount
	return nil
}
