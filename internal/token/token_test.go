package token

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

type failingProgram struct{ err error }

func (f *failingProgram) Transfer(ctx context.Context, from, to, authority core.Pubkey, amount uint64) error {
	return f.err
}

func (f *failingProgram) Approve(ctx context.Context, source, delegate, owner core.Pubkey, amount uint64) error {
	return f.err
}

var (
	alice = core.Pubkey{0xa1}
	bob   = core.Pubkey{0xb0}
	srcTA = core.Pubkey{0x01}
	dstTA = core.Pubkey{0x02}
)

func TestGateway_Transfer(t *testing.T) {
	program := NewMemoryProgram()
	program.CreateAccount(srcTA, alice, 1000)
	program.CreateAccount(dstTA, bob, 0)
	gw := NewGateway(program, &mock.MockLogger{})

	require.NoError(t, gw.Transfer(context.Background(), srcTA, dstTA, alice, 400))

	src, _ := program.BalanceOf(srcTA)
	dst, _ := program.BalanceOf(dstTA)
	assert.Equal(t, uint64(600), src)
	assert.Equal(t, uint64(400), dst)
}

func TestGateway_PropagatesErrorUnchanged(t *testing.T) {
	sentinel := errors.New("program halted")
	gw := NewGateway(&failingProgram{err: sentinel}, &mock.MockLogger{})

	assert.Same(t, sentinel, gw.Transfer(context.Background(), srcTA, dstTA, alice, 1))
	assert.Same(t, sentinel, gw.Approve(context.Background(), srcTA, bob, alice, 1))
}

func TestMemoryProgram_TransferRules(t *testing.T) {
	ctx := context.Background()
	program := NewMemoryProgram()
	program.CreateAccount(srcTA, alice, 100)
	program.CreateAccount(dstTA, bob, 0)

	err := program.Transfer(ctx, srcTA, dstTA, bob, 10)
	assert.ErrorIs(t, err, ErrOwnerMismatch)

	err = program.Transfer(ctx, srcTA, dstTA, alice, 101)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

	err = program.Transfer(ctx, srcTA, core.Pubkey{0x99}, alice, 1)
	assert.ErrorIs(t, err, ErrUnknownTokenAccount)

	// self transfer keeps the balance
	require.NoError(t, program.Transfer(ctx, srcTA, srcTA, alice, 50))
	bal, _ := program.BalanceOf(srcTA)
	assert.Equal(t, uint64(100), bal)
}

func TestMemoryProgram_Delegation(t *testing.T) {
	ctx := context.Background()
	program := NewMemoryProgram()
	program.CreateAccount(srcTA, alice, 100)
	program.CreateAccount(dstTA, bob, 0)
	gw := NewGateway(program, &mock.MockLogger{})

	assert.ErrorIs(t, gw.Approve(ctx, srcTA, bob, bob, 30), ErrOwnerMismatch)
	require.NoError(t, gw.Approve(ctx, srcTA, bob, alice, 30))

	delegate, allowance, err := program.Allowance(srcTA)
	require.NoError(t, err)
	assert.Equal(t, bob, delegate)
	assert.Equal(t, uint64(30), allowance)

	require.NoError(t, gw.Transfer(ctx, srcTA, dstTA, bob, 20))
	assert.ErrorIs(t, gw.Transfer(ctx, srcTA, dstTA, bob, 20), apperrors.ErrInsufficientFunds)

	_, allowance, _ = program.Allowance(srcTA)
	assert.Equal(t, uint64(10), allowance)
}
